package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"indexreport/pkg/model"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithXHTML(),
	),
)

// Markdown renders the report, its daily snapshot and the narrative
func Markdown(r *model.Report, opts Options) string {
	opts = opts.withDefaults()
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s Report\n\n", opts.IndexName, title(r.Mode))
	fmt.Fprintf(&b, "Symbol: %s  \nDate: %s  \nData source: %s\n\n", r.Symbol, date(r), r.Source)

	writeTable(&b, rows(r, opts))

	if r.Mode != model.ModeDaily && r.Daily != nil {
		b.WriteString("## Latest Session\n\n")
		writeTable(&b, dailyRows(r.Daily, " "+opts.Currency))
	}

	if r.Narrative != "" {
		b.WriteString("## Analysis\n\n")
		b.WriteString(strings.TrimSpace(r.Narrative))
		b.WriteString("\n")
	}

	return b.String()
}

func writeTable(b *strings.Builder, rs []row) {
	b.WriteString("| Metric | Value |\n|---|---|\n")
	for _, r := range rs {
		fmt.Fprintf(b, "| %s | %s |\n", r.label, strings.ReplaceAll(r.value, "|", "\\|"))
	}
	b.WriteString("\n")
}

const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; color: #222; max-width: 720px; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ddd; padding: 4px 10px; text-align: left; }
th { background: #f4f4f4; }
</style>
</head>
<body>
%s</body>
</html>
`

// HTML converts Markdown to a standalone HTML document
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return fmt.Sprintf(htmlShell, buf.String()), nil
}

// Table writes the report as a terminal table
func Table(w io.Writer, r *model.Report, opts Options) error {
	opts = opts.withDefaults()

	fmt.Fprintf(w, "%s %s Report (%s, source: %s)\n\n", opts.IndexName, title(r.Mode), r.Symbol, r.Source)

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Metric", "Value"}),
	)
	for _, rw := range rows(r, opts) {
		table.Append([]string{rw.label, rw.value})
	}
	if err := table.Render(); err != nil {
		return err
	}

	if r.Narrative != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(r.Narrative))
	}
	return nil
}
