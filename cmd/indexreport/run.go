package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"indexreport/internal/logging"
	"indexreport/internal/pipeline"
	"indexreport/internal/provider"
	"indexreport/internal/render"
	"indexreport/pkg/model"
)

var (
	modeFlag     string
	sendEmail    bool
	format       string
	failOnNotify bool
	toFlag       string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate one report now",
		Long: `Generate one report now. With --mode auto the mode follows the calendar:
the last business day of the month is monthly, a Friday is weekly,
anything else is daily.`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "auto", "report mode: daily, weekly, monthly, auto")
	cmd.Flags().BoolVar(&sendEmail, "send-email", false, "deliver the report through the configured notifiers")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, table, json")
	cmd.Flags().BoolVar(&failOnNotify, "fail-on-notify", false, "exit 3 when the report cannot be delivered")
	cmd.Flags().StringVar(&toFlag, "to", "", "comma-separated recipients (default: config email.to)")
	return cmd
}

// parseModeFlag returns nil for auto
func parseModeFlag(s string) (*model.Mode, error) {
	if strings.EqualFold(strings.TrimSpace(s), "auto") || s == "" {
		return nil, nil
	}
	m, err := model.ParseMode(s)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	switch format {
	case "text", "table", "json":
	default:
		return &exitError{code: exitUsage, err: fmt.Errorf("unknown format %q (text, table, json)", format)}
	}
	mode, err := parseModeFlag(modeFlag)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	a, err := newApp()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bar *progressbar.ProgressBar
	var progress func(pipeline.Stage)
	if format != "json" && !debug && logging.IsTerminal(os.Stderr) {
		bar = newStageBar()
		progress = func(s pipeline.Stage) {
			bar.Describe(string(s))
			for i, st := range pipeline.Stages {
				if st == s {
					bar.Set(i)
				}
			}
		}
	}

	pl, err := a.pipeline(ctx, progress)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	out, err := pl.Run(ctx, pipeline.Request{
		Mode:       mode,
		Send:       sendEmail,
		Recipients: splitList(toFlag),
	})
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		printFailure(err)
		return &exitError{code: exitRunFailed, err: err}
	}

	if err := printOutcome(out, render.Options{IndexName: a.cfg.IndexName, Currency: a.cfg.Currency}); err != nil {
		return err
	}

	if out.NotifyErr != nil && failOnNotify {
		return &exitError{code: exitNotifyFailed, err: fmt.Errorf("report computed but not delivered: %w", out.NotifyErr)}
	}
	return nil
}

func newStageBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(len(pipeline.Stages),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Starting"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// printFailure lists every provider that was tried when the fetch failed
func printFailure(err error) {
	var all *provider.AllSourcesFailedError
	if !errors.As(err, &all) {
		return
	}
	fmt.Fprintf(os.Stderr, "Data sources tried (%d):\n", len(all.Errors))
	for _, pe := range all.Errors {
		fmt.Fprintf(os.Stderr, "  - %s: %s: %v\n", pe.Provider, pe.Kind, pe.Err)
	}
}

// jsonOutcome is the --format json document
type jsonOutcome struct {
	RunID          string        `json:"run_id"`
	Mode           model.Mode    `json:"mode"`
	Inferred       bool          `json:"inferred"`
	Report         *model.Report `json:"report"`
	Subject        string        `json:"subject"`
	SummarizeError string        `json:"summarize_error,omitempty"`
	Delivered      bool          `json:"delivered"`
	NotifyError    string        `json:"notify_error,omitempty"`
	Duration       string        `json:"duration"`
}

func printOutcome(out *pipeline.Outcome, opts render.Options) error {
	switch format {
	case "json":
		doc := jsonOutcome{
			RunID:     out.RunID.String(),
			Mode:      out.Mode,
			Inferred:  out.Inferred,
			Report:    out.Report,
			Subject:   out.Rendered.Subject,
			Delivered: out.Delivered,
			Duration:  out.Duration.Round(time.Millisecond).String(),
		}
		if out.SummarizeErr != nil {
			doc.SummarizeError = out.SummarizeErr.Error()
		}
		if out.NotifyErr != nil {
			doc.NotifyError = out.NotifyErr.Error()
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)

	case "table":
		if err := render.Table(os.Stdout, out.Report, opts); err != nil {
			return err
		}

	default:
		fmt.Println(out.Rendered.Text)
	}

	switch {
	case out.Delivered:
		fmt.Println("\nReport delivered.")
	case out.NotifyErr != nil:
		fmt.Printf("\nReport computed but not delivered: %v\n", out.NotifyErr)
	}
	fmt.Printf("Mode %s, source %s, %s\n", out.Mode, out.Report.Source, out.Duration.Round(time.Millisecond))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
