package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"indexreport/pkg/model"
)

func weeklyReport() *model.Report {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	return &model.Report{
		Mode:   model.ModeWeekly,
		Symbol: "000300.SH",
		Source: "tushare",
		Weekly: &model.WeeklyReport{
			StartDate: start, EndDate: end,
			StartPrice: 100, EndPrice: 103, ChangePct: 3,
			High: 105, HighDate: start.AddDate(0, 0, 3),
			Low: 100, LowDate: start,
			AverageVolume: 3000, TotalVolume: 15000, Days: 5,
		},
		Daily: &model.DailyReport{
			Date: end, Close: 103, PrevClose: 105, ChangePct: -1.9047619,
			PeriodHigh: 105, PeriodLow: 100, RelativeToHighPct: -1.9047619, RelativeToLowPct: 3,
			Volume: 5000,
		},
	}
}

func TestPriceAndPercent(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Price(3540.125), "3540.13"},
		{Price(0.1 + 0.2), "0.30"},
		{Percent(3), "+3.00%"},
		{Percent(-1.9047619), "-1.90%"},
		{Percent(0), "0.00%"},
		{Percent(-0.001), "0.00%"},
		{Volume(15000), "15000"},
		{AverageVolume(2999.6), "3000"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestSubject(t *testing.T) {
	got := Subject(weeklyReport(), Options{})
	want := "CSI 300 Weekly Report 2024-03-08: +3.00%"
	if got != want {
		t.Errorf("Subject = %q, want %q", got, want)
	}
}

func TestMarkdownIncludesSnapshotAndNarrative(t *testing.T) {
	r := weeklyReport().WithNarrative("Momentum faded late in the week.")
	out := Markdown(r, Options{})

	for _, want := range []string{
		"# CSI 300 Weekly Report",
		"| Weekly Change | +3.00% |",
		"| High | 105.00 CNY (2024-03-07) |",
		"## Latest Session",
		"| Change | -1.90% |",
		"## Analysis",
		"Momentum faded late in the week.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q\n%s", want, out)
		}
	}
}

func TestMarkdownWithoutNarrative(t *testing.T) {
	out := Markdown(weeklyReport(), Options{})
	if strings.Contains(out, "## Analysis") {
		t.Error("analysis section should be omitted without a narrative")
	}
}

func TestMonthlyMissingLevels(t *testing.T) {
	r := &model.Report{
		Mode: model.ModeMonthly,
		Monthly: &model.MonthlyReport{
			Year: 2024, Month: time.March,
			EndDate: time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC),
		},
	}
	out := Markdown(r, Options{})
	if !strings.Contains(out, "| Support | n/a |") || !strings.Contains(out, "| Resistance | n/a |") {
		t.Errorf("absent levels should render as n/a\n%s", out)
	}
}

func TestHTML(t *testing.T) {
	out, err := HTML(Markdown(weeklyReport(), Options{}))
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	for _, want := range []string{"<h1>CSI 300 Weekly Report</h1>", "<table>", "<td>+3.00%</td>"} {
		if !strings.Contains(out, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Table(&buf, weeklyReport(), Options{}); err != nil {
		t.Fatalf("Table: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Weekly Change") || !strings.Contains(out, "+3.00%") {
		t.Errorf("table output missing rows:\n%s", out)
	}
}
