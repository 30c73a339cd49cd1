package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"indexreport/pkg/model"
)

// Options control labels in rendered output
type Options struct {
	IndexName string
	Currency  string
}

func (o Options) withDefaults() Options {
	if o.IndexName == "" {
		o.IndexName = "CSI 300"
	}
	if o.Currency == "" {
		o.Currency = "CNY"
	}
	return o
}

// Price formats a price with two decimals, rounded half away from zero
func Price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Percent formats a percentage with an explicit sign
func Percent(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

// Volume formats an integer volume
func Volume(v int64) string {
	return decimal.NewFromInt(v).String()
}

// AverageVolume formats a mean volume without decimals
func AverageVolume(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(0)
}

func date(r *model.Report) string {
	return r.ReferenceDate().Format(model.DateLayout)
}

func title(mode model.Mode) string {
	s := mode.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Subject returns the e-mail subject line for a report
func Subject(r *model.Report, opts Options) string {
	opts = opts.withDefaults()
	var change float64
	switch {
	case r.Mode == model.ModeWeekly && r.Weekly != nil:
		change = r.Weekly.ChangePct
	case r.Mode == model.ModeMonthly && r.Monthly != nil:
		change = r.Monthly.ChangePct
	case r.Daily != nil:
		change = r.Daily.ChangePct
	}
	return fmt.Sprintf("%s %s Report %s: %s", opts.IndexName, title(r.Mode), date(r), Percent(change))
}

// row is one metric line shared by the Markdown and table renderers
type row struct {
	label string
	value string
}

func rows(r *model.Report, opts Options) []row {
	cur := " " + opts.Currency
	var out []row

	switch r.Mode {
	case model.ModeWeekly:
		w := r.Weekly
		out = append(out,
			row{"Period", w.StartDate.Format(model.DateLayout) + " to " + w.EndDate.Format(model.DateLayout)},
			row{"Start Price", Price(w.StartPrice) + cur},
			row{"End Price", Price(w.EndPrice) + cur},
			row{"Weekly Change", Percent(w.ChangePct)},
			row{"High", Price(w.High) + cur + " (" + w.HighDate.Format(model.DateLayout) + ")"},
			row{"Low", Price(w.Low) + cur + " (" + w.LowDate.Format(model.DateLayout) + ")"},
			row{"Average Volume", AverageVolume(w.AverageVolume)},
			row{"Total Volume", Volume(w.TotalVolume)},
			row{"Trading Days", fmt.Sprintf("%d", w.Days)},
		)

	case model.ModeMonthly:
		m := r.Monthly
		out = append(out,
			row{"Month", fmt.Sprintf("%d-%02d", m.Year, int(m.Month))},
			row{"Period", m.StartDate.Format(model.DateLayout) + " to " + m.EndDate.Format(model.DateLayout)},
			row{"Start Price", Price(m.StartPrice) + cur},
			row{"End Price", Price(m.EndPrice) + cur},
			row{"Monthly Change", Percent(m.ChangePct)},
			row{"High", Price(m.High) + cur + " (" + m.HighDate.Format(model.DateLayout) + ")"},
			row{"Low", Price(m.Low) + cur + " (" + m.LowDate.Format(model.DateLayout) + ")"},
			row{"Support", optionalPrice(m.Support, cur)},
			row{"Resistance", optionalPrice(m.Resistance, cur)},
			row{"Average Volume", AverageVolume(m.AverageVolume)},
			row{"Total Volume", Volume(m.TotalVolume)},
			row{"Trading Days", fmt.Sprintf("%d", m.Days)},
		)

	default:
		out = append(out, dailyRows(r.Daily, cur)...)
	}
	return out
}

func dailyRows(d *model.DailyReport, cur string) []row {
	if d == nil {
		return nil
	}
	out := []row{
		{"Date", d.Date.Format(model.DateLayout)},
		{"Close", Price(d.Close) + cur},
		{"Previous Close", Price(d.PrevClose) + cur},
		{"Change", Percent(d.ChangePct)},
		{"Period High", Price(d.PeriodHigh) + cur},
		{"Period Low", Price(d.PeriodLow) + cur},
		{"Relative to High", Percent(d.RelativeToHighPct)},
		{"Relative to Low", Percent(d.RelativeToLowPct)},
		{"Volume", Volume(d.Volume)},
	}
	if ind := d.Indicators; ind != nil {
		if ind.HasMA5 {
			out = append(out, row{"MA5", Price(ind.MA5)})
		}
		if ind.HasMA20 {
			out = append(out, row{"MA20", Price(ind.MA20)})
		}
		if ind.HasRSI {
			out = append(out, row{"RSI(14)", Price(ind.RSI14)})
		}
		out = append(out, row{"MACD", Price(ind.MACD) + " / signal " + Price(ind.MACDSignal)})
	}
	return out
}

func optionalPrice(v *float64, cur string) string {
	if v == nil {
		return "n/a"
	}
	return Price(*v) + cur
}
