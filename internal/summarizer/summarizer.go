package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"indexreport/pkg/model"
)

// ErrEmptyResponse is returned when a model answers without any text
var ErrEmptyResponse = errors.New("empty response from model")

// Summarizer turns a numeric report into a free-text narrative.
// Failures are never fatal to a run.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, report *model.Report) (string, error)
}

// Noop is used when no model is configured
type Noop struct{}

func (Noop) Name() string { return "none" }

func (Noop) Summarize(context.Context, *model.Report) (string, error) {
	return "", nil
}

// Options selects and configures a summarizer
type Options struct {
	Provider string // gemini, claude or none
	Gemini   GeminiConfig
	Claude   ClaudeConfig
}

// New builds the configured summarizer. A provider without an API key
// degrades to Noop.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (Summarizer, error) {
	switch strings.ToLower(opts.Provider) {
	case "", "none":
		return Noop{}, nil
	case "gemini":
		if opts.Gemini.APIKey == "" {
			logger.Warn().Msg("gemini summarizer selected without API key, narratives disabled")
			return Noop{}, nil
		}
		return NewGeminiSummarizer(ctx, opts.Gemini, logger)
	case "claude":
		if opts.Claude.APIKey == "" {
			logger.Warn().Msg("claude summarizer selected without API key, narratives disabled")
			return Noop{}, nil
		}
		return NewClaudeSummarizer(opts.Claude, logger)
	default:
		return nil, fmt.Errorf("unknown summarizer %q (supported: gemini, claude, none)", opts.Provider)
	}
}

// generateFunc sends a prompt to a model and returns its text answer
type generateFunc func(ctx context.Context, prompt string) (string, error)

// PromptOptions tune the prompt sent to the model
type PromptOptions struct {
	IndexName string // e.g. "CSI 300"
	Currency  string
	Language  string
}

func (o PromptOptions) withDefaults() PromptOptions {
	if o.IndexName == "" {
		o.IndexName = "CSI 300"
	}
	if o.Currency == "" {
		o.Currency = "CNY"
	}
	if o.Language == "" {
		o.Language = "English"
	}
	return o
}

// BuildPrompt renders the analyst prompt for the report's mode
func BuildPrompt(r *model.Report, opts PromptOptions) string {
	opts = opts.withDefaults()
	var b strings.Builder

	switch r.Mode {
	case model.ModeWeekly:
		w := r.Weekly
		fmt.Fprintf(&b, "You are a professional stock analyst. Please analyze the following %s weekly data:\n\n", opts.IndexName)
		fmt.Fprintf(&b, "Period: %s to %s\n", w.StartDate.Format(model.DateLayout), w.EndDate.Format(model.DateLayout))
		fmt.Fprintf(&b, "Start Price: %.2f %s\n", w.StartPrice, opts.Currency)
		fmt.Fprintf(&b, "End Price: %.2f %s\n", w.EndPrice, opts.Currency)
		fmt.Fprintf(&b, "Weekly Change: %.2f%%\n", w.ChangePct)
		fmt.Fprintf(&b, "Highest: %.2f %s (%s)\n", w.High, opts.Currency, w.HighDate.Format(model.DateLayout))
		fmt.Fprintf(&b, "Lowest: %.2f %s (%s)\n", w.Low, opts.Currency, w.LowDate.Format(model.DateLayout))
		fmt.Fprintf(&b, "Average Volume: %.0f\n", w.AverageVolume)
		fmt.Fprintf(&b, "Total Volume: %d\n\n", w.TotalVolume)
		b.WriteString("Please analyze this week's market performance including:\n")
		b.WriteString("1. Weekly trend analysis\n2. Key price breakouts\n3. Volume analysis\n4. Next week outlook\n5. Investment strategy recommendations\n\n")

	case model.ModeMonthly:
		m := r.Monthly
		fmt.Fprintf(&b, "You are a professional stock analyst. Please analyze the following %s monthly data:\n\n", opts.IndexName)
		fmt.Fprintf(&b, "Month: %d-%02d\n", m.Year, int(m.Month))
		fmt.Fprintf(&b, "Period: %s to %s (%d trading days)\n", m.StartDate.Format(model.DateLayout), m.EndDate.Format(model.DateLayout), m.Days)
		fmt.Fprintf(&b, "Start Price: %.2f %s\n", m.StartPrice, opts.Currency)
		fmt.Fprintf(&b, "End Price: %.2f %s\n", m.EndPrice, opts.Currency)
		fmt.Fprintf(&b, "Monthly Change: %.2f%%\n", m.ChangePct)
		fmt.Fprintf(&b, "Highest: %.2f %s (%s)\n", m.High, opts.Currency, m.HighDate.Format(model.DateLayout))
		fmt.Fprintf(&b, "Lowest: %.2f %s (%s)\n", m.Low, opts.Currency, m.LowDate.Format(model.DateLayout))
		fmt.Fprintf(&b, "Support: %s\n", level(m.Support, opts.Currency))
		fmt.Fprintf(&b, "Resistance: %s\n", level(m.Resistance, opts.Currency))
		fmt.Fprintf(&b, "Average Volume: %.0f\n\n", m.AverageVolume)
		b.WriteString("Please provide a monthly review including:\n")
		b.WriteString("1. Monthly trend summary\n2. Support and resistance assessment\n3. Risk factors\n4. Next month outlook\n5. Medium-term allocation advice\n\n")

	default:
		d := r.Daily
		fmt.Fprintf(&b, "You are a professional stock analyst. Please analyze the following %s data:\n\n", opts.IndexName)
		fmt.Fprintf(&b, "Date: %s\n", d.Date.Format(model.DateLayout))
		fmt.Fprintf(&b, "Current Price: %.2f %s\n", d.Close, opts.Currency)
		fmt.Fprintf(&b, "Price Change: %.2f%%\n", d.ChangePct)
		fmt.Fprintf(&b, "Relative to High: %.2f%%\n", d.RelativeToHighPct)
		fmt.Fprintf(&b, "Relative to Low: %.2f%%\n", d.RelativeToLowPct)
		fmt.Fprintf(&b, "Period High: %.2f %s\n", d.PeriodHigh, opts.Currency)
		fmt.Fprintf(&b, "Period Low: %.2f %s\n", d.PeriodLow, opts.Currency)
		fmt.Fprintf(&b, "Volume: %d\n", d.Volume)
		if ind := d.Indicators; ind != nil {
			if ind.HasMA5 {
				fmt.Fprintf(&b, "MA5: %.2f\n", ind.MA5)
			}
			if ind.HasMA20 {
				fmt.Fprintf(&b, "MA20: %.2f\n", ind.MA20)
			}
			if ind.HasRSI {
				fmt.Fprintf(&b, "RSI(14): %.2f\n", ind.RSI14)
			}
			fmt.Fprintf(&b, "MACD: %.2f (signal %.2f)\n", ind.MACD, ind.MACDSignal)
		}
		b.WriteString("\nPlease provide professional investment advice including:\n")
		b.WriteString("1. Market trend analysis\n2. Risk assessment\n3. Investment recommendations\n4. Key points to watch\n\n")
	}

	fmt.Fprintf(&b, "Please respond in %s, maintaining professionalism and objectivity.", opts.Language)
	return b.String()
}

func level(v *float64, currency string) string {
	if v == nil {
		return "none in range"
	}
	return fmt.Sprintf("%.2f %s", *v, currency)
}

// summarize runs the shared prompt/answer flow for model-backed summarizers
func summarize(ctx context.Context, name string, gen generateFunc, r *model.Report, opts PromptOptions) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%s: nil report", name)
	}
	text, err := gen(ctx, BuildPrompt(r, opts))
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", name, ErrEmptyResponse)
	}
	return text, nil
}
