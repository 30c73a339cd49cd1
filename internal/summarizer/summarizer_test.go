package summarizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexreport/pkg/model"
)

func dailyReport() *model.Report {
	date := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	return &model.Report{
		Mode:   model.ModeDaily,
		Symbol: "000300.SH",
		Source: "tushare",
		Daily: &model.DailyReport{
			Date:              date,
			Close:             103,
			PrevClose:         105,
			ChangePct:         -1.9047,
			PeriodHigh:        105,
			PeriodLow:         100,
			RelativeToHighPct: -1.9047,
			RelativeToLowPct:  3,
			Volume:            5000,
			Indicators:        &model.Indicators{MA5: 102.2, HasMA5: true, MACD: 0.5, MACDSignal: 0.3},
		},
	}
}

func monthlyReport() *model.Report {
	support := 3400.5
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	r := dailyReport()
	r.Mode = model.ModeMonthly
	r.Monthly = &model.MonthlyReport{
		Year: 2024, Month: time.February,
		StartDate: start, EndDate: end,
		StartPrice: 3300, EndPrice: 3500, ChangePct: 6.06,
		High: 3550, HighDate: end, Low: 3280, LowDate: start,
		AverageVolume: 1000, TotalVolume: 20000, Days: 20,
		Support: &support,
	}
	return r
}

func TestBuildPromptPerMode(t *testing.T) {
	daily := BuildPrompt(dailyReport(), PromptOptions{})
	assert.Contains(t, daily, "CSI 300 data")
	assert.Contains(t, daily, "Price Change: -1.90%")
	assert.Contains(t, daily, "MA5: 102.20")
	assert.NotContains(t, daily, "MA20")
	assert.Contains(t, daily, "respond in English")

	monthly := BuildPrompt(monthlyReport(), PromptOptions{Language: "Chinese"})
	assert.Contains(t, monthly, "Month: 2024-02")
	assert.Contains(t, monthly, "Support: 3400.50 CNY")
	assert.Contains(t, monthly, "Resistance: none in range")
	assert.Contains(t, monthly, "respond in Chinese")
}

func TestSummarizeTrimsAnswer(t *testing.T) {
	var prompt string
	s := &GeminiSummarizer{
		config: GeminiConfig{Model: "test"},
		logger: zerolog.Nop(),
		generate: func(ctx context.Context, p string) (string, error) {
			prompt = p
			return "  Markets were calm.\n", nil
		},
	}

	text, err := s.Summarize(context.Background(), dailyReport())
	require.NoError(t, err)
	assert.Equal(t, "Markets were calm.", text)
	assert.Contains(t, prompt, "Date: 2024-03-08")
}

func TestSummarizeEmptyAnswer(t *testing.T) {
	s := &ClaudeSummarizer{
		logger: zerolog.Nop(),
		generate: func(ctx context.Context, p string) (string, error) {
			return "   ", nil
		},
	}

	_, err := s.Summarize(context.Background(), dailyReport())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResponse))
	assert.Contains(t, err.Error(), "claude")
}

func TestSummarizeHonoursContext(t *testing.T) {
	s := &GeminiSummarizer{
		logger: zerolog.Nop(),
		generate: func(ctx context.Context, p string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Summarize(ctx, dailyReport())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewSelectsImplementation(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Options{Provider: "none"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "none", s.Name())

	s, err = New(ctx, Options{Provider: "gemini"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, Noop{}, s, "missing key should degrade to Noop")

	s, err = New(ctx, Options{Provider: "claude", Claude: ClaudeConfig{APIKey: "sk-test"}}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "claude", s.Name())

	_, err = New(ctx, Options{Provider: "gpt"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	text, err := Noop{}.Summarize(context.Background(), dailyReport())
	assert.NoError(t, err)
	assert.Empty(t, text)
}
