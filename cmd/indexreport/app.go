package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"indexreport/internal/calendar"
	"indexreport/internal/config"
	"indexreport/internal/logging"
	"indexreport/internal/notifier"
	"indexreport/internal/pipeline"
	"indexreport/internal/provider"
	"indexreport/internal/ratelimit"
	"indexreport/internal/render"
	"indexreport/internal/summarizer"
)

// app holds what every subcommand needs
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	cal    *calendar.Calendar
	limits *ratelimit.MultiLimiter
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if symbolFlag != "" {
		cfg.Symbol = symbolFlag
	}
	if debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Pretty = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Pretty || logging.IsTerminal(os.Stderr))

	cal, err := calendar.New(cfg.Calendar.Timezone, cfg.Calendar.Holidays)
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		cal:    cal,
		limits: ratelimit.NewMultiLimiter(),
	}, nil
}

// providers builds the configured providers in fallback order. Providers
// without credentials stay in the list so failures name every source.
func (a *app) providers() []provider.Provider {
	var providers []provider.Provider

	for _, pc := range a.cfg.Providers {
		opts := []provider.Option{
			provider.WithLimiter(a.limits.GetOrAdd(pc.Name, pc.RateLimit)),
			provider.WithTickers(pc.Tickers),
		}
		if pc.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(pc.BaseURL))
		}

		switch pc.Name {
		case "tushare":
			providers = append(providers, provider.NewTushareProvider(pc.Key, pc.RateLimit, opts...))
		case "alphavantage":
			providers = append(providers, provider.NewAlphaVantageProvider(pc.Key, pc.RateLimit, opts...))
		case "finnhub":
			providers = append(providers, provider.NewFinnhubProvider(pc.Key, pc.RateLimit, opts...))
		case "yahoo":
			providers = append(providers, provider.NewYahooProvider(pc.RateLimit, opts...))
		}
	}

	return providers
}

func (a *app) summarizer(ctx context.Context) (summarizer.Summarizer, error) {
	prompt := summarizer.PromptOptions{
		IndexName: a.cfg.IndexName,
		Currency:  a.cfg.Currency,
		Language:  a.cfg.Summarizer.Language,
	}
	return summarizer.New(ctx, summarizer.Options{
		Provider: a.cfg.Summarizer.Provider,
		Gemini: summarizer.GeminiConfig{
			APIKey:      a.cfg.Summarizer.GeminiKey,
			Model:       a.cfg.Summarizer.Model,
			Temperature: a.cfg.Summarizer.Temperature,
			Prompt:      prompt,
		},
		Claude: summarizer.ClaudeConfig{
			APIKey:      a.cfg.Summarizer.ClaudeKey,
			Model:       a.cfg.Summarizer.Model,
			MaxTokens:   a.cfg.Summarizer.MaxTokens,
			Temperature: a.cfg.Summarizer.Temperature,
			Prompt:      prompt,
		},
	}, a.logger)
}

// notifier returns every enabled channel, or nil when none is configured
func (a *app) notifier() notifier.Notifier {
	var channels notifier.Multi

	if e := a.cfg.Email; e.Enabled() {
		channels = append(channels, notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:     e.SMTPServer,
			Port:     e.SMTPPort,
			Username: e.Username,
			Password: e.Password,
			From:     e.From,
			FromName: e.FromName,
			To:       e.To,
		}, a.logger))
	}
	if t := a.cfg.Telegram; t.Enabled() {
		channels = append(channels, notifier.NewTelegramNotifier(t.Token, t.ChatID, a.logger))
	}

	if len(channels) == 0 {
		return nil
	}
	return channels
}

func (a *app) pipeline(ctx context.Context, progress func(pipeline.Stage)) (*pipeline.Pipeline, error) {
	sum, err := a.summarizer(ctx)
	if err != nil {
		return nil, err
	}

	fallback := provider.NewFallbackProvider(a.logger, a.cfg.Timeouts.Provider, a.providers()...)
	if !fallback.IsAvailable() {
		a.logger.Warn().Msg("no provider has credentials configured")
	}

	return pipeline.New(pipeline.Config{
		Symbol:     a.cfg.Symbol,
		Provider:   fallback,
		Summarizer: sum,
		Notifier:   a.notifier(),
		Calendar:   a.cal,
		Render: render.Options{
			IndexName: a.cfg.IndexName,
			Currency:  a.cfg.Currency,
		},
		SummarizeTimeout: a.cfg.Timeouts.Summarizer,
		NotifyTimeout:    a.cfg.Timeouts.Notifier,
		Logger:           a.logger,
		Progress:         progress,
	})
}
