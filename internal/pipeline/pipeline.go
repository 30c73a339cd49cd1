package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"indexreport/internal/analyzer"
	"indexreport/internal/calendar"
	"indexreport/internal/notifier"
	"indexreport/internal/provider"
	"indexreport/internal/render"
	"indexreport/internal/summarizer"
	"indexreport/pkg/model"
)

const (
	DefaultSummarizeTimeout = 60 * time.Second
	DefaultNotifyTimeout    = 60 * time.Second
)

// Stage names a step of a run
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageAnalyze   Stage = "analyze"
	StageSummarize Stage = "summarize"
	StageRender    Stage = "render"
	StageNotify    Stage = "notify"
)

// Stages lists every stage in execution order
var Stages = []Stage{StageFetch, StageAnalyze, StageSummarize, StageRender, StageNotify}

// StageError is returned when a run aborts. Only fetch and analysis abort.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Config wires a pipeline's collaborators
type Config struct {
	Symbol     string
	Provider   provider.Provider
	Summarizer summarizer.Summarizer
	Notifier   notifier.Notifier
	Calendar   *calendar.Calendar
	Render     render.Options

	SummarizeTimeout time.Duration
	NotifyTimeout    time.Duration

	Logger zerolog.Logger

	// Progress is called as each stage starts. Optional.
	Progress func(Stage)
}

// Pipeline runs fetch, analysis, summary, rendering and delivery once per call
type Pipeline struct {
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a pipeline
func New(cfg Config) (*Pipeline, error) {
	if cfg.Symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if cfg.Calendar == nil {
		cal, err := calendar.New(calendar.DefaultTimezone, nil)
		if err != nil {
			return nil, err
		}
		cfg.Calendar = cal
	}
	if cfg.Summarizer == nil {
		cfg.Summarizer = summarizer.Noop{}
	}
	if cfg.SummarizeTimeout <= 0 {
		cfg.SummarizeTimeout = DefaultSummarizeTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}

	return &Pipeline{
		config: cfg,
		logger: cfg.Logger.With().Str("component", "pipeline").Logger(),
		now:    time.Now,
	}, nil
}

// Request describes one run
type Request struct {
	Mode       *model.Mode // nil infers the mode from Now
	Now        time.Time   // zero means the current time
	Send       bool
	Recipients []string // empty uses the notifier's defaults
}

// Outcome is the result of a run that got past analysis
type Outcome struct {
	RunID        uuid.UUID
	Mode         model.Mode
	Inferred     bool
	Report       *model.Report
	Rendered     notifier.Message
	Narrative    string
	SummarizeErr error
	NotifyErr    error
	Delivered    bool
	Duration     time.Duration
}

// WindowFor returns the fetch window for a mode
func WindowFor(mode model.Mode) model.Window {
	return model.Window{
		Count: mode.Lookback(),
		Unit:  "days",
		Min:   mode.MinPoints(),
	}
}

// ResolveMode returns the requested mode, or the calendar's choice for now
func (p *Pipeline) ResolveMode(requested *model.Mode, now time.Time) (model.Mode, bool) {
	if requested != nil {
		return *requested, false
	}
	return p.config.Calendar.InferMode(now), true
}

// Run executes one report run. A non-nil error is always a *StageError and
// means no report was produced or sent. Summarizer and notifier failures
// are reported on the Outcome instead.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	now := req.Now
	if now.IsZero() {
		now = p.now()
	}

	mode, inferred := p.ResolveMode(req.Mode, now)
	out := &Outcome{RunID: uuid.New(), Mode: mode, Inferred: inferred}
	logger := p.logger.With().
		Str("run_id", out.RunID.String()).
		Str("mode", mode.String()).
		Str("symbol", p.config.Symbol).
		Logger()
	logger.Info().Bool("inferred", inferred).Time("at", now).Msg("report run started")

	// one cache per run: the daily snapshot reuses the period fetch
	source := provider.NewCachingProvider(p.config.Provider, model.ModeDaily.Lookback())

	p.progress(StageFetch)
	series, err := source.GetDailySeries(ctx, p.config.Symbol, WindowFor(mode))
	if err != nil {
		logger.Error().Err(err).Msg("fetch failed, run aborted")
		return out, &StageError{Stage: StageFetch, Err: err}
	}
	logger.Debug().Str("source", series.Source).Int("points", series.Len()).Msg("series fetched")

	p.progress(StageAnalyze)
	report, err := analyzer.Analyze(series, mode)
	if err != nil {
		logger.Error().Err(err).Msg("analysis failed, run aborted")
		return out, &StageError{Stage: StageAnalyze, Err: err}
	}
	if mode != model.ModeDaily {
		p.refreshDaily(ctx, source, report, logger)
	}
	report.GeneratedAt = now

	p.progress(StageSummarize)
	narrative, err := p.summarize(ctx, report)
	if err != nil {
		out.SummarizeErr = err
		logger.Warn().Err(err).Str("summarizer", p.config.Summarizer.Name()).Msg("summary unavailable, continuing without narrative")
	}
	if narrative != "" {
		report = report.WithNarrative(narrative)
	}
	out.Report = report
	out.Narrative = narrative

	p.progress(StageRender)
	out.Rendered = p.render(report, logger)

	if req.Send {
		p.progress(StageNotify)
		if err := p.notify(ctx, out.Rendered, req.Recipients); err != nil {
			out.NotifyErr = err
			logger.Warn().Err(err).Msg("report computed but not delivered")
		} else {
			out.Delivered = true
		}
	}

	out.Duration = time.Since(start)
	logger.Info().
		Bool("narrative", narrative != "").
		Bool("delivered", out.Delivered).
		Dur("duration", out.Duration).
		Msg("report run finished")
	return out, nil
}

// refreshDaily replaces the snapshot computed from the period window with
// one computed over the full daily lookback, served from the run cache.
func (p *Pipeline) refreshDaily(ctx context.Context, source provider.Provider, report *model.Report, logger zerolog.Logger) {
	full, err := source.GetDailySeries(ctx, p.config.Symbol, WindowFor(model.ModeDaily))
	if err != nil {
		logger.Debug().Err(err).Msg("keeping period-window daily snapshot")
		return
	}
	daily, err := analyzer.AnalyzeDaily(full)
	if err != nil {
		logger.Debug().Err(err).Msg("keeping period-window daily snapshot")
		return
	}
	report.Daily = daily
}

func (p *Pipeline) summarize(ctx context.Context, report *model.Report) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.SummarizeTimeout)
	defer cancel()

	text, err := p.config.Summarizer.Summarize(ctx, report)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (p *Pipeline) render(report *model.Report, logger zerolog.Logger) notifier.Message {
	text := render.Markdown(report, p.config.Render)
	msg := notifier.Message{
		Subject: render.Subject(report, p.config.Render),
		Text:    text,
	}
	html, err := render.HTML(text)
	if err != nil {
		logger.Warn().Err(err).Msg("html rendering failed, sending plain text only")
		return msg
	}
	msg.HTML = html
	return msg
}

func (p *Pipeline) notify(ctx context.Context, msg notifier.Message, recipients []string) error {
	if p.config.Notifier == nil {
		return &notifier.NotifyError{Channel: "none", Err: notifier.ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.NotifyTimeout)
	defer cancel()
	return p.config.Notifier.Send(ctx, msg, recipients)
}

func (p *Pipeline) progress(s Stage) {
	if p.config.Progress != nil {
		p.config.Progress(s)
	}
}
