package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"indexreport/internal/calendar"
	"indexreport/internal/pipeline"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run reports on the configured cron schedule until interrupted",
		Long: `Run reports on the configured cron schedule (schedule.spec, default
"0 20 * * 1-5") in the calendar time zone. Each tick on a business day runs
one independent report in auto mode and delivers it.`,
		Args: cobra.NoArgs,
		RunE: runSchedule,
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	sched, err := calendar.ParseSpec(a.cfg.Schedule.Spec)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pl, err := a.pipeline(ctx, nil)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	logger := a.logger.With().Str("component", "scheduler").Logger()
	clog := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(a.cal.Location()),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	c.Schedule(sched, cron.FuncJob(func() {
		runScheduled(ctx, a.cal, pl, logger, time.Now())
	}))

	c.Start()
	next := sched.Next(time.Now().In(a.cal.Location()))
	logger.Info().
		Str("spec", a.cfg.Schedule.Spec).
		Str("next", describeTick(a.cal, next)).
		Msg("scheduler started")
	fmt.Printf("Scheduler running (%s, %s). Press Ctrl+C to stop.\n", a.cfg.Schedule.Spec, a.cal.Location())

	<-ctx.Done()
	logger.Info().Msg("stopping scheduler, waiting for a running report")
	<-c.Stop().Done()
	return nil
}

// runScheduled runs one auto-mode report for a cron tick. Failures are
// logged; the scheduler keeps running.
func runScheduled(ctx context.Context, cal *calendar.Calendar, pl *pipeline.Pipeline, logger zerolog.Logger, now time.Time) {
	if !cal.IsBusinessDay(now) {
		logger.Info().Str("date", now.In(cal.Location()).Format("2006-01-02")).Msg("not a business day, skipping")
		return
	}

	out, err := pl.Run(ctx, pipeline.Request{Now: now, Send: true})
	if err != nil {
		logger.Error().Err(err).Msg("scheduled report failed")
		return
	}
	if out.NotifyErr != nil {
		logger.Warn().Err(out.NotifyErr).Str("run_id", out.RunID.String()).Msg("scheduled report not delivered")
	}
}
