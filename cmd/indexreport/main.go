package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit status
const (
	exitOK           = 0
	exitUsage        = 1 // bad flags or configuration
	exitRunFailed    = 2 // fetch or analysis failed, nothing was sent
	exitNotifyFailed = 3 // report computed but not delivered, with --fail-on-notify
)

var (
	cfgFile    string
	debug      bool
	symbolFlag string
)

// exitError carries the process exit status for an error
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUsage
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "indexreport",
		Short: "Daily, weekly and monthly index investment reports",
		Long: `indexreport fetches daily bars for an equity index from an ordered list of
data providers (first success wins), computes daily, weekly or monthly
metrics, optionally asks an AI model for a narrative and delivers the
report by e-mail and/or Telegram.

Exit status:
  0  report computed (summary or delivery failures are logged, not fatal)
  1  invalid flags or configuration
  2  fetch or analysis failed; nothing was sent
  3  report computed but delivery failed and --fail-on-notify was given

Examples:
  indexreport run --mode daily
  indexreport run --mode auto --send-email
  indexreport next --from 2024-05-31
  indexreport schedule`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&symbolFlag, "symbol", "", "index symbol (overrides config)")

	rootCmd.AddCommand(newRunCmd(), newNextCmd(), newScheduleCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
