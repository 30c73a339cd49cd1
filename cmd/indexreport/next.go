package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"indexreport/internal/calendar"
	"indexreport/pkg/model"
)

var (
	fromFlag  string
	countFlag int
)

func newNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show calendar info and upcoming scheduled runs",
		Args:  cobra.NoArgs,
		RunE:  runNext,
	}
	cmd.Flags().StringVar(&fromFlag, "from", "", "reference time, 2006-01-02 or 2006-01-02T15:04 (default: now)")
	cmd.Flags().IntVar(&countFlag, "count", 5, "number of upcoming runs to list")
	return cmd
}

var fromLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", model.DateLayout}

// parseFrom reads a local time in loc; empty means now
func parseFrom(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if s == "" {
		return now.In(loc), nil
	}
	for _, layout := range fromLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --from %q (want 2006-01-02 or 2006-01-02T15:04)", s)
}

func runNext(cmd *cobra.Command, args []string) error {
	if countFlag < 1 {
		return &exitError{code: exitUsage, err: fmt.Errorf("--count must be at least 1, got %d", countFlag)}
	}

	a, err := newApp()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	from, err := parseFrom(fromFlag, a.cal.Location(), time.Now())
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	fmt.Println(a.cal.Describe(from))
	fmt.Println()

	ticks, err := a.cal.Upcoming(a.cfg.Schedule.Spec, from, countFlag)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	fmt.Printf("Schedule %q (%s):\n\n", a.cfg.Schedule.Spec, a.cal.Location())
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"When", "Weekday", "Mode"}),
	)
	for _, t := range ticks {
		table.Append([]string{
			t.At.Format("2006-01-02 15:04"),
			t.At.Weekday().String(),
			t.Mode.String(),
		})
	}
	table.Render()

	hour, minute := 20, 0
	if len(ticks) > 0 {
		hour, minute = ticks[0].At.Hour(), ticks[0].At.Minute()
	}
	fmt.Println()
	for _, m := range model.Modes {
		fmt.Printf("Next %-7s report: %s\n", m, a.cal.NextRun(m, from, hour, minute).Format("2006-01-02 15:04 MST"))
	}
	return nil
}

// describeTick is used in schedule logs
func describeTick(cal *calendar.Calendar, t time.Time) string {
	return fmt.Sprintf("%s (%s)", t.In(cal.Location()).Format("2006-01-02 15:04"), cal.InferMode(t))
}
