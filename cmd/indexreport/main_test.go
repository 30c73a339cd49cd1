package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"indexreport/internal/calendar"
	"indexreport/pkg/model"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("bad flag"), exitUsage},
		{&exitError{code: exitRunFailed, err: errors.New("fetch")}, exitRunFailed},
		{fmt.Errorf("wrapped: %w", &exitError{code: exitNotifyFailed, err: errors.New("smtp")}), exitNotifyFailed},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestParseModeFlag(t *testing.T) {
	for _, s := range []string{"auto", "AUTO", ""} {
		m, err := parseModeFlag(s)
		if err != nil || m != nil {
			t.Errorf("parseModeFlag(%q) = %v, %v; want nil, nil", s, m, err)
		}
	}

	m, err := parseModeFlag("weekly")
	if err != nil || m == nil || *m != model.ModeWeekly {
		t.Errorf("parseModeFlag(weekly) = %v, %v", m, err)
	}

	if _, err := parseModeFlag("hourly"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestParseFrom(t *testing.T) {
	loc := calendar.LoadLocation(calendar.DefaultTimezone)
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

	got, err := parseFrom("", loc, now)
	if err != nil || !got.Equal(now) {
		t.Errorf("empty --from = %v, %v", got, err)
	}

	got, err = parseFrom("2024-05-31T18:30", loc, now)
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour() != 18 || got.Minute() != 30 || got.Location() != loc {
		t.Errorf("parseFrom = %v", got)
	}

	got, err = parseFrom("2024-05-31", loc, now)
	if err != nil || got.Day() != 31 || got.Hour() != 0 {
		t.Errorf("date-only --from = %v, %v", got, err)
	}

	if _, err := parseFrom("31/05/2024", loc, now); err == nil {
		t.Error("expected error for unsupported layout")
	}
}

func TestRunNextRejectsNonPositiveCount(t *testing.T) {
	saved := countFlag
	defer func() { countFlag = saved }()

	for _, n := range []int{0, -1} {
		countFlag = n
		if got := exitCode(runNext(nil, nil)); got != exitUsage {
			t.Errorf("--count %d exit code = %d, want %d", n, got, exitUsage)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a@example.com,,b@example.com ")
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Errorf("splitList = %v", got)
	}
	if splitList("") != nil {
		t.Error("empty input should give nil")
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "next", "schedule"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not registered: %v", name, err)
		}
	}
	run, _, _ := root.Find([]string{"run"})
	for _, flag := range []string{"mode", "send-email", "format", "fail-on-notify", "to"} {
		if run.Flags().Lookup(flag) == nil {
			t.Errorf("run is missing --%s", flag)
		}
	}
	for _, flag := range []string{"config", "debug", "symbol"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("root is missing --%s", flag)
		}
	}
}
