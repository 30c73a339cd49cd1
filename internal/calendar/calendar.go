package calendar

import (
	"fmt"
	"strings"
	"time"

	"indexreport/pkg/model"
)

// DefaultTimezone is the exchange time zone of the default index
const DefaultTimezone = "Asia/Shanghai"

// Calendar answers business-day questions in a fixed time zone.
// A business day is Monday to Friday and not a configured holiday.
type Calendar struct {
	loc      *time.Location
	holidays map[string]struct{}
}

// New creates a calendar. holidays are YYYY-MM-DD dates in the calendar's
// time zone.
func New(timezone string, holidays []string) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	c := &Calendar{
		loc:      LoadLocation(timezone),
		holidays: make(map[string]struct{}, len(holidays)),
	}
	for _, h := range holidays {
		h = strings.TrimSpace(h)
		if _, err := time.Parse(model.DateLayout, h); err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		c.holidays[h] = struct{}{}
	}
	return c, nil
}

// LoadLocation loads a time zone, falling back to a fixed UTC+8 zone for
// the default when the tz database is missing, and to UTC otherwise.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == DefaultTimezone {
		return time.FixedZone("CST", 8*60*60)
	}
	return time.UTC
}

// Location returns the calendar's time zone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsHoliday reports whether t falls on a configured holiday
func (c *Calendar) IsHoliday(t time.Time) bool {
	_, ok := c.holidays[t.In(c.loc).Format(model.DateLayout)]
	return ok
}

// IsBusinessDay reports whether t is a weekday and not a holiday
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	switch t.In(c.loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(t)
}

// IsFriday reports whether t is a Friday in the calendar's zone
func (c *Calendar) IsFriday(t time.Time) bool {
	return t.In(c.loc).Weekday() == time.Friday
}

// IsLastBusinessDayOfMonth reports whether t is a business day and no later
// day of the same month is one.
func (c *Calendar) IsLastBusinessDayOfMonth(t time.Time) bool {
	local := t.In(c.loc)
	if !c.IsBusinessDay(local) {
		return false
	}
	for d := local.AddDate(0, 0, 1); d.Month() == local.Month(); d = d.AddDate(0, 0, 1) {
		if c.IsBusinessDay(d) {
			return false
		}
	}
	return true
}

// InferMode picks the report mode for a date: the last business day of the
// month is monthly, otherwise a Friday is weekly, otherwise daily.
func (c *Calendar) InferMode(t time.Time) model.Mode {
	switch {
	case c.IsLastBusinessDayOfMonth(t):
		return model.ModeMonthly
	case c.IsFriday(t):
		return model.ModeWeekly
	default:
		return model.ModeDaily
	}
}

// NextRun returns the first instant strictly after from, at hour:minute
// local time, on which a report of the given mode is due: any business day
// for daily, a business-day Friday for weekly, and the last business day of
// the month for monthly.
func (c *Calendar) NextRun(mode model.Mode, from time.Time, hour, minute int) time.Time {
	local := from.In(c.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, c.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}

	// a due date always exists within the next two months
	for i := 0; i < 70; i++ {
		if c.due(mode, next) {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (c *Calendar) due(mode model.Mode, t time.Time) bool {
	switch mode {
	case model.ModeWeekly:
		return c.IsFriday(t) && c.IsBusinessDay(t)
	case model.ModeMonthly:
		return c.IsLastBusinessDayOfMonth(t)
	default:
		return c.IsBusinessDay(t)
	}
}

// Describe renders a one-line summary of the calendar facts for t
func (c *Calendar) Describe(t time.Time) string {
	local := t.In(c.loc)
	return fmt.Sprintf("%s %s | business day: %s | friday: %s | last business day of month: %s | mode: %s",
		local.Format("2006-01-02 15:04 MST"),
		local.Weekday(),
		yesNo(c.IsBusinessDay(local)),
		yesNo(c.IsFriday(local)),
		yesNo(c.IsLastBusinessDayOfMonth(local)),
		c.InferMode(local),
	)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
