package calendar

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"indexreport/pkg/model"
)

// DefaultSpec fires at 20:00 on weekdays; the mode is inferred per tick
const DefaultSpec = "0 20 * * 1-5"

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec parses a standard five-field cron spec
func ParseSpec(spec string) (cron.Schedule, error) {
	sched, err := specParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return sched, nil
}

// Tick is a planned trigger and the mode it would run
type Tick struct {
	At   time.Time
	Mode model.Mode
}

// Upcoming lists the next n fire times of spec after from, evaluated in the
// calendar's zone. Ticks on non-business days are skipped.
func (c *Calendar) Upcoming(spec string, from time.Time, n int) ([]Tick, error) {
	sched, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}

	if n < 1 {
		return nil, fmt.Errorf("tick count must be positive, got %d", n)
	}

	ticks := make([]Tick, 0, n)
	t := from.In(c.loc)
	// bounded: a spec may fire only on non-business days
	for i := 0; len(ticks) < n && i < n*50; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		if !c.IsBusinessDay(t) {
			continue
		}
		ticks = append(ticks, Tick{At: t, Mode: c.InferMode(t)})
	}
	return ticks, nil
}
