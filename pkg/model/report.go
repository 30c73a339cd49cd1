package model

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects the analysis period
type Mode int

const (
	ModeDaily Mode = iota
	ModeWeekly
	ModeMonthly
)

// Modes lists every mode in dispatch order
var Modes = []Mode{ModeDaily, ModeWeekly, ModeMonthly}

func (m Mode) String() string {
	switch m {
	case ModeDaily:
		return "daily"
	case ModeWeekly:
		return "weekly"
	case ModeMonthly:
		return "monthly"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MinPoints is the shortest series a provider may return for the mode
func (m Mode) MinPoints() int {
	switch m {
	case ModeWeekly:
		return 5
	case ModeMonthly:
		return 20
	default:
		return 2
	}
}

// Lookback is the number of trading days requested for the mode.
// Weekly buckets the last 5 trading days, monthly the last 22.
func (m Mode) Lookback() int {
	switch m {
	case ModeWeekly:
		return 5
	case ModeMonthly:
		return 22
	default:
		return 30
	}
}

// MarshalText implements encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode converts "daily", "weekly" or "monthly" to a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "d":
		return ModeDaily, nil
	case "weekly", "week", "w":
		return ModeWeekly, nil
	case "monthly", "month", "m":
		return ModeMonthly, nil
	}
	return ModeDaily, fmt.Errorf("invalid mode %q (supported: daily, weekly, monthly)", s)
}

// Indicators holds optional technical indicators on the daily report.
// A zero Has* flag means the series was too short for that indicator.
type Indicators struct {
	MA5           float64 `json:"ma5,omitempty"`
	MA20          float64 `json:"ma20,omitempty"`
	RSI14         float64 `json:"rsi14,omitempty"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	HasMA5        bool    `json:"-"`
	HasMA20       bool    `json:"-"`
	HasRSI        bool    `json:"-"`
}

// DailyReport contains the last-session change and its position in the range
type DailyReport struct {
	Date              time.Time   `json:"date"`
	Close             float64     `json:"close"`
	PrevClose         float64     `json:"prev_close"`
	ChangePct         float64     `json:"change_pct"`
	PeriodHigh        float64     `json:"period_high"`
	PeriodLow         float64     `json:"period_low"`
	RelativeToHighPct float64     `json:"relative_to_high_pct"` // <= 0 unless at a new high
	RelativeToLowPct  float64     `json:"relative_to_low_pct"`  // distance above the low
	Volume            int64       `json:"volume"`
	Days              int         `json:"days"`
	Indicators        *Indicators `json:"indicators,omitempty"`
}

// WeeklyReport covers the trailing trading week
type WeeklyReport struct {
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	StartPrice    float64   `json:"start_price"`
	EndPrice      float64   `json:"end_price"`
	ChangePct     float64   `json:"change_pct"`
	High          float64   `json:"high"`
	HighDate      time.Time `json:"high_date"`
	Low           float64   `json:"low"`
	LowDate       time.Time `json:"low_date"`
	AverageVolume float64   `json:"average_volume"`
	TotalVolume   int64     `json:"total_volume"`
	Days          int       `json:"days"`
}

// MonthlyReport covers the trailing trading month
type MonthlyReport struct {
	Year          int        `json:"year"`
	Month         time.Month `json:"month"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       time.Time  `json:"end_date"`
	StartPrice    float64    `json:"start_price"`
	EndPrice      float64    `json:"end_price"`
	ChangePct     float64    `json:"change_pct"`
	High          float64    `json:"high"`
	HighDate      time.Time  `json:"high_date"`
	Low           float64    `json:"low"`
	LowDate       time.Time  `json:"low_date"`
	AverageVolume float64    `json:"average_volume"`
	TotalVolume   int64      `json:"total_volume"`
	Days          int        `json:"days"`
	Support       *float64   `json:"support,omitempty"`    // nil when no low sits below the close
	Resistance    *float64   `json:"resistance,omitempty"` // nil when no high sits above the close
	Outlook       string     `json:"outlook,omitempty"`    // only ever set from the narrative
}

// Report is the mode-tagged analysis result. Exactly one of Daily (for
// ModeDaily), Weekly or Monthly is the primary payload; weekly and monthly
// reports also carry a Daily snapshot computed from the same series.
type Report struct {
	Mode        Mode           `json:"mode"`
	Symbol      string         `json:"symbol"`
	Source      string         `json:"source"`
	GeneratedAt time.Time      `json:"generated_at"`
	Daily       *DailyReport   `json:"daily,omitempty"`
	Weekly      *WeeklyReport  `json:"weekly,omitempty"`
	Monthly     *MonthlyReport `json:"monthly,omitempty"`
	Narrative   string         `json:"narrative,omitempty"`
}

// WithNarrative returns a copy of the report annotated with an AI narrative.
// The receiver is left untouched.
func (r *Report) WithNarrative(text string) *Report {
	out := *r
	out.Narrative = text
	if r.Monthly != nil {
		m := *r.Monthly
		m.Outlook = text
		out.Monthly = &m
	}
	return &out
}

// ReferenceDate returns the date of the most recent bar in the report
func (r *Report) ReferenceDate() time.Time {
	switch {
	case r.Monthly != nil && r.Mode == ModeMonthly:
		return r.Monthly.EndDate
	case r.Weekly != nil && r.Mode == ModeWeekly:
		return r.Weekly.EndDate
	case r.Daily != nil:
		return r.Daily.Date
	}
	return time.Time{}
}
