package model

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used across reports and providers
const DateLayout = "2006-01-02"

var (
	// ErrTooShort is returned when a series has fewer points than required
	ErrTooShort = errors.New("series too short")
	// ErrNotMonotonic is returned when dates are not strictly increasing
	ErrNotMonotonic = errors.New("series dates not strictly increasing")
	// ErrNegativeVolume is returned when a point reports a volume below zero
	ErrNegativeVolume = errors.New("negative volume")
)

// PricePoint represents a single trading day (OHLCV data)
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Day returns the calendar date of the point, stripped of clock time
func (p PricePoint) Day() time.Time {
	y, m, d := p.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PriceSeries is an ordered run of daily points for one symbol
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Source string       `json:"source"` // provider that served the data
	Points []PricePoint `json:"points"`
}

// Len returns the number of points
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Last returns the most recent point
func (s *PriceSeries) Last() PricePoint {
	return s.Points[len(s.Points)-1]
}

// Tail returns a copy of the series holding only the n most recent points.
// If n exceeds the length, the whole series is copied.
func (s *PriceSeries) Tail(n int) *PriceSeries {
	start := len(s.Points) - n
	if start < 0 {
		start = 0
	}
	points := make([]PricePoint, len(s.Points)-start)
	copy(points, s.Points[start:])
	return &PriceSeries{Symbol: s.Symbol, Source: s.Source, Points: points}
}

// Validate checks ordering, volumes and minimum length
func (s *PriceSeries) Validate(minPoints int) error {
	if s.Len() < minPoints {
		return fmt.Errorf("%w: have %d points, need %d", ErrTooShort, s.Len(), minPoints)
	}
	for _, p := range s.Points {
		if p.Volume < 0 {
			return fmt.Errorf("%w: %d on %s", ErrNegativeVolume, p.Volume, p.Day().Format(DateLayout))
		}
	}
	for i := 1; i < len(s.Points); i++ {
		prev, cur := s.Points[i-1].Day(), s.Points[i].Day()
		if !cur.After(prev) {
			return fmt.Errorf("%w: %s follows %s", ErrNotMonotonic,
				cur.Format(DateLayout), prev.Format(DateLayout))
		}
	}
	return nil
}

// Window describes the span of trading days requested from a provider
type Window struct {
	Count int       `json:"count"`
	Unit  string    `json:"unit"`            // always "days"
	Min   int       `json:"min,omitempty"`   // fewer points is insufficient data
	Start time.Time `json:"start,omitempty"` // optional range bounds
	End   time.Time `json:"end,omitempty"`
}

// DaysWindow returns a window of count trading days
func DaysWindow(count int) Window {
	return Window{Count: count, Unit: "days", Min: 1}
}

// MinPoints returns the minimum acceptable length, at least 1
func (w Window) MinPoints() int {
	if w.Min < 1 {
		return 1
	}
	return w.Min
}

// CalendarSpan returns a generous calendar-day span that covers Count
// trading days including weekends and holidays.
func (w Window) CalendarSpan() int {
	span := w.Count*7/5 + 10
	if span < 14 {
		span = 14
	}
	return span
}
