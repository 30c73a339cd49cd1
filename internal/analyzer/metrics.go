package analyzer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"indexreport/pkg/model"
)

const (
	// WeekDays is the number of trading days in a weekly bucket
	WeekDays = 5
	// MonthDays is the number of trading days in a monthly bucket
	MonthDays = 22
)

var (
	// ErrInvalidPrice is wrapped by InvalidPriceError
	ErrInvalidPrice = errors.New("invalid price")
	// ErrInsufficientData is returned when a series is too short for the mode
	ErrInsufficientData = errors.New("insufficient data for analysis")
)

// InvalidPriceError reports a price that cannot be used as a denominator
type InvalidPriceError struct {
	Field string
	Date  time.Time
	Value float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid %s price %v on %s", e.Field, e.Value, e.Date.Format(model.DateLayout))
}

func (e *InvalidPriceError) Unwrap() error {
	return ErrInvalidPrice
}

func checkPrice(field string, date time.Time, v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return &InvalidPriceError{Field: field, Date: date, Value: v}
	}
	return nil
}

func pctChange(from, to float64) float64 {
	return (to - from) / from * 100
}

// Analyze computes the report for mode. Weekly and monthly reports carry a
// daily snapshot computed from the same series.
func Analyze(series *model.PriceSeries, mode model.Mode) (*model.Report, error) {
	if series.Len() < mode.MinPoints() {
		return nil, fmt.Errorf("%w: %s needs %d points, have %d",
			ErrInsufficientData, mode, mode.MinPoints(), series.Len())
	}

	report := &model.Report{
		Mode:   mode,
		Symbol: series.Symbol,
		Source: series.Source,
	}

	daily, err := AnalyzeDaily(series)
	if err != nil {
		return nil, err
	}
	report.Daily = daily

	switch mode {
	case model.ModeDaily:
	case model.ModeWeekly:
		weekly, err := AnalyzeWeekly(series)
		if err != nil {
			return nil, err
		}
		report.Weekly = weekly
	case model.ModeMonthly:
		monthly, err := AnalyzeMonthly(series)
		if err != nil {
			return nil, err
		}
		report.Monthly = monthly
	default:
		return nil, fmt.Errorf("unknown mode %v", mode)
	}

	return report, nil
}

// AnalyzeDaily computes the last-session change and where the close sits
// within the series' high/low range.
func AnalyzeDaily(series *model.PriceSeries) (*model.DailyReport, error) {
	n := series.Len()
	if n < 2 {
		return nil, fmt.Errorf("%w: daily needs 2 points, have %d", ErrInsufficientData, n)
	}

	last := series.Points[n-1]
	prev := series.Points[n-2]
	if err := checkPrice("previous close", prev.Date, prev.Close); err != nil {
		return nil, err
	}
	if err := checkPrice("close", last.Date, last.Close); err != nil {
		return nil, err
	}

	hi := highest(series.Points)
	lo := lowest(series.Points)
	if err := checkPrice("period high", hi.Date, hi.High); err != nil {
		return nil, err
	}
	if err := checkPrice("period low", lo.Date, lo.Low); err != nil {
		return nil, err
	}

	return &model.DailyReport{
		Date:              last.Date,
		Close:             last.Close,
		PrevClose:         prev.Close,
		ChangePct:         pctChange(prev.Close, last.Close),
		PeriodHigh:        hi.High,
		PeriodLow:         lo.Low,
		RelativeToHighPct: pctChange(hi.High, last.Close),
		RelativeToLowPct:  pctChange(lo.Low, last.Close),
		Volume:            last.Volume,
		Days:              n,
		Indicators:        CalculateIndicators(series.Points),
	}, nil
}

// period holds the figures shared by weekly and monthly buckets
type period struct {
	points []model.PricePoint
	first  model.PricePoint
	last   model.PricePoint
	change float64
	high   model.PricePoint
	low    model.PricePoint
	total  int64
}

func bucket(series *model.PriceSeries, days int) (*period, error) {
	points := series.Tail(days).Points
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}

	p := &period{
		points: points,
		first:  points[0],
		last:   points[len(points)-1],
	}
	if err := checkPrice("period start close", p.first.Date, p.first.Close); err != nil {
		return nil, err
	}
	p.change = pctChange(p.first.Close, p.last.Close)
	p.high = highest(points)
	p.low = lowest(points)
	for _, pt := range points {
		p.total += pt.Volume
	}
	return p, nil
}

func (p *period) averageVolume() float64 {
	return float64(p.total) / float64(len(p.points))
}

// AnalyzeWeekly summarises the most recent WeekDays trading days
func AnalyzeWeekly(series *model.PriceSeries) (*model.WeeklyReport, error) {
	p, err := bucket(series, WeekDays)
	if err != nil {
		return nil, err
	}

	return &model.WeeklyReport{
		StartDate:     p.first.Date,
		EndDate:       p.last.Date,
		StartPrice:    p.first.Close,
		EndPrice:      p.last.Close,
		ChangePct:     p.change,
		High:          p.high.High,
		HighDate:      p.high.Date,
		Low:           p.low.Low,
		LowDate:       p.low.Date,
		AverageVolume: p.averageVolume(),
		TotalVolume:   p.total,
		Days:          len(p.points),
	}, nil
}

// AnalyzeMonthly summarises the most recent MonthDays trading days and
// locates the nearest support and resistance around the last close.
func AnalyzeMonthly(series *model.PriceSeries) (*model.MonthlyReport, error) {
	p, err := bucket(series, MonthDays)
	if err != nil {
		return nil, err
	}

	support, resistance := SupportResistance(p.points)

	return &model.MonthlyReport{
		Year:          p.last.Date.Year(),
		Month:         p.last.Date.Month(),
		StartDate:     p.first.Date,
		EndDate:       p.last.Date,
		StartPrice:    p.first.Close,
		EndPrice:      p.last.Close,
		ChangePct:     p.change,
		High:          p.high.High,
		HighDate:      p.high.Date,
		Low:           p.low.Low,
		LowDate:       p.low.Date,
		AverageVolume: p.averageVolume(),
		TotalVolume:   p.total,
		Days:          len(p.points),
		Support:       support,
		Resistance:    resistance,
	}, nil
}

// SupportResistance returns the nearest levels around the last close:
// support is the highest low strictly below it and resistance the lowest
// high strictly above it, both taken from the bars before the last one.
// A side with no qualifying bar is nil.
func SupportResistance(points []model.PricePoint) (support, resistance *float64) {
	if len(points) < 2 {
		return nil, nil
	}
	current := points[len(points)-1].Close

	for _, pt := range points[:len(points)-1] {
		if pt.Low < current && (support == nil || pt.Low > *support) {
			v := pt.Low
			support = &v
		}
		if pt.High > current && (resistance == nil || pt.High < *resistance) {
			v := pt.High
			resistance = &v
		}
	}
	return support, resistance
}

// highest returns the bar with the maximum high; ties keep the earliest
func highest(points []model.PricePoint) model.PricePoint {
	idx := 0
	for i, p := range points {
		if p.High > points[idx].High {
			idx = i
		}
	}
	return points[idx]
}

// lowest returns the bar with the minimum low; ties keep the earliest
func lowest(points []model.PricePoint) model.PricePoint {
	idx := 0
	for i, p := range points {
		if p.Low < points[idx].Low {
			idx = i
		}
	}
	return points[idx]
}
