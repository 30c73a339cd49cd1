package analyzer

import (
	"indexreport/pkg/model"
)

// Standard indicator periods
const (
	RSIPeriod  = 14
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// CalculateIndicators computes the indicators the series is long enough for
func CalculateIndicators(points []model.PricePoint) *model.Indicators {
	if len(points) < 2 {
		return nil
	}

	ind := &model.Indicators{}

	if len(points) >= 5 {
		ind.MA5 = SMA(points, 5)
		ind.HasMA5 = true
	}
	if len(points) >= 20 {
		ind.MA20 = SMA(points, 20)
		ind.HasMA20 = true
	}
	if len(points) >= RSIPeriod+1 {
		ind.RSI14 = RSI(points, RSIPeriod)
		ind.HasRSI = true
	}

	macd, signal, hist := MACD(closes(points), MACDFast, MACDSlow, MACDSignal)
	ind.MACD = macd
	ind.MACDSignal = signal
	ind.MACDHistogram = hist

	return ind
}

// SMA calculates the simple moving average of the last period closes
func SMA(points []model.PricePoint, period int) float64 {
	if period <= 0 || len(points) < period {
		return 0
	}

	var sum float64
	for i := len(points) - period; i < len(points); i++ {
		sum += points[i].Close
	}
	return sum / float64(period)
}

// RSI calculates the Relative Strength Index over the last period changes
func RSI(points []model.PricePoint, period int) float64 {
	if len(points) < period+1 {
		return 50 // neutral
	}

	var gains, losses float64
	for i := len(points) - period; i < len(points); i++ {
		change := points[i].Close - points[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// EMA returns the exponential moving average series, seeded with the first value
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// MACD returns the latest MACD line, signal line and histogram values
func MACD(values []float64, fast, slow, signal int) (macd, sig, hist float64) {
	if len(values) < 2 {
		return 0, 0, 0
	}

	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	line := make([]float64, len(values))
	for i := range values {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMA(line, signal)

	last := len(values) - 1
	return line[last], signalLine[last], line[last] - signalLine[last]
}

func closes(points []model.PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}
