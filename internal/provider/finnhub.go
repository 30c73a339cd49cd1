package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"indexreport/pkg/model"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubProvider implements the Provider interface for Finnhub API
type FinnhubProvider struct {
	base
	apiKey string
}

// NewFinnhubProvider creates a new Finnhub provider
func NewFinnhubProvider(apiKey string, rateLimitPerMin int, opts ...Option) *FinnhubProvider {
	return &FinnhubProvider{
		base:   newBase("finnhub", finnhubBaseURL, rateLimitPerMin, opts),
		apiKey: apiKey,
	}
}

// IsAvailable checks if the provider has an API key
func (p *FinnhubProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// finnhubCandle represents the Finnhub candle response
type finnhubCandle struct {
	C []float64 `json:"c"` // Close prices
	H []float64 `json:"h"` // High prices
	L []float64 `json:"l"` // Low prices
	O []float64 `json:"o"` // Open prices
	S string    `json:"s"` // Status
	T []int64   `json:"t"` // Timestamps
	V []float64 `json:"v"` // Volumes
}

// GetDailySeries fetches daily OHLCV data
func (p *FinnhubProvider) GetDailySeries(ctx context.Context, symbol string, window model.Window) (*model.PriceSeries, error) {
	from, to := p.dateRange(window)

	url := fmt.Sprintf("%s/stock/candle?symbol=%s&resolution=D&from=%d&to=%d&token=%s",
		p.baseURL, p.ticker(symbol), from.Unix(), to.Unix(), p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	body, err := p.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var data finnhubCandle
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, unavailable(p.name, fmt.Errorf("decoding response: %w", err))
	}
	p.limiter.ResetBackoff()

	if data.S == "no_data" || len(data.T) == 0 {
		return nil, insufficient(p.name, fmt.Errorf("no data available"))
	}

	points := make([]model.PricePoint, 0, len(data.T))
	for i := range data.T {
		if i >= len(data.O) || i >= len(data.H) || i >= len(data.L) || i >= len(data.C) {
			continue
		}

		var volume int64
		if i < len(data.V) {
			volume = int64(data.V[i])
		}

		points = append(points, model.PricePoint{
			Date:   calendarDay(unixUTC(data.T[i])),
			Open:   data.O[i],
			High:   data.H[i],
			Low:    data.L[i],
			Close:  data.C[i],
			Volume: volume,
		})
	}

	// Sort by date ascending
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	return p.finish(symbol, points, window)
}
