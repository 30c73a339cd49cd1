package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"indexreport/pkg/model"
)

const (
	alphaVantageBaseURL = "https://www.alphavantage.co/query"
	alphaVantageSeries  = "Time Series (Daily)"
)

// AlphaVantageProvider implements the Provider interface for Alpha Vantage API
type AlphaVantageProvider struct {
	base
	apiKey string
}

// NewAlphaVantageProvider creates a new Alpha Vantage provider
func NewAlphaVantageProvider(apiKey string, rateLimitPerMin int, opts ...Option) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		base:   newBase("alphavantage", alphaVantageBaseURL, rateLimitPerMin, opts),
		apiKey: apiKey,
	}
}

// IsAvailable checks if the provider has an API key
func (p *AlphaVantageProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// GetDailySeries fetches TIME_SERIES_DAILY bars
func (p *AlphaVantageProvider) GetDailySeries(ctx context.Context, symbol string, window model.Window) (*model.PriceSeries, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", p.ticker(symbol))
	q.Set("apikey", p.apiKey)
	// compact holds the latest 100 bars
	if window.Count > 100 || !window.Start.IsZero() {
		q.Set("outputsize", "full")
	} else {
		q.Set("outputsize", "compact")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	body, err := p.do(ctx, req)
	if err != nil {
		return nil, err
	}

	points, err := p.parse(body, window)
	if err != nil {
		return nil, err
	}
	p.limiter.ResetBackoff()

	return p.finish(symbol, points, window)
}

func (p *AlphaVantageProvider) parse(body []byte, window model.Window) ([]model.PricePoint, error) {
	if !gjson.ValidBytes(body) {
		return nil, unavailable(p.name, fmt.Errorf("invalid JSON response"))
	}
	res := gjson.ParseBytes(body)

	// quota notices arrive as 200 responses
	for _, key := range []string{"Note", "Information"} {
		if msg := res.Get(key); msg.Exists() {
			p.limiter.SignalRateLimited()
			return nil, unavailable(p.name, fmt.Errorf("rate limited: %s", msg.String()))
		}
	}
	if msg := res.Get("Error Message"); msg.Exists() {
		return nil, unavailable(p.name, fmt.Errorf("%s", msg.String()))
	}

	var series gjson.Result
	res.ForEach(func(key, value gjson.Result) bool {
		if key.String() == alphaVantageSeries {
			series = value
			return false
		}
		return true
	})
	if !series.Exists() {
		return nil, insufficient(p.name, fmt.Errorf("response has no %q", alphaVantageSeries))
	}

	var points []model.PricePoint
	series.ForEach(func(key, bar gjson.Result) bool {
		date, err := time.Parse(model.DateLayout, key.String())
		if err != nil {
			return true
		}
		if !window.Start.IsZero() && date.Before(calendarDay(window.Start)) {
			return true
		}
		if !window.End.IsZero() && date.After(calendarDay(window.End)) {
			return true
		}
		points = append(points, model.PricePoint{
			Date:   date,
			Open:   bar.Get(`1\. open`).Float(),
			High:   bar.Get(`2\. high`).Float(),
			Low:    bar.Get(`3\. low`).Float(),
			Close:  bar.Get(`4\. close`).Float(),
			Volume: bar.Get(`5\. volume`).Int(),
		})
		return true
	})

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points, nil
}
