package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"indexreport/pkg/model"
)

const (
	tushareBaseURL    = "http://api.tushare.pro"
	tushareDateLayout = "20060102"
	// tushare answers quota violations with this code in a 200 response
	tushareRateLimitCode = 40203
)

// TushareProvider implements the Provider interface for the TuShare Pro API
// (index_daily endpoint).
type TushareProvider struct {
	base
	token string
}

// NewTushareProvider creates a new TuShare provider
func NewTushareProvider(token string, rateLimitPerMin int, opts ...Option) *TushareProvider {
	return &TushareProvider{
		base:  newBase("tushare", tushareBaseURL, rateLimitPerMin, opts),
		token: token,
	}
}

// IsAvailable checks if the provider has a token
func (p *TushareProvider) IsAvailable() bool {
	return p.token != ""
}

type tushareRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

// GetDailySeries fetches daily index bars
func (p *TushareProvider) GetDailySeries(ctx context.Context, symbol string, window model.Window) (*model.PriceSeries, error) {
	start, end := p.dateRange(window)
	payload, err := json.Marshal(tushareRequest{
		APIName: "index_daily",
		Token:   p.token,
		Params: map[string]string{
			"ts_code":    p.ticker(symbol),
			"start_date": start.Format(tushareDateLayout),
			"end_date":   end.Format(tushareDateLayout),
		},
		Fields: "ts_code,trade_date,open,high,low,close,vol",
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := p.do(ctx, req)
	if err != nil {
		return nil, err
	}

	points, err := p.parse(body)
	if err != nil {
		return nil, err
	}
	p.limiter.ResetBackoff()

	return p.finish(symbol, points, window)
}

// parse reads the columnar {"fields": [...], "items": [[...]]} payload
func (p *TushareProvider) parse(body []byte) ([]model.PricePoint, error) {
	if !gjson.ValidBytes(body) {
		return nil, unavailable(p.name, fmt.Errorf("invalid JSON response"))
	}
	res := gjson.ParseBytes(body)

	if code := res.Get("code").Int(); code != 0 {
		if code == tushareRateLimitCode {
			p.limiter.SignalRateLimited()
		}
		return nil, unavailable(p.name, fmt.Errorf("api error %d: %s", code, res.Get("msg").String()))
	}

	columns := make(map[string]int)
	for i, f := range res.Get("data.fields").Array() {
		columns[f.String()] = i
	}
	for _, name := range []string{"trade_date", "open", "high", "low", "close", "vol"} {
		if _, ok := columns[name]; !ok {
			return nil, unavailable(p.name, fmt.Errorf("response missing field %q", name))
		}
	}

	items := res.Get("data.items").Array()
	points := make([]model.PricePoint, 0, len(items))
	for _, item := range items {
		row := item.Array()
		if len(row) < len(columns) {
			continue
		}
		date, err := time.Parse(tushareDateLayout, row[columns["trade_date"]].String())
		if err != nil {
			continue
		}
		points = append(points, model.PricePoint{
			Date:   date,
			Open:   row[columns["open"]].Float(),
			High:   row[columns["high"]].Float(),
			Low:    row[columns["low"]].Float(),
			Close:  row[columns["close"]].Float(),
			Volume: int64(row[columns["vol"]].Float()),
		})
	}

	// newest first on the wire
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points, nil
}
