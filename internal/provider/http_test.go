package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"indexreport/pkg/model"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTushareGetDailySeries(t *testing.T) {
	var got tushareRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		// newest first, as the real API answers
		io.WriteString(w, `{"code":0,"msg":"","data":{
			"fields":["ts_code","trade_date","close","open","high","low","vol"],
			"items":[
				["000300.SH","20240308",3540.0,3520.0,3550.0,3510.0,1200],
				["000300.SH","20240307",3520.0,3530.0,3535.0,3500.0,1100],
				["000300.SH","20240306",3530.0,3500.0,3540.0,3495.0,1000]
			]}}`)
	}))
	defer srv.Close()

	p := NewTushareProvider("secret", 200, WithBaseURL(srv.URL), WithClock(fixedNow))
	series, err := p.GetDailySeries(context.Background(), "000300.SH", model.Window{Count: 2, Unit: "days", Min: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.APIName != "index_daily" || got.Token != "secret" {
		t.Errorf("request = %+v", got)
	}
	if got.Params["ts_code"] != "000300.SH" || got.Params["end_date"] != "20240308" {
		t.Errorf("params = %v", got.Params)
	}

	want := &model.PriceSeries{
		Symbol: "000300.SH",
		Source: "tushare",
		Points: []model.PricePoint{
			{Date: day(2024, 3, 7), Open: 3530, High: 3535, Low: 3500, Close: 3520, Volume: 1100},
			{Date: day(2024, 3, 8), Open: 3520, High: 3550, Low: 3510, Close: 3540, Volume: 1200},
		},
	}
	if diff := cmp.Diff(want, series); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestTushareAPIErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantKind    ErrorKind
		wantBackoff bool
	}{
		{"rate limited", `{"code":40203,"msg":"too many requests","data":null}`, KindUnavailable, true},
		{"bad token", `{"code":40101,"msg":"invalid token","data":null}`, KindUnavailable, false},
		{"not json", `<html>`, KindUnavailable, false},
		{"empty", `{"code":0,"msg":"","data":{"fields":["trade_date","open","high","low","close","vol"],"items":[]}}`, KindInsufficientData, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewTushareProvider("secret", 200, WithBaseURL(srv.URL), WithClock(fixedNow))
			_, err := p.GetDailySeries(context.Background(), "000300.SH", model.Window{Count: 30, Min: 2})

			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if pe.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", pe.Kind, tt.wantKind)
			}
			if got := p.limiter.GetBackoff() > 0; got != tt.wantBackoff {
				t.Errorf("backoff engaged = %v, want %v", got, tt.wantBackoff)
			}
		})
	}
}

func TestAlphaVantageGetDailySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "TIME_SERIES_DAILY" || q.Get("symbol") != "000300.SS" {
			t.Errorf("query = %v", q)
		}
		io.WriteString(w, `{
			"Meta Data": {"2. Symbol": "000300.SS"},
			"Time Series (Daily)": {
				"2024-03-08": {"1. open": "3520.0", "2. high": "3550.0", "3. low": "3510.0", "4. close": "3540.0", "5. volume": "1200"},
				"2024-03-07": {"1. open": "3530.0", "2. high": "3535.0", "3. low": "3500.0", "4. close": "3520.0", "5. volume": "1100"}
			}}`)
	}))
	defer srv.Close()

	p := NewAlphaVantageProvider("key", 5,
		WithBaseURL(srv.URL),
		WithTickers(map[string]string{"000300.SH": "000300.SS"}))
	series, err := p.GetDailySeries(context.Background(), "000300.SH", model.Window{Count: 30, Min: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.PricePoint{
		{Date: day(2024, 3, 7), Open: 3530, High: 3535, Low: 3500, Close: 3520, Volume: 1100},
		{Date: day(2024, 3, 8), Open: 3520, High: 3550, Low: 3510, Close: 3540, Volume: 1200},
	}
	if diff := cmp.Diff(want, series.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	if series.Symbol != "000300.SH" {
		t.Errorf("symbol = %q, want canonical 000300.SH", series.Symbol)
	}
}

func TestAlphaVantageNotices(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantBackoff bool
	}{
		{"note", `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, true},
		{"information", `{"Information": "premium endpoint"}`, true},
		{"error message", `{"Error Message": "Invalid API call."}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewAlphaVantageProvider("key", 5, WithBaseURL(srv.URL))
			_, err := p.GetDailySeries(context.Background(), "000300.SH", model.Window{Count: 30, Min: 2})
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected unavailable, got %v", err)
			}
			if got := p.limiter.GetBackoff() > 0; got != tt.wantBackoff {
				t.Errorf("backoff engaged = %v, want %v", got, tt.wantBackoff)
			}
		})
	}
}

func TestFinnhubGetDailySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("resolution") != "D" {
			t.Errorf("resolution = %q", r.URL.Query().Get("resolution"))
		}
		json.NewEncoder(w).Encode(finnhubCandle{
			S: "ok",
			T: []int64{day(2024, 3, 7).Unix(), day(2024, 3, 8).Unix()},
			O: []float64{10, 11},
			H: []float64{12, 13},
			L: []float64{9, 10},
			C: []float64{11, 12},
			V: []float64{500, 600},
		})
	}))
	defer srv.Close()

	p := NewFinnhubProvider("key", 60, WithBaseURL(srv.URL), WithClock(fixedNow))
	series, err := p.GetDailySeries(context.Background(), "SPY", model.Window{Count: 30, Min: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.PricePoint{
		{Date: day(2024, 3, 7), Open: 10, High: 12, Low: 9, Close: 11, Volume: 500},
		{Date: day(2024, 3, 8), Open: 11, High: 13, Low: 10, Close: 12, Volume: 600},
	}
	if diff := cmp.Diff(want, series.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestFinnhubNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"s":"no_data"}`)
	}))
	defer srv.Close()

	p := NewFinnhubProvider("key", 60, WithBaseURL(srv.URL))
	_, err := p.GetDailySeries(context.Background(), "SPY", model.Window{Count: 30, Min: 2})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected insufficient data, got %v", err)
	}
}

func TestYahooGetDailySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/000300.SS") {
			t.Errorf("path = %s", r.URL.Path)
		}
		// 01:30 UTC is 09:30 in Shanghai; the null bar is a suspended session
		io.WriteString(w, `{"chart":{"result":[{
			"meta":{"symbol":"000300.SS","gmtoffset":28800},
			"timestamp":[1709775000,1709861400,1709947800],
			"indicators":{"quote":[{
				"open":[3500.0,null,3520.0],
				"high":[3540.0,null,3550.0],
				"low":[3495.0,null,3510.0],
				"close":[3530.0,null,3540.0],
				"volume":[1000,null,1200]
			}]}}],"error":null}}`)
	}))
	defer srv.Close()

	p := NewYahooProvider(0,
		WithBaseURL(srv.URL),
		WithClock(fixedNow),
		WithTickers(map[string]string{"000300.SH": "000300.SS"}))
	series, err := p.GetDailySeries(context.Background(), "000300.SH", model.Window{Count: 30, Min: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.PricePoint{
		{Date: day(2024, 3, 7), Open: 3500, High: 3540, Low: 3495, Close: 3530, Volume: 1000},
		{Date: day(2024, 3, 9), Open: 3520, High: 3550, Low: 3510, Close: 3540, Volume: 1200},
	}
	if diff := cmp.Diff(want, series.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	if series.Source != "yahoo" {
		t.Errorf("source = %q", series.Source)
	}
}

func TestYahooRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewYahooProvider(0, WithBaseURL(srv.URL))
	_, err := p.GetDailySeries(context.Background(), "000300.SS", model.Window{Count: 30, Min: 2})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if p.limiter.GetBackoff() == 0 {
		t.Error("429 should engage the limiter backoff")
	}
}

func TestYahooDuplicateDatesAreInsufficient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"chart":{"result":[{
			"meta":{"symbol":"SPY","gmtoffset":0},
			"timestamp":[1709856000,1709859600,1709942400],
			"indicators":{"quote":[{
				"open":[1,1,1],"high":[2,2,2],"low":[0.5,0.5,0.5],"close":[1.5,1.5,1.5],"volume":[1,1,1]
			}]}}],"error":null}}`)
	}))
	defer srv.Close()

	p := NewYahooProvider(0, WithBaseURL(srv.URL))
	_, err := p.GetDailySeries(context.Background(), "SPY", model.Window{Count: 30, Min: 2})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected insufficient data, got %v", err)
	}
}
