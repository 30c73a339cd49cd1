package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"indexreport/internal/ratelimit"
	"indexreport/pkg/model"
)

// Provider defines the interface for daily price data sources
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetDailySeries fetches the most recent window.Count daily bars for a symbol.
	// Implementations never return a series shorter than window.MinPoints().
	GetDailySeries(ctx context.Context, symbol string, window model.Window) (*model.PriceSeries, error)

	// IsAvailable checks if the provider is usable (has credentials)
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

var (
	// ErrUnavailable matches any transport, status, quota or API-level failure
	ErrUnavailable = errors.New("unavailable")
	// ErrInsufficientData matches short, empty or out-of-order series
	ErrInsufficientData = errors.New("insufficient data")
)

// ErrorKind classifies a provider failure
type ErrorKind int

const (
	KindUnavailable ErrorKind = iota
	KindInsufficientData
)

func (k ErrorKind) String() string {
	if k == KindInsufficientData {
		return "insufficient data"
	}
	return "unavailable"
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrInsufficientData:
		return e.Kind == KindInsufficientData
	}
	return false
}

func unavailable(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindUnavailable, Err: err}
}

func insufficient(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindInsufficientData, Err: err}
}

// asProviderError classifies an arbitrary error returned by a provider.
// Foreign errors count as unavailability.
func asProviderError(name string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return unavailable(name, err)
}

// Option configures the shared parts of an HTTP-backed provider
type Option func(*base)

// WithBaseURL points the provider at another endpoint (used by tests)
func WithBaseURL(url string) Option {
	return func(b *base) { b.baseURL = url }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) { b.client = c }
}

// WithLimiter shares an existing limiter instead of creating one
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(b *base) {
		if l != nil {
			b.limiter = l
		}
	}
}

// WithTickers maps canonical index symbols to provider-specific tickers
func WithTickers(m map[string]string) Option {
	return func(b *base) { b.tickers = m }
}

// WithClock overrides the time source used to compute date ranges
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// base holds what every HTTP provider needs
type base struct {
	name      string
	baseURL   string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	tickers   map[string]string
	now       func() time.Time
}

func newBase(name, baseURL string, rateLimitPerMin int, opts []Option) base {
	b := base{
		name:      name,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		rateLimit: rateLimitPerMin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.limiter == nil {
		b.limiter = ratelimit.NewLimiter(name, rateLimitPerMin)
	}
	return b
}

// Name returns the provider name
func (b *base) Name() string {
	return b.name
}

// RateLimit returns the rate limit per minute
func (b *base) RateLimit() int {
	return b.rateLimit
}

func (b *base) ticker(symbol string) string {
	if t, ok := b.tickers[symbol]; ok && t != "" {
		return t
	}
	return symbol
}

// dateRange resolves the calendar range to request for a window
func (b *base) dateRange(w model.Window) (time.Time, time.Time) {
	end := w.End
	if end.IsZero() {
		end = b.now()
	}
	start := w.Start
	if start.IsZero() {
		start = end.AddDate(0, 0, -w.CalendarSpan())
	}
	return start, end
}

// do waits for the limiter, performs the request and returns the body of a
// 200 response. Every failure comes back as an unavailable ProviderError.
func (b *base) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, unavailable(b.name, fmt.Errorf("rate limiter: %w", err))
	}

	resp, err := b.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, unavailable(b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		b.limiter.SignalRateLimited()
		return nil, unavailable(b.name, fmt.Errorf("rate limited"))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(b.name, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(b.name, fmt.Errorf("reading response: %w", err))
	}
	return body, nil
}

// finish validates a freshly parsed series and trims it to the window
func (b *base) finish(symbol string, points []model.PricePoint, w model.Window) (*model.PriceSeries, error) {
	series := &model.PriceSeries{Symbol: symbol, Source: b.name, Points: points}
	return checkSeries(b.name, series, w)
}

// checkSeries enforces the series contract for a provider result: at least
// window.MinPoints() points with strictly increasing dates. The result is
// trimmed to the window.Count most recent points.
func checkSeries(name string, series *model.PriceSeries, w model.Window) (*model.PriceSeries, error) {
	if series == nil {
		return nil, insufficient(name, model.ErrTooShort)
	}
	if err := series.Validate(w.MinPoints()); err != nil {
		return nil, insufficient(name, err)
	}
	if w.Count > 0 && series.Len() > w.Count {
		series = series.Tail(w.Count)
		if series.Len() < w.MinPoints() {
			return nil, insufficient(name, fmt.Errorf("%w: window keeps %d points", model.ErrTooShort, series.Len()))
		}
	}
	return series, nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func unixUTC(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
