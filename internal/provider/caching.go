package provider

import (
	"context"
	"sync"

	"indexreport/pkg/model"
)

// CachingProvider wraps a Provider with an in-memory cache of daily series.
// One instance lives for a single pipeline run, so a weekly or monthly
// report and its daily snapshot come from the same fetch.
type CachingProvider struct {
	inner   Provider
	cache   map[string]*model.PriceSeries
	mu      sync.Mutex
	maxDays int
}

// NewCachingProvider creates a caching wrapper. maxDays is the number of
// trading days always fetched so that any later, larger request in the same
// run is served from memory.
func NewCachingProvider(inner Provider, maxDays int) *CachingProvider {
	return &CachingProvider{
		inner:   inner,
		cache:   make(map[string]*model.PriceSeries),
		maxDays: maxDays,
	}
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

// GetDailySeries serves the tail of the cached series when it is long enough
// for the window, fetching max(window.Count, maxDays) points otherwise.
func (p *CachingProvider) GetDailySeries(ctx context.Context, symbol string, window model.Window) (*model.PriceSeries, error) {
	p.mu.Lock()
	cached, ok := p.cache[symbol]
	p.mu.Unlock()
	if ok && cached.Len() >= window.MinPoints() {
		return checkSeries(cached.Source, cached.Tail(cached.Len()), window)
	}

	fetch := window
	if fetch.Count < p.maxDays {
		fetch.Count = p.maxDays
	}

	series, err := p.inner.GetDailySeries(ctx, symbol, fetch)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[symbol] = series
	p.mu.Unlock()

	return checkSeries(series.Source, series.Tail(series.Len()), window)
}
