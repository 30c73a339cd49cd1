package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff = 500 * time.Millisecond
	defaultMaxWait = 2 * time.Minute
)

// Limiter wraps rate.Limiter with a backoff window that opens after the
// upstream signals throttling.
type Limiter struct {
	limiter *rate.Limiter
	name    string
	mu      sync.Mutex
	backoff time.Duration
	until   time.Time // no request before this instant
	maxWait time.Duration
}

// NewLimiter creates a new rate limiter
// perMinute specifies the number of requests allowed per minute
func NewLimiter(name string, perMinute int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	rps := float64(perMinute) / 60.0
	// Burst of 1/10th of the per-minute limit, clamped to [1, 5]
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
		maxWait: defaultMaxWait,
	}
}

// Wait blocks until the backoff window has passed and a token is available,
// or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	delay := time.Until(l.until)
	l.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	blocked := time.Now().Before(l.until)
	l.mu.Unlock()
	if blocked {
		return false
	}
	return l.limiter.Allow()
}

// SignalRateLimited should be called when the upstream reports throttling
// (HTTP 429 or an in-body quota notice). The backoff doubles on each call.
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.backoff == 0 {
		l.backoff = initialBackoff
	} else {
		l.backoff *= 2
	}
	if l.backoff > l.maxWait {
		l.backoff = l.maxWait
	}
	l.until = time.Now().Add(l.backoff)
}

// ResetBackoff clears the backoff after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = 0
	l.until = time.Time{}
}

// GetBackoff returns the current backoff duration
func (l *Limiter) GetBackoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}

// MultiLimiter keeps one limiter per data provider so that providers built
// for successive runs share quota state.
type MultiLimiter struct {
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*Limiter),
	}
}

// Add registers a limiter, replacing any previous one with the same name
func (m *MultiLimiter) Add(name string, perMinute int) *Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := NewLimiter(name, perMinute)
	m.limiters[name] = l
	return l
}

// Get returns a limiter by name
func (m *MultiLimiter) Get(name string) *Limiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limiters[name]
}

// GetOrAdd returns the named limiter, creating it on first use
func (m *MultiLimiter) GetOrAdd(name string, perMinute int) *Limiter {
	if l := m.Get(name); l != nil {
		return l
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[name]; ok {
		return l
	}
	l := NewLimiter(name, perMinute)
	m.limiters[name] = l
	return l
}

// Wait waits on the specified limiter
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	limiter := m.Get(name)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
