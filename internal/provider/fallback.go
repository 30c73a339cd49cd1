package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"indexreport/pkg/model"
)

// DefaultCallTimeout bounds a single provider call
const DefaultCallTimeout = 30 * time.Second

// AllSourcesFailedError is returned when every configured provider failed.
// Errors holds one entry per provider, in the order they were tried.
type AllSourcesFailedError struct {
	Errors []*ProviderError
}

func (e *AllSourcesFailedError) Error() string {
	if len(e.Errors) == 0 {
		return "all data sources failed: no providers configured"
	}
	parts := make([]string, len(e.Errors))
	for i, pe := range e.Errors {
		parts[i] = pe.Error()
	}
	return fmt.Sprintf("all %d data sources failed: %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes the per-provider errors to errors.Is and errors.As
func (e *AllSourcesFailedError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		errs[i] = pe
	}
	return errs
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers   []Provider
	callTimeout time.Duration
	logger      zerolog.Logger
}

// NewFallbackProvider creates a fallback over the providers in the given
// order. Providers without credentials stay in the list so that a failed
// run reports them.
func NewFallbackProvider(logger zerolog.Logger, callTimeout time.Duration, providers ...Provider) *FallbackProvider {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &FallbackProvider{
		providers:   providers,
		callTimeout: callTimeout,
		logger:      logger.With().Str("component", "fallback").Logger(),
	}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetDailySeries tries each provider in order and returns the first
// successful series untouched. Providers are called one at a time, each
// under its own timeout.
func (f *FallbackProvider) GetDailySeries(ctx context.Context, symbol string, window model.Window) (*model.PriceSeries, error) {
	failed := make([]*ProviderError, 0, len(f.providers))
	for _, p := range f.providers {
		if !p.IsAvailable() {
			pe := unavailable(p.Name(), fmt.Errorf("no credentials configured"))
			f.logger.Debug().Str("provider", p.Name()).Msg("skipping provider without credentials")
			failed = append(failed, pe)
			continue
		}

		series, err := f.call(ctx, p, symbol, window)
		if err == nil {
			f.logger.Debug().
				Str("provider", p.Name()).
				Int("points", series.Len()).
				Msg("fetched series")
			return series, nil
		}

		pe := asProviderError(p.Name(), err)
		f.logger.Warn().
			Err(pe.Err).
			Str("provider", p.Name()).
			Stringer("kind", pe.Kind).
			Msg("provider failed, trying next")
		failed = append(failed, pe)

		if ctx.Err() != nil {
			// the run itself is cancelled: record the rest without calling them
			for _, rest := range f.providers[len(failed):] {
				failed = append(failed, unavailable(rest.Name(), ctx.Err()))
			}
			break
		}
	}
	return nil, &AllSourcesFailedError{Errors: failed}
}

func (f *FallbackProvider) call(ctx context.Context, p Provider, symbol string, window model.Window) (*model.PriceSeries, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	series, err := p.GetDailySeries(callCtx, symbol, window)
	if err != nil {
		return nil, err
	}
	// re-checked so a short series never counts as success
	return checkSeries(p.Name(), series, window)
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	for _, p := range f.providers {
		if p.IsAvailable() {
			return true
		}
	}
	return false
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}

// Providers returns the underlying providers in call order
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}
