// Package resolver turns coordinates into region codes through a reverse
// geocoder, respecting the remote service's request-rate ceiling.
package resolver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/region-health-etl/internal/domain"
	"github.com/couchcryptid/region-health-etl/internal/observability"
)

// Config controls request spacing and retries.
type Config struct {
	// MinInterval is the minimum time between two outbound requests.
	MinInterval time.Duration
	// MaxRetries is the number of extra attempts after a failed one.
	MaxRetries int
	// ErrorWait is an additional pause after a failed attempt.
	ErrorWait time.Duration
}

// RateLimitedResolver resolves coordinates one request at a time. Calls from
// any number of goroutines share a single spacing budget and are issued in
// the order they acquire the resolver.
type RateLimitedResolver struct {
	geocoder    domain.ReverseGeocoder
	clock       clockwork.Clock
	minInterval time.Duration
	maxRetries  int
	errorWait   time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu       sync.Mutex
	lastCall time.Time // guarded by mu; zero until the first request
}

// New creates a resolver around geocoder. A nil clock uses real time.
func New(geocoder domain.ReverseGeocoder, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *RateLimitedResolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimitedResolver{
		geocoder:    geocoder,
		clock:       clock,
		minInterval: max(cfg.MinInterval, 0),
		maxRetries:  max(cfg.MaxRetries, 0),
		errorWait:   max(cfg.ErrorWait, 0),
		logger:      logger,
		metrics:     metrics,
	}
}

// Resolve returns the region code for a coordinate. ok is false when the
// service has no postcode for the point, when every attempt failed, or when
// ctx was cancelled while waiting; none of these is an error for the caller.
func (r *RateLimitedResolver) Resolve(ctx context.Context, lat, lon float64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempts := r.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.metrics.GeocodeRetries.Inc()
			if !r.sleep(ctx, r.errorWait) {
				return "", false
			}
		}
		if !r.waitTurn(ctx) {
			return "", false
		}

		result, err := r.geocoder.ReverseGeocode(ctx, lat, lon)
		if err != nil {
			if ctx.Err() != nil {
				return "", false
			}
			r.metrics.GeocodeRequests.WithLabelValues("error").Inc()
			r.logger.Debug("reverse geocode attempt failed",
				"lat", lat,
				"lon", lon,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		code, ok := domain.RegionCodeFromResult(result)
		if !ok {
			r.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
			return "", false
		}
		r.metrics.GeocodeRequests.WithLabelValues("success").Inc()
		return code, true
	}

	r.logger.Warn("reverse geocode retries exhausted, dropping coordinate",
		"lat", lat,
		"lon", lon,
		"attempts", attempts,
	)
	return "", false
}

// waitTurn blocks until minInterval has passed since the previous request
// and claims the next slot. Returns false if ctx ends first.
func (r *RateLimitedResolver) waitTurn(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if !r.lastCall.IsZero() {
		next := r.lastCall.Add(r.minInterval)
		if !r.sleep(ctx, next.Sub(r.clock.Now())) {
			return false
		}
	}
	r.lastCall = r.clock.Now()
	return true
}

func (r *RateLimitedResolver) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-r.clock.After(d):
		return true
	}
}
