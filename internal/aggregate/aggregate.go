// Package aggregate folds inspection entries into per-region counters.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/region-health-etl/internal/domain"
	"github.com/couchcryptid/region-health-etl/internal/observability"
)

// Resolver maps a coordinate to a region code. ok is false when the
// coordinate could not be resolved.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (string, bool)
}

// Summary counts what happened to each entry of a run.
type Summary struct {
	Total      int  `json:"total"`
	Processed  int  `json:"processed"`
	Resolved   int  `json:"resolved"`
	Unresolved int  `json:"unresolved"`
	OutOfScope int  `json:"out_of_scope"`
	Cancelled  bool `json:"cancelled"`
}

// ProgressFunc receives a snapshot of the running summary.
type ProgressFunc func(Summary)

// Aggregator resolves inspection entries and accumulates them into a
// RegionSet.
type Aggregator struct {
	resolver         Resolver
	logger           *slog.Logger
	metrics          *observability.Metrics
	progressInterval int
	onProgress       ProgressFunc
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithProgress reports the summary every interval entries and once at the end.
func WithProgress(interval int, fn ProgressFunc) Option {
	return func(a *Aggregator) {
		a.progressInterval = interval
		a.onProgress = fn
	}
}

// New creates an Aggregator.
func New(resolver Resolver, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Aggregator {
	a := &Aggregator{
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate processes entries in order. Entries resolving to a region
// outside records are dropped and counted as out of scope. A cancelled
// context stops the pass early with Cancelled set and a nil error; the
// records updated so far stay consistent.
func (a *Aggregator) Aggregate(ctx context.Context, entries []domain.InspectionEntry, records *domain.RegionSet) (Summary, error) {
	if records == nil {
		return Summary{}, errors.New("aggregate: nil region set")
	}

	sum := Summary{Total: len(entries)}
	start := time.Now()
	a.logger.Info("inspection aggregation started", "entries", len(entries), "regions", records.Len())

	for _, entry := range entries {
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}

		tally := entry.Tally()
		code, ok := a.resolver.Resolve(ctx, entry.Lat, entry.Lon)
		if !ok && ctx.Err() != nil {
			// The wait was interrupted; the entry was never looked up.
			sum.Cancelled = true
			break
		}

		sum.Processed++
		switch {
		case !ok:
			sum.Unresolved++
			a.metrics.InspectionEntries.WithLabelValues("unresolved").Inc()
		case !records.AddRestaurantVisit(code, tally.Minor, tally.Significant, tally.Crucial):
			sum.OutOfScope++
			a.metrics.InspectionEntries.WithLabelValues("out_of_scope").Inc()
			a.logger.Debug("resolved region not in record set", "region", code, "establishment", entry.Name)
		default:
			sum.Resolved++
			a.metrics.InspectionEntries.WithLabelValues("resolved").Inc()
		}

		if a.progressInterval > 0 && sum.Processed%a.progressInterval == 0 {
			a.logger.Info("inspection aggregation progress",
				"processed", sum.Processed,
				"total", sum.Total,
				"resolved", sum.Resolved,
				"elapsed", time.Since(start).Round(time.Second),
			)
			a.report(sum)
		}
	}

	a.report(sum)
	a.logger.Info("inspection aggregation finished",
		"processed", sum.Processed,
		"resolved", sum.Resolved,
		"unresolved", sum.Unresolved,
		"out_of_scope", sum.OutOfScope,
		"cancelled", sum.Cancelled,
		"duration", time.Since(start),
	)
	return sum, nil
}

func (a *Aggregator) report(sum Summary) {
	if a.onProgress != nil {
		a.onProgress(sum)
	}
}
