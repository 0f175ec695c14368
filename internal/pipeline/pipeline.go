package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/region-health-etl/internal/aggregate"
	"github.com/couchcryptid/region-health-etl/internal/domain"
	"github.com/couchcryptid/region-health-etl/internal/merge"
	"github.com/couchcryptid/region-health-etl/internal/observability"
)

// Sources loads the raw inputs of a run.
type Sources interface {
	CaseStatistics(ctx context.Context) ([]domain.CaseStatisticsRow, error)
	SecondDose(ctx context.Context) ([]domain.SecondDoseRow, error)
	Population(ctx context.Context) ([]domain.PopulationRow, error)
	Inspections(ctx context.Context) ([]domain.InspectionEntry, error)
}

// TableWriter persists the finished record set. Its write is the run's
// single commit point.
type TableWriter interface {
	WriteTable(ctx context.Context, records []domain.RegionRecord) error
}

// RecordSink receives the committed records, e.g. a message broker.
type RecordSink interface {
	Publish(ctx context.Context, records []domain.RegionRecord) error
}

// Options tunes a run.
type Options struct {
	RegionPrefix     string
	ProgressInterval int
}

// Stage names, also used as the stage label on metrics.
const (
	StageIdle      = "idle"
	StageLoad      = "load"
	StageMerge     = "merge"
	StageAggregate = "aggregate"
	StageWrite     = "write"
	StageDone      = "done"
)

// Progress is a snapshot of a run for operators.
type Progress struct {
	Stage       string            `json:"stage"`
	Regions     int               `json:"regions"`
	Inspections aggregate.Summary `json:"inspections"`
}

// Result describes a finished run.
type Result struct {
	Regions     int
	Inspections aggregate.Summary
	// Partial is set when the run was cancelled during aggregation; the
	// table was still written with the counts accumulated so far.
	Partial bool
}

// Pipeline runs load → merge → aggregate → write once.
type Pipeline struct {
	sources    Sources
	merger     *merge.Merger
	aggregator *aggregate.Aggregator
	table      TableWriter
	sinks      []RecordSink
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool

	mu       sync.Mutex
	progress Progress
}

// New creates a Pipeline. resolver turns inspection coordinates into region
// codes; sinks are optional.
func New(sources Sources, resolver aggregate.Resolver, table TableWriter, sinks []RecordSink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	p := &Pipeline{
		sources:  sources,
		merger:   merge.New(opts.RegionPrefix),
		table:    table,
		sinks:    sinks,
		logger:   logger,
		metrics:  metrics,
		progress: Progress{Stage: StageIdle},
	}
	p.aggregator = aggregate.New(resolver, logger, metrics,
		aggregate.WithProgress(opts.ProgressInterval, p.recordInspections))
	return p
}

// CheckReadiness returns nil once the statistics sources have been merged,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("statistics have not been merged yet")
	}
	return nil
}

// Progress returns a snapshot of the current run.
func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

type inputs struct {
	cases       []domain.CaseStatisticsRow
	secondDose  []domain.SecondDoseRow
	population  []domain.PopulationRow
	inspections []domain.InspectionEntry
}

// Run executes one full pass. A failure to load inputs or write the table
// is returned as an error. Cancellation during aggregation is not an error:
// the partial table is written and Result.Partial is set.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	p.logger.Info("pipeline started")
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var in inputs
	if err := p.stage(StageLoad, func() error {
		var err error
		in, err = p.load(ctx)
		return err
	}); err != nil {
		return Result{}, err
	}

	set := domain.NewRegionSet()
	_ = p.stage(StageMerge, func() error {
		p.mergeInputs(set, in)
		return nil
	})
	p.metrics.RegionsLoaded.Set(float64(set.Len()))
	p.ready.Store(true)

	var summary aggregate.Summary
	if err := p.stage(StageAggregate, func() error {
		var err error
		summary, err = p.aggregator.Aggregate(ctx, in.inspections, set)
		return err
	}); err != nil {
		return Result{}, fmt.Errorf("aggregate inspections: %w", err)
	}

	res := Result{Regions: set.Len(), Inspections: summary, Partial: summary.Cancelled}
	records := set.Records()

	// The table is written even after cancellation so accumulated counts
	// are not lost.
	writeCtx := context.WithoutCancel(ctx)
	if err := p.stage(StageWrite, func() error {
		return p.write(writeCtx, records, res.Partial)
	}); err != nil {
		return res, err
	}

	p.setStage(StageDone)
	p.logger.Info("pipeline finished",
		"regions", res.Regions,
		"resolved", summary.Resolved,
		"unresolved", summary.Unresolved,
		"out_of_scope", summary.OutOfScope,
		"partial", res.Partial,
	)
	return res, nil
}

// load reads every source concurrently.
func (p *Pipeline) load(ctx context.Context) (inputs, error) {
	var in inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.cases, err = p.sources.CaseStatistics(gctx)
		if err != nil {
			return fmt.Errorf("load case statistics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		in.secondDose, err = p.sources.SecondDose(gctx)
		if err != nil {
			return fmt.Errorf("load second dose: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		in.population, err = p.sources.Population(gctx)
		if err != nil {
			return fmt.Errorf("load population: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		in.inspections, err = p.sources.Inspections(gctx)
		if err != nil {
			return fmt.Errorf("load inspections: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	p.logger.Info("sources loaded",
		"case_rows", len(in.cases),
		"second_dose_rows", len(in.secondDose),
		"population_rows", len(in.population),
		"inspections", len(in.inspections),
	)
	return in, nil
}

// mergeInputs applies the sources in a fixed order: the statistics sheets
// define the region set, then population fills it in.
func (p *Pipeline) mergeInputs(set *domain.RegionSet, in inputs) {
	for _, rep := range []merge.Report{
		p.merger.MergeCaseStatistics(set, in.cases),
		p.merger.MergeSecondDose(set, in.secondDose),
		p.merger.MergePopulation(set, in.population),
	} {
		p.logger.Info("source merged",
			"source", rep.Source,
			"created", rep.Created,
			"updated", rep.Updated,
			"skipped", rep.Skipped,
			"invalid", len(rep.Invalid),
		)
		for _, c := range rep.Invalid {
			p.logger.Warn("invalid source cell, keeping default", "source", rep.Source, "cell", c.String())
		}
	}
	p.mu.Lock()
	p.progress.Regions = set.Len()
	p.mu.Unlock()
}

func (p *Pipeline) write(ctx context.Context, records []domain.RegionRecord, partial bool) error {
	if err := p.table.WriteTable(ctx, records); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	if partial {
		p.logger.Warn("run was cancelled, table holds partial inspection counts; skipping record sinks")
		return nil
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, records); err != nil {
			// The table is already committed; a sink failure is reported
			// but does not fail the run.
			p.logger.Error("publish records failed", "error", err)
		}
	}
	return nil
}

// stage runs fn as the named stage and records its duration.
func (p *Pipeline) stage(name string, fn func() error) error {
	p.setStage(name)
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

func (p *Pipeline) setStage(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.Stage = name
}

func (p *Pipeline) recordInspections(s aggregate.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.Inspections = s
}
