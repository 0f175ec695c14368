package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/region-health-etl/internal/aggregate"
	"github.com/couchcryptid/region-health-etl/internal/domain"
	"github.com/couchcryptid/region-health-etl/internal/observability"
	"github.com/couchcryptid/region-health-etl/internal/pipeline"
)

// --- mocks ---

type mockSources struct {
	cases       []domain.CaseStatisticsRow
	secondDose  []domain.SecondDoseRow
	population  []domain.PopulationRow
	inspections []domain.InspectionEntry
	err         error
}

func (m *mockSources) CaseStatistics(context.Context) ([]domain.CaseStatisticsRow, error) {
	return m.cases, nil
}

func (m *mockSources) SecondDose(context.Context) ([]domain.SecondDoseRow, error) {
	return m.secondDose, nil
}

func (m *mockSources) Population(context.Context) ([]domain.PopulationRow, error) {
	return m.population, nil
}

func (m *mockSources) Inspections(context.Context) ([]domain.InspectionEntry, error) {
	return m.inspections, m.err
}

type mockResolver struct {
	codes map[float64]string // keyed by latitude
	// onCall, when set, runs before each lookup with the 1-based call number.
	onCall func(n int)
	calls  int
}

func (m *mockResolver) Resolve(ctx context.Context, lat, _ float64) (string, bool) {
	m.calls++
	if m.onCall != nil {
		m.onCall(m.calls)
	}
	if ctx.Err() != nil {
		return "", false
	}
	code, ok := m.codes[lat]
	return code, ok
}

type mockTable struct {
	mu      sync.Mutex
	written [][]domain.RegionRecord
	ctxErr  error
	err     error
}

func (m *mockTable) WriteTable(ctx context.Context, records []domain.RegionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, records)
	return nil
}

type mockSink struct {
	published []domain.RegionRecord
	err       error
}

func (m *mockSink) Publish(_ context.Context, records []domain.RegionRecord) error {
	m.published = records
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func torontoSources() *mockSources {
	return &mockSources{
		cases: []domain.CaseStatisticsRow{
			{Line: 1, Region: "FSA", CasesPer100: "Cases"},
			{Line: 2, Region: "M1B", CasesPer100: "6.3", HospitalizationsPer1000: "4.1", DeathsPer1000: "1.2", PercentOneDose: "0.84"},
			{Line: 3, Region: "M5V", CasesPer100: "*", HospitalizationsPer1000: "1.5", DeathsPer1000: "*", PercentOneDose: "0.91"},
			{Line: 4, Region: "K1P", CasesPer100: "2", HospitalizationsPer1000: "1", DeathsPer1000: "0.1", PercentOneDose: "0.9"},
		},
		secondDose: []domain.SecondDoseRow{
			{Line: 1, Region: "M5V", PercentTwoDoses: "0.88"},
			{Line: 2, Region: "M1B", PercentTwoDoses: "0.8"},
		},
		population: []domain.PopulationRow{
			{Line: 1, Region: "M1B", Population: "66108"},
			{Line: 2, Region: "M5V", Population: "47277"},
			{Line: 3, Region: "M9W", Population: "40000"},
		},
		inspections: []domain.InspectionEntry{
			{Name: "a", Lat: 1, Severities: []domain.Severity{domain.SeverityMinor, domain.SeverityCrucial, domain.SeverityCrucial}},
			{Name: "b", Lat: 1, Severities: []domain.Severity{domain.SeveritySignificant, domain.SeveritySignificant, domain.SeveritySignificant}},
			{Name: "c", Lat: 2},
			{Name: "d", Lat: 3, Severities: []domain.Severity{domain.SeverityCrucial}}, // resolves outside the set
			{Name: "e", Lat: 4}, // unresolved
		},
	}
}

func torontoResolver() *mockResolver {
	return &mockResolver{codes: map[float64]string{1: "M5V", 2: "M1B", 3: "M9W"}}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	tbl := &mockTable{}
	sink := &mockSink{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(torontoSources(), torontoResolver(), tbl, []pipeline.RecordSink{sink},
		pipeline.Options{RegionPrefix: "M", ProgressInterval: 2}, discardLogger(), metrics)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Partial)
	assert.Equal(t, 2, res.Regions)
	assert.Equal(t, aggregate.Summary{Total: 5, Processed: 5, Resolved: 3, Unresolved: 1, OutOfScope: 1}, res.Inspections)

	want := []domain.RegionRecord{
		{
			Code: "M1B", Restaurants: 1,
			CasesPer100: 6.3, HospitalizationsPer1000: 4.1, DeathsPer1000: 1.2,
			Population: 66108, PercentOneDose: 0.84, PercentTwoDoses: 0.8,
		},
		{
			Code: "M5V", Restaurants: 2, MinorInfractions: 1, SignificantInfractions: 3, CrucialInfractions: 2,
			CasesPer100: domain.Suppressed, HospitalizationsPer1000: 1.5, DeathsPer1000: domain.Suppressed,
			Population: 47277, PercentOneDose: 0.91, PercentTwoDoses: 0.88,
		},
	}
	require.Len(t, tbl.written, 1)
	if diff := cmp.Diff(want, tbl.written[0]); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want, sink.published)

	require.NoError(t, p.CheckReadiness(context.Background()))
	progress := p.Progress()
	assert.Equal(t, pipeline.StageDone, progress.Stage)
	assert.Equal(t, 2, progress.Regions)
	assert.Equal(t, 5, progress.Inspections.Processed)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RegionsLoaded))
	assert.Zero(t, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_NotReadyBeforeRun(t *testing.T) {
	p := pipeline.New(torontoSources(), torontoResolver(), &mockTable{}, nil,
		pipeline.Options{RegionPrefix: "M"}, discardLogger(), observability.NewMetricsForTesting())

	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, pipeline.StageIdle, p.Progress().Stage)
}

func TestPipeline_LoadErrorIsFatal(t *testing.T) {
	src := torontoSources()
	src.err = errors.New("open ds.xml: no such file or directory")
	tbl := &mockTable{}
	p := pipeline.New(src, torontoResolver(), tbl, nil,
		pipeline.Options{RegionPrefix: "M"}, discardLogger(), observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load inspections")
	assert.Empty(t, tbl.written)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_CancelledRunWritesPartialTable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := torontoResolver()
	res.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	tbl := &mockTable{}
	sink := &mockSink{}
	p := pipeline.New(torontoSources(), res, tbl, []pipeline.RecordSink{sink},
		pipeline.Options{RegionPrefix: "M"}, discardLogger(), observability.NewMetricsForTesting())

	out, err := p.Run(ctx)
	require.NoError(t, err)

	assert.True(t, out.Partial)
	assert.Equal(t, 2, out.Inspections.Processed)
	require.Len(t, tbl.written, 1, "partial table must still be committed")
	assert.NoError(t, tbl.ctxErr, "table write must not see the cancelled context")
	assert.Nil(t, sink.published, "partial runs are not published")

	var m5v domain.RegionRecord
	for _, r := range tbl.written[0] {
		if r.Code == "M5V" {
			m5v = r
		}
	}
	assert.Equal(t, 2, m5v.Restaurants)
	assert.Equal(t, 2, m5v.CrucialInfractions)
}

func TestPipeline_TableErrorIsFatal(t *testing.T) {
	tbl := &mockTable{err: errors.New("disk full")}
	sink := &mockSink{}
	p := pipeline.New(torontoSources(), torontoResolver(), tbl, []pipeline.RecordSink{sink},
		pipeline.Options{RegionPrefix: "M"}, discardLogger(), observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write table")
	assert.Nil(t, sink.published)
}

func TestPipeline_SinkErrorDoesNotFailRun(t *testing.T) {
	tbl := &mockTable{}
	sink := &mockSink{err: errors.New("broker unavailable")}
	p := pipeline.New(torontoSources(), torontoResolver(), tbl, []pipeline.RecordSink{sink},
		pipeline.Options{RegionPrefix: "M"}, discardLogger(), observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, tbl.written, 1)
}
