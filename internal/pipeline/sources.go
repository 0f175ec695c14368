package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/couchcryptid/region-health-etl/internal/config"
	"github.com/couchcryptid/region-health-etl/internal/domain"
	"github.com/couchcryptid/region-health-etl/internal/source"
	"github.com/couchcryptid/region-health-etl/internal/table"
)

// FileSources reads the inputs from the files named in the config.
// It implements Sources.
type FileSources struct {
	cfg    *config.Config
	logger *slog.Logger

	// Both statistics sheets live in one workbook; it is parsed once.
	openOnce sync.Once
	workbook *source.Workbook
	openErr  error
}

// NewFileSources creates a Sources backed by local files.
func NewFileSources(cfg *config.Config, logger *slog.Logger) *FileSources {
	return &FileSources{cfg: cfg, logger: logger}
}

func (s *FileSources) openWorkbook() (*source.Workbook, error) {
	s.openOnce.Do(func() {
		s.workbook, s.openErr = source.OpenWorkbook(s.cfg.StatsWorkbookPath)
	})
	return s.workbook, s.openErr
}

func (s *FileSources) CaseStatistics(_ context.Context) ([]domain.CaseStatisticsRow, error) {
	wb, err := s.openWorkbook()
	if err != nil {
		return nil, err
	}
	return wb.CaseStatistics(s.cfg.StatsDose1Sheet)
}

func (s *FileSources) SecondDose(_ context.Context) ([]domain.SecondDoseRow, error) {
	wb, err := s.openWorkbook()
	if err != nil {
		return nil, err
	}
	return wb.SecondDose(s.cfg.StatsDose2Sheet)
}

func (s *FileSources) Population(ctx context.Context) ([]domain.PopulationRow, error) {
	f, err := os.Open(s.cfg.PopulationCSVPath)
	if err != nil {
		return nil, fmt.Errorf("open population table: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return source.ReadPopulation(ctx, f)
}

func (s *FileSources) Inspections(ctx context.Context) ([]domain.InspectionEntry, error) {
	f, err := os.Open(s.cfg.InspectionsXMLPath)
	if err != nil {
		return nil, fmt.Errorf("open inspection registry: %w", err)
	}
	defer f.Close() //nolint:errcheck

	entries, stats, err := source.ReadInspections(ctx, f)
	if err != nil {
		return nil, err
	}
	if stats.Skipped > 0 {
		s.logger.Warn("establishments without usable coordinates skipped",
			"skipped", stats.Skipped,
			"establishments", stats.Establishments,
		)
	}
	return entries, nil
}

// FileTable writes the output table to a path. It implements TableWriter.
type FileTable struct {
	path   string
	logger *slog.Logger
}

// NewFileTable creates a TableWriter for path.
func NewFileTable(path string, logger *slog.Logger) *FileTable {
	return &FileTable{path: path, logger: logger}
}

func (t *FileTable) WriteTable(_ context.Context, records []domain.RegionRecord) error {
	if err := table.WriteFile(t.path, records); err != nil {
		return err
	}
	t.logger.Info("table written", "path", t.path, "regions", len(records))
	return nil
}
