package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/region-health-etl/internal/domain"
	"github.com/couchcryptid/region-health-etl/internal/merge"
	"github.com/couchcryptid/region-health-etl/internal/pipeline"
	"github.com/couchcryptid/region-health-etl/internal/table"
)

var errValidationFailed = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the region table for integrity problems",
	Long: "Reads the table written by prepare and checks region codes, inspection counts, " +
		"health metrics and coverage values. With --sources, also checks that the table " +
		"holds exactly the regions listed in the statistics workbook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("table")
		if path == "" {
			path = cfg.OutputPath
		}
		withSources, _ := cmd.Flags().GetBool("sources")

		records, err := table.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load table: %v\n", err)
			return err
		}

		phases := tablePhases(records, cfg.RegionPrefix)
		if withSources {
			codes, err := sourceRegions(cmd.Context(), pipeline.NewFileSources(cfg, logger), cfg.RegionPrefix)
			if err != nil {
				fmt.Fprintf(os.Stderr, "FATAL: load sources: %v\n", err)
				return err
			}
			phases = append(phases, validateSourceParity(records, codes))
		}

		if !report(os.Stdout, phases, len(records)) {
			return errValidationFailed
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("table", "", "table to check (default OUTPUT_PATH)")
	validateCmd.Flags().Bool("sources", false, "also compare regions against the statistics workbook")
	rootCmd.AddCommand(validateCmd)
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func tablePhases(records []domain.RegionRecord, prefix string) []*phase {
	return []*phase{
		validateRegionCodes(records, prefix),
		validateInspectionCounts(records),
		validateHealthMetrics(records),
		validateCoverage(records),
	}
}

// report prints a summary line per phase followed by the detailed errors,
// and returns whether every phase passed.
func report(w io.Writer, phases []*phase, regions int) bool {
	fmt.Fprintln(w, "=== Region Table Validation ===")
	fmt.Fprintln(w)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}
	fmt.Fprintf(w, "\nRegions: %d\n", regions)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return true
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return false
}

func validateRegionCodes(records []domain.RegionRecord, prefix string) *phase {
	p := &phase{name: "Region codes"}
	if len(records) == 0 {
		p.errorf("table has no regions")
	}
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if !domain.ValidRegionCode(r.Code) {
			p.errorf("row %d: invalid region code %q", i+2, r.Code)
			continue
		}
		if !strings.HasPrefix(r.Code, prefix) {
			p.errorf("row %d: region %s outside prefix %q", i+2, r.Code, prefix)
		}
		if first, dup := seen[r.Code]; dup {
			p.errorf("row %d: region %s duplicates row %d", i+2, r.Code, first)
			continue
		}
		seen[r.Code] = i + 2
	}
	return p
}

func validateInspectionCounts(records []domain.RegionRecord) *phase {
	p := &phase{name: "Inspection counts"}
	for _, r := range records {
		if r.Restaurants == 0 && r.TotalInfractions() > 0 {
			p.errorf("%s: %d infractions but no restaurants", r.Code, r.TotalInfractions())
		}
	}
	return p
}

func validateHealthMetrics(records []domain.RegionRecord) *phase {
	p := &phase{name: "Health metrics"}
	for _, r := range records {
		for _, m := range []struct {
			name  string
			value float64
		}{
			{"cases_per_100", r.CasesPer100},
			{"hospitalizations_per_1000", r.HospitalizationsPer1000},
			{"deaths_per_1000", r.DeathsPer1000},
		} {
			if m.value < 0 && !domain.IsSuppressed(m.value) {
				p.errorf("%s: %s is %g, want suppressed (-1) or >= 0", r.Code, m.name, m.value)
			}
		}
	}
	return p
}

func validateCoverage(records []domain.RegionRecord) *phase {
	p := &phase{name: "Population and coverage"}
	for _, r := range records {
		if r.Population < 0 {
			p.errorf("%s: negative population %d", r.Code, r.Population)
		}
		if r.PercentOneDose < 0 || r.PercentOneDose > 100 {
			p.errorf("%s: percent_1_dose %g out of range", r.Code, r.PercentOneDose)
		}
		if r.PercentTwoDoses < 0 || r.PercentTwoDoses > 100 {
			p.errorf("%s: percent_2_doses %g out of range", r.Code, r.PercentTwoDoses)
		}
		if r.PercentTwoDoses > r.PercentOneDose && r.PercentOneDose > 0 {
			p.errorf("%s: percent_2_doses %g exceeds percent_1_dose %g", r.Code, r.PercentTwoDoses, r.PercentOneDose)
		}
	}
	return p
}

// statisticsSource is the subset of pipeline.Sources validate reads.
type statisticsSource interface {
	CaseStatistics(ctx context.Context) ([]domain.CaseStatisticsRow, error)
	SecondDose(ctx context.Context) ([]domain.SecondDoseRow, error)
}

// sourceRegions returns the region codes a run would create from src.
func sourceRegions(ctx context.Context, src statisticsSource, prefix string) ([]string, error) {
	cases, err := src.CaseStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load case statistics: %w", err)
	}
	dose2, err := src.SecondDose(ctx)
	if err != nil {
		return nil, fmt.Errorf("load second dose: %w", err)
	}
	set := domain.NewRegionSet()
	m := merge.New(prefix)
	m.MergeCaseStatistics(set, cases)
	m.MergeSecondDose(set, dose2)

	codes := make([]string, 0, set.Len())
	for _, r := range set.Records() {
		codes = append(codes, r.Code)
	}
	return codes, nil
}

func validateSourceParity(records []domain.RegionRecord, sourceCodes []string) *phase {
	p := &phase{name: "Source parity"}
	inTable := make(map[string]bool, len(records))
	for _, r := range records {
		inTable[r.Code] = true
	}
	inSource := make(map[string]bool, len(sourceCodes))
	for _, c := range sourceCodes {
		inSource[c] = true
		if !inTable[c] {
			p.errorf("%s: listed in the workbook but missing from the table", c)
		}
	}
	for _, r := range records {
		if !inSource[r.Code] {
			p.errorf("%s: in the table but not in the workbook", r.Code)
		}
	}
	return p
}
