// Package merge populates region records from the statistics and population
// sources. It makes no remote calls.
package merge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/region-health-etl/internal/domain"
)

// SuppressionMarker is the cell text the statistics source uses for a
// withheld value.
const SuppressionMarker = "*"

// InvalidCell describes a cell that could not be parsed. The field keeps its
// default.
type InvalidCell struct {
	Line   int
	Region string
	Column string
	Value  string
}

func (c InvalidCell) String() string {
	return fmt.Sprintf("line %d region %s column %s: %q", c.Line, c.Region, c.Column, c.Value)
}

// Report summarizes one merge.
type Report struct {
	Source  string
	Created int
	Updated int
	Skipped int
	Invalid []InvalidCell
}

// Merger applies source rows to a RegionSet. Only rows whose region code is
// a valid FSA starting with the configured prefix are considered.
type Merger struct {
	prefix string
}

// New creates a Merger restricted to region codes starting with prefix. An
// empty prefix accepts every valid code.
func New(prefix string) *Merger {
	return &Merger{prefix: strings.ToUpper(strings.TrimSpace(prefix))}
}

// MergeCaseStatistics sets cases, hospitalizations, deaths and the one-dose
// percentage, creating records on first encounter. Suppressed or blank
// metric cells leave the field at domain.Suppressed.
func (m *Merger) MergeCaseStatistics(set *domain.RegionSet, rows []domain.CaseStatisticsRow) Report {
	rep := Report{Source: "case statistics"}
	for _, row := range rows {
		code, ok := m.regionCode(row.Region)
		if !ok {
			rep.Skipped++
			continue
		}
		m.upsert(set, code, &rep, func(r *domain.RegionRecord) {
			inv := invalidCollector{line: row.Line, region: code, report: &rep}
			inv.float(&r.CasesPer100, "cases_per_100", row.CasesPer100)
			inv.float(&r.HospitalizationsPer1000, "hospitalizations_per_1000", row.HospitalizationsPer1000)
			inv.float(&r.DeathsPer1000, "deaths_per_1000", row.DeathsPer1000)
			inv.float(&r.PercentOneDose, "percent_one_dose", row.PercentOneDose)
		})
	}
	return rep
}

// MergeSecondDose sets the two-dose percentage, creating records on first
// encounter so the two sheets may list regions in any order.
func (m *Merger) MergeSecondDose(set *domain.RegionSet, rows []domain.SecondDoseRow) Report {
	rep := Report{Source: "second dose"}
	for _, row := range rows {
		code, ok := m.regionCode(row.Region)
		if !ok {
			rep.Skipped++
			continue
		}
		m.upsert(set, code, &rep, func(r *domain.RegionRecord) {
			inv := invalidCollector{line: row.Line, region: code, report: &rep}
			inv.float(&r.PercentTwoDoses, "percent_two_doses", row.PercentTwoDoses)
		})
	}
	return rep
}

// MergePopulation sets the population of regions already in the set. The
// census covers the whole country, so unknown regions are skipped rather
// than created.
func (m *Merger) MergePopulation(set *domain.RegionSet, rows []domain.PopulationRow) Report {
	rep := Report{Source: "population"}
	for _, row := range rows {
		code, ok := m.regionCode(row.Region)
		if !ok {
			rep.Skipped++
			continue
		}
		known := set.Update(code, func(r *domain.RegionRecord) {
			n, err := strconv.Atoi(strings.TrimSpace(row.Population))
			if err != nil || n < 0 {
				rep.Invalid = append(rep.Invalid, InvalidCell{Line: row.Line, Region: code, Column: "population", Value: row.Population})
				return
			}
			r.Population = n
		})
		if !known {
			rep.Skipped++
			continue
		}
		rep.Updated++
	}
	return rep
}

func (m *Merger) regionCode(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !domain.ValidRegionCode(code) || !strings.HasPrefix(code, m.prefix) {
		return "", false
	}
	return code, true
}

func (m *Merger) upsert(set *domain.RegionSet, code string, rep *Report, fn func(*domain.RegionRecord)) {
	if _, created := set.GetOrCreate(code); created {
		rep.Created++
	} else {
		rep.Updated++
	}
	set.Update(code, fn)
}

type invalidCollector struct {
	line   int
	region string
	report *Report
}

// float parses cell into dst. Blank and suppressed cells leave dst at its
// default, which is domain.Suppressed for the withheld metrics.
func (c invalidCollector) float(dst *float64, column, cell string) {
	v := strings.TrimSpace(cell)
	if v == "" || v == SuppressionMarker {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		c.report.Invalid = append(c.report.Invalid, InvalidCell{Line: c.line, Region: c.region, Column: column, Value: cell})
		return
	}
	*dst = f
}
