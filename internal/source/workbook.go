package source

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/couchcryptid/region-health-etl/internal/domain"
)

// Column positions (0-based) in the statistics sheets.
const (
	colRegion = 0

	colCasesPer100             = 2
	colHospitalizationsPer1000 = 3
	colDeathsPer1000           = 4
	colPercentOneDose          = 5

	colPercentTwoDoses = 2
)

// Workbook is an opened statistics workbook.
type Workbook struct {
	file *xlsx.File
}

// OpenWorkbook opens the XLSX file at path.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	return &Workbook{file: f}, nil
}

// CaseStatistics returns every row of the named "at least one dose" sheet.
// Rows without a region cell are dropped; header and total rows are left for
// the merger to filter.
func (w *Workbook) CaseStatistics(sheet string) ([]domain.CaseStatisticsRow, error) {
	rows, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CaseStatisticsRow, 0, len(rows))
	for i, cells := range rows {
		region := cellAt(cells, colRegion)
		if region == "" {
			continue
		}
		out = append(out, domain.CaseStatisticsRow{
			Line:                    i + 1,
			Region:                  region,
			CasesPer100:             cellAt(cells, colCasesPer100),
			HospitalizationsPer1000: cellAt(cells, colHospitalizationsPer1000),
			DeathsPer1000:           cellAt(cells, colDeathsPer1000),
			PercentOneDose:          cellAt(cells, colPercentOneDose),
		})
	}
	return out, nil
}

// SecondDose returns every row of the named "two doses" sheet.
func (w *Workbook) SecondDose(sheet string) ([]domain.SecondDoseRow, error) {
	rows, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SecondDoseRow, 0, len(rows))
	for i, cells := range rows {
		region := cellAt(cells, colRegion)
		if region == "" {
			continue
		}
		out = append(out, domain.SecondDoseRow{
			Line:            i + 1,
			Region:          region,
			PercentTwoDoses: cellAt(cells, colPercentTwoDoses),
		})
	}
	return out, nil
}

func (w *Workbook) rows(name string) ([][]string, error) {
	sheet, ok := w.file.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}
	rows := make([][]string, len(sheet.Rows))
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			// Raw value, so percentages stay fractions rather than "85%".
			cells[j] = cell.Value
		}
		rows[i] = cells
	}
	return rows, nil
}

func cellAt(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
