// Package table persists a region record set as the flat CSV table consumed
// by the correlation views.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/couchcryptid/region-health-etl/internal/domain"
)

// Header is the first row of every table.
var Header = []string{
	"FSA",
	"Number of Restaurants",
	"Number of Minor Infractions",
	"Number of Significant Infractions",
	"Number of Crucial Infractions",
	"Total COVID-19 Cases per 100 people",
	"Total COVID-19 Hospitalizations per 1000 people",
	"Total COVID-19 Deaths per 1000 people",
	"Population",
	"Percent With At Least 1 Dose",
	"Percent With 2 Doses",
}

// Write encodes records to w, header first, one row per record in order.
func Write(w io.Writer, records []domain.RegionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(encode(r)); err != nil {
			return fmt.Errorf("write region %s: %w", r.Code, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return nil
}

// WriteFile writes records to path through a temporary file in the same
// directory, renamed into place once complete. A failed write leaves any
// existing table untouched.
func WriteFile(path string, records []domain.RegionRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := Write(tmp, records); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp table: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit table: %w", err)
	}
	return nil
}

// Read decodes a table written by Write. The header must match exactly.
func Read(r io.Reader) ([]domain.RegionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %q", header)
	}

	var records []domain.RegionRecord
	for row := 2; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		rec, err := decode(fields)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		records = append(records, rec)
	}
}

// ReadFile reads the table at path.
func ReadFile(path string) ([]domain.RegionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return Read(f)
}

func encode(r domain.RegionRecord) []string {
	return []string{
		r.Code,
		strconv.Itoa(r.Restaurants),
		strconv.Itoa(r.MinorInfractions),
		strconv.Itoa(r.SignificantInfractions),
		strconv.Itoa(r.CrucialInfractions),
		formatFloat(r.CasesPer100),
		formatFloat(r.HospitalizationsPer1000),
		formatFloat(r.DeathsPer1000),
		strconv.Itoa(r.Population),
		formatFloat(r.PercentOneDose),
		formatFloat(r.PercentTwoDoses),
	}
}

// formatFloat uses the shortest representation that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func decode(f []string) (domain.RegionRecord, error) {
	d := decoder{fields: f}
	rec := domain.RegionRecord{
		Code:                    f[0],
		Restaurants:             d.count(1),
		MinorInfractions:        d.count(2),
		SignificantInfractions:  d.count(3),
		CrucialInfractions:      d.count(4),
		CasesPer100:             d.number(5),
		HospitalizationsPer1000: d.number(6),
		DeathsPer1000:           d.number(7),
		Population:              d.count(8),
		PercentOneDose:          d.number(9),
		PercentTwoDoses:         d.number(10),
	}
	if d.err != nil {
		return domain.RegionRecord{}, d.err
	}
	if !domain.ValidRegionCode(rec.Code) {
		return domain.RegionRecord{}, fmt.Errorf("invalid region code %q", rec.Code)
	}
	return rec, nil
}

// decoder keeps the first parse error so a row decodes in one expression.
type decoder struct {
	fields []string
	err    error
}

func (d *decoder) count(i int) int {
	if d.err != nil {
		return 0
	}
	v, err := strconv.Atoi(d.fields[i])
	if err != nil || v < 0 {
		d.err = fmt.Errorf("column %q: invalid count %q", Header[i], d.fields[i])
		return 0
	}
	return v
}

func (d *decoder) number(i int) float64 {
	if d.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(d.fields[i], 64)
	if err != nil {
		d.err = fmt.Errorf("column %q: invalid number %q", Header[i], d.fields[i])
		return 0
	}
	return v
}
