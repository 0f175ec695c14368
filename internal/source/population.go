package source

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/couchcryptid/region-health-etl/internal/domain"
)

const (
	popColRegion     = 0
	popColPopulation = 4
)

// ReadPopulation reads the census table. Rows too short to carry a
// population column, such as trailing footnotes, are dropped. A leading
// byte order mark is removed.
func ReadPopulation(ctx context.Context, r io.Reader) ([]domain.PopulationRow, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows []domain.PopulationRow
	for line := 1; ; line++ {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if len(record) <= popColPopulation {
			continue
		}
		rows = append(rows, domain.PopulationRow{
			Line:       line,
			Region:     record[popColRegion],
			Population: record[popColPopulation],
		})
	}
}
