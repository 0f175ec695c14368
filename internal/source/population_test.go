package source

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/region-health-etl/internal/domain"
)

func TestReadPopulation(t *testing.T) {
	input := "\uFEFFGeographic code,Geographic name,Province,Incompleteness,\"Population, 2016\"\n" +
		"M1B,M1B,Ontario,0,66108\n" +
		"M1C,M1C,Ontario,0,35626\n" +
		"\n" +
		"Note: 1\n"

	rows, err := ReadPopulation(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "Geographic code", rows[0].Region, "byte order mark stripped")
	assert.Equal(t, domain.PopulationRow{Line: 2, Region: "M1B", Population: "66108"}, rows[1])
	assert.Equal(t, "M1C", rows[2].Region)
}

func TestReadPopulation_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadPopulation(ctx, strings.NewReader("M1B,M1B,Ontario,0,1\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
