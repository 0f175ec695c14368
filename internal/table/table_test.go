package table

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/region-health-etl/internal/domain"
)

func sampleRecords() []domain.RegionRecord {
	m5v := domain.NewRegionRecord("M5V")
	m5v.AddRestaurantVisit(1, 0, 2)
	m5v.AddRestaurantVisit(0, 3, 0)
	m5v.CasesPer100 = 3.05
	m5v.HospitalizationsPer1000 = 1.5
	m5v.DeathsPer1000 = 1.0 / 3
	m5v.Population = 47277
	m5v.PercentOneDose = 0.9123456789012345
	m5v.PercentTwoDoses = 0.87

	m7a := domain.NewRegionRecord("M7A") // suppressed metrics stay at the sentinel
	m7a.PercentOneDose = 1

	return []domain.RegionRecord{*m5v, *m7a}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	records := sampleRecords()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))

	got, err := Read(&buf)
	require.NoError(t, err)

	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, domain.IsSuppressed(got[1].CasesPer100))
	assert.True(t, domain.IsSuppressed(got[1].HospitalizationsPer1000))
	assert.True(t, domain.IsSuppressed(got[1].DeathsPer1000))
}

func TestWrite_HeaderAndRowLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleRecords()[1:]))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(Header, ","), lines[0])
	assert.Equal(t, "M7A,0,0,0,0,-1,-1,-1,0,1,0", lines[1])
}

func TestWriteFile_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cleaned_data.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	require.NoError(t, WriteFile(path, sampleRecords()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing", "out.csv"), sampleRecords())
	assert.Error(t, err)
}

func TestRead_Errors(t *testing.T) {
	header := strings.Join(Header, ",") + "\n"

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty", input: "", wantErr: "read header"},
		{name: "wrong header", input: "a,b,c,d,e,f,g,h,i,j,k\n", wantErr: "unexpected header"},
		{name: "short row", input: header + "M5V,1,2\n", wantErr: "row 2"},
		{name: "bad count", input: header + "M5V,x,0,0,0,1,1,1,0,0,0\n", wantErr: `row 2: column "Number of Restaurants"`},
		{name: "negative count", input: header + "M5V,-2,0,0,0,1,1,1,0,0,0\n", wantErr: "invalid count"},
		{name: "bad float", input: header + "M5V,1,0,0,0,abc,1,1,0,0,0\n", wantErr: "invalid number"},
		{name: "bad region", input: header + "5MV,1,0,0,0,1,1,1,0,0,0\n", wantErr: "invalid region code"},
		{name: "error on later row", input: header + "M5V,1,0,0,0,1,1,1,0,0,0\nM4C,1,0,0,0,1,1,1,0,0\n", wantErr: "row 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRead_HeaderOnly(t *testing.T) {
	got, err := Read(strings.NewReader(strings.Join(Header, ",") + "\n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
