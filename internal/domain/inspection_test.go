package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"M - Minor", SeverityMinor},
		{"S - Significant", SeveritySignificant},
		{"C - Crucial", SeverityCrucial},
		{"  c - crucial ", SeverityCrucial},
		{"NA - Not Applicable", SeverityUnknown},
		{"", SeverityUnknown},
		{"Minor", SeverityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSeverity(tt.in))
		})
	}
}

func TestInspectionEntry_Tally(t *testing.T) {
	entry := InspectionEntry{
		Lat: 43.64, Lon: -79.39,
		Severities: []Severity{
			SeverityMinor, SeverityCrucial, SeverityUnknown,
			SeverityMinor, SeveritySignificant,
		},
	}

	assert.Equal(t, InfractionTally{Minor: 2, Significant: 1, Crucial: 1}, entry.Tally())
}

func TestInspectionEntry_TallyEmpty(t *testing.T) {
	assert.Equal(t, InfractionTally{}, InspectionEntry{}.Tally())
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "minor", SeverityMinor.String())
	assert.Equal(t, "significant", SeveritySignificant.String())
	assert.Equal(t, "crucial", SeverityCrucial.String())
	assert.Equal(t, "unknown", Severity(42).String())
}
