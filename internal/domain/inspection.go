package domain

import "strings"

// Severity is a DineSafe infraction severity.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityMinor
	SeveritySignificant
	SeverityCrucial
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeveritySignificant:
		return "significant"
	case SeverityCrucial:
		return "crucial"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a DineSafe severity string ("M - Minor") to a Severity.
// The single-letter code before the dash decides; the label is not checked.
func ParseSeverity(s string) Severity {
	code, _, _ := strings.Cut(strings.TrimSpace(s), "-")
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "M":
		return SeverityMinor
	case "S":
		return SeveritySignificant
	case "C":
		return SeverityCrucial
	default:
		return SeverityUnknown
	}
}

// InspectionEntry is one establishment from the inspection registry.
type InspectionEntry struct {
	Name       string
	Lat        float64
	Lon        float64
	Severities []Severity
}

// InfractionTally counts an entry's infractions by severity.
type InfractionTally struct {
	Minor       int
	Significant int
	Crucial     int
}

// Tally counts the entry's recognized severities. Unknown tags are ignored.
func (e InspectionEntry) Tally() InfractionTally {
	var t InfractionTally
	for _, s := range e.Severities {
		switch s {
		case SeverityMinor:
			t.Minor++
		case SeveritySignificant:
			t.Significant++
		case SeverityCrucial:
			t.Crucial++
		}
	}
	return t
}
