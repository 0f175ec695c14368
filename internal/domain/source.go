package domain

// Source rows carry raw cell text; the merger decides how each cell is
// interpreted. Line is the 1-based position in the source, for reporting.

// CaseStatisticsRow is one row of the "at least one dose" statistics sheet.
type CaseStatisticsRow struct {
	Line                    int
	Region                  string
	CasesPer100             string
	HospitalizationsPer1000 string
	DeathsPer1000           string
	PercentOneDose          string
}

// SecondDoseRow is one row of the "two doses" statistics sheet.
type SecondDoseRow struct {
	Line            int
	Region          string
	PercentTwoDoses string
}

// PopulationRow is one row of the census population table.
type PopulationRow struct {
	Line       int
	Region     string
	Population string
}
