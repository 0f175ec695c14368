// Package domain models the per-region health and inspection data joined by
// the ETL run.
//
// # Regions
//
// A region is a Canadian Forward Sortation Area (FSA): the first three
// characters of a postal code, always letter-digit-letter ("M5V"). COVID-19
// statistics are published per FSA, which makes it the join key for every
// source. Toronto FSAs all start with "M".
//
// # Data Sources
//
// Case and vaccination statistics come from the ICES COVID-19 workbook, one
// sheet for "at least one dose" (which also carries cases, hospitalizations
// and deaths) and one for "two doses". Population comes from the 2016 census
// table keyed by FSA. Restaurant inspections come from the City of Toronto
// DineSafe XML export: each establishment carries a latitude/longitude and a
// list of infractions, but no postal code, so every establishment is
// reverse-geocoded to find its FSA.
//
// # Suppressed Values
//
// ICES suppresses small counts to prevent re-identification. The workbook
// marks those cells with "*". Suppressed metrics are stored as [Suppressed]
// (-1.0), which is distinct from a real zero and must be filtered out of any
// comparison (see [IsSuppressed]).
//
// # Infraction Severity
//
// DineSafe severity strings look like "M - Minor", "S - Significant" and
// "C - Crucial". "NA - Not Applicable" and anything unrecognized is ignored
// by [ParseSeverity].
package domain
