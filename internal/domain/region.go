package domain

import (
	"regexp"
	"sync"
)

// Suppressed marks a statistic withheld by the source.
const Suppressed = -1.0

var regionCodeRe = regexp.MustCompile(`^[A-Z][0-9][A-Z]$`)

// ValidRegionCode reports whether code looks like an FSA ("M5V").
func ValidRegionCode(code string) bool {
	return regionCodeRe.MatchString(code)
}

// IsSuppressed reports whether a statistic holds the suppression sentinel.
func IsSuppressed(v float64) bool {
	return v == Suppressed
}

// RegionRecord accumulates everything known about one region.
type RegionRecord struct {
	Code string `json:"fsa"`

	Restaurants            int `json:"restaurants"`
	MinorInfractions       int `json:"minor_infractions"`
	SignificantInfractions int `json:"significant_infractions"`
	CrucialInfractions     int `json:"crucial_infractions"`

	// Suppressible metrics; Suppressed until the statistics source provides a value.
	CasesPer100             float64 `json:"cases_per_100"`
	HospitalizationsPer1000 float64 `json:"hospitalizations_per_1000"`
	DeathsPer1000           float64 `json:"deaths_per_1000"`

	Population      int     `json:"population"`
	PercentOneDose  float64 `json:"percent_one_dose"`
	PercentTwoDoses float64 `json:"percent_two_doses"`
}

// NewRegionRecord returns a record with zero counts and suppressed metrics.
func NewRegionRecord(code string) *RegionRecord {
	return &RegionRecord{
		Code:                    code,
		CasesPer100:             Suppressed,
		HospitalizationsPer1000: Suppressed,
		DeathsPer1000:           Suppressed,
	}
}

// AddRestaurantVisit counts one more restaurant and adds its infractions.
func (r *RegionRecord) AddRestaurantVisit(minor, significant, crucial int) {
	r.Restaurants++
	r.MinorInfractions += minor
	r.SignificantInfractions += significant
	r.CrucialInfractions += crucial
}

// TotalInfractions is the sum of all three severity counters.
func (r *RegionRecord) TotalInfractions() int {
	return r.MinorInfractions + r.SignificantInfractions + r.CrucialInfractions
}

// RegionSet is the insertion-ordered set of records for one run. Mutations
// through its methods are serialized, so one record is never updated by two
// callers at once.
type RegionSet struct {
	mu     sync.Mutex
	order  []string
	byCode map[string]*RegionRecord
}

// NewRegionSet creates an empty set.
func NewRegionSet() *RegionSet {
	return &RegionSet{byCode: make(map[string]*RegionRecord)}
}

// GetOrCreate returns the record for code, creating it with defaults on
// first encounter. created is true when the record is new.
func (s *RegionSet) GetOrCreate(code string) (rec *RegionRecord, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byCode[code]; ok {
		return rec, false
	}
	rec = NewRegionRecord(code)
	s.byCode[code] = rec
	s.order = append(s.order, code)
	return rec, true
}

// Put inserts a fully populated record, replacing any record with the same code.
// Used when loading a persisted table.
func (s *RegionSet) Put(rec *RegionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[rec.Code]; !ok {
		s.order = append(s.order, rec.Code)
	}
	s.byCode[rec.Code] = rec
}

// Update applies fn to the record for code under the set lock. It reports
// false, without calling fn, when the code is unknown.
func (s *RegionSet) Update(code string, fn func(*RegionRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byCode[code]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// AddRestaurantVisit folds one restaurant into an existing region. Unknown
// regions are left out of the set and reported with false.
func (s *RegionSet) AddRestaurantVisit(code string, minor, significant, crucial int) bool {
	return s.Update(code, func(r *RegionRecord) {
		r.AddRestaurantVisit(minor, significant, crucial)
	})
}

// Contains reports whether code is part of the set.
func (s *RegionSet) Contains(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byCode[code]
	return ok
}

// Get returns a copy of the record for code.
func (s *RegionSet) Get(code string) (RegionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byCode[code]
	if !ok {
		return RegionRecord{}, false
	}
	return *rec, true
}

// Len returns the number of regions.
func (s *RegionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Records returns copies of all records in insertion order.
func (s *RegionSet) Records() []RegionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RegionRecord, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, *s.byCode[code])
	}
	return out
}
