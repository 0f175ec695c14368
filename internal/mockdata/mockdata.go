// Package mockdata generates a small, deterministic set of input files and a
// matching fake reverse geocoder, so the whole pipeline can run offline.
//
// Region i is centred at latitude 43.60 + 0.01*i on longitude -79.40; the
// fake geocoder maps a coordinate back to its region by rounding. Some
// establishments are placed in the lake (no address) and some in a region
// outside the statistics sheets.
package mockdata

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/couchcryptid/region-health-etl/internal/domain"
)

const (
	baseLat     = 43.60
	latStep     = 0.01
	regionLon   = -79.40
	jitter      = 0.003
	lakeLat     = 43.20 // Lake Ontario; no postcode
	outsideCode = "L4B"
	outsideLat  = 43.85
	outsideLon  = -79.39
)

// Options controls the size and shape of a generated dataset.
type Options struct {
	Regions        int
	Establishments int
	Seed           uint64
	// Prefix is the leading letter of every in-scope region code.
	Prefix string
}

// DefaultOptions returns a dataset small enough for tests.
func DefaultOptions() Options {
	return Options{Regions: 12, Establishments: 60, Seed: 1, Prefix: "M"}
}

// Region is one generated statistics row.
type Region struct {
	Code                    string
	Population              int
	CasesPer100             float64
	HospitalizationsPer1000 float64
	DeathsPer1000           float64
	PercentOneDose          float64
	PercentTwoDoses         float64
	// SuppressDeaths writes the suppression marker instead of DeathsPer1000.
	SuppressDeaths bool
}

// Establishment is one generated registry entry.
type Establishment struct {
	Name       string
	Lat, Lon   float64
	Region     string // empty for establishments in the lake
	Severities []domain.Severity
}

// Dataset is everything needed to write the inputs and answer lookups.
type Dataset struct {
	Prefix         string
	Regions        []Region
	Establishments []Establishment
}

// Generate builds a dataset. The same options always produce the same data.
func Generate(opts Options) (*Dataset, error) {
	if len(opts.Prefix) != 1 || opts.Prefix[0] < 'A' || opts.Prefix[0] > 'Z' {
		return nil, fmt.Errorf("prefix must be a single upper-case letter, got %q", opts.Prefix)
	}
	if opts.Regions < 1 || opts.Regions > 9*26 {
		return nil, fmt.Errorf("regions must be between 1 and %d", 9*26)
	}
	if opts.Establishments < 0 {
		return nil, fmt.Errorf("establishments must not be negative")
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	ds := &Dataset{Prefix: opts.Prefix}

	for i := range opts.Regions {
		oneDose := round(0.7+rng.Float64()*0.25, 2)
		ds.Regions = append(ds.Regions, Region{
			Code:                    regionCode(opts.Prefix, i),
			Population:              10000 + rng.IntN(60000),
			CasesPer100:             round(2+rng.Float64()*8, 1),
			HospitalizationsPer1000: round(rng.Float64()*6, 1),
			DeathsPer1000:           round(rng.Float64()*2, 2),
			PercentOneDose:          oneDose,
			PercentTwoDoses:         round(oneDose-rng.Float64()*0.1, 2),
			SuppressDeaths:          i%5 == 4,
		})
	}

	names := []string{"Café", "Crème Bakery", "Noodle House", "Grill", "Pâtisserie", "Diner", "Bistro"}
	severities := []domain.Severity{domain.SeverityMinor, domain.SeveritySignificant, domain.SeverityCrucial}
	for i := range opts.Establishments {
		est := Establishment{Name: fmt.Sprintf("%s %d", names[i%len(names)], i+1)}
		switch {
		case i%11 == 10:
			est.Lat, est.Lon = lakeLat, regionLon
		case i%13 == 12:
			est.Lat, est.Lon, est.Region = outsideLat, outsideLon, outsideCode
		default:
			r := rng.IntN(opts.Regions)
			est.Region = ds.Regions[r].Code
			est.Lat = round(baseLat+float64(r)*latStep+(rng.Float64()*2-1)*jitter, 6)
			est.Lon = round(regionLon+(rng.Float64()*2-1)*jitter, 6)
		}
		for range rng.IntN(4) {
			est.Severities = append(est.Severities, severities[rng.IntN(len(severities))])
		}
		ds.Establishments = append(ds.Establishments, est)
	}
	return ds, nil
}

// Postcode returns the postcode the fake geocoder reports for a coordinate.
// ok is false for points with no address.
func (d *Dataset) Postcode(lat, lon float64) (string, bool) {
	if math.Abs(lat-outsideLat) < 1e-9 && math.Abs(lon-outsideLon) < 1e-9 {
		return outsideCode + " 1A1", true
	}
	i := int(math.Round((lat - baseLat) / latStep))
	if i < 0 || i >= len(d.Regions) || math.Abs(lon-regionLon) > latStep {
		return "", false
	}
	return d.Regions[i].Code + " 0A" + string(rune('1'+i%9)), true
}

// Expected returns the records a complete run over this dataset produces,
// in statistics-sheet order.
func (d *Dataset) Expected() []domain.RegionRecord {
	index := make(map[string]int, len(d.Regions))
	out := make([]domain.RegionRecord, 0, len(d.Regions))
	for i, r := range d.Regions {
		rec := domain.NewRegionRecord(r.Code)
		rec.CasesPer100 = r.CasesPer100
		rec.HospitalizationsPer1000 = r.HospitalizationsPer1000
		if !r.SuppressDeaths {
			rec.DeathsPer1000 = r.DeathsPer1000
		}
		rec.Population = r.Population
		rec.PercentOneDose = r.PercentOneDose
		rec.PercentTwoDoses = r.PercentTwoDoses
		index[r.Code] = i
		out = append(out, *rec)
	}
	for _, e := range d.Establishments {
		i, ok := index[e.Region]
		if !ok {
			continue
		}
		t := domain.InspectionEntry{Severities: e.Severities}.Tally()
		out[i].AddRestaurantVisit(t.Minor, t.Significant, t.Crucial)
	}
	return out
}

// RegionCodes lists the in-scope codes in sheet order.
func (d *Dataset) RegionCodes() []string {
	codes := make([]string, 0, len(d.Regions))
	for _, r := range d.Regions {
		codes = append(codes, r.Code)
	}
	return codes
}

func regionCode(prefix string, i int) string {
	return fmt.Sprintf("%s%d%c", prefix, 1+i/26, 'A'+i%26)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
