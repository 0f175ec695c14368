// Package analysis computes the correlation views drawn from a finished
// region table: for each pairing of an exposure and a health metric, the
// Pearson correlation and the least-squares trend line.
package analysis

import (
	"math"

	"github.com/couchcryptid/region-health-etl/internal/domain"
)

// View pairs an explanatory value with a health metric.
type View struct {
	Name   string
	XLabel string
	YLabel string

	x func(domain.RegionRecord) (float64, bool)
	y func(domain.RegionRecord) float64
}

// Point is one region's position in a view.
type Point struct {
	Region string  `json:"fsa"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Fit is the least-squares summary of a view. Degenerate is set when fewer
// than two points remain or either axis has no variance; the other fields
// are then zero.
type Fit struct {
	N          int     `json:"n"`
	R          float64 `json:"r"`
	RSquared   float64 `json:"r_squared"`
	Slope      float64 `json:"slope"`
	Intercept  float64 `json:"intercept"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// Result is a computed view.
type Result struct {
	Name   string  `json:"name"`
	XLabel string  `json:"x_label"`
	YLabel string  `json:"y_label"`
	Fit    Fit     `json:"fit"`
	Points []Point `json:"points"`
}

func restaurants(r domain.RegionRecord) (float64, bool) { return float64(r.Restaurants), true }
func infractions(r domain.RegionRecord) (float64, bool) { return float64(r.TotalInfractions()), true }
func crucial(r domain.RegionRecord) (float64, bool)     { return float64(r.CrucialInfractions), true }
func twoDoses(r domain.RegionRecord) (float64, bool)    { return r.PercentTwoDoses, true }

func density(r domain.RegionRecord) (float64, bool) {
	if r.Population == 0 {
		return 0, false
	}
	return float64(r.Restaurants) / float64(r.Population), true
}

func cases(r domain.RegionRecord) float64            { return r.CasesPer100 }
func hospitalizations(r domain.RegionRecord) float64 { return r.HospitalizationsPer1000 }
func deaths(r domain.RegionRecord) float64           { return r.DeathsPer1000 }

const (
	labelRestaurants      = "Number of Restaurants per FSA"
	labelInfractions      = "Total Number of Health Infractions per FSA"
	labelCrucial          = "Number of Crucial Health Infractions per FSA"
	labelTwoDoses         = "Percentage of Population with 2 Doses of COVID-19 Vaccine"
	labelDensity          = "Density of Restaurants by Population per FSA"
	labelCases            = "COVID-19 Cases per 100 People"
	labelHospitalizations = "COVID-19 Hospitalizations per 1000 People"
	labelDeaths           = "COVID-19 Deaths per 1000 People"
)

// DefaultViews lists the eight standard comparisons.
var DefaultViews = []View{
	{Name: "restaurants_vs_cases", XLabel: labelRestaurants, YLabel: labelCases, x: restaurants, y: cases},
	{Name: "infractions_vs_cases", XLabel: labelInfractions, YLabel: labelCases, x: infractions, y: cases},
	{Name: "restaurants_vs_hospitalizations", XLabel: labelRestaurants, YLabel: labelHospitalizations, x: restaurants, y: hospitalizations},
	{Name: "restaurants_vs_deaths", XLabel: labelRestaurants, YLabel: labelDeaths, x: restaurants, y: deaths},
	{Name: "crucial_vs_cases", XLabel: labelCrucial, YLabel: labelCases, x: crucial, y: cases},
	{Name: "crucial_vs_hospitalizations", XLabel: labelCrucial, YLabel: labelHospitalizations, x: crucial, y: hospitalizations},
	{Name: "two_doses_vs_hospitalizations", XLabel: labelTwoDoses, YLabel: labelHospitalizations, x: twoDoses, y: hospitalizations},
	{Name: "density_vs_cases", XLabel: labelDensity, YLabel: labelCases, x: density, y: cases},
}

// Views computes every default view over records.
func Views(records []domain.RegionRecord) []Result {
	out := make([]Result, 0, len(DefaultViews))
	for _, v := range DefaultViews {
		out = append(out, v.Compute(records))
	}
	return out
}

// Compute collects the view's points and fits them. Records whose health
// metric is suppressed are left out, never read as zero.
func (v View) Compute(records []domain.RegionRecord) Result {
	points := make([]Point, 0, len(records))
	for _, r := range records {
		y := v.y(r)
		if domain.IsSuppressed(y) {
			continue
		}
		x, ok := v.x(r)
		if !ok {
			continue
		}
		points = append(points, Point{Region: r.Code, X: x, Y: y})
	}
	return Result{
		Name:   v.Name,
		XLabel: v.XLabel,
		YLabel: v.YLabel,
		Fit:    FitPoints(points),
		Points: points,
	}
}

// FitPoints returns the Pearson correlation and ordinary least-squares line
// through points.
func FitPoints(points []Point) Fit {
	n := len(points)
	fit := Fit{N: n}
	if n < 2 {
		fit.Degenerate = true
		return fit
	}

	var meanX, meanY float64
	for _, p := range points {
		meanX += p.X
		meanY += p.Y
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var sxx, syy, sxy float64
	for _, p := range points {
		dx, dy := p.X-meanX, p.Y-meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		fit.Degenerate = true
		return fit
	}

	fit.R = sxy / math.Sqrt(sxx*syy)
	fit.RSquared = fit.R * fit.R
	fit.Slope = sxy / sxx
	fit.Intercept = meanY - fit.Slope*meanX
	return fit
}
