package domain

import (
	"context"
	"strings"
)

// Address is the structured part of a reverse-geocoding answer.
type Address struct {
	Postcode      string
	Neighbourhood string
	City          string
}

// GeocodingResult contains what a reverse-geocoding provider knows about a point.
// Address is nil when the provider answered without an address.
type GeocodingResult struct {
	DisplayName string
	Address     *Address
}

// ReverseGeocoder converts coordinates to place details. A returned error
// means the lookup itself failed (transport, status, malformed body); a
// successful lookup with nothing at the point returns a zero result.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// RegionCodeFromResult extracts the region code from a result: the postcode
// up to its first whitespace ("M5V 3L9" -> "M5V"). ok is false when the
// result carries no address or no postcode.
func RegionCodeFromResult(res GeocodingResult) (code string, ok bool) {
	if res.Address == nil {
		return "", false
	}
	fields := strings.Fields(res.Address.Postcode)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}
