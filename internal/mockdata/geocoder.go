package mockdata

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
)

// ReverseHandler serves a Nominatim-compatible GET /reverse endpoint that
// answers from the dataset. Lookups in the lake return the service's
// "Unable to geocode" error body.
type ReverseHandler struct {
	ds       *Dataset
	requests atomic.Int64
}

// NewReverseHandler creates a fake geocoder for ds.
func NewReverseHandler(ds *Dataset) *ReverseHandler {
	return &ReverseHandler{ds: ds}
}

// Requests returns the number of lookups served.
func (h *ReverseHandler) Requests() int64 {
	return h.requests.Load()
}

func (h *ReverseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != "/reverse" {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("User-Agent") == "" {
		http.Error(w, `{"error":"missing user agent"}`, http.StatusForbidden)
		return
	}
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		http.Error(w, `{"error":"invalid coordinates"}`, http.StatusBadRequest)
		return
	}
	h.requests.Add(1)

	w.Header().Set("Content-Type", "application/json")
	postcode, ok := h.ds.Postcode(lat, lon)
	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unable to geocode"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"display_name": "Toronto, Ontario, " + postcode + ", Canada",
		"address": map[string]string{
			"city":     "Toronto",
			"postcode": postcode,
		},
	})
}
