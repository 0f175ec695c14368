package nominatim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/region-health-etl/internal/domain"
	"github.com/couchcryptid/region-health-etl/internal/observability"
)

// ErrEmptyResponse is returned when the service answers 200 with no body.
var ErrEmptyResponse = errors.New("nominatim: empty response body")

// Client implements domain.ReverseGeocoder using the Nominatim reverse API.
// It does no rate limiting of its own; wrap it in a resolver.
type Client struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. The public service requires a
// descriptive User-Agent on every request.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode converts coordinates to an address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	params := url.Values{
		"format":         {"jsonv2"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"addressdetails": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.GeocodingResult{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.GeocodingResult{}, ErrEmptyResponse
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	// Points in the lake or outside coverage come back as {"error":"Unable to geocode"}.
	if r.Error != "" {
		c.logger.Debug("nominatim returned no place", "lat", lat, "lon", lon, "reason", r.Error)
		return domain.GeocodingResult{}, nil
	}

	result := domain.GeocodingResult{DisplayName: r.DisplayName}
	if r.Address != nil {
		result.Address = &domain.Address{
			Postcode:      r.Address.Postcode,
			Neighbourhood: r.Address.Neighbourhood,
			City:          r.Address.City,
		}
	}
	return result, nil
}

// Nominatim API response types.

type response struct {
	DisplayName string   `json:"display_name"`
	Address     *address `json:"address"`
	Error       string   `json:"error"`
}

type address struct {
	Postcode      string `json:"postcode"`
	Neighbourhood string `json:"neighbourhood"`
	City          string `json:"city"`
}
