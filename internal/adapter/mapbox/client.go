package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
)

const (
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	providerLabel  = "mapbox"
)

// Client implements domain.ReverseGeocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode resolves coordinates to country, locality, and postal code.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Placemark, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"types":        {"postcode,place,country"},
	}

	start := time.Now()
	place, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(providerLabel).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(providerLabel, "error").Inc()
	case place.Empty():
		c.metrics.GeocodeRequests.WithLabelValues(providerLabel, "empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues(providerLabel, "success").Inc()
	}
	return place, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Placemark, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Placemark{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Placemark{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Placemark{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.Placemark{}, fmt.Errorf("decode response: %w", err)
	}

	return mapboxResp.placemark(), nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string         `json:"id"` // "<type>.<n>", e.g. "place.2915"
	Text       string         `json:"text"`
	Properties properties     `json:"properties"`
	Context    []contextEntry `json:"context"`
}

type properties struct {
	ShortCode string `json:"short_code"`
}

// contextEntry is one enclosing feature (region, country, ...).
type contextEntry struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}

// placemark collects the most specific place, postcode, and country across
// the returned features and their context chains.
func (r response) placemark() domain.Placemark {
	var p domain.Placemark
	set := func(id, text, shortCode string) {
		kind, _, _ := strings.Cut(id, ".")
		switch kind {
		case "place":
			if p.Locality == "" {
				p.Locality = text
			}
		case "postcode":
			if p.PostalCode == "" {
				p.PostalCode = text
			}
		case "country":
			if p.CountryCode == "" && shortCode != "" {
				p.CountryCode = strings.ToUpper(shortCode)
			}
		}
	}

	for _, f := range r.Features {
		set(f.ID, f.Text, f.Properties.ShortCode)
		for _, c := range f.Context {
			set(c.ID, c.Text, c.ShortCode)
		}
	}
	return p
}
