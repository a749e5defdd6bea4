// Package googlemaps reverse geocodes through the Google Maps Geocoding API.
package googlemaps

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
	"googlemaps.github.io/maps"
)

const providerLabel = "google"

// Client implements domain.ReverseGeocoder using the Google Maps client.
type Client struct {
	maps    *maps.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a Google Maps geocoding client. Extra options are passed
// to maps.NewClient after the API key; tests use maps.WithBaseURL.
func NewClient(apiKey string, logger *slog.Logger, metrics *observability.Metrics, opts ...maps.ClientOption) (*Client, error) {
	mc, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Client{maps: mc, metrics: metrics, logger: logger}, nil
}

// ReverseGeocode resolves coordinates to country, locality, and postal code.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Placemark, error) {
	start := time.Now()
	results, err := c.maps.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:     &maps.LatLng{Lat: lat, Lng: lon},
		ResultType: []string{"postal_code", "locality", "country"},
	})
	c.metrics.GeocodeAPIDuration.WithLabelValues(providerLabel).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(providerLabel, "error").Inc()
		return domain.Placemark{}, fmt.Errorf("google reverse geocode: %w", err)
	}

	place := placemark(results)
	if place.Empty() {
		c.metrics.GeocodeRequests.WithLabelValues(providerLabel, "empty").Inc()
	} else {
		c.metrics.GeocodeRequests.WithLabelValues(providerLabel, "success").Inc()
	}
	return place, nil
}

// placemark takes the first value of each component type across the results,
// which Google orders from most to least specific.
func placemark(results []maps.GeocodingResult) domain.Placemark {
	var p domain.Placemark
	for _, r := range results {
		for _, comp := range r.AddressComponents {
			switch {
			case p.CountryCode == "" && slices.Contains(comp.Types, "country"):
				p.CountryCode = comp.ShortName
			case p.Locality == "" && slices.Contains(comp.Types, "locality"):
				p.Locality = comp.LongName
			case p.PostalCode == "" && slices.Contains(comp.Types, "postal_code"):
				p.PostalCode = comp.LongName
			}
		}
	}
	return p
}
