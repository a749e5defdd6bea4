package domain

import (
	"context"
	"log/slog"
)

// EnrichGeo builds the geo snapshot for a valid fix. Coordinates and accuracy
// are always set. If geocoder is nil, fails, or finds no place, the snapshot
// is returned without country, city, or zip (graceful degradation).
func EnrichGeo(ctx context.Context, fix Fix, geocoder ReverseGeocoder, logger *slog.Logger) GeoSnapshot {
	geo := GeoSnapshot{
		Lat:       ptr(fix.Lat()),
		Lon:       ptr(fix.Lon()),
		Accuracy:  ptr(fix.Accuracy),
		UTCOffset: UTCOffsetMinutes(),
	}
	if geocoder == nil {
		return geo
	}

	place, err := geocoder.ReverseGeocode(ctx, fix.Lat(), fix.Lon())
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", fix.Lat(),
			"lon", fix.Lon(),
			"error", err,
		)
		return geo
	}
	if place.Empty() {
		return geo
	}

	if place.CountryCode != "" {
		geo.Country = ptr(NormalizeCountryCode(place.CountryCode))
	}
	geo.City = ptr(place.Locality)
	geo.Zip = ptr(place.PostalCode)
	return geo
}
