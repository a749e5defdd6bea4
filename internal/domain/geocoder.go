package domain

import "context"

// Placemark is the place a reverse geocoder resolved a coordinate to.
// Empty string fields mean the provider did not report them.
type Placemark struct {
	CountryCode string `json:"country_code,omitempty"` // ISO 3166-1 alpha-2, as reported by the provider
	Locality    string `json:"locality,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
}

// Empty reports whether the provider found no place at all.
func (p Placemark) Empty() bool {
	return p.CountryCode == "" && p.Locality == "" && p.PostalCode == ""
}

// ReverseGeocoder turns coordinates into place details.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Placemark, error)
}
