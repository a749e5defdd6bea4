package domain

import (
	"github.com/paulmach/orb"
)

// MobileSnapshot describes the host application for ad queries coming from a
// mobile app rather than a mobile browser.
type MobileSnapshot struct {
	IsApp bool    `json:"is_app"`
	AppID *string `json:"app_id,omitempty"`
	IDFA  *string `json:"idfa,omitempty"`
}

// GeoSnapshot is the approximate location of the device. Every field except
// UTCOffset is optional; a snapshot holding only the offset is the fallback
// for disabled, denied, or timed-out lookups.
type GeoSnapshot struct {
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	Country   *string  `json:"country,omitempty"`
	City      *string  `json:"city,omitempty"`
	Zip       *string  `json:"zip,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	UTCOffset int      `json:"utcoffset"`
}

// HasCoordinate reports whether the snapshot carries a latitude/longitude pair.
func (g GeoSnapshot) HasCoordinate() bool {
	return g.Lat != nil && g.Lon != nil
}

// OSVersion splits an OS version string: for 17.4.1, Major=17, Minor=4, Micro=1.
type OSVersion struct {
	Major *int `json:"major,omitempty"`
	Minor *int `json:"minor,omitempty"`
	Micro *int `json:"micro,omitempty"`
}

// DeviceSnapshot describes the device the consumer runs on.
type DeviceSnapshot struct {
	Platform               string            `json:"platform"`
	Brand                  string            `json:"brand,omitempty"`
	Model                  string            `json:"model"`
	OSVersion              OSVersion         `json:"os_version"`
	Carrier                string            `json:"carrier"`
	ScreenWidth            int               `json:"screen_width"`
	ScreenHeight           int               `json:"screen_height"`
	ScreenPixelRatioMillis int               `json:"screen_pixel_ratio_millis"`
	ScreenOrientation      ScreenOrientation `json:"screen_orientation"`
	HardwareVersion        string            `json:"hardware_version"`
	LimitAdTracking        bool              `json:"limit_ad_tracking"`
	AppTrackingStatus      TrackingStatus    `json:"app_tracking_authorization_status"`
	ConnectionType         ConnectionType    `json:"connection_type"`
}

// Metadata identifies the bridge build that produced the payloads.
type Metadata struct {
	SDKVersion string `json:"sdk_version"`
}

// Snapshots is the complete set of payloads handed to a consumer. Mobile, Geo
// and Device may be nil; the consumer still receives an explicit empty slot.
type Snapshots struct {
	Mobile   *MobileSnapshot
	Geo      *GeoSnapshot
	Device   *DeviceSnapshot
	Metadata Metadata
}

// Fix is one coordinate update from the location capability.
type Fix struct {
	Point    orb.Point // [lon, lat]
	Accuracy float64   // horizontal accuracy in meters
}

// Lat returns the latitude of the fix.
func (f Fix) Lat() float64 { return f.Point.Lat() }

// Lon returns the longitude of the fix.
func (f Fix) Lon() float64 { return f.Point.Lon() }

// Valid reports whether the fix is precise enough to publish.
func (f Fix) Valid() bool {
	return f.Accuracy > 0 && f.Accuracy < MaxValidAccuracy
}

// MaxValidAccuracy is the exclusive upper bound on horizontal accuracy, in meters.
const MaxValidAccuracy = 1000

// ScreenOrientation is the wire encoding of the device orientation.
type ScreenOrientation int

const (
	OrientationUnknown   ScreenOrientation = 0
	OrientationPortrait  ScreenOrientation = 1
	OrientationLandscape ScreenOrientation = 2
)

// TrackingStatus is the platform's app-tracking authorization state.
type TrackingStatus int

const (
	TrackingNotDetermined TrackingStatus = 0
	TrackingRestricted    TrackingStatus = 1
	TrackingDenied        TrackingStatus = 2
	TrackingAuthorized    TrackingStatus = 3
)

// ConnectionType is the network class reported in the device payload.
//
// Policy: 5G radios (NR, NR-NSA) are reported as ConnectionCell4G. The
// ConnectionCell5G value is kept so the 0..7 range of the wire contract stays
// stable, but the classifier never emits it.
type ConnectionType int

const (
	ConnectionUnknown     ConnectionType = 0
	ConnectionEthernet    ConnectionType = 1
	ConnectionWiFi        ConnectionType = 2
	ConnectionCellUnknown ConnectionType = 3
	ConnectionCell2G      ConnectionType = 4
	ConnectionCell3G      ConnectionType = 5
	ConnectionCell4G      ConnectionType = 6
	ConnectionCell5G      ConnectionType = 7
)

func (c ConnectionType) String() string {
	switch c {
	case ConnectionEthernet:
		return "ethernet"
	case ConnectionWiFi:
		return "wifi"
	case ConnectionCellUnknown:
		return "cell_unknown"
	case ConnectionCell2G:
		return "cell_2g"
	case ConnectionCell3G:
		return "cell_3g"
	case ConnectionCell4G:
		return "cell_4g"
	case ConnectionCell5G:
		return "cell_5g"
	default:
		return "unknown"
	}
}

// AuthorizationState is the location permission state.
type AuthorizationState int

const (
	AuthorizationNotDetermined AuthorizationState = iota
	AuthorizationGranted
	AuthorizationDenied
)

func (a AuthorizationState) String() string {
	switch a {
	case AuthorizationGranted:
		return "granted"
	case AuthorizationDenied:
		return "denied"
	default:
		return "not_determined"
	}
}

// ParseAuthorizationState maps the textual forms used in configuration and the
// location feed. "restricted" is folded into denied.
func ParseAuthorizationState(s string) (AuthorizationState, bool) {
	switch s {
	case "granted", "authorized":
		return AuthorizationGranted, true
	case "denied", "restricted":
		return AuthorizationDenied, true
	case "prompt", "not_determined", "":
		return AuthorizationNotDetermined, true
	default:
		return AuthorizationNotDetermined, false
	}
}

func ptr[T any](v T) *T { return &v }
