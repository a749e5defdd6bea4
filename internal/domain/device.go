package domain

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// noCarrier is the placeholder some radios report when no SIM is present.
const noCarrier = "--"

// ScreenGeometry is the display size in points plus the points-to-pixels scale.
type ScreenGeometry struct {
	WidthPoints  float64
	HeightPoints float64
	Scale        float64
}

// Pixels returns the physical size, truncated to whole pixels.
func (g ScreenGeometry) Pixels() (width, height int) {
	return int(g.WidthPoints * g.Scale), int(g.HeightPoints * g.Scale)
}

// RatioMillis returns height/width scaled by 1000, truncated. A zero width
// yields 0.
func (g ScreenGeometry) RatioMillis() int {
	if g.WidthPoints == 0 {
		return 0
	}
	return int(g.HeightPoints / g.WidthPoints * 1000)
}

// DeviceInfo holds the raw readings a snapshot reader gathers from the host.
type DeviceInfo struct {
	Platform         string
	Brand            string
	MachineID        string // hardware identifier, e.g. "iPhone15,2"
	OSVersion        string
	CarrierNames     []string
	Screen           ScreenGeometry
	Orientation      ScreenOrientation
	TrackingStatus   TrackingStatus
	AdvertisingID    string
	ConnectionType   ConnectionType
	ApplicationID    string
	RunningInsideApp bool
}

// BuildDevice derives the device snapshot from raw readings.
func BuildDevice(in DeviceInfo) DeviceSnapshot {
	width, height := in.Screen.Pixels()
	return DeviceSnapshot{
		Platform:               in.Platform,
		Brand:                  in.Brand,
		Model:                  in.MachineID,
		OSVersion:              ParseOSVersion(in.OSVersion),
		Carrier:                NormalizeCarrier(in.CarrierNames),
		ScreenWidth:            width,
		ScreenHeight:           height,
		ScreenPixelRatioMillis: in.Screen.RatioMillis(),
		ScreenOrientation:      in.Orientation,
		HardwareVersion:        in.MachineID,
		LimitAdTracking:        in.TrackingStatus != TrackingAuthorized,
		AppTrackingStatus:      in.TrackingStatus,
		ConnectionType:         in.ConnectionType,
	}
}

// BuildMobile derives the mobile snapshot. The advertising identifier is only
// exposed when tracking is authorized.
func BuildMobile(appID string, in DeviceInfo) MobileSnapshot {
	m := MobileSnapshot{IsApp: in.RunningInsideApp}
	if appID != "" {
		m.AppID = ptr(appID)
	}
	if in.TrackingStatus == TrackingAuthorized && in.AdvertisingID != "" {
		m.IDFA = ptr(in.AdvertisingID)
	}
	return m
}

// ParseOSVersion splits a dotted version string. Components that are not
// integers are skipped, so "17.beta.2" yields major 17 and minor 2.
func ParseOSVersion(s string) OSVersion {
	var parts []int
	for _, p := range strings.Split(s, ".") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		parts = append(parts, n)
	}

	var v OSVersion
	if len(parts) > 0 {
		v.Major = ptr(parts[0])
	}
	if len(parts) > 1 {
		v.Minor = ptr(parts[1])
	}
	if len(parts) > 2 {
		v.Micro = ptr(parts[2])
	}
	return v
}

// NormalizeCarrier picks the first reported carrier name and folds it to
// Latin text without combining marks. The "--" placeholder becomes "".
func NormalizeCarrier(names []string) string {
	if len(names) == 0 || names[0] == noCarrier {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, names[0])
	if err != nil {
		return names[0]
	}
	return out
}
