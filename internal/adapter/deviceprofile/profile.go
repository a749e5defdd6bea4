// Package deviceprofile reads the host's device characteristics from a YAML
// file, standing in for the platform APIs a native host would query.
package deviceprofile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
)

// Profile is the YAML document.
type Profile struct {
	Platform         string   `yaml:"platform"`
	Brand            string   `yaml:"brand"`
	MachineID        string   `yaml:"machine_id"`
	OSVersion        string   `yaml:"os_version"`
	Carriers         []string `yaml:"carriers"`
	Radio            string   `yaml:"radio"`
	AdvertisingID    string   `yaml:"advertising_id"`
	TrackingStatus   string   `yaml:"tracking_status"`
	ApplicationID    string   `yaml:"application_id"`
	RunningInsideApp bool     `yaml:"running_inside_app"`
	Screen           Screen   `yaml:"screen"`
}

// Screen is the display section of the profile.
type Screen struct {
	Width       float64 `yaml:"width"`
	Height      float64 `yaml:"height"`
	Scale       float64 `yaml:"scale"`
	Orientation string  `yaml:"orientation"`
}

// Default describes a generic phone and is used when no profile file is set.
func Default() Profile {
	return Profile{
		Platform:         "iOS",
		Brand:            "Apple",
		MachineID:        "iPhone15,2",
		OSVersion:        "17.4.1",
		Carriers:         []string{"--"},
		Radio:            "CTRadioAccessTechnologyLTE",
		TrackingStatus:   "not_determined",
		RunningInsideApp: true,
		Screen:           Screen{Width: 393, Height: 852, Scale: 3, Orientation: "portrait"},
	}
}

// Load reads a profile from path. An empty path returns Default. Fields
// missing from the file keep their default values.
func Load(path string) (Profile, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read device profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse device profile %s: %w", path, err)
	}
	if _, ok := parseTracking(p.TrackingStatus); !ok {
		return Profile{}, fmt.Errorf("device profile %s: unknown tracking_status %q", path, p.TrackingStatus)
	}
	if _, ok := parseOrientation(p.Screen.Orientation); !ok {
		return Profile{}, fmt.Errorf("device profile %s: unknown screen orientation %q", path, p.Screen.Orientation)
	}
	return p, nil
}

// Reader serves DeviceInfo from a loaded profile. It implements snapshot.Reader.
type Reader struct {
	profile Profile
}

// NewReader wraps a profile.
func NewReader(p Profile) *Reader {
	return &Reader{profile: p}
}

// DeviceInfo returns the raw readings. ConnectionType is left for the
// classifier to fill.
func (r *Reader) DeviceInfo() domain.DeviceInfo {
	p := r.profile
	tracking, _ := parseTracking(p.TrackingStatus)
	orientation, _ := parseOrientation(p.Screen.Orientation)
	return domain.DeviceInfo{
		Platform:         p.Platform,
		Brand:            p.Brand,
		MachineID:        p.MachineID,
		OSVersion:        p.OSVersion,
		CarrierNames:     append([]string(nil), p.Carriers...),
		Screen:           domain.ScreenGeometry{WidthPoints: p.Screen.Width, HeightPoints: p.Screen.Height, Scale: p.Screen.Scale},
		Orientation:      orientation,
		TrackingStatus:   tracking,
		AdvertisingID:    p.AdvertisingID,
		ApplicationID:    p.ApplicationID,
		RunningInsideApp: p.RunningInsideApp,
	}
}

// Radio returns the radio access technology identifier used when the
// network monitor sees a cellular interface.
func (r *Reader) Radio() string {
	return r.profile.Radio
}

func parseTracking(s string) (domain.TrackingStatus, bool) {
	switch s {
	case "", "not_determined":
		return domain.TrackingNotDetermined, true
	case "restricted":
		return domain.TrackingRestricted, true
	case "denied":
		return domain.TrackingDenied, true
	case "authorized":
		return domain.TrackingAuthorized, true
	default:
		return domain.TrackingNotDetermined, false
	}
}

func parseOrientation(s string) (domain.ScreenOrientation, bool) {
	switch s {
	case "", "unknown":
		return domain.OrientationUnknown, true
	case "portrait":
		return domain.OrientationPortrait, true
	case "landscape":
		return domain.OrientationLandscape, true
	default:
		return domain.OrientationUnknown, false
	}
}
