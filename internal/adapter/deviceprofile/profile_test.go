package deviceprofile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
)

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoad_File(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "pixel.yaml"))
	require.NoError(t, err)

	info := NewReader(p).DeviceInfo()
	want := domain.DeviceInfo{
		Platform:         "Android",
		Brand:            "Google",
		MachineID:        "Pixel 8",
		OSVersion:        "14.0",
		CarrierNames:     []string{"Télécom España"},
		Screen:           domain.ScreenGeometry{WidthPoints: 412, HeightPoints: 915, Scale: 2.625},
		Orientation:      domain.OrientationPortrait,
		TrackingStatus:   domain.TrackingAuthorized,
		AdvertisingID:    "38400000-8cf0-11bd-b23e-10b96e40000d",
		ApplicationID:    "com.example.news",
		RunningInsideApp: true, // kept from the default
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("DeviceInfo mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "NR", NewReader(p).Radio())

	dev := domain.BuildDevice(info)
	assert.Equal(t, "Telecom Espana", dev.Carrier)
	assert.Equal(t, 1081, dev.ScreenWidth)
	assert.False(t, dev.LimitAdTracking)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml"), "read device profile"},
		{"bad yaml", write("bad.yaml", "platform: [unclosed"), "parse device profile"},
		{"bad tracking", write("tracking.yaml", "tracking_status: maybe"), "tracking_status"},
		{"bad orientation", write("orient.yaml", "screen:\n  orientation: sideways"), "orientation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
