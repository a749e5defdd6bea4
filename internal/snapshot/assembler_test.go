package snapshot

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
)

type staticReader struct{ info domain.DeviceInfo }

func (r staticReader) DeviceInfo() domain.DeviceInfo { return r.info }

type staticConnection domain.ConnectionType

func (c staticConnection) Current() domain.ConnectionType { return domain.ConnectionType(c) }

type syncGeo struct{ geo domain.GeoSnapshot }

func (g syncGeo) RequestGeo(_ context.Context, deliver func(domain.GeoSnapshot)) { deliver(g.geo) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInfo() domain.DeviceInfo {
	return domain.DeviceInfo{
		Platform:         "iOS",
		Brand:            "Apple",
		MachineID:        "iPhone15,2",
		OSVersion:        "17.4.1",
		Screen:           domain.ScreenGeometry{WidthPoints: 393, HeightPoints: 852, Scale: 3},
		Orientation:      domain.OrientationPortrait,
		TrackingStatus:   domain.TrackingAuthorized,
		AdvertisingID:    "6D92078A-8246-4BA4-AE5B-76104861E7DC",
		ApplicationID:    "com.example.news",
		RunningInsideApp: true,
	}
}

func TestResolveAppID(t *testing.T) {
	assert.Equal(t, "override", ResolveAppID("override", "host"))
	assert.Equal(t, "host", ResolveAppID("", "host"))
	assert.Equal(t, UnknownAppID, ResolveAppID("", ""))
}

func TestAssemble(t *testing.T) {
	geo := domain.GeoSnapshot{UTCOffset: 60}
	a := NewAssembler(staticReader{testInfo()}, staticConnection(domain.ConnectionWiFi), syncGeo{geo}, "", "1.0.0-s", discardLogger())

	var got domain.Snapshots
	a.Assemble(context.Background(), func(s domain.Snapshots) { got = s })

	require.NotNil(t, got.Mobile)
	require.NotNil(t, got.Geo)
	require.NotNil(t, got.Device)
	assert.Equal(t, "com.example.news", *got.Mobile.AppID)
	assert.Equal(t, "6D92078A-8246-4BA4-AE5B-76104861E7DC", *got.Mobile.IDFA)
	assert.Equal(t, 60, got.Geo.UTCOffset)
	assert.Equal(t, domain.ConnectionWiFi, got.Device.ConnectionType)
	assert.False(t, got.Device.LimitAdTracking)
	assert.Equal(t, "1.0.0-s", got.Metadata.SDKVersion)
}

func TestAppIDOverride(t *testing.T) {
	a := NewAssembler(staticReader{testInfo()}, staticConnection(0), syncGeo{}, "1234567890", "1.0.0-s", discardLogger())
	assert.Equal(t, "1234567890", a.AppID())
	assert.Equal(t, "1234567890", *a.Mobile().AppID)
}

func TestAdIdentifierGatedByTracking(t *testing.T) {
	info := testInfo()
	a := NewAssembler(staticReader{info}, staticConnection(0), syncGeo{}, "", "", discardLogger())
	id, ok := a.AdIdentifier()
	assert.True(t, ok)
	assert.Equal(t, info.AdvertisingID, id)

	info.TrackingStatus = domain.TrackingDenied
	a = NewAssembler(staticReader{info}, staticConnection(0), syncGeo{}, "", "", discardLogger())
	_, ok = a.AdIdentifier()
	assert.False(t, ok)
	assert.Nil(t, a.Mobile().IDFA)
}
