package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/adcontext-bridge/internal/adapter/mapbox"
	"github.com/couchcryptid/adcontext-bridge/internal/config"
	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
)

func baseConfig() *config.Config {
	return &config.Config{
		LocationEnabled:      true,
		LocationTimeout:      time.Second,
		LocationPermission:   "granted",
		LocationFix:          &config.Fix{Lat: 35.6762, Lon: 139.6503, Accuracy: 20},
		CompletionRetryDelay: time.Second,
		NetmonInterval:       time.Second,
		GeocodeProvider:      config.GeocodeNone,
		GeocodeTimeout:       time.Second,
		GeocodeCacheSize:     10,
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNew_Defaults(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	a, err := New(baseConfig(), discard(), metrics)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Bridge.Initialized())
	assert.NoError(t, a.Bridge.CheckReadiness(context.Background()))
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.GeocodeEnabled), 0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	g, err := a.Resolver.Resolve(ctx)
	require.NoError(t, err)
	require.True(t, g.HasCoordinate())
	assert.InDelta(t, 35.6762, *g.Lat, 1e-9)
	assert.Nil(t, g.Country, "no geocoder configured")
}

func TestNew_MapboxChain(t *testing.T) {
	cfg := baseConfig()
	cfg.GeocodeProvider = config.GeocodeMapbox
	cfg.MapboxToken = "pk.test"

	metrics := observability.NewMetricsForTesting()
	a, err := New(cfg, discard(), metrics)
	require.NoError(t, err)
	defer a.Close()

	g, err := a.newGeocoder(cfg, metrics)
	require.NoError(t, err)
	assert.IsType(t, &mapbox.CachedGeocoder{}, g)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeEnabled), 0)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.GeocodeProvider = "osm"

	_, err := New(cfg, discard(), observability.NewMetricsForTesting())
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestNew_BadDeviceProfile(t *testing.T) {
	cfg := baseConfig()
	cfg.DeviceProfile = "/nonexistent/profile.yaml"

	_, err := New(cfg, discard(), observability.NewMetricsForTesting())
	require.Error(t, err)
}

func TestNew_AppIDOverride(t *testing.T) {
	cfg := baseConfig()
	cfg.AppIDOverride = "com.example.override"

	a, err := New(cfg, discard(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	assert.Equal(t, "com.example.override", a.Assembler.AppID())
}
