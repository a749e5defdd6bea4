// Package app wires the bridge and its host capabilities from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/adcontext-bridge/internal/adapter/deviceprofile"
	"github.com/couchcryptid/adcontext-bridge/internal/adapter/googlemaps"
	kafkaadapter "github.com/couchcryptid/adcontext-bridge/internal/adapter/kafka"
	"github.com/couchcryptid/adcontext-bridge/internal/adapter/mapbox"
	"github.com/couchcryptid/adcontext-bridge/internal/adapter/netmon"
	"github.com/couchcryptid/adcontext-bridge/internal/adapter/rediscache"
	"github.com/couchcryptid/adcontext-bridge/internal/adapter/staticloc"
	"github.com/couchcryptid/adcontext-bridge/internal/bridge"
	"github.com/couchcryptid/adcontext-bridge/internal/config"
	"github.com/couchcryptid/adcontext-bridge/internal/connection"
	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/geo"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
	"github.com/couchcryptid/adcontext-bridge/internal/pipeline"
	"github.com/couchcryptid/adcontext-bridge/internal/snapshot"
	"github.com/couchcryptid/adcontext-bridge/internal/version"
)

// App is a fully wired, initialized bridge.
type App struct {
	Bridge     *bridge.Bridge
	Location   *staticloc.Provider
	Resolver   *geo.Resolver
	Classifier *connection.Classifier
	Monitor    *netmon.Monitor
	Assembler  *snapshot.Assembler

	closers []io.Closer
	logger  *slog.Logger
}

// New builds every component from cfg and initializes the bridge.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	profile, err := deviceprofile.Load(cfg.DeviceProfile)
	if err != nil {
		return nil, err
	}
	reader := deviceprofile.NewReader(profile)

	a := &App{logger: logger}

	// Initialize geocoder (GEOCODE_PROVIDER selects the backend).
	geocoder, err := a.newGeocoder(cfg, metrics)
	if err != nil {
		return nil, err
	}

	a.Classifier = connection.NewClassifier(logger, func(t domain.ConnectionType) {
		metrics.ConnectionType.Set(float64(t))
	})
	a.Monitor = netmon.New(a.Classifier, reader, netmon.Options{Interval: cfg.NetmonInterval}, logger)

	permission, _ := domain.ParseAuthorizationState(cfg.LocationPermission)
	locOpts := staticloc.Options{
		Permission:     permission,
		DistanceFilter: cfg.LocationDistanceFilter,
	}
	if f := cfg.LocationFix; f != nil {
		locOpts.Fix = &domain.Fix{Point: orb.Point{f.Lon, f.Lat}, Accuracy: f.Accuracy}
	}
	a.Location = staticloc.New(locOpts, logger)

	a.Resolver = geo.NewResolver(a.Location, geo.Options{
		Enabled:        cfg.LocationEnabled,
		Timeout:        cfg.LocationTimeout,
		GeocodeTimeout: cfg.GeocodeTimeout,
		Geocoder:       geocoder,
	}, logger, metrics)

	a.Assembler = snapshot.NewAssembler(reader, a.Classifier, a.Resolver, cfg.AppIDOverride, version.SDKVersion(), logger)

	pipeOpts := pipeline.Options{RetryDelay: cfg.CompletionRetryDelay}
	if cfg.ReportsEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		pipeOpts.Reports = writer
		a.closers = append(a.closers, writer)
		logger.Info("delivery reports enabled", "topic", cfg.KafkaReportTopic)
	}
	deliverer := pipeline.New(pipeOpts, logger, metrics)

	a.Bridge = bridge.New(a.Assembler, deliverer, a.Resolver, logger, metrics)
	a.Bridge.Initialize()
	return a, nil
}

// Run polls the network until ctx ends.
func (a *App) Run(ctx context.Context) {
	a.Monitor.Run(ctx)
}

// Close releases the report writer and the geocode cache client.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newGeocoder builds the provider chain: provider, then the optional redis
// layer, then the in-memory LRU. It returns nil when geocoding is off.
func (a *App) newGeocoder(cfg *config.Config, metrics *observability.Metrics) (domain.ReverseGeocoder, error) {
	var provider domain.ReverseGeocoder
	switch cfg.GeocodeProvider {
	case config.GeocodeMapbox:
		provider = mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeTimeout, a.logger, metrics)
	case config.GeocodeGoogle:
		client, err := googlemaps.NewClient(cfg.GoogleMapsAPIKey, a.logger, metrics)
		if err != nil {
			return nil, err
		}
		provider = client
	case config.GeocodeNone:
		a.logger.Info("reverse geocoding disabled")
		metrics.GeocodeEnabled.Set(0)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: geocode provider %q", domain.ErrInvalidConfiguration, cfg.GeocodeProvider)
	}
	metrics.GeocodeEnabled.Set(1)

	if cfg.GeocodeCacheRedisAddr != "" {
		rdb := rediscache.NewClient(cfg.GeocodeCacheRedisAddr)
		provider = rediscache.New(provider, rdb, cfg.GeocodeCacheTTL, a.logger, metrics)
		a.closers = append(a.closers, rdb)
		a.logger.Info("redis geocode cache enabled", "addr", cfg.GeocodeCacheRedisAddr, "ttl", cfg.GeocodeCacheTTL)
	}

	a.logger.Info("reverse geocoding enabled",
		"provider", cfg.GeocodeProvider,
		"cache_size", cfg.GeocodeCacheSize,
		"timeout", cfg.GeocodeTimeout,
	)
	return mapbox.NewCachedGeocoder(provider, cfg.GeocodeCacheSize, metrics), nil
}
