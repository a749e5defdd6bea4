// Package rediscache shares reverse geocode results across bridge instances.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "adcontext:geo:"

// store is the subset of the redis client the cache uses.
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// NewClient creates a redis client for addr.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// Geocoder wraps a ReverseGeocoder with a redis-backed cache. Redis failures
// are logged and fall through to the wrapped geocoder.
type Geocoder struct {
	inner   domain.ReverseGeocoder
	rdb     store
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a redis cache decorator.
func New(inner domain.ReverseGeocoder, rdb store, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Geocoder {
	return &Geocoder{inner: inner, rdb: rdb, ttl: ttl, metrics: metrics, logger: logger}
}

// Key returns the redis key for a coordinate rounded to six decimals.
func Key(lat, lon float64) string {
	return fmt.Sprintf("%s%.6f,%.6f", keyPrefix, lat, lon)
}

func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Placemark, error) {
	key := Key(lat, lon)

	raw, err := g.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Placemark
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			g.metrics.GeocodeCache.WithLabelValues("redis", "hit").Inc()
			return p, nil
		}
		g.logger.Warn("discarding malformed cached placemark", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		g.logger.Warn("redis cache read failed", "key", key, "error", err)
	}
	g.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()

	p, err := g.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil || p.Empty() {
		return p, err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return p, nil
	}
	if err := g.rdb.Set(ctx, key, data, g.ttl).Err(); err != nil {
		g.logger.Warn("redis cache write failed", "key", key, "error", err)
	}
	return p, nil
}
