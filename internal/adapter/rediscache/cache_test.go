package rediscache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	readErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) *redis.StringCmd {
	if m.readErr != nil {
		return redis.NewStringResult("", m.readErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memStore) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = string(value.([]byte))
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

type countingGeocoder struct {
	calls  int
	result domain.Placemark
	err    error
}

func (c *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.Placemark, error) {
	c.calls++
	return c.result, c.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGeocoder_MissThenHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.Placemark{CountryCode: "DE", Locality: "Berlin", PostalCode: "10117"}}
	st := newMemStore()
	metrics := observability.NewMetricsForTesting()
	g := New(inner, st, time.Hour, discard(), metrics)

	p1, err := g.ReverseGeocode(context.Background(), 52.5163, 13.3777)
	require.NoError(t, err)
	p2, err := g.ReverseGeocode(context.Background(), 52.5163, 13.3777)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, time.Hour, st.ttls[Key(52.5163, 13.3777)])
	assert.JSONEq(t, `{"country_code":"DE","locality":"Berlin","postal_code":"10117"}`, st.data[Key(52.5163, 13.3777)])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("redis", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("redis", "miss")), 0)
}

func TestGeocoder_EmptyAndErrorsNotStored(t *testing.T) {
	inner := &countingGeocoder{}
	st := newMemStore()
	g := New(inner, st, time.Hour, discard(), observability.NewMetricsForTesting())

	_, err := g.ReverseGeocode(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, st.data)

	inner.err = errors.New("quota exceeded")
	_, err = g.ReverseGeocode(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Empty(t, st.data)
}

func TestGeocoder_RedisDownFallsThrough(t *testing.T) {
	inner := &countingGeocoder{result: domain.Placemark{CountryCode: "US"}}
	st := newMemStore()
	st.readErr = errors.New("connection refused")
	g := New(inner, st, time.Hour, discard(), observability.NewMetricsForTesting())

	p, err := g.ReverseGeocode(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "US", p.CountryCode)
	assert.Equal(t, 1, inner.calls)
}

func TestGeocoder_MalformedEntryRefetched(t *testing.T) {
	inner := &countingGeocoder{result: domain.Placemark{CountryCode: "US"}}
	st := newMemStore()
	st.data[Key(1, 1)] = "{not json"
	g := New(inner, st, time.Hour, discard(), observability.NewMetricsForTesting())

	p, err := g.ReverseGeocode(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "US", p.CountryCode)
	assert.Equal(t, 1, inner.calls)
}
