package mapbox

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
)

// CachedGeocoder keeps recent placemarks in memory and lets concurrent
// lookups of the same rounded coordinate share one upstream call. It works
// with any provider; it lives here because Mapbox was the first one.
type CachedGeocoder struct {
	inner   domain.ReverseGeocoder
	metrics *observability.Metrics

	mu       sync.Mutex
	recent   *lruCache[domain.Placemark]
	inflight map[string]*lookup
}

// lookup is an upstream call other callers can wait on.
type lookup struct {
	done   chan struct{}
	result domain.Placemark
	err    error
}

// NewCachedGeocoder wraps inner with a cache holding at most maxEntries placemarks.
func NewCachedGeocoder(inner domain.ReverseGeocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:    inner,
		metrics:  metrics,
		recent:   newLRUCache[domain.Placemark](maxEntries),
		inflight: make(map[string]*lookup),
	}
}

// CacheKey rounds coordinates to six decimals (about 0.1 m) so identical
// fixes share an entry.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Placemark, error) {
	key := CacheKey(lat, lon)

	c.mu.Lock()
	if pm, ok := c.recent.get(key); ok {
		c.mu.Unlock()
		c.metrics.GeocodeCache.WithLabelValues("memory", "hit").Inc()
		return pm, nil
	}
	if l, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		c.metrics.GeocodeCache.WithLabelValues("memory", "coalesced").Inc()
		select {
		case <-l.done:
			return l.result, l.err
		case <-ctx.Done():
			return domain.Placemark{}, ctx.Err()
		}
	}
	l := &lookup{done: make(chan struct{})}
	c.inflight[key] = l
	c.mu.Unlock()
	c.metrics.GeocodeCache.WithLabelValues("memory", "miss").Inc()

	l.result, l.err = c.inner.ReverseGeocode(ctx, lat, lon)

	c.mu.Lock()
	delete(c.inflight, key)
	// Empty results and errors stay uncached so the next fix asks again.
	if l.err == nil && !l.result.Empty() {
		c.recent.put(key, l.result)
	}
	c.mu.Unlock()
	close(l.done)

	return l.result, l.err
}

// lruCache is a bounded least-recently-used map. It is not safe for
// concurrent use; CachedGeocoder guards it.
type lruCache[V any] struct {
	capacity int
	order    *list.List // front is most recent
	index    map[string]*list.Element
}

type lruItem[V any] struct {
	key   string
	value V
}

func newLRUCache[V any](capacity int) *lruCache[V] {
	return &lruCache[V]{
		capacity: max(capacity, 1),
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	el, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem[V]).value, true
}

func (c *lruCache[V]) put(key string, value V) {
	if el, ok := c.index[key]; ok {
		el.Value.(*lruItem[V]).value = value
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(&lruItem[V]{key: key, value: value})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*lruItem[V]).key)
	}
}

func (c *lruCache[V]) len() int { return c.order.Len() }
