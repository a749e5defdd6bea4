// Package geo resolves approximate device location into geo snapshots.
//
// Requests that arrive before a usable coordinate exists are queued. The queue
// is drained in one step when a valid coordinate arrives or permission is
// denied; each entry also carries its own deadline. Whichever of the three
// resolves an entry first wins and the others find it already gone.
package geo

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
)

// DefaultTimeout bounds how long a queued request waits for a coordinate.
const DefaultTimeout = 10 * time.Second

// Outcome labels for the geo_requests_total metric.
const (
	outcomeDisabled  = "disabled"
	outcomeImmediate = "immediate"
	outcomeFulfilled = "fulfilled"
	outcomeDenied    = "denied"
	outcomeTimeout   = "timeout"
)

// Options configures a Resolver.
type Options struct {
	Enabled        bool
	Timeout        time.Duration // per-request deadline; DefaultTimeout when zero
	GeocodeTimeout time.Duration // bound on one reverse geocode call; unbounded when zero
	Geocoder       domain.ReverseGeocoder
	Clock          clockwork.Clock
}

type request struct {
	id      uuid.UUID
	ctx     context.Context
	deliver func(domain.GeoSnapshot)
	timer   clockwork.Timer
}

// Resolver owns the coordinate cell, the authorization state, and the queue
// of pending geo requests.
type Resolver struct {
	provider       LocationProvider
	geocoder       domain.ReverseGeocoder
	clock          clockwork.Clock
	timeout        time.Duration
	geocodeTimeout time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics

	mu      sync.Mutex
	enabled bool
	auth    domain.AuthorizationState
	fix     *domain.Fix
	pending []*request
}

// NewResolver creates a Resolver and subscribes it to the provider's events.
// Call Start to issue the initial permission request.
func NewResolver(provider LocationProvider, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	r := &Resolver{
		provider:       provider,
		geocoder:       opts.Geocoder,
		clock:          opts.Clock,
		timeout:        opts.Timeout,
		geocodeTimeout: opts.GeocodeTimeout,
		logger:         logger,
		metrics:        metrics,
		enabled:        opts.Enabled,
	}
	metrics.LocationEnabled.Set(boolGauge(opts.Enabled))

	provider.Subscribe(LocationEvents{
		Coordinate:    r.OnCoordinateUpdate,
		Authorization: r.OnAuthorizationChanged,
		Failure:       r.onFailure,
	})
	return r
}

// Start requests location permission when geolocation is enabled.
func (r *Resolver) Start() {
	r.mu.Lock()
	enabled := r.enabled
	r.mu.Unlock()

	if enabled {
		r.provider.RequestPermission()
	}
}

// RequestGeo asks for one geo snapshot. deliver is called exactly once, either
// synchronously (geolocation disabled) or from another goroutine.
func (r *Resolver) RequestGeo(ctx context.Context, deliver func(domain.GeoSnapshot)) {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		r.metrics.GeoRequests.WithLabelValues(outcomeDisabled).Inc()
		deliver(domain.OffsetOnly())
		return
	}

	if r.fix != nil && r.fix.Valid() {
		fix := *r.fix
		r.mu.Unlock()
		r.metrics.GeoRequests.WithLabelValues(outcomeImmediate).Inc()
		go r.enrichAndDeliver(ctx, fix, deliver)
		return
	}

	req := &request{id: uuid.New(), ctx: ctx, deliver: deliver}
	req.timer = r.clock.AfterFunc(r.timeout, func() { r.expire(req.id) })
	r.pending = append(r.pending, req)
	r.metrics.GeoPending.Set(float64(len(r.pending)))
	r.mu.Unlock()

	r.logger.Debug("geo request queued", "request_id", req.id)
	r.provider.RequestPermission()
}

// Resolve is the blocking form of RequestGeo. It returns ctx.Err() if the
// context ends first; the request itself still completes in the background.
func (r *Resolver) Resolve(ctx context.Context) (domain.GeoSnapshot, error) {
	ch := make(chan domain.GeoSnapshot, 1)
	r.RequestGeo(ctx, func(g domain.GeoSnapshot) { ch <- g })

	select {
	case g := <-ch:
		return g, nil
	case <-ctx.Done():
		return domain.GeoSnapshot{}, ctx.Err()
	}
}

// OnCoordinateUpdate records a new fix. A valid fix drains the whole queue.
func (r *Resolver) OnCoordinateUpdate(fix domain.Fix) {
	r.mu.Lock()
	r.fix = &fix
	if !fix.Valid() || len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	drained := r.drainLocked()
	r.mu.Unlock()

	r.logger.Debug("coordinate resolved pending geo requests", "count", len(drained), "accuracy", fix.Accuracy)
	for _, req := range drained {
		r.metrics.GeoRequests.WithLabelValues(outcomeFulfilled).Inc()
		go r.enrichAndDeliver(req.ctx, fix, req.deliver)
	}
}

// OnAuthorizationChanged reacts to permission changes. Granting starts updates
// when enabled. Denial stops updates, forgets the coordinate, and answers every
// pending request with an offset-only snapshot.
func (r *Resolver) OnAuthorizationChanged(state domain.AuthorizationState) {
	r.mu.Lock()
	r.auth = state
	enabled := r.enabled

	switch state {
	case domain.AuthorizationGranted:
		r.mu.Unlock()
		if enabled {
			r.provider.StartUpdates()
		}

	case domain.AuthorizationDenied:
		r.fix = nil
		drained := r.drainLocked()
		r.mu.Unlock()

		r.provider.StopUpdates()
		if len(drained) > 0 {
			r.logger.Info("location permission denied, answering pending geo requests", "count", len(drained))
		}
		for _, req := range drained {
			r.metrics.GeoRequests.WithLabelValues(outcomeDenied).Inc()
			req.deliver(domain.OffsetOnly())
		}

	default:
		r.mu.Unlock()
	}
}

// SetEnabled toggles geolocation. Enabling requests permission, disabling
// stops updates. Requests already queued keep their deadlines.
func (r *Resolver) SetEnabled(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	r.mu.Unlock()

	r.metrics.LocationEnabled.Set(boolGauge(enabled))
	if enabled {
		r.provider.RequestPermission()
	} else {
		r.provider.StopUpdates()
	}
}

// Enabled reports whether geolocation is enabled.
func (r *Resolver) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Authorization returns the last reported permission state.
func (r *Resolver) Authorization() domain.AuthorizationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.auth
}

// Pending returns the number of queued requests.
func (r *Resolver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// expire removes one request on deadline. A request that was already drained
// is not found and nothing happens.
func (r *Resolver) expire(id uuid.UUID) {
	r.mu.Lock()
	i := slices.IndexFunc(r.pending, func(req *request) bool { return req.id == id })
	if i < 0 {
		r.mu.Unlock()
		return
	}
	req := r.pending[i]
	r.pending = slices.Delete(r.pending, i, i+1)
	r.metrics.GeoPending.Set(float64(len(r.pending)))

	var fix *domain.Fix
	if r.fix != nil && r.fix.Valid() {
		f := *r.fix
		fix = &f
	}
	r.mu.Unlock()

	r.metrics.GeoRequests.WithLabelValues(outcomeTimeout).Inc()
	r.logger.Debug("geo request timed out", "request_id", id, "has_coordinate", fix != nil)
	if fix == nil {
		req.deliver(domain.OffsetOnly())
		return
	}
	r.enrichAndDeliver(req.ctx, *fix, req.deliver)
}

// drainLocked empties the queue and stops every deadline. r.mu must be held.
func (r *Resolver) drainLocked() []*request {
	drained := r.pending
	r.pending = nil
	for _, req := range drained {
		req.timer.Stop()
	}
	r.metrics.GeoPending.Set(0)
	return drained
}

func (r *Resolver) enrichAndDeliver(ctx context.Context, fix domain.Fix, deliver func(domain.GeoSnapshot)) {
	if r.geocodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), r.geocodeTimeout)
		defer cancel()
	}
	deliver(domain.EnrichGeo(ctx, fix, r.geocoder, r.logger))
}

func (r *Resolver) onFailure(err error) {
	r.logger.Debug("location update failed", "error", err)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
