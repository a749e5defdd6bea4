// Package staticloc is a location capability fed by configuration and by the
// HTTP location endpoints instead of positioning hardware.
package staticloc

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geo"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	geores "github.com/couchcryptid/adcontext-bridge/internal/geo"
)

// Options configures a Provider.
type Options struct {
	// Permission is what RequestPermission reports. NotDetermined leaves the
	// decision to a later SetAuthorization call, like an unanswered prompt.
	Permission domain.AuthorizationState
	// Fix is the starting coordinate, if any.
	Fix *domain.Fix
	// DistanceFilter suppresses fixes closer than this many meters to the last
	// delivered one unless their accuracy improved. Zero delivers every fix.
	DistanceFilter float64
	// AcquireDelay is the simulated time to first fix after StartUpdates.
	AcquireDelay time.Duration
	Clock        clockwork.Clock
}

// State is a point-in-time view of the provider for the status endpoint.
type State struct {
	Authorization domain.AuthorizationState
	Updating      bool
	Fix           *domain.Fix
}

// Provider implements geo.LocationProvider. Callbacks are always invoked
// without the provider lock held.
type Provider struct {
	clock          clockwork.Clock
	distanceFilter float64
	acquireDelay   time.Duration
	logger         *slog.Logger

	mu        sync.Mutex
	events    geores.LocationEvents
	auth      domain.AuthorizationState
	fix       *domain.Fix
	delivered *domain.Fix
	updating  bool
	acquiring clockwork.Timer
}

// New creates a Provider.
func New(opts Options, logger *slog.Logger) *Provider {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	p := &Provider{
		clock:          opts.Clock,
		distanceFilter: opts.DistanceFilter,
		acquireDelay:   opts.AcquireDelay,
		logger:         logger,
		auth:           opts.Permission,
	}
	if opts.Fix != nil {
		f := *opts.Fix
		p.fix = &f
	}
	return p
}

func (p *Provider) Subscribe(events geores.LocationEvents) {
	p.mu.Lock()
	p.events = events
	p.mu.Unlock()
}

// RequestPermission reports the current permission state. An undetermined
// state reports nothing; SetAuthorization answers later.
func (p *Provider) RequestPermission() {
	p.mu.Lock()
	auth, events := p.auth, p.events
	p.mu.Unlock()

	if auth == domain.AuthorizationNotDetermined {
		p.logger.Debug("location permission pending")
		return
	}
	if events.Authorization != nil {
		events.Authorization(auth)
	}
}

// StartUpdates begins delivering fixes. The configured fix, if any, arrives
// after the acquire delay.
func (p *Provider) StartUpdates() {
	p.mu.Lock()
	if p.updating {
		p.mu.Unlock()
		return
	}
	p.updating = true
	if p.fix == nil {
		p.mu.Unlock()
		return
	}
	if p.acquireDelay > 0 {
		p.acquiring = p.clock.AfterFunc(p.acquireDelay, p.deliverCurrent)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.deliverCurrent()
}

// StopUpdates halts delivery. The next StartUpdates delivers the current fix
// again regardless of the distance filter.
func (p *Provider) StopUpdates() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updating = false
	p.delivered = nil
	if p.acquiring != nil {
		p.acquiring.Stop()
		p.acquiring = nil
	}
}

// SetFix replaces the current coordinate and delivers it when updates are
// running and it passes the distance filter.
func (p *Provider) SetFix(fix domain.Fix) {
	p.mu.Lock()
	p.fix = &fix
	p.mu.Unlock()
	p.deliverCurrent()
}

// SetAuthorization changes the permission state and reports it.
func (p *Provider) SetAuthorization(state domain.AuthorizationState) {
	p.mu.Lock()
	p.auth = state
	events := p.events
	p.mu.Unlock()

	p.logger.Info("location authorization changed", "state", state.String())
	if events.Authorization != nil {
		events.Authorization(state)
	}
}

// State returns the current provider state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := State{Authorization: p.auth, Updating: p.updating}
	if p.fix != nil {
		f := *p.fix
		s.Fix = &f
	}
	return s
}

func (p *Provider) deliverCurrent() {
	p.mu.Lock()
	p.acquiring = nil
	if !p.updating || p.fix == nil || p.auth != domain.AuthorizationGranted {
		p.mu.Unlock()
		return
	}
	fix := *p.fix
	if p.suppressedLocked(fix) {
		p.mu.Unlock()
		p.logger.Debug("fix suppressed by distance filter", "lat", fix.Lat(), "lon", fix.Lon())
		return
	}
	p.delivered = &fix
	events := p.events
	p.mu.Unlock()

	if events.Coordinate != nil {
		events.Coordinate(fix)
	}
}

func (p *Provider) suppressedLocked(fix domain.Fix) bool {
	if p.delivered == nil || p.distanceFilter <= 0 {
		return false
	}
	if fix.Accuracy < p.delivered.Accuracy {
		return false
	}
	return geo.Distance(p.delivered.Point, fix.Point) < p.distanceFilter
}
