package pipeline

import (
	"log/slog"
	"sync"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
)

type joinState int

const (
	joinWaiting joinState = iota
	joinHaveConsumer
	joinHaveData
	joinFired
)

func (s joinState) String() string {
	switch s {
	case joinHaveConsumer:
		return "have_consumer"
	case joinHaveData:
		return "have_data"
	case joinFired:
		return "fired"
	default:
		return "waiting"
	}
}

// FireFunc receives the consumer and snapshots once both have arrived.
type FireFunc func(Handle, domain.Snapshots)

// Rendezvous joins the consumer-attached and data-assembled signals. They may
// arrive in either order; fire runs exactly once, after the second one, and
// never while the rendezvous lock is held. If only one signal ever arrives
// nothing happens.
type Rendezvous struct {
	fire   FireFunc
	logger *slog.Logger

	mu       sync.Mutex
	state    joinState
	consumer Handle
	data     domain.Snapshots
}

// NewRendezvous creates a rendezvous in the waiting state.
func NewRendezvous(fire FireFunc, logger *slog.Logger) *Rendezvous {
	return &Rendezvous{fire: fire, logger: logger}
}

// ConsumerAttached records the consumer. A second call is ignored.
func (r *Rendezvous) ConsumerAttached(h Handle) {
	r.mu.Lock()
	switch r.state {
	case joinWaiting:
		r.consumer = h
		r.state = joinHaveConsumer
		r.mu.Unlock()
	case joinHaveData:
		r.consumer = h
		r.state = joinFired
		data := r.data
		r.mu.Unlock()
		r.fire(h, data)
	default:
		state := r.state
		r.mu.Unlock()
		r.logger.Warn("consumer already attached, ignoring", "state", state.String())
	}
}

// DataAssembled records the snapshots. A second call is ignored.
func (r *Rendezvous) DataAssembled(s domain.Snapshots) {
	r.mu.Lock()
	switch r.state {
	case joinWaiting:
		r.data = s
		r.state = joinHaveData
		r.mu.Unlock()
	case joinHaveConsumer:
		r.data = s
		r.state = joinFired
		h := r.consumer
		r.mu.Unlock()
		r.fire(h, s)
	default:
		state := r.state
		r.mu.Unlock()
		r.logger.Warn("data already assembled, ignoring", "state", state.String())
	}
}

// Fired reports whether the delivery has been triggered.
func (r *Rendezvous) Fired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == joinFired
}
