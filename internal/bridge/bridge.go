// Package bridge is the host-facing entry point: initialize once, then
// inject a basic payload into a consumer or register it for full delivery.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
	"github.com/couchcryptid/adcontext-bridge/internal/pipeline"
)

// Assembler produces snapshots for a registration.
type Assembler interface {
	AppID() string
	AdIdentifier() (string, bool)
	Assemble(ctx context.Context, done func(domain.Snapshots))
}

// Deliverer runs a delivery pass in the background.
type Deliverer interface {
	Deliver(ctx context.Context, h pipeline.Handle, s domain.Snapshots)
}

// Location is the geolocation switch.
type Location interface {
	Start()
	SetEnabled(bool)
}

// WeakReferable is implemented by consumers that can hand out a handle which
// does not keep them alive.
type WeakReferable interface {
	WeakHandle() pipeline.Handle
}

// Registration tracks one consumer registered for delivery.
type Registration struct {
	ID         string
	rendezvous *pipeline.Rendezvous
}

// Delivered reports whether the delivery pass has been triggered.
func (r *Registration) Delivered() bool { return r.rendezvous.Fired() }

// Bridge coordinates snapshot assembly and delivery for registered consumers.
type Bridge struct {
	assembler Assembler
	deliverer Deliverer
	location  Location
	logger    *slog.Logger
	metrics   *observability.Metrics

	initOnce    sync.Once
	initialized atomic.Bool
}

// New creates a Bridge. It does nothing until Initialize is called.
func New(assembler Assembler, deliverer Deliverer, location Location, logger *slog.Logger, metrics *observability.Metrics) *Bridge {
	return &Bridge{
		assembler: assembler,
		deliverer: deliverer,
		location:  location,
		logger:    logger,
		metrics:   metrics,
	}
}

// Initialize starts location services. Only the first call has any effect.
func (b *Bridge) Initialize() {
	first := false
	b.initOnce.Do(func() {
		first = true
		b.location.Start()
		b.initialized.Store(true)
		b.logger.Info("bridge initialized")
	})
	if !first {
		b.logger.Warn("bridge already initialized")
	}
}

// Initialized reports whether Initialize has run.
func (b *Bridge) Initialized() bool { return b.initialized.Load() }

// CheckReadiness returns nil once the bridge is initialized.
func (b *Bridge) CheckReadiness(_ context.Context) error {
	if !b.initialized.Load() {
		return domain.ErrNotInitialized
	}
	return nil
}

// SetLocationEnabled turns geolocation on or off.
func (b *Bridge) SetLocationEnabled(enabled bool) {
	b.location.SetEnabled(enabled)
}

// Inject evaluates the basic mobile payload (application id and advertising
// identifier) in target and waits for the result.
func (b *Bridge) Inject(ctx context.Context, target any) error {
	consumer, err := b.consumerFor(target)
	if err != nil {
		return err
	}

	adID, _ := b.assembler.AdIdentifier()
	script := pipeline.BasicMobileScript(b.assembler.AppID(), adID)
	if _, err := consumer.Evaluate(ctx, script); err != nil {
		b.logger.Error("script injection failed", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrInjectionFailed, err)
	}
	b.logger.Info("script injection succeeded")
	return nil
}

// Register arranges for the full snapshot set to be delivered to target once
// both the snapshots are assembled and the target has finished loading.
// Targets that cannot signal load completion are treated as already loaded.
func (b *Bridge) Register(ctx context.Context, target any) (*Registration, error) {
	consumer, err := b.consumerFor(target)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ctx = pipeline.WithRegistrationID(ctx, id)
	logger := b.logger.With("registration_id", id)

	rv := pipeline.NewRendezvous(func(h pipeline.Handle, s domain.Snapshots) {
		logger.Debug("consumer and data ready, delivering")
		b.deliverer.Deliver(ctx, h, s)
	}, logger)

	handle := pipeline.Strong(consumer)
	if w, ok := target.(WeakReferable); ok {
		handle = w.WeakHandle()
	}

	if n, ok := target.(pipeline.LoadNotifier); ok {
		n.OnLoadFinished(func() { rv.ConsumerAttached(handle) })
	} else {
		rv.ConsumerAttached(handle)
	}
	b.assembler.Assemble(ctx, rv.DataAssembled)

	b.metrics.Registrations.Inc()
	logger.Info("consumer registered")
	return &Registration{ID: id, rendezvous: rv}, nil
}

func (b *Bridge) consumerFor(target any) (pipeline.Consumer, error) {
	if !b.initialized.Load() {
		return nil, domain.ErrNotInitialized
	}
	consumer, ok := target.(pipeline.Consumer)
	if !ok || consumer == nil {
		return nil, fmt.Errorf("%w: %T", domain.ErrUnsupportedConsumer, target)
	}
	return consumer, nil
}
