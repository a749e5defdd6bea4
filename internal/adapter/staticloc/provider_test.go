package staticloc

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	geores "github.com/couchcryptid/adcontext-bridge/internal/geo"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
)

type recorder struct {
	mu    sync.Mutex
	fixes []domain.Fix
	auths []domain.AuthorizationState
}

func (r *recorder) events() geores.LocationEvents {
	return geores.LocationEvents{
		Coordinate: func(f domain.Fix) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.fixes = append(r.fixes, f)
		},
		Authorization: func(s domain.AuthorizationState) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.auths = append(r.auths, s)
		},
	}
}

func (r *recorder) fixCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fixes)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fixAt(lat, lon, acc float64) domain.Fix {
	return domain.Fix{Point: orb.Point{lon, lat}, Accuracy: acc}
}

func TestProvider_RequestPermissionReportsState(t *testing.T) {
	p := New(Options{Permission: domain.AuthorizationDenied}, discard())
	rec := &recorder{}
	p.Subscribe(rec.events())

	p.RequestPermission()
	assert.Equal(t, []domain.AuthorizationState{domain.AuthorizationDenied}, rec.auths)
}

func TestProvider_PromptWaitsForDecision(t *testing.T) {
	p := New(Options{Permission: domain.AuthorizationNotDetermined}, discard())
	rec := &recorder{}
	p.Subscribe(rec.events())

	p.RequestPermission()
	assert.Empty(t, rec.auths)

	p.SetAuthorization(domain.AuthorizationGranted)
	assert.Equal(t, []domain.AuthorizationState{domain.AuthorizationGranted}, rec.auths)
}

func TestProvider_StartUpdatesDeliversConfiguredFix(t *testing.T) {
	fix := fixAt(40.7128, -74.0060, 25)
	p := New(Options{Permission: domain.AuthorizationGranted, Fix: &fix}, discard())
	rec := &recorder{}
	p.Subscribe(rec.events())

	p.StartUpdates()
	require.Len(t, rec.fixes, 1)
	assert.Equal(t, fix, rec.fixes[0])

	p.StartUpdates()
	assert.Len(t, rec.fixes, 1, "already updating")
}

func TestProvider_AcquireDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fix := fixAt(40.7128, -74.0060, 25)
	p := New(Options{Permission: domain.AuthorizationGranted, Fix: &fix, AcquireDelay: 2 * time.Second, Clock: clock}, discard())
	rec := &recorder{}
	p.Subscribe(rec.events())

	p.StartUpdates()
	assert.Equal(t, 0, rec.fixCount())

	clock.Advance(2 * time.Second)
	assert.Eventually(t, func() bool { return rec.fixCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestProvider_StopCancelsAcquire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fix := fixAt(40.7128, -74.0060, 25)
	p := New(Options{Permission: domain.AuthorizationGranted, Fix: &fix, AcquireDelay: time.Second, Clock: clock}, discard())
	rec := &recorder{}
	p.Subscribe(rec.events())

	p.StartUpdates()
	p.StopUpdates()
	clock.Advance(time.Second)
	assert.Equal(t, 0, rec.fixCount())
}

func TestProvider_DistanceFilter(t *testing.T) {
	p := New(Options{Permission: domain.AuthorizationGranted, DistanceFilter: 100}, discard())
	rec := &recorder{}
	p.Subscribe(rec.events())
	p.StartUpdates()

	p.SetFix(fixAt(51.5007, -0.1246, 30))
	p.SetFix(fixAt(51.5008, -0.1246, 30)) // about 11 m away
	assert.Len(t, rec.fixes, 1)

	p.SetFix(fixAt(51.5008, -0.1246, 10)) // better accuracy passes
	assert.Len(t, rec.fixes, 2)

	p.SetFix(fixAt(51.5100, -0.1246, 10)) // about 1 km away
	assert.Len(t, rec.fixes, 3)
}

func TestProvider_RestartBypassesFilter(t *testing.T) {
	fix := fixAt(51.5007, -0.1246, 30)
	p := New(Options{Permission: domain.AuthorizationGranted, Fix: &fix, DistanceFilter: 100}, discard())
	rec := &recorder{}
	p.Subscribe(rec.events())

	p.StartUpdates()
	p.StopUpdates()
	p.StartUpdates()
	assert.Len(t, rec.fixes, 2)
}

func TestProvider_NoFixWithoutGrant(t *testing.T) {
	p := New(Options{Permission: domain.AuthorizationDenied}, discard())
	rec := &recorder{}
	p.Subscribe(rec.events())
	p.StartUpdates()

	p.SetFix(fixAt(1, 1, 10))
	assert.Empty(t, rec.fixes)
	require.NotNil(t, p.State().Fix)
	assert.False(t, p.State().Fix.Point.Equal(orb.Point{}))
}

func TestProvider_DrivesResolver(t *testing.T) {
	fix := fixAt(48.8584, 2.2945, 20)
	p := New(Options{Permission: domain.AuthorizationGranted, Fix: &fix}, discard())
	r := geores.NewResolver(p, geores.Options{Enabled: true}, discard(), observability.NewMetricsForTesting())
	r.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	g, err := r.Resolve(ctx)
	require.NoError(t, err)
	require.True(t, g.HasCoordinate())
	assert.InDelta(t, 48.8584, *g.Lat, 1e-9)
	assert.InDelta(t, 2.2945, *g.Lon, 1e-9)
}
