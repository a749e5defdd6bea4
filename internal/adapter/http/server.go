package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/adcontext-bridge/internal/adapter/staticloc"
	"github.com/couchcryptid/adcontext-bridge/internal/adapter/wsconsumer"
	"github.com/couchcryptid/adcontext-bridge/internal/bridge"
	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
)

// ConsumerRegistrar registers connected consumers for delivery.
type ConsumerRegistrar interface {
	Register(ctx context.Context, target any) (*bridge.Registration, error)
}

// LocationFeed is the writable location capability behind /v1/location.
type LocationFeed interface {
	SetFix(domain.Fix)
	SetAuthorization(domain.AuthorizationState)
	State() staticloc.State
}

// LocationToggle switches geolocation on and off.
type LocationToggle interface {
	SetLocationEnabled(bool)
}

// Routes holds the collaborators behind each endpoint group. Nil members
// leave their routes unregistered.
type Routes struct {
	Ready     sharedobs.ReadinessChecker
	Consumers ConsumerRegistrar
	Location  LocationFeed
	Toggle    LocationToggle
	Metrics   *observability.Metrics // required when Consumers is set
}

// Server exposes health, metrics, consumer, and location endpoints.
type Server struct {
	httpServer *http.Server
	routes     Routes
	logger     *slog.Logger

	// sessions outlive their request; Shutdown cancels them.
	sessionCtx    context.Context
	cancelSession context.CancelFunc
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// routes enabled by r.
func NewServer(addr string, r Routes, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		routes:        r,
		logger:        logger,
		sessionCtx:    ctx,
		cancelSession: cancel,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(r.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	if r.Consumers != nil {
		mux.Handle("GET /{$}", wsconsumer.PageHandler())
		mux.HandleFunc("GET /v1/consumer", s.handleConsumer)
	}
	if r.Location != nil {
		mux.HandleFunc("GET /v1/location", s.handleLocationState)
		mux.HandleFunc("POST /v1/location", s.handleLocationFix)
		mux.HandleFunc("POST /v1/location/authorization", s.handleAuthorization)
	}
	if r.Toggle != nil {
		mux.HandleFunc("PUT /v1/location/enabled", s.handleEnabled)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown closes consumer sessions and drains connections within the given
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelSession()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleConsumer(w http.ResponseWriter, r *http.Request) {
	session, err := wsconsumer.Upgrade(w, r, s.logger)
	if err != nil {
		s.logger.Warn("consumer connection rejected", "error", err)
		return // Upgrade already wrote the HTTP error
	}

	reg, err := s.routes.Consumers.Register(s.sessionCtx, session)
	if err != nil {
		s.logger.Error("consumer registration failed", "error", err, "code", domain.Code(err))
		_ = session.Close()
		return
	}

	logger := s.logger.With("registration_id", reg.ID)
	logger.Info("consumer connected", "remote", r.RemoteAddr)
	s.routes.Metrics.ConsumersAttached.Inc()
	defer s.routes.Metrics.ConsumersAttached.Dec()

	if err := session.Run(s.sessionCtx); err != nil {
		logger.Warn("consumer session ended", "error", err)
		return
	}
	logger.Info("consumer disconnected")
}

type locationState struct {
	Authorization string   `json:"authorization"`
	Updating      bool     `json:"updating"`
	Lat           *float64 `json:"lat,omitempty"`
	Lon           *float64 `json:"lon,omitempty"`
	Accuracy      *float64 `json:"accuracy,omitempty"`
}

func (s *Server) handleLocationState(w http.ResponseWriter, _ *http.Request) {
	st := s.routes.Location.State()
	out := locationState{Authorization: st.Authorization.String(), Updating: st.Updating}
	if st.Fix != nil {
		lat, lon, acc := st.Fix.Lat(), st.Fix.Lon(), st.Fix.Accuracy
		out.Lat, out.Lon, out.Accuracy = &lat, &lon, &acc
	}
	writeJSON(w, http.StatusOK, out)
}

type fixRequest struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Accuracy *float64 `json:"accuracy"`
}

func (f fixRequest) validate() error {
	if f.Lat == nil || f.Lon == nil || f.Accuracy == nil {
		return errors.New("lat, lon, and accuracy are required")
	}
	if *f.Lat < -90 || *f.Lat > 90 || *f.Lon < -180 || *f.Lon > 180 {
		return fmt.Errorf("coordinate out of range: %g,%g", *f.Lat, *f.Lon)
	}
	return nil
}

func (s *Server) handleLocationFix(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Invalid accuracy is accepted here; the resolver decides usability.
	s.routes.Location.SetFix(domain.Fix{Point: orb.Point{*req.Lon, *req.Lat}, Accuracy: *req.Accuracy})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAuthorization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, ok := domain.ParseAuthorizationState(req.State)
	if !ok || req.State == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown authorization state %q", req.State))
		return
	}

	s.routes.Location.SetAuthorization(state)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, errors.New("enabled is required"))
		return
	}

	s.routes.Toggle.SetLocationEnabled(*req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
