package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/adcontext-bridge/internal/adapter/http"
	"github.com/couchcryptid/adcontext-bridge/internal/app"
	"github.com/couchcryptid/adcontext-bridge/internal/config"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
	"github.com/couchcryptid/adcontext-bridge/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTelEndpoint, version.SDKVersion())
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to start bridge", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Routes{
		Ready:     a.Bridge,
		Consumers: a.Bridge,
		Location:  a.Location,
		Toggle:    a.Bridge,
		Metrics:   metrics,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start network monitor.
	go a.Run(ctx)

	logger.Info("bridge started", "sdk_version", version.SDKVersion(), "app_id", a.Assembler.AppID())

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := a.Close(); err != nil {
		logger.Error("bridge close error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
