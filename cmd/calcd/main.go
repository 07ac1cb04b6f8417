// Command calcd serves arithmetic operations with run tracking: each
// persisted request authenticates against the credential validator,
// creates a run in the run store, and records arguments, result, and
// timing as outcomes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tracklet-io/tracklet/internal/auth"
	"github.com/tracklet-io/tracklet/internal/calc"
	"github.com/tracklet-io/tracklet/internal/config"
	"github.com/tracklet-io/tracklet/internal/identity"
	"github.com/tracklet-io/tracklet/internal/pipeline"
	"github.com/tracklet-io/tracklet/internal/runstore"
	"github.com/tracklet-io/tracklet/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("TRACKLET_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if os.Getenv("SERVICE_NAME") == "" {
		cfg.ServiceName = "sum_service"
	}

	slog.Info("calcd starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	tokens, err := auth.NewManager(cfg.SecretKey, 0, 0)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	builder := &pipeline.Builder{
		Runs:        runstore.New(cfg.RunStoreURL(), cfg.ServiceName, cfg.ClientTimeout),
		Identity:    identity.New(cfg.UserManagerURL(), cfg.ClientTimeout),
		Tokens:      tokens,
		Logger:      logger,
		ServiceName: cfg.ServiceName,
		IDService:   cfg.IDService,
	}

	srv := calc.New(calc.Config{
		Builder:             builder,
		Logger:              logger,
		ServiceName:         cfg.ServiceName,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("calcd shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("calcd stopped")
	return nil
}
