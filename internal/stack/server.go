// Package stack exposes the script stack orchestrator over HTTP. It
// accepts an ordered list of service calls, dispatches them one by one
// through the service directory, and tracks the whole stack as a
// father run with each dispatched call as a child.
package stack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tracklet-io/tracklet/internal/dispatch"
	"github.com/tracklet-io/tracklet/internal/httpx"
	"github.com/tracklet-io/tracklet/internal/pipeline"
)

// Server is the orchestrator HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Config holds the dependencies and settings for creating a Server.
type Config struct {
	Builder    *pipeline.Builder
	Dispatcher *dispatch.Dispatcher
	Logger     *slog.Logger

	ServiceName         string
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64
}

// New creates the orchestrator server with all routes configured.
func New(cfg Config) *Server {
	h := &Handlers{
		builder:             cfg.Builder,
		dispatcher:          cfg.Dispatcher,
		logger:              cfg.Logger,
		serviceName:         cfg.ServiceName,
		maxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute_script_stack", h.HandleExecuteScriptStack)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /{$}", h.HandleIndex)

	handler := httpx.Chain(cfg.Logger, cfg.ServiceName, mux)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
