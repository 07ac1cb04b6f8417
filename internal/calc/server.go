// Package calc exposes arithmetic operations over HTTP with the full
// run-tracking pipeline: each persisted request creates a run, records
// its input arguments and result as outcomes, and advances run status.
package calc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tracklet-io/tracklet/internal/httpx"
	"github.com/tracklet-io/tracklet/internal/pipeline"
)

// Server is the arithmetic service HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Config holds the dependencies and settings for creating a Server.
type Config struct {
	Builder *pipeline.Builder
	Logger  *slog.Logger

	ServiceName         string
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64
}

// New creates the arithmetic server with all routes configured.
func New(cfg Config) *Server {
	h := &Handlers{
		builder:             cfg.Builder,
		logger:              cfg.Logger,
		serviceName:         cfg.ServiceName,
		maxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /arithmetic_operation", h.HandleArithmeticOperation)
	mux.HandleFunc("POST /sum_and_save", h.HandleSumAndSave)
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
