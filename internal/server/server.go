// Package server exposes the run store over HTTP: run lifecycle rows,
// append-only logs and outcomes, and the outcome catalog.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tracklet-io/tracklet/internal/httpx"
	"github.com/tracklet-io/tracklet/internal/storage"
)

// Server is the run store HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Config holds the dependencies and settings for creating a Server.
type Config struct {
	DB     *storage.DB
	Logger *slog.Logger

	ServiceName         string
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64
}

// New creates the run store server with all routes configured.
func New(cfg Config) *Server {
	h := &Handlers{
		db:                  cfg.DB,
		logger:              cfg.Logger,
		serviceName:         cfg.ServiceName,
		maxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		startedAt:           time.Now(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /create_new_run", h.HandleCreateRun)
	mux.HandleFunc("POST /update_run_status", h.HandleUpdateRunStatus)
	mux.HandleFunc("POST /get_run", h.HandleGetRun)
	mux.HandleFunc("GET /get_all_runs", h.HandleGetAllRuns)
	mux.HandleFunc("GET /get_father_runs", h.HandleGetFatherRuns)
	mux.HandleFunc("GET /get_runid_childs/{id_run}", h.HandleGetRunChildren)

	mux.HandleFunc("POST /insert_log", h.HandleInsertLog)
	mux.HandleFunc("GET /get_log_from_idrun/{id_run}", h.HandleGetLogs)

	mux.HandleFunc("POST /insert_outcome_run", h.HandleInsertOutcome)
	mux.HandleFunc("GET /get_outcome_run", h.HandleGetOutcomes)
	mux.HandleFunc("GET /get_data_run_types", h.HandleGetDataRunTypes)

	mux.HandleFunc("GET /health", h.HandleHealth)

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
