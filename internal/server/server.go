// Package server exposes the synced state and audit workflow to local
// consumers over HTTP, plus Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rfenwick/tradedesk/internal/server/handler"
	"github.com/rfenwick/tradedesk/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port   int
	APIKey string // empty disables auth
}

// Handlers aggregates the handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Desk   *handler.DeskHandler
	Audit  *handler.AuditHandler
	Tuning *handler.TuningHandler
}

// Server is the local HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and middleware and returns the Server.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and metrics stay unauthenticated-friendly and cheap.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/status", handlers.Desk.GetStatus)
	mux.HandleFunc("GET /api/signals", handlers.Desk.ListSignals)
	mux.HandleFunc("GET /api/thoughts", handlers.Desk.ListThoughts)
	mux.HandleFunc("POST /api/command", handlers.Desk.SendCommand)

	mux.HandleFunc("GET /api/audit", handlers.Audit.GetSession)
	mux.HandleFunc("POST /api/audit/trigger", handlers.Audit.TriggerRun)
	mux.HandleFunc("POST /api/audit/repair", handlers.Audit.RepairStage)
	mux.HandleFunc("DELETE /api/audit", handlers.Audit.Dismiss)
	mux.HandleFunc("GET /api/audit/runs", handlers.Audit.ListRuns)

	mux.HandleFunc("GET /api/tuning", handlers.Tuning.ListHistory)

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Start listens for HTTP requests and blocks until shutdown or error.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
