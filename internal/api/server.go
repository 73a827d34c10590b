// Package api serves reconciliation jobs and run history over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eshaffer321/summons-reconcile/internal/api/handlers"
	"github.com/eshaffer321/summons-reconcile/internal/api/middleware"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/storage"
	"github.com/eshaffer321/summons-reconcile/internal/observability"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string

	// MetricsPath is where Prometheus metrics are served. Empty disables it.
	MetricsPath string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		MetricsPath:    "/metrics",
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	reconciler handlers.Reconciler
	gatherer   prometheus.Gatherer
}

// NewServer creates a new API server.
// If reconciler is nil, job endpoints are not registered. If gatherer is nil,
// metrics are not exposed.
func NewServer(
	cfg Config,
	repo storage.Repository,
	reconciler handlers.Reconciler,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:     cfg,
		router:     gin.New(),
		logger:     logger,
		repo:       repo,
		reconciler: reconciler,
		gatherer:   gatherer,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger, "/health", s.config.MetricsPath))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	s.router.GET("/health", handlers.NewHealthHandler().Get)

	if s.gatherer != nil && s.config.MetricsPath != "" {
		s.router.GET(s.config.MetricsPath, gin.WrapH(observability.Handler(s.gatherer)))
	}

	api := s.router.Group("/api")
	{
		runsHandler := handlers.NewRunsHandler(s.repo)
		api.GET("/runs", runsHandler.List)
		api.GET("/runs/:id", runsHandler.Get)

		if s.reconciler != nil {
			reconcileHandler := handlers.NewReconcileHandler(s.reconciler)
			api.POST("/reconcile", reconcileHandler.Start)
			api.GET("/reconcile", reconcileHandler.Status)
			api.DELETE("/reconcile", reconcileHandler.Cancel)
		}
	}
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the HTTP handler for testing.
func (s *Server) Router() http.Handler {
	return s.router
}
