// Package api exposes the reconciliation pipeline and its persisted state
// over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/docmatch-backend/internal/api/handlers"
	"github.com/eshaffer321/docmatch-backend/internal/api/middleware"
	"github.com/eshaffer321/docmatch-backend/internal/application/service"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/config"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: middleware.DefaultCORSConfig().AllowedOrigins,
	}
}

// ConfigFrom builds the server config from the application config.
func ConfigFrom(cfg config.ServerConfig) Config {
	out := DefaultConfig()
	if cfg.Port > 0 {
		out.Port = cfg.Port
	}
	if len(cfg.AllowedOrigins) > 0 {
		out.AllowedOrigins = cfg.AllowedOrigins
	}
	return out
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	reconciler *service.ReconcileService
}

// NewServer creates a new API server.
// If reconciler is nil, the reconcile endpoints are not registered.
func NewServer(cfg Config, repo storage.Repository, reconciler *service.ReconcileService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		config:     cfg,
		router:     gin.New(),
		logger:     logger,
		repo:       repo,
		reconciler: reconciler,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	s.router.GET("/health", handlers.NewHealthHandler().Get)

	api := s.router.Group("/api")

	if s.repo != nil {
		groupsHandler := handlers.NewGroupsHandler(s.repo)
		api.GET("/groups", groupsHandler.List)
		api.GET("/groups/:tenant/:id", groupsHandler.Get)

		auditHandler := handlers.NewAuditHandler(s.repo)
		api.GET("/audit", auditHandler.List)

		statsHandler := handlers.NewStatsHandler(s.repo)
		api.GET("/stats", statsHandler.Get)

		runsHandler := handlers.NewRunsHandler(s.repo)
		api.GET("/runs", runsHandler.List)
		api.GET("/runs/:id", runsHandler.Get)
	}

	if s.reconciler != nil {
		reconcileHandler := handlers.NewReconcileHandler(s.reconciler)
		api.POST("/reconcile", reconcileHandler.Run)
		api.POST("/reconcile/jobs", reconcileHandler.Start)
		api.GET("/reconcile/jobs", reconcileHandler.ListJobs)
		api.GET("/reconcile/jobs/:jobId", reconcileHandler.GetJob)
		api.DELETE("/reconcile/jobs/:jobId", reconcileHandler.CancelJob)
		api.POST("/history", reconcileHandler.ImportHistory)
	}
}

// Router returns the HTTP handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}
