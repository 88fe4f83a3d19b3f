// Package api serves the read-only dashboard API over the snapshot
// database: week list, per-week snapshot detail, metric trends, and
// the lifetime rollup. Nothing here writes; snapshots are only ever
// written by the report pipeline.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/kdp-ads-analytics/internal/api/handlers"
	"github.com/eshaffer321/kdp-ads-analytics/internal/api/middleware"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for local dashboard use.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
}

// NewServer creates the API server with routes and middleware wired.
func NewServer(cfg Config, repo storage.Repository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logging(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		config: cfg,
		router: router,
		logger: logger,
		repo:   repo,
	}
	s.setupRoutes()

	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check outside the /api prefix, for load balancers.
	s.router.GET("/health", handlers.Health)

	api := s.router.Group("/api")
	{
		weeksHandler := handlers.NewWeeksHandler(s.repo)
		api.GET("/weeks", weeksHandler.List)
		api.GET("/weeks/:week_start", weeksHandler.Get)

		trendsHandler := handlers.NewTrendsHandler(s.repo)
		api.GET("/trends", trendsHandler.Get)

		lifetimeHandler := handlers.NewLifetimeHandler(s.repo)
		api.GET("/lifetime", lifetimeHandler.Get)
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// Router returns the gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
