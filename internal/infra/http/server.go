package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/armorlens/api/internal/config"
	"github.com/armorlens/api/internal/infra/http/middleware"
	"github.com/armorlens/api/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	httpServer   *http.Server
	router       Router
	config       *config.Config
	logger       *logger.Logger
	loadLimit    Middleware
	cleanupFuncs []func()
}

// NewServer creates a new HTTP server with the global middleware stack
// installed. Request body limits are route-scoped because CSV uploads and
// JSON bodies have different ceilings.
func NewServer(cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		router: NewChiRouter(),
		config: cfg,
		logger: log,
	}

	rateLimitMw, rateLimitStop := middleware.RateLimitWithStop(&cfg.RateLimit, log)
	loadLimitMw, loadLimitStop := middleware.LoadRateLimitWithStop(&cfg.RateLimit, log)
	s.loadLimit = loadLimitMw
	s.cleanupFuncs = append(s.cleanupFuncs, rateLimitStop, loadLimitStop)

	securityCfg := middleware.SecurityHeadersConfig{
		HSTSEnabled:           cfg.IsProduction(),
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
	}

	// Order matters: recovery outermost, logging innermost so it sees the
	// final status.
	s.router.Use(
		middleware.RecoveryWithConfig(log, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.SecurityHeadersWithConfig(securityCfg),
		middleware.CORS(&cfg.CORS),
		rateLimitMw,
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.Metrics(),
		middleware.LoggerWithConfig(log, middleware.LoggerConfig{
			SkipPaths:            skipPaths(cfg),
			SlowRequestThreshold: time.Duration(cfg.Log.SlowRequestSeconds) * time.Second,
		}),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       time.Minute,
	}

	return s
}

func skipPaths(cfg *config.Config) []string {
	if !cfg.Log.SkipHealthLogs {
		return nil
	}
	return middleware.DefaultLoggerConfig().SkipPaths
}

// Router returns the router for registering handlers.
func (s *Server) Router() Router {
	return s.router
}

// LoadLimit returns the per-client dataset load limiter.
func (s *Server) LoadLimit() Middleware {
	return s.loadLimit
}

// Handler returns the root handler with the global middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops background limiters and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
