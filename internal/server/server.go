// Package server exposes the agent's status API: the current merge request
// and remote snapshots, a refresh trigger, and operational probes.
package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/mergelab/gitlab-sync/internal/accounts"
	"github.com/mergelab/gitlab-sync/internal/health"
	"github.com/mergelab/gitlab-sync/internal/mergerequests"
	"github.com/mergelab/gitlab-sync/internal/metrics"
	"github.com/mergelab/gitlab-sync/internal/remotes"
)

// Config holds configuration for the status API server.
type Config struct {
	ListenAddr string
}

// Server is the status API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   Config
}

// NewServer creates and configures the status API server. checker and
// metricsCollector may be nil.
func NewServer(
	cfg Config,
	accountsMgr *accounts.Manager,
	remotesMgr *remotes.Manager,
	mrService *mergerequests.Service,
	checker *health.Checker,
	metricsCollector *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	handlers := NewHandlers(accountsMgr, remotesMgr, mrService, checker, logger)

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(logger)
	s.setupRoutes(handlers, metricsCollector)

	return s
}

func (s *Server) setupMiddleware(logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		// Skip noisy probe logging
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Msg("status api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, metricsCollector *metrics.Metrics) {
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)

	if metricsCollector != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(metricsCollector.Handler()))
	}

	v1 := s.app.Group("/api/v1")
	v1.Get("/merge-requests", h.ListMergeRequests)
	v1.Get("/remotes", h.ListRemotes)
	v1.Get("/accounts", h.ListAccounts)
	v1.Post("/refresh", h.Refresh)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}

	s.logger.Info().Str("addr", addr).Msg("status API server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("status API server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(fiber.Map{
			"error":  detail,
			"status": code,
		})
	}
}
