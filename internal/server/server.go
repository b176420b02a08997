// Package server exposes the HTTP API over Fiber.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/mr-karan/vigil/internal/alerts"
	"github.com/mr-karan/vigil/internal/config"
	"github.com/mr-karan/vigil/internal/metrics"
	"github.com/mr-karan/vigil/internal/sqlite"
)

// Server hosts the HTTP API.
type Server struct {
	app     *fiber.App
	config  *config.Config
	sqlite  *sqlite.DB
	engine  *alerts.Engine
	log     *slog.Logger
	version string
}

// Options holds the dependencies for constructing a Server.
type Options struct {
	Config  *config.Config
	SQLite  *sqlite.DB
	Engine  *alerts.Engine
	Logger  *slog.Logger
	Version string
}

// New creates the HTTP server and registers all routes.
func New(opts Options) *Server {
	s := &Server{
		config:  opts.Config,
		sqlite:  opts.SQLite,
		engine:  opts.Engine,
		log:     opts.Logger.With("component", "server"),
		version: opts.Version,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "vigil",
		DisableStartupMessage: true,
		ReadTimeout:           opts.Config.Server.ReadTimeout,
		WriteTimeout:          opts.Config.Server.WriteTimeout,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", s.handleMetrics)

	api := s.app.Group("/api/v1")
	api.Post("/readings", s.handleIngestReading)

	api.Get("/alerts", s.handleListActiveAlerts)
	api.Get("/alerts/stats", s.handleAlertStatistics)
	api.Get("/alerts/:alertID", s.handleGetAlert)
	api.Post("/alerts/:alertID/acknowledge", s.handleAcknowledgeAlert)
	api.Post("/alerts/:alertID/resolve", s.handleResolveAlert)
	api.Get("/alerts/:alertID/notifications", s.handleListNotifications)

	api.Get("/sensors", s.handleListSensors)
	api.Get("/sensors/:sensorID/alerts", s.handleSensorAlerts)
	api.Get("/sensors/:sensorID/rules", s.handleSensorRules)
}

// errorHandler converts unhandled fiber errors into the API envelope.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	if code == fiber.StatusInternalServerError {
		s.log.Error("unhandled request error", "path", c.Path(), "error", err)
	}
	return SendError(c, code, err.Error())
}

// Start begins serving. It blocks until the listener closes.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.log.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, fiber.Map{
		"healthy": true,
		"version": s.version,
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	metrics.WritePrometheus(c.Response().BodyWriter())
	return nil
}
