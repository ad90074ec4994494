// Package server exposes the tool boundary over HTTP using Echo.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sqlgate/sqlgate/config"
	"github.com/sqlgate/sqlgate/logger"
)

const (
	HealthPath = "/health"
	ReadyPath  = "/ready"
	ToolsPath  = "/tools"
)

// ReadinessFunc reports whether the service can accept tool calls, with
// details rendered into the /ready response.
type ReadinessFunc func(ctx context.Context) (map[string]any, error)

// Server is the HTTP transport.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger logger.Logger
	ready  ReadinessFunc
}

// New creates a server with middleware, probes and tool routes registered.
func New(cfg *config.Config, log logger.Logger, tools ToolCaller, ready ReadinessFunc) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	SetupMiddlewares(e, log, cfg)

	s := &Server{echo: e, cfg: cfg, logger: log, ready: ready}

	e.GET(HealthPath, s.healthCheck)
	e.GET(ReadyPath, s.readyCheck)
	registerTools(e, tools)

	return s
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.logger.Info().
		Str("service", s.cfg.App.Name).
		Str("version", s.cfg.App.Version).
		Str("env", s.cfg.App.Env).
		Str("address", addr).
		Msg("Starting server...")

	server := &http.Server{
		Addr:         addr,
		ReadTimeout:  s.cfg.Server.Timeout.Read,
		WriteTimeout: s.cfg.Server.Timeout.Write,
	}

	if err := s.echo.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) readyCheck(c echo.Context) error {
	body := map[string]any{
		"status": "ready",
		"time":   time.Now().Unix(),
	}
	if s.ready == nil {
		return c.JSON(http.StatusOK, body)
	}

	details, err := s.ready(c.Request().Context())
	for k, v := range details {
		body[k] = v
	}
	if err != nil {
		body["status"] = "not ready"
		body["error"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	return c.JSON(http.StatusOK, body)
}
