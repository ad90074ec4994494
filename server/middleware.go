package server

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/sqlgate/sqlgate/config"
	"github.com/sqlgate/sqlgate/logger"
)

const (
	HeaderXResponseTime = "X-Response-Time"
	bodyLimit           = "10M"
)

// SetupMiddlewares registers the middleware chain shared by every route.
func SetupMiddlewares(e *echo.Echo, log logger.Logger, cfg *config.Config) {
	e.Use(middleware.RequestID())

	// Server spans; a no-op unless observability installed a tracer provider.
	e.Use(otelecho.Middleware(cfg.App.Name, otelecho.WithSkipper(func(c echo.Context) bool {
		path := c.Request().URL.Path
		return path == HealthPath || path == ReadyPath
	})))

	e.Use(Logger(log, time.Second))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().
				Err(err).
				Str("request_id", requestID(c)).
				Str("stack", string(stack)).
				Msg("Panic recovered")
			return err
		},
	}))

	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(RateLimit(cfg.Server.Rate.Limit))
	e.Use(Timing())
}

// Timing sets X-Response-Time on every response.
func Timing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			c.Response().Before(func() {
				c.Response().Header().Set(HeaderXResponseTime, time.Since(start).String())
			})
			return next(c)
		}
	}
}
