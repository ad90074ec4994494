package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sqlgate/sqlgate/logger"
)

const (
	resultInfo  = "INFO"
	resultWarn  = "WARN"
	resultError = "ERROR"
)

// Logger logs one summary line per request. Probe requests are skipped.
// Requests slower than slow keep INFO level but get result_code WARN.
func Logger(log logger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == HealthPath || path == ReadyPath {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			status := c.Response().Status
			if err != nil {
				// The error handler runs after middleware; derive the status it will write.
				status = errorStatus(err)
			}
			resultCode := severity(status, latency, slow)

			var event logger.LogEvent
			switch resultCode {
			case resultError:
				event = log.Error().Err(err)
			case resultWarn:
				if status >= 400 {
					event = log.Warn()
					if err != nil {
						event = event.Err(err)
					}
				} else {
					event = log.Info()
				}
			default:
				event = log.Info()
			}

			event.
				Str("request_id", requestID(c)).
				Str("http.request.method", c.Request().Method).
				Str("url.path", path).
				Str("http.route", c.Path()).
				Str("tool", c.Param("name")).
				Int("http.response.status_code", status).
				Int64("http.server.request.duration", latency.Nanoseconds()).
				Str("client.address", c.RealIP()).
				Str("result_code", resultCode).
				Msg("Request completed")
			return err
		}
	}
}

func errorStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func severity(status int, latency, slow time.Duration) string {
	switch {
	case status >= http.StatusInternalServerError:
		return resultError
	case status >= http.StatusBadRequest:
		return resultWarn
	case slow > 0 && latency > slow:
		return resultWarn
	default:
		return resultInfo
	}
}
