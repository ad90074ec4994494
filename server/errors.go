package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sqlgate/sqlgate/logger"
	"github.com/sqlgate/sqlgate/toolset"
)

const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeNotFound         = "NOT_FOUND"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// APIError is an error rendered as a JSON error envelope.
type APIError struct {
	Status  int                  `json:"status"`
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Fields  []toolset.FieldError `json:"fields,omitempty"`
}

func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// errorHandler writes every handler error as {"error": APIError}. Internal
// error details are logged and never returned.
func errorHandler(log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			status := http.StatusInternalServerError
			msg := "An error occurred while processing your request"
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
				if m, ok := he.Message.(string); ok && status < http.StatusInternalServerError {
					msg = m
				}
			}
			apiErr = NewAPIError(status, statusToCode(status), msg)
		}

		if apiErr.Status >= http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("request_id", requestID(c)).
				Msg("Unhandled request error")
		}

		if werr := c.JSON(apiErr.Status, map[string]any{"error": apiErr}); werr != nil {
			log.Warn().Err(werr).Msg("Failed to write error response")
		}
	}
}

func requestID(c echo.Context) string {
	if resp := c.Response(); resp != nil {
		if id := resp.Header().Get(echo.HeaderXRequestID); id != "" {
			return id
		}
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
