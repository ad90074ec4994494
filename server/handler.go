package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sqlgate/sqlgate/toolset"
)

// ToolCaller runs a named tool. *toolset.Toolset implements it.
type ToolCaller interface {
	Call(ctx context.Context, name string, raw json.RawMessage) (toolset.Result, error)
}

func registerTools(e *echo.Echo, tools ToolCaller) {
	e.GET(ToolsPath, listTools)
	e.POST(ToolsPath+"/:name", callTool(tools))
}

func listTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"tools": toolset.Describe(),
	})
}

// callTool answers 200 with the tool's result even when the database call
// failed; success is reported in the body. Only unknown tools and invalid
// arguments map to HTTP errors.
func callTool(tools ToolCaller) echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.Param("name")

		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return NewAPIError(http.StatusBadRequest, CodeBadRequest, "failed to read request body")
		}

		res, err := tools.Call(c.Request().Context(), name, raw)
		if err != nil {
			var argErr *toolset.ArgumentError
			switch {
			case errors.Is(err, toolset.ErrUnknownTool):
				return NewAPIError(http.StatusNotFound, CodeUnknownTool, err.Error())
			case errors.As(err, &argErr):
				apiErr := NewAPIError(http.StatusBadRequest, CodeInvalidArguments, argErr.Error())
				apiErr.Fields = argErr.Fields
				return apiErr
			default:
				return err
			}
		}
		return c.JSON(http.StatusOK, res)
	}
}
