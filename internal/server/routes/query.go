package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mangrove-ai/mangrove/internal/server/middleware"
	"github.com/mangrove-ai/mangrove/pkg/ai"
	"github.com/mangrove-ai/mangrove/pkg/engine"
	"github.com/mangrove-ai/mangrove/pkg/query"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

func QueryHandler(c echo.Context) error {
	type historyEntry struct {
		Role    string `json:"role" validate:"required,oneof=user assistant"`
		Message string `json:"message" validate:"required"`
	}
	type queryParams struct {
		TenantID       string         `param:"id" validate:"required"`
		Query          string         `json:"query" validate:"required"`
		Mode           string         `json:"mode"`
		History        []historyEntry `json:"history" validate:"dive"`
		ResponseFormat string         `json:"response_format"`
	}

	params := new(queryParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
	}

	history := make([]ai.ChatMessage, 0, len(params.History))
	for _, h := range params.History {
		history = append(history, ai.ChatMessage{Role: h.Role, Message: h.Message})
	}

	eng := middleware.Engine(c)
	res, err := eng.Query(c.Request().Context(), engine.QueryRequest{
		Tenant:         params.TenantID,
		Query:          params.Query,
		Mode:           params.Mode,
		History:        history,
		ResponseFormat: params.ResponseFormat,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTenant):
			return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		case errors.Is(err, store.ErrGraphNotFound):
			return c.JSON(http.StatusNotFound, messageResponse{Message: "Tenant not found"})
		case errors.Is(err, query.ErrUnknownMode):
			return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to answer query"})
	}
	return c.JSON(http.StatusOK, res)
}
