package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mangrove-ai/mangrove/internal/server/middleware"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

type messageResponse struct {
	Message string `json:"message"`
}

func CreateTenantHandler(c echo.Context) error {
	type createTenantParams struct {
		TenantID string `json:"tenant_id" validate:"required"`
	}

	params := new(createTenantParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
	}

	eng := middleware.Engine(c)
	if err := eng.CreateTenant(c.Request().Context(), params.TenantID); err != nil {
		if errors.Is(err, store.ErrInvalidTenant) {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to create tenant"})
	}
	return c.JSON(http.StatusCreated, messageResponse{Message: "Tenant created"})
}

func DeleteTenantHandler(c echo.Context) error {
	type deleteTenantParams struct {
		TenantID string `param:"id" validate:"required"`
	}

	params := new(deleteTenantParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	eng := middleware.Engine(c)
	if err := eng.DeleteTenant(c.Request().Context(), params.TenantID); err != nil {
		if errors.Is(err, store.ErrInvalidTenant) {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to delete tenant"})
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Tenant deleted"})
}

func GetStatsHandler(c echo.Context) error {
	type statsParams struct {
		TenantID string `param:"id" validate:"required"`
	}

	params := new(statsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	eng := middleware.Engine(c)
	stats, err := eng.Stats(c.Request().Context(), params.TenantID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTenant):
			return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		case errors.Is(err, store.ErrGraphNotFound):
			return c.JSON(http.StatusNotFound, messageResponse{Message: "Tenant not found"})
		}
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to get stats"})
	}
	return c.JSON(http.StatusOK, stats)
}

func ExportGraphHandler(c echo.Context) error {
	type exportParams struct {
		TenantID string `param:"id" validate:"required"`
	}

	params := new(exportParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	eng := middleware.Engine(c)
	graph, err := eng.ExportGraph(c.Request().Context(), params.TenantID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTenant):
			return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		case errors.Is(err, store.ErrGraphNotFound):
			return c.JSON(http.StatusNotFound, messageResponse{Message: "Tenant not found"})
		}
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to export graph"})
	}
	return c.JSON(http.StatusOK, graph)
}
