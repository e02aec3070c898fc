package server

import (
	"github.com/labstack/echo/v4"

	"github.com/mangrove-ai/mangrove/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	api := e.Group("/api")

	// Tenant routes
	api.POST("/tenants", routes.CreateTenantHandler)
	api.DELETE("/tenants/:id", routes.DeleteTenantHandler)
	api.GET("/tenants/:id/stats", routes.GetStatsHandler)
	api.GET("/tenants/:id/graph", routes.ExportGraphHandler)

	// Document routes
	api.POST("/tenants/:id/documents", routes.InsertDocumentHandler)
	api.DELETE("/tenants/:id/documents/:document_id", routes.DeleteDocumentHandler)
	api.GET("/documents/:id/status", routes.GetDocumentStatusHandler)

	// Query routes
	api.POST("/tenants/:id/query", routes.QueryHandler)
}
