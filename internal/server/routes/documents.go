package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mangrove-ai/mangrove/internal/server/middleware"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

func InsertDocumentHandler(c echo.Context) error {
	type insertDocumentParams struct {
		TenantID   string `param:"id" validate:"required"`
		DocumentID string `json:"document_id"`
		FileName   string `json:"file_name"`
		Text       string `json:"text" validate:"required"`
	}

	type insertDocumentResponse struct {
		DocumentID string `json:"document_id"`
	}

	params := new(insertDocumentParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
	}

	eng := middleware.Engine(c)
	docID, err := eng.InsertDocument(c.Request().Context(), params.TenantID, params.DocumentID, params.FileName, params.Text)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTenant):
			return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		case errors.Is(err, store.ErrGraphNotFound):
			return c.JSON(http.StatusNotFound, messageResponse{Message: "Tenant not found"})
		}
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to insert document"})
	}
	return c.JSON(http.StatusAccepted, insertDocumentResponse{DocumentID: docID})
}

func GetDocumentStatusHandler(c echo.Context) error {
	type documentStatusParams struct {
		DocumentID string `param:"id" validate:"required"`
	}

	params := new(documentStatusParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	eng := middleware.Engine(c)
	doc, err := eng.GetDocument(c.Request().Context(), params.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, messageResponse{Message: "Document not found"})
		}
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to get document"})
	}
	return c.JSON(http.StatusOK, doc)
}

func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentParams struct {
		TenantID   string `param:"id" validate:"required"`
		DocumentID string `param:"document_id" validate:"required"`
	}

	params := new(deleteDocumentParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid request params"})
	}

	eng := middleware.Engine(c)
	err := eng.DeleteDocument(c.Request().Context(), params.TenantID, params.DocumentID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTenant):
			return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		case errors.Is(err, store.ErrNotFound):
			return c.JSON(http.StatusNotFound, messageResponse{Message: "Document not found"})
		}
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Failed to delete document"})
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Document deleted"})
}
