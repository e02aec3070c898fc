// Package server exposes the engine over HTTP. The surface is thin:
// handlers bind and validate requests, call the engine, and map its
// error taxonomy to status codes.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	appmid "github.com/mangrove-ai/mangrove/internal/server/middleware"
	"github.com/mangrove-ai/mangrove/pkg/engine"
	"github.com/mangrove-ai/mangrove/pkg/logger"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// Server is the HTTP front of one engine instance.
type Server struct {
	echo *echo.Echo
	port string
}

// New builds the echo app around an engine.
func New(eng *engine.Engine, port string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(appmid.AppContextMiddleware(&appmid.App{Engine: eng}))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("32M"))

	RegisterRoutes(e)

	return &Server{echo: e, port: port}
}

// Start serves until Shutdown. Blocks.
func (s *Server) Start() error {
	logger.Info("[Server] Starting", "port", s.port)
	err := s.echo.Start(":" + s.port)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
