package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/mangrove-ai/mangrove/pkg/engine"
)

// App holds the process-wide collaborators handlers need.
type App struct {
	Engine *engine.Engine
}

// AppContext wraps the echo context with application state.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware injects the App into every request context.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}

// Engine extracts the engine from a handler's context.
func Engine(c echo.Context) *engine.Engine {
	return c.(*AppContext).App.Engine
}
