package server

import (
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/goby-chat/internal/app"
	"github.com/nfrund/goby-chat/internal/config"
	"github.com/nfrund/goby-chat/internal/handlers"
	"github.com/nfrund/goby-chat/internal/middleware"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E   *echo.Echo
	App *app.App
	Cfg config.Provider
}

// New creates the echo instance with the middleware chain and all routes.
func New(a *app.App) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler(a.Translator)

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(middleware.AccessLog())
	e.Use(echomw.Recover())
	e.Use(session.Middleware(middleware.NewCookieStore(a.Config.GetSessionSecret())))
	e.Use(middleware.Identity)

	s := &Server{
		E:   e,
		App: a,
		Cfg: a.Config,
	}
	s.RegisterRoutes()
	return s
}
