package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/goby-chat/internal/handlers"
	"github.com/nfrund/goby-chat/internal/middleware"
	"github.com/nfrund/goby-chat/internal/view"
)

const pageTitle = "Goby Chat"

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	chatHandler := handlers.NewChatHandler(s.App.Chat, s.Cfg.GetHistoryLimit())
	imageHandler := handlers.NewImageHandler(s.App.Images, s.Cfg.GetUploadMaxBytes())

	s.E.GET("/", s.index)

	s.E.POST("/login", chatHandler.Login, middleware.RateLimiter(s.Cfg.GetRateLimitPerMinute()))
	s.E.POST("/logout", chatHandler.Logout)
	s.E.GET("/current_user", chatHandler.CurrentUser)

	s.E.GET("/messages", chatHandler.Messages)
	s.E.DELETE("/messages/:id", chatHandler.DeleteMessage, middleware.RequireUser)

	s.E.POST("/upload-image", imageHandler.Upload, middleware.RequireUser, middleware.RateLimiter(s.Cfg.GetRateLimitPerMinute()))
	s.E.GET("/uploads/*", imageHandler.Serve)

	s.E.GET("/ws", s.App.Sockets.Serve)

	s.E.GET("/health", s.health)
}

func (s *Server) index(c echo.Context) error {
	lang := s.App.Translator.Match(c.Request().Header.Get("Accept-Language"))

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return view.RenderChatPage(c.Response(), pageTitle, lang.String())
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.App.Backend.Ping(ctx); err != nil {
		middleware.FromContext(ctx).Warn("health check failed", "error", err)
		return c.String(http.StatusServiceUnavailable, "UNAVAILABLE")
	}
	return c.String(http.StatusOK, "OK")
}
