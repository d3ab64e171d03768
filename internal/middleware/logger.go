package middleware

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
)

type loggerKey struct{}

// Logger stores a logger tagged with the request id and client address in the
// request context. It must run after echo's RequestID middleware.
func Logger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := slog.Default().With(
			slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			slog.String("remote_ip", c.RealIP()),
		)
		c.SetRequest(c.Request().WithContext(WithLogger(c.Request().Context(), l)))
		return next(c)
	}
}

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the request logger, or the default logger outside a
// request.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
