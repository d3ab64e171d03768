package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/nfrund/goby-chat/internal/i18n"
	"github.com/nfrund/goby-chat/internal/middleware"
)

// ErrorResponse is the standard format for API error responses. Reason is
// localized for the requesting client.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

// LoginResponse is returned by POST /login.
type LoginResponse struct {
	Success     bool   `json:"success"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// SuccessResponse is returned by endpoints with nothing else to report.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// MessagesResponse is returned by GET /messages, oldest message first.
type MessagesResponse struct {
	Messages []*domain.Message `json:"messages"`
}

// DeleteResponse is returned by DELETE /messages/:id.
type DeleteResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

// UploadResponse is returned by POST /upload-image.
type UploadResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"image_url"`
}

// ErrorHandler renders every handler error as a localized ErrorResponse.
func ErrorHandler(translator *i18n.Translator) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			middleware.FromContext(c.Request().Context()).Error("request failed", "path", c.Path(), "status", status, "error", err)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}

		lang := translator.Match(c.Request().Header.Get("Accept-Language"))
		_ = c.JSON(status, ErrorResponse{
			Success: false,
			Code:    code,
			Reason:  translator.Text(lang, code),
		})
	}
}

// classify maps err to an HTTP status and a message code.
func classify(err error) (int, string) {
	var de *domain.Error
	if errors.As(err, &de) {
		switch {
		case errors.Is(err, domain.ErrValidation):
			switch de.Code {
			case domain.CodeImageTooLarge:
				return http.StatusRequestEntityTooLarge, de.Code
			case domain.CodeImageType:
				return http.StatusUnsupportedMediaType, de.Code
			}
			return http.StatusBadRequest, de.Code
		case errors.Is(err, domain.ErrAuth):
			return http.StatusUnauthorized, de.Code
		default:
			return http.StatusInternalServerError, domain.CodeOf(err)
		}
	}

	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound, i18n.CodeNotFound
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Code == http.StatusTooManyRequests:
			return he.Code, i18n.CodeRateLimited
		case he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed:
			return he.Code, i18n.CodeNotFound
		case he.Code == http.StatusRequestEntityTooLarge:
			return he.Code, domain.CodeImageTooLarge
		case he.Code < http.StatusInternalServerError:
			return he.Code, domain.CodeInvalidRequest
		}
		return he.Code, domain.CodeStorageFailure
	}

	return http.StatusInternalServerError, domain.CodeStorageFailure
}
