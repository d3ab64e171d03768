package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/nfrund/goby-chat/internal/middleware"
	"github.com/nfrund/goby-chat/internal/storage"
)

// ImageHandler accepts image uploads and serves stored images.
type ImageHandler struct {
	images   *storage.ImageService
	maxBytes int64
}

// NewImageHandler creates an ImageHandler.
func NewImageHandler(images *storage.ImageService, maxBytes int64) *ImageHandler {
	return &ImageHandler{images: images, maxBytes: maxBytes}
}

// Upload stores the multipart field "image" and returns its URL
// (POST /upload-image). The URL is then sent with a send_message frame.
func (h *ImageHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)

	if _, ok := middleware.CurrentUser(c); !ok {
		return domain.Unauthenticated("upload image")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return domain.Validation("upload image", domain.CodeImageRequired)
	}
	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		return domain.Validation("upload image", domain.CodeImageTooLarge)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return domain.Validation("upload image", domain.CodeImageRequired)
	}
	defer src.Close()

	url, err := h.images.Save(ctx, fileHeader.Filename, src)
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			logger.Error("Failed to save image", "filename", fileHeader.Filename, "error", err)
		}
		return err
	}

	logger.Info("image uploaded", "url", url, "size", fileHeader.Size)
	return c.JSON(http.StatusOK, UploadResponse{Success: true, ImageURL: url})
}

// Serve streams a stored image (GET /uploads/*).
func (h *ImageHandler) Serve(c echo.Context) error {
	f, contentType, err := h.images.Open(c.Request().Context(), c.Param("*"))
	if err != nil {
		return err
	}
	defer f.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Stream(http.StatusOK, contentType, f)
}
