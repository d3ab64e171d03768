package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/spf13/afero"
)

// URLPrefix is the public path under which saved images are served.
const URLPrefix = "/uploads/"

// DefaultMaxImageBytes is the upload limit when none is configured.
const DefaultMaxImageBytes int64 = 16 << 20

var allowedExtensions = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

// ImageService stores chat images and maps them to public URLs.
type ImageService struct {
	store    Store
	maxBytes int64
	logger   *slog.Logger
}

// NewImageService creates an ImageService. A non-positive maxBytes selects
// DefaultMaxImageBytes.
func NewImageService(store Store, maxBytes int64) *ImageService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageService{
		store:    store,
		maxBytes: maxBytes,
		logger:   slog.Default().With("component", "images"),
	}
}

// Save validates and stores an uploaded image and returns its URL. The file
// name only contributes its extension; the content must sniff as the same
// family of image.
func (s *ImageService) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	const op = "save image"

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	want, ok := allowedExtensions[ext]
	if !ok {
		return "", domain.Validation(op, domain.CodeImageType)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", domain.NewError(domain.ErrValidation, domain.CodeImageRequired, op, err)
	}
	if len(data) == 0 {
		return "", domain.Validation(op, domain.CodeImageRequired)
	}
	if int64(len(data)) > s.maxBytes {
		return "", domain.Validation(op, domain.CodeImageTooLarge)
	}
	if !mimetype.Detect(data).Is(want) {
		return "", domain.Validation(op, domain.CodeImageType)
	}

	name := uuid.NewString() + "." + ext
	if _, err := s.store.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return "", domain.Persistence(op, err)
	}

	s.logger.DebugContext(ctx, "image saved", "name", name, "bytes", len(data))
	return URLPrefix + name, nil
}

// Remove deletes the file behind a URL returned by Save. Other URLs and files
// that are already gone are ignored.
func (s *ImageService) Remove(ctx context.Context, url string) error {
	name, ok := nameFromURL(url)
	if !ok {
		return nil
	}
	if err := s.store.Delete(ctx, name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image %s: %w", name, err)
	}
	return nil
}

// Open returns a stored image and its content type.
func (s *ImageService) Open(ctx context.Context, name string) (afero.File, string, error) {
	if !validName(name) {
		return nil, "", domain.ErrNotFound
	}
	contentType, ok := allowedExtensions[strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")]
	if !ok {
		return nil, "", domain.ErrNotFound
	}

	f, err := s.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", err
	}
	return f, contentType, nil
}

func nameFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, URLPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, URLPrefix)
	return name, validName(name)
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
