package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store is a file storage backend addressed by relative path.
type Store interface {
	Save(ctx context.Context, path string, reader io.Reader) (int64, error)
	Open(ctx context.Context, path string) (afero.File, error)
	Delete(ctx context.Context, path string) error
}

// AferoStore implements Store on an afero filesystem: the OS in production, a
// MemMapFs in tests.
type AferoStore struct {
	fs afero.Fs
}

// NewAferoStore wraps fs.
func NewAferoStore(fs afero.Fs) *AferoStore {
	return &AferoStore{fs: fs}
}

// NewDiskStore stores files below dir, creating it if needed.
func NewDiskStore(dir string) (*AferoStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return NewAferoStore(afero.NewBasePathFs(osFs, dir)), nil
}

// Save writes reader to path, creating parent directories.
func (s *AferoStore) Save(ctx context.Context, path string, reader io.Reader) (int64, error) {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, reader)
}

// Open opens path for reading.
func (s *AferoStore) Open(ctx context.Context, path string) (afero.File, error) {
	return s.fs.OpenFile(path, os.O_RDONLY, 0)
}

// Delete removes path.
func (s *AferoStore) Delete(ctx context.Context, path string) error {
	return s.fs.Remove(path)
}
