package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/MoonJiyun2/IdeaShelf/internal/storage"
)

// KeyPrefix starts every key this storage hands out, so the stored cover
// path doubles as the URL path the router serves it from.
const KeyPrefix = "uploads/"

// Storage implements storage.Storage on a local directory.
type Storage struct {
	dir string
}

// New creates a storage rooted at dir. The directory is created on first
// upload.
func New(dir string) *Storage {
	return &Storage{dir: dir}
}

// Dir returns the directory files are written to.
func (s *Storage) Dir() string {
	return s.dir
}

// Upload writes input.Data to <dir>/<name> and returns the key
// "uploads/<name>". An existing file with the same name is never replaced.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	name, err := fileName(input.Name)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	full := filepath.Join(s.dir, name)
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	if _, err := io.Copy(f, input.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return nil, fmt.Errorf("close %s: %w", name, err)
	}

	key := KeyPrefix + name
	return &storage.UploadResult{Key: key, URL: "/" + key}, nil
}

// Delete removes the file behind key. Deleting a missing file is not an
// error.
func (s *Storage) Delete(_ context.Context, key string) error {
	name, err := fileName(strings.TrimPrefix(key, KeyPrefix))
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// GetURL returns the site-relative URL of key.
func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return "", fmt.Errorf("not a local cover key: %q", key)
	}
	return "/" + key, nil
}

// fileName accepts only a bare file name, never a path.
func fileName(name string) (string, error) {
	if name == "" || name == "." || name == ".." || path.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return name, nil
}
