// Package objectstore keeps template PDFs on an afero filesystem.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ObjectStore = (*Store)(nil)

// Store implements driven.ObjectStore on an afero.Fs
type Store struct {
	fs      afero.Fs
	baseURL string
}

// NewStore wraps fs. baseURL prefixes PublicURL results.
func NewStore(fsys afero.Fs, baseURL string) *Store {
	return &Store{fs: fsys, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewDirStore roots the store at dir on the local disk
func NewDirStore(dir, baseURL string) *Store {
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL)
}

// NewMemStore is an in-memory store for tests and dev mode
func NewMemStore(baseURL string) *Store {
	return NewStore(afero.NewMemMapFs(), baseURL)
}

// clean normalises an object path and refuses to escape the root
func clean(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty object path", domain.ErrInvalidInput)
	}
	cleaned := path.Clean("/" + p)
	if strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: object path %q", domain.ErrInvalidInput, p)
	}
	return cleaned, nil
}

// Download returns the bytes stored at p
func (s *Store) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := clean(p)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Upload stores data at p, creating parent directories
func (s *Store) Upload(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := clean(p)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path.Dir(name), err)
	}
	if err := afero.WriteFile(s.fs, name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// PublicURL returns the address of p under the base URL
func (s *Store) PublicURL(p string) string {
	segments := strings.Split(strings.TrimLeft(path.Clean("/"+p), "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}
