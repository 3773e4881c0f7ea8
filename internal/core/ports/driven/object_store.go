package driven

import "context"

// ObjectStore holds original template PDF bytes
type ObjectStore interface {
	// Download returns the bytes stored at path.
	// Returns domain.ErrNotFound when nothing is stored there.
	Download(ctx context.Context, path string) ([]byte, error)

	// Upload stores bytes at path, replacing any existing object
	Upload(ctx context.Context, path string, data []byte) error

	// PublicURL returns the address a client can fetch path from
	PublicURL(path string) string
}
