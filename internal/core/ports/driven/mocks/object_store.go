package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Ensure MockObjectStore implements ObjectStore
var _ driven.ObjectStore = (*MockObjectStore)(nil)

// MockObjectStore is a mock implementation of ObjectStore for testing
type MockObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	DownloadFn func(path string) ([]byte, error)
}

// NewMockObjectStore creates a new MockObjectStore
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects: make(map[string][]byte),
	}
}

func (m *MockObjectStore) Download(ctx context.Context, path string) ([]byte, error) {
	if m.DownloadFn != nil {
		return m.DownloadFn(path)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MockObjectStore) Upload(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = append([]byte(nil), data...)
	return nil
}

func (m *MockObjectStore) PublicURL(path string) string {
	return "mem://" + path
}
