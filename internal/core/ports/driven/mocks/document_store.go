package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

var (
	_ driven.TemplateStore       = (*MockTemplateStore)(nil)
	_ driven.SignedDocumentStore = (*MockSignedDocumentStore)(nil)
)

// MockTemplateStore is a mock implementation of TemplateStore for testing
type MockTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*domain.Template

	GetFn func(id string) (*domain.Template, error)
}

// NewMockTemplateStore creates a new MockTemplateStore
func NewMockTemplateStore() *MockTemplateStore {
	return &MockTemplateStore{
		templates: make(map[string]*domain.Template),
	}
}

func (m *MockTemplateStore) Get(ctx context.Context, id string) (*domain.Template, error) {
	if m.GetFn != nil {
		return m.GetFn(id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tmpl, ok := m.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tmpl, nil
}

func (m *MockTemplateStore) Save(ctx context.Context, tmpl *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[tmpl.ID] = tmpl
	return nil
}

// MockSignedDocumentStore is a mock implementation of SignedDocumentStore for testing
type MockSignedDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.SignedDocument
	byHandoff map[string]string
	inserts   int

	InsertFn func(doc *domain.SignedDocument) error
}

// NewMockSignedDocumentStore creates a new MockSignedDocumentStore
func NewMockSignedDocumentStore() *MockSignedDocumentStore {
	return &MockSignedDocumentStore{
		documents: make(map[string]*domain.SignedDocument),
		byHandoff: make(map[string]string),
	}
}

func (m *MockSignedDocumentStore) Insert(ctx context.Context, doc *domain.SignedDocument) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(doc); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[doc.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if doc.HandoffID != "" {
		if _, ok := m.byHandoff[doc.HandoffID]; ok {
			return domain.ErrAlreadyExists
		}
		m.byHandoff[doc.HandoffID] = doc.ID
	}
	m.documents[doc.ID] = doc
	m.inserts++
	return nil
}

func (m *MockSignedDocumentStore) Get(ctx context.Context, id string) (*domain.SignedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *MockSignedDocumentStore) ListByTemplate(ctx context.Context, templateID string, limit int) ([]*domain.SignedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.SignedDocument
	for _, doc := range m.documents {
		if doc.TemplateID == templateID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertCount returns how many documents were persisted (for test assertions).
func (m *MockSignedDocumentStore) InsertCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inserts
}
