package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

var (
	_ driven.SessionStore = (*MockSessionStore)(nil)
	_ driven.HandoffStore = (*MockHandoffStore)(nil)
)

// MockSessionStore is a mock implementation of SessionStore for testing.
// Sessions are copied on the way in and out so callers cannot alias stored state.
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.SigningSession

	SaveFn func(session *domain.SigningSession) error
}

// NewMockSessionStore creates a new MockSessionStore
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		sessions: make(map[string]*domain.SigningSession),
	}
}

func cloneSession(s *domain.SigningSession) *domain.SigningSession {
	c := *s
	c.Fields = append([]domain.Field(nil), s.Fields...)
	c.Values = s.Snapshot()
	return &c
}

func (m *MockSessionStore) Save(ctx context.Context, session *domain.SigningSession) error {
	if m.SaveFn != nil {
		if err := m.SaveFn(session); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*domain.SigningSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// MockHandoffStore is a mock implementation of HandoffStore for testing
type MockHandoffStore struct {
	mu       sync.RWMutex
	handoffs map[string]domain.Handoff
}

// NewMockHandoffStore creates a new MockHandoffStore
func NewMockHandoffStore() *MockHandoffStore {
	return &MockHandoffStore{
		handoffs: make(map[string]domain.Handoff),
	}
}

func (m *MockHandoffStore) Save(ctx context.Context, handoff *domain.Handoff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handoffs[handoff.ID] = *handoff
	return nil
}

func (m *MockHandoffStore) Get(ctx context.Context, id string) (*domain.Handoff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handoffs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &h, nil
}

func (m *MockHandoffStore) MarkCompleted(ctx context.Context, id, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handoffs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if h.IsCompleted() {
		return domain.ErrHandoffConflict
	}
	h.Status = domain.HandoffCompleted
	h.SignedDocumentID = documentID
	m.handoffs[id] = h
	return nil
}
