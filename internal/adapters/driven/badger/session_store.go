package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.SessionStore = (*SessionStore)(nil)
	_ driven.HandoffStore = (*HandoffStore)(nil)
)

const (
	sessionPrefix = "session:"
	handoffPrefix = "handoff:"

	// HandoffRetention keeps completed hand-offs readable past link expiry
	HandoffRetention = time.Hour
)

// SessionStore implements driven.SessionStore with badger TTL entries
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save stores a session until ExpiresAt
func (s *SessionStore) Save(ctx context.Context, session *domain.SigningSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.update(func(txn *badgerdb.Txn) error {
		return txn.SetEntry(badgerdb.NewEntry([]byte(sessionPrefix+session.ID), data).WithTTL(ttl))
	})
}

// Get retrieves a session by ID
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.SigningSession, error) {
	var session domain.SigningSession
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return getJSON(txn, sessionPrefix+id, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete deletes a session
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.db.update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(sessionPrefix + id))
	})
}

// HandoffStore implements driven.HandoffStore with badger TTL entries
type HandoffStore struct {
	db *DB
}

// NewHandoffStore creates a new HandoffStore
func NewHandoffStore(db *DB) *HandoffStore {
	return &HandoffStore{db: db}
}

// Save stores a hand-off until ExpiresAt plus HandoffRetention
func (s *HandoffStore) Save(ctx context.Context, h *domain.Handoff) error {
	return s.db.update(func(txn *badgerdb.Txn) error {
		return putHandoff(txn, h)
	})
}

func putHandoff(txn *badgerdb.Txn, h *domain.Handoff) error {
	ttl := time.Until(h.ExpiresAt) + HandoffRetention
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal handoff: %w", err)
	}
	return txn.SetEntry(badgerdb.NewEntry([]byte(handoffPrefix+h.ID), data).WithTTL(ttl))
}

// Get retrieves a hand-off by ID
func (s *HandoffStore) Get(ctx context.Context, id string) (*domain.Handoff, error) {
	var h domain.Handoff
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return getJSON(txn, handoffPrefix+id, &h)
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// MarkCompleted flips the hand-off to completed inside one transaction.
// A concurrent completion conflicts, retries and then sees the new status.
func (s *HandoffStore) MarkCompleted(ctx context.Context, id, documentID string) error {
	return s.db.update(func(txn *badgerdb.Txn) error {
		var h domain.Handoff
		if err := getJSON(txn, handoffPrefix+id, &h); err != nil {
			return err
		}
		if h.IsCompleted() {
			return domain.ErrHandoffConflict
		}
		h.Status = domain.HandoffCompleted
		h.SignedDocumentID = documentID
		return putHandoff(txn, &h)
	})
}
