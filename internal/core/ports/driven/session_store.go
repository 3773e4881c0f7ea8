package driven

import (
	"context"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// SessionStore handles signing session persistence
type SessionStore interface {
	// Save stores a session with TTL based on ExpiresAt
	Save(ctx context.Context, session *domain.SigningSession) error

	// Get retrieves a session by ID
	Get(ctx context.Context, id string) (*domain.SigningSession, error)

	// Delete deletes a session
	Delete(ctx context.Context, id string) error
}

// HandoffStore handles hand-off persistence
type HandoffStore interface {
	// Save stores a hand-off with TTL based on ExpiresAt
	Save(ctx context.Context, handoff *domain.Handoff) error

	// Get retrieves a hand-off by ID
	Get(ctx context.Context, id string) (*domain.Handoff, error)

	// MarkCompleted records the signed document that completed the hand-off.
	// Returns domain.ErrHandoffConflict if it was already completed.
	MarkCompleted(ctx context.Context, id, documentID string) error
}
