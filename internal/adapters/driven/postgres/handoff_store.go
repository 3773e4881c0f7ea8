package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// HandoffRetention is how long a hand-off row outlives its expiry
const HandoffRetention = time.Hour

// Verify interface compliance
var _ driven.HandoffStore = (*HandoffStore)(nil)

// HandoffStore implements driven.HandoffStore using PostgreSQL
type HandoffStore struct {
	db *DB
}

// NewHandoffStore creates a new HandoffStore
func NewHandoffStore(db *DB) *HandoffStore {
	return &HandoffStore{db: db}
}

// Save stores a hand-off
func (s *HandoffStore) Save(ctx context.Context, h *domain.Handoff) error {
	query := `
		INSERT INTO handoffs (id, template_id, session_id, status, signed_document_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			status = EXCLUDED.status,
			signed_document_id = EXCLUDED.signed_document_id,
			expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.ExecContext(ctx, query,
		h.ID, h.TemplateID, nullable(h.SessionID), string(h.Status), nullable(h.SignedDocumentID), h.CreatedAt, h.ExpiresAt)
	return err
}

// Get retrieves a hand-off by ID
func (s *HandoffStore) Get(ctx context.Context, id string) (*domain.Handoff, error) {
	query := `
		SELECT id, template_id, session_id, status, signed_document_id, created_at, expires_at
		FROM handoffs
		WHERE id = $1
	`

	var h domain.Handoff
	var sessionID, documentID sql.NullString
	var status string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&h.ID, &h.TemplateID, &sessionID, &status, &documentID, &h.CreatedAt, &h.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	h.SessionID = sessionID.String
	h.SignedDocumentID = documentID.String
	h.Status = domain.HandoffStatus(status)
	return &h, nil
}

// MarkCompleted flips a pending hand-off to completed. Repeating the call
// with the same document is a no-op; a different document fails with
// ErrHandoffConflict.
func (s *HandoffStore) MarkCompleted(ctx context.Context, id, documentID string) error {
	query := `
		UPDATE handoffs
		SET status = $2, signed_document_id = $3
		WHERE id = $1 AND status <> $2
	`
	res, err := s.db.ExecContext(ctx, query, id, string(domain.HandoffCompleted), documentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var current sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT signed_document_id FROM handoffs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if current.String == documentID {
		return nil
	}
	return domain.ErrHandoffConflict
}

// DeleteExpired removes hand-offs that expired more than HandoffRetention ago
func (s *HandoffStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM handoffs WHERE expires_at <= NOW() - make_interval(secs => $1)`,
		HandoffRetention.Seconds())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
