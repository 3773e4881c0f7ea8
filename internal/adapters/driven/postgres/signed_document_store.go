package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/signdesk/internal/adapters/driven/secrets"
	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SignedDocumentStore = (*SignedDocumentStore)(nil)

// SignedDocumentStore implements driven.SignedDocumentStore using PostgreSQL.
// When a sealer is set the form values column is encrypted.
type SignedDocumentStore struct {
	db     *DB
	sealer driven.ValueSealer
}

// NewSignedDocumentStore creates a new SignedDocumentStore. sealer may be nil.
func NewSignedDocumentStore(db *DB, sealer driven.ValueSealer) *SignedDocumentStore {
	return &SignedDocumentStore{db: db, sealer: sealer}
}

// Insert persists a new signed document. A document answering a hand-off
// stored in this database completes that hand-off in the same transaction;
// a hand-off that is already completed fails with ErrAlreadyExists and
// nothing is written.
func (s *SignedDocumentStore) Insert(ctx context.Context, doc *domain.SignedDocument) error {
	values, err := secrets.MarshalValues(s.sealer, doc.Values)
	if err != nil {
		return err
	}

	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		linked := false
		if doc.HandoffID != "" {
			var status string
			err := tx.QueryRowContext(ctx,
				`SELECT status FROM handoffs WHERE id = $1 FOR UPDATE`, doc.HandoffID).Scan(&status)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				// hand-off kept in another store
			case err != nil:
				return err
			case status == string(domain.HandoffCompleted):
				return domain.ErrAlreadyExists
			default:
				linked = true
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO signed_documents (id, template_id, handoff_id, form_values, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, doc.ID, doc.TemplateID, nullable(doc.HandoffID), values, string(doc.Source), doc.CreatedAt)
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err != nil || !linked {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE handoffs SET status = $2, signed_document_id = $3 WHERE id = $1`,
			doc.HandoffID, string(domain.HandoffCompleted), doc.ID)
		return err
	})
}

// Get retrieves a signed document by ID
func (s *SignedDocumentStore) Get(ctx context.Context, id string) (*domain.SignedDocument, error) {
	query := `
		SELECT id, template_id, handoff_id, form_values, source, created_at
		FROM signed_documents
		WHERE id = $1
	`
	doc, err := s.scan(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListByTemplate returns documents for a template, newest first
func (s *SignedDocumentStore) ListByTemplate(ctx context.Context, templateID string, limit int) ([]*domain.SignedDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, template_id, handoff_id, form_values, source, created_at
		FROM signed_documents
		WHERE template_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, templateID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.SignedDocument
	for rows.Next() {
		doc, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SignedDocumentStore) scan(row rowScanner) (*domain.SignedDocument, error) {
	var doc domain.SignedDocument
	var handoffID sql.NullString
	var values, source string

	if err := row.Scan(&doc.ID, &doc.TemplateID, &handoffID, &values, &source, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.HandoffID = handoffID.String
	doc.Source = domain.DocumentSource(source)

	decoded, err := secrets.UnmarshalValues(s.sealer, values)
	if err != nil {
		return nil, fmt.Errorf("signed document %s: %w", doc.ID, err)
	}
	doc.Values = decoded
	return &doc, nil
}
