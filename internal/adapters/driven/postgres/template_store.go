package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TemplateStore = (*TemplateStore)(nil)

// TemplateStore implements driven.TemplateStore using PostgreSQL
type TemplateStore struct {
	db *DB
}

// NewTemplateStore creates a new TemplateStore
func NewTemplateStore(db *DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Save creates or updates a template
func (s *TemplateStore) Save(ctx context.Context, tmpl *domain.Template) error {
	fields, err := json.Marshal(tmpl.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		INSERT INTO templates (id, name, file_path, fields, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			file_path = EXCLUDED.file_path,
			fields = EXCLUDED.fields
	`
	_, err = s.db.ExecContext(ctx, query, tmpl.ID, tmpl.Name, tmpl.FilePath, fields, tmpl.CreatedAt)
	return err
}

// Get retrieves a template by ID
func (s *TemplateStore) Get(ctx context.Context, id string) (*domain.Template, error) {
	query := `SELECT id, name, file_path, fields, created_at FROM templates WHERE id = $1`

	var tmpl domain.Template
	var fields []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&tmpl.ID, &tmpl.Name, &tmpl.FilePath, &fields, &tmpl.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(fields, &tmpl.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return &tmpl, nil
}
