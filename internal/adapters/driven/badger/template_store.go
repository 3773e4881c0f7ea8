package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TemplateStore = (*TemplateStore)(nil)

const templatePrefix = "template:"

// TemplateStore implements driven.TemplateStore on badger
type TemplateStore struct {
	db *DB
}

// NewTemplateStore creates a new TemplateStore
func NewTemplateStore(db *DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Save creates or updates a template
func (s *TemplateStore) Save(ctx context.Context, tmpl *domain.Template) error {
	data, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	return s.db.update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(templatePrefix+tmpl.ID), data)
	})
}

// Get retrieves a template by ID
func (s *TemplateStore) Get(ctx context.Context, id string) (*domain.Template, error) {
	var tmpl domain.Template
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return getJSON(txn, templatePrefix+id, &tmpl)
	})
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}
