package driven

import (
	"context"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// TemplateStore handles template persistence
type TemplateStore interface {
	// Get retrieves a template by ID
	Get(ctx context.Context, id string) (*domain.Template, error)

	// Save creates or updates a template
	Save(ctx context.Context, tmpl *domain.Template) error
}

// SignedDocumentStore handles signed document persistence.
// Documents are insert-only.
type SignedDocumentStore interface {
	// Insert persists a new signed document. The insert is all-or-nothing.
	// Returns domain.ErrAlreadyExists when the ID or hand-off ID is taken.
	Insert(ctx context.Context, doc *domain.SignedDocument) error

	// Get retrieves a signed document by ID
	Get(ctx context.Context, id string) (*domain.SignedDocument, error)

	// ListByTemplate returns documents for a template, newest first
	ListByTemplate(ctx context.Context, templateID string, limit int) ([]*domain.SignedDocument, error)
}
