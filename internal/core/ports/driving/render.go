package driving

import (
	"context"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// RenderService produces flattened PDFs for signed documents
type RenderService interface {
	// GetSignedDocument retrieves a signed document by ID
	GetSignedDocument(ctx context.Context, id string) (*domain.SignedDocument, error)

	// FlattenForDownload burns the document's values into the template PDF.
	// Returns *domain.RenderError when the original bytes cannot be parsed.
	FlattenForDownload(ctx context.Context, documentID string) (*domain.RenderedDocument, error)
}
