package driving

import (
	"context"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// SigningService drives field navigation and submission for one signer
type SigningService interface {
	// GetTemplate retrieves a template by ID
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)

	// LoadSession starts a signing session on a template.
	// Returns *domain.LoadError if the template is unavailable.
	LoadSession(ctx context.Context, templateID string) (*domain.SigningSession, error)

	// GetSession retrieves a session by ID
	GetSession(ctx context.Context, sessionID string) (*domain.SigningSession, error)

	// CloseSession releases a session when the signer navigates away
	CloseSession(ctx context.Context, sessionID string) error

	// SetFieldValue records a value for a field, keyed by field ID
	SetFieldValue(ctx context.Context, sessionID, fieldID, value string) (*domain.SigningSession, error)

	// AdvanceField moves to the next field.
	// Returns *domain.ValidationError if the active required field is blank.
	AdvanceField(ctx context.Context, sessionID string) (*domain.SigningSession, error)

	// ValidateForSubmission reports missing required fields
	ValidateForSubmission(ctx context.Context, sessionID string) (*domain.ValidationResult, error)

	// Submit persists a signed document and moves the session to submitted.
	// Validation runs before any persistence call.
	Submit(ctx context.Context, sessionID string) (*domain.SignedDocument, error)
}
