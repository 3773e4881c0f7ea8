package driving

import (
	"context"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// HandoffService delegates signature capture to a secondary device
type HandoffService interface {
	// Begin creates a hand-off for a template and returns its scannable reference.
	// sessionID is optional; when set the session is linked to the hand-off.
	Begin(ctx context.Context, templateID, sessionID string) (*domain.HandoffReference, error)

	// QRCode renders the reference URL of a pending hand-off as a PNG
	QRCode(ctx context.Context, handoffID string, size int) ([]byte, error)

	// OpenCapture returns what the secondary device needs to render its capture UI
	OpenCapture(ctx context.Context, token string) (*domain.CaptureContext, error)

	// Complete persists the secondary device's capture. The first completion
	// wins; later ones get domain.ErrHandoffConflict.
	Complete(ctx context.Context, token string, values map[string]string) (*domain.SignedDocument, error)

	// Cancel abandons a capture on the secondary device. Nothing is persisted.
	Cancel(ctx context.Context, token string) error

	// Await blocks until a signed document for the template (and hand-off,
	// when handoffID is set) is created, or the await timeout elapses.
	Await(ctx context.Context, templateID, handoffID string) (*domain.SignedDocument, error)

	// AwaitSession awaits the session's hand-off and applies the completion
	// to the session
	AwaitSession(ctx context.Context, sessionID string) (*domain.SigningSession, error)
}
