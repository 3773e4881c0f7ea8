package driven

import "github.com/custodia-labs/signdesk/internal/core/domain"

// TokenSigner signs and verifies hand-off correlation tokens.
// This does NOT handle storage - use HandoffStore for hand-off persistence.
type TokenSigner interface {
	// Sign produces a compact token carrying the claims
	Sign(claims *domain.HandoffClaims) (string, error)

	// Parse verifies a token and returns its claims.
	// Returns domain.ErrTokenExpired or domain.ErrTokenInvalid on failure.
	Parse(token string) (*domain.HandoffClaims, error)
}
