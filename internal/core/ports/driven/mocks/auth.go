package mocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Ensure MockTokenSigner implements TokenSigner
var _ driven.TokenSigner = (*MockTokenSigner)(nil)

// MockTokenSigner is a mock implementation of TokenSigner for testing.
// It uses base64-encoded JSON for tokens.
// NOT secure - only for testing.
type MockTokenSigner struct{}

// NewMockTokenSigner creates a new MockTokenSigner
func NewMockTokenSigner() *MockTokenSigner {
	return &MockTokenSigner{}
}

// Sign creates a base64-encoded JSON token from claims
func (m *MockTokenSigner) Sign(claims *domain.HandoffClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Parse decodes a base64-encoded JSON token and returns claims
func (m *MockTokenSigner) Parse(token string) (*domain.HandoffClaims, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	var claims domain.HandoffClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	if claims.ExpiresAt > 0 && time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	return &claims, nil
}
