package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Ensure Adapter implements TokenSigner
var _ driven.TokenSigner = (*Adapter)(nil)

const (
	issuer   = "signdesk"
	audience = "handoff-capture"
)

// jwtClaims wraps domain.HandoffClaims for JWT compatibility.
// The hand-off ID doubles as the JWT ID.
type jwtClaims struct {
	TemplateID string `json:"template_id"`
	SessionID  string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// Adapter signs hand-off correlation tokens as HS256 JWTs
type Adapter struct {
	secret []byte
	parser *jwt.Parser
}

// NewAdapter creates a new token adapter with the given HMAC secret
func NewAdapter(secret string) *Adapter {
	return &Adapter{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
		),
	}
}

// Sign creates a signed JWT from hand-off claims
func (a *Adapter) Sign(claims *domain.HandoffClaims) (string, error) {
	if claims == nil || claims.HandoffID == "" || claims.TemplateID == "" {
		return "", fmt.Errorf("%w: handoff and template id are required", domain.ErrInvalidInput)
	}

	jc := jwtClaims{
		TemplateID: claims.TemplateID,
		SessionID:  claims.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.HandoffID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jc)
	return token.SignedString(a.secret)
}

// Parse validates a JWT and extracts hand-off claims.
// Expired tokens return domain.ErrTokenExpired, anything else unusable
// returns domain.ErrTokenInvalid.
func (a *Adapter) Parse(tokenString string) (*domain.HandoffClaims, error) {
	token, err := a.parser.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, domain.ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid || claims.ID == "" || claims.TemplateID == "" {
		return nil, domain.ErrTokenInvalid
	}

	hc := &domain.HandoffClaims{
		HandoffID:  claims.ID,
		TemplateID: claims.TemplateID,
		SessionID:  claims.SessionID,
		ExpiresAt:  claims.ExpiresAt.Unix(),
	}
	if claims.IssuedAt != nil {
		hc.IssuedAt = claims.IssuedAt.Unix()
	}
	return hc, nil
}
