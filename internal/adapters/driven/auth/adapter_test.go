package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

func testClaims(expiresIn time.Duration) *domain.HandoffClaims {
	now := time.Now().Truncate(time.Second)
	return &domain.HandoffClaims{
		HandoffID:  "h-1",
		TemplateID: "tmpl-1",
		SessionID:  "sess-1",
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(expiresIn).Unix(),
	}
}

func TestSign(t *testing.T) {
	adapter := NewAdapter("test-secret-0123456789")

	token, err := adapter.Sign(testClaims(15 * time.Minute))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected JWT with 3 parts, got %d", len(parts))
	}

	// same claims sign to the same token so a hand-off link can be re-issued
	again, _ := adapter.Sign(testClaims(15 * time.Minute))
	if again != token {
		t.Error("signing identical claims should be deterministic")
	}
}

func TestSign_RequiresIDs(t *testing.T) {
	adapter := NewAdapter("secret")

	for _, c := range []*domain.HandoffClaims{nil, {TemplateID: "t"}, {HandoffID: "h"}} {
		if _, err := adapter.Sign(c); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %+v, got %v", c, err)
		}
	}
}

func TestParse_ValidToken(t *testing.T) {
	adapter := NewAdapter("test-secret")
	original := testClaims(15 * time.Minute)

	token, err := adapter.Sign(original)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := adapter.Parse(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if *parsed != *original {
		t.Errorf("parsed %+v, want %+v", parsed, original)
	}
}

func TestParse_ExpiredToken(t *testing.T) {
	adapter := NewAdapter("test-secret")

	token, _ := adapter.Sign(testClaims(-time.Minute))
	if _, err := adapter.Parse(token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParse_Rejects(t *testing.T) {
	adapter := NewAdapter("test-secret")
	good, _ := adapter.Sign(testClaims(time.Minute))
	wrongSecret, _ := NewAdapter("other-secret").Sign(testClaims(time.Minute))

	foreignAudience, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		TemplateID: "tmpl-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "h-1",
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{"api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("test-secret"))

	sig := strings.LastIndex(good, ".") + 1
	flipped := byte('A')
	if good[sig] == 'A' {
		flipped = 'B'
	}
	tampered := good[:sig] + string(flipped) + good[sig+1:]

	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwtClaims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"empty":            "",
		"malformed":        "not.a.jwt",
		"wrong secret":     wrongSecret,
		"tampered":         tampered,
		"foreign audience": foreignAudience,
		"none algorithm":   noneAlg,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := adapter.Parse(token); !errors.Is(err, domain.ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func BenchmarkParse(b *testing.B) {
	adapter := NewAdapter("benchmark-secret")
	token, _ := adapter.Sign(testClaims(time.Hour))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = adapter.Parse(token)
	}
}
