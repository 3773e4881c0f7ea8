// Package secrets seals form values at rest with AES-256-GCM.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

const (
	// blobVersion is the leading byte of every sealed blob.
	blobVersion = 0x01

	nonceSize = 12

	// KeySize is the required AES-256 key length
	KeySize = 32

	hkdfInfo = "signdesk form values v1"
)

var (
	ErrInvalidKeySize     = errors.New("encryption key must be 32 bytes")
	ErrInvalidBlobSize    = errors.New("sealed blob is too small")
	ErrUnsupportedVersion = errors.New("unsupported sealed blob version")
	ErrDecryptionFailed   = errors.New("failed to open sealed blob")
	ErrEmptySecret        = errors.New("secret must not be empty")
)

// Verify interface compliance
var _ driven.ValueSealer = (*Sealer)(nil)

// Sealer encrypts strings into base64 blobs.
// Blob layout before encoding: version(1) || nonce(12) || ciphertext(N)
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer creates a sealer with a raw 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Sealer{gcm: gcm}, nil
}

// NewSealerFromSecret derives the AES key from an operator-supplied secret
// of any length using HKDF-SHA256.
func NewSealerFromSecret(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return NewSealer(key)
}

// Seal encrypts plaintext and returns the base64 (std, unpadded) blob.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := s.gcm.Seal(nil, nonce, []byte(plaintext), nil)

	blob := make([]byte, 1+nonceSize+len(ciphertext))
	blob[0] = blobVersion
	copy(blob[1:1+nonceSize], nonce)
	copy(blob[1+nonceSize:], ciphertext)

	return base64.RawStdEncoding.EncodeToString(blob), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	blob, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	if len(blob) < 1+nonceSize+s.gcm.Overhead() {
		return "", ErrInvalidBlobSize
	}
	if blob[0] != blobVersion {
		return "", fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	plaintext, err := s.gcm.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
