// Package qrcode renders hand-off links as QR codes.
package qrcode

import (
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CodeRenderer = (*Renderer)(nil)

// Renderer implements driven.CodeRenderer with skip2/go-qrcode
type Renderer struct {
	level goqrcode.RecoveryLevel
}

// NewRenderer creates a Renderer at medium recovery level
func NewRenderer() *Renderer {
	return &Renderer{level: goqrcode.Medium}
}

// PNG renders content as a size x size PNG
func (r *Renderer) PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: empty qr content", domain.ErrInvalidInput)
	}
	png, err := goqrcode.Encode(content, r.level, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
