// Package overlay maps filled fields onto PDF page space.
//
// Field positions are stored top-left-origin, in points at the template's
// reference scale. PDF user space is bottom-left-origin, so every draw goes
// through PDFY.
package overlay

import (
	"fmt"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

const (
	// DefaultFontName is one of the 14 standard PDF fonts, so nothing is embedded
	DefaultFontName = "Helvetica"
	// DefaultFontSize is in points
	DefaultFontSize = 12.0
	// SignatureScale draws signatures at half their native resolution
	SignatureScale = 0.5
)

// PageInfo describes the target page of a draw
type PageInfo struct {
	Number int
	Width  float64
	Height float64
}

// Config holds overlay engine settings
type Config struct {
	FontName string
	FontSize float64
}

// Engine plans draw instructions for single fields
type Engine struct {
	fontName string
	fontSize float64
}

// NewEngine creates an engine, filling unset config with defaults
func NewEngine(cfg Config) *Engine {
	if cfg.FontName == "" {
		cfg.FontName = DefaultFontName
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = DefaultFontSize
	}
	return &Engine{fontName: cfg.FontName, fontSize: cfg.FontSize}
}

// PDFY converts a top-left-origin y into PDF user space.
// elementHeight is 0 for text, which is placed on its baseline.
func PDFY(pageHeight, y, elementHeight float64) float64 {
	return pageHeight - y - elementHeight
}

// Plan computes the draw instruction for one field. It returns a nil
// instruction when the value is empty. Malformed signature payloads return
// *domain.OverlayDecodeError.
func (e *Engine) Plan(field domain.Field, value string, page PageInfo) (*domain.Instruction, error) {
	if domain.IsBlank(value) {
		return nil, nil
	}

	switch field.Type {
	case domain.FieldTypeSignature:
		return e.planSignature(field, value, page)
	case domain.FieldTypeText, domain.FieldTypeDate:
		return &domain.Instruction{
			FieldID:  field.ID,
			Label:    field.Label,
			Kind:     domain.InstructionText,
			Page:     page.Number,
			X:        field.Position.X,
			Y:        PDFY(page.Height, field.Position.Y, 0),
			Text:     value,
			FontName: e.fontName,
			FontSize: e.fontSize,
		}, nil
	default:
		return nil, fmt.Errorf("%w: field %s has type %q", domain.ErrInvalidInput, field.ID, field.Type)
	}
}

func (e *Engine) planSignature(field domain.Field, value string, page PageInfo) (*domain.Instruction, error) {
	sig, err := DecodeSignature(value)
	if err != nil {
		return nil, &domain.OverlayDecodeError{FieldID: field.ID, Err: err}
	}

	w := float64(sig.Width) * SignatureScale
	h := float64(sig.Height) * SignatureScale
	return &domain.Instruction{
		FieldID: field.ID,
		Label:   field.Label,
		Kind:    domain.InstructionImage,
		Page:    page.Number,
		X:       field.Position.X,
		Y:       PDFY(page.Height, field.Position.Y, h),
		Width:   w,
		Height:  h,
		Image:   sig.PNG,
		Scale:   SignatureScale,
	}, nil
}
