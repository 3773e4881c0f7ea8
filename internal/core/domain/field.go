package domain

import (
	"fmt"
	"strings"
)

// FieldType identifies how a field is captured and rendered
type FieldType string

const (
	FieldTypeSignature FieldType = "signature"
	FieldTypeText      FieldType = "text"
	FieldTypeDate      FieldType = "date"
)

// IsValid checks if the field type is known
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeSignature, FieldTypeText, FieldTypeDate:
		return true
	}
	return false
}

// Position is an absolute location on a template page.
// X and Y use a top-left origin with y growing downward, matching screen
// layout at the template's reference scale. Page is 1-based.
type Position struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Page int     `json:"page_number"`
}

// Field is one fillable or signable location on a template
type Field struct {
	ID       string    `json:"id"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
	Position Position  `json:"position"`
}

// Validate checks the field definition
func (f Field) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: field id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(f.Label) == "" {
		return fmt.Errorf("%w: field %s has no label", ErrInvalidInput, f.ID)
	}
	if !f.Type.IsValid() {
		return fmt.Errorf("%w: field %s has unknown type %q", ErrInvalidInput, f.ID, f.Type)
	}
	if f.Position.Page < 1 {
		return fmt.Errorf("%w: field %s page must be >= 1", ErrInvalidInput, f.ID)
	}
	if f.Position.X < 0 || f.Position.Y < 0 {
		return fmt.Errorf("%w: field %s has negative coordinates", ErrInvalidInput, f.ID)
	}
	return nil
}

// IsSignature reports whether the field captures an image payload
func (f Field) IsSignature() bool {
	return f.Type == FieldTypeSignature
}

// IsBlank reports whether a captured value counts as missing
func IsBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}
