package domain

import (
	"fmt"
	"time"
)

// Template is a reusable document definition: a stored PDF plus an ordered
// list of fields. Field order defines navigation order.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Fields    []Field   `json:"fields"`
	FilePath  string    `json:"file_path"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks every field and rejects duplicate ids or labels
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: template id is required", ErrInvalidInput)
	}
	if t.FilePath == "" {
		return fmt.Errorf("%w: template %s has no file path", ErrInvalidInput, t.ID)
	}

	ids := make(map[string]bool, len(t.Fields))
	labels := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if ids[f.ID] {
			return fmt.Errorf("%w: duplicate field id %s", ErrInvalidInput, f.ID)
		}
		if labels[f.Label] {
			return fmt.Errorf("%w: duplicate field label %q", ErrInvalidInput, f.Label)
		}
		ids[f.ID] = true
		labels[f.Label] = true
	}
	return nil
}

// Field returns the field with the given id
func (t *Template) Field(id string) (Field, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// SignatureFields returns the signature fields in template order
func (t *Template) SignatureFields() []Field {
	var out []Field
	for _, f := range t.Fields {
		if f.IsSignature() {
			out = append(out, f)
		}
	}
	return out
}

// CheckValueKeys verifies that every key of values names a template field
func (t *Template) CheckValueKeys(values map[string]string) error {
	for id := range values {
		if _, ok := t.Field(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, id)
		}
	}
	return nil
}
