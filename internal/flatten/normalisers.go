package flatten

import (
	"strings"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// LineEndingNormaliser rewrites CRLF and CR line breaks in text and date
// values to LF. Everything else, including spacing, is drawn as typed.
// Signature payloads are left untouched.
type LineEndingNormaliser struct{}

// Verify interface compliance
var _ Normaliser = (*LineEndingNormaliser)(nil)

// NewLineEndingNormaliser creates a new line ending normaliser.
func NewLineEndingNormaliser() *LineEndingNormaliser {
	return &LineEndingNormaliser{}
}

// Normalise unifies line breaks in a value.
func (n *LineEndingNormaliser) Normalise(field domain.Field, value string) string {
	if field.IsSignature() {
		return value
	}
	value = strings.ReplaceAll(value, "\r\n", "\n")
	return strings.ReplaceAll(value, "\r", "\n")
}

// Name returns the normaliser name.
func (n *LineEndingNormaliser) Name() string {
	return "line-endings"
}

// Order returns 0 - line endings run first.
func (n *LineEndingNormaliser) Order() int {
	return 0
}

// DateLayout is how date fields are printed
const DateLayout = "2006-01-02"

// DateNormaliser prints timestamp values of date fields as plain dates.
// Values that are not timestamps are kept as typed.
type DateNormaliser struct {
	layout string
}

// Verify interface compliance
var _ Normaliser = (*DateNormaliser)(nil)

// NewDateNormaliser creates a new date normaliser.
func NewDateNormaliser() *DateNormaliser {
	return &DateNormaliser{layout: DateLayout}
}

// Normalise reformats RFC 3339 timestamps on date fields.
func (d *DateNormaliser) Normalise(field domain.Field, value string) string {
	if field.Type != domain.FieldTypeDate {
		return value
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format(d.layout)
	}
	return value
}

// Name returns the normaliser name.
func (d *DateNormaliser) Name() string {
	return "date"
}

// Order returns 10 - runs after line endings.
func (d *DateNormaliser) Order() int {
	return 10
}
