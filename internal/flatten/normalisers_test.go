package flatten

import (
	"testing"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

func TestLineEndingNormaliser(t *testing.T) {
	n := NewLineEndingNormaliser()
	text := domain.Field{ID: "name", Type: domain.FieldTypeText}
	sig := domain.Field{ID: "sig", Type: domain.FieldTypeSignature}

	tests := []struct {
		name  string
		field domain.Field
		in    string
		want  string
	}{
		{"spacing kept", text, "Jane   Doe", "Jane   Doe"},
		{"no trim", text, "  Jane Doe \t", "  Jane Doe \t"},
		{"line endings", text, "line1\r\nline2\rline3", "line1\nline2\nline3"},
		{"signature untouched", sig, "  data:image/png;base64,AA  ", "  data:image/png;base64,AA  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalise(tt.field, tt.in); got != tt.want {
				t.Errorf("Normalise(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDateNormaliser(t *testing.T) {
	n := NewDateNormaliser()
	date := domain.Field{ID: "date", Type: domain.FieldTypeDate}
	text := domain.Field{ID: "note", Type: domain.FieldTypeText}

	if got := n.Normalise(date, "2026-10-16T09:30:00Z"); got != "2026-10-16" {
		t.Errorf("got %q", got)
	}
	if got := n.Normalise(date, "16 Oct 2026"); got != "16 Oct 2026" {
		t.Errorf("free-form dates should be kept, got %q", got)
	}
	if got := n.Normalise(text, "2026-10-16T09:30:00Z"); got != "2026-10-16T09:30:00Z" {
		t.Errorf("text fields should be kept, got %q", got)
	}
}
