package mocks

import "github.com/custodia-labs/signdesk/internal/core/ports/driven"

var _ driven.CodeRenderer = (*MockCodeRenderer)(nil)

// MockCodeRenderer returns the content itself prefixed with a PNG-like marker
type MockCodeRenderer struct {
	Last string
}

func (m *MockCodeRenderer) PNG(content string, size int) ([]byte, error) {
	m.Last = content
	return append([]byte("\x89PNG"), content...), nil
}
