package mocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

var (
	_ driven.PDFEngine   = (*MockPDFEngine)(nil)
	_ driven.PDFDocument = (*MockPDFDocument)(nil)
)

// MockPDFEngine opens fake documents described by a header line such as
// "%MOCKPDF pages=2 w=612 h=792". Any other input fails with ErrSourceLoad.
// Bytes() serializes the recorded instructions as JSON after the header,
// so output is deterministic for identical draws.
type MockPDFEngine struct {
	mu   sync.Mutex
	docs []*MockPDFDocument

	// DrawFn lets tests fail specific draws
	DrawFn func(ins *domain.Instruction) error
}

// NewMockPDFEngine creates a new MockPDFEngine
func NewMockPDFEngine() *MockPDFEngine {
	return &MockPDFEngine{}
}

// MockPDF builds the input accepted by MockPDFEngine
func MockPDF(pages int, width, height float64) []byte {
	return []byte(fmt.Sprintf("%%MOCKPDF pages=%d w=%g h=%g\n", pages, width, height))
}

func (e *MockPDFEngine) Open(data []byte) (driven.PDFDocument, error) {
	header, _, _ := strings.Cut(string(data), "\n")
	if !strings.HasPrefix(header, "%MOCKPDF ") {
		return nil, fmt.Errorf("%w: not a pdf", domain.ErrSourceLoad)
	}
	doc := &MockPDFDocument{header: header, drawFn: e.DrawFn}
	for _, kv := range strings.Fields(strings.TrimPrefix(header, "%MOCKPDF ")) {
		k, v, _ := strings.Cut(kv, "=")
		switch k {
		case "pages":
			doc.pages, _ = strconv.Atoi(v)
		case "w":
			doc.width, _ = strconv.ParseFloat(v, 64)
		case "h":
			doc.height, _ = strconv.ParseFloat(v, 64)
		}
	}
	if doc.pages < 1 {
		return nil, fmt.Errorf("%w: no pages", domain.ErrSourceLoad)
	}

	e.mu.Lock()
	e.docs = append(e.docs, doc)
	e.mu.Unlock()
	return doc, nil
}

// Opened returns every document opened so far (for test assertions).
func (e *MockPDFEngine) Opened() []*MockPDFDocument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*MockPDFDocument(nil), e.docs...)
}

// MockPDFDocument records draw instructions
type MockPDFDocument struct {
	header        string
	pages         int
	width, height float64
	drawFn        func(ins *domain.Instruction) error

	Drawn      []domain.Instruction
	Serialized int
}

func (d *MockPDFDocument) PageCount() int { return d.pages }

func (d *MockPDFDocument) PageSize(page int) (float64, float64, error) {
	if page < 1 || page > d.pages {
		return 0, 0, errors.New("page out of range")
	}
	return d.width, d.height, nil
}

func (d *MockPDFDocument) Draw(ins *domain.Instruction) error {
	if d.drawFn != nil {
		if err := d.drawFn(ins); err != nil {
			return err
		}
	}
	d.Drawn = append(d.Drawn, *ins)
	return nil
}

func (d *MockPDFDocument) Bytes() ([]byte, error) {
	d.Serialized++
	body, err := json.Marshal(d.Drawn)
	if err != nil {
		return nil, err
	}
	return append([]byte(d.header+"\n"), body...), nil
}
