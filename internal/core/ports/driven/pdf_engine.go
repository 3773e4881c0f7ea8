package driven

import "github.com/custodia-labs/signdesk/internal/core/domain"

// PDFEngine opens PDF documents for overlay stamping
type PDFEngine interface {
	// Open parses the document. Returns an error wrapping domain.ErrSourceLoad
	// if the bytes are not a readable PDF.
	Open(data []byte) (PDFDocument, error)
}

// PDFDocument is one opened document. Draws are buffered and applied on Bytes.
type PDFDocument interface {
	// PageCount returns the number of pages
	PageCount() int

	// PageSize returns the width and height of a 1-based page in points
	PageSize(page int) (width, height float64, err error)

	// Draw queues one overlay instruction
	Draw(ins *domain.Instruction) error

	// Bytes applies the queued overlays and serializes the document
	Bytes() ([]byte, error)
}
