// Package testutil builds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// MinimalPDF returns a valid, uncompressed PDF with the given number of empty
// pages of size width x height points.
func MinimalPDF(pages int, width, height float64) []byte {
	var buf bytes.Buffer
	offsets := []int{0}

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))

	for i := 0; i < pages; i++ {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >> /Contents %d 0 R >>",
			width, height, 4+2*i))
		obj("<< /Length 0 >>\nstream\n\nendstream")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xref)
	return buf.Bytes()
}

// SignaturePNG returns a PNG of the given size with a dark diagonal stroke
func SignaturePNG(width, height int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		y := x * height / width
		img.Set(x, y, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// SignatureDataURL returns SignaturePNG as a canvas-style data URL
func SignatureDataURL(width, height int) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(SignaturePNG(width, height))
}

// ConsentTemplate is the two-field template used across scenario tests:
// Name (text, required) at (50,100) and Sig (signature, required) at (50,300), both on page 1.
func ConsentTemplate(id string) *domain.Template {
	return &domain.Template{
		ID:       id,
		Name:     "Consent form",
		FilePath: "templates/" + id + ".pdf",
		Fields: []domain.Field{
			{ID: "name", Type: domain.FieldTypeText, Label: "Name", Required: true, Position: domain.Position{X: 50, Y: 100, Page: 1}},
			{ID: "sig", Type: domain.FieldTypeSignature, Label: "Sig", Required: true, Position: domain.Position{X: 50, Y: 300, Page: 1}},
		},
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
