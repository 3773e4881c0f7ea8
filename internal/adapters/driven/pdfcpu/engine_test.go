package pdfcpu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/overlay"
	"github.com/custodia-labs/signdesk/internal/testutil"
)

func TestEngine_Open(t *testing.T) {
	e := NewEngine()

	doc, err := e.Open(testutil.MinimalPDF(2, 612, 792))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())

	w, h, err := doc.PageSize(2)
	require.NoError(t, err)
	assert.Equal(t, 612.0, w)
	assert.Equal(t, 792.0, h)

	_, _, err = doc.PageSize(3)
	assert.Error(t, err)
}

func TestEngine_OpenRejectsGarbage(t *testing.T) {
	e := NewEngine()

	for _, input := range [][]byte{nil, []byte("hello"), []byte("%PDF-1.4\ngarbage")} {
		_, err := e.Open(input)
		assert.True(t, errors.Is(err, domain.ErrSourceLoad), "input %q: %v", input, err)
	}
}

func TestDocument_StampAndWrite(t *testing.T) {
	e := NewEngine()
	src := testutil.MinimalPDF(1, 612, 792)
	ov := overlay.NewEngine(overlay.Config{})
	page := overlay.PageInfo{Number: 1, Width: 612, Height: 792}

	doc, err := e.Open(src)
	require.NoError(t, err)

	text, err := ov.Plan(domain.Field{ID: "name", Type: domain.FieldTypeText, Label: "Name", Position: domain.Position{X: 50, Y: 100, Page: 1}}, "Jane Doe", page)
	require.NoError(t, err)
	require.NoError(t, doc.Draw(text))

	img, err := ov.Plan(domain.Field{ID: "sig", Type: domain.FieldTypeSignature, Label: "Sig", Position: domain.Position{X: 50, Y: 300, Page: 1}}, testutil.SignatureDataURL(120, 60), page)
	require.NoError(t, err)
	require.NoError(t, doc.Draw(img))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Greater(t, len(out), len(src))

	// the result is itself a readable document
	reopened, err := e.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.PageCount())

	_, err = doc.Bytes()
	assert.Error(t, err, "a document serializes once")
	assert.Error(t, doc.Draw(text))
}

func TestDocument_DrawOutOfRange(t *testing.T) {
	doc, err := NewEngine().Open(testutil.MinimalPDF(1, 612, 792))
	require.NoError(t, err)

	err = doc.Draw(&domain.Instruction{FieldID: "x", Kind: domain.InstructionText, Page: 4, Text: "x", FontName: "Helvetica", FontSize: 12})
	assert.Error(t, err)
}

func TestDescriptions(t *testing.T) {
	ins := &domain.Instruction{Kind: domain.InstructionText, X: 50, Y: 692, FontName: "Helvetica", FontSize: 12}
	assert.Equal(t, "font:Helvetica, points:12, pos:bl, off:50.00 692.00, scale:1 abs, rot:0, op:1, fillc:#000000", textDescription(ins))

	img := &domain.Instruction{Kind: domain.InstructionImage, X: 50, Y: 462, Scale: 0.5}
	assert.Equal(t, "pos:bl, off:50.00 462.00, scale:0.50 abs, rot:0, op:1", imageDescription(img))
}
