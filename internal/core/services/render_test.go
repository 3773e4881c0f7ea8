package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/signdesk/internal/flatten"
)

// Mock implementations for local testing

// MockObjectStore is a testify mock of driven.ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Download(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectStore) Upload(ctx context.Context, path string, data []byte) error {
	args := m.Called(ctx, path, data)
	return args.Error(0)
}

func (m *MockObjectStore) PublicURL(path string) string {
	args := m.Called(path)
	return args.String(0)
}

func submitDocument(t *testing.T, h *harness, values map[string]string) *domain.SignedDocument {
	t.Helper()
	session := h.fillSession(t, values)
	doc, err := h.signing.Submit(context.Background(), session.ID)
	require.NoError(t, err)
	return doc
}

func TestRenderService_FlattenForDownload(t *testing.T) {
	h := newHarness(t)
	doc := submitDocument(t, h, validValues())

	rendered, err := h.render.FlattenForDownload(context.Background(), doc.ID)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, rendered.DocumentID)
	assert.Equal(t, "consent-form-signed-"+doc.ID[:8]+".pdf", rendered.Filename)
	assert.Equal(t, 2, rendered.Report.Count(domain.OutcomeDrawn))
	assert.NotEmpty(t, rendered.PDF)

	drawn := h.engine.Opened()[0].Drawn
	require.Len(t, drawn, 2)
	assert.Equal(t, "Jane Doe", drawn[0].Text)
	assert.Equal(t, 792.0-100, drawn[0].Y)
	assert.Equal(t, domain.InstructionImage, drawn[1].Kind)
	assert.Equal(t, 792.0-300-drawn[1].Height, drawn[1].Y)
}

func TestRenderService_RepeatableAndReadOnly(t *testing.T) {
	h := newHarness(t)
	doc := submitDocument(t, h, validValues())
	ctx := context.Background()

	a, err := h.render.FlattenForDownload(ctx, doc.ID)
	require.NoError(t, err)
	b, err := h.render.FlattenForDownload(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, a.PDF, b.PDF)

	stored, err := h.render.GetSignedDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Values, stored.Values)
}

func TestRenderService_MissingSourceIsLoadError(t *testing.T) {
	h := newHarness(t)
	doc := submitDocument(t, h, validValues())

	objects := new(MockObjectStore)
	objects.On("Download", mock.Anything, "templates/"+testTemplateID+".pdf").Return(nil, domain.ErrNotFound)

	svc := NewRenderService(RenderConfig{
		Templates: h.templates,
		Documents: h.documents,
		Objects:   objects,
		Pipeline:  flatten.DefaultPipeline(flatten.Config{Engine: mocks.NewMockPDFEngine(), Logger: discardLogger()}),
		Logger:    discardLogger(),
	})

	_, err := svc.FlattenForDownload(context.Background(), doc.ID)
	var loadErr *domain.LoadError
	require.True(t, errors.As(err, &loadErr), "got %v", err)
	assert.Equal(t, "template pdf", loadErr.Resource)
	objects.AssertExpectations(t)
}

func TestRenderService_CorruptSourceIsRenderError(t *testing.T) {
	h := newHarness(t)
	doc := submitDocument(t, h, validValues())
	require.NoError(t, h.objects.Upload(context.Background(), "templates/"+testTemplateID+".pdf", []byte("corrupt")))

	_, err := h.render.FlattenForDownload(context.Background(), doc.ID)
	var renderErr *domain.RenderError
	require.True(t, errors.As(err, &renderErr), "got %v", err)
	assert.ErrorIs(t, err, domain.ErrSourceLoad)

	// the persisted document stays valid
	_, err = h.render.GetSignedDocument(context.Background(), doc.ID)
	assert.NoError(t, err)
}

func TestRenderService_UnknownDocument(t *testing.T) {
	h := newHarness(t)
	_, err := h.render.FlattenForDownload(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "nda-2026-signed-abcdef12.pdf", downloadName("NDA (2026)", "abcdef1234"))
	assert.Equal(t, "document-signed-x.pdf", downloadName("!!!", "x"))
}
