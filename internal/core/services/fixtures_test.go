package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/signdesk/internal/core/ports/driving"
	"github.com/custodia-labs/signdesk/internal/flatten"
	"github.com/custodia-labs/signdesk/internal/testutil"
)

const testTemplateID = "tmpl-consent"

// harness wires every service over shared in-memory mocks, the same way
// the entry point wires them over real adapters
type harness struct {
	templates *mocks.MockTemplateStore
	documents *mocks.MockSignedDocumentStore
	sessions  *mocks.MockSessionStore
	handoffs  *mocks.MockHandoffStore
	events    *mocks.MockEventStream
	lock      *mocks.MockDistributedLock
	objects   *mocks.MockObjectStore
	engine    *mocks.MockPDFEngine
	codes     *mocks.MockCodeRenderer

	signing driving.SigningService
	handoff driving.HandoffService
	render  driving.RenderService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t testing.TB) *harness {
	t.Helper()
	h := &harness{
		templates: mocks.NewMockTemplateStore(),
		documents: mocks.NewMockSignedDocumentStore(),
		sessions:  mocks.NewMockSessionStore(),
		handoffs:  mocks.NewMockHandoffStore(),
		events:    mocks.NewMockEventStream(),
		lock:      mocks.NewMockDistributedLock(),
		objects:   mocks.NewMockObjectStore(),
		engine:    mocks.NewMockPDFEngine(),
		codes:     &mocks.MockCodeRenderer{},
	}
	logger := discardLogger()

	tmpl := testutil.ConsentTemplate(testTemplateID)
	_ = h.templates.Save(context.Background(), tmpl)
	_ = h.objects.Upload(context.Background(), tmpl.FilePath, mocks.MockPDF(1, 612, 792))

	h.signing = NewSigningService(SigningConfig{
		Templates: h.templates,
		Documents: h.documents,
		Sessions:  h.sessions,
		Handoffs:  h.handoffs,
		Objects:   h.objects,
		Events:    h.events,
		Lock:      h.lock,
		Logger:    logger,
	})
	h.handoff = NewHandoffService(HandoffConfig{
		Templates:    h.templates,
		Documents:    h.documents,
		Sessions:     h.sessions,
		Handoffs:     h.handoffs,
		Events:       h.events,
		Lock:         h.lock,
		Tokens:       mocks.NewMockTokenSigner(),
		Codes:        h.codes,
		Logger:       logger,
		BaseURL:      "https://sign.example.com",
		AwaitTimeout: 2 * time.Second,
	})
	h.render = NewRenderService(RenderConfig{
		Templates: h.templates,
		Documents: h.documents,
		Objects:   h.objects,
		Pipeline:  flatten.DefaultPipeline(flatten.Config{Engine: h.engine, Logger: logger}),
		Logger:    logger,
	})
	return h
}

func validValues() map[string]string {
	return map[string]string{
		"name": "Jane Doe",
		"sig":  testutil.SignatureDataURL(120, 60),
	}
}

// fillSession loads a session and sets every value in values
func (h *harness) fillSession(t testing.TB, values map[string]string) *domain.SigningSession {
	t.Helper()
	ctx := context.Background()
	session, err := h.signing.LoadSession(ctx, testTemplateID)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	for id, v := range values {
		if session, err = h.signing.SetFieldValue(ctx, session.ID, id, v); err != nil {
			t.Fatalf("SetFieldValue(%s): %v", id, err)
		}
	}
	return session
}
