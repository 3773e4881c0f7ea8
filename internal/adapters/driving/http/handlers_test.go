package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

func newTestServer(signing *mockSigningService, handoff *mockHandoffService, render *mockRenderService, checks map[string]Pinger) http.Handler {
	if signing == nil {
		signing = &mockSigningService{}
	}
	if handoff == nil {
		handoff = &mockHandoffService{}
	}
	if render == nil {
		render = &mockRenderService{}
	}
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	cfg.Logger = discardLogger()
	return NewServer(cfg, signing, handoff, render, checks).Handler()
}

func do(h http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
}

func testSession() *domain.SigningSession {
	tmpl := &domain.Template{
		ID:       "tmpl-1",
		FilePath: "templates/tmpl-1.pdf",
		Fields: []domain.Field{
			{ID: "name", Type: domain.FieldTypeText, Label: "Name", Required: true, Position: domain.Position{X: 50, Y: 100, Page: 1}},
			{ID: "sig", Type: domain.FieldTypeSignature, Label: "Sig", Required: true, Position: domain.Position{X: 50, Y: 300, Page: 1}},
		},
	}
	return domain.NewSigningSession("sess-1", tmpl, time.Hour)
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(nil, nil, nil, map[string]Pinger{"db": &mockPinger{}})

	if rec := do(h, "GET", "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}

	rec := do(h, "GET", "/version", nil)
	var version VersionResponse
	decodeBody(t, rec, &version)
	if version.Version != "1.2.3" {
		t.Errorf("version = %q", version.Version)
	}

	if rec := do(h, "GET", "/ready", nil); rec.Code != http.StatusOK {
		t.Errorf("ready: expected 200, got %d", rec.Code)
	}
}

func TestReady_FailingCheck(t *testing.T) {
	h := newTestServer(nil, nil, nil, map[string]Pinger{
		"db":    &mockPinger{},
		"redis": &mockPinger{err: errors.New("dial tcp: connection refused")},
	})

	rec := do(h, "GET", "/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["redis"] != "unavailable" || body["db"] != "" {
		t.Errorf("unexpected body %v", body)
	}
	if strings.Contains(rec.Body.String(), "refused") {
		t.Error("driver error leaked")
	}
}

func TestLoadSession(t *testing.T) {
	signing := &mockSigningService{
		loadSessionFn: func(ctx context.Context, templateID string) (*domain.SigningSession, error) {
			switch templateID {
			case "missing":
				return nil, &domain.LoadError{Resource: "template", Err: domain.ErrNotFound}
			case "broken":
				return nil, &domain.LoadError{Resource: "template pdf", Err: errors.New("bucket timeout")}
			}
			return testSession(), nil
		},
	}
	h := newTestServer(signing, nil, nil, nil)

	rec := do(h, "POST", "/api/v1/templates/tmpl-1/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID            string `json:"id"`
		State         string `json:"state"`
		ActiveFieldID string `json:"active_field_id"`
	}
	decodeBody(t, rec, &resp)
	if resp.ID != "sess-1" || resp.State != "editing" || resp.ActiveFieldID != "name" {
		t.Errorf("unexpected response %+v", resp)
	}

	if rec := do(h, "POST", "/api/v1/templates/missing/sessions", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing template: expected 404, got %d", rec.Code)
	}

	rec = do(h, "POST", "/api/v1/templates/broken/sessions", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("unreachable pdf: expected 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "bucket") {
		t.Error("storage error leaked")
	}
}

func TestSetFieldValue(t *testing.T) {
	var gotField, gotValue string
	signing := &mockSigningService{
		setFieldFn: func(ctx context.Context, sessionID, fieldID, value string) (*domain.SigningSession, error) {
			switch fieldID {
			case "Name":
				return nil, fmt.Errorf("%w: Name", domain.ErrUnknownField)
			case "late":
				return nil, domain.ErrSessionSubmitted
			}
			gotField, gotValue = fieldID, value
			s := testSession()
			_ = s.SetValue(fieldID, value)
			return s, nil
		},
	}
	h := newTestServer(signing, nil, nil, nil)

	rec := do(h, "PUT", "/api/v1/sessions/sess-1/fields/name", SetFieldRequest{Value: "Jane Doe"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotField != "name" || gotValue != "Jane Doe" {
		t.Errorf("service got %q=%q", gotField, gotValue)
	}

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"bad body", "/api/v1/sessions/sess-1/fields/name", "{", http.StatusBadRequest},
		{"label instead of id", "/api/v1/sessions/sess-1/fields/Name", SetFieldRequest{Value: "x"}, http.StatusBadRequest},
		{"submitted", "/api/v1/sessions/sess-1/fields/late", SetFieldRequest{Value: "x"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(h, "PUT", tt.path, tt.body); rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestAdvance_ValidationError(t *testing.T) {
	signing := &mockSigningService{
		advanceFn: func(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
			return nil, &domain.ValidationError{MissingFieldIDs: []string{"name"}, MissingLabels: []string{"Name"}}
		},
	}
	h := newTestServer(signing, nil, nil, nil)

	rec := do(h, "POST", "/api/v1/sessions/sess-1/advance", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp ValidationErrorResponse
	decodeBody(t, rec, &resp)
	if len(resp.MissingLabels) != 1 || resp.MissingLabels[0] != "Name" {
		t.Errorf("unexpected missing labels %v", resp.MissingLabels)
	}
}

func TestAdvance_LastField(t *testing.T) {
	signing := &mockSigningService{
		advanceFn: func(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
			return nil, domain.ErrNoNextField
		},
	}
	if rec := do(newTestServer(signing, nil, nil, nil), "POST", "/api/v1/sessions/sess-1/advance", nil); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestValidate(t *testing.T) {
	signing := &mockSigningService{
		validateFn: func(ctx context.Context, sessionID string) (*domain.ValidationResult, error) {
			return &domain.ValidationResult{OK: false, MissingFieldIDs: []string{"sig"}, MissingLabels: []string{"Sig"}}, nil
		},
	}
	rec := do(newTestServer(signing, nil, nil, nil), "GET", "/api/v1/sessions/sess-1/validation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result domain.ValidationResult
	decodeBody(t, rec, &result)
	if result.OK || len(result.MissingLabels) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestSubmit(t *testing.T) {
	var fail error
	signing := &mockSigningService{
		submitFn: func(ctx context.Context, sessionID string) (*domain.SignedDocument, error) {
			if fail != nil {
				return nil, fail
			}
			return &domain.SignedDocument{ID: "doc-1", TemplateID: "tmpl-1", Source: domain.SourcePrimary}, nil
		},
	}
	h := newTestServer(signing, nil, nil, nil)

	rec := do(h, "POST", "/api/v1/sessions/sess-1/submit", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	fail = &domain.PersistError{Op: "insert signed document", Err: errors.New("pq: could not serialize access")}
	rec = do(h, "POST", "/api/v1/sessions/sess-1/submit", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pq:") {
		t.Error("driver error leaked")
	}

	fail = domain.ErrHandoffConflict
	if rec := do(h, "POST", "/api/v1/sessions/sess-1/submit", nil); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestBeginHandoff(t *testing.T) {
	signing := &mockSigningService{
		getSessionFn: func(ctx context.Context, id string) (*domain.SigningSession, error) {
			if id != "sess-1" {
				return nil, domain.ErrNotFound
			}
			return testSession(), nil
		},
	}
	var gotTemplate, gotSession string
	handoff := &mockHandoffService{
		beginFn: func(ctx context.Context, templateID, sessionID string) (*domain.HandoffReference, error) {
			gotTemplate, gotSession = templateID, sessionID
			return &domain.HandoffReference{Handoff: &domain.Handoff{ID: "h-1"}, Token: "tok", URL: "https://sign.example.com/sign/tmpl-1?mode=capture&handoff=tok"}, nil
		},
	}
	h := newTestServer(signing, handoff, nil, nil)

	rec := do(h, "POST", "/api/v1/sessions/sess-1/handoff", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if gotTemplate != "tmpl-1" || gotSession != "sess-1" {
		t.Errorf("Begin(%q, %q)", gotTemplate, gotSession)
	}

	if rec := do(h, "POST", "/api/v1/sessions/other/handoff", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandoffQR(t *testing.T) {
	var gotSize int
	handoff := &mockHandoffService{
		qrFn: func(ctx context.Context, handoffID string, size int) ([]byte, error) {
			if handoffID == "expired" {
				return nil, domain.ErrTokenExpired
			}
			gotSize = size
			return []byte("\x89PNG"), nil
		},
	}
	h := newTestServer(nil, handoff, nil, nil)

	rec := do(h, "GET", "/api/v1/handoffs/h-1/qr.png", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if gotSize != defaultQRSize {
		t.Errorf("size = %d, want default", gotSize)
	}

	do(h, "GET", "/api/v1/handoffs/h-1/qr.png?size=512", nil)
	if gotSize != 512 {
		t.Errorf("size = %d, want 512", gotSize)
	}

	if rec := do(h, "GET", "/api/v1/handoffs/h-1/qr.png?size=big", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := do(h, "GET", "/api/v1/handoffs/expired/qr.png", nil); rec.Code != http.StatusGone {
		t.Errorf("expected 410, got %d", rec.Code)
	}
}

func TestCapture_TokenSources(t *testing.T) {
	var gotToken string
	handoff := &mockHandoffService{
		openCaptureFn: func(ctx context.Context, token string) (*domain.CaptureContext, error) {
			gotToken = token
			return &domain.CaptureContext{TemplateName: "Consent form"}, nil
		},
	}
	h := newTestServer(nil, handoff, nil, nil)

	if rec := do(h, "GET", "/api/v1/capture", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", rec.Code)
	}

	if rec := do(h, "GET", "/api/v1/capture?handoff=from-link", nil); rec.Code != http.StatusOK || gotToken != "from-link" {
		t.Errorf("query token: %d %q", rec.Code, gotToken)
	}

	if rec := do(h, "GET", "/api/v1/capture", nil, "Authorization", "Bearer from-header"); rec.Code != http.StatusOK || gotToken != "from-header" {
		t.Errorf("header token: %d %q", rec.Code, gotToken)
	}
}

func TestCapture_Complete(t *testing.T) {
	var gotValues map[string]string
	handoff := &mockHandoffService{
		completeFn: func(ctx context.Context, token string, values map[string]string) (*domain.SignedDocument, error) {
			switch token {
			case "expired":
				return nil, domain.ErrTokenExpired
			case "forged":
				return nil, domain.ErrTokenInvalid
			case "second":
				return nil, domain.ErrHandoffConflict
			}
			gotValues = values
			return &domain.SignedDocument{ID: "doc-1", HandoffID: "h-1", Source: domain.SourceHandoff}, nil
		},
	}
	h := newTestServer(nil, handoff, nil, nil)

	body := CaptureRequest{Values: map[string]string{"sig": "data:image/png;base64,AAAA"}}
	rec := do(h, "POST", "/api/v1/capture?handoff=good", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if gotValues["sig"] == "" {
		t.Error("values not passed through")
	}

	tests := map[string]int{
		"expired": http.StatusGone,
		"forged":  http.StatusUnauthorized,
		"second":  http.StatusConflict,
	}
	for token, status := range tests {
		if rec := do(h, "POST", "/api/v1/capture?handoff="+token, body); rec.Code != status {
			t.Errorf("%s: expected %d, got %d", token, status, rec.Code)
		}
	}

	if rec := do(h, "POST", "/api/v1/capture?handoff=good", "nope"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", rec.Code)
	}
}

func TestCapture_Cancel(t *testing.T) {
	cancelled := ""
	handoff := &mockHandoffService{
		cancelFn: func(ctx context.Context, token string) error {
			cancelled = token
			return nil
		},
	}
	rec := do(newTestServer(nil, handoff, nil, nil), "POST", "/api/v1/capture/cancel", nil, "Authorization", "Bearer tok")
	if rec.Code != http.StatusNoContent || cancelled != "tok" {
		t.Errorf("unexpected cancel %d %q", rec.Code, cancelled)
	}
}

func TestDownloadPDF(t *testing.T) {
	render := &mockRenderService{
		flattenFn: func(ctx context.Context, id string) (*domain.RenderedDocument, error) {
			if id == "unreadable" {
				return nil, &domain.RenderError{Err: domain.ErrSourceLoad}
			}
			report := domain.OverlayReport{}
			report.Add(domain.FieldResult{FieldID: "name", Outcome: domain.OutcomeDrawn})
			report.Add(domain.FieldResult{FieldID: "sig", Outcome: domain.OutcomeFailed, Err: errors.New("bad png")})
			return &domain.RenderedDocument{DocumentID: id, Filename: "consent-form-signed-doc1.pdf", PDF: []byte("%PDF-1.7"), Report: report}, nil
		},
	}
	h := newTestServer(nil, nil, render, nil)

	rec := do(h, "GET", "/api/v1/signed-documents/doc-1/pdf", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), `filename="consent-form-signed-doc1.pdf"`) {
		t.Errorf("content disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Header().Get("X-Overlay-Failed") != "1" {
		t.Errorf("X-Overlay-Failed = %q", rec.Header().Get("X-Overlay-Failed"))
	}
	if rec.Body.String() != "%PDF-1.7" {
		t.Errorf("body %q", rec.Body.String())
	}

	if rec := do(h, "GET", "/api/v1/signed-documents/unreadable/pdf", nil); rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestHandoffEvents_Completed(t *testing.T) {
	handoff := &mockHandoffService{
		awaitSessionFn: func(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
			s := testSession()
			_ = s.ApplyRemoteCompletion(&domain.SignedDocument{ID: "doc-1", TemplateID: "tmpl-1", Values: map[string]string{"name": "Jane", "sig": "x"}})
			return s, nil
		},
	}
	rec := do(newTestServer(nil, handoff, nil, nil), "GET", "/api/v1/sessions/sess-1/handoff/events", nil)

	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content type %q", rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: waiting\n") {
		t.Errorf("stream should open with a waiting event: %q", body)
	}
	if !strings.Contains(body, "event: completed\n") || !strings.Contains(body, `"signed_document_id":"doc-1"`) {
		t.Errorf("missing completed event: %q", body)
	}
}

func TestHandoffEvents_Timeout(t *testing.T) {
	handoff := &mockHandoffService{
		awaitSessionFn: func(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
			return nil, domain.ErrHandoffTimeout
		},
	}
	rec := do(newTestServer(nil, handoff, nil, nil), "GET", "/api/v1/sessions/sess-1/handoff/events", nil)
	if !strings.Contains(rec.Body.String(), "event: timeout\n") {
		t.Errorf("missing timeout event: %q", rec.Body.String())
	}
}

func TestHandoffEvents_ClientGone(t *testing.T) {
	started := make(chan struct{})
	handoff := &mockHandoffService{
		awaitSessionFn: func(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	h := newTestServer(nil, handoff, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/v1/sessions/sess-1/handoff/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	<-started
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after the client went away")
	}
	if strings.Contains(rec.Body.String(), "event: error") {
		t.Error("a departed client should not get an error event")
	}
}

func TestGetSignedDocument_NotFound(t *testing.T) {
	render := &mockRenderService{
		getFn: func(ctx context.Context, id string) (*domain.SignedDocument, error) {
			return nil, domain.ErrNotFound
		},
	}
	if rec := do(newTestServer(nil, nil, render, nil), "GET", "/api/v1/signed-documents/x", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
