package http

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

var errNotImplemented = errors.New("not implemented")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSigningService struct {
	getTemplateFn  func(ctx context.Context, id string) (*domain.Template, error)
	loadSessionFn  func(ctx context.Context, templateID string) (*domain.SigningSession, error)
	getSessionFn   func(ctx context.Context, id string) (*domain.SigningSession, error)
	closeSessionFn func(ctx context.Context, id string) error
	setFieldFn     func(ctx context.Context, sessionID, fieldID, value string) (*domain.SigningSession, error)
	advanceFn      func(ctx context.Context, sessionID string) (*domain.SigningSession, error)
	validateFn     func(ctx context.Context, sessionID string) (*domain.ValidationResult, error)
	submitFn       func(ctx context.Context, sessionID string) (*domain.SignedDocument, error)
}

func (m *mockSigningService) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	if m.getTemplateFn != nil {
		return m.getTemplateFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockSigningService) LoadSession(ctx context.Context, templateID string) (*domain.SigningSession, error) {
	if m.loadSessionFn != nil {
		return m.loadSessionFn(ctx, templateID)
	}
	return nil, errNotImplemented
}

func (m *mockSigningService) GetSession(ctx context.Context, id string) (*domain.SigningSession, error) {
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockSigningService) CloseSession(ctx context.Context, id string) error {
	if m.closeSessionFn != nil {
		return m.closeSessionFn(ctx, id)
	}
	return nil
}

func (m *mockSigningService) SetFieldValue(ctx context.Context, sessionID, fieldID, value string) (*domain.SigningSession, error) {
	if m.setFieldFn != nil {
		return m.setFieldFn(ctx, sessionID, fieldID, value)
	}
	return nil, errNotImplemented
}

func (m *mockSigningService) AdvanceField(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
	if m.advanceFn != nil {
		return m.advanceFn(ctx, sessionID)
	}
	return nil, errNotImplemented
}

func (m *mockSigningService) ValidateForSubmission(ctx context.Context, sessionID string) (*domain.ValidationResult, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, sessionID)
	}
	return nil, errNotImplemented
}

func (m *mockSigningService) Submit(ctx context.Context, sessionID string) (*domain.SignedDocument, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, sessionID)
	}
	return nil, errNotImplemented
}

type mockHandoffService struct {
	beginFn        func(ctx context.Context, templateID, sessionID string) (*domain.HandoffReference, error)
	qrFn           func(ctx context.Context, handoffID string, size int) ([]byte, error)
	openCaptureFn  func(ctx context.Context, token string) (*domain.CaptureContext, error)
	completeFn     func(ctx context.Context, token string, values map[string]string) (*domain.SignedDocument, error)
	cancelFn       func(ctx context.Context, token string) error
	awaitSessionFn func(ctx context.Context, sessionID string) (*domain.SigningSession, error)
}

func (m *mockHandoffService) Begin(ctx context.Context, templateID, sessionID string) (*domain.HandoffReference, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx, templateID, sessionID)
	}
	return nil, errNotImplemented
}

func (m *mockHandoffService) QRCode(ctx context.Context, handoffID string, size int) ([]byte, error) {
	if m.qrFn != nil {
		return m.qrFn(ctx, handoffID, size)
	}
	return nil, errNotImplemented
}

func (m *mockHandoffService) OpenCapture(ctx context.Context, token string) (*domain.CaptureContext, error) {
	if m.openCaptureFn != nil {
		return m.openCaptureFn(ctx, token)
	}
	return nil, errNotImplemented
}

func (m *mockHandoffService) Complete(ctx context.Context, token string, values map[string]string) (*domain.SignedDocument, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, token, values)
	}
	return nil, errNotImplemented
}

func (m *mockHandoffService) Cancel(ctx context.Context, token string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, token)
	}
	return nil
}

func (m *mockHandoffService) Await(ctx context.Context, templateID, handoffID string) (*domain.SignedDocument, error) {
	return nil, errNotImplemented
}

func (m *mockHandoffService) AwaitSession(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
	if m.awaitSessionFn != nil {
		return m.awaitSessionFn(ctx, sessionID)
	}
	return nil, errNotImplemented
}

type mockRenderService struct {
	getFn     func(ctx context.Context, id string) (*domain.SignedDocument, error)
	flattenFn func(ctx context.Context, id string) (*domain.RenderedDocument, error)
}

func (m *mockRenderService) GetSignedDocument(ctx context.Context, id string) (*domain.SignedDocument, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockRenderService) FlattenForDownload(ctx context.Context, id string) (*domain.RenderedDocument, error) {
	if m.flattenFn != nil {
		return m.flattenFn(ctx, id)
	}
	return nil, errNotImplemented
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}
