package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
	"github.com/custodia-labs/signdesk/internal/core/ports/driving"
)

// Ensure signingService implements SigningService
var _ driving.SigningService = (*signingService)(nil)

// SigningConfig holds dependencies for the signing service.
type SigningConfig struct {
	Templates driven.TemplateStore
	Documents driven.SignedDocumentStore
	Sessions  driven.SessionStore
	Handoffs  driven.HandoffStore
	Objects   driven.ObjectStore     // Optional: when set, LoadSession checks the template PDF is reachable
	Events    driven.EventStream     // Optional: publishes creation events for primary submissions
	Lock      driven.DistributedLock // Optional: claims a linked hand-off on submit
	Logger    *slog.Logger

	SessionTTL time.Duration // default: 24h
	ClaimTTL   time.Duration // default: 15m
}

type signingService struct {
	templates driven.TemplateStore
	documents driven.SignedDocumentStore
	sessions  driven.SessionStore
	objects   driven.ObjectStore
	events    driven.EventStream
	claim     *handoffClaim
	logger    *slog.Logger
	ttl       time.Duration
}

// NewSigningService creates a new SigningService
func NewSigningService(cfg SigningConfig) driving.SigningService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.SessionTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	claimTTL := cfg.ClaimTTL
	if claimTTL == 0 {
		claimTTL = 15 * time.Minute
	}
	return &signingService{
		templates: cfg.Templates,
		documents: cfg.Documents,
		sessions:  cfg.Sessions,
		objects:   cfg.Objects,
		events:    cfg.Events,
		claim:     &handoffClaim{lock: cfg.Lock, handoffs: cfg.Handoffs, ttl: claimTTL, logger: logger},
		logger:    logger,
		ttl:       ttl,
	}
}

// GetTemplate retrieves a template by ID
func (s *signingService) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	return s.templates.Get(ctx, id)
}

// LoadSession starts a session on the first field of the template
func (s *signingService) LoadSession(ctx context.Context, templateID string) (*domain.SigningSession, error) {
	tmpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, &domain.LoadError{Resource: "template", Err: err}
	}
	if err := tmpl.Validate(); err != nil {
		return nil, &domain.LoadError{Resource: "template", Err: err}
	}
	if len(tmpl.Fields) == 0 {
		return nil, &domain.LoadError{Resource: "template", Err: fmt.Errorf("%w: template has no fields", domain.ErrInvalidInput)}
	}

	if s.objects != nil {
		if _, err := s.objects.Download(ctx, tmpl.FilePath); err != nil {
			return nil, &domain.LoadError{Resource: "template pdf", Err: err}
		}
	}

	session := domain.NewSigningSession(uuid.NewString(), tmpl, s.ttl)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("signing session started", "session_id", session.ID, "template_id", tmpl.ID)
	return session, nil
}

// GetSession retrieves a session by ID
func (s *signingService) GetSession(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		_ = s.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrNotFound
	}
	return session, nil
}

// CloseSession releases a session
func (s *signingService) CloseSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// SetFieldValue records a value keyed by field ID
func (s *signingService) SetFieldValue(ctx context.Context, sessionID, fieldID, value string) (*domain.SigningSession, error) {
	return s.mutate(ctx, sessionID, func(session *domain.SigningSession) error {
		return session.SetValue(fieldID, value)
	})
}

// AdvanceField moves to the next field
func (s *signingService) AdvanceField(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
	return s.mutate(ctx, sessionID, func(session *domain.SigningSession) error {
		return session.Advance()
	})
}

func (s *signingService) mutate(ctx context.Context, sessionID string, fn func(*domain.SigningSession) error) (*domain.SigningSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return session, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// ValidateForSubmission reports missing required fields
func (s *signingService) ValidateForSubmission(ctx context.Context, sessionID string) (*domain.ValidationResult, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res := session.Validate()
	return &res, nil
}

// Submit validates, persists the signed document and only then moves the
// session to submitted
func (s *signingService) Submit(ctx context.Context, sessionID string) (*domain.SignedDocument, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsSubmitted() {
		return nil, domain.ErrSessionSubmitted
	}
	if err := session.Validate().Err(); err != nil {
		return nil, err
	}

	doc := &domain.SignedDocument{
		ID:         uuid.NewString(),
		TemplateID: session.TemplateID,
		HandoffID:  session.HandoffID,
		Values:     session.Snapshot(),
		Source:     domain.SourcePrimary,
		CreatedAt:  time.Now().UTC(),
	}

	// A linked hand-off is completed by whichever device submits first
	if doc.HandoffID != "" {
		if err := s.claim.acquire(ctx, doc.HandoffID); err != nil {
			return nil, err
		}
	}

	if err := insertDocument(ctx, s.documents, doc); err != nil {
		if doc.HandoffID != "" {
			s.claim.release(ctx, doc.HandoffID)
		}
		return nil, err
	}
	if doc.HandoffID != "" {
		s.claim.finish(ctx, doc.HandoffID, doc.ID)
	}

	if err := session.MarkSubmitted(doc.ID); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("failed to save submitted session", "session_id", session.ID, "document_id", doc.ID, "error", err)
	}

	publishCreated(ctx, s.events, s.logger, doc)

	s.logger.Info("signed document created", "document_id", doc.ID, "template_id", doc.TemplateID, "source", doc.Source)
	return doc, nil
}
