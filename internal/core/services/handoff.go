package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
	"github.com/custodia-labs/signdesk/internal/core/ports/driving"
)

// Ensure handoffService implements HandoffService
var _ driving.HandoffService = (*handoffService)(nil)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// HandoffConfig holds dependencies for the hand-off service.
type HandoffConfig struct {
	Templates driven.TemplateStore
	Documents driven.SignedDocumentStore
	Sessions  driven.SessionStore
	Handoffs  driven.HandoffStore
	Events    driven.EventStream
	Lock      driven.DistributedLock
	Tokens    driven.TokenSigner
	Codes     driven.CodeRenderer // Optional: required only for QRCode
	Logger    *slog.Logger

	BaseURL        string        // public address the secondary device opens
	TTL            time.Duration // hand-off lifetime (default: 15m)
	AwaitTimeout   time.Duration // bound on Await (default: 10m)
	ResyncInterval time.Duration // how often Await re-reads storage (default: 5s)
}

type handoffService struct {
	templates      driven.TemplateStore
	documents      driven.SignedDocumentStore
	sessions       driven.SessionStore
	handoffs       driven.HandoffStore
	events         driven.EventStream
	tokens         driven.TokenSigner
	codes          driven.CodeRenderer
	claim          *handoffClaim
	logger         *slog.Logger
	baseURL        string
	ttl            time.Duration
	awaitTimeout   time.Duration
	resyncInterval time.Duration
}

// NewHandoffService creates a new HandoffService
func NewHandoffService(cfg HandoffConfig) driving.HandoffService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	awaitTimeout := cfg.AwaitTimeout
	if awaitTimeout == 0 {
		awaitTimeout = 10 * time.Minute
	}
	resyncInterval := cfg.ResyncInterval
	if resyncInterval <= 0 {
		resyncInterval = 5 * time.Second
	}
	return &handoffService{
		templates:      cfg.Templates,
		documents:      cfg.Documents,
		sessions:       cfg.Sessions,
		handoffs:       cfg.Handoffs,
		events:         cfg.Events,
		tokens:         cfg.Tokens,
		codes:          cfg.Codes,
		claim:          &handoffClaim{lock: cfg.Lock, handoffs: cfg.Handoffs, ttl: ttl, logger: logger},
		logger:         logger,
		baseURL:        cfg.BaseURL,
		ttl:            ttl,
		awaitTimeout:   awaitTimeout,
		resyncInterval: resyncInterval,
	}
}

// Begin creates a pending hand-off and signs its correlation token
func (s *handoffService) Begin(ctx context.Context, templateID, sessionID string) (*domain.HandoffReference, error) {
	tmpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, &domain.LoadError{Resource: "template", Err: err}
	}
	if len(tmpl.SignatureFields()) == 0 {
		return nil, fmt.Errorf("%w: template %s has no signature field", domain.ErrInvalidInput, tmpl.ID)
	}

	var session *domain.SigningSession
	if sessionID != "" {
		session, err = s.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session.TemplateID != tmpl.ID {
			return nil, fmt.Errorf("%w: session %s belongs to template %s", domain.ErrInvalidInput, session.ID, session.TemplateID)
		}
		if session.IsSubmitted() {
			return nil, domain.ErrSessionSubmitted
		}
		if session.HandoffID != "" {
			if err := s.retire(ctx, session.HandoffID); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	h := &domain.Handoff{
		ID:         uuid.NewString(),
		TemplateID: tmpl.ID,
		SessionID:  sessionID,
		Status:     domain.HandoffPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	token, err := s.tokens.Sign(claimsFor(h))
	if err != nil {
		return nil, fmt.Errorf("sign handoff token: %w", err)
	}
	if err := s.handoffs.Save(ctx, h); err != nil {
		return nil, fmt.Errorf("save handoff: %w", err)
	}

	if session != nil {
		session.HandoffID = h.ID
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, fmt.Errorf("link session: %w", err)
		}
	}

	s.logger.Info("handoff started", "handoff_id", h.ID, "template_id", tmpl.ID, "session_id", sessionID)
	return &domain.HandoffReference{
		Handoff: h,
		Token:   token,
		URL:     domain.BuildHandoffURL(s.baseURL, tmpl.ID, token),
	}, nil
}

// retire expires the hand-off a session linked before, so its code can no
// longer be completed. One that is completed, or being completed, is a
// conflict: the primary should await it instead.
func (s *handoffService) retire(ctx context.Context, handoffID string) error {
	if err := s.claim.acquire(ctx, handoffID); err != nil {
		return err
	}
	defer s.claim.release(ctx, handoffID)

	old, err := s.handoffs.Get(ctx, handoffID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if old.IsCompleted() {
		return domain.ErrHandoffConflict
	}
	if old.IsExpired() {
		return nil
	}

	old.ExpiresAt = time.Now().UTC().Add(-time.Second)
	if err := s.handoffs.Save(ctx, old); err != nil {
		return fmt.Errorf("retire handoff: %w", err)
	}
	s.logger.Info("handoff replaced", "handoff_id", old.ID, "session_id", old.SessionID)
	return nil
}

// claimsFor derives the token claims from the stored hand-off, so the same
// token can be re-issued without storing it
func claimsFor(h *domain.Handoff) *domain.HandoffClaims {
	return &domain.HandoffClaims{
		HandoffID:  h.ID,
		TemplateID: h.TemplateID,
		SessionID:  h.SessionID,
		IssuedAt:   h.CreatedAt.Unix(),
		ExpiresAt:  h.ExpiresAt.Unix(),
	}
}

// QRCode renders the reference URL of a pending hand-off
func (s *handoffService) QRCode(ctx context.Context, handoffID string, size int) ([]byte, error) {
	if s.codes == nil {
		return nil, fmt.Errorf("%w: no code renderer configured", domain.ErrServiceUnavailable)
	}
	h, err := s.handoffs.Get(ctx, handoffID)
	if err != nil {
		return nil, err
	}
	if h.IsCompleted() {
		return nil, domain.ErrHandoffConflict
	}
	if h.IsExpired() {
		return nil, domain.ErrTokenExpired
	}

	token, err := s.tokens.Sign(claimsFor(h))
	if err != nil {
		return nil, fmt.Errorf("sign handoff token: %w", err)
	}

	switch {
	case size == 0:
		size = defaultQRSize
	case size < minQRSize:
		size = minQRSize
	case size > maxQRSize:
		size = maxQRSize
	}
	return s.codes.PNG(domain.BuildHandoffURL(s.baseURL, h.TemplateID, token), size)
}

// verify checks a token against the stored hand-off
func (s *handoffService) verify(ctx context.Context, token string) (*domain.Handoff, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	h, err := s.handoffs.Get(ctx, claims.HandoffID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// stores drop hand-offs once their TTL lapses
			return nil, domain.ErrTokenExpired
		}
		return nil, err
	}
	if h.TemplateID != claims.TemplateID {
		return nil, domain.ErrTokenInvalid
	}
	if h.IsExpired() && !h.IsCompleted() {
		return nil, domain.ErrTokenExpired
	}
	return h, nil
}

// OpenCapture returns the template's signature fields for the capture UI
func (s *handoffService) OpenCapture(ctx context.Context, token string) (*domain.CaptureContext, error) {
	h, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if h.IsCompleted() {
		return nil, domain.ErrHandoffConflict
	}

	tmpl, err := s.templates.Get(ctx, h.TemplateID)
	if err != nil {
		return nil, &domain.LoadError{Resource: "template", Err: err}
	}
	return &domain.CaptureContext{
		Handoff:         h,
		TemplateName:    tmpl.Name,
		SignatureFields: tmpl.SignatureFields(),
	}, nil
}

// Complete performs the same persistence call as a primary submission.
// The secondary device neither knows nor needs to know whether a primary
// is listening.
func (s *handoffService) Complete(ctx context.Context, token string, values map[string]string) (*domain.SignedDocument, error) {
	h, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if h.IsCompleted() {
		return nil, domain.ErrHandoffConflict
	}

	tmpl, err := s.templates.Get(ctx, h.TemplateID)
	if err != nil {
		return nil, &domain.LoadError{Resource: "template", Err: err}
	}
	if err := tmpl.CheckValueKeys(values); err != nil {
		return nil, err
	}

	// the capture UI exists to collect signatures: every one must be present
	sigFields := tmpl.SignatureFields()
	for i := range sigFields {
		sigFields[i].Required = true
	}
	if err := domain.ValidateValues(sigFields, values).Err(); err != nil {
		return nil, err
	}

	if err := s.claim.acquire(ctx, h.ID); err != nil {
		if errors.Is(err, domain.ErrHandoffConflict) {
			s.logger.Info("duplicate handoff completion rejected", "handoff_id", h.ID)
		}
		return nil, err
	}
	// re-read under the claim: the hand-off may have been completed or
	// replaced since the token was verified
	if err := s.stillOpen(ctx, h.ID); err != nil {
		s.claim.release(ctx, h.ID)
		return nil, err
	}

	doc := &domain.SignedDocument{
		ID:         uuid.NewString(),
		TemplateID: h.TemplateID,
		HandoffID:  h.ID,
		Values:     copyValues(values),
		Source:     domain.SourceHandoff,
		CreatedAt:  time.Now().UTC(),
	}
	if err := insertDocument(ctx, s.documents, doc); err != nil {
		s.claim.release(ctx, h.ID)
		return nil, err
	}
	s.claim.finish(ctx, h.ID, doc.ID)
	publishCreated(ctx, s.events, s.logger, doc)

	s.logger.Info("handoff completed", "handoff_id", h.ID, "document_id", doc.ID, "template_id", doc.TemplateID)
	return doc, nil
}

func (s *handoffService) stillOpen(ctx context.Context, handoffID string) error {
	h, err := s.handoffs.Get(ctx, handoffID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrTokenExpired
	case err != nil:
		return err
	case h.IsCompleted():
		return domain.ErrHandoffConflict
	case h.IsExpired():
		return domain.ErrTokenExpired
	}
	return nil
}

func copyValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

// Cancel performs no persistence. The hand-off stays pending so the code
// can be scanned again; the primary is bounded by its await timeout.
func (s *handoffService) Cancel(ctx context.Context, token string) error {
	h, err := s.verify(ctx, token)
	if err != nil {
		return err
	}
	s.logger.Info("handoff capture cancelled", "handoff_id", h.ID)
	return nil
}

// Await subscribes first, then backfills, so a completion published between
// the two steps is never missed. Events are at-most-once: a failed publish or
// a transport reconnect can drop one, so storage is read again on every
// resync tick and once more before giving up.
func (s *handoffService) Await(ctx context.Context, templateID, handoffID string) (*domain.SignedDocument, error) {
	if templateID == "" {
		if handoffID == "" {
			return nil, fmt.Errorf("%w: template or handoff id required", domain.ErrInvalidInput)
		}
		h, err := s.handoffs.Get(ctx, handoffID)
		if err != nil {
			return nil, err
		}
		templateID = h.TemplateID
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.awaitTimeout)
	defer cancel()

	since := time.Now().UTC()
	sub, err := s.events.Subscribe(waitCtx, templateID)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe: %v", domain.ErrServiceUnavailable, err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			s.logger.Warn("failed to close subscription", "template_id", templateID, "error", err)
		}
	}()

	doc, err := s.backfill(waitCtx, templateID, handoffID, since)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	resync := time.NewTicker(s.resyncInterval)
	defer resync.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if doc := s.resync(ctx, templateID, handoffID, since); doc != nil {
				return doc, nil
			}
			return nil, domain.ErrHandoffTimeout
		case <-resync.C:
			if doc := s.resync(waitCtx, templateID, handoffID, since); doc != nil {
				return doc, nil
			}
		case ev, ok := <-sub.Events():
			if !ok {
				if doc := s.resync(ctx, templateID, handoffID, since); doc != nil {
					return doc, nil
				}
				return nil, fmt.Errorf("%w: event stream closed", domain.ErrServiceUnavailable)
			}
			if ev.Kind != domain.EventDocumentCreated || ev.TemplateID != templateID {
				continue
			}
			if handoffID != "" && ev.HandoffID != handoffID {
				continue
			}
			return s.documents.Get(ctx, ev.DocumentID)
		}
	}
}

// resync is a backfill inside the wait loop. Failures are logged and the
// wait goes on.
func (s *handoffService) resync(ctx context.Context, templateID, handoffID string, since time.Time) *domain.SignedDocument {
	doc, err := s.backfill(ctx, templateID, handoffID, since)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("handoff resync failed", "template_id", templateID, "handoff_id", handoffID, "error", err)
		}
		return nil
	}
	return doc
}

// backfill finds a completion that happened before the subscription was live
func (s *handoffService) backfill(ctx context.Context, templateID, handoffID string, since time.Time) (*domain.SignedDocument, error) {
	if handoffID != "" {
		h, err := s.handoffs.Get(ctx, handoffID)
		if err != nil {
			return nil, err
		}
		if h.TemplateID != templateID {
			return nil, fmt.Errorf("%w: handoff %s belongs to template %s", domain.ErrInvalidInput, h.ID, h.TemplateID)
		}
		if h.IsCompleted() && h.SignedDocumentID != "" {
			return s.documents.Get(ctx, h.SignedDocumentID)
		}
		return nil, nil
	}

	docs, err := s.documents.ListByTemplate(ctx, templateID, 1)
	if err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}
	if len(docs) > 0 && !docs[0].CreatedAt.Before(since) {
		return docs[0], nil
	}
	return nil, nil
}

// AwaitSession applies the first completion of the session's hand-off
func (s *handoffService) AwaitSession(ctx context.Context, sessionID string) (*domain.SigningSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.HandoffID == "" {
		return nil, fmt.Errorf("%w: session %s has no handoff", domain.ErrInvalidInput, session.ID)
	}
	if session.IsSubmitted() {
		return session, nil
	}

	doc, err := s.Await(ctx, session.TemplateID, session.HandoffID)
	if err != nil {
		return nil, err
	}

	// reload: the signer may have kept editing while waiting
	session, err = s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.ApplyRemoteCompletion(doc); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("remote completion applied", "session_id", session.ID, "document_id", doc.ID)
	return session, nil
}
