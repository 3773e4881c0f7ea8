package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

const handoffLockPrefix = "handoff:"

// handoffClaim makes completion of a hand-off first-wins across devices and
// instances. The lock only serializes the insert: once the hand-off is
// marked completed the claim is released, and the completed status plus the
// unique hand-off id on signed documents reject any late completion.
type handoffClaim struct {
	lock     driven.DistributedLock
	handoffs driven.HandoffStore
	ttl      time.Duration
	logger   *slog.Logger
}

func (c *handoffClaim) acquire(ctx context.Context, handoffID string) error {
	if c.lock == nil {
		return nil
	}
	acquired, err := c.lock.Acquire(ctx, handoffLockPrefix+handoffID, c.ttl)
	if err != nil {
		return fmt.Errorf("%w: claim handoff: %v", domain.ErrServiceUnavailable, err)
	}
	if !acquired {
		return domain.ErrHandoffConflict
	}
	return nil
}

func (c *handoffClaim) release(ctx context.Context, handoffID string) {
	if c.lock == nil {
		return
	}
	if err := c.lock.Release(ctx, handoffLockPrefix+handoffID); err != nil {
		c.logger.Warn("failed to release handoff claim", "handoff_id", handoffID, "error", err)
	}
}

// finish records the winning document on the hand-off and releases the
// claim. A failed mark is logged only: the document is already persisted and
// the unique index still guards against a second completion.
func (c *handoffClaim) finish(ctx context.Context, handoffID, documentID string) {
	if c.handoffs != nil {
		if err := c.handoffs.MarkCompleted(ctx, handoffID, documentID); err != nil && !errors.Is(err, domain.ErrHandoffConflict) {
			c.logger.Warn("failed to mark handoff completed", "handoff_id", handoffID, "document_id", documentID, "error", err)
		}
	}
	c.release(ctx, handoffID)
}

// insertDocument persists a signed document, converting store failures to
// the error kinds callers surface
func insertDocument(ctx context.Context, store driven.SignedDocumentStore, doc *domain.SignedDocument) error {
	if err := store.Insert(ctx, doc); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) && doc.HandoffID != "" {
			return domain.ErrHandoffConflict
		}
		return &domain.PersistError{Op: "insert signed document", Err: err}
	}
	return nil
}

func publishCreated(ctx context.Context, events driven.EventStream, logger *slog.Logger, doc *domain.SignedDocument) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, domain.NewDocumentCreatedEvent(doc)); err != nil {
		// waiting devices resync from storage
		logger.Warn("failed to publish document event", "document_id", doc.ID, "template_id", doc.TemplateID, "error", err)
	}
}
