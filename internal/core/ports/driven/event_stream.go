package driven

import (
	"context"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

// EventStream carries signed document creation events between devices.
// Delivery is at-most-once; subscribers backfill from storage after subscribing.
type EventStream interface {
	// Publish emits an event to every live subscriber of its template
	Publish(ctx context.Context, event domain.DocumentEvent) error

	// Subscribe opens a subscription filtered to one template.
	// The subscription is live when Subscribe returns.
	Subscribe(ctx context.Context, templateID string) (Subscription, error)
}

// Subscription is an owned handle on a live event feed. Callers must Close it.
type Subscription interface {
	// Events delivers matching events. The channel closes after Close.
	Events() <-chan domain.DocumentEvent

	// Close tears down the subscription
	Close() error
}
