// Package memory provides in-process adapters for single-instance deployments.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EventStream = (*Broker)(nil)

const subscriberBuffer = 16

// Broker fans signed document events out to in-process subscribers.
type Broker struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

// NewBroker creates an empty Broker
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		logger: logger,
		subs:   make(map[string]map[*subscription]struct{}),
	}
}

// Publish never blocks: a subscriber with a full buffer misses the event
func (b *Broker) Publish(ctx context.Context, event domain.DocumentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[event.TemplateID] {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				"template_id", event.TemplateID, "document_id", event.DocumentID)
		}
	}
	return nil
}

// Subscribe registers a subscriber for one template
func (b *Broker) Subscribe(ctx context.Context, templateID string) (driven.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{
		broker:     b,
		templateID: templateID,
		ch:         make(chan domain.DocumentEvent, subscriberBuffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[templateID] == nil {
		b.subs[templateID] = make(map[*subscription]struct{})
	}
	b.subs[templateID][sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of live subscriptions for a template
func (b *Broker) Subscribers(templateID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[templateID])
}

func (b *Broker) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.subs[sub.templateID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.templateID)
	}
	close(sub.ch)
}

type subscription struct {
	broker     *Broker
	templateID string
	ch         chan domain.DocumentEvent
}

func (s *subscription) Events() <-chan domain.DocumentEvent {
	return s.ch
}

func (s *subscription) Close() error {
	s.broker.remove(s)
	return nil
}
