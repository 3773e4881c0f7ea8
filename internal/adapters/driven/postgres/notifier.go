package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// DocumentsChannel is the LISTEN/NOTIFY channel for signed document events.
const DocumentsChannel = "signdesk_documents"

const subscriberBuffer = 16

// Verify interface compliance
var _ driven.EventStream = (*Notifier)(nil)

// Notifier implements driven.EventStream over PostgreSQL LISTEN/NOTIFY.
// One listener connection is shared by every subscription in the process and
// events are filtered by template client-side.
type Notifier struct {
	db     *DB
	logger *slog.Logger

	mu       sync.Mutex
	listener *pq.Listener
	subs     map[*notifierSubscription]struct{}
	done     chan struct{}
}

// NewNotifier creates a Notifier. The listener connects on first Subscribe.
func NewNotifier(db *DB, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		db:     db,
		logger: logger,
		subs:   make(map[*notifierSubscription]struct{}),
	}
}

// Publish sends the event through pg_notify.
func (n *Notifier) Publish(ctx context.Context, event domain.DocumentEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	_, err = n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, DocumentsChannel, payload)
	return err
}

// Subscribe registers a subscriber for one template. The shared listener has
// issued LISTEN by the time this returns.
func (n *Notifier) Subscribe(ctx context.Context, templateID string) (driven.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listener == nil {
		if err := n.startLocked(); err != nil {
			return nil, err
		}
	}

	sub := &notifierSubscription{
		parent:     n,
		templateID: templateID,
		ch:         make(chan domain.DocumentEvent, subscriberBuffer),
	}
	n.subs[sub] = struct{}{}
	return sub, nil
}

// Close stops the listener and closes every open subscription.
func (n *Notifier) Close() error {
	n.mu.Lock()
	listener := n.listener
	n.listener = nil
	if n.done != nil {
		close(n.done)
		n.done = nil
	}
	for sub := range n.subs {
		sub.closeChannel()
		delete(n.subs, sub)
	}
	n.mu.Unlock()

	if listener == nil {
		return nil
	}
	return listener.Close()
}

func (n *Notifier) startLocked() error {
	listener := pq.NewListener(n.db.url, 10*time.Second, time.Minute, n.listenerEvent)
	if err := listener.Listen(DocumentsChannel); err != nil {
		_ = listener.Close()
		return fmt.Errorf("listen %s: %w", DocumentsChannel, err)
	}
	n.listener = listener
	n.done = make(chan struct{})
	go n.run(listener, n.done)
	return nil
}

func (n *Notifier) listenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected:
		n.logger.Warn("event listener disconnected", "error", err)
	case pq.ListenerEventReconnected:
		// notifications sent while disconnected are gone; awaiters backfill
		n.logger.Info("event listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		n.logger.Warn("event listener reconnect failed", "error", err)
	}
}

func (n *Notifier) run(listener *pq.Listener, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case note, ok := <-listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect
			if note == nil {
				continue
			}
			event, err := decodeEvent(note.Extra)
			if err != nil {
				n.logger.Warn("dropping malformed notification", "error", err)
				continue
			}
			n.dispatch(event)
		}
	}
}

func (n *Notifier) dispatch(event domain.DocumentEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for sub := range n.subs {
		if sub.templateID != event.TemplateID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			n.logger.Warn("subscriber buffer full, dropping event",
				"template_id", event.TemplateID, "document_id", event.DocumentID)
		}
	}
}

func (n *Notifier) remove(sub *notifierSubscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subs[sub]; ok {
		delete(n.subs, sub)
		sub.closeChannel()
	}
}

type notifierSubscription struct {
	parent     *Notifier
	templateID string
	ch         chan domain.DocumentEvent
	closeOnce  sync.Once
}

func (s *notifierSubscription) Events() <-chan domain.DocumentEvent {
	return s.ch
}

func (s *notifierSubscription) Close() error {
	s.parent.remove(s)
	return nil
}

func (s *notifierSubscription) closeChannel() {
	s.closeOnce.Do(func() { close(s.ch) })
}

func encodeEvent(event domain.DocumentEvent) (string, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(raw), nil
}

func decodeEvent(payload string) (domain.DocumentEvent, error) {
	var event domain.DocumentEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.TemplateID == "" || event.DocumentID == "" {
		return event, fmt.Errorf("event missing template or document id")
	}
	return event, nil
}
