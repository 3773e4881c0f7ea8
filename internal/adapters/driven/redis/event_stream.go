package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EventStream = (*EventStream)(nil)

const eventChannelPrefix = "signdesk:events:"

const subscriberBuffer = 16

// EventStream implements driven.EventStream with Redis Pub/Sub.
// Each template has its own channel so filtering happens server-side.
type EventStream struct {
	client *redis.Client
	logger *slog.Logger
}

// NewEventStream creates a Redis-backed EventStream
func NewEventStream(client *redis.Client, logger *slog.Logger) *EventStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStream{client: client, logger: logger}
}

func eventChannel(templateID string) string {
	return eventChannelPrefix + templateID
}

// Publish emits the event on the template's channel
func (s *EventStream) Publish(ctx context.Context, event domain.DocumentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, eventChannel(event.TemplateID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe waits for the server to confirm the subscription before returning
func (s *EventStream) Subscribe(ctx context.Context, templateID string) (driven.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, eventChannel(templateID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &subscription{
		pubsub: pubsub,
		ch:     make(chan domain.DocumentEvent, subscriberBuffer),
		done:   make(chan struct{}),
	}
	go sub.pump(s.logger, pubsub.Channel())
	return sub, nil
}

type subscription struct {
	pubsub *redis.PubSub
	ch     chan domain.DocumentEvent
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) pump(logger *slog.Logger, messages <-chan *redis.Message) {
	defer close(s.ch)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event domain.DocumentEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn("dropping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case s.ch <- event:
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscription) Events() <-chan domain.DocumentEvent {
	return s.ch
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
