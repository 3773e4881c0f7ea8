package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Ensure MockEventStream implements EventStream
var _ driven.EventStream = (*MockEventStream)(nil)

// MockEventStream is an in-memory EventStream for testing.
// Published events are recorded and fanned out to live subscribers.
type MockEventStream struct {
	mu        sync.Mutex
	published []domain.DocumentEvent
	subs      map[*mockSubscription]struct{}

	PublishFn   func(event domain.DocumentEvent) error
	SubscribeFn func(templateID string) (driven.Subscription, error)

	// OnSubscribe runs after a subscription becomes live (test hook)
	OnSubscribe func(templateID string)
}

// NewMockEventStream creates a new MockEventStream
func NewMockEventStream() *MockEventStream {
	return &MockEventStream{
		subs: make(map[*mockSubscription]struct{}),
	}
}

func (m *MockEventStream) Publish(ctx context.Context, event domain.DocumentEvent) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	for sub := range m.subs {
		if sub.templateID != event.TemplateID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventStream) Subscribe(ctx context.Context, templateID string) (driven.Subscription, error) {
	if m.SubscribeFn != nil {
		return m.SubscribeFn(templateID)
	}
	sub := &mockSubscription{
		stream:     m,
		templateID: templateID,
		ch:         make(chan domain.DocumentEvent, 16),
	}
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	if m.OnSubscribe != nil {
		m.OnSubscribe(templateID)
	}
	return sub, nil
}

// Published returns the events published so far (for test assertions).
func (m *MockEventStream) Published() []domain.DocumentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DocumentEvent(nil), m.published...)
}

// ActiveSubscriptions returns how many subscriptions are still open.
func (m *MockEventStream) ActiveSubscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

type mockSubscription struct {
	stream     *MockEventStream
	templateID string
	ch         chan domain.DocumentEvent
	once       sync.Once
}

func (s *mockSubscription) Events() <-chan domain.DocumentEvent {
	return s.ch
}

func (s *mockSubscription) Close() error {
	s.once.Do(func() {
		s.stream.mu.Lock()
		delete(s.stream.subs, s)
		s.stream.mu.Unlock()
		close(s.ch)
	})
	return nil
}
