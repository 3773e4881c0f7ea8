package redis

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

func receive(t *testing.T, ch <-chan domain.DocumentEvent) domain.DocumentEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.DocumentEvent{}
}

func TestEventStream_DeliversToTemplateSubscribers(t *testing.T) {
	client, _ := setupTestRedis(t)
	stream := NewEventStream(client, nil)
	ctx := context.Background()

	mine, err := stream.Subscribe(ctx, "tmpl-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer mine.Close()

	other, err := stream.Subscribe(ctx, "tmpl-2")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer other.Close()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = stream.Publish(ctx, domain.DocumentEvent{
		Kind:       domain.EventDocumentCreated,
		DocumentID: "doc-1",
		TemplateID: "tmpl-1",
		HandoffID:  "h-1",
		CreatedAt:  created,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ev := receive(t, mine.Events())
	if ev.DocumentID != "doc-1" || ev.HandoffID != "h-1" || !ev.CreatedAt.Equal(created) {
		t.Errorf("unexpected event %+v", ev)
	}

	select {
	case ev := <-other.Events():
		t.Errorf("other template received %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventStream_PublishWithoutSubscribers(t *testing.T) {
	client, _ := setupTestRedis(t)
	stream := NewEventStream(client, nil)

	if err := stream.Publish(context.Background(), domain.DocumentEvent{DocumentID: "doc-1", TemplateID: "tmpl-1"}); err != nil {
		t.Errorf("publishing with no listeners should succeed: %v", err)
	}
}

func TestEventStream_CloseEndsChannel(t *testing.T) {
	client, _ := setupTestRedis(t)
	stream := NewEventStream(client, nil)

	sub, err := stream.Subscribe(context.Background(), "tmpl-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after Close")
	}
}
