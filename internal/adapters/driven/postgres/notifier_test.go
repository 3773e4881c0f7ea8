package postgres

import (
	"testing"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/domain"
)

func TestEventPayload_RoundTrip(t *testing.T) {
	in := domain.DocumentEvent{
		Kind:       domain.EventDocumentCreated,
		DocumentID: "doc-1",
		TemplateID: "tmpl-1",
		HandoffID:  "h-1",
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	payload, err := encodeEvent(in)
	if err != nil {
		t.Fatalf("encodeEvent: %v", err)
	}
	out, err := decodeEvent(payload)
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestDecodeEvent_Rejects(t *testing.T) {
	for _, payload := range []string{"", "not json", `{"document_id":"d"}`, `{"template_id":"t"}`} {
		if _, err := decodeEvent(payload); err == nil {
			t.Errorf("expected %q to be rejected", payload)
		}
	}
}

func TestNotifier_DispatchFiltersByTemplate(t *testing.T) {
	n := NewNotifier(nil, nil)

	mine := &notifierSubscription{parent: n, templateID: "tmpl-1", ch: make(chan domain.DocumentEvent, 1)}
	other := &notifierSubscription{parent: n, templateID: "tmpl-2", ch: make(chan domain.DocumentEvent, 1)}
	n.subs[mine] = struct{}{}
	n.subs[other] = struct{}{}

	n.dispatch(domain.DocumentEvent{DocumentID: "doc-1", TemplateID: "tmpl-1"})

	select {
	case ev := <-mine.Events():
		if ev.DocumentID != "doc-1" {
			t.Errorf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("matching subscriber did not receive the event")
	}
	select {
	case ev := <-other.Events():
		t.Fatalf("other template received %+v", ev)
	default:
	}

	// a full buffer drops instead of blocking
	n.dispatch(domain.DocumentEvent{DocumentID: "doc-2", TemplateID: "tmpl-1"})
	n.dispatch(domain.DocumentEvent{DocumentID: "doc-3", TemplateID: "tmpl-1"})

	_ = mine.Close()
	_ = mine.Close()
	if _, ok := n.subs[mine]; ok {
		t.Error("closed subscription still registered")
	}
	<-mine.Events()
	if _, open := <-mine.Events(); open {
		t.Error("channel should be closed after Close")
	}
}

func TestHashLockName(t *testing.T) {
	a := hashLockName("handoff:1")
	if a != hashLockName("handoff:1") {
		t.Error("hash should be stable")
	}
	if a == hashLockName("handoff:2") {
		t.Error("different names should not collide")
	}
}
