package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("live.", 10)
	defer unsub()

	if n := b.Publish(NewEvent(KindPresence, []string{"a"})); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}

	select {
	case evt := <-ch:
		if evt.Kind != KindPresence {
			t.Errorf("got kind %q, want %s", evt.Kind, KindPresence)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConnectionStatus})
	b.Publish(Event{Kind: KindChatState})

	select {
	case evt := <-ch:
		if evt.Kind != KindChatState {
			t.Errorf("got kind %q, want %s", evt.Kind, KindChatState)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestNotificationPrefixCoversReadEvent pins the prefix relationship the
// notification stream relies on: one subscription sees both notification kinds.
func TestNotificationPrefixCoversReadEvent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(KindNotification, 10)
	defer unsub()

	b.Publish(Event{Kind: KindNotification})
	b.Publish(Event{Kind: KindNotificationsRead})
	b.Publish(Event{Kind: KindMessage})

	if got := len(ch); got != 2 {
		t.Errorf("buffered = %d, want 2", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("live.", 10)
	unsub()
	unsub()

	if n := b.Publish(Event{Kind: KindMessage}); n != 0 {
		t.Errorf("delivered = %d after unsubscribe, want 0", n)
	}
	if b.Subscribers() != 0 {
		t.Errorf("subscribers = %d, want 0", b.Subscribers())
	}

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Kind: "test.one"})
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if b.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", b.Dropped())
	}
}

func TestNamespace(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{KindChatState, "chat."},
		{KindConnectionStatus, "connection."},
		{"bare", "bare"},
	}
	for _, tt := range tests {
		if got := (Event{Kind: tt.kind}).Namespace(); got != tt.want {
			t.Errorf("Namespace(%q) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
