package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("store.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindStoreMessage, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindStoreMessage {
			t.Errorf("got kind %q, want %q", evt.Kind, KindStoreMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("proto.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindStoreDelivery})
	b.Publish(Event{Kind: KindProtoMessage})

	select {
	case evt := <-ch:
		if evt.Kind != KindProtoMessage {
			t.Errorf("got kind %q, want %q", evt.Kind, KindProtoMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The store event must not have been delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("proto.", 10)
	unsub()

	b.Publish(Event{Kind: KindProtoMessage})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("retry.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: KindRetrySent})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: KindRetryFailed})

	evt := <-ch
	if evt.Kind != KindRetrySent {
		t.Errorf("got %q, want %q", evt.Kind, KindRetrySent)
	}
}
