package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pvanzin/taverna/internal/bus"
	"github.com/pvanzin/taverna/internal/store"
)

func testEngine(t *testing.T) (*Engine, *store.DB, *bus.Bus, int64) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	acc, err := db.CreateAccount("alice@example.org", "desktop")
	if err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	return NewEngine(db, b, nil), db, b, acc.ID
}

func messageEvent(accountID int64, body, stanzaID string, ts int64) *MessageEvent {
	return &MessageEvent{
		AccountID:   accountID,
		Counterpart: "bob@example.org",
		Direction:   store.Inbound,
		Time:        ts,
		LocalTime:   ts,
		Body:        body,
		StanzaID:    stanzaID,
	}
}

func TestEngineIngestResolvesEntities(t *testing.T) {
	e, db, _, accID := testEngine(t)

	res, err := e.IngestMessage(messageEvent(accID, "hello", "s1", 1000))
	if err != nil {
		t.Fatal(err)
	}
	if res.Duplicate {
		t.Fatal("first ingest flagged duplicate")
	}

	// The conversation was created on the fly.
	convs, err := db.ListConversations(accID)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].BareJID != "bob@example.org" {
		t.Fatalf("conversations = %+v", convs)
	}

	// Same counterpart again reuses it.
	if _, err := e.IngestMessage(messageEvent(accID, "again", "s2", 2000)); err != nil {
		t.Fatal(err)
	}
	convs, _ = db.ListConversations(accID)
	if len(convs) != 1 {
		t.Errorf("conversations after second ingest = %d, want 1", len(convs))
	}
}

func TestEngineBusFlow(t *testing.T) {
	e, _, b, accID := testEngine(t)

	stored, unsub := b.Subscribe("store.", 16)
	defer unsub()

	e.Start(context.Background())
	defer e.Stop()

	publish := func(ev *MessageEvent) {
		b.Publish(bus.Event{Kind: bus.KindProtoMessage, Timestamp: time.Now(), Payload: ev})
	}
	waitFor := func(kind string) bus.Event {
		t.Helper()
		for {
			select {
			case evt := <-stored:
				if evt.Kind == kind {
					return evt
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("timeout waiting for %s", kind)
			}
		}
	}

	publish(messageEvent(accID, "hello", "s1", 1000))
	evt := waitFor(bus.KindStoreMessage)
	ids, ok := evt.Payload.(map[string]int64)
	if !ok || ids["record_id"] == 0 || ids["item_id"] == 0 {
		t.Errorf("store.message payload = %v", evt.Payload)
	}

	// A replay of the same stanza surfaces as store.duplicate, not a second
	// store.message.
	publish(messageEvent(accID, "hello again", "s1", 1000))
	waitFor(bus.KindStoreDuplicate)
}

func TestEngineReceiptLifecycle(t *testing.T) {
	e, db, _, accID := testEngine(t)

	out := messageEvent(accID, "ping", "", 1000)
	out.Direction = store.Outbound
	out.OriginID = "o1"
	out.Delivery = store.DeliveryPending
	res, err := e.IngestMessage(out)
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		kind ReceiptKind
		want store.DeliveryState
	}{
		{ReceiptServerAck, store.DeliverySent},
		{ReceiptDelivered, store.DeliveryDelivered},
		{ReceiptDisplayed, store.DeliveryDisplayed},
	}
	for _, step := range steps {
		if err := e.HandleReceipt(&ReceiptEvent{
			AccountID:   accID,
			Counterpart: "bob@example.org",
			Identifier:  "o1",
			Kind:        step.kind,
		}); err != nil {
			t.Fatal(err)
		}
		m, err := db.GetMessage(res.RecordID)
		if err != nil {
			t.Fatal(err)
		}
		if m.Marked != step.want {
			t.Errorf("after receipt %d: state = %d, want %d", step.kind, m.Marked, step.want)
		}
	}
}

func TestEngineReceiptForUnknownMessageIsNoOp(t *testing.T) {
	e, db, _, accID := testEngine(t)

	// The counterpart is known but the identifier matches nothing: the ack
	// may refer to a message sent before this store existed.
	res, err := e.IngestMessage(messageEvent(accID, "hello", "s1", 1000))
	if err != nil {
		t.Fatal(err)
	}

	for _, kind := range []ReceiptKind{ReceiptServerAck, ReceiptDelivered, ReceiptDisplayed} {
		if err := e.HandleReceipt(&ReceiptEvent{
			AccountID:   accID,
			Counterpart: "bob@example.org",
			Identifier:  "never-sent",
			Kind:        kind,
		}); err != nil {
			t.Errorf("receipt kind %d for unknown message = %v, want nil", kind, err)
		}
	}

	m, err := db.GetMessage(res.RecordID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Marked != store.DeliveryPending {
		t.Errorf("unrelated message state = %d, want untouched", m.Marked)
	}
}

func TestEngineReceiptFromUnknownCounterpartDoesNotIntern(t *testing.T) {
	e, db, _, accID := testEngine(t)

	for _, kind := range []ReceiptKind{ReceiptDelivered, ReceiptDisplayed} {
		if err := e.HandleReceipt(&ReceiptEvent{
			AccountID:   accID,
			Counterpart: "stranger@example.org",
			Identifier:  "o1",
			Kind:        kind,
		}); err != nil {
			t.Errorf("receipt kind %d from unknown counterpart = %v, want nil", kind, err)
		}
	}

	id, err := db.LookupAddress("stranger@example.org")
	if err != nil {
		t.Fatal(err)
	}
	if id != 0 {
		t.Error("receipt interned an address for an unknown counterpart")
	}
}
