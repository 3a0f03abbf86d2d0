package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fixture is the common test topology: one account, one counterpart, one
// direct conversation between them.
type fixture struct {
	account *Account
	peerID  int64
	conv    *Conversation
}

func newFixture(t *testing.T, db *DB) *fixture {
	t.Helper()
	acc, err := db.CreateAccount("alice@example.org", "desktop")
	if err != nil {
		t.Fatal(err)
	}
	peerID, err := db.ResolveAddress("bob@example.org")
	if err != nil {
		t.Fatal(err)
	}
	conv, err := db.ResolveConversation(acc.ID, peerID, ConversationDirect)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{account: acc, peerID: peerID, conv: conv}
}

func (f *fixture) inbound(body, stanzaID string, ts int64) *Message {
	return &Message{
		AccountID:     f.account.ID,
		CounterpartID: f.peerID,
		Direction:     Inbound,
		Kind:          ConversationDirect,
		Time:          ts,
		LocalTime:     ts,
		Body:          body,
		StanzaID:      stanzaID,
	}
}

func (f *fixture) outbound(body, originID string, ts int64) *Message {
	return &Message{
		AccountID:     f.account.ID,
		CounterpartID: f.peerID,
		Direction:     Outbound,
		Kind:          ConversationDirect,
		Time:          ts,
		LocalTime:     ts,
		Body:          body,
		OriginID:      originID,
		Marked:        DeliveryPending,
	}
}

func mustIngest(t *testing.T, db *DB, convID int64, m *Message) IngestResult {
	t.Helper()
	res, err := db.IngestMessage(convID, m, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Duplicate {
		t.Fatalf("unexpected duplicate for message %q", m.Body)
	}
	return res
}

func TestMigrateFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran the full chain; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != SchemaVersion {
		t.Errorf("version = %d, want %d", result.Version, SchemaVersion)
	}
	if result.Dirty {
		t.Error("fresh migration left the schema dirty")
	}
}

// TestMigrateStepwise verifies an old database upgrades through the
// remaining migrations to the same schema a fresh database gets.
func TestMigrateStepwise(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	result, err := db.MigrateTo(8)
	if err != nil {
		t.Fatal(err)
	}
	if result.Version != 8 {
		t.Fatalf("partial migrate version = %d, want 8", result.Version)
	}

	result, err = db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed {
		t.Error("upgrade from v8 should report Changed=true")
	}
	if result.Version != SchemaVersion {
		t.Errorf("version = %d, want %d", result.Version, SchemaVersion)
	}

	// The upgraded schema must support everything a fresh one does.
	f := newFixture(t, db)
	res := mustIngest(t, db, f.conv.ID, f.inbound("hello", "s1", 1000))
	if res.RecordID == 0 || res.ItemID == 0 {
		t.Errorf("ingest on upgraded schema returned ids %d/%d", res.RecordID, res.ItemID)
	}
	if cp, err := db.GetCheckpoint(f.account.ID, f.peerID); err != nil || cp != nil {
		t.Errorf("checkpoint on upgraded schema: cp=%v err=%v", cp, err)
	}
}

func TestMigrateSchemaHasRequiredColumns(t *testing.T) {
	db := testDB(t)
	f := newFixture(t, db)

	requiredOps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"message with dedup triad", "INSERT INTO message (account_id, counterpart_id, direction, type, time, local_time, body, marked, message_id, origin_id, stanza_id, is_carbon) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", []any{f.account.ID, f.peerID, 0, 0, 1, 1, "x", 0, "m1", "o1", "s1", false}},
		{"message retry columns", "UPDATE message SET first_retry_attempt = 1, last_retry_attempt = 2, retry_count = 3 WHERE message_id = 'm1'", nil},
		{"file transfer", "INSERT INTO file_transfer (account_id, counterpart_id, direction, time, local_time, file_name, path, url, mime_type, size, state, encryption, provider, is_carbon, stanza_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", []any{f.account.ID, f.peerID, 0, 1, 1, "a.png", "", "", "image/png", 10, 0, false, 0, false, "s2"}},
		{"call with resources", "INSERT INTO call (account_id, counterpart_id, counterpart_resource, our_resource, direction, time, local_time, encryption, state, type) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", []any{f.account.ID, f.peerID, "phone", "desktop", 0, 1, 1, false, 0, 0}},
		{"reply", "INSERT INTO reply (message_id, quoted_message_id, quoted_stanza_id, quoted_sender) VALUES (?, NULL, ?, ?)", []any{1, "s0", "bob@example.org"}},
		{"conversation flags", "UPDATE conversation SET read_up_to_item = 5, send_typing = 0, send_marker = 0, notification = 0 WHERE id = ?", []any{f.conv.ID}},
		{"roster pending flags", "INSERT INTO roster (account_id, jid_id, name, subscribed_to, subscribed_from, pending_out, pending_in, blocked) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", []any{f.account.ID, f.peerID, "Bob", true, true, false, false, false}},
		{"conversation settings", "INSERT INTO conversation_settings (conversation_id, key, value) VALUES (?, ?, ?)", []any{f.conv.ID, "k", "v"}},
		{"catchup checkpoint", "INSERT INTO catchup (account_id, jid_id, last_stanza_id, last_time) VALUES (?, ?, ?, ?)", []any{f.account.ID, f.peerID, "s9", 99}},
	}

	for _, op := range requiredOps {
		t.Run(op.desc, func(t *testing.T) {
			if _, err := db.Exec(op.query, op.args...); err != nil {
				t.Fatalf("%s failed: %v", op.desc, err)
			}
		})
	}
}
