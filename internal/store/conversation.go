package store

import (
	"database/sql"
	"fmt"
)

const conversationColumns = `
	c.id, c.account_id, c.jid_id, j.bare_jid, c.type, c.active, c.encryption,
	c.read_up_to_item, c.send_typing, c.send_marker, c.notification`

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.AccountID, &c.AddressID, &c.BareJID, &c.Kind, &c.Active,
		&c.Encryption, &c.ReadUpToItem, &c.SendTyping, &c.SendMarker, &c.Notifications)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ResolveConversation gets or creates the conversation for
// (account, address, kind). New conversations start active, unencrypted,
// with nothing read (read_up_to_item = -1) and typing/markers/notifications on.
func (db *DB) ResolveConversation(accountID, addressID int64, kind ConversationKind) (*Conversation, error) {
	c, err := db.getConversation(accountID, addressID, kind)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}

	_, err = db.Exec(`
		INSERT INTO conversation (account_id, jid_id, type, active, encryption, read_up_to_item, send_typing, send_marker, notification)
		VALUES (?, ?, ?, 1, 0, -1, 1, 1, 1)`,
		accountID, addressID, kind)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return db.getConversation(accountID, addressID, kind)
}

func (db *DB) getConversation(accountID, addressID int64, kind ConversationKind) (*Conversation, error) {
	c, err := scanConversation(db.QueryRow(`
		SELECT`+conversationColumns+`
		FROM conversation c
		JOIN jid j ON c.jid_id = j.id
		WHERE c.account_id = ? AND c.jid_id = ? AND c.type = ?`,
		accountID, addressID, kind))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetConversation returns a conversation by id, or nil when it does not exist.
func (db *DB) GetConversation(id int64) (*Conversation, error) {
	c, err := scanConversation(db.QueryRow(`
		SELECT`+conversationColumns+`
		FROM conversation c
		JOIN jid j ON c.jid_id = j.id
		WHERE c.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListConversations returns the active conversations of an account, most
// recent timeline activity first.
func (db *DB) ListConversations(accountID int64) ([]Conversation, error) {
	rows, err := db.Query(`
		SELECT`+conversationColumns+`
		FROM conversation c
		JOIN jid j ON c.jid_id = j.id
		WHERE c.account_id = ? AND c.active = 1
		ORDER BY (SELECT MAX(ci.id) FROM content_item ci WHERE ci.conversation_id = c.id) DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// AdvanceReadMarker moves the conversation read marker to the given timeline
// entry. The marker only moves forward; a backward move is a no-op.
func (db *DB) AdvanceReadMarker(conversationID, itemID int64) error {
	_, err := db.Exec(`
		UPDATE conversation
		SET read_up_to_item = ?
		WHERE id = ? AND read_up_to_item < ?`,
		itemID, conversationID, itemID)
	return err
}

// SetConversationActive shows or hides a conversation without touching its
// history.
func (db *DB) SetConversationActive(id int64, active bool) error {
	_, err := db.Exec(`UPDATE conversation SET active = ? WHERE id = ?`, active, id)
	return err
}

// SetConversationEncryption sets the conversation's encryption default.
func (db *DB) SetConversationEncryption(id int64, on bool) error {
	_, err := db.Exec(`UPDATE conversation SET encryption = ? WHERE id = ?`, on, id)
	return err
}

// SetConversationFlags updates the typing/marker/notification toggles.
func (db *DB) SetConversationFlags(id int64, sendTyping, sendMarker, notifications bool) error {
	_, err := db.Exec(`
		UPDATE conversation SET send_typing = ?, send_marker = ?, notification = ?
		WHERE id = ?`, sendTyping, sendMarker, notifications, id)
	return err
}

// ClearHistory hard-deletes all timeline entries and typed records of a
// conversation and resets the read marker. The conversation row survives.
func (db *DB) ClearHistory(conversationID int64) error {
	return db.inTx(func(tx *sql.Tx) error {
		if err := clearHistoryTx(tx, conversationID); err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE conversation SET read_up_to_item = -1 WHERE id = ?`, conversationID); err != nil {
			return fmt.Errorf("reset read marker: %w", err)
		}
		return nil
	})
}

func clearHistoryTx(tx *sql.Tx, conversationID int64) error {
	if _, err := tx.Exec(`
		DELETE FROM message WHERE id IN (
			SELECT foreign_id FROM content_item WHERE conversation_id = ? AND content_type = 0)`,
		conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM file_transfer WHERE id IN (
			SELECT foreign_id FROM content_item WHERE conversation_id = ? AND content_type = 2)`,
		conversationID); err != nil {
		return fmt.Errorf("delete file transfers: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM call WHERE id IN (
			SELECT foreign_id FROM content_item WHERE conversation_id = ? AND content_type = 3)`,
		conversationID); err != nil {
		return fmt.Errorf("delete calls: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM content_item WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("delete timeline entries: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and its full history in one
// transaction; no partial state survives a crash mid-delete. Its settings go
// with it via the conversation_settings cascade.
func (db *DB) DeleteConversation(conversationID int64) error {
	return db.inTx(func(tx *sql.Tx) error {
		if err := clearHistoryTx(tx, conversationID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM conversation WHERE id = ?`, conversationID); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	})
}
