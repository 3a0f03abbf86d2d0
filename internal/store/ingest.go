package store

import (
	"database/sql"
	"fmt"
)

// IngestResult is the explicit outcome of an ingestion call. Duplicate means
// the event was already recorded and nothing was written; it is not an error.
type IngestResult struct {
	Duplicate bool
	RecordID  int64
	ItemID    int64
}

// nullable maps the empty string to NULL so absent identifiers never
// participate in dedup lookups or indexes.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// dedupColumns is the identifier check order: server-assigned stanza id wins
// over the sender's origin id, which wins over the plain message id.
var dedupColumns = [...]string{"stanza_id", "origin_id", "message_id"}

// findDuplicate reports whether any of the given identifiers is already
// recorded for the account. Both the message and the file_transfer table are
// checked: an encrypted attachment can arrive live as a file and later be
// replayed from history as undecryptable text, and must still count as the
// same event.
func findDuplicate(tx *sql.Tx, accountID int64, stanzaID, originID, messageID string) (bool, error) {
	values := [...]string{stanzaID, originID, messageID}
	for i, col := range dedupColumns {
		if values[i] == "" {
			continue
		}
		var found bool
		q := fmt.Sprintf(`
			SELECT EXISTS (SELECT 1 FROM message WHERE account_id = ? AND %[1]s = ?)
			    OR EXISTS (SELECT 1 FROM file_transfer WHERE account_id = ? AND %[1]s = ?)`, col)
		if err := tx.QueryRow(q, accountID, values[i], accountID, values[i]).Scan(&found); err != nil {
			return false, fmt.Errorf("dedup check %s: %w", col, err)
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

// IngestMessage atomically records a message and its timeline entry.
// Identifier dedup runs first; on a hit nothing is written and the result is
// marked Duplicate. A message without any identifier is always inserted.
// reply may be nil; when set, the quoted message is resolved locally by any
// of its identifiers and the raw fallback is kept either way.
func (db *DB) IngestMessage(conversationID int64, m *Message, reply *Reply) (IngestResult, error) {
	var result IngestResult
	err := db.inTx(func(tx *sql.Tx) error {
		dup, err := findDuplicate(tx, m.AccountID, m.StanzaID, m.OriginID, m.MessageID)
		if err != nil {
			return err
		}
		if dup {
			result.Duplicate = true
			return nil
		}

		res, err := tx.Exec(`
			INSERT INTO message (
				account_id, counterpart_id, counterpart_resource, direction, type, time, local_time,
				body, encryption, marked, message_id, origin_id, stanza_id, is_carbon
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.AccountID, m.CounterpartID, nullable(m.CounterpartResource), m.Direction, m.Kind,
			m.Time, m.LocalTime, m.Body, m.Encrypted, m.Marked,
			nullable(m.MessageID), nullable(m.OriginID), nullable(m.StanzaID), m.Carbon)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		recordID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		if reply != nil {
			if err := insertReply(tx, m.AccountID, recordID, reply); err != nil {
				return err
			}
		}

		itemID, err := insertTimelineEntry(tx, conversationID, m.Time, m.LocalTime, KindMessage, recordID)
		if err != nil {
			return err
		}
		result.RecordID = recordID
		result.ItemID = itemID
		return nil
	})
	return result, err
}

// IngestFileTransfer atomically records a file transfer and its timeline
// entry, with the same cross-table dedup as IngestMessage.
func (db *DB) IngestFileTransfer(conversationID int64, ft *FileTransfer) (IngestResult, error) {
	var result IngestResult
	err := db.inTx(func(tx *sql.Tx) error {
		dup, err := findDuplicate(tx, ft.AccountID, ft.StanzaID, ft.OriginID, ft.MessageID)
		if err != nil {
			return err
		}
		if dup {
			result.Duplicate = true
			return nil
		}

		res, err := tx.Exec(`
			INSERT INTO file_transfer (
				account_id, counterpart_id, direction, time, local_time,
				file_name, path, url, mime_type, size, state, encryption, provider, is_carbon,
				message_id, origin_id, stanza_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ft.AccountID, ft.CounterpartID, ft.Direction, ft.Time, ft.LocalTime,
			ft.FileName, ft.Path, ft.URL, ft.MimeType, ft.Size, ft.State, ft.Encrypted,
			ft.Provider, ft.Carbon,
			nullable(ft.MessageID), nullable(ft.OriginID), nullable(ft.StanzaID))
		if err != nil {
			return fmt.Errorf("insert file transfer: %w", err)
		}
		recordID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		itemID, err := insertTimelineEntry(tx, conversationID, ft.Time, ft.LocalTime, KindFileTransfer, recordID)
		if err != nil {
			return err
		}
		result.RecordID = recordID
		result.ItemID = itemID
		return nil
	})
	return result, err
}

// IngestCall atomically records a call and its timeline entry. Calls are
// signaled live, never replayed, so there is no dedup stage.
func (db *DB) IngestCall(conversationID int64, c *Call) (IngestResult, error) {
	var result IngestResult
	err := db.inTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO call (
				account_id, counterpart_id, counterpart_resource, our_resource,
				direction, time, local_time, end_time, encryption, state, type
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.AccountID, c.CounterpartID, nullable(c.CounterpartResource), nullable(c.OurResource),
			c.Direction, c.Time, c.LocalTime, nullInt(c.EndTime), c.Encrypted, c.State, c.Media)
		if err != nil {
			return fmt.Errorf("insert call: %w", err)
		}
		recordID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		itemID, err := insertTimelineEntry(tx, conversationID, c.Time, c.LocalTime, KindCall, recordID)
		if err != nil {
			return err
		}
		result.RecordID = recordID
		result.ItemID = itemID
		return nil
	})
	return result, err
}

// UpdateCallState advances a call's state machine. endTime is recorded when
// non-zero.
func (db *DB) UpdateCallState(callID int64, state CallState, endTime int64) error {
	if endTime != 0 {
		_, err := db.Exec(`UPDATE call SET state = ?, end_time = ? WHERE id = ?`, state, endTime, callID)
		return err
	}
	_, err := db.Exec(`UPDATE call SET state = ? WHERE id = ?`, state, callID)
	return err
}

func insertTimelineEntry(tx *sql.Tx, conversationID, time, localTime int64, kind EntryKind, foreignID int64) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO content_item (conversation_id, time, local_time, content_type, foreign_id, hide)
		VALUES (?, ?, ?, ?, ?, 0)`,
		conversationID, time, localTime, kind, foreignID)
	if err != nil {
		return 0, fmt.Errorf("insert timeline entry: %w", err)
	}
	return res.LastInsertId()
}

func insertReply(tx *sql.Tx, accountID, messageRowID int64, reply *Reply) error {
	var quoted any
	var quotedID int64
	err := tx.QueryRow(`
		SELECT id FROM message
		WHERE account_id = ? AND (stanza_id = ? OR origin_id = ? OR message_id = ?)`,
		accountID, reply.QuotedStanzaID, reply.QuotedStanzaID, reply.QuotedStanzaID).
		Scan(&quotedID)
	switch {
	case err == nil:
		quoted = quotedID
	case err == sql.ErrNoRows:
		quoted = nil // quoted message not known locally, keep raw fallback
	default:
		return fmt.Errorf("resolve quoted message: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO reply (message_id, quoted_message_id, quoted_stanza_id, quoted_sender)
		VALUES (?, ?, ?, ?)`,
		messageRowID, quoted, reply.QuotedStanzaID, reply.QuotedSender); err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	return nil
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// GetReply returns the reply record attached to a message, or nil.
func (db *DB) GetReply(messageRowID int64) (*Reply, error) {
	var r Reply
	var quoted sql.NullInt64
	err := db.QueryRow(`
		SELECT message_id, quoted_message_id, quoted_stanza_id, quoted_sender
		FROM reply WHERE message_id = ?`, messageRowID).
		Scan(&r.MessageID, &quoted, &r.QuotedStanzaID, &r.QuotedSender)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.QuotedID = quoted.Int64
	return &r, nil
}
