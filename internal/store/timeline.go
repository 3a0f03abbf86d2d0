package store

import (
	"database/sql"
	"fmt"
)

const messageColumns = `
	id, account_id, counterpart_id, counterpart_resource, direction, type, time, local_time,
	body, encryption, marked, message_id, origin_id, stanza_id, is_carbon,
	first_retry_attempt, last_retry_attempt, retry_count`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	var resource, messageID, originID, stanzaID sql.NullString
	var firstRetry, lastRetry sql.NullInt64
	err := row.Scan(&m.ID, &m.AccountID, &m.CounterpartID, &resource, &m.Direction, &m.Kind,
		&m.Time, &m.LocalTime, &m.Body, &m.Encrypted, &m.Marked,
		&messageID, &originID, &stanzaID, &m.Carbon, &firstRetry, &lastRetry, &m.RetryCount)
	if err != nil {
		return nil, err
	}
	m.CounterpartResource = resource.String
	m.MessageID = messageID.String
	m.OriginID = originID.String
	m.StanzaID = stanzaID.String
	m.FirstRetryAttempt = firstRetry.Int64
	m.LastRetryAttempt = lastRetry.Int64
	return &m, nil
}

// GetMessage returns a message by row id, or nil.
func (db *DB) GetMessage(id int64) (*Message, error) {
	m, err := scanMessage(db.QueryRow(`SELECT`+messageColumns+` FROM message WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// GetFileTransfer returns a file transfer by row id, or nil.
func (db *DB) GetFileTransfer(id int64) (*FileTransfer, error) {
	var ft FileTransfer
	var messageID, originID, stanzaID sql.NullString
	err := db.QueryRow(`
		SELECT id, account_id, counterpart_id, direction, time, local_time,
		       file_name, path, url, mime_type, size, state, encryption, provider, is_carbon,
		       message_id, origin_id, stanza_id
		FROM file_transfer WHERE id = ?`, id).
		Scan(&ft.ID, &ft.AccountID, &ft.CounterpartID, &ft.Direction, &ft.Time, &ft.LocalTime,
			&ft.FileName, &ft.Path, &ft.URL, &ft.MimeType, &ft.Size, &ft.State, &ft.Encrypted,
			&ft.Provider, &ft.Carbon, &messageID, &originID, &stanzaID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ft.MessageID = messageID.String
	ft.OriginID = originID.String
	ft.StanzaID = stanzaID.String
	return &ft, nil
}

// GetCall returns a call by row id, or nil.
func (db *DB) GetCall(id int64) (*Call, error) {
	var c Call
	var cpRes, ourRes sql.NullString
	var endTime sql.NullInt64
	err := db.QueryRow(`
		SELECT id, account_id, counterpart_id, counterpart_resource, our_resource,
		       direction, time, local_time, end_time, encryption, state, type
		FROM call WHERE id = ?`, id).
		Scan(&c.ID, &c.AccountID, &c.CounterpartID, &cpRes, &ourRes,
			&c.Direction, &c.Time, &c.LocalTime, &endTime, &c.Encrypted, &c.State, &c.Media)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CounterpartResource = cpRes.String
	c.OurResource = ourRes.String
	c.EndTime = endTime.Int64
	return &c, nil
}

// Timeline returns up to limit visible timeline items of a conversation with
// their typed records, newest first, using keyset pagination by entry id.
// beforeItem <= 0 starts from the newest entry.
func (db *DB) Timeline(conversationID, beforeItem int64, limit int) ([]TimelineItem, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, conversation_id, time, local_time, content_type, foreign_id, hide
		FROM content_item
		WHERE conversation_id = ? AND hide = 0`
	args := []any{conversationID}
	if beforeItem > 0 {
		q += ` AND id < ?`
		args = append(args, beforeItem)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Time, &e.LocalTime, &e.Kind, &e.ForeignID, &e.Hidden); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items := make([]TimelineItem, 0, len(entries))
	for _, e := range entries {
		item := TimelineItem{Entry: e}
		switch e.Kind {
		case KindMessage:
			if item.Message, err = db.GetMessage(e.ForeignID); err != nil {
				return nil, err
			}
		case KindFileTransfer:
			if item.FileTransfer, err = db.GetFileTransfer(e.ForeignID); err != nil {
				return nil, err
			}
		case KindCall:
			if item.Call, err = db.GetCall(e.ForeignID); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("timeline entry %d: unknown kind %d", e.ID, e.Kind)
		}
		items = append(items, item)
	}
	return items, nil
}

// SetEntryHidden hides or unhides a timeline entry. Hidden entries are
// excluded from the timeline and never count as unread.
func (db *DB) SetEntryHidden(itemID int64, hidden bool) error {
	_, err := db.Exec(`UPDATE content_item SET hide = ? WHERE id = ?`, hidden, itemID)
	return err
}

// unreadFrom is the one canonical definition of "unread": an inbound message
// or file transfer, not hidden, past the conversation's read marker. Every
// unread count in the store derives from this fragment.
const unreadFrom = `
	FROM conversation c
	JOIN jid j ON c.jid_id = j.id
	JOIN content_item ci ON ci.conversation_id = c.id
	LEFT JOIN message m ON ci.foreign_id = m.id AND ci.content_type = 0
	LEFT JOIN file_transfer ft ON ci.foreign_id = ft.id AND ci.content_type = 2
	WHERE ((ci.content_type = 0 AND m.direction = 0) OR (ci.content_type = 2 AND ft.direction = 0))
	  AND ci.id > c.read_up_to_item
	  AND ci.hide = 0`

// UnreadCount returns the unread count of one conversation.
func (db *DB) UnreadCount(conversationID int64) (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(ci.id)`+unreadFrom+` AND c.id = ?`, conversationID).Scan(&n)
	return n, err
}

// UnreadTotal returns the total unread count. accountID 0 means all accounts.
func (db *DB) UnreadTotal(accountID int64) (int64, error) {
	q := `SELECT COUNT(ci.id)` + unreadFrom
	args := []any{}
	if accountID != 0 {
		q += ` AND c.account_id = ?`
		args = append(args, accountID)
	}
	var n int64
	err := db.QueryRow(q, args...).Scan(&n)
	return n, err
}

// UnreadByConversation returns the per-conversation unread breakdown,
// omitting conversations with nothing unread. accountID 0 means all accounts.
func (db *DB) UnreadByConversation(accountID int64) ([]UnreadConversation, error) {
	q := `
		SELECT c.id, j.bare_jid, c.type, COUNT(ci.id) AS unread` + unreadFrom
	args := []any{}
	if accountID != 0 {
		q += ` AND c.account_id = ?`
		args = append(args, accountID)
	}
	q += `
		GROUP BY c.id, j.bare_jid, c.type
		HAVING unread > 0`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []UnreadConversation
	for rows.Next() {
		var u UnreadConversation
		if err := rows.Scan(&u.ConversationID, &u.BareJID, &u.Kind, &u.Unread); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GlobalStats computes the on-demand statistics view across all accounts.
func (db *DB) GlobalStats() (*Stats, error) {
	s, err := db.accountScopedStats(0)
	if err != nil {
		return nil, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM account`).Scan(&s.AccountsTotal); err != nil {
		return nil, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM account WHERE enabled = 1`).Scan(&s.AccountsEnabled); err != nil {
		return nil, err
	}
	return s, nil
}

// AccountStats computes message and call statistics for one account.
func (db *DB) AccountStats(accountID int64) (*Stats, error) {
	return db.accountScopedStats(accountID)
}

func (db *DB) accountScopedStats(accountID int64) (*Stats, error) {
	var s Stats
	where, args := "", []any{}
	if accountID != 0 {
		where = ` WHERE account_id = ?`
		args = []any{accountID}
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM message`+where, args...).Scan(&s.MessagesTotal); err != nil {
		return nil, err
	}
	unread, err := db.UnreadTotal(accountID)
	if err != nil {
		return nil, err
	}
	s.MessagesUnread = unread

	unsentQ := `SELECT COUNT(*) FROM message WHERE marked = 0 AND direction = 1`
	unsentArgs := []any{}
	if accountID != 0 {
		unsentQ += ` AND account_id = ?`
		unsentArgs = append(unsentArgs, accountID)
	}
	if err := db.QueryRow(unsentQ, unsentArgs...).Scan(&s.MessagesUnsent); err != nil {
		return nil, err
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM call`+where, args...).Scan(&s.CallsTotal); err != nil {
		return nil, err
	}
	for _, c := range []struct {
		dst  *int64
		cond string
	}{
		{&s.CallsInbound, `direction = 0`},
		{&s.CallsOutbound, `direction = 1`},
		{&s.CallsMissed, `state = 6`},
	} {
		q := `SELECT COUNT(*) FROM call WHERE ` + c.cond
		cargs := []any{}
		if accountID != 0 {
			q += ` AND account_id = ?`
			cargs = append(cargs, accountID)
		}
		if err := db.QueryRow(q, cargs...).Scan(c.dst); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
