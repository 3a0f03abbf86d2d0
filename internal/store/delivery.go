package store

import "database/sql"

// Outbound delivery lifecycle: pending(0) → sent(1) → delivered(2) →
// displayed(7), with discarded(8) reachable from pending only. Every update
// here is guarded so a state can never regress. Acks from the protocol layer
// match by dedup identifier, not by local row id — the far side never knows
// our row ids.

// PendingMessages returns the retry queue of an account: outbound messages
// still pending, ordered by their original time.
func (db *DB) PendingMessages(accountID int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT`+messageColumns+`
		FROM message
		WHERE account_id = ? AND direction = 1 AND marked = 0
		ORDER BY time ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// AckDelivery records a server ack for an outbound message identified by any
// of its dedup identifiers. Only pending messages advance to sent.
// Returns the number of messages updated.
func (db *DB) AckDelivery(accountID int64, identifier string) (int64, error) {
	res, err := db.Exec(`
		UPDATE message SET marked = 1
		WHERE account_id = ? AND direction = 1 AND marked = 0
		  AND (origin_id = ? OR stanza_id = ? OR message_id = ?)`,
		accountID, identifier, identifier, identifier)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkDelivered records a delivery receipt from the counterpart. Upgrades
// pending or sent to delivered, never downgrades displayed.
func (db *DB) MarkDelivered(accountID, counterpartID int64, identifier string) (int64, error) {
	res, err := db.Exec(`
		UPDATE message SET marked = 2
		WHERE account_id = ? AND counterpart_id = ? AND direction = 1 AND marked <= 1
		  AND (origin_id = ? OR stanza_id = ? OR message_id = ?)`,
		accountID, counterpartID, identifier, identifier, identifier)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkDisplayedUpTo records a displayed marker. Markers are cumulative: every
// outbound message of that counterpart up to and including the referenced one
// becomes displayed, unless it already is. An identifier matching no stored
// message is a no-op, like the other receipt updates.
func (db *DB) MarkDisplayedUpTo(accountID, counterpartID int64, identifier string) (int64, error) {
	var markedTime int64
	err := db.QueryRow(`
		SELECT time FROM message
		WHERE account_id = ? AND counterpart_id = ?
		  AND (origin_id = ? OR stanza_id = ? OR message_id = ?)`,
		accountID, counterpartID, identifier, identifier, identifier).Scan(&markedTime)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	res, err := db.Exec(`
		UPDATE message SET marked = 7
		WHERE account_id = ? AND counterpart_id = ? AND direction = 1
		  AND time <= ? AND marked < 7`,
		accountID, counterpartID, markedTime)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkSent advances a single pending message to sent by row id. Used when a
// retry finds the message already recorded server-side.
func (db *DB) MarkSent(messageRowID int64) error {
	_, err := db.Exec(`UPDATE message SET marked = 1 WHERE id = ? AND marked = 0`, messageRowID)
	return err
}

// MarkDiscarded terminates retrying for a pending message. Discarded is only
// reachable from pending.
func (db *DB) MarkDiscarded(messageRowID int64) error {
	_, err := db.Exec(`UPDATE message SET marked = 8 WHERE id = ? AND marked = 0`, messageRowID)
	return err
}

// InitRetryTracking stamps the first retry attempt. A no-op when tracking is
// already initialized.
func (db *DB) InitRetryTracking(messageRowID, now int64) error {
	_, err := db.Exec(`
		UPDATE message SET first_retry_attempt = ?, last_retry_attempt = ?
		WHERE id = ? AND first_retry_attempt IS NULL`, now, now, messageRowID)
	return err
}

// IncrementRetry bumps the retry counter and the last attempt timestamp.
func (db *DB) IncrementRetry(messageRowID, now int64) error {
	_, err := db.Exec(`
		UPDATE message SET retry_count = retry_count + 1, last_retry_attempt = ?
		WHERE id = ?`, now, messageRowID)
	return err
}

// UpdateOriginID replaces a message's origin id after a resend assigned a
// fresh one.
func (db *DB) UpdateOriginID(messageRowID int64, originID string) error {
	_, err := db.Exec(`UPDATE message SET origin_id = ? WHERE id = ?`, originID, messageRowID)
	return err
}
