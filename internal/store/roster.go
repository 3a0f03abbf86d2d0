package store

import (
	"database/sql"
	"fmt"
)

// UpsertRosterEntry inserts or updates the roster entry for (account, address).
func (db *DB) UpsertRosterEntry(e *RosterEntry) error {
	if e.AddressID == 0 {
		id, err := db.ResolveAddress(e.BareJID)
		if err != nil {
			return err
		}
		e.AddressID = id
	}
	_, err := db.Exec(`
		INSERT INTO roster (account_id, jid_id, name, subscribed_to, subscribed_from, pending_out, pending_in, blocked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, jid_id) DO UPDATE SET
			name = excluded.name,
			subscribed_to = excluded.subscribed_to,
			subscribed_from = excluded.subscribed_from,
			pending_out = excluded.pending_out,
			pending_in = excluded.pending_in`,
		e.AccountID, e.AddressID, e.Name, e.SubscribedTo, e.SubscribedFrom, e.PendingOut, e.PendingIn, e.Blocked)
	if err != nil {
		return fmt.Errorf("upsert roster entry: %w", err)
	}
	return nil
}

// GetRosterEntry returns the roster entry for (account, address), or nil.
func (db *DB) GetRosterEntry(accountID, addressID int64) (*RosterEntry, error) {
	var e RosterEntry
	err := db.QueryRow(`
		SELECT r.account_id, r.jid_id, j.bare_jid, r.name,
		       r.subscribed_to, r.subscribed_from, r.pending_out, r.pending_in, r.blocked
		FROM roster r
		JOIN jid j ON r.jid_id = j.id
		WHERE r.account_id = ? AND r.jid_id = ?`, accountID, addressID).
		Scan(&e.AccountID, &e.AddressID, &e.BareJID, &e.Name,
			&e.SubscribedTo, &e.SubscribedFrom, &e.PendingOut, &e.PendingIn, &e.Blocked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListRoster returns all roster entries of an account ordered by display name.
func (db *DB) ListRoster(accountID int64) ([]RosterEntry, error) {
	rows, err := db.Query(`
		SELECT r.account_id, r.jid_id, j.bare_jid,
		       COALESCE(NULLIF(r.name, ''), j.bare_jid) AS display_name,
		       r.subscribed_to, r.subscribed_from, r.pending_out, r.pending_in, r.blocked
		FROM roster r
		JOIN jid j ON r.jid_id = j.id
		WHERE r.account_id = ?
		ORDER BY display_name COLLATE NOCASE`, accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.AccountID, &e.AddressID, &e.BareJID, &e.Name,
			&e.SubscribedTo, &e.SubscribedFrom, &e.PendingOut, &e.PendingIn, &e.Blocked); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetBlocked marks a contact as blocked or unblocked, creating the roster
// entry if the contact is not listed yet.
func (db *DB) SetBlocked(accountID, addressID int64, blocked bool) error {
	_, err := db.Exec(`
		INSERT INTO roster (account_id, jid_id, blocked)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id, jid_id) DO UPDATE SET blocked = excluded.blocked`,
		accountID, addressID, blocked)
	return err
}

// DeleteRosterEntry removes a contact along with its conversations and their
// history for that account.
func (db *DB) DeleteRosterEntry(accountID, addressID int64) error {
	return db.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM content_item
			WHERE conversation_id IN (SELECT id FROM conversation WHERE account_id = ? AND jid_id = ?)`,
			accountID, addressID); err != nil {
			return fmt.Errorf("delete timeline entries: %w", err)
		}
		if _, err := tx.Exec(`
			DELETE FROM message WHERE account_id = ? AND counterpart_id = ?`, accountID, addressID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.Exec(`
			DELETE FROM file_transfer WHERE account_id = ? AND counterpart_id = ?`, accountID, addressID); err != nil {
			return fmt.Errorf("delete file transfers: %w", err)
		}
		if _, err := tx.Exec(`
			DELETE FROM call WHERE account_id = ? AND counterpart_id = ?`, accountID, addressID); err != nil {
			return fmt.Errorf("delete calls: %w", err)
		}
		if _, err := tx.Exec(`
			DELETE FROM conversation WHERE account_id = ? AND jid_id = ?`, accountID, addressID); err != nil {
			return fmt.Errorf("delete conversations: %w", err)
		}
		if _, err := tx.Exec(`
			DELETE FROM roster WHERE account_id = ? AND jid_id = ?`, accountID, addressID); err != nil {
			return fmt.Errorf("delete roster entry: %w", err)
		}
		return nil
	})
}
