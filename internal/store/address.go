package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// ResolveAddress interns a bare address and returns its stable id. Addresses
// are compared case-insensitively; repeat calls for the same address return
// the same id.
func (db *DB) ResolveAddress(bareJID string) (int64, error) {
	normalized := strings.ToLower(strings.TrimSpace(bareJID))
	if normalized == "" {
		return 0, fmt.Errorf("resolve address: empty bare jid")
	}

	var id int64
	err := db.QueryRow(`SELECT id FROM jid WHERE bare_jid = ?`, normalized).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("resolve address %q: %w", normalized, err)
	}

	res, err := db.Exec(`INSERT INTO jid (bare_jid) VALUES (?)`, normalized)
	if err != nil {
		// Lost a race with a concurrent insert; read back.
		if err2 := db.QueryRow(`SELECT id FROM jid WHERE bare_jid = ?`, normalized).Scan(&id); err2 == nil {
			return id, nil
		}
		return 0, fmt.Errorf("intern address %q: %w", normalized, err)
	}
	return res.LastInsertId()
}

// LookupAddress returns the id of an already interned address, or 0 when the
// address was never seen. Read-only, never interns.
func (db *DB) LookupAddress(bareJID string) (int64, error) {
	normalized := strings.ToLower(strings.TrimSpace(bareJID))
	var id int64
	err := db.QueryRow(`SELECT id FROM jid WHERE bare_jid = ?`, normalized).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup address %q: %w", normalized, err)
	}
	return id, nil
}

// CreateAccount creates a local account for the given bare address. The
// address is interned as needed.
func (db *DB) CreateAccount(bareJID, resource string) (*Account, error) {
	addrID, err := db.ResolveAddress(bareJID)
	if err != nil {
		return nil, err
	}

	res, err := db.Exec(`INSERT INTO account (address_id, resource) VALUES (?, ?)`, addrID, resource)
	if err != nil {
		return nil, fmt.Errorf("create account %q: %w", bareJID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetAccount(id)
}

// GetAccount returns an account by id, or nil when it does not exist.
func (db *DB) GetAccount(id int64) (*Account, error) {
	var a Account
	err := db.QueryRow(`
		SELECT a.id, a.address_id, j.bare_jid, a.resource, a.enabled
		FROM account a
		JOIN jid j ON a.address_id = j.id
		WHERE a.id = ?`, id).
		Scan(&a.ID, &a.AddressID, &a.BareJID, &a.Resource, &a.Enabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAccounts returns all accounts.
func (db *DB) ListAccounts() ([]Account, error) {
	rows, err := db.Query(`
		SELECT a.id, a.address_id, j.bare_jid, a.resource, a.enabled
		FROM account a
		JOIN jid j ON a.address_id = j.id
		ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.AddressID, &a.BareJID, &a.Resource, &a.Enabled); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetAccountEnabled toggles whether an account connects at startup.
func (db *DB) SetAccountEnabled(id int64, enabled bool) error {
	_, err := db.Exec(`UPDATE account SET enabled = ? WHERE id = ?`, enabled, id)
	return err
}

// DeleteAccount removes an account and everything it owns: roster entries,
// conversations, timeline entries, messages, files, calls and settings.
// Hard delete, no tombstones.
func (db *DB) DeleteAccount(id int64) error {
	return db.inTx(func(tx *sql.Tx) error {
		// content_item has no account column; clear via owning conversations.
		if _, err := tx.Exec(`
			DELETE FROM content_item
			WHERE conversation_id IN (SELECT id FROM conversation WHERE account_id = ?)`, id); err != nil {
			return fmt.Errorf("delete timeline entries: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM account WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
}
