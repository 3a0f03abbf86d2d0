package store

import "database/sql"

// Checkpoint tracks how far server-side history replay has been consumed for
// one (account, counterpart) pair, so reconnects resume instead of refetching.
type Checkpoint struct {
	AccountID    int64
	AddressID    int64
	LastStanzaID string
	LastTime     int64
}

// SetCheckpoint records the newest replayed stanza for the pair.
func (db *DB) SetCheckpoint(cp *Checkpoint) error {
	_, err := db.Exec(`
		INSERT INTO catchup (account_id, jid_id, last_stanza_id, last_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, jid_id) DO UPDATE SET
			last_stanza_id = excluded.last_stanza_id,
			last_time = excluded.last_time`,
		cp.AccountID, cp.AddressID, cp.LastStanzaID, cp.LastTime)
	return err
}

// GetCheckpoint returns the replay checkpoint for the pair, or nil.
func (db *DB) GetCheckpoint(accountID, addressID int64) (*Checkpoint, error) {
	var cp Checkpoint
	err := db.QueryRow(`
		SELECT account_id, jid_id, last_stanza_id, last_time
		FROM catchup WHERE account_id = ? AND jid_id = ?`, accountID, addressID).
		Scan(&cp.AccountID, &cp.AddressID, &cp.LastStanzaID, &cp.LastTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}
