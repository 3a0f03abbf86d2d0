package store

// Maintain prunes interned addresses nothing references anymore. Addresses
// stay for as long as any account, roster entry, conversation, message, file
// transfer, call or checkpoint points at them. Best-effort: callers log and
// swallow failures, startup and ingestion never depend on it.
func (db *DB) Maintain() (int64, error) {
	res, err := db.Exec(`
		DELETE FROM jid WHERE id NOT IN (
			SELECT address_id FROM account
			UNION SELECT jid_id FROM roster
			UNION SELECT jid_id FROM conversation
			UNION SELECT counterpart_id FROM message
			UNION SELECT counterpart_id FROM file_transfer
			UNION SELECT counterpart_id FROM call
			UNION SELECT jid_id FROM catchup
		)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
