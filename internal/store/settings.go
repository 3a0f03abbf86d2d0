package store

import "database/sql"

// Settings are three independent string-valued key→value scopes: global,
// per-account and per-conversation. Last write wins, values are opaque to the
// store, absence yields the caller's default.

// GetSetting returns a global setting or def when unset.
func (db *DB) GetSetting(key, def string) (string, error) {
	return db.settingValue(`SELECT value FROM settings WHERE key = ?`, def, key)
}

// SetSetting stores a global setting.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetAccountSetting returns an account-scoped setting or def when unset.
func (db *DB) GetAccountSetting(accountID int64, key, def string) (string, error) {
	return db.settingValue(`SELECT value FROM account_settings WHERE account_id = ? AND key = ?`, def, accountID, key)
}

// SetAccountSetting stores an account-scoped setting.
func (db *DB) SetAccountSetting(accountID int64, key, value string) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO account_settings (account_id, key, value)
		VALUES (?, ?, ?)`, accountID, key, value)
	return err
}

// GetConversationSetting returns a conversation-scoped setting or def when unset.
func (db *DB) GetConversationSetting(conversationID int64, key, def string) (string, error) {
	return db.settingValue(`SELECT value FROM conversation_settings WHERE conversation_id = ? AND key = ?`, def, conversationID, key)
}

// SetConversationSetting stores a conversation-scoped setting.
func (db *DB) SetConversationSetting(conversationID int64, key, value string) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO conversation_settings (conversation_id, key, value)
		VALUES (?, ?, ?)`, conversationID, key, value)
	return err
}

// DeleteConversationSetting reverts a conversation-scoped setting to default.
func (db *DB) DeleteConversationSetting(conversationID int64, key string) error {
	_, err := db.Exec(`DELETE FROM conversation_settings WHERE conversation_id = ? AND key = ?`, conversationID, key)
	return err
}

func (db *DB) settingValue(query, def string, args ...any) (string, error) {
	var value string
	err := db.QueryRow(query, args...).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
