package store

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pvanzin/taverna/internal/store/migrations"
)

// SchemaVersion is the schema version this build of the store requires.
const SchemaVersion uint = 16

// MigrateResult describes what happened during migration.
type MigrateResult struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Migrate brings the database to SchemaVersion, applying each pending step in
// its own transaction. A fresh database gets the full chain. It fails without
// partial application when a migration artifact is missing, and fails when the
// recorded version does not equal the target afterwards.
func (db *DB) Migrate() (*MigrateResult, error) {
	return db.MigrateTo(SchemaVersion)
}

// MigrateTo migrates up to the given version. Only used directly by tests;
// normal startup goes through Migrate.
func (db *DB) MigrateTo(target uint) (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	err = m.Migrate(target)
	changed := true
	if err == migrate.ErrNoChange {
		changed = false
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("migrate to v%d: %w", target, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if version != target {
		return nil, fmt.Errorf("schema version mismatch: have v%d, want v%d", version, target)
	}
	return &MigrateResult{
		Version: version,
		Dirty:   dirty,
		Changed: changed,
	}, nil
}
