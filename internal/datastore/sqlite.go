package datastore

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Interface for SQLite. Used for local development
// and tests; foreign keys must be switched on per connection.
type SQLiteStore struct {
	DataStore
	cfg *Config
}

// Open sets up the SQLite database and migrates the schema. Database is the
// file path; ":memory:" gives an in-process throwaway store.
func (store *SQLiteStore) Open() error {
	path := store.cfg.Database
	if path == "" {
		path = "weather.db"
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{Logger: gormLogLevel(store.cfg.Debug)})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db)
}
