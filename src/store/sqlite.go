package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

var sqliteSchema = []string{
	`PRAGMA journal_mode = WAL`,
	`CREATE TABLE IF NOT EXISTS events (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		type        TEXT NOT NULL,
		status      TEXT NOT NULL,
		data        TEXT NOT NULL,
		captured_at TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS events_status_idx ON events (status)`,
}

// SQLiteStore is the local durable Store. It keeps the log in a single file
// so it survives restarts without any external service.
type SQLiteStore struct {
	*sqlLog
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" gives
// a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; also keeps a ":memory:" database on a single connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{sqlLog: &sqlLog{
		db:      db,
		ph:      func(int) string { return "?" },
		noLimit: "-1",
	}}
	if err := s.migrate(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
