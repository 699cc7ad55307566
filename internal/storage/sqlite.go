package storage

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// SQLiteAdapter persists keys in a single-file SQLite database. It is
// the durable backend for native clients.
type SQLiteAdapter struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLiteAdapter opens (or creates) the database at path and ensures
// the kv table exists.
func NewSQLiteAdapter(path string, log *zap.Logger) (*SQLiteAdapter, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv schema: %w", err)
	}

	return &SQLiteAdapter{db: db, log: log}, nil
}

func (a *SQLiteAdapter) Get(key string) (string, bool) {
	var value string
	err := a.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			a.log.Warn("sqlite get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

func (a *SQLiteAdapter) Set(key, value string) {
	_, err := a.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		a.log.Warn("sqlite set failed", zap.String("key", key), zap.Error(err))
	}
}

func (a *SQLiteAdapter) Remove(key string) {
	if _, err := a.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		a.log.Warn("sqlite remove failed", zap.String("key", key), zap.Error(err))
	}
}

func (a *SQLiteAdapter) Clear() {
	if _, err := a.db.Exec(`DELETE FROM kv`); err != nil {
		a.log.Warn("sqlite clear failed", zap.Error(err))
	}
}

// Close releases the underlying database handle.
func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}
