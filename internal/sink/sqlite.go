package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is an ObjectStore over a local SQLite file: one artifacts
// table keyed by object key, upsert on conflict.
type SQLiteStore struct {
	conn *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
    key        TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    written_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// NewSQLiteStore opens (or creates) the artifact database at path. Empty
// path means ~/.repocrew/sink.db.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir := filepath.Join(home, ".repocrew")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
		path = filepath.Join(dir, "sink.db")
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sink database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply sink schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// Put upserts one object.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO artifacts (key, data) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, written_at = datetime('now')`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("upsert artifact %s: %w", key, err)
	}
	return nil
}

// Get reads one object back; used by the results CLI.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM artifacts WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artifact %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
