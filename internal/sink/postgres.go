package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is an ObjectStore over a remote Postgres database, for
// deployments where run records must outlive the machine that produced
// them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
    key        TEXT PRIMARY KEY,
    data       BYTEA NOT NULL,
    written_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects to the database behind dsn and ensures the
// artifacts table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres sink requires a dsn")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres sink: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply sink schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Put upserts one object.
func (s *PostgresStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artifacts (key, data) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, written_at = now()`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("upsert artifact %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
