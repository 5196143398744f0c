package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a key/value PersistenceStore backed by a single table,
// following the direct pgx.Pool repository pattern: no ORM, hand-written
// SQL, context-scoped calls.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the backing table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS extraction_store (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := s.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("persistence: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	const query = `SELECT value FROM extraction_store WHERE key = $1`
	var raw []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&raw)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return false, nil
		}
		return false, fmt.Errorf("persistence: get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("persistence: decode %q: %w", key, err)
	}
	return true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("persistence: encode %q: %w", key, err)
	}
	const query = `
		INSERT INTO extraction_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, key, raw); err != nil {
		return fmt.Errorf("persistence: set %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM extraction_store WHERE key = $1`
	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("persistence: delete %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	const query = `SELECT key FROM extraction_store WHERE key LIKE $1`
	rows, err := s.pool.Query(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("persistence: keys %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("persistence: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) Has(ctx context.Context, key string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM extraction_store WHERE key = $1)`
	var ok bool
	if err := s.pool.QueryRow(ctx, query, key).Scan(&ok); err != nil {
		return false, fmt.Errorf("persistence: has %q: %w", key, err)
	}
	return ok, nil
}

func (s *PostgresStore) Count(ctx context.Context, prefix string) (int, error) {
	const query = `SELECT COUNT(*) FROM extraction_store WHERE key LIKE $1`
	var n int
	if err := s.pool.QueryRow(ctx, query, escapeLike(prefix)+"%").Scan(&n); err != nil {
		return 0, fmt.Errorf("persistence: count %q: %w", prefix, err)
	}
	return n, nil
}

func (s *PostgresStore) Clear(ctx context.Context, prefix string) error {
	const query = `DELETE FROM extraction_store WHERE key LIKE $1`
	if _, err := s.pool.Exec(ctx, query, escapeLike(prefix)+"%"); err != nil {
		return fmt.Errorf("persistence: clear %q: %w", prefix, err)
	}
	return nil
}

// Transaction begins a Postgres transaction, runs fn, and commits when fn
// returns nil or rolls back when it returns an error. Store methods called
// from fn use the connection pool, not the transaction, so their writes
// take effect at once and are not rolled back when fn fails.
func (s *PostgresStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persistence: begin transaction: %w", err)
	}
	if err := fn(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("persistence: commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer("%", "\\%", "_", "\\_")
	return r.Replace(s)
}
