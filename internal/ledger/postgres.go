package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// advisoryLockKey serialises Update transactions across every daemon sharing
// the database. The value is arbitrary but must be identical on all
// instances.
const advisoryLockKey = int64(4_312_650_087)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trustplane_kv (
	k TEXT PRIMARY KEY,
	v BYTEA NOT NULL
);`

// PostgresStore is a Store backed by a pgx connection pool, for deployments
// where several daemon replicas share one database. Every Update takes a
// transaction-scoped advisory lock so writers serialise globally.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool and self-initialises the schema.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The lock is released automatically at commit or rollback.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// View implements Store. Reads run in their own transaction without the
// advisory lock; they see the latest committed state.
func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	return fn(&postgresTx{tx: tx, readOnly: true})
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type postgresTx struct {
	tx       pgx.Tx
	readOnly bool
}

func (t *postgresTx) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRow(ctx, "SELECT v FROM trustplane_kv WHERE k = $1", key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return v, nil
}

func (t *postgresTx) Put(ctx context.Context, key string, value []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.tx.Exec(ctx,
		"INSERT INTO trustplane_kv (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v",
		key, value,
	); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}
