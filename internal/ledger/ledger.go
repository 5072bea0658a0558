// Package ledger provides the single durable key-value store underneath the
// TrustPlane engine. Every protocol operation runs inside one Update call:
// profile writes, escrow custody, counters, and audit events either all
// commit or none do. Writers are globally serialised, so committed
// transactions form a single total order.
//
// Three backends implement the Store interface: MemoryStore (tests and dev
// mode), SQLiteStore (single-node durability), and PostgresStore (shared
// deployments, serialised with an advisory lock).
package ledger

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Tx.Get when the key has never been written.
var ErrKeyNotFound = errors.New("ledger: key not found")

// errReadOnly guards Put calls issued inside View.
var errReadOnly = errors.New("ledger: put inside read-only transaction")

// Tx is a transaction handle passed to Update and View bodies. Reads observe
// earlier writes made in the same transaction.
type Tx interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store is the engine's storage contract.
//
// Update runs fn in an atomic read-write transaction. If fn returns an
// error, every write it made is discarded and the error is returned
// unchanged; there are no partial commits and no retries. Update bodies
// across all callers execute in a single global order.
//
// View runs fn against a consistent read-only snapshot.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
