package ledger

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory, thread-safe Store. Updates stage their writes
// in a copy-on-write overlay that is swapped into the committed map only when
// the transaction body succeeds, so a failed operation leaves no trace.
// It is the reference backend for tests and single-process dev deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Update implements Store. The write lock is held for the whole transaction,
// which gives updates their total order.
func (s *MemoryStore) Update(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{base: s.data, overlay: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err // overlay discarded
	}
	for k, v := range tx.overlay {
		s.data[k] = v
	}
	return nil
}

// View implements Store.
func (s *MemoryStore) View(_ context.Context, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{base: s.data, readOnly: true})
}

// Close implements Store. It is a no-op for the memory backend.
func (s *MemoryStore) Close() error { return nil }

// memTx reads through the overlay first so a transaction observes its own
// writes, then falls back to the committed map.
type memTx struct {
	base     map[string][]byte
	overlay  map[string][]byte
	readOnly bool
}

func (t *memTx) Get(_ context.Context, key string) ([]byte, error) {
	if !t.readOnly {
		if v, ok := t.overlay[key]; ok {
			return cloneBytes(v), nil
		}
	}
	if v, ok := t.base[key]; ok {
		return cloneBytes(v), nil
	}
	return nil, ErrKeyNotFound
}

func (t *memTx) Put(_ context.Context, key string, value []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	t.overlay[key] = cloneBytes(value)
	return nil
}

// cloneBytes keeps callers from aliasing store-owned slices.
func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
