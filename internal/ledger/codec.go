package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Typed accessors shared by every component. Values are stored as JSON,
// counters as decimal strings, so any backend's contents stay inspectable
// with ordinary tooling.

// GetJSON unmarshals the value at key into v. It returns false (and leaves v
// untouched) when the key is absent.
func GetJSON(ctx context.Context, tx Tx, key string, v any) (bool, error) {
	raw, err := tx.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// PutJSON marshals v and stores it at key.
func PutJSON(ctx context.Context, tx Tx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return tx.Put(ctx, key, raw)
}

// GetUint64 reads a counter; absent keys read as zero.
func GetUint64(ctx context.Context, tx Tx, key string) (uint64, error) {
	raw, err := tx.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode counter %q: %w", key, err)
	}
	return n, nil
}

// PutUint64 stores a counter value.
func PutUint64(ctx context.Context, tx Tx, key string, n uint64) error {
	return tx.Put(ctx, key, []byte(strconv.FormatUint(n, 10)))
}

// AddUint64 increments a counter and returns the new value.
func AddUint64(ctx context.Context, tx Tx, key string, delta uint64) (uint64, error) {
	n, err := GetUint64(ctx, tx, key)
	if err != nil {
		return 0, err
	}
	n += delta
	if err := PutUint64(ctx, tx, key, n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetList reads an append-only string list; absent keys read as empty.
func GetList(ctx context.Context, tx Tx, key string) ([]string, error) {
	var list []string
	if _, err := GetJSON(ctx, tx, key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AppendList appends elems to the list at key. Lists preserve insertion
// order and impose no uniqueness.
func AppendList(ctx context.Context, tx Tx, key string, elems ...string) error {
	list, err := GetList(ctx, tx, key)
	if err != nil {
		return err
	}
	return PutJSON(ctx, tx, key, append(list, elems...))
}
