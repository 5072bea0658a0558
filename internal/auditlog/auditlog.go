// Package auditlog is the append-only event journal of the TrustPlane
// engine. Every state-changing operation appends one or more structured
// events inside its own store transaction, so the journal commits or rolls
// back together with the write it describes. Entries are hash-chained:
// each carries the hash of its predecessor, making any later mutation of
// history detectable with Verify.
package auditlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
)

// GenesisHash anchors the chain: entry 0 carries it as both its previous
// hash and its own hash.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

const (
	headKey     = "audit/head"
	entryPrefix = "audit/entry/"
)

// Event is one journal entry. Data holds the operation-specific payload
// fields; hashing folds them in sorted key order so the digest is stable.
type Event struct {
	Seq      uint64            `json:"seq"`
	Time     int64             `json:"time"`
	Kind     string            `json:"kind"`
	Actor    string            `json:"actor"`
	Ref      string            `json:"ref"`
	Data     map[string]string `json:"data,omitempty"`
	PrevHash string            `json:"prev_hash"`
	Hash     string            `json:"hash"`
}

// head is the chain tip. Len counts entries including genesis, so the next
// sequence number is Len itself.
type head struct {
	Len  uint64 `json:"len"`
	Root string `json:"root"`
}

// Log reads and appends journal entries. Appends are transaction-scoped;
// reads run in their own snapshots.
type Log struct {
	store ledger.Store
	clock protocol.Clock
}

// New creates a Log over store. The clock stamps genesis and every entry.
func New(store ledger.Store, clock protocol.Clock) *Log {
	return &Log{store: store, clock: clock}
}

// Append writes the next chain entry inside the caller's transaction. The
// first append on a fresh store lays down the genesis entry in the same
// transaction, so a journal is never observed without its anchor.
func (l *Log) Append(ctx context.Context, tx ledger.Tx, kind string, actor protocol.Identity, ref string, data map[string]string) (*Event, error) {
	h, err := l.readHead(ctx, tx)
	if err != nil {
		return nil, err
	}
	if h == nil {
		genesis := &Event{
			Seq:      0,
			Time:     l.clock.Now().Unix(),
			Kind:     "genesis",
			Actor:    "trustplane",
			PrevHash: GenesisHash,
			Hash:     GenesisHash, // well-known constant, not computed
		}
		if err := l.writeEntry(ctx, tx, genesis); err != nil {
			return nil, err
		}
		h = &head{Len: 1, Root: GenesisHash}
	}

	e := &Event{
		Seq:      h.Len,
		Time:     l.clock.Now().Unix(),
		Kind:     kind,
		Actor:    actor.String(),
		Ref:      ref,
		Data:     data,
		PrevHash: h.Root,
	}
	e.Hash = hashEvent(e)

	if err := l.writeEntry(ctx, tx, e); err != nil {
		return nil, err
	}
	if err := ledger.PutJSON(ctx, tx, headKey, head{Len: h.Len + 1, Root: e.Hash}); err != nil {
		return nil, err
	}
	return e, nil
}

// Entry returns the event at seq.
func (l *Log) Entry(ctx context.Context, seq uint64) (*Event, error) {
	var e Event
	err := l.store.View(ctx, func(tx ledger.Tx) error {
		ok, err := ledger.GetJSON(ctx, tx, entryKey(seq), &e)
		if err != nil {
			return err
		}
		if !ok {
			return protocol.E(protocol.KindNotFound, "audit entry not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Entries returns up to limit events starting at seq since. A zero limit
// defaults to 100.
func (l *Log) Entries(ctx context.Context, since uint64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []Event
	err := l.store.View(ctx, func(tx ledger.Tx) error {
		var h head
		ok, err := ledger.GetJSON(ctx, tx, headKey, &h)
		if err != nil || !ok {
			return err
		}
		for seq := since; seq < h.Len && len(out) < limit; seq++ {
			var e Event
			if _, err := ledger.GetJSON(ctx, tx, entryKey(seq), &e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Len returns the number of entries, genesis included. A fresh store has
// length zero; the first protocol write brings it to two.
func (l *Log) Len(ctx context.Context) (uint64, error) {
	var n uint64
	err := l.store.View(ctx, func(tx ledger.Tx) error {
		var h head
		ok, err := ledger.GetJSON(ctx, tx, headKey, &h)
		if err != nil {
			return err
		}
		if ok {
			n = h.Len
		}
		return nil
	})
	return n, err
}

// Root returns the chain tip hash, or GenesisHash for an empty journal.
func (l *Log) Root(ctx context.Context) (string, error) {
	root := GenesisHash
	err := l.store.View(ctx, func(tx ledger.Tx) error {
		var h head
		ok, err := ledger.GetJSON(ctx, tx, headKey, &h)
		if err != nil {
			return err
		}
		if ok {
			root = h.Root
		}
		return nil
	})
	return root, err
}

// Verify walks the whole chain and validates every link and hash, plus the
// recorded head. O(n) in journal length.
func (l *Log) Verify(ctx context.Context) error {
	return l.store.View(ctx, func(tx ledger.Tx) error {
		var h head
		ok, err := ledger.GetJSON(ctx, tx, headKey, &h)
		if err != nil {
			return err
		}
		if !ok {
			return nil // empty journal is trivially valid
		}

		var prev *Event
		for seq := uint64(0); seq < h.Len; seq++ {
			var e Event
			found, err := ledger.GetJSON(ctx, tx, entryKey(seq), &e)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("audit chain has a gap at seq %d", seq)
			}

			if seq == 0 {
				if e.Hash != GenesisHash {
					return fmt.Errorf("genesis entry has wrong hash: got %q", e.Hash)
				}
				prev = &e
				continue
			}
			if e.PrevHash != prev.Hash {
				return fmt.Errorf("audit chain broken at seq %d", seq)
			}
			if e.Hash != hashEvent(&e) {
				return fmt.Errorf("audit entry %d has invalid hash", seq)
			}
			prev = &e
		}

		if prev.Hash != h.Root {
			return fmt.Errorf("audit head root %q does not match tip %q", h.Root, prev.Hash)
		}
		return nil
	})
}

func (l *Log) readHead(ctx context.Context, tx ledger.Tx) (*head, error) {
	var h head
	ok, err := ledger.GetJSON(ctx, tx, headKey, &h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (l *Log) writeEntry(ctx context.Context, tx ledger.Tx, e *Event) error {
	return ledger.PutJSON(ctx, tx, entryKey(e.Seq), e)
}

func entryKey(seq uint64) string {
	return entryPrefix + strconv.FormatUint(seq, 10)
}

// hashEvent computes the SHA-256 digest of an entry's chained fields. Data
// keys are folded in sorted order so the digest is deterministic.
func hashEvent(e *Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%s|%s|%s|%s|", e.Seq, e.Time, e.Kind, e.Actor, e.Ref, e.PrevHash)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s|", k, e.Data[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
