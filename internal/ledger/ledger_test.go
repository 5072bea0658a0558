package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/halcyonlabs/trustplane/internal/ledger"
)

var ctx = context.Background()

func TestMemoryStorePutGet(t *testing.T) {
	store := ledger.NewMemoryStore()

	err := store.Update(ctx, func(tx ledger.Tx) error {
		return tx.Put(ctx, "k1", []byte("v1"))
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = store.View(ctx, func(tx ledger.Tx) error {
		v, err := tx.Get(ctx, "k1")
		if err != nil {
			return err
		}
		if string(v) != "v1" {
			t.Errorf("Get = %q, want %q", v, "v1")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := ledger.NewMemoryStore()

	err := store.View(ctx, func(tx ledger.Tx) error {
		_, err := tx.Get(ctx, "nope")
		return err
	})
	if !errors.Is(err, ledger.ErrKeyNotFound) {
		t.Errorf("missing key: got %v, want ErrKeyNotFound", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	store := ledger.NewMemoryStore()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx ledger.Tx) error {
		if err := tx.Put(ctx, "a", []byte("1")); err != nil {
			return err
		}
		if err := tx.Put(ctx, "b", []byte("2")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	// Neither write may have survived.
	for _, key := range []string{"a", "b"} {
		err := store.View(ctx, func(tx ledger.Tx) error {
			_, err := tx.Get(ctx, key)
			return err
		})
		if !errors.Is(err, ledger.ErrKeyNotFound) {
			t.Errorf("key %q survived a rolled-back transaction", key)
		}
	}
}

func TestUpdateReadsOwnWrites(t *testing.T) {
	store := ledger.NewMemoryStore()

	err := store.Update(ctx, func(tx ledger.Tx) error {
		if err := tx.Put(ctx, "k", []byte("staged")); err != nil {
			return err
		}
		v, err := tx.Get(ctx, "k")
		if err != nil {
			return err
		}
		if string(v) != "staged" {
			t.Errorf("in-transaction read = %q, want staged write", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestViewRejectsWrites(t *testing.T) {
	store := ledger.NewMemoryStore()

	err := store.View(ctx, func(tx ledger.Tx) error {
		return tx.Put(ctx, "k", []byte("v"))
	})
	if err == nil {
		t.Fatal("Put inside View should fail")
	}
}

func TestCounters(t *testing.T) {
	store := ledger.NewMemoryStore()

	err := store.Update(ctx, func(tx ledger.Tx) error {
		n, err := ledger.GetUint64(ctx, tx, "counter")
		if err != nil {
			return err
		}
		if n != 0 {
			t.Errorf("fresh counter = %d, want 0", n)
		}

		if n, err = ledger.AddUint64(ctx, tx, "counter", 3); err != nil {
			return err
		}
		if n != 3 {
			t.Errorf("after +3: %d, want 3", n)
		}
		if n, err = ledger.AddUint64(ctx, tx, "counter", 4); err != nil {
			return err
		}
		if n != 7 {
			t.Errorf("after +4: %d, want 7", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = store.View(ctx, func(tx ledger.Tx) error {
		n, err := ledger.GetUint64(ctx, tx, "counter")
		if err != nil {
			return err
		}
		if n != 7 {
			t.Errorf("committed counter = %d, want 7", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestAppendList(t *testing.T) {
	store := ledger.NewMemoryStore()

	err := store.Update(ctx, func(tx ledger.Tx) error {
		if err := ledger.AppendList(ctx, tx, "list", "a"); err != nil {
			return err
		}
		// Duplicates are allowed; order is insertion order.
		return ledger.AppendList(ctx, tx, "list", "b", "a")
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = store.View(ctx, func(tx ledger.Tx) error {
		list, err := ledger.GetList(ctx, tx, "list")
		if err != nil {
			return err
		}
		want := []string{"a", "b", "a"}
		if len(list) != len(want) {
			t.Fatalf("list = %v, want %v", list, want)
		}
		for i := range want {
			if list[i] != want[i] {
				t.Errorf("list[%d] = %q, want %q", i, list[i], want[i])
			}
		}

		empty, err := ledger.GetList(ctx, tx, "absent")
		if err != nil {
			return err
		}
		if len(empty) != 0 {
			t.Errorf("absent list = %v, want empty", empty)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestGetJSON(t *testing.T) {
	store := ledger.NewMemoryStore()

	type record struct {
		Name  string `json:"name"`
		Count uint64 `json:"count"`
	}

	err := store.Update(ctx, func(tx ledger.Tx) error {
		return ledger.PutJSON(ctx, tx, "rec", record{Name: "bot-1", Count: 42})
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = store.View(ctx, func(tx ledger.Tx) error {
		var rec record
		ok, err := ledger.GetJSON(ctx, tx, "rec", &rec)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("GetJSON reported the record absent")
		}
		if rec.Name != "bot-1" || rec.Count != 42 {
			t.Errorf("decoded %+v", rec)
		}

		ok, err = ledger.GetJSON(ctx, tx, "absent", &rec)
		if err != nil {
			return err
		}
		if ok {
			t.Error("GetJSON found a value at an absent key")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}
