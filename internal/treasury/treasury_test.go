package treasury_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/internal/treasury"
)

var ctx = context.Background()

const opsAdmin = protocol.Identity("ops:root")

type fakeClock struct{ now int64 }

func (c fakeClock) Now() time.Time { return time.Unix(c.now, 0) }

type adminStub struct{ admin protocol.Identity }

func (a adminStub) Require(_ context.Context, _ ledger.Tx, id protocol.Identity) error {
	if id != a.admin {
		return protocol.E(protocol.KindNotAuthorized, "not protocol admin")
	}
	return nil
}

func newService() (*treasury.Service, ledger.Store) {
	store := ledger.NewMemoryStore()
	events := auditlog.New(store, fakeClock{now: 1_700_000_000})
	svc := treasury.NewService(store, events, adminStub{admin: opsAdmin}, nil)
	return svc, store
}

func TestDepositAndBalance(t *testing.T) {
	svc, _ := newService()

	if err := svc.Deposit(ctx, opsAdmin, "acct:alice", 1000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	bal, err := svc.Balance(ctx, "acct:alice")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != 1000 {
		t.Errorf("balance = %d, want 1000", bal)
	}
}

func TestDepositRequiresAdmin(t *testing.T) {
	svc, _ := newService()

	err := svc.Deposit(ctx, "acct:alice", "acct:alice", 1000)
	if !protocol.IsKind(err, protocol.KindNotAuthorized) {
		t.Fatalf("non-admin deposit: got %v, want not_authorized", err)
	}

	bal, err := svc.Balance(ctx, "acct:alice")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != 0 {
		t.Errorf("failed deposit left balance %d", bal)
	}
}

func TestDepositValidation(t *testing.T) {
	svc, _ := newService()

	if err := svc.Deposit(ctx, opsAdmin, "", 10); !errors.Is(err, treasury.ErrZeroAccount) {
		t.Errorf("zero account: got %v", err)
	}
	if err := svc.Deposit(ctx, opsAdmin, "acct:alice", 0); !errors.Is(err, treasury.ErrZeroDeposit) {
		t.Errorf("zero amount: got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	svc, _ := newService()

	if err := svc.Deposit(ctx, opsAdmin, "acct:alice", 500); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := svc.Withdraw(ctx, "acct:alice", 200); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	bal, _ := svc.Balance(ctx, "acct:alice")
	if bal != 300 {
		t.Errorf("balance after withdrawal = %d, want 300", bal)
	}

	err := svc.Withdraw(ctx, "acct:alice", 301)
	if !errors.Is(err, treasury.ErrInsufficientFunds) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientFunds", err)
	}
	if !protocol.IsKind(err, protocol.KindTransferFailed) {
		t.Errorf("overdraw kind = %q, want transfer_failed", protocol.KindOf(err))
	}

	bal, _ = svc.Balance(ctx, "acct:alice")
	if bal != 300 {
		t.Errorf("failed withdrawal changed balance to %d", bal)
	}

	if err := svc.Withdraw(ctx, "acct:alice", 0); !errors.Is(err, treasury.ErrZeroWithdrawal) {
		t.Errorf("zero withdrawal: got %v", err)
	}
}

func TestTransferAtomicWithTransaction(t *testing.T) {
	svc, store := newService()
	boom := errors.New("boom")

	if err := svc.Deposit(ctx, opsAdmin, "acct:alice", 100); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	// A transfer inside a failing transaction must leave both sides intact.
	err := store.Update(ctx, func(tx ledger.Tx) error {
		if err := treasury.Transfer(ctx, tx, "acct:alice", treasury.Vault, 60); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	alice, _ := svc.Balance(ctx, "acct:alice")
	if alice != 100 {
		t.Errorf("alice = %d after rollback, want 100", alice)
	}
	vault, _ := svc.Balance(ctx, treasury.Vault)
	if vault != 0 {
		t.Errorf("vault = %d after rollback, want 0", vault)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	_, store := newService()

	err := store.Update(ctx, func(tx ledger.Tx) error {
		return treasury.Transfer(ctx, tx, "acct:poor", "acct:rich", 1)
	})
	if !errors.Is(err, treasury.ErrInsufficientFunds) {
		t.Fatalf("transfer from empty account: got %v", err)
	}
}

func TestBalanceUnknownAccount(t *testing.T) {
	svc, _ := newService()

	bal, err := svc.Balance(ctx, "acct:ghost")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != 0 {
		t.Errorf("unknown account balance = %d, want 0", bal)
	}

	if _, err := svc.Balance(ctx, ""); !errors.Is(err, treasury.ErrZeroAccount) {
		t.Errorf("zero account: got %v", err)
	}
}
