// Package treasury tracks participant fund balances in integer minor units,
// including the escrow vault that custodies funded escrows. Transfers are
// transaction-scoped: they run inside the calling operation's store
// transaction, so a failed transfer aborts the whole operation and a
// successful one commits with it.
package treasury

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
)

// Vault is the reserved identity holding custodied escrow funds from
// creation until the terminal transfer.
const Vault = protocol.Identity("treasury:escrow-vault")

const balancePrefix = "treasury/balance/"

var (
	ErrZeroAccount       = protocol.E(protocol.KindInvalidArgument, "zero account identity")
	ErrZeroDeposit       = protocol.E(protocol.KindInvalidArgument, "deposit amount must be positive")
	ErrZeroWithdrawal    = protocol.E(protocol.KindInvalidArgument, "withdrawal amount must be positive")
	ErrInsufficientFunds = protocol.E(protocol.KindTransferFailed, "insufficient funds")
)

// BalanceTx reads an account balance inside a transaction. Unknown accounts
// hold zero.
func BalanceTx(ctx context.Context, tx ledger.Tx, account protocol.Identity) (uint64, error) {
	return ledger.GetUint64(ctx, tx, balanceKey(account))
}

// Credit adds amount to an account inside a transaction.
func Credit(ctx context.Context, tx ledger.Tx, account protocol.Identity, amount uint64) error {
	_, err := ledger.AddUint64(ctx, tx, balanceKey(account), amount)
	return err
}

// Debit removes amount from an account inside a transaction, failing with
// ErrInsufficientFunds when the balance cannot cover it.
func Debit(ctx context.Context, tx ledger.Tx, account protocol.Identity, amount uint64) error {
	bal, err := BalanceTx(ctx, tx, account)
	if err != nil {
		return err
	}
	if bal < amount {
		return ErrInsufficientFunds
	}
	return ledger.PutUint64(ctx, tx, balanceKey(account), bal-amount)
}

// Transfer moves amount between two accounts inside a transaction. Both
// sides land atomically with the enclosing operation or not at all.
func Transfer(ctx context.Context, tx ledger.Tx, from, to protocol.Identity, amount uint64) error {
	if err := Debit(ctx, tx, from, amount); err != nil {
		return err
	}
	return Credit(ctx, tx, to, amount)
}

// adminGate is the slice of the admin component the treasury needs: only
// the admin may mint balances into the engine.
type adminGate interface {
	Require(ctx context.Context, tx ledger.Tx, id protocol.Identity) error
}

// Service exposes the host-facing treasury operations: depositing external
// funds onto an account, withdrawing back to the settlement rail, and
// balance reads.
type Service struct {
	store  ledger.Store
	events *auditlog.Log
	admins adminGate
	logger *zap.Logger
}

// NewService wires a treasury Service.
func NewService(store ledger.Store, events *auditlog.Log, admins adminGate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, admins: admins, logger: logger}
}

// Deposit credits an account with funds arriving from the settlement rail.
// Admin only: deposits mint engine-visible balance, so only the operator
// bridge may perform them.
func (s *Service) Deposit(ctx context.Context, caller, account protocol.Identity, amount uint64) error {
	if account.IsZero() {
		return ErrZeroAccount
	}
	if amount == 0 {
		return ErrZeroDeposit
	}

	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := s.admins.Require(ctx, tx, caller); err != nil {
			return err
		}
		if err := Credit(ctx, tx, account, amount); err != nil {
			return err
		}
		_, err := s.events.Append(ctx, tx, "treasury.deposited", caller, account.String(), map[string]string{
			"account": account.String(),
			"amount":  strconv.FormatUint(amount, 10),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("treasury deposit",
		zap.String("account", account.String()),
		zap.Uint64("amount", amount),
	)
	return nil
}

// Withdraw debits the caller's own account; the host moves the funds back
// onto the rail out of band.
func (s *Service) Withdraw(ctx context.Context, caller protocol.Identity, amount uint64) error {
	if caller.IsZero() {
		return ErrZeroAccount
	}
	if amount == 0 {
		return ErrZeroWithdrawal
	}

	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := Debit(ctx, tx, caller, amount); err != nil {
			return err
		}
		_, err := s.events.Append(ctx, tx, "treasury.withdrawn", caller, caller.String(), map[string]string{
			"account": caller.String(),
			"amount":  strconv.FormatUint(amount, 10),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("treasury withdrawal",
		zap.String("account", caller.String()),
		zap.Uint64("amount", amount),
	)
	return nil
}

// Balance reads an account balance. Unknown accounts hold zero.
func (s *Service) Balance(ctx context.Context, account protocol.Identity) (uint64, error) {
	if account.IsZero() {
		return 0, ErrZeroAccount
	}
	var bal uint64
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		bal, err = BalanceTx(ctx, tx, account)
		return err
	})
	return bal, err
}

func balanceKey(account protocol.Identity) string {
	return balancePrefix + account.String()
}
