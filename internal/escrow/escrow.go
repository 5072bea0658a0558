// Package escrow implements custodial settlement between agents. Funds move
// from the payer into the treasury vault at creation and leave it exactly
// once, to the payee on release or back to the payer on refund. Who may
// trigger which transition depends on the escrow's risk score.
package escrow

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/internal/treasury"
	"github.com/halcyonlabs/trustplane/pkg/digest"
)

// adminChecker reports whether an identity holds the protocol admin role
// within the supplied transaction.
type adminChecker interface {
	IsAdmin(ctx context.Context, tx ledger.Tx, id protocol.Identity) (bool, error)
}

// Service owns escrow records and their settlement.
type Service struct {
	store  ledger.Store
	events *auditlog.Log
	clock  protocol.Clock
	admins adminChecker
	logger *zap.Logger
}

func NewService(store ledger.Store, events *auditlog.Log, clock protocol.Clock, admins adminChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, clock: clock, admins: admins, logger: logger}
}

// CreateParams carries the caller-supplied escrow fields. The caller becomes
// the payer.
type CreateParams struct {
	Payee              protocol.Identity
	ServiceDescription string
	RiskScore          uint64
	SettlementHash     digest.Digest
	Amount             uint64
}

// Create opens a funded escrow: it assigns the next sequential id, custodies
// the amount from the caller into the vault, and counts the amount toward
// cumulative volume, all in one transaction. A caller without sufficient
// treasury balance fails the whole operation.
func (s *Service) Create(ctx context.Context, caller protocol.Identity, p CreateParams) (*Record, error) {
	if p.Amount == 0 {
		return nil, ErrZeroAmount
	}
	if p.Payee.IsZero() {
		return nil, ErrZeroPayee
	}
	if p.Payee == caller {
		return nil, ErrSelfEscrow
	}
	if p.RiskScore > protocol.MaxBasisPoints {
		return nil, ErrInvalidRisk
	}

	var rec *Record
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		id, err := ledger.GetUint64(ctx, tx, SequenceKey)
		if err != nil {
			return fmt.Errorf("read escrow sequence: %w", err)
		}

		rec = &Record{
			ID:                 id,
			Payer:              caller,
			Payee:              p.Payee,
			Amount:             p.Amount,
			ServiceDescription: p.ServiceDescription,
			RiskScore:          p.RiskScore,
			State:              StateFunded,
			CreatedAt:          s.clock.Now().Unix(),
			SettlementHash:     p.SettlementHash,
		}
		if err := putRecord(ctx, tx, rec); err != nil {
			return err
		}
		if err := ledger.PutUint64(ctx, tx, SequenceKey, id+1); err != nil {
			return fmt.Errorf("advance escrow sequence: %w", err)
		}
		if _, err := ledger.AddUint64(ctx, tx, VolumeKey, p.Amount); err != nil {
			return fmt.Errorf("add escrow volume: %w", err)
		}
		if err := treasury.Transfer(ctx, tx, caller, treasury.Vault, p.Amount); err != nil {
			return err
		}

		if _, err := s.events.Append(ctx, tx, "escrow.created", caller, strconv.FormatUint(id, 10), map[string]string{
			"escrow_id":       strconv.FormatUint(id, 10),
			"payer":           caller.String(),
			"payee":           p.Payee.String(),
			"amount":          strconv.FormatUint(p.Amount, 10),
			"risk_score":      strconv.FormatUint(p.RiskScore, 10),
			"settlement_hash": p.SettlementHash.String(),
		}); err != nil {
			return err
		}
		_, err = s.events.Append(ctx, tx, "escrow.funded", caller, strconv.FormatUint(id, 10), map[string]string{
			"escrow_id": strconv.FormatUint(id, 10),
			"amount":    strconv.FormatUint(p.Amount, 10),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("escrow created",
		zap.Uint64("escrow_id", rec.ID),
		zap.String("payer", rec.Payer.String()),
		zap.String("payee", rec.Payee.String()),
		zap.Uint64("amount", rec.Amount),
		zap.Uint64("risk_score", rec.RiskScore))
	return rec, nil
}

// Release settles a funded escrow to the payee. Low-risk escrows (risk at or
// under 3000 bp) may be released by the payer or the admin; anything riskier
// is admin-only. The state flips to released before the payout runs, and
// both happen in one transaction, so a failed payout restores the funded
// state and a reentrant look at the record can never see funded alongside
// moved funds.
func (s *Service) Release(ctx context.Context, caller protocol.Identity, id uint64) (*Record, error) {
	var rec *Record
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		var err error
		rec, err = getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.State != StateFunded {
			return ErrNotFunded
		}

		isAdmin, err := s.admins.IsAdmin(ctx, tx, caller)
		if err != nil {
			return err
		}
		if rec.RiskScore > protocol.MaxRiskAutoRelease {
			if !isAdmin {
				return ErrHighRiskRelease
			}
		} else if caller != rec.Payer && !isAdmin {
			return ErrReleaseDenied
		}

		rec.State = StateReleased
		rec.ReleasedAt = s.clock.Now().Unix()
		if err := putRecord(ctx, tx, rec); err != nil {
			return err
		}
		if err := treasury.Transfer(ctx, tx, treasury.Vault, rec.Payee, rec.Amount); err != nil {
			return err
		}

		_, err = s.events.Append(ctx, tx, "escrow.released", caller, strconv.FormatUint(id, 10), map[string]string{
			"escrow_id": strconv.FormatUint(id, 10),
			"payee":     rec.Payee.String(),
			"amount":    strconv.FormatUint(rec.Amount, 10),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("escrow released",
		zap.Uint64("escrow_id", id),
		zap.String("payee", rec.Payee.String()),
		zap.Uint64("amount", rec.Amount))
	return rec, nil
}

// Dispute freezes a funded escrow pending an admin decision. Payer or admin
// only. No funds move; the only way out of disputed is an admin refund.
func (s *Service) Dispute(ctx context.Context, caller protocol.Identity, id uint64) (*Record, error) {
	var rec *Record
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		var err error
		rec, err = getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.State != StateFunded {
			return ErrNotFunded
		}

		isAdmin, err := s.admins.IsAdmin(ctx, tx, caller)
		if err != nil {
			return err
		}
		if caller != rec.Payer && !isAdmin {
			return ErrDisputeDenied
		}

		rec.State = StateDisputed
		if err := putRecord(ctx, tx, rec); err != nil {
			return err
		}

		_, err = s.events.Append(ctx, tx, "escrow.disputed", caller, strconv.FormatUint(id, 10), map[string]string{
			"escrow_id":   strconv.FormatUint(id, 10),
			"disputed_by": caller.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("escrow disputed", zap.Uint64("escrow_id", id), zap.String("caller", caller.String()))
	return rec, nil
}

// Refund returns the custodied amount to the payer. A disputed escrow is
// refundable by the admin only. A funded escrow is refundable by its payer
// when the risk score is 7000 bp or higher, otherwise by the admin only.
// Same discipline as Release: state first, payout second, one transaction.
func (s *Service) Refund(ctx context.Context, caller protocol.Identity, id uint64) (*Record, error) {
	var rec *Record
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		var err error
		rec, err = getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.State != StateFunded && rec.State != StateDisputed {
			return ErrNotRefundable
		}

		isAdmin, err := s.admins.IsAdmin(ctx, tx, caller)
		if err != nil {
			return err
		}
		switch {
		case rec.State == StateDisputed:
			if !isAdmin {
				return ErrRefundDenied
			}
		case rec.RiskScore >= protocol.HighRiskThreshold:
			if caller != rec.Payer && !isAdmin {
				return ErrRefundDenied
			}
		default:
			if !isAdmin {
				return ErrRefundDenied
			}
		}

		rec.State = StateRefunded
		rec.ReleasedAt = s.clock.Now().Unix()
		if err := putRecord(ctx, tx, rec); err != nil {
			return err
		}
		if err := treasury.Transfer(ctx, tx, treasury.Vault, rec.Payer, rec.Amount); err != nil {
			return err
		}

		_, err = s.events.Append(ctx, tx, "escrow.refunded", caller, strconv.FormatUint(id, 10), map[string]string{
			"escrow_id": strconv.FormatUint(id, 10),
			"payer":     rec.Payer.String(),
			"amount":    strconv.FormatUint(rec.Amount, 10),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("escrow refunded",
		zap.Uint64("escrow_id", id),
		zap.String("payer", rec.Payer.String()),
		zap.Uint64("amount", rec.Amount))
	return rec, nil
}

// Get returns the escrow record for id.
func (s *Service) Get(ctx context.Context, id uint64) (*Record, error) {
	var rec *Record
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		rec, err = getRecord(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Count returns the number of escrows ever created.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		n, err = ledger.GetUint64(ctx, tx, SequenceKey)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
