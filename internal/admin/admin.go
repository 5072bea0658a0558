// Package admin holds the protocol admin identity and the aggregate counters.
// There is exactly one admin at a time; it can release or refund any escrow,
// revoke any ticket, move treasury funds, and rewrite reputation scores.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/anchor"
	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/escrow"
	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/internal/registry"
)

const currentKey = "admin/current"

var (
	ErrNotAdmin  = protocol.E(protocol.KindNotAuthorized, "not protocol admin")
	ErrZeroAdmin = protocol.E(protocol.KindInvalidArgument, "new admin cannot be zero address")
)

// Service answers admin checks for the other components and owns the admin
// handover plus the read-only protocol stats.
type Service struct {
	store  ledger.Store
	events *auditlog.Log
	clock  protocol.Clock
	logger *zap.Logger
}

func NewService(store ledger.Store, events *auditlog.Log, clock protocol.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, clock: clock, logger: logger}
}

// CurrentTx reads the admin identity inside tx. Empty when not bootstrapped.
func CurrentTx(ctx context.Context, tx ledger.Tx) (protocol.Identity, error) {
	raw, err := tx.Get(ctx, currentKey)
	if errors.Is(err, ledger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read admin identity: %w", err)
	}
	return protocol.Identity(raw), nil
}

// IsAdmin reports whether id is the current protocol admin. It satisfies the
// admin-check interfaces of the anchor, escrow, and treasury services.
func (s *Service) IsAdmin(ctx context.Context, tx ledger.Tx, id protocol.Identity) (bool, error) {
	current, err := CurrentTx(ctx, tx)
	if err != nil {
		return false, err
	}
	return !current.IsZero() && id == current, nil
}

// Require fails with not_authorized unless id is the current admin.
func (s *Service) Require(ctx context.Context, tx ledger.Tx, id protocol.Identity) error {
	isAdmin, err := s.IsAdmin(ctx, tx, id)
	if err != nil {
		return err
	}
	if !isAdmin {
		return ErrNotAdmin
	}
	return nil
}

// Bootstrap installs the admin identity on a fresh store. It runs on every
// daemon start, so an already-installed admin is left alone: a handover done
// through Transfer survives restarts regardless of configuration.
func (s *Service) Bootstrap(ctx context.Context, admin protocol.Identity) error {
	if admin.IsZero() {
		return ErrZeroAdmin
	}

	installed := false
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		current, err := CurrentTx(ctx, tx)
		if err != nil {
			return err
		}
		if !current.IsZero() {
			return nil
		}

		if err := tx.Put(ctx, currentKey, []byte(admin)); err != nil {
			return fmt.Errorf("install admin identity: %w", err)
		}
		installed = true
		_, err = s.events.Append(ctx, tx, "admin.bootstrapped", admin, admin.String(), map[string]string{
			"admin": admin.String(),
		})
		return err
	})
	if err != nil {
		return err
	}
	if installed {
		s.logger.Info("protocol admin bootstrapped", zap.String("admin", admin.String()))
	}
	return nil
}

// Current returns the admin identity, empty when not bootstrapped.
func (s *Service) Current(ctx context.Context) (protocol.Identity, error) {
	var current protocol.Identity
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		current, err = CurrentTx(ctx, tx)
		return err
	})
	if err != nil {
		return "", err
	}
	return current, nil
}

// Transfer hands the admin role to newAdmin, effective immediately. Current
// admin only. Handing the role to oneself is a no-op that still emits.
func (s *Service) Transfer(ctx context.Context, caller, newAdmin protocol.Identity) error {
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := s.Require(ctx, tx, caller); err != nil {
			return err
		}
		if newAdmin.IsZero() {
			return ErrZeroAdmin
		}

		if err := tx.Put(ctx, currentKey, []byte(newAdmin)); err != nil {
			return fmt.Errorf("install admin identity: %w", err)
		}
		_, err := s.events.Append(ctx, tx, "admin.transferred", caller, newAdmin.String(), map[string]string{
			"previous_admin": caller.String(),
			"new_admin":      newAdmin.String(),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("protocol admin transferred",
		zap.String("previous_admin", caller.String()),
		zap.String("new_admin", newAdmin.String()))
	return nil
}

// SetReputation overwrites an agent's reputation score, bypassing the owner
// check. Admin only; the score cap still applies.
func (s *Service) SetReputation(ctx context.Context, caller protocol.Identity, agentID string, score uint64) (*registry.Profile, error) {
	var updated *registry.Profile
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if err := s.Require(ctx, tx, caller); err != nil {
			return err
		}
		if score > protocol.MaxBasisPoints {
			return registry.ErrInvalidReputation
		}

		profile, err := registry.GetProfile(ctx, tx, agentID)
		if err != nil {
			return err
		}
		profile.ReputationScore = score
		profile.UpdatedAt = s.clock.Now().Unix()
		if err := registry.PutProfile(ctx, tx, profile); err != nil {
			return err
		}
		updated = profile

		_, err = s.events.Append(ctx, tx, "agent.reputation_set", caller, agentID, map[string]string{
			"agent_id":         agentID,
			"reputation_score": strconv.FormatUint(score, 10),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agent reputation set",
		zap.String("agent_id", agentID),
		zap.Uint64("reputation_score", score))
	return updated, nil
}

// ProtocolStats is the aggregate counter snapshot. Escrow count and volume
// never decrease; refunds do not subtract.
type ProtocolStats struct {
	TotalAgents  uint64 `json:"total_agents"`
	TotalTickets uint64 `json:"total_tickets"`
	TotalEscrows uint64 `json:"total_escrows"`
	TotalVolume  uint64 `json:"total_volume"`
}

// Stats reads all four counters in one consistent snapshot.
func (s *Service) Stats(ctx context.Context) (*ProtocolStats, error) {
	var stats ProtocolStats
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		if stats.TotalAgents, err = ledger.GetUint64(ctx, tx, registry.CounterKey); err != nil {
			return err
		}
		if stats.TotalTickets, err = ledger.GetUint64(ctx, tx, anchor.CounterKey); err != nil {
			return err
		}
		if stats.TotalEscrows, err = ledger.GetUint64(ctx, tx, escrow.SequenceKey); err != nil {
			return err
		}
		stats.TotalVolume, err = ledger.GetUint64(ctx, tx, escrow.VolumeKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
