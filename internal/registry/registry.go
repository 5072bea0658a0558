// Package registry is the agent registry of the TrustPlane engine: one
// trust profile per agent, owned by the identity that registered it, plus
// the trust-check decision procedure counterparties consult before
// transacting with an agent.
package registry

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/pkg/digest"
)

// Service implements the registry operations over the shared store.
type Service struct {
	store  ledger.Store
	events *auditlog.Log
	clock  protocol.Clock
	logger *zap.Logger
}

// NewService wires a registry Service. A nil logger is replaced with a nop.
func NewService(store ledger.Store, events *auditlog.Log, clock protocol.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, clock: clock, logger: logger}
}

// RegisterParams carries the owner-supplied profile fields.
type RegisterParams struct {
	AgentID         string
	AuditLevel      protocol.AuditLevel
	MaxOpValue      uint64
	MaxOpsPerHour   uint64
	RequiresX402    bool
	ReputationScore uint64
	ConstraintsHash digest.Digest
}

// Register creates a profile owned by the caller. Validation order: empty
// id, duplicate id, reputation above 10000 basis points (10000 itself is
// valid).
func (s *Service) Register(ctx context.Context, caller protocol.Identity, p RegisterParams) (*Profile, error) {
	if p.AgentID == "" {
		return nil, ErrEmptyAgentID
	}

	now := s.clock.Now().Unix()
	profile := &Profile{
		AgentID:         p.AgentID,
		Owner:           caller,
		AuditLevel:      p.AuditLevel,
		MaxOpValue:      p.MaxOpValue,
		MaxOpsPerHour:   p.MaxOpsPerHour,
		RequiresX402:    p.RequiresX402,
		ReputationScore: p.ReputationScore,
		RegisteredAt:    now,
		UpdatedAt:       now,
		Active:          true,
		ConstraintsHash: p.ConstraintsHash,
	}

	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if _, err := GetProfile(ctx, tx, p.AgentID); err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if p.ReputationScore > protocol.MaxBasisPoints {
			return ErrInvalidReputation
		}

		if err := PutProfile(ctx, tx, profile); err != nil {
			return err
		}
		if err := ledger.AppendList(ctx, tx, ownerPrefix+caller.String(), p.AgentID); err != nil {
			return err
		}
		if err := ledger.AppendList(ctx, tx, allAgentsKey, p.AgentID); err != nil {
			return err
		}
		if _, err := ledger.AddUint64(ctx, tx, CounterKey, 1); err != nil {
			return err
		}

		_, err := s.events.Append(ctx, tx, "agent.registered", caller, p.AgentID, map[string]string{
			"agent_id":         p.AgentID,
			"owner":            caller.String(),
			"audit_level":      string(p.AuditLevel),
			"reputation_score": strconv.FormatUint(p.ReputationScore, 10),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agent registered",
		zap.String("agent_id", p.AgentID),
		zap.String("owner", caller.String()),
		zap.String("audit_level", string(p.AuditLevel)),
	)
	return profile, nil
}

// UpdateParams carries the owner-updatable profile fields. The kill switch,
// active flag, and x402 requirement are deliberately absent: they have
// their own operations or are fixed at registration.
type UpdateParams struct {
	AgentID         string
	AuditLevel      protocol.AuditLevel
	MaxOpValue      uint64
	MaxOpsPerHour   uint64
	ReputationScore uint64
	ConstraintsHash digest.Digest
}

// Update rewrites the updatable profile fields. Owner only; reputation is
// revalidated against the 10000 basis-point ceiling.
func (s *Service) Update(ctx context.Context, caller protocol.Identity, p UpdateParams) (*Profile, error) {
	var updated *Profile
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		profile, err := GetProfile(ctx, tx, p.AgentID)
		if err != nil {
			return err
		}
		if profile.Owner != caller {
			return ErrNotOwner
		}
		if p.ReputationScore > protocol.MaxBasisPoints {
			return ErrInvalidReputation
		}

		profile.AuditLevel = p.AuditLevel
		profile.MaxOpValue = p.MaxOpValue
		profile.MaxOpsPerHour = p.MaxOpsPerHour
		profile.ReputationScore = p.ReputationScore
		profile.ConstraintsHash = p.ConstraintsHash
		profile.UpdatedAt = s.clock.Now().Unix()

		if err := PutProfile(ctx, tx, profile); err != nil {
			return err
		}
		if _, err := s.events.Append(ctx, tx, "agent.updated", caller, p.AgentID, map[string]string{
			"agent_id":         p.AgentID,
			"audit_level":      string(p.AuditLevel),
			"max_op_value":     strconv.FormatUint(p.MaxOpValue, 10),
			"max_ops_per_hour": strconv.FormatUint(p.MaxOpsPerHour, 10),
			"reputation_score": strconv.FormatUint(p.ReputationScore, 10),
			"constraints_hash": p.ConstraintsHash.String(),
		}); err != nil {
			return err
		}
		updated = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agent updated", zap.String("agent_id", p.AgentID))
	return updated, nil
}

// SetKillSwitch sets the owner's circuit breaker. Idempotent: writing the
// current value again succeeds and re-emits the event.
func (s *Service) SetKillSwitch(ctx context.Context, caller protocol.Identity, agentID string, active bool) (*Profile, error) {
	var updated *Profile
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		profile, err := GetProfile(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if profile.Owner != caller {
			return ErrNotOwner
		}

		profile.KillSwitchActive = active
		profile.UpdatedAt = s.clock.Now().Unix()

		if err := PutProfile(ctx, tx, profile); err != nil {
			return err
		}
		if _, err := s.events.Append(ctx, tx, "agent.kill_switch", caller, agentID, map[string]string{
			"agent_id": agentID,
			"active":   strconv.FormatBool(active),
		}); err != nil {
			return err
		}
		updated = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agent kill switch set",
		zap.String("agent_id", agentID),
		zap.Bool("active", active),
	)
	return updated, nil
}

// Deactivate retires an agent. Owner only; there is no reactivation path,
// so the flag is effectively permanent.
func (s *Service) Deactivate(ctx context.Context, caller protocol.Identity, agentID string) (*Profile, error) {
	var updated *Profile
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		profile, err := GetProfile(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if profile.Owner != caller {
			return ErrNotOwner
		}

		profile.Active = false
		profile.UpdatedAt = s.clock.Now().Unix()

		if err := PutProfile(ctx, tx, profile); err != nil {
			return err
		}
		if _, err := s.events.Append(ctx, tx, "agent.deactivated", caller, agentID, map[string]string{
			"agent_id": agentID,
		}); err != nil {
			return err
		}
		updated = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agent deactivated", zap.String("agent_id", agentID))
	return updated, nil
}

// Get returns the profile for agentID.
func (s *Service) Get(ctx context.Context, agentID string) (*Profile, error) {
	var profile *Profile
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		p, err := GetProfile(ctx, tx, agentID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// VerifyTrust is the counterparty-facing trust check. The checks run in a
// fixed priority order and the first failure wins, so a deactivated agent
// with its kill switch on reports the deactivation:
//
//	registered? active? kill switch? opValue within MaxOpValue? reputation?
//
// The returned reason is one of the Reason* constants.
func (s *Service) VerifyTrust(ctx context.Context, agentID string, opValue uint64) (bool, string, error) {
	trusted := false
	reason := ReasonNotRegistered

	err := s.store.View(ctx, func(tx ledger.Tx) error {
		profile, err := GetProfile(ctx, tx, agentID)
		if err != nil {
			if protocol.IsKind(err, protocol.KindNotFound) {
				return nil // verdict stays "not registered"
			}
			return err
		}

		switch {
		case !profile.Active:
			reason = ReasonDeactivated
		case profile.KillSwitchActive:
			reason = ReasonKillSwitch
		case opValue > profile.MaxOpValue:
			reason = ReasonOverMaxValue
		case profile.ReputationScore < protocol.MinReputationForEscrow:
			reason = ReasonLowReputation
		default:
			trusted = true
			reason = ReasonTrusted
		}
		return nil
	})
	if err != nil {
		return false, "", err
	}
	return trusted, reason, nil
}

// IsActive reports whether the agent is registered and not deactivated.
// Unregistered agents are simply inactive, not an error.
func (s *Service) IsActive(ctx context.Context, agentID string) (bool, error) {
	active := false
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		profile, err := GetProfile(ctx, tx, agentID)
		if err != nil {
			if protocol.IsKind(err, protocol.KindNotFound) {
				return nil
			}
			return err
		}
		active = profile.Active
		return nil
	})
	return active, err
}

// OwnerAgents lists the agent ids registered by owner, in registration
// order.
func (s *Service) OwnerAgents(ctx context.Context, owner protocol.Identity) ([]string, error) {
	var ids []string
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		ids, err = ledger.GetList(ctx, tx, ownerPrefix+owner.String())
		return err
	})
	return ids, err
}

// List enumerates every registered agent id in registration order.
func (s *Service) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		ids, err = ledger.GetList(ctx, tx, allAgentsKey)
		return err
	})
	return ids, err
}
