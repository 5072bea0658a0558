// Package anchor records credential commitments. Issuers anchor the digest
// of an off-engine credential together with an expiry; relying parties check
// the digest against the ledger instead of trusting the document directly.
package anchor

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/pkg/digest"
)

// adminChecker reports whether an identity holds the protocol admin role
// within the supplied transaction.
type adminChecker interface {
	IsAdmin(ctx context.Context, tx ledger.Tx, id protocol.Identity) (bool, error)
}

// Service anchors and revokes audit tickets.
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

// AnchorParams carries the attestation fields for a new ticket.
type AnchorParams struct {
	TicketHash digest.Digest
	AgentID    string
	AuditLevel protocol.AuditLevel
	ExpiresAt  int64
}

// Anchor stores a new ticket under its hash. The expiry must be strictly in
// the future; a hash can only ever be anchored once, revoked or not.
func (s *Service) Anchor(ctx context.Context, caller protocol.Identity, p AnchorParams) (*Ticket, error) {
	var ticket *Ticket
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		var existing Ticket
		ok, err := ledger.GetJSON(ctx, tx, ticketKey(p.TicketHash), &existing)
		if err != nil {
			return fmt.Errorf("check ticket %s: %w", p.TicketHash, err)
		}
		if ok && existing.Anchored() {
			return ErrAlreadyAnchored
		}

		now := s.clock.Now().Unix()
		if p.ExpiresAt <= now {
			return ErrExpired
		}

		ticket = &Ticket{
			TicketHash: p.TicketHash,
			Issuer:     caller,
			AgentID:    p.AgentID,
			AuditLevel: p.AuditLevel,
			ExpiresAt:  p.ExpiresAt,
			AnchoredAt: now,
		}
		if err := putTicket(ctx, tx, ticket); err != nil {
			return err
		}
		if err := ledger.AppendList(ctx, tx, agentKey(p.AgentID), p.TicketHash.String()); err != nil {
			return fmt.Errorf("index ticket for %s: %w", p.AgentID, err)
		}
		if _, err := ledger.AddUint64(ctx, tx, CounterKey, 1); err != nil {
			return fmt.Errorf("bump ticket counter: %w", err)
		}

		_, err = s.events.Append(ctx, tx, "ticket.anchored", caller, p.TicketHash.String(), map[string]string{
			"ticket_hash": p.TicketHash.String(),
			"agent_id":    p.AgentID,
			"issuer":      caller.String(),
			"audit_level": string(p.AuditLevel),
			"expires_at":  strconv.FormatInt(p.ExpiresAt, 10),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket anchored",
		zap.String("ticket_hash", ticket.TicketHash.String()),
		zap.String("agent_id", ticket.AgentID),
		zap.Int64("expires_at", ticket.ExpiresAt))
	return ticket, nil
}

// Verify checks a ticket hash. An unknown hash is not an error: it verifies
// as false with no ticket. A known hash returns the stored ticket along with
// its validity at the current time.
func (s *Service) Verify(ctx context.Context, hash digest.Digest) (bool, *Ticket, error) {
	var ticket *Ticket
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var t Ticket
		ok, err := ledger.GetJSON(ctx, tx, ticketKey(hash), &t)
		if err != nil {
			return fmt.Errorf("load ticket %s: %w", hash, err)
		}
		if ok && t.Anchored() {
			ticket = &t
		}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	if ticket == nil {
		return false, nil, nil
	}
	return ticket.ValidAt(s.clock.Now().Unix()), ticket, nil
}

// Revoke permanently invalidates a ticket. Only the issuer or the protocol
// admin may revoke; revocation of an expired ticket is still allowed so the
// record reflects the issuer's judgement.
func (s *Service) Revoke(ctx context.Context, caller protocol.Identity, hash digest.Digest) (*Ticket, error) {
	var ticket *Ticket
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		t, err := getTicket(ctx, tx, hash)
		if err != nil {
			return err
		}
		if t.Revoked {
			return ErrAlreadyRevoked
		}
		if t.Issuer != caller {
			isAdmin, err := s.admins.IsAdmin(ctx, tx, caller)
			if err != nil {
				return err
			}
			if !isAdmin {
				return ErrNotIssuer
			}
		}

		t.Revoked = true
		if err := putTicket(ctx, tx, t); err != nil {
			return err
		}
		ticket = t

		_, err = s.events.Append(ctx, tx, "ticket.revoked", caller, hash.String(), map[string]string{
			"ticket_hash": hash.String(),
			"agent_id":    t.AgentID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket revoked",
		zap.String("ticket_hash", hash.String()),
		zap.String("caller", caller.String()))
	return ticket, nil
}

// Get returns the stored ticket for a hash.
func (s *Service) Get(ctx context.Context, hash digest.Digest) (*Ticket, error) {
	var ticket *Ticket
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		t, err := getTicket(ctx, tx, hash)
		if err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// AgentTickets lists the hashes anchored against an agent id, oldest first.
func (s *Service) AgentTickets(ctx context.Context, agentID string) ([]string, error) {
	var hashes []string
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		hashes, err = ledger.GetList(ctx, tx, agentKey(agentID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}
