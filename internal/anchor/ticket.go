package anchor

import (
	"context"
	"fmt"

	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/pkg/digest"
)

const (
	ticketPrefix = "anchor/ticket/"
	agentPrefix  = "anchor/agent/"

	// CounterKey tracks the number of anchored tickets.
	CounterKey = "stats/tickets"
)

var (
	ErrAlreadyAnchored = protocol.E(protocol.KindAlreadyExists, "ticket already anchored")
	ErrExpired         = protocol.E(protocol.KindExpired, "ticket already expired")
	ErrNotFound        = protocol.E(protocol.KindNotFound, "ticket not found")
	ErrAlreadyRevoked  = protocol.E(protocol.KindWrongState, "ticket already revoked")
	ErrNotIssuer       = protocol.E(protocol.KindNotAuthorized, "not ticket issuer")
)

// Ticket is an anchored audit attestation. The hash is the key; the payload
// it commits to never passes through the engine. AgentID is attestation
// metadata and is deliberately not checked against the registry.
type Ticket struct {
	TicketHash digest.Digest       `json:"ticket_hash"`
	Issuer     protocol.Identity   `json:"issuer"`
	AgentID    string              `json:"agent_id"`
	AuditLevel protocol.AuditLevel `json:"audit_level"`
	ExpiresAt  int64               `json:"expires_at"`
	AnchoredAt int64               `json:"anchored_at"`
	Revoked    bool                `json:"revoked"`
}

// Anchored reports whether the ticket record exists. A ticket exists exactly
// when its anchor timestamp is set.
func (t *Ticket) Anchored() bool { return t != nil && t.AnchoredAt != 0 }

// ValidAt reports whether the ticket passes verification at the given time:
// anchored, not revoked, and not yet past its expiry.
func (t *Ticket) ValidAt(now int64) bool {
	return t.Anchored() && !t.Revoked && now <= t.ExpiresAt
}

func ticketKey(hash digest.Digest) string { return ticketPrefix + hash.String() }

func agentKey(agentID string) string { return agentPrefix + agentID }

func getTicket(ctx context.Context, tx ledger.Tx, hash digest.Digest) (*Ticket, error) {
	var t Ticket
	ok, err := ledger.GetJSON(ctx, tx, ticketKey(hash), &t)
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", hash, err)
	}
	if !ok || !t.Anchored() {
		return nil, ErrNotFound
	}
	return &t, nil
}

func putTicket(ctx context.Context, tx ledger.Tx, t *Ticket) error {
	if err := ledger.PutJSON(ctx, tx, ticketKey(t.TicketHash), t); err != nil {
		return fmt.Errorf("store ticket %s: %w", t.TicketHash, err)
	}
	return nil
}
