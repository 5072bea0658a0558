package registry

import (
	"context"

	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/pkg/digest"
)

const (
	profilePrefix = "registry/agent/"
	ownerPrefix   = "registry/owner/"
	allAgentsKey  = "registry/agents"

	// CounterKey holds the monotonic count of registered agents.
	CounterKey = "stats/agents"
)

var (
	ErrEmptyAgentID      = protocol.E(protocol.KindInvalidArgument, "empty agent id")
	ErrAlreadyRegistered = protocol.E(protocol.KindAlreadyExists, "agent already registered")
	ErrInvalidReputation = protocol.E(protocol.KindInvalidArgument, "reputation score exceeds maximum")
	ErrNotFound          = protocol.E(protocol.KindNotFound, "agent not found")
	ErrNotOwner          = protocol.E(protocol.KindNotAuthorized, "not agent owner")
)

// Trust-check verdicts returned by VerifyTrust, in priority order.
const (
	ReasonNotRegistered = "Agent not registered"
	ReasonDeactivated   = "Agent deactivated"
	ReasonKillSwitch    = "Kill switch active"
	ReasonOverMaxValue  = "Operation exceeds max value"
	ReasonLowReputation = "Reputation too low"
	ReasonTrusted       = "Agent trusted"
)

// Profile is an agent's trust profile. The agent id is chosen by the owner
// at registration and never changes; profiles are never deleted.
type Profile struct {
	AgentID    string              `json:"agent_id"`
	Owner      protocol.Identity   `json:"owner"`
	AuditLevel protocol.AuditLevel `json:"audit_level"`

	// MaxOpValue caps the per-operation value the trust check approves.
	MaxOpValue uint64 `json:"max_op_value"`
	// MaxOpsPerHour is advisory throughput guidance for counterparties;
	// the engine stores it but never enforces it.
	MaxOpsPerHour uint64 `json:"max_ops_per_hour"`

	KillSwitchActive bool `json:"kill_switch_active"`
	// RequiresX402 is fixed at registration; profile updates leave it alone.
	RequiresX402 bool `json:"requires_x402"`

	ReputationScore uint64 `json:"reputation_score"`
	RegisteredAt    int64  `json:"registered_at"`
	UpdatedAt       int64  `json:"updated_at"`
	Active          bool   `json:"active"`
	ConstraintsHash digest.Digest `json:"constraints_hash"`
}

// GetProfile loads a profile inside a transaction, returning ErrNotFound
// when the agent was never registered.
func GetProfile(ctx context.Context, tx ledger.Tx, agentID string) (*Profile, error) {
	var p Profile
	ok, err := ledger.GetJSON(ctx, tx, profilePrefix+agentID, &p)
	if err != nil {
		return nil, err
	}
	if !ok || p.RegisteredAt == 0 {
		return nil, ErrNotFound
	}
	return &p, nil
}

// PutProfile writes a profile inside a transaction. Exported so the admin
// component can adjust reputation in its own transaction.
func PutProfile(ctx context.Context, tx ledger.Tx, p *Profile) error {
	return ledger.PutJSON(ctx, tx, profilePrefix+p.AgentID, p)
}
