package client

// AgentProfile mirrors the registry record returned by the daemon.
type AgentProfile struct {
	AgentID          string `json:"agent_id"`
	Owner            string `json:"owner"`
	AuditLevel       string `json:"audit_level"`
	MaxOpValue       uint64 `json:"max_op_value"`
	MaxOpsPerHour    uint64 `json:"max_ops_per_hour"`
	KillSwitchActive bool   `json:"kill_switch_active"`
	RequiresX402     bool   `json:"requires_x402"`
	ReputationScore  uint64 `json:"reputation_score"`
	RegisteredAt     int64  `json:"registered_at"`
	UpdatedAt        int64  `json:"updated_at"`
	Active           bool   `json:"active"`
	ConstraintsHash  string `json:"constraints_hash"`
}

// RegisterAgentRequest is the payload for RegisterAgent. AuditLevel is one
// of bronze, silver, gold, platinum (empty defaults to bronze); hashes are
// 64-char hex strings.
type RegisterAgentRequest struct {
	AgentID         string `json:"agent_id"`
	AuditLevel      string `json:"audit_level,omitempty"`
	MaxOpValue      uint64 `json:"max_op_value,omitempty"`
	MaxOpsPerHour   uint64 `json:"max_ops_per_hour,omitempty"`
	RequiresX402    bool   `json:"requires_x402,omitempty"`
	ReputationScore uint64 `json:"reputation_score,omitempty"`
	ConstraintsHash string `json:"constraints_hash,omitempty"`
}

// UpdateAgentRequest is the payload for UpdateAgent. It rewrites the
// profile's advisory fields; the kill switch, active flag, and x402
// requirement are controlled by their own endpoints.
type UpdateAgentRequest struct {
	AuditLevel      string `json:"audit_level,omitempty"`
	MaxOpValue      uint64 `json:"max_op_value,omitempty"`
	MaxOpsPerHour   uint64 `json:"max_ops_per_hour,omitempty"`
	ReputationScore uint64 `json:"reputation_score,omitempty"`
	ConstraintsHash string `json:"constraints_hash,omitempty"`
}

// TrustVerdict is the result of a trust check. Reason is stable and
// machine-checkable.
type TrustVerdict struct {
	Trusted bool   `json:"trusted"`
	Reason  string `json:"reason"`
}

// Ticket is an anchored credential ticket.
type Ticket struct {
	TicketHash string `json:"ticket_hash"`
	Issuer     string `json:"issuer"`
	AgentID    string `json:"agent_id"`
	AuditLevel string `json:"audit_level"`
	ExpiresAt  int64  `json:"expires_at"`
	AnchoredAt int64  `json:"anchored_at"`
	Revoked    bool   `json:"revoked"`
}

// AnchorTicketRequest is the payload for AnchorTicket.
type AnchorTicketRequest struct {
	TicketHash string `json:"ticket_hash"`
	AgentID    string `json:"agent_id"`
	AuditLevel string `json:"audit_level,omitempty"`
	ExpiresAt  int64  `json:"expires_at"`
}

// TicketCheck is the verification verdict for a ticket hash. Ticket is nil
// when nothing is anchored under the hash.
type TicketCheck struct {
	Valid  bool    `json:"valid"`
	Ticket *Ticket `json:"ticket,omitempty"`
}

// Escrow mirrors a settlement escrow record. State is one of funded,
// released, disputed, refunded.
type Escrow struct {
	ID                 uint64 `json:"id"`
	Payer              string `json:"payer"`
	Payee              string `json:"payee"`
	Amount             uint64 `json:"amount"`
	ServiceDescription string `json:"service_description"`
	RiskScore          uint64 `json:"risk_score"`
	State              string `json:"state"`
	CreatedAt          int64  `json:"created_at"`
	ReleasedAt         int64  `json:"released_at,omitempty"`
	SettlementHash     string `json:"settlement_hash"`
}

// CreateEscrowRequest is the payload for CreateEscrow. The caller is the
// payer; Amount moves into custody at creation.
type CreateEscrowRequest struct {
	Payee              string `json:"payee"`
	ServiceDescription string `json:"service_description,omitempty"`
	RiskScore          uint64 `json:"risk_score"`
	SettlementHash     string `json:"settlement_hash,omitempty"`
	Amount             uint64 `json:"amount"`
}

// ProtocolStats are the monotonic protocol counters.
type ProtocolStats struct {
	TotalAgents  uint64 `json:"total_agents"`
	TotalTickets uint64 `json:"total_tickets"`
	TotalEscrows uint64 `json:"total_escrows"`
	TotalVolume  uint64 `json:"total_volume"`
}

// AuditEvent is one entry of the daemon's hash-chained journal.
type AuditEvent struct {
	Seq      uint64            `json:"seq"`
	Time     int64             `json:"time"`
	Kind     string            `json:"kind"`
	Actor    string            `json:"actor"`
	Ref      string            `json:"ref"`
	Data     map[string]string `json:"data,omitempty"`
	PrevHash string            `json:"prev_hash"`
	Hash     string            `json:"hash"`
}

// AuditOverview is the journal summary: entry count (genesis included) and
// the chain root hash.
type AuditOverview struct {
	Entries uint64 `json:"entries"`
	Root    string `json:"root"`
}

// AuditCheck is the server-side chain verification verdict.
type AuditCheck struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Balance is an account's treasury balance.
type Balance struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}
