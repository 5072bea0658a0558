// Package protocol defines the shared vocabulary of the TrustPlane engine:
// participant identities, audit levels, the injected clock, and the fixed
// protocol constants. Every domain component builds on these types, and the
// host supplies the two ambient facts the engine never derives itself:
// who is calling, and what time it is.
package protocol

import "time"

// Identity names a protocol participant: an agent owner, a ticket issuer,
// a payer or payee, or the protocol admin. Identities are opaque to the
// engine; the host's identity layer decides what they mean. The zero
// Identity ("") is the null address.
type Identity string

// IsZero reports whether the identity is the null address.
func (id Identity) IsZero() bool { return id == "" }

func (id Identity) String() string { return string(id) }

// Clock supplies the engine's notion of time. Operations never call
// time.Now directly; the host injects a Clock so that expiry and
// settlement timestamps are reproducible under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// AuditLevel is the attested audit depth of an agent or credential.
type AuditLevel string

const (
	LevelBronze   AuditLevel = "bronze"
	LevelSilver   AuditLevel = "silver"
	LevelGold     AuditLevel = "gold"
	LevelPlatinum AuditLevel = "platinum"
)

// Valid reports whether l is one of the four defined audit levels.
func (l AuditLevel) Valid() bool {
	switch l {
	case LevelBronze, LevelSilver, LevelGold, LevelPlatinum:
		return true
	}
	return false
}

// Scores and risk values are expressed in basis points (1/100th of a
// percent); amounts are integer minor units of the settlement currency.
const (
	// MaxBasisPoints bounds reputation and risk scores.
	MaxBasisPoints uint64 = 10000

	// HighRiskThreshold is the risk score at or above which the payer may
	// refund a funded escrow without admin involvement.
	HighRiskThreshold uint64 = 7000

	// MaxRiskAutoRelease is the highest risk score at which the payer may
	// release a funded escrow; above it, release requires the admin.
	MaxRiskAutoRelease uint64 = 3000

	// MinReputationForEscrow is the reputation floor applied by the agent
	// trust check.
	MinReputationForEscrow uint64 = 2000
)
