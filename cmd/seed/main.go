// cmd/seed populates a development daemon with demo data over its HTTP API.
//
// Seeding goes through the public API rather than the store, so every write
// lands in the audit chain exactly like live traffic. Running twice is safe:
// accounts are topped up to their targets, existing agents and tickets are
// skipped, and escrows are only created on a fresh daemon.
//
// The daemon must run with auth.mode=header (the default for dev).
//
// Usage:
//
//	go run ./cmd/seed
//	TRUSTPLANE_SEED_URL=http://localhost:8080 go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/halcyonlabs/trustplane/pkg/client"
)

const defaultURL = "http://localhost:8080"

var (
	baseURL       string
	adminIdentity string
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	baseURL = os.Getenv("TRUSTPLANE_SEED_URL")
	if baseURL == "" {
		baseURL = defaultURL
	}
	adminIdentity = os.Getenv("TRUSTPLANE_SEED_ADMIN")
	if adminIdentity == "" {
		adminIdentity = "ops:root"
	}

	ctx := context.Background()
	if err := as("").Healthz(ctx); err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", baseURL, err)
	}
	fmt.Printf("connected to %s (admin %s)\n\n", baseURL, adminIdentity)

	if err := seedAccounts(ctx); err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}
	if err := seedAgents(ctx); err != nil {
		return fmt.Errorf("seed agents: %w", err)
	}
	if err := seedTickets(ctx); err != nil {
		return fmt.Errorf("seed tickets: %w", err)
	}
	if err := seedEscrows(ctx); err != nil {
		return fmt.Errorf("seed escrows: %w", err)
	}

	return printSummary(ctx)
}

// as builds a client acting as the given identity via the X-Caller header.
func as(identity string) *client.Client {
	opts := []client.Option{client.WithTimeout(10 * time.Second)}
	if identity != "" {
		opts = append(opts, client.WithCaller(identity))
	}
	return client.MustNew(baseURL, opts...)
}

// ── Accounts ─────────────────────────────────────────────────────────────────

type seedAccount struct {
	Identity string
	Target   uint64 // desired balance in minor units
}

var accounts = []seedAccount{
	{Identity: "acct:alice", Target: 50_000},
	{Identity: "acct:bob", Target: 25_000},
	{Identity: "acct:carol", Target: 5_000},
}

func seedAccounts(ctx context.Context) error {
	admin := as(adminIdentity)
	for _, a := range accounts {
		current, err := admin.AccountBalance(ctx, a.Identity)
		if err != nil {
			return fmt.Errorf("balance %s: %w", a.Identity, err)
		}
		if current.Balance >= a.Target {
			fmt.Printf("  account %-12s  balance %6d, already funded\n", a.Identity, current.Balance)
			continue
		}
		topped, err := admin.Deposit(ctx, a.Identity, a.Target-current.Balance)
		if err != nil {
			return fmt.Errorf("deposit into %s: %w", a.Identity, err)
		}
		fmt.Printf("  account %-12s  balance %6d\n", a.Identity, topped.Balance)
	}
	return nil
}

// ── Agents ───────────────────────────────────────────────────────────────────

type seedAgent struct {
	Owner         string
	AgentID       string
	AuditLevel    string
	MaxOpValue    uint64
	MaxOpsPerHour uint64
	RequiresX402  bool
	Reputation    uint64 // basis points

	// ConstraintsDoc is hashed client-side when non-empty; the daemon only
	// ever sees the digest.
	ConstraintsDoc string

	// KillSwitch engages the switch right after registration, for demoing
	// the trust-check priority order.
	KillSwitch bool
}

var agents = []seedAgent{

	// One agent per audit level, spanning the interesting trust verdicts.
	{
		Owner:         "acct:alice",
		AgentID:       "billing-runner",
		AuditLevel:    "silver",
		MaxOpValue:    7_500,
		MaxOpsPerHour: 120,
		Reputation:    5_200,
	},
	{
		Owner:          "acct:alice",
		AgentID:        "inference-broker",
		AuditLevel:     "gold",
		MaxOpValue:     25_000,
		MaxOpsPerHour:  600,
		RequiresX402:   true,
		Reputation:     8_200,
		ConstraintsDoc: "inference-broker operating constraints v3: batch only, no PII egress",
	},
	{
		Owner:          "acct:bob",
		AgentID:        "treasury-sentinel",
		AuditLevel:     "platinum",
		MaxOpValue:     100_000,
		MaxOpsPerHour:  60,
		Reputation:     9_600,
		ConstraintsDoc: "treasury-sentinel constraints v1: read-mostly, dual-control transfers",
	},
	// Below the escrow reputation floor and kill-switched: fails trust checks
	// two different ways.
	{
		Owner:         "acct:carol",
		AgentID:       "ops-recon",
		AuditLevel:    "bronze",
		MaxOpValue:    500,
		MaxOpsPerHour: 30,
		Reputation:    1_500,
		KillSwitch:    true,
	},
}

func seedAgents(ctx context.Context) error {
	fmt.Println()
	for _, a := range agents {
		owner := as(a.Owner)

		req := client.RegisterAgentRequest{
			AgentID:         a.AgentID,
			AuditLevel:      a.AuditLevel,
			MaxOpValue:      a.MaxOpValue,
			MaxOpsPerHour:   a.MaxOpsPerHour,
			RequiresX402:    a.RequiresX402,
			ReputationScore: a.Reputation,
		}
		if a.ConstraintsDoc != "" {
			req.ConstraintsHash = client.HashCredential([]byte(a.ConstraintsDoc))
		}

		profile, err := owner.RegisterAgent(ctx, req)
		if err != nil {
			if client.IsKind(err, "already_exists") {
				fmt.Printf("  agent %-18s already registered, skipped\n", a.AgentID)
				continue
			}
			return fmt.Errorf("register %s: %w", a.AgentID, err)
		}

		if a.KillSwitch {
			if _, err := owner.SetKillSwitch(ctx, a.AgentID, true); err != nil {
				return fmt.Errorf("kill switch %s: %w", a.AgentID, err)
			}
		}

		fmt.Printf("  agent %-18s %-9s owner %-12s rep %5d  max-op %6d\n",
			profile.AgentID, profile.AuditLevel, profile.Owner,
			profile.ReputationScore, profile.MaxOpValue)
	}
	return nil
}

// ── Tickets ──────────────────────────────────────────────────────────────────

type seedTicket struct {
	Issuer     string
	Credential string // hashed client-side
	AgentID    string
	AuditLevel string
	TTL        time.Duration
}

var tickets = []seedTicket{
	{
		Issuer:     "auditor:northcell",
		Credential: "northcell audit 2026-Q3: inference-broker passes gold control set",
		AgentID:    "inference-broker",
		AuditLevel: "gold",
		TTL:        90 * 24 * time.Hour,
	},
	{
		Issuer:     "auditor:northcell",
		Credential: "northcell audit 2026-Q3: treasury-sentinel passes platinum control set",
		AgentID:    "treasury-sentinel",
		AuditLevel: "platinum",
		TTL:        180 * 24 * time.Hour,
	},
}

func seedTickets(ctx context.Context) error {
	fmt.Println()
	for _, t := range tickets {
		hash := client.HashCredential([]byte(t.Credential))

		ticket, err := as(t.Issuer).AnchorTicket(ctx, client.AnchorTicketRequest{
			TicketHash: hash,
			AgentID:    t.AgentID,
			AuditLevel: t.AuditLevel,
			ExpiresAt:  time.Now().Add(t.TTL).Unix(),
		})
		if err != nil {
			if client.IsKind(err, "already_exists") {
				fmt.Printf("  ticket %s…  already anchored, skipped\n", hash[:12])
				continue
			}
			return fmt.Errorf("anchor ticket for %s: %w", t.AgentID, err)
		}
		fmt.Printf("  ticket %s…  agent %-18s %-9s expires %s\n",
			ticket.TicketHash[:12], ticket.AgentID, ticket.AuditLevel,
			time.Unix(ticket.ExpiresAt, 0).UTC().Format("2006-01-02"))
	}
	return nil
}

// ── Escrows ──────────────────────────────────────────────────────────────────

type seedEscrow struct {
	Payer       string
	Payee       string
	Amount      uint64
	Risk        uint64 // basis points
	Description string

	// Outcome after funding: "released" (by the payer, so Risk must be at or
	// below the auto-release threshold), "disputed" (by the payer), or ""
	// to leave the escrow funded.
	Outcome string
}

var escrows = []seedEscrow{
	{
		Payer:       "acct:alice",
		Payee:       "acct:bob",
		Amount:      1_800,
		Risk:        1_200,
		Description: "batch inference run #4411",
		Outcome:     "released",
	},
	{
		Payer:       "acct:alice",
		Payee:       "acct:carol",
		Amount:      4_000,
		Risk:        5_500,
		Description: "content pipeline retainer, September",
		Outcome:     "disputed",
	},
	{
		Payer:       "acct:bob",
		Payee:       "acct:alice",
		Amount:      900,
		Risk:        8_600,
		Description: "unattended recon sweep",
	},
}

func seedEscrows(ctx context.Context) error {
	fmt.Println()

	// Escrow ids are sequential with no natural key, so reruns would pile up
	// duplicates. Seed them only on a fresh daemon.
	stats, err := as("").Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if stats.TotalEscrows > 0 {
		fmt.Printf("  escrows already present (%d), skipped\n", stats.TotalEscrows)
		return nil
	}

	for _, e := range escrows {
		created, err := as(e.Payer).CreateEscrow(ctx, client.CreateEscrowRequest{
			Payee:              e.Payee,
			Amount:             e.Amount,
			RiskScore:          e.Risk,
			ServiceDescription: e.Description,
		})
		if err != nil {
			return fmt.Errorf("create escrow %s → %s: %w", e.Payer, e.Payee, err)
		}

		settled := created
		switch e.Outcome {
		case "released":
			settled, err = as(e.Payer).ReleaseEscrow(ctx, created.ID)
		case "disputed":
			settled, err = as(e.Payer).DisputeEscrow(ctx, created.ID)
		}
		if err != nil {
			return fmt.Errorf("%s escrow %d: %w", e.Outcome, created.ID, err)
		}

		fmt.Printf("  escrow %d  %s → %s  amount %5d  risk %5d  %s\n",
			settled.ID, settled.Payer, settled.Payee, settled.Amount,
			settled.RiskScore, settled.State)
	}
	return nil
}

// ── Summary ──────────────────────────────────────────────────────────────────

func printSummary(ctx context.Context) error {
	c := as("")

	stats, err := c.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	check, err := c.VerifyAuditChain(ctx)
	if err != nil {
		return fmt.Errorf("verify audit chain: %w", err)
	}
	chain := "intact"
	if !check.Valid {
		chain = "BROKEN: " + check.Error
	}

	fmt.Printf("\nseed complete: %d agents, %d tickets, %d escrows, volume %d\n",
		stats.TotalAgents, stats.TotalTickets, stats.TotalEscrows, stats.TotalVolume)
	fmt.Printf("audit chain %s\n", chain)
	return nil
}
