//go:build ignore

// smoke-protocol.go drives one full protocol pass against a running daemon:
// registration, trust verdicts, ticket anchor/verify/revoke, all three escrow
// settlement paths, balance conservation, and an audit chain walk.
//
// The daemon must run with auth.mode=header. Identities are suffixed with a
// nonce, so repeated runs never collide.
//
// Run with: go run scripts/smoke-protocol.go [-server http://localhost:8080]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/halcyonlabs/trustplane/pkg/client"
)

var (
	serverURL = flag.String("server", envOr("TRUSTPLANE_SMOKE_URL", "http://localhost:8080"), "daemon base URL")
	adminID   = flag.String("admin", envOr("TRUSTPLANE_SMOKE_ADMIN", "ops:root"), "protocol admin identity")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type step struct {
	name    string
	latency time.Duration
	err     error
}

var steps []step

// run executes one smoke step and records its outcome. Returns false on
// failure so the sequence can stop early.
func run(name string, fn func() error) bool {
	start := time.Now()
	err := fn()
	steps = append(steps, step{name: name, latency: time.Since(start), err: err})
	if err != nil {
		fmt.Printf("  ✗ %-44s %s\n", name, err)
		return false
	}
	fmt.Printf("  ✓ %-44s %dms\n", name, time.Since(start).Milliseconds())
	return true
}

func expect(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return fmt.Errorf(format, args...)
}

func main() {
	flag.Parse()
	ctx := context.Background()

	nonce := time.Now().UnixNano()
	var (
		payerID = fmt.Sprintf("smoke:payer-%d", nonce)
		payeeID = fmt.Sprintf("smoke:payee-%d", nonce)
		agentID = fmt.Sprintf("smoke-agent-%d", nonce)

		admin = client.MustNew(*serverURL, client.WithCaller(*adminID))
		payer = client.MustNew(*serverURL, client.WithCaller(payerID))
		payee = client.MustNew(*serverURL, client.WithCaller(payeeID))
	)

	fmt.Printf("smoke pass against %s\n\n", *serverURL)

	ok := run("healthz", func() error {
		return admin.Healthz(ctx)
	})

	ok = ok && run("fund payer account", func() error {
		balance, err := admin.Deposit(ctx, payerID, 10_000)
		if err != nil {
			return err
		}
		return expect(balance.Balance == 10_000, "balance = %d, want 10000", balance.Balance)
	})

	ok = ok && run("register agent", func() error {
		profile, err := payer.RegisterAgent(ctx, client.RegisterAgentRequest{
			AgentID:         agentID,
			AuditLevel:      "gold",
			MaxOpValue:      5_000,
			ReputationScore: 8_000,
		})
		if err != nil {
			return err
		}
		return expect(profile.Active, "new agent not active")
	})

	ok = ok && run("trust verdict within cap", func() error {
		v, err := payer.VerifyTrust(ctx, agentID, 4_000)
		if err != nil {
			return err
		}
		return expect(v.Trusted, "verdict = %q, want trusted", v.Reason)
	})

	ok = ok && run("trust verdict over cap", func() error {
		v, err := payer.VerifyTrust(ctx, agentID, 6_000)
		if err != nil {
			return err
		}
		return expect(!v.Trusted && v.Reason == "Operation exceeds max value",
			"verdict = %v %q", v.Trusted, v.Reason)
	})

	ok = ok && run("kill switch blocks trust", func() error {
		if _, err := payer.SetKillSwitch(ctx, agentID, true); err != nil {
			return err
		}
		v, err := payer.VerifyTrust(ctx, agentID, 1)
		if err != nil {
			return err
		}
		if err := expect(v.Reason == "Kill switch active", "verdict = %q", v.Reason); err != nil {
			return err
		}
		_, err = payer.SetKillSwitch(ctx, agentID, false)
		return err
	})

	credential := fmt.Sprintf("smoke credential %d", nonce)
	ticketHash := client.HashCredential([]byte(credential))

	ok = ok && run("anchor and verify ticket", func() error {
		_, err := payer.AnchorTicket(ctx, client.AnchorTicketRequest{
			TicketHash: ticketHash,
			AgentID:    agentID,
			AuditLevel: "gold",
			ExpiresAt:  time.Now().Add(time.Hour).Unix(),
		})
		if err != nil {
			return err
		}
		check, err := payer.CheckTicket(ctx, ticketHash)
		if err != nil {
			return err
		}
		return expect(check.Valid, "fresh ticket did not verify")
	})

	ok = ok && run("revoke ticket", func() error {
		if _, err := payer.RevokeTicket(ctx, ticketHash); err != nil {
			return err
		}
		check, err := payer.CheckTicket(ctx, ticketHash)
		if err != nil {
			return err
		}
		return expect(!check.Valid && check.Ticket != nil && check.Ticket.Revoked,
			"revoked ticket still valid")
	})

	ok = ok && run("low-risk escrow: payer self-release", func() error {
		created, err := payer.CreateEscrow(ctx, client.CreateEscrowRequest{
			Payee:     payeeID,
			Amount:    1_500,
			RiskScore: 1_000,
		})
		if err != nil {
			return err
		}
		settled, err := payer.ReleaseEscrow(ctx, created.ID)
		if err != nil {
			return err
		}
		return expect(settled.State == "released", "state = %q", settled.State)
	})

	ok = ok && run("high-risk escrow: payer self-refund", func() error {
		created, err := payer.CreateEscrow(ctx, client.CreateEscrowRequest{
			Payee:     payeeID,
			Amount:    500,
			RiskScore: 9_000,
		})
		if err != nil {
			return err
		}
		settled, err := payer.RefundEscrow(ctx, created.ID)
		if err != nil {
			return err
		}
		return expect(settled.State == "refunded", "state = %q", settled.State)
	})

	ok = ok && run("disputed escrow: admin refund", func() error {
		created, err := payer.CreateEscrow(ctx, client.CreateEscrowRequest{
			Payee:     payeeID,
			Amount:    700,
			RiskScore: 5_000,
		})
		if err != nil {
			return err
		}
		if _, err := payer.DisputeEscrow(ctx, created.ID); err != nil {
			return err
		}
		settled, err := admin.RefundEscrow(ctx, created.ID)
		if err != nil {
			return err
		}
		return expect(settled.State == "refunded", "state = %q", settled.State)
	})

	ok = ok && run("balances conserved", func() error {
		payerBal, err := payer.AccountBalance(ctx, payerID)
		if err != nil {
			return err
		}
		payeeBal, err := payee.AccountBalance(ctx, payeeID)
		if err != nil {
			return err
		}
		// 10000 funded, 1500 released to the payee, both refunds returned.
		if err := expect(payerBal.Balance == 8_500, "payer balance = %d, want 8500", payerBal.Balance); err != nil {
			return err
		}
		return expect(payeeBal.Balance == 1_500, "payee balance = %d, want 1500", payeeBal.Balance)
	})

	ok = ok && run("audit chain verifies", func() error {
		check, err := admin.VerifyAuditChain(ctx)
		if err != nil {
			return err
		}
		return expect(check.Valid, "chain broken: %s", check.Error)
	})

	// ── Report ────────────────────────────────────────────────────────────────
	passed := 0
	var total time.Duration
	for _, s := range steps {
		if s.err == nil {
			passed++
		}
		total += s.latency
	}

	fmt.Printf("\n══════════════════════════════════════════════════════\n")
	fmt.Printf("  TrustPlane protocol smoke results\n")
	fmt.Printf("  Steps passed: %d/%d  |  Total time: %dms\n", passed, len(steps), total.Milliseconds())
	fmt.Printf("══════════════════════════════════════════════════════\n")

	if !ok {
		os.Exit(1)
	}
}
