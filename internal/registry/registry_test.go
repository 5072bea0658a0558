package registry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/internal/registry"
)

var ctx = context.Background()

const (
	alice = protocol.Identity("acct:alice")
	bob   = protocol.Identity("acct:bob")
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() time.Time { return time.Unix(c.now, 0) }

func newService() (*registry.Service, *fakeClock, *auditlog.Log) {
	store := ledger.NewMemoryStore()
	clock := &fakeClock{now: 1_700_000_000}
	events := auditlog.New(store, clock)
	return registry.NewService(store, events, clock, nil), clock, events
}

func register(t *testing.T, svc *registry.Service, owner protocol.Identity, id string, rep uint64) *registry.Profile {
	t.Helper()
	p, err := svc.Register(ctx, owner, registry.RegisterParams{
		AgentID:         id,
		AuditLevel:      protocol.LevelSilver,
		MaxOpValue:      1000,
		MaxOpsPerHour:   60,
		ReputationScore: rep,
	})
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return p
}

// ── registration ─────────────────────────────────────────────────────────────

func TestRegisterGetRoundTrip(t *testing.T) {
	svc, clock, _ := newService()

	_, err := svc.Register(ctx, alice, registry.RegisterParams{
		AgentID:         "bot-1",
		AuditLevel:      protocol.LevelGold,
		MaxOpValue:      500,
		MaxOpsPerHour:   120,
		RequiresX402:    true,
		ReputationScore: 7500,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := svc.Get(ctx, "bot-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Owner != alice {
		t.Errorf("owner = %q, want %q", got.Owner, alice)
	}
	if got.AuditLevel != protocol.LevelGold {
		t.Errorf("audit level = %q", got.AuditLevel)
	}
	if got.MaxOpValue != 500 || got.MaxOpsPerHour != 120 {
		t.Errorf("limits = %d/%d", got.MaxOpValue, got.MaxOpsPerHour)
	}
	if !got.RequiresX402 {
		t.Error("requires_x402 lost")
	}
	if got.ReputationScore != 7500 {
		t.Errorf("reputation = %d", got.ReputationScore)
	}
	if !got.Active {
		t.Error("new agent should be active")
	}
	if got.KillSwitchActive {
		t.Error("new agent should have the kill switch off")
	}
	if got.RegisteredAt != clock.now || got.UpdatedAt != clock.now {
		t.Errorf("timestamps = %d/%d, want %d", got.RegisteredAt, got.UpdatedAt, clock.now)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _ := newService()
	register(t, svc, alice, "bot-1", 5000)

	_, err := svc.Register(ctx, bob, registry.RegisterParams{AgentID: "bot-1"})
	if !errors.Is(err, registry.ErrAlreadyRegistered) {
		t.Fatalf("duplicate register: got %v", err)
	}

	// The original registration must be untouched.
	got, err := svc.Get(ctx, "bot-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Owner != alice {
		t.Errorf("owner changed to %q", got.Owner)
	}
}

func TestRegisterEmptyID(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Register(ctx, alice, registry.RegisterParams{AgentID: ""})
	if !errors.Is(err, registry.ErrEmptyAgentID) {
		t.Fatalf("empty id: got %v", err)
	}
}

func TestRegisterReputationBounds(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Register(ctx, alice, registry.RegisterParams{
		AgentID:         "bot-high",
		ReputationScore: 10001,
	})
	if !errors.Is(err, registry.ErrInvalidReputation) {
		t.Fatalf("10001 bp: got %v", err)
	}

	// 10000 is inclusive.
	p, err := svc.Register(ctx, alice, registry.RegisterParams{
		AgentID:         "bot-max",
		ReputationScore: 10000,
	})
	if err != nil {
		t.Fatalf("10000 bp: %v", err)
	}
	if p.ReputationScore != 10000 {
		t.Errorf("reputation = %d", p.ReputationScore)
	}
}

// ── updates ──────────────────────────────────────────────────────────────────

func TestUpdateRewritesProfile(t *testing.T) {
	svc, clock, _ := newService()
	register(t, svc, alice, "bot-1", 5000)

	clock.now += 60
	got, err := svc.Update(ctx, alice, registry.UpdateParams{
		AgentID:         "bot-1",
		AuditLevel:      protocol.LevelPlatinum,
		MaxOpValue:      9000,
		MaxOpsPerHour:   10,
		ReputationScore: 9999,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.AuditLevel != protocol.LevelPlatinum || got.MaxOpValue != 9000 ||
		got.MaxOpsPerHour != 10 || got.ReputationScore != 9999 {
		t.Errorf("update not applied: %+v", got)
	}
	if got.UpdatedAt != clock.now {
		t.Errorf("updated_at = %d, want %d", got.UpdatedAt, clock.now)
	}
	if got.RegisteredAt == clock.now {
		t.Error("registered_at must not move on update")
	}
}

func TestUpdateAuth(t *testing.T) {
	svc, _, _ := newService()
	register(t, svc, alice, "bot-1", 5000)

	if _, err := svc.Update(ctx, bob, registry.UpdateParams{AgentID: "bot-1"}); !errors.Is(err, registry.ErrNotOwner) {
		t.Errorf("stranger update: got %v", err)
	}
	if _, err := svc.Update(ctx, alice, registry.UpdateParams{AgentID: "ghost"}); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("unknown agent: got %v", err)
	}

	_, err := svc.Update(ctx, alice, registry.UpdateParams{AgentID: "bot-1", ReputationScore: 10001})
	if !errors.Is(err, registry.ErrInvalidReputation) {
		t.Errorf("update with 10001 bp: got %v", err)
	}
}

// Updates rewrite the whole updatable field set but never the kill switch,
// the active flag, or the x402 requirement; those are intentionally outside
// Update's reach (known asymmetry, pinned here).
func TestUpdateLeavesControlFlagsAlone(t *testing.T) {
	svc, _, _ := newService()

	if _, err := svc.Register(ctx, alice, registry.RegisterParams{
		AgentID:         "bot-1",
		RequiresX402:    true,
		ReputationScore: 5000,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.SetKillSwitch(ctx, alice, "bot-1", true); err != nil {
		t.Fatalf("SetKillSwitch: %v", err)
	}

	got, err := svc.Update(ctx, alice, registry.UpdateParams{
		AgentID:         "bot-1",
		AuditLevel:      protocol.LevelBronze,
		ReputationScore: 100,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.RequiresX402 {
		t.Error("update must not clear requires_x402")
	}
	if !got.KillSwitchActive {
		t.Error("update must not clear the kill switch")
	}
	if !got.Active {
		t.Error("update must not deactivate")
	}
}

// ── kill switch and deactivation ─────────────────────────────────────────────

func TestSetKillSwitchIdempotent(t *testing.T) {
	svc, _, events := newService()
	register(t, svc, alice, "bot-1", 5000)

	before, err := events.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := svc.SetKillSwitch(ctx, alice, "bot-1", true)
		if err != nil {
			t.Fatalf("SetKillSwitch #%d: %v", i+1, err)
		}
		if !got.KillSwitchActive {
			t.Fatalf("kill switch not set on call %d", i+1)
		}
	}

	// Setting the same value twice re-emits the event both times.
	after, err := events.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if after != before+2 {
		t.Errorf("audit entries grew by %d, want 2", after-before)
	}

	got, err := svc.SetKillSwitch(ctx, alice, "bot-1", false)
	if err != nil {
		t.Fatalf("clear kill switch: %v", err)
	}
	if got.KillSwitchActive {
		t.Error("kill switch not cleared")
	}

	if _, err := svc.SetKillSwitch(ctx, bob, "bot-1", true); !errors.Is(err, registry.ErrNotOwner) {
		t.Errorf("stranger kill switch: got %v", err)
	}
}

func TestDeactivateIsPermanent(t *testing.T) {
	svc, _, _ := newService()
	register(t, svc, alice, "bot-1", 5000)

	if _, err := svc.Deactivate(ctx, bob, "bot-1"); !errors.Is(err, registry.ErrNotOwner) {
		t.Fatalf("stranger deactivate: got %v", err)
	}

	if _, err := svc.Deactivate(ctx, alice, "bot-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	active, err := svc.IsActive(ctx, "bot-1")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Error("agent still active after deactivation")
	}

	// No operation reactivates: a second deactivate is a no-op, and Update
	// leaves the flag untouched.
	if _, err := svc.Deactivate(ctx, alice, "bot-1"); err != nil {
		t.Fatalf("second Deactivate: %v", err)
	}
	got, err := svc.Update(ctx, alice, registry.UpdateParams{AgentID: "bot-1", ReputationScore: 9000})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Active {
		t.Error("update reactivated the agent")
	}
}

// ── trust checks ─────────────────────────────────────────────────────────────

func TestVerifyTrustPriorityOrder(t *testing.T) {
	svc, _, _ := newService()

	// An agent failing several checks at once reports the highest-priority
	// failure: deactivation outranks the kill switch and the value cap.
	if _, err := svc.Register(ctx, alice, registry.RegisterParams{
		AgentID:         "bot-worst",
		MaxOpValue:      10,
		ReputationScore: 100,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.SetKillSwitch(ctx, alice, "bot-worst", true); err != nil {
		t.Fatalf("SetKillSwitch: %v", err)
	}
	if _, err := svc.Deactivate(ctx, alice, "bot-worst"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	trusted, reason, err := svc.VerifyTrust(ctx, "bot-worst", 1_000_000)
	if err != nil {
		t.Fatalf("VerifyTrust: %v", err)
	}
	if trusted || reason != registry.ReasonDeactivated {
		t.Errorf("verdict = %v %q, want false %q", trusted, reason, registry.ReasonDeactivated)
	}

	cases := []struct {
		name    string
		setup   func(t *testing.T, id string)
		opValue uint64
		trusted bool
		reason  string
	}{
		{
			name:    "unregistered",
			setup:   func(t *testing.T, id string) {},
			opValue: 1,
			reason:  registry.ReasonNotRegistered,
		},
		{
			name: "kill switch",
			setup: func(t *testing.T, id string) {
				register(t, svc, alice, id, 5000)
				if _, err := svc.SetKillSwitch(ctx, alice, id, true); err != nil {
					t.Fatal(err)
				}
			},
			opValue: 1,
			reason:  registry.ReasonKillSwitch,
		},
		{
			name: "over max value",
			setup: func(t *testing.T, id string) {
				register(t, svc, alice, id, 5000)
			},
			opValue: 1001,
			reason:  registry.ReasonOverMaxValue,
		},
		{
			name: "reputation below floor",
			setup: func(t *testing.T, id string) {
				register(t, svc, alice, id, 1999)
			},
			opValue: 1,
			reason:  registry.ReasonLowReputation,
		},
		{
			name: "reputation at floor passes",
			setup: func(t *testing.T, id string) {
				register(t, svc, alice, id, 2000)
			},
			opValue: 1,
			trusted: true,
			reason:  registry.ReasonTrusted,
		},
		{
			name: "op value at cap passes",
			setup: func(t *testing.T, id string) {
				register(t, svc, alice, id, 5000)
			},
			opValue: 1000,
			trusted: true,
			reason:  registry.ReasonTrusted,
		},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := "bot-case-" + string(rune('a'+i))
			tc.setup(t, id)

			trusted, reason, err := svc.VerifyTrust(ctx, id, tc.opValue)
			if err != nil {
				t.Fatalf("VerifyTrust: %v", err)
			}
			if trusted != tc.trusted || reason != tc.reason {
				t.Errorf("verdict = %v %q, want %v %q", trusted, reason, tc.trusted, tc.reason)
			}
		})
	}
}

// End-to-end check: a well-reputed gold agent with a small per-operation cap.
func TestVerifyTrustGoldAgent(t *testing.T) {
	svc, _, _ := newService()

	if _, err := svc.Register(ctx, alice, registry.RegisterParams{
		AgentID:         "bot-1",
		AuditLevel:      protocol.LevelGold,
		MaxOpValue:      10,
		ReputationScore: 8500,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	trusted, reason, err := svc.VerifyTrust(ctx, "bot-1", 5)
	if err != nil {
		t.Fatalf("VerifyTrust: %v", err)
	}
	if !trusted || reason != registry.ReasonTrusted {
		t.Errorf("value 5: verdict = %v %q, want trusted", trusted, reason)
	}

	trusted, reason, err = svc.VerifyTrust(ctx, "bot-1", 100)
	if err != nil {
		t.Fatalf("VerifyTrust: %v", err)
	}
	if trusted || reason != registry.ReasonOverMaxValue {
		t.Errorf("value 100: verdict = %v %q, want %q", trusted, reason, registry.ReasonOverMaxValue)
	}
}

// ── enumeration ──────────────────────────────────────────────────────────────

func TestOwnerAgentsAndList(t *testing.T) {
	svc, _, _ := newService()
	register(t, svc, alice, "bot-1", 5000)
	register(t, svc, alice, "bot-2", 5000)
	register(t, svc, bob, "bot-3", 5000)

	aliceIDs, err := svc.OwnerAgents(ctx, alice)
	if err != nil {
		t.Fatalf("OwnerAgents: %v", err)
	}
	if len(aliceIDs) != 2 || aliceIDs[0] != "bot-1" || aliceIDs[1] != "bot-2" {
		t.Errorf("alice agents = %v", aliceIDs)
	}

	none, err := svc.OwnerAgents(ctx, "acct:carol")
	if err != nil {
		t.Fatalf("OwnerAgents: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("carol agents = %v, want none", none)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0] != "bot-1" || all[2] != "bot-3" {
		t.Errorf("all agents = %v", all)
	}
}

func TestGetUnknownAgent(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Get(ctx, "ghost")
	if !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("Get ghost: got %v", err)
	}

	active, err := svc.IsActive(ctx, "ghost")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Error("ghost reported active")
	}
}
