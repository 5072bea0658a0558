package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/admin"
	"github.com/halcyonlabs/trustplane/internal/anchor"
	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/escrow"
	"github.com/halcyonlabs/trustplane/internal/hostauth"
	"github.com/halcyonlabs/trustplane/internal/httpapi"
	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/internal/registry"
	"github.com/halcyonlabs/trustplane/internal/treasury"
	"github.com/halcyonlabs/trustplane/pkg/digest"
)

const (
	opsRoot  = protocol.Identity("ops:root")
	alice    = protocol.Identity("acct:alice")
	bob      = protocol.Identity("acct:bob")
	stranger = protocol.Identity("acct:mallory")
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() time.Time { return time.Unix(c.now, 0) }

// ── Fixture ──────────────────────────────────────────────────────────────

type stack struct {
	clock    *fakeClock
	events   *auditlog.Log
	admins   *admin.Service
	agents   *registry.Service
	tickets  *anchor.Service
	escrows  *escrow.Service
	accounts *treasury.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	store := ledger.NewMemoryStore()
	clock := &fakeClock{now: 1_700_000_000}
	events := auditlog.New(store, clock)
	admins := admin.NewService(store, events, clock, zap.NewNop())

	s := &stack{
		clock:    clock,
		events:   events,
		admins:   admins,
		agents:   registry.NewService(store, events, clock, zap.NewNop()),
		tickets:  anchor.NewService(store, events, clock, admins, zap.NewNop()),
		escrows:  escrow.NewService(store, events, clock, admins, zap.NewNop()),
		accounts: treasury.NewService(store, events, admins, zap.NewNop()),
	}
	if err := admins.Bootstrap(context.Background(), opsRoot); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	return s
}

func (s *stack) config() httpapi.Config {
	return httpapi.Config{
		Registry: s.agents,
		Anchor:   s.tickets,
		Escrow:   s.escrows,
		Admins:   s.admins,
		Treasury: s.accounts,
		Audit:    s.events,
		AuthMode: httpapi.AuthModeHeader,
	}
}

type testAPI struct {
	*stack
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := newStack(t)
	return &testAPI{stack: s, router: httpapi.NewRouter(s.config())}
}

func (a *testAPI) do(t *testing.T, method, path string, caller protocol.Identity, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if !caller.IsZero() {
		req.Header.Set(httpapi.CallerHeader, caller.String())
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, code int) map[string]any {
	t.Helper()
	if w.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, w.Code, w.Body.String())
	}
	return decode(t, w)
}

func wantKind(t *testing.T, resp map[string]any, kind string) {
	t.Helper()
	if resp["kind"] != kind {
		t.Errorf("expected error kind %q, got %v (error=%v)", kind, resp["kind"], resp["error"])
	}
}

func (a *testAPI) registerAgent(t *testing.T, owner protocol.Identity, id string, maxOp, rep uint64) {
	t.Helper()
	body := fmt.Sprintf(`{
		"agent_id": %q,
		"audit_level": "gold",
		"max_op_value": %d,
		"max_ops_per_hour": 100,
		"reputation_score": %d
	}`, id, maxOp, rep)
	w := a.do(t, http.MethodPost, "/api/v1/agents", owner, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("register agent: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func (a *testAPI) deposit(t *testing.T, account protocol.Identity, amount uint64) {
	t.Helper()
	body := fmt.Sprintf(`{"account": %q, "amount": %d}`, account, amount)
	w := a.do(t, http.MethodPost, "/api/v1/treasury/deposits", opsRoot, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("deposit: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func (a *testAPI) balance(t *testing.T, account protocol.Identity) uint64 {
	t.Helper()
	w := a.do(t, http.MethodGet, "/api/v1/treasury/accounts/"+account.String(), "", "")
	resp := wantStatus(t, w, http.StatusOK)
	return uint64(resp["balance"].(float64))
}

func (a *testAPI) createEscrow(t *testing.T, payer protocol.Identity, risk, amount uint64) uint64 {
	t.Helper()
	body := fmt.Sprintf(`{
		"payee": %q,
		"service_description": "inference batch",
		"risk_score": %d,
		"amount": %d
	}`, bob, risk, amount)
	w := a.do(t, http.MethodPost, "/api/v1/escrows", payer, body)
	resp := wantStatus(t, w, http.StatusCreated)
	return uint64(resp["id"].(float64))
}

// ── Health ───────────────────────────────────────────────────────────────

func TestHealthz_200(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/healthz", "", "")
	resp := wantStatus(t, w, http.StatusOK)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
}

// ── Agents ───────────────────────────────────────────────────────────────

func TestRegisterAgent_201(t *testing.T) {
	api := newTestAPI(t)

	body := `{
		"agent_id": "bot-1",
		"audit_level": "gold",
		"max_op_value": 10,
		"reputation_score": 8500
	}`
	w := api.do(t, http.MethodPost, "/api/v1/agents", alice, body)
	resp := wantStatus(t, w, http.StatusCreated)

	if resp["agent_id"] != "bot-1" {
		t.Errorf("expected agent_id bot-1, got %v", resp["agent_id"])
	}
	if resp["owner"] != alice.String() {
		t.Errorf("expected owner %s, got %v", alice, resp["owner"])
	}
	if resp["active"] != true {
		t.Errorf("expected active agent, got %v", resp["active"])
	}
	if resp["audit_level"] != "gold" {
		t.Errorf("expected gold audit level, got %v", resp["audit_level"])
	}
}

func TestRegisterAgent_401_missingCaller(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/api/v1/agents", "", `{"agent_id": "bot-1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRegisterAgent_409_duplicate(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)

	w := api.do(t, http.MethodPost, "/api/v1/agents", bob, `{"agent_id": "bot-1"}`)
	resp := wantStatus(t, w, http.StatusConflict)
	wantKind(t, resp, "already_exists")
}

func TestRegisterAgent_400(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{invalid`},
		{"bad audit level", `{"agent_id": "bot-1", "audit_level": "diamond"}`},
		{"bad constraints hash", `{"agent_id": "bot-1", "constraints_hash": "zz"}`},
		{"empty agent id", `{"audit_level": "gold"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/v1/agents", alice, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetAgent_404(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/api/v1/agents/ghost", "", "")
	resp := wantStatus(t, w, http.StatusNotFound)
	wantKind(t, resp, "not_found")
}

func TestVerifyTrust_200_verdicts(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)

	cases := []struct {
		name    string
		path    string
		trusted bool
		reason  string
	}{
		{"within limit", "/api/v1/agents/bot-1/trust?op_value=5", true, "Agent trusted"},
		{"over limit", "/api/v1/agents/bot-1/trust?op_value=100", false, "Operation exceeds max value"},
		{"unregistered", "/api/v1/agents/ghost/trust?op_value=1", false, "Agent not registered"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, http.MethodGet, tc.path, "", "")
			resp := wantStatus(t, w, http.StatusOK)
			if resp["trusted"] != tc.trusted {
				t.Errorf("expected trusted=%v, got %v", tc.trusted, resp["trusted"])
			}
			if resp["reason"] != tc.reason {
				t.Errorf("expected reason %q, got %v", tc.reason, resp["reason"])
			}
		})
	}

	w := api.do(t, http.MethodGet, "/api/v1/agents/bot-1/trust?op_value=nope", "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad op_value, got %d", w.Code)
	}
}

func TestUpdateAgent_403_notOwner(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)

	w := api.do(t, http.MethodPatch, "/api/v1/agents/bot-1", stranger, `{"max_op_value": 99}`)
	resp := wantStatus(t, w, http.StatusForbidden)
	wantKind(t, resp, "not_authorized")
}

func TestKillSwitch_200(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)

	w := api.do(t, http.MethodPost, "/api/v1/agents/bot-1/kill-switch", alice, `{"active": true}`)
	resp := wantStatus(t, w, http.StatusOK)
	if resp["kill_switch_active"] != true {
		t.Errorf("expected kill switch on, got %v", resp["kill_switch_active"])
	}

	w = api.do(t, http.MethodGet, "/api/v1/agents/bot-1/trust?op_value=1", "", "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["reason"] != "Kill switch active" {
		t.Errorf("expected kill switch reason, got %v", resp["reason"])
	}

	// body must carry the target state
	w = api.do(t, http.MethodPost, "/api/v1/agents/bot-1/kill-switch", alice, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing active field, got %d", w.Code)
	}
}

func TestDeactivateAgent_200(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)

	w := api.do(t, http.MethodPost, "/api/v1/agents/bot-1/deactivate", alice, "")
	resp := wantStatus(t, w, http.StatusOK)
	if resp["active"] != false {
		t.Errorf("expected inactive agent, got %v", resp["active"])
	}

	w = api.do(t, http.MethodGet, "/api/v1/agents/bot-1/active", "", "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["active"] != false {
		t.Errorf("expected active=false, got %v", resp["active"])
	}
}

func TestListAgents_200_ownerFilter(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)
	api.registerAgent(t, alice, "bot-2", 10, 8500)
	api.registerAgent(t, bob, "bot-3", 10, 8500)

	w := api.do(t, http.MethodGet, "/api/v1/agents?owner="+alice.String(), "", "")
	resp := wantStatus(t, w, http.StatusOK)
	if got := len(resp["agents"].([]any)); got != 2 {
		t.Errorf("expected 2 agents for owner, got %d", got)
	}

	w = api.do(t, http.MethodGet, "/api/v1/agents", "", "")
	resp = wantStatus(t, w, http.StatusOK)
	if got := len(resp["agents"].([]any)); got != 3 {
		t.Errorf("expected 3 agents, got %d", got)
	}
}

// ── Tickets ──────────────────────────────────────────────────────────────

func TestAnchorTicket_201_andVerify(t *testing.T) {
	api := newTestAPI(t)
	hash := digest.Keccak256([]byte("credential")).String()

	body := fmt.Sprintf(`{
		"ticket_hash": %q,
		"agent_id": "bot-1",
		"audit_level": "silver",
		"expires_at": %d
	}`, hash, api.clock.now+3600)
	w := api.do(t, http.MethodPost, "/api/v1/tickets", alice, body)
	resp := wantStatus(t, w, http.StatusCreated)
	if resp["issuer"] != alice.String() {
		t.Errorf("expected issuer %s, got %v", alice, resp["issuer"])
	}

	w = api.do(t, http.MethodGet, "/api/v1/tickets/"+hash, "", "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["valid"] != true {
		t.Fatalf("expected valid ticket, got %s", w.Body.String())
	}
	ticket := resp["ticket"].(map[string]any)
	if ticket["agent_id"] != "bot-1" {
		t.Errorf("expected agent_id bot-1, got %v", ticket["agent_id"])
	}

	// past expiry the verdict flips but the ticket is still returned
	api.clock.now += 3601
	w = api.do(t, http.MethodGet, "/api/v1/tickets/"+hash, "", "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["valid"] != false {
		t.Errorf("expected expired ticket to be invalid, got %s", w.Body.String())
	}
	if resp["ticket"] == nil {
		t.Error("expected expired ticket to still be returned")
	}
}

func TestAnchorTicket_410_expired(t *testing.T) {
	api := newTestAPI(t)
	hash := digest.Keccak256([]byte("stale")).String()

	body := fmt.Sprintf(`{"ticket_hash": %q, "agent_id": "bot-1", "expires_at": %d}`, hash, api.clock.now)
	w := api.do(t, http.MethodPost, "/api/v1/tickets", alice, body)
	resp := wantStatus(t, w, http.StatusGone)
	wantKind(t, resp, "expired")
}

func TestVerifyTicket_200_unknown(t *testing.T) {
	api := newTestAPI(t)
	hash := digest.Keccak256([]byte("nowhere")).String()

	w := api.do(t, http.MethodGet, "/api/v1/tickets/"+hash, "", "")
	resp := wantStatus(t, w, http.StatusOK)
	if resp["valid"] != false {
		t.Errorf("expected unknown ticket to be invalid, got %s", w.Body.String())
	}

	w = api.do(t, http.MethodGet, "/api/v1/tickets/nothex", "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed hash, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRevokeTicket_auth(t *testing.T) {
	api := newTestAPI(t)
	hash := digest.Keccak256([]byte("revocable")).String()

	body := fmt.Sprintf(`{"ticket_hash": %q, "agent_id": "bot-1", "expires_at": %d}`, hash, api.clock.now+3600)
	api.do(t, http.MethodPost, "/api/v1/tickets", alice, body)

	w := api.do(t, http.MethodPost, "/api/v1/tickets/"+hash+"/revoke", stranger, "")
	resp := wantStatus(t, w, http.StatusForbidden)
	wantKind(t, resp, "not_authorized")

	w = api.do(t, http.MethodPost, "/api/v1/tickets/"+hash+"/revoke", alice, "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["revoked"] != true {
		t.Errorf("expected revoked ticket, got %v", resp["revoked"])
	}

	w = api.do(t, http.MethodPost, "/api/v1/tickets/"+hash+"/revoke", alice, "")
	resp = wantStatus(t, w, http.StatusConflict)
	wantKind(t, resp, "wrong_state")

	ghost := digest.Keccak256([]byte("ghost")).String()
	w = api.do(t, http.MethodPost, "/api/v1/tickets/"+ghost+"/revoke", alice, "")
	wantStatus(t, w, http.StatusNotFound)
}

func TestAgentTickets_200(t *testing.T) {
	api := newTestAPI(t)
	for i := 0; i < 2; i++ {
		hash := digest.Keccak256([]byte{byte(i)}).String()
		body := fmt.Sprintf(`{"ticket_hash": %q, "agent_id": "bot-1", "expires_at": %d}`, hash, api.clock.now+3600)
		api.do(t, http.MethodPost, "/api/v1/tickets", alice, body)
	}

	w := api.do(t, http.MethodGet, "/api/v1/agents/bot-1/tickets", "", "")
	resp := wantStatus(t, w, http.StatusOK)
	if got := len(resp["tickets"].([]any)); got != 2 {
		t.Errorf("expected 2 tickets, got %d", got)
	}

	w = api.do(t, http.MethodGet, "/api/v1/agents/ghost/tickets", "", "")
	resp = wantStatus(t, w, http.StatusOK)
	if got := len(resp["tickets"].([]any)); got != 0 {
		t.Errorf("expected no tickets, got %d", got)
	}
}

// ── Escrows ──────────────────────────────────────────────────────────────

func TestEscrowHighRisk_endToEnd(t *testing.T) {
	api := newTestAPI(t)
	api.deposit(t, alice, 100)

	id := api.createEscrow(t, alice, 8000, 1)
	if id != 0 {
		t.Fatalf("expected first escrow id 0, got %d", id)
	}

	// high risk: payer cannot self-release
	w := api.do(t, http.MethodPost, "/api/v1/escrows/0/release", alice, "")
	resp := wantStatus(t, w, http.StatusForbidden)
	wantKind(t, resp, "not_authorized")

	w = api.do(t, http.MethodPost, "/api/v1/escrows/0/release", opsRoot, "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["state"] != "released" {
		t.Errorf("expected released state, got %v", resp["state"])
	}

	if got := api.balance(t, bob); got != 1 {
		t.Errorf("expected payee balance 1, got %d", got)
	}
	if got := api.balance(t, alice); got != 99 {
		t.Errorf("expected payer balance 99, got %d", got)
	}
}

func TestEscrowCreate_402_insufficientFunds(t *testing.T) {
	api := newTestAPI(t)

	body := fmt.Sprintf(`{"payee": %q, "risk_score": 1000, "amount": 50}`, bob)
	w := api.do(t, http.MethodPost, "/api/v1/escrows", alice, body)
	resp := wantStatus(t, w, http.StatusPaymentRequired)
	wantKind(t, resp, "transfer_failed")
}

func TestEscrowCreate_400_validation(t *testing.T) {
	api := newTestAPI(t)
	api.deposit(t, alice, 100)

	cases := []struct {
		name string
		body string
	}{
		{"zero amount", fmt.Sprintf(`{"payee": %q, "amount": 0}`, bob)},
		{"missing payee", `{"amount": 10}`},
		{"self escrow", fmt.Sprintf(`{"payee": %q, "amount": 10}`, alice)},
		{"risk too high", fmt.Sprintf(`{"payee": %q, "amount": 10, "risk_score": 10001}`, bob)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/v1/escrows", alice, tc.body)
			resp := wantStatus(t, w, http.StatusBadRequest)
			wantKind(t, resp, "invalid_argument")
		})
	}
}

func TestEscrowDisputeRefund_flow(t *testing.T) {
	api := newTestAPI(t)
	api.deposit(t, alice, 100)
	id := api.createEscrow(t, alice, 5000, 100)
	path := fmt.Sprintf("/api/v1/escrows/%d", id)

	w := api.do(t, http.MethodPost, path+"/dispute", stranger, "")
	resp := wantStatus(t, w, http.StatusForbidden)
	wantKind(t, resp, "not_authorized")

	w = api.do(t, http.MethodPost, path+"/dispute", alice, "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["state"] != "disputed" {
		t.Fatalf("expected disputed state, got %v", resp["state"])
	}

	// disputed escrows refund only by admin
	w = api.do(t, http.MethodPost, path+"/refund", alice, "")
	resp = wantStatus(t, w, http.StatusForbidden)
	wantKind(t, resp, "not_authorized")

	w = api.do(t, http.MethodPost, path+"/refund", opsRoot, "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["state"] != "refunded" {
		t.Fatalf("expected refunded state, got %v", resp["state"])
	}
	if got := api.balance(t, alice); got != 100 {
		t.Errorf("expected payer made whole, got %d", got)
	}

	// terminal: release and refund both refuse
	w = api.do(t, http.MethodPost, path+"/release", opsRoot, "")
	resp = wantStatus(t, w, http.StatusConflict)
	wantKind(t, resp, "wrong_state")

	w = api.do(t, http.MethodPost, path+"/refund", opsRoot, "")
	resp = wantStatus(t, w, http.StatusConflict)
	wantKind(t, resp, "wrong_state")
}

func TestGetEscrow_404(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/escrows/99", "", "")
	resp := wantStatus(t, w, http.StatusNotFound)
	wantKind(t, resp, "not_found")

	w = api.do(t, http.MethodGet, "/api/v1/escrows/banana", "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
}

// ── Admin, treasury, stats ───────────────────────────────────────────────

func TestAdmin_200_current(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/api/v1/admin", "", "")
	resp := wantStatus(t, w, http.StatusOK)
	if resp["admin"] != opsRoot.String() {
		t.Errorf("expected admin %s, got %v", opsRoot, resp["admin"])
	}
}

func TestTransferAdmin_403_stranger(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/api/v1/admin/transfer", stranger, fmt.Sprintf(`{"new_admin": %q}`, stranger))
	resp := wantStatus(t, w, http.StatusForbidden)
	wantKind(t, resp, "not_authorized")
}

func TestTransferAdmin_200(t *testing.T) {
	api := newTestAPI(t)
	next := protocol.Identity("ops:next")

	w := api.do(t, http.MethodPost, "/api/v1/admin/transfer", opsRoot, fmt.Sprintf(`{"new_admin": %q}`, next))
	resp := wantStatus(t, w, http.StatusOK)
	if resp["admin"] != next.String() {
		t.Errorf("expected new admin %s, got %v", next, resp["admin"])
	}

	// the old admin has no residual authority
	w = api.do(t, http.MethodPost, "/api/v1/admin/transfer", opsRoot, fmt.Sprintf(`{"new_admin": %q}`, opsRoot))
	wantStatus(t, w, http.StatusForbidden)
}

func TestSetReputation_200_adminOnly(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)

	w := api.do(t, http.MethodPut, "/api/v1/admin/agents/bot-1/reputation", alice, `{"reputation_score": 1}`)
	resp := wantStatus(t, w, http.StatusForbidden)
	wantKind(t, resp, "not_authorized")

	w = api.do(t, http.MethodPut, "/api/v1/admin/agents/bot-1/reputation", opsRoot, `{"reputation_score": 4242}`)
	resp = wantStatus(t, w, http.StatusOK)
	if got := uint64(resp["reputation_score"].(float64)); got != 4242 {
		t.Errorf("expected reputation 4242, got %d", got)
	}
}

func TestStats_200(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)
	api.registerAgent(t, bob, "bot-2", 10, 8500)
	api.deposit(t, alice, 100)
	api.createEscrow(t, alice, 1000, 30)
	api.createEscrow(t, alice, 1000, 20)

	w := api.do(t, http.MethodGet, "/api/v1/stats", "", "")
	resp := wantStatus(t, w, http.StatusOK)

	if got := int(resp["total_agents"].(float64)); got != 2 {
		t.Errorf("expected 2 agents, got %d", got)
	}
	if got := int(resp["total_escrows"].(float64)); got != 2 {
		t.Errorf("expected 2 escrows, got %d", got)
	}
	if got := int(resp["total_volume"].(float64)); got != 50 {
		t.Errorf("expected volume 50, got %d", got)
	}
}

func TestTreasury_deposit_403_notAdmin(t *testing.T) {
	api := newTestAPI(t)
	body := fmt.Sprintf(`{"account": %q, "amount": 10}`, alice)
	w := api.do(t, http.MethodPost, "/api/v1/treasury/deposits", alice, body)
	resp := wantStatus(t, w, http.StatusForbidden)
	wantKind(t, resp, "not_authorized")
}

func TestTreasury_withdraw(t *testing.T) {
	api := newTestAPI(t)
	api.deposit(t, alice, 100)

	w := api.do(t, http.MethodPost, "/api/v1/treasury/withdrawals", alice, `{"amount": 40}`)
	resp := wantStatus(t, w, http.StatusOK)
	if got := uint64(resp["balance"].(float64)); got != 60 {
		t.Errorf("expected balance 60, got %d", got)
	}

	w = api.do(t, http.MethodPost, "/api/v1/treasury/withdrawals", alice, `{"amount": 1000}`)
	resp = wantStatus(t, w, http.StatusPaymentRequired)
	wantKind(t, resp, "transfer_failed")
}

// ── Audit log ────────────────────────────────────────────────────────────

func TestAudit_200_overviewAndVerify(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)

	w := api.do(t, http.MethodGet, "/api/v1/audit", "", "")
	resp := wantStatus(t, w, http.StatusOK)
	// genesis + admin.bootstrapped + agent.registered
	if got := int(resp["entries"].(float64)); got != 3 {
		t.Errorf("expected 3 audit entries, got %d", got)
	}
	if resp["root"] == "" {
		t.Error("expected non-empty chain root")
	}

	w = api.do(t, http.MethodGet, "/api/v1/audit/verify", "", "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["valid"] != true {
		t.Errorf("expected valid chain, got %s", w.Body.String())
	}
}

func TestAuditEntries_200(t *testing.T) {
	api := newTestAPI(t)
	api.registerAgent(t, alice, "bot-1", 10, 8500)

	w := api.do(t, http.MethodGet, "/api/v1/audit/entries?since=1&limit=10", "", "")
	resp := wantStatus(t, w, http.StatusOK)
	entries := resp["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after genesis, got %d", len(entries))
	}
	first := entries[0].(map[string]any)
	if first["kind"] != "admin.bootstrapped" {
		t.Errorf("expected admin.bootstrapped first, got %v", first["kind"])
	}

	w = api.do(t, http.MethodGet, "/api/v1/audit/entries/1", "", "")
	resp = wantStatus(t, w, http.StatusOK)
	if resp["kind"] != "admin.bootstrapped" {
		t.Errorf("expected admin.bootstrapped, got %v", resp["kind"])
	}

	w = api.do(t, http.MethodGet, "/api/v1/audit/entries/999", "", "")
	wantStatus(t, w, http.StatusNotFound)
}

// ── Auth modes ───────────────────────────────────────────────────────────

func TestJWTMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newStack(t)
	issuer := hostauth.NewIssuer([]byte("test-secret"), "trustplane", time.Hour)

	cfg := s.config()
	cfg.AuthMode = httpapi.AuthModeJWT
	cfg.Tokens = issuer
	api := &testAPI{stack: s, router: httpapi.NewRouter(cfg)}

	// no token: mutating routes refuse
	w := api.do(t, http.MethodPost, "/api/v1/agents", "", `{"agent_id": "bot-1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	// garbage token: refused outright
	req := httptest.NewRequest(http.MethodPost, "/api/v1/agents", strings.NewReader(`{"agent_id": "bot-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer not.a.token")
	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}

	// the X-Caller header carries no weight in jwt mode
	w = api.do(t, http.MethodPost, "/api/v1/agents", alice, `{"agent_id": "bot-1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for header identity in jwt mode, got %d", w.Code)
	}

	token, err := issuer.Issue(alice)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/api/v1/agents", strings.NewReader(`{"agent_id": "bot-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 with valid token, got %d: %s", w.Code, w.Body.String())
	}

	var profile map[string]any
	json.Unmarshal(w.Body.Bytes(), &profile)
	if profile["owner"] != alice.String() {
		t.Errorf("expected owner from token subject, got %v", profile["owner"])
	}
}

// ── Rate limiting ────────────────────────────────────────────────────────

func TestRateLimiter_429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newStack(t)
	cfg := s.config()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	api := &testAPI{stack: s, router: httpapi.NewRouter(cfg)}

	w := api.do(t, http.MethodGet, "/api/v1/agents", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", w.Code)
	}
	w = api.do(t, http.MethodGet, "/api/v1/agents", "", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the bucket drains, got %d", w.Code)
	}

	// health stays reachable regardless
	w = api.do(t, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected exempt /healthz to pass, got %d", w.Code)
	}
}
