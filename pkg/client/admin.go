package client

import (
	"context"
	"fmt"
	"net/http"
)

// CurrentAdmin returns the protocol admin identity, empty before bootstrap.
func (c *Client) CurrentAdmin(ctx context.Context) (string, error) {
	var resp struct {
		Admin string `json:"admin"`
	}
	if err := c.get(ctx, "/api/v1/admin", &resp); err != nil {
		return "", err
	}
	return resp.Admin, nil
}

// TransferAdmin hands the admin role to a new identity. Current admin only;
// effective immediately.
func (c *Client) TransferAdmin(ctx context.Context, newAdmin string) error {
	body := map[string]string{"new_admin": newAdmin}
	return c.post(ctx, "/api/v1/admin/transfer", body, nil)
}

// SetReputation overrides an agent's reputation score. Admin only.
func (c *Client) SetReputation(ctx context.Context, agentID string, score uint64) (*AgentProfile, error) {
	var profile AgentProfile
	body := map[string]uint64{"reputation_score": score}
	path := "/api/v1/admin/agents/" + pathEscape(agentID) + "/reputation"
	if err := c.do(ctx, http.MethodPut, path, body, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Stats returns the protocol counters.
func (c *Client) Stats(ctx context.Context) (*ProtocolStats, error) {
	var stats ProtocolStats
	if err := c.get(ctx, "/api/v1/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Audit returns the journal summary.
func (c *Client) Audit(ctx context.Context) (*AuditOverview, error) {
	var overview AuditOverview
	if err := c.get(ctx, "/api/v1/audit", &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// AuditEntries pages through the journal starting at seq since. A zero
// limit uses the server default of 100.
func (c *Client) AuditEntries(ctx context.Context, since uint64, limit int) ([]AuditEvent, error) {
	var resp struct {
		Entries []AuditEvent `json:"entries"`
	}
	path := fmt.Sprintf("/api/v1/audit/entries?since=%d", since)
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// AuditEntry fetches one journal entry by sequence number.
func (c *Client) AuditEntry(ctx context.Context, seq uint64) (*AuditEvent, error) {
	var event AuditEvent
	if err := c.get(ctx, fmt.Sprintf("/api/v1/audit/entries/%d", seq), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// VerifyAuditChain replays the hash chain server-side. A tampered chain is
// a negative verdict with the detail in Error, not a transport failure.
func (c *Client) VerifyAuditChain(ctx context.Context) (*AuditCheck, error) {
	var check AuditCheck
	if err := c.get(ctx, "/api/v1/audit/verify", &check); err != nil {
		return nil, err
	}
	return &check, nil
}
