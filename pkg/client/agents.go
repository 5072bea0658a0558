package client

import (
	"context"
	"fmt"
	"net/http"
)

// RegisterAgent registers a new agent owned by the configured caller.
func (c *Client) RegisterAgent(ctx context.Context, reg RegisterAgentRequest) (*AgentProfile, error) {
	var profile AgentProfile
	if err := c.post(ctx, "/api/v1/agents", reg, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetAgent fetches one agent profile.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*AgentProfile, error) {
	var profile AgentProfile
	if err := c.get(ctx, "/api/v1/agents/"+pathEscape(agentID), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateAgent rewrites an agent's advisory fields. Only the owner may call
// this.
func (c *Client) UpdateAgent(ctx context.Context, agentID string, upd UpdateAgentRequest) (*AgentProfile, error) {
	var profile AgentProfile
	if err := c.do(ctx, http.MethodPatch, "/api/v1/agents/"+pathEscape(agentID), upd, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetKillSwitch flips the agent's kill switch. Owner only; setting the
// current state again is a no-op that still succeeds.
func (c *Client) SetKillSwitch(ctx context.Context, agentID string, active bool) (*AgentProfile, error) {
	var profile AgentProfile
	body := map[string]bool{"active": active}
	if err := c.post(ctx, "/api/v1/agents/"+pathEscape(agentID)+"/kill-switch", body, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// DeactivateAgent permanently retires an agent. Owner only; there is no
// reactivation.
func (c *Client) DeactivateAgent(ctx context.Context, agentID string) (*AgentProfile, error) {
	var profile AgentProfile
	if err := c.post(ctx, "/api/v1/agents/"+pathEscape(agentID)+"/deactivate", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// VerifyTrust asks whether the agent may perform an operation of the given
// value. An untrusted agent is not an error: inspect the verdict.
func (c *Client) VerifyTrust(ctx context.Context, agentID string, opValue uint64) (*TrustVerdict, error) {
	var verdict TrustVerdict
	path := fmt.Sprintf("/api/v1/agents/%s/trust?op_value=%d", pathEscape(agentID), opValue)
	if err := c.get(ctx, path, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// IsActive reports whether the agent is registered and not deactivated.
func (c *Client) IsActive(ctx context.Context, agentID string) (bool, error) {
	var resp struct {
		Active bool `json:"active"`
	}
	if err := c.get(ctx, "/api/v1/agents/"+pathEscape(agentID)+"/active", &resp); err != nil {
		return false, err
	}
	return resp.Active, nil
}

// ListAgents returns every registered agent id.
func (c *Client) ListAgents(ctx context.Context) ([]string, error) {
	var resp struct {
		Agents []string `json:"agents"`
	}
	if err := c.get(ctx, "/api/v1/agents", &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

// OwnerAgents returns the agent ids registered by one owner.
func (c *Client) OwnerAgents(ctx context.Context, owner string) ([]string, error) {
	var resp struct {
		Agents []string `json:"agents"`
	}
	if err := c.get(ctx, "/api/v1/agents?owner="+pathEscape(owner), &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

// AnchorTicket anchors a credential ticket under its hash. The configured
// caller becomes the issuer.
func (c *Client) AnchorTicket(ctx context.Context, req AnchorTicketRequest) (*Ticket, error) {
	var ticket Ticket
	if err := c.post(ctx, "/api/v1/tickets", req, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// CheckTicket verifies a ticket hash: anchored, not revoked, not expired.
// An unknown hash is a negative verdict, not an error.
func (c *Client) CheckTicket(ctx context.Context, ticketHash string) (*TicketCheck, error) {
	var check TicketCheck
	if err := c.get(ctx, "/api/v1/tickets/"+pathEscape(ticketHash), &check); err != nil {
		return nil, err
	}
	return &check, nil
}

// RevokeTicket permanently revokes an anchored ticket. Issuer or admin only.
func (c *Client) RevokeTicket(ctx context.Context, ticketHash string) (*Ticket, error) {
	var ticket Ticket
	if err := c.post(ctx, "/api/v1/tickets/"+pathEscape(ticketHash)+"/revoke", nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// AgentTickets lists the ticket hashes anchored for an agent, oldest first.
func (c *Client) AgentTickets(ctx context.Context, agentID string) ([]string, error) {
	var resp struct {
		Tickets []string `json:"tickets"`
	}
	if err := c.get(ctx, "/api/v1/agents/"+pathEscape(agentID)+"/tickets", &resp); err != nil {
		return nil, err
	}
	return resp.Tickets, nil
}
