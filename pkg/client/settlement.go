package client

import (
	"context"
	"fmt"
)

// CreateEscrow opens a funded escrow with the configured caller as payer.
// The amount moves into protocol custody immediately; an underfunded payer
// gets a transfer_failed APIError and no escrow is created.
func (c *Client) CreateEscrow(ctx context.Context, req CreateEscrowRequest) (*Escrow, error) {
	var esc Escrow
	if err := c.post(ctx, "/api/v1/escrows", req, &esc); err != nil {
		return nil, err
	}
	return &esc, nil
}

// GetEscrow fetches one escrow record.
func (c *Client) GetEscrow(ctx context.Context, id uint64) (*Escrow, error) {
	var esc Escrow
	if err := c.get(ctx, fmt.Sprintf("/api/v1/escrows/%d", id), &esc); err != nil {
		return nil, err
	}
	return &esc, nil
}

// ReleaseEscrow pays the escrowed amount to the payee. Low-risk escrows
// release for the payer or admin; high-risk ones for admin only.
func (c *Client) ReleaseEscrow(ctx context.Context, id uint64) (*Escrow, error) {
	var esc Escrow
	if err := c.post(ctx, fmt.Sprintf("/api/v1/escrows/%d/release", id), nil, &esc); err != nil {
		return nil, err
	}
	return &esc, nil
}

// DisputeEscrow freezes a funded escrow pending admin resolution. Payer or
// admin only.
func (c *Client) DisputeEscrow(ctx context.Context, id uint64) (*Escrow, error) {
	var esc Escrow
	if err := c.post(ctx, fmt.Sprintf("/api/v1/escrows/%d/dispute", id), nil, &esc); err != nil {
		return nil, err
	}
	return &esc, nil
}

// RefundEscrow returns the escrowed amount to the payer. Disputed escrows
// refund only by admin decision; funded ones follow the risk tiers.
func (c *Client) RefundEscrow(ctx context.Context, id uint64) (*Escrow, error) {
	var esc Escrow
	if err := c.post(ctx, fmt.Sprintf("/api/v1/escrows/%d/refund", id), nil, &esc); err != nil {
		return nil, err
	}
	return &esc, nil
}

// Deposit credits an account from the host rail. Admin only.
func (c *Client) Deposit(ctx context.Context, account string, amount uint64) (*Balance, error) {
	var bal Balance
	body := map[string]any{"account": account, "amount": amount}
	if err := c.post(ctx, "/api/v1/treasury/deposits", body, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// Withdraw debits the configured caller's own account back to the host rail.
func (c *Client) Withdraw(ctx context.Context, amount uint64) (*Balance, error) {
	var bal Balance
	body := map[string]any{"amount": amount}
	if err := c.post(ctx, "/api/v1/treasury/withdrawals", body, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// AccountBalance reads any account's balance. Unknown accounts are zero.
func (c *Client) AccountBalance(ctx context.Context, account string) (*Balance, error) {
	var bal Balance
	if err := c.get(ctx, "/api/v1/treasury/accounts/"+pathEscape(account), &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}
