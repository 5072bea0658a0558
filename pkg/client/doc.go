// Package client is the TrustPlane Go SDK.
//
// It wraps the daemon's REST API: registering agents and checking their
// trust standing, anchoring credential tickets, and settling risk-tiered
// escrows, all against a single base URL.
//
// # Connecting
//
// In header mode (development, or behind a gateway that terminates
// authentication) the caller identity travels as a header:
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithCaller("acct:alice"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// In jwt mode, mint a token (the tpc CLI's 'token' command, or hostauth
// inside your own service) and attach it:
//
//	c, _ := client.New("https://trustplane.internal",
//	    client.WithBearerToken(token),
//	)
//
// # Checking an agent before delegating work
//
// VerifyTrust is the protocol's core read: one call answers "may this agent
// perform an operation of this value" with a machine-stable reason:
//
//	v, err := c.VerifyTrust(ctx, "bot-1", 500)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !v.Trusted {
//	    log.Fatalf("refusing delegation: %s", v.Reason)
//	}
//
// # Settling work through escrow
//
// The payer funds an escrow at creation; release pays the payee, refund
// returns the funds. High-risk escrows settle only with admin sign-off:
//
//	esc, _ := c.CreateEscrow(ctx, client.CreateEscrowRequest{
//	    Payee:     "acct:bob",
//	    RiskScore: 2500,
//	    Amount:    100,
//	})
//	c.ReleaseEscrow(ctx, esc.ID)
//
// # Error handling
//
// Every non-2xx response decodes into an *APIError carrying the daemon's
// stable error kind and reason:
//
//	_, err := c.GetAgent(ctx, "ghost")
//	if client.IsKind(err, "not_found") {
//	    // register it
//	}
package client
