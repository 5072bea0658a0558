package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/halcyonlabs/trustplane/internal/hostauth"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL   string
	callerID    string
	bearerToken string
	cfgFile     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tpc",
	Short: "TrustPlane CLI",
	Long: `tpc is the command-line interface for a TrustPlane daemon.

It manages agent registrations, credential tickets, and settlement escrows,
and inspects the daemon's hash-chained audit journal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.tpc")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if callerID == "" {
			callerID = viper.GetString("caller")
		}
		if bearerToken == "" {
			bearerToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.tpc/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "TrustPlane daemon URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&callerID, "caller", "", "caller identity for header auth mode (e.g. acct:alice)")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "token", "", "bearer token for jwt auth mode")

	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(ticketCmd)
	rootCmd.AddCommand(escrowCmd)
	rootCmd.AddCommand(treasuryCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client with the configured identity.
func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if callerID != "" {
		opts = append(opts, client.WithCaller(callerID))
	}
	if bearerToken != "" {
		opts = append(opts, client.WithBearerToken(bearerToken))
	}
	return client.New(serverURL, opts...)
}

// confirm prompts on stdin and returns true only on an explicit yes.
func confirm(prompt string) bool {
	fmt.Print(prompt + " [y/N]: ")
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.ToLower(strings.TrimSpace(answer)) == "y"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func printProfile(p *client.AgentProfile) {
	fmt.Printf("  Agent:        %s\n", p.AgentID)
	fmt.Printf("  Owner:        %s\n", p.Owner)
	fmt.Printf("  Audit level:  %s\n", p.AuditLevel)
	fmt.Printf("  Max op value: %d\n", p.MaxOpValue)
	fmt.Printf("  Max ops/hour: %d\n", p.MaxOpsPerHour)
	fmt.Printf("  Reputation:   %d bp\n", p.ReputationScore)
	fmt.Printf("  Active:       %v\n", p.Active)
	fmt.Printf("  Kill switch:  %v\n", p.KillSwitchActive)
	if p.RequiresX402 {
		fmt.Printf("  Requires:     x402 payment\n")
	}
	if p.ConstraintsHash != "" && !isZeroHash(p.ConstraintsHash) {
		fmt.Printf("  Constraints:  %s\n", p.ConstraintsHash)
	}
	fmt.Printf("  Registered:   %s\n", formatTime(p.RegisteredAt))
	fmt.Printf("  Updated:      %s\n", formatTime(p.UpdatedAt))
}

func isZeroHash(hex string) bool {
	return strings.Trim(strings.TrimPrefix(hex, "0x"), "0") == ""
}

// ── agent ────────────────────────────────────────────────────────────────────

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agent registrations",
}

var (
	agentRegLevel       string
	agentRegMaxOpValue  uint64
	agentRegMaxOpsHour  uint64
	agentRegX402        bool
	agentRegReputation  uint64
	agentRegConstraints string
)

var agentRegisterCmd = &cobra.Command{
	Use:   "register <agent-id>",
	Short: "Register a new agent owned by the calling identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		profile, err := c.RegisterAgent(context.Background(), client.RegisterAgentRequest{
			AgentID:         args[0],
			AuditLevel:      agentRegLevel,
			MaxOpValue:      agentRegMaxOpValue,
			MaxOpsPerHour:   agentRegMaxOpsHour,
			RequiresX402:    agentRegX402,
			ReputationScore: agentRegReputation,
			ConstraintsHash: agentRegConstraints,
		})
		if err != nil {
			return fmt.Errorf("register agent: %w", err)
		}

		fmt.Printf("✓ Agent registered\n\n")
		printProfile(profile)
		fmt.Printf("\nNext: tpc agent trust %s --op-value <amount>\n", profile.AgentID)
		return nil
	},
}

func init() {
	agentRegisterCmd.Flags().StringVar(&agentRegLevel, "audit-level", "bronze", "Audit level: bronze, silver, gold, or platinum")
	agentRegisterCmd.Flags().Uint64Var(&agentRegMaxOpValue, "max-op-value", 0, "Per-operation value cap in minor units")
	agentRegisterCmd.Flags().Uint64Var(&agentRegMaxOpsHour, "max-ops-per-hour", 0, "Advisory hourly operation cap")
	agentRegisterCmd.Flags().BoolVar(&agentRegX402, "requires-x402", false, "Mark the agent as requiring x402 payment")
	agentRegisterCmd.Flags().Uint64Var(&agentRegReputation, "reputation", 0, "Initial reputation score in basis points (0-10000)")
	agentRegisterCmd.Flags().StringVar(&agentRegConstraints, "constraints-hash", "", "Hex digest of the agent's constraint document")
}

var agentGetCmd = &cobra.Command{
	Use:   "get <agent-id>",
	Short: "Show one agent profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		profile, err := c.GetAgent(context.Background(), args[0])
		if err != nil {
			return err
		}
		printProfile(profile)
		return nil
	},
}

var (
	agentUpdLevel       string
	agentUpdMaxOpValue  uint64
	agentUpdMaxOpsHour  uint64
	agentUpdReputation  uint64
	agentUpdConstraints string
)

var agentUpdateCmd = &cobra.Command{
	Use:   "update <agent-id>",
	Short: "Update an agent's advisory fields (owner only)",
	Long: `Update rewrites the agent's advisory fields. Flags you leave unset keep
their current values; the kill switch and the active flag have their own
commands and are never touched here.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		// The daemon rewrites the whole advisory set, so merge unset flags
		// from the current profile.
		current, err := c.GetAgent(ctx, args[0])
		if err != nil {
			return fmt.Errorf("fetch current profile: %w", err)
		}
		upd := client.UpdateAgentRequest{
			AuditLevel:      current.AuditLevel,
			MaxOpValue:      current.MaxOpValue,
			MaxOpsPerHour:   current.MaxOpsPerHour,
			ReputationScore: current.ReputationScore,
			ConstraintsHash: current.ConstraintsHash,
		}
		if cmd.Flags().Changed("audit-level") {
			upd.AuditLevel = agentUpdLevel
		}
		if cmd.Flags().Changed("max-op-value") {
			upd.MaxOpValue = agentUpdMaxOpValue
		}
		if cmd.Flags().Changed("max-ops-per-hour") {
			upd.MaxOpsPerHour = agentUpdMaxOpsHour
		}
		if cmd.Flags().Changed("reputation") {
			upd.ReputationScore = agentUpdReputation
		}
		if cmd.Flags().Changed("constraints-hash") {
			upd.ConstraintsHash = agentUpdConstraints
		}

		profile, err := c.UpdateAgent(ctx, args[0], upd)
		if err != nil {
			return fmt.Errorf("update agent: %w", err)
		}
		fmt.Printf("✓ Agent updated\n\n")
		printProfile(profile)
		return nil
	},
}

func init() {
	agentUpdateCmd.Flags().StringVar(&agentUpdLevel, "audit-level", "", "Audit level: bronze, silver, gold, or platinum")
	agentUpdateCmd.Flags().Uint64Var(&agentUpdMaxOpValue, "max-op-value", 0, "Per-operation value cap in minor units")
	agentUpdateCmd.Flags().Uint64Var(&agentUpdMaxOpsHour, "max-ops-per-hour", 0, "Advisory hourly operation cap")
	agentUpdateCmd.Flags().Uint64Var(&agentUpdReputation, "reputation", 0, "Reputation score in basis points (0-10000)")
	agentUpdateCmd.Flags().StringVar(&agentUpdConstraints, "constraints-hash", "", "Hex digest of the agent's constraint document")
}

var agentTrustOpValue uint64

var agentTrustCmd = &cobra.Command{
	Use:   "trust <agent-id>",
	Short: "Check whether an agent is trusted for an operation value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		verdict, err := c.VerifyTrust(context.Background(), args[0], agentTrustOpValue)
		if err != nil {
			return err
		}
		if verdict.Trusted {
			fmt.Printf("✓ %s\n", verdict.Reason)
		} else {
			fmt.Printf("✗ %s\n", verdict.Reason)
		}
		return nil
	},
}

func init() {
	agentTrustCmd.Flags().Uint64Var(&agentTrustOpValue, "op-value", 0, "Operation value in minor units")
}

var agentKillSwitchCmd = &cobra.Command{
	Use:   "kill-switch <agent-id> <on|off>",
	Short: "Engage or clear an agent's kill switch (owner only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var active bool
		switch strings.ToLower(args[1]) {
		case "on", "true":
			active = true
		case "off", "false":
			active = false
		default:
			return fmt.Errorf("state must be on or off, got %q", args[1])
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		profile, err := c.SetKillSwitch(context.Background(), args[0], active)
		if err != nil {
			return fmt.Errorf("set kill switch: %w", err)
		}
		if profile.KillSwitchActive {
			fmt.Printf("✓ Kill switch engaged for %s\n", profile.AgentID)
		} else {
			fmt.Printf("✓ Kill switch cleared for %s\n", profile.AgentID)
		}
		return nil
	},
}

var agentDeactivateForce bool

var agentDeactivateCmd = &cobra.Command{
	Use:   "deactivate <agent-id>",
	Short: "Permanently retire an agent (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !agentDeactivateForce && !confirm("Deactivation is permanent and cannot be undone. Confirm?") {
			fmt.Println("Aborted.")
			return nil
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		profile, err := c.DeactivateAgent(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("deactivate agent: %w", err)
		}
		fmt.Printf("✓ Agent deactivated: %s\n", profile.AgentID)
		return nil
	},
}

func init() {
	agentDeactivateCmd.Flags().BoolVar(&agentDeactivateForce, "force", false, "Skip confirmation prompt")
}

// agentRow holds the outcome of one profile fetch during listing.
type agentRow struct {
	id      string
	profile *client.AgentProfile
	err     error
}

var agentListOwner string

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		var ids []string
		if agentListOwner != "" {
			ids, err = c.OwnerAgents(ctx, agentListOwner)
		} else {
			ids, err = c.ListAgents(ctx)
		}
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No agents registered.")
			return nil
		}

		// Hydrate profiles concurrently, then print in registration order.
		rowsCh := make(chan agentRow, len(ids))
		for _, id := range ids {
			id := id
			go func() {
				p, err := c.GetAgent(ctx, id)
				rowsCh <- agentRow{id: id, profile: p, err: err}
			}()
		}
		byID := make(map[string]agentRow, len(ids))
		for range ids {
			r := <-rowsCh
			byID[r.id] = r
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "AGENT\tOWNER\tLEVEL\tREPUTATION\tACTIVE\tKILL SWITCH")
		for _, id := range ids {
			r := byID[id]
			if r.err != nil {
				fmt.Fprintf(w, "%s\t\t\t\t\t%s\n", id, r.err.Error())
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%v\n",
				r.profile.AgentID, r.profile.Owner, r.profile.AuditLevel,
				r.profile.ReputationScore, r.profile.Active, r.profile.KillSwitchActive)
		}
		return w.Flush()
	},
}

func init() {
	agentListCmd.Flags().StringVar(&agentListOwner, "owner", "", "List only this owner's agents")

	agentCmd.AddCommand(agentRegisterCmd)
	agentCmd.AddCommand(agentGetCmd)
	agentCmd.AddCommand(agentUpdateCmd)
	agentCmd.AddCommand(agentTrustCmd)
	agentCmd.AddCommand(agentKillSwitchCmd)
	agentCmd.AddCommand(agentDeactivateCmd)
	agentCmd.AddCommand(agentListCmd)
}

// ── ticket ───────────────────────────────────────────────────────────────────

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Anchor and verify credential tickets",
	Long: `Tickets commit a credential's Keccak-256 digest to the ledger. The
credential document itself never leaves your machine: pass --credential to
hash locally, or supply a pre-computed 64-char hex digest directly.`,
}

// ticketHashArg returns the hash argument for a ticket command: the literal
// positional hash, or the local digest of --credential.
func ticketHashArg(args []string, credential string) (string, error) {
	if credential != "" {
		if len(args) > 0 {
			return "", fmt.Errorf("pass either a hash argument or --credential, not both")
		}
		return client.HashCredential([]byte(credential)), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("a ticket hash argument or --credential is required")
	}
	return args[0], nil
}

func printTicket(t *client.Ticket) {
	fmt.Printf("  Hash:        %s\n", t.TicketHash)
	fmt.Printf("  Issuer:      %s\n", t.Issuer)
	if t.AgentID != "" {
		fmt.Printf("  Agent:       %s\n", t.AgentID)
	}
	fmt.Printf("  Audit level: %s\n", t.AuditLevel)
	fmt.Printf("  Anchored:    %s\n", formatTime(t.AnchoredAt))
	fmt.Printf("  Expires:     %s\n", formatTime(t.ExpiresAt))
	fmt.Printf("  Revoked:     %v\n", t.Revoked)
}

var (
	ticketAnchorCredential string
	ticketAnchorAgent      string
	ticketAnchorLevel      string
	ticketAnchorTTL        time.Duration
	ticketAnchorExpiresAt  int64
)

var ticketAnchorCmd = &cobra.Command{
	Use:   "anchor [hash]",
	Short: "Anchor a credential ticket under its digest",
	Long: `Anchor commits a credential digest to the ledger with an expiry. The
calling identity is recorded as the issuer. A digest can only ever be
anchored once.

Examples:

  # Hash the credential locally and anchor for 30 days
  tpc ticket anchor --credential "$(cat audit-report.json)" --agent bot-1 --ttl 720h

  # Anchor a pre-computed digest
  tpc ticket anchor 4fd1…c09a --agent bot-1 --audit-level gold`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := ticketHashArg(args, ticketAnchorCredential)
		if err != nil {
			return err
		}
		expiresAt := ticketAnchorExpiresAt
		if expiresAt == 0 {
			expiresAt = time.Now().Add(ticketAnchorTTL).Unix()
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ticket, err := c.AnchorTicket(context.Background(), client.AnchorTicketRequest{
			TicketHash: hash,
			AgentID:    ticketAnchorAgent,
			AuditLevel: ticketAnchorLevel,
			ExpiresAt:  expiresAt,
		})
		if err != nil {
			return fmt.Errorf("anchor ticket: %w", err)
		}

		fmt.Printf("✓ Ticket anchored\n\n")
		printTicket(ticket)
		return nil
	},
}

func init() {
	ticketAnchorCmd.Flags().StringVar(&ticketAnchorCredential, "credential", "", "Raw credential to hash locally with Keccak-256")
	ticketAnchorCmd.Flags().StringVar(&ticketAnchorAgent, "agent", "", "Agent id the credential attests to")
	ticketAnchorCmd.Flags().StringVar(&ticketAnchorLevel, "audit-level", "bronze", "Attested audit level")
	ticketAnchorCmd.Flags().DurationVar(&ticketAnchorTTL, "ttl", 24*time.Hour, "Ticket lifetime from now (e.g. 720h)")
	ticketAnchorCmd.Flags().Int64Var(&ticketAnchorExpiresAt, "expires-at", 0, "Absolute expiry as a unix timestamp; overrides --ttl")
}

var ticketVerifyCredential string

var ticketVerifyCmd = &cobra.Command{
	Use:   "verify [hash]",
	Short: "Verify a ticket: anchored, unrevoked, unexpired",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := ticketHashArg(args, ticketVerifyCredential)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		check, err := c.CheckTicket(context.Background(), hash)
		if err != nil {
			return err
		}

		switch {
		case check.Valid:
			fmt.Printf("✓ Ticket valid\n\n")
			printTicket(check.Ticket)
		case check.Ticket == nil:
			fmt.Printf("✗ No ticket anchored under %s\n", hash)
		case check.Ticket.Revoked:
			fmt.Printf("✗ Ticket revoked\n\n")
			printTicket(check.Ticket)
		default:
			fmt.Printf("✗ Ticket expired\n\n")
			printTicket(check.Ticket)
		}
		return nil
	},
}

func init() {
	ticketVerifyCmd.Flags().StringVar(&ticketVerifyCredential, "credential", "", "Raw credential to hash locally with Keccak-256")
}

var (
	ticketRevokeCredential string
	ticketRevokeForce      bool
)

var ticketRevokeCmd = &cobra.Command{
	Use:   "revoke [hash]",
	Short: "Permanently revoke a ticket (issuer or admin only)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := ticketHashArg(args, ticketRevokeCredential)
		if err != nil {
			return err
		}
		if !ticketRevokeForce && !confirm("Revocation is permanent; the hash cannot be re-anchored. Confirm?") {
			fmt.Println("Aborted.")
			return nil
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ticket, err := c.RevokeTicket(context.Background(), hash)
		if err != nil {
			return fmt.Errorf("revoke ticket: %w", err)
		}
		fmt.Printf("✓ Ticket revoked: %s\n", ticket.TicketHash)
		return nil
	},
}

func init() {
	ticketRevokeCmd.Flags().StringVar(&ticketRevokeCredential, "credential", "", "Raw credential to hash locally with Keccak-256")
	ticketRevokeCmd.Flags().BoolVar(&ticketRevokeForce, "force", false, "Skip confirmation prompt")

	ticketCmd.AddCommand(ticketAnchorCmd)
	ticketCmd.AddCommand(ticketVerifyCmd)
	ticketCmd.AddCommand(ticketRevokeCmd)
}

// ── escrow ───────────────────────────────────────────────────────────────────

var escrowCmd = &cobra.Command{
	Use:   "escrow",
	Short: "Create and settle risk-gated escrows",
}

func printEscrow(e *client.Escrow) {
	fmt.Printf("  ID:          %d\n", e.ID)
	fmt.Printf("  State:       %s\n", e.State)
	fmt.Printf("  Payer:       %s\n", e.Payer)
	fmt.Printf("  Payee:       %s\n", e.Payee)
	fmt.Printf("  Amount:      %d\n", e.Amount)
	fmt.Printf("  Risk score:  %d bp\n", e.RiskScore)
	if e.ServiceDescription != "" {
		fmt.Printf("  Service:     %s\n", e.ServiceDescription)
	}
	if e.SettlementHash != "" && !isZeroHash(e.SettlementHash) {
		fmt.Printf("  Settlement:  %s\n", e.SettlementHash)
	}
	fmt.Printf("  Created:     %s\n", formatTime(e.CreatedAt))
	if e.ReleasedAt != 0 {
		fmt.Printf("  Settled:     %s\n", formatTime(e.ReleasedAt))
	}
}

var (
	escrowCreatePayee       string
	escrowCreateAmount      uint64
	escrowCreateRisk        uint64
	escrowCreateDescription string
	escrowCreateSettlement  string
)

var escrowCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Fund a new escrow from the calling identity's balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		escrow, err := c.CreateEscrow(context.Background(), client.CreateEscrowRequest{
			Payee:              escrowCreatePayee,
			Amount:             escrowCreateAmount,
			RiskScore:          escrowCreateRisk,
			ServiceDescription: escrowCreateDescription,
			SettlementHash:     escrowCreateSettlement,
		})
		if err != nil {
			return fmt.Errorf("create escrow: %w", err)
		}

		fmt.Printf("✓ Escrow funded\n\n")
		printEscrow(escrow)
		fmt.Printf("\nNext: tpc escrow release %d\n", escrow.ID)
		return nil
	},
}

func init() {
	escrowCreateCmd.Flags().StringVar(&escrowCreatePayee, "payee", "", "Payee identity (e.g. acct:bob)")
	escrowCreateCmd.Flags().Uint64Var(&escrowCreateAmount, "amount", 0, "Escrow amount in minor units")
	escrowCreateCmd.Flags().Uint64Var(&escrowCreateRisk, "risk", 0, "Risk score in basis points (0-10000)")
	escrowCreateCmd.Flags().StringVar(&escrowCreateDescription, "description", "", "Service description")
	escrowCreateCmd.Flags().StringVar(&escrowCreateSettlement, "settlement-hash", "", "Hex digest of the settlement terms")
	_ = escrowCreateCmd.MarkFlagRequired("payee")
	_ = escrowCreateCmd.MarkFlagRequired("amount")
}

var escrowGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one escrow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid escrow id %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		escrow, err := c.GetEscrow(context.Background(), id)
		if err != nil {
			return err
		}
		printEscrow(escrow)
		return nil
	},
}

// escrowSettle factors the three settlement verbs, which differ only in the
// SDK call and the past-tense verb for output.
func escrowSettle(verb string, call func(context.Context, *client.Client, uint64) (*client.Escrow, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid escrow id %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		escrow, err := call(context.Background(), c, id)
		if err != nil {
			return fmt.Errorf("%s escrow: %w", verb, err)
		}
		fmt.Printf("✓ Escrow %d is now %s\n", escrow.ID, escrow.State)
		return nil
	}
}

var escrowReleaseCmd = &cobra.Command{
	Use:   "release <id>",
	Short: "Release escrowed funds to the payee",
	Long: `Release pays the escrowed amount out to the payee. The payer may release
only when the escrow's risk score is at or below the auto-release threshold
(3000 bp); anything riskier is released by the protocol admin alone.`,
	Args: cobra.ExactArgs(1),
	RunE: escrowSettle("release", func(ctx context.Context, c *client.Client, id uint64) (*client.Escrow, error) {
		return c.ReleaseEscrow(ctx, id)
	}),
}

var escrowDisputeCmd = &cobra.Command{
	Use:   "dispute <id>",
	Short: "Freeze a funded escrow pending admin arbitration",
	Args:  cobra.ExactArgs(1),
	RunE: escrowSettle("dispute", func(ctx context.Context, c *client.Client, id uint64) (*client.Escrow, error) {
		return c.DisputeEscrow(ctx, id)
	}),
}

var escrowRefundCmd = &cobra.Command{
	Use:   "refund <id>",
	Short: "Return escrowed funds to the payer",
	Long: `Refund returns the escrowed amount to the payer. The admin may always
refund; the payer may self-refund a funded escrow only when its risk score
is at or above the high-risk threshold (7000 bp). Disputed escrows are
refunded by the admin alone.`,
	Args: cobra.ExactArgs(1),
	RunE: escrowSettle("refund", func(ctx context.Context, c *client.Client, id uint64) (*client.Escrow, error) {
		return c.RefundEscrow(ctx, id)
	}),
}

func init() {
	escrowCmd.AddCommand(escrowCreateCmd)
	escrowCmd.AddCommand(escrowGetCmd)
	escrowCmd.AddCommand(escrowReleaseCmd)
	escrowCmd.AddCommand(escrowDisputeCmd)
	escrowCmd.AddCommand(escrowRefundCmd)
}

// ── treasury ─────────────────────────────────────────────────────────────────

var treasuryCmd = &cobra.Command{
	Use:   "treasury",
	Short: "Manage fund account balances",
}

var (
	depositAccount string
	depositAmount  uint64
)

var treasuryDepositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Credit an account (admin only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		balance, err := c.Deposit(context.Background(), depositAccount, depositAmount)
		if err != nil {
			return fmt.Errorf("deposit: %w", err)
		}
		fmt.Printf("✓ Deposited %d into %s (balance %d)\n", depositAmount, balance.Account, balance.Balance)
		return nil
	},
}

func init() {
	treasuryDepositCmd.Flags().StringVar(&depositAccount, "account", "", "Account identity to credit")
	treasuryDepositCmd.Flags().Uint64Var(&depositAmount, "amount", 0, "Amount in minor units")
	_ = treasuryDepositCmd.MarkFlagRequired("account")
	_ = treasuryDepositCmd.MarkFlagRequired("amount")
}

var treasuryBalanceCmd = &cobra.Command{
	Use:   "balance [account]",
	Short: "Show an account balance (defaults to the calling identity)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := callerID
		if len(args) == 1 {
			account = args[0]
		}
		if account == "" {
			return fmt.Errorf("an account argument or --caller is required")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		balance, err := c.AccountBalance(context.Background(), account)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", balance.Account, balance.Balance)
		return nil
	},
}

var withdrawAmount uint64

var treasuryWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw from the calling identity's balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		balance, err := c.Withdraw(context.Background(), withdrawAmount)
		if err != nil {
			return fmt.Errorf("withdraw: %w", err)
		}
		fmt.Printf("✓ Withdrew %d (balance %d)\n", withdrawAmount, balance.Balance)
		return nil
	},
}

func init() {
	treasuryWithdrawCmd.Flags().Uint64Var(&withdrawAmount, "amount", 0, "Amount in minor units")
	_ = treasuryWithdrawCmd.MarkFlagRequired("amount")

	treasuryCmd.AddCommand(treasuryDepositCmd)
	treasuryCmd.AddCommand(treasuryBalanceCmd)
	treasuryCmd.AddCommand(treasuryWithdrawCmd)
}

// ── admin ────────────────────────────────────────────────────────────────────

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Protocol administration",
}

var adminShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current protocol admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		current, err := c.CurrentAdmin(context.Background())
		if err != nil {
			return err
		}
		fmt.Println(current)
		return nil
	},
}

var adminTransferForce bool

var adminTransferCmd = &cobra.Command{
	Use:   "transfer <new-admin>",
	Short: "Hand the admin role to another identity (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !adminTransferForce && !confirm(fmt.Sprintf("Hand over the admin role to %s? The change is immediate and this identity loses all admin powers.", args[0])) {
			fmt.Println("Aborted.")
			return nil
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.TransferAdmin(context.Background(), args[0]); err != nil {
			return fmt.Errorf("transfer admin: %w", err)
		}
		fmt.Printf("✓ Protocol admin is now %s\n", args[0])
		return nil
	},
}

func init() {
	adminTransferCmd.Flags().BoolVar(&adminTransferForce, "force", false, "Skip confirmation prompt")
}

var adminSetReputationCmd = &cobra.Command{
	Use:   "set-reputation <agent-id> <score>",
	Short: "Override an agent's reputation score (admin only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid score %q", args[1])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		profile, err := c.SetReputation(context.Background(), args[0], score)
		if err != nil {
			return fmt.Errorf("set reputation: %w", err)
		}
		fmt.Printf("✓ %s reputation set to %d bp\n", profile.AgentID, profile.ReputationScore)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminShowCmd)
	adminCmd.AddCommand(adminTransferCmd)
	adminCmd.AddCommand(adminSetReputationCmd)
}

// ── stats ────────────────────────────────────────────────────────────────────

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show protocol-wide counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		stats, err := c.Stats(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("  Agents:   %d\n", stats.TotalAgents)
		fmt.Printf("  Tickets:  %d\n", stats.TotalTickets)
		fmt.Printf("  Escrows:  %d\n", stats.TotalEscrows)
		fmt.Printf("  Volume:   %d\n", stats.TotalVolume)
		return nil
	},
}

// ── audit ────────────────────────────────────────────────────────────────────

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the hash-chained audit journal",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit chain end to end",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		check, err := c.VerifyAuditChain(ctx)
		if err != nil {
			return err
		}
		if !check.Valid {
			return fmt.Errorf("audit chain broken: %s", check.Error)
		}
		overview, err := c.Audit(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Audit chain intact: %d entries\n", overview.Entries)
		fmt.Printf("  Root: %s\n", overview.Root)
		return nil
	},
}

var (
	auditTailSince  uint64
	auditTailLimit  int
	auditTailFormat string
)

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent audit entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		since := auditTailSince
		if !cmd.Flags().Changed("since") {
			// Default to the last --limit entries.
			overview, err := c.Audit(ctx)
			if err != nil {
				return err
			}
			if overview.Entries > uint64(auditTailLimit) {
				since = overview.Entries - uint64(auditTailLimit)
			}
		}

		entries, err := c.AuditEntries(ctx, since, auditTailLimit)
		if err != nil {
			return err
		}
		if auditTailFormat == "json" {
			return printJSON(entries)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTIME\tKIND\tACTOR\tREF")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				e.Seq, formatTime(e.Time), e.Kind, e.Actor, e.Ref)
		}
		return w.Flush()
	},
}

func init() {
	auditTailCmd.Flags().Uint64Var(&auditTailSince, "since", 0, "Start at this sequence number instead of the tail")
	auditTailCmd.Flags().IntVar(&auditTailLimit, "limit", 20, "Maximum entries to show")
	auditTailCmd.Flags().StringVar(&auditTailFormat, "format", "text", "Output format: text or json")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSecret  string
	tokenIssuer  string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development caller token (HS256)",
	Long: `token signs a caller JWT with a shared secret, for daemons running in
jwt auth mode. The secret must match the daemon's auth.jwt_secret. This is a
development convenience; production tokens come from the host platform.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject := tokenSubject
		if subject == "" {
			subject = callerID
		}
		if subject == "" {
			return fmt.Errorf("--subject or --caller is required")
		}

		issuer := hostauth.NewIssuer([]byte(tokenSecret), tokenIssuer, tokenTTL)
		token, err := issuer.Issue(protocol.Identity(subject))
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "HS256 signing secret (must match the daemon)")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "trustplane", "JWT issuer claim")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Caller identity to mint for (defaults to --caller)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("secret")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tpc CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tpc %s (TrustPlane)\n", version)
	},
}
