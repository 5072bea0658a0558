package escrow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/halcyonlabs/trustplane/internal/ledger"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/pkg/digest"
)

// State is the escrow lifecycle position. Creation funds the escrow in the
// same transaction, so "funded" is the only initial state; "released" and
// "refunded" are terminal.
type State string

const (
	StateFunded   State = "funded"
	StateReleased State = "released"
	StateDisputed State = "disputed"
	StateRefunded State = "refunded"
)

const (
	recordPrefix = "escrow/record/"

	// SequenceKey holds the next escrow id, which also equals the number of
	// escrows ever created.
	SequenceKey = "stats/escrow_seq"

	// VolumeKey accumulates every escrowed amount. It only grows; refunds do
	// not subtract.
	VolumeKey = "stats/volume"
)

var (
	ErrZeroAmount      = protocol.E(protocol.KindInvalidArgument, "escrow amount must be positive")
	ErrZeroPayee       = protocol.E(protocol.KindInvalidArgument, "payee cannot be zero address")
	ErrSelfEscrow      = protocol.E(protocol.KindInvalidArgument, "cannot escrow to self")
	ErrInvalidRisk     = protocol.E(protocol.KindInvalidArgument, "risk score exceeds maximum")
	ErrNotFound        = protocol.E(protocol.KindNotFound, "escrow not found")
	ErrNotFunded       = protocol.E(protocol.KindWrongState, "escrow not in funded state")
	ErrHighRiskRelease = protocol.E(protocol.KindNotAuthorized, "high-risk escrow requires admin release")
	ErrReleaseDenied   = protocol.E(protocol.KindNotAuthorized, "only payer or admin may release")
	ErrDisputeDenied   = protocol.E(protocol.KindNotAuthorized, "only payer or admin may dispute")
	ErrNotRefundable   = protocol.E(protocol.KindWrongState, "escrow not refundable")
	ErrRefundDenied    = protocol.E(protocol.KindNotAuthorized, "refund requires admin")
)

// Record is a custodial hold between payer and payee. Amount is captured at
// creation and immutable; the custodied funds leave the vault exactly once,
// on release or refund. ReleasedAt is the settlement time for either
// terminal state.
type Record struct {
	ID                 uint64            `json:"id"`
	Payer              protocol.Identity `json:"payer"`
	Payee              protocol.Identity `json:"payee"`
	Amount             uint64            `json:"amount"`
	ServiceDescription string            `json:"service_description"`
	RiskScore          uint64            `json:"risk_score"`
	State              State             `json:"state"`
	CreatedAt          int64             `json:"created_at"`
	ReleasedAt         int64             `json:"released_at,omitempty"`
	SettlementHash     digest.Digest     `json:"settlement_hash"`
}

func recordKey(id uint64) string { return recordPrefix + strconv.FormatUint(id, 10) }

func getRecord(ctx context.Context, tx ledger.Tx, id uint64) (*Record, error) {
	var rec Record
	ok, err := ledger.GetJSON(ctx, tx, recordKey(id), &rec)
	if err != nil {
		return nil, fmt.Errorf("load escrow %d: %w", id, err)
	}
	if !ok || rec.CreatedAt == 0 {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func putRecord(ctx context.Context, tx ledger.Tx, rec *Record) error {
	if err := ledger.PutJSON(ctx, tx, recordKey(rec.ID), rec); err != nil {
		return fmt.Errorf("store escrow %d: %w", rec.ID, err)
	}
	return nil
}
