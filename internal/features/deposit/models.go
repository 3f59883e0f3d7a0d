// Package deposit is Deposit Intake: it turns a user's deposit claim into a
// credited deposit or a recorded rejection.
package deposit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stakehub/internal/chain"
	"stakehub/internal/ledger"
)

// Verifier checks a transfer on chain.
type Verifier interface {
	Verify(ctx context.Context, req chain.Request) chain.Verdict
}

// Claims serialises concurrent verifications of one hash.
type Claims interface {
	Acquire(ctx context.Context, txHash string) (token string, ok bool, err error)
	Release(ctx context.Context, txHash, token string) error
}

// SubmitRequest is the user's claim.
type SubmitRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	TxHash  string          `json:"tx_hash" validate:"required,max=128"`
	Network string          `json:"network" validate:"required"`
}

// Result answers a submission.
type Result struct {
	DepositID      int64           `json:"deposit_id"`
	Status         string          `json:"status"`
	Verified       bool            `json:"verified"`
	Credited       bool            `json:"credited"`
	AmountCredited decimal.Decimal `json:"amount_credited"`
	TxHash         string          `json:"tx_hash"`
	Reason         string          `json:"reason,omitempty"`
}

// ReviewRequest is the admin approve/reject body.
type ReviewRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

// View is a deposit as listed to users and admins.
type View struct {
	ID                  int64           `json:"id"`
	UserID              int64           `json:"user_id"`
	Amount              decimal.Decimal `json:"amount"`
	TxHash              string          `json:"tx_hash"`
	Network             string          `json:"network"`
	Status              string          `json:"status"`
	BlockchainVerified  bool            `json:"blockchain_verified"`
	VerificationDetails map[string]any  `json:"verification_details,omitempty"`
	AdminNotes          string          `json:"admin_notes,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	ProcessedAt         *time.Time      `json:"processed_at,omitempty"`
}

func toView(d *ledger.Deposit) View {
	return View{
		ID:                  d.ID,
		UserID:              d.UserID,
		Amount:              d.Amount,
		TxHash:              d.TxHash,
		Network:             d.Network,
		Status:              d.Status,
		BlockchainVerified:  d.BlockchainVerified,
		VerificationDetails: d.VerificationDetails,
		AdminNotes:          d.AdminNotes,
		CreatedAt:           d.CreatedAt,
		ProcessedAt:         d.ProcessedAt,
	}
}
