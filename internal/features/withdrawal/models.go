// Package withdrawal is the manual payout workflow. The gross amount leaves
// the wallet at submission; admins approve, complete or reject.
package withdrawal

import (
	"time"

	"github.com/shopspring/decimal"

	"stakehub/internal/ledger"
)

type SubmitRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address" validate:"required,max=128"`
	Network string          `json:"network" validate:"required"`
}

type ReviewRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

type CompleteRequest struct {
	TxHash string `json:"tx_hash" validate:"required,max=128"`
	Notes  string `json:"notes" validate:"max=500"`
}

// Quote is the fee breakdown of a withdrawal amount.
type Quote struct {
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	Net       decimal.Decimal `json:"net"`
	FeeWaived bool            `json:"fee_waived"`
}

type SubmitResult struct {
	WithdrawalID int64  `json:"withdrawal_id"`
	Status       string `json:"status"`
	Quote
}

type View struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	FeeAmount     decimal.Decimal `json:"fee_amount"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	WalletAddress string          `json:"wallet_address"`
	Network       string          `json:"network"`
	Status        string          `json:"status"`
	TxHash        string          `json:"tx_hash,omitempty"`
	AdminNotes    string          `json:"admin_notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

func toView(w *ledger.Withdrawal) View {
	return View{
		ID:            w.ID,
		UserID:        w.UserID,
		Amount:        w.Amount,
		FeeAmount:     w.FeeAmount,
		NetAmount:     w.NetAmount,
		WalletAddress: w.WalletAddress,
		Network:       w.Network,
		Status:        w.Status,
		TxHash:        w.TxHash,
		AdminNotes:    w.AdminNotes,
		CreatedAt:     w.CreatedAt,
		ProcessedAt:   w.ProcessedAt,
		CompletedAt:   w.CompletedAt,
	}
}
