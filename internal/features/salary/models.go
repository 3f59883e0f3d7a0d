// Package salary evaluates monthly salary tiers and records salary payout
// requests for manual processing.
package salary

import (
	"time"

	"github.com/shopspring/decimal"

	"stakehub/internal/ledger"
)

// Tier is one row of the salary table.
type Tier struct {
	Level         int             `json:"tier"`
	MinReferrals  int             `json:"min_referrals"`
	MinBalance    decimal.Decimal `json:"min_balance"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
}

// Tiers is ordered from the highest tier down.
var Tiers = []Tier{
	{Level: 4, MinReferrals: 46, MinBalance: decimal.NewFromInt(1340), MonthlyAmount: decimal.NewFromInt(480)},
	{Level: 3, MinReferrals: 27, MinBalance: decimal.NewFromInt(960), MonthlyAmount: decimal.NewFromInt(230)},
	{Level: 2, MinReferrals: 13, MinBalance: decimal.NewFromInt(680), MonthlyAmount: decimal.NewFromInt(110)},
	{Level: 1, MinReferrals: 7, MinBalance: decimal.NewFromInt(350), MonthlyAmount: decimal.NewFromInt(50)},
}

// Evaluate returns the highest tier met by q qualified referrals and
// economic balance b.
func Evaluate(q int, b decimal.Decimal) (Tier, bool) {
	for _, t := range Tiers {
		if q >= t.MinReferrals && b.GreaterThanOrEqual(t.MinBalance) {
			return t, true
		}
	}
	return Tier{}, false
}

// next returns the tier above current, or the lowest tier when current is 0.
func next(current int) (Tier, bool) {
	for i := len(Tiers) - 1; i >= 0; i-- {
		if Tiers[i].Level > current {
			return Tiers[i], true
		}
	}
	return Tier{}, false
}

// Progress is the user's position on the salary table.
type Progress struct {
	QualifiedReferrals int             `json:"qualified_referrals"`
	EconomicBalance    decimal.Decimal `json:"economic_balance"`
	Eligible           bool            `json:"eligible"`
	Current            *Tier           `json:"current_tier,omitempty"`
	Next               *Tier           `json:"next_tier,omitempty"`
	ReferralProgress   int             `json:"referral_progress"` // percent toward Next
	BalanceProgress    int             `json:"balance_progress"`
	SalaryWallet       string          `json:"salary_wallet,omitempty"`
	RequestedThisMonth bool            `json:"requested_this_month"`
}

// percent is part/whole in whole percent, capped at 100.
func percent(part, whole decimal.Decimal) int {
	if !whole.IsPositive() {
		return 100
	}
	p := part.Mul(decimal.NewFromInt(100)).Div(whole).IntPart()
	switch {
	case p > 100:
		return 100
	case p < 0:
		return 0
	}
	return int(p)
}

type WalletRequest struct {
	Address string `json:"address" validate:"required,max=128"`
}

type ApproveRequest struct {
	TxHash string `json:"tx_hash" validate:"max=128"`
	Notes  string `json:"notes" validate:"max=500"`
}

type RejectRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

type View struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Tier          int             `json:"tier"`
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address"`
	Status        string          `json:"status"`
	TxHash        string          `json:"tx_hash,omitempty"`
	AdminNotes    string          `json:"admin_notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

func toView(r *ledger.SalaryRequest) View {
	return View{
		ID:            r.ID,
		UserID:        r.UserID,
		Tier:          r.Tier,
		Amount:        r.Amount,
		WalletAddress: r.WalletAddress,
		Status:        r.Status,
		TxHash:        r.TxHash,
		AdminNotes:    r.AdminNotes,
		CreatedAt:     r.CreatedAt,
		ProcessedAt:   r.ProcessedAt,
	}
}

// RunResult summarises a monthly generation run.
type RunResult struct {
	Candidates int `json:"candidates"`
	Created    int `json:"created"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}
