// Package staking is the Stake Engine: fixed-term stakes with a daily rate
// frozen at open time.
package staking

import (
	"time"

	"github.com/shopspring/decimal"

	"stakehub/internal/ledger"
)

const day = 24 * time.Hour

type OpenRequest struct {
	CoinID int64           `json:"coin_id" validate:"required,gt=0"`
	PlanID int64           `json:"plan_id" validate:"required,gt=0"`
	Amount decimal.Decimal `json:"amount"`
}

type OpenResult struct {
	StakeID           int64           `json:"stake_id"`
	Amount            decimal.Decimal `json:"amount"`
	DailyRate         decimal.Decimal `json:"daily_rate"`
	TotalReturn       decimal.Decimal `json:"total_return"`
	PremiumCommission decimal.Decimal `json:"premium_commission"`
	EndTime           time.Time       `json:"end_time"`
}

type WithdrawResult struct {
	StakeID       int64           `json:"stake_id"`
	Principal     decimal.Decimal `json:"principal"`
	Earnings      decimal.Decimal `json:"earnings"`
	CreditedTotal decimal.Decimal `json:"credited_total"`
}

type CancelResult struct {
	StakeID           int64           `json:"stake_id"`
	RefundedPrincipal decimal.Decimal `json:"refunded_principal"`
}

// View is a stake with its live accrual.
type View struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	CoinID            int64           `json:"coin_id"`
	PlanID            int64           `json:"plan_id"`
	Amount            decimal.Decimal `json:"amount"`
	DailyRate         decimal.Decimal `json:"daily_rate"`
	DurationDays      int             `json:"duration_days"`
	TotalReturn       decimal.Decimal `json:"total_return"`
	PremiumCommission decimal.Decimal `json:"premium_commission"`
	CurrentReturn     decimal.Decimal `json:"current_return"`
	DaysElapsed       int             `json:"days_elapsed"`
	DaysRemaining     int             `json:"days_remaining"`
	Matured           bool            `json:"matured"`
	Status            string          `json:"status"`
	Withdrawn         bool            `json:"withdrawn"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
}

func toView(s *ledger.Stake, now time.Time) View {
	v := View{
		ID:                s.ID,
		UserID:            s.UserID,
		CoinID:            s.CoinID,
		PlanID:            s.PlanID,
		Amount:            s.Amount,
		DailyRate:         s.DailyRate,
		DurationDays:      s.DurationDays,
		TotalReturn:       s.TotalReturn,
		PremiumCommission: s.PremiumCommission,
		CurrentReturn:     CurrentReturn(s, now),
		DaysElapsed:       DaysElapsed(s, now),
		Matured:           !now.Before(s.EndTime),
		Status:            s.Status,
		Withdrawn:         s.Withdrawn,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
	}
	if !v.Matured {
		v.DaysRemaining = int(s.EndTime.Sub(now) / day)
	}
	return v
}

// TotalReturn is the full-term accrual: amount × rate × days / 100.
func TotalReturn(amount, dailyRate decimal.Decimal, days int) decimal.Decimal {
	return amount.Mul(dailyRate).Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(100))
}

// DaysElapsed counts whole days since start, capped at the duration.
func DaysElapsed(s *ledger.Stake, now time.Time) int {
	if now.Before(s.StartTime) {
		return 0
	}
	d := int(now.Sub(s.StartTime) / day)
	if d > s.DurationDays {
		d = s.DurationDays
	}
	return d
}

// CurrentReturn is the accrual so far plus the premium commission.
// Cancelled stakes earn nothing.
func CurrentReturn(s *ledger.Stake, now time.Time) decimal.Decimal {
	if s.Status == ledger.StakeCancelled {
		return decimal.Zero
	}
	return TotalReturn(s.Amount, s.DailyRate, DaysElapsed(s, now)).Add(s.PremiumCommission)
}
