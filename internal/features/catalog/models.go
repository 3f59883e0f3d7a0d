// Package catalog manages what users can stake and where they deposit:
// coins, staking plans and platform payment addresses.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"stakehub/internal/ledger"
)

type CoinRequest struct {
	Symbol          string          `json:"symbol" validate:"required,min=2,max=10,alphanum"`
	Name            string          `json:"name" validate:"required,max=50"`
	MinStake        decimal.Decimal `json:"min_stake"`
	DailyReturnRate decimal.Decimal `json:"daily_return_rate"`
	Active          *bool           `json:"active"`
}

type PlanRequest struct {
	CoinID       int64           `json:"coin_id" validate:"required,gt=0"`
	DurationDays int             `json:"duration_days" validate:"required,gt=0,lte=3650"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Active       *bool           `json:"active"`
}

// AddressRequest upserts a deposit address. A zero MinDeposit takes the
// min_deposit setting.
type AddressRequest struct {
	Network    string          `json:"network" validate:"required"`
	Address    string          `json:"address" validate:"required,min=26,max=128"`
	MinDeposit decimal.Decimal `json:"min_deposit"`
	Active     *bool           `json:"active"`
}

type CoinView struct {
	ID              int64           `json:"id"`
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	MinStake        decimal.Decimal `json:"min_stake"`
	DailyReturnRate decimal.Decimal `json:"daily_return_rate"`
	Active          bool            `json:"active"`
	Plans           []PlanView      `json:"plans,omitempty"`
}

type PlanView struct {
	ID           int64           `json:"id"`
	CoinID       int64           `json:"coin_id"`
	DurationDays int             `json:"duration_days"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	TotalPercent decimal.Decimal `json:"total_percent"`
	Active       bool            `json:"active"`
}

type AddressView struct {
	ID         int64           `json:"id"`
	Network    string          `json:"network"`
	Address    string          `json:"address"`
	MinDeposit decimal.Decimal `json:"min_deposit"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toCoinView(c *ledger.Coin) CoinView {
	return CoinView{
		ID:              c.ID,
		Symbol:          c.Symbol,
		Name:            c.Name,
		MinStake:        c.MinStake,
		DailyReturnRate: c.DailyReturnRate,
		Active:          c.Active,
	}
}

// toPlanView also reports the plan's total return in percent of principal.
func toPlanView(p *ledger.StakingPlan) PlanView {
	return PlanView{
		ID:           p.ID,
		CoinID:       p.CoinID,
		DurationDays: p.DurationDays,
		InterestRate: p.InterestRate,
		TotalPercent: p.InterestRate.Mul(decimal.NewFromInt(int64(p.DurationDays))),
		Active:       p.Active,
	}
}

func toAddressView(a *ledger.PaymentAddress) AddressView {
	return AddressView{
		ID:         a.ID,
		Network:    a.Network,
		Address:    a.Address,
		MinDeposit: a.MinDeposit,
		Active:     a.IsActive,
		CreatedAt:  a.CreatedAt,
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
