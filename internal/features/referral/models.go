package referral

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralView is one direct referral as shown to the referrer.
type ReferralView struct {
	ID              int64           `json:"id"`
	Username        string          `json:"username"`
	EconomicBalance decimal.Decimal `json:"economic_balance"`
	Qualified       bool            `json:"qualified"`
	JoinedAt        time.Time       `json:"joined_at"`
}

// CommissionView is a legacy deposit commission row.
type CommissionView struct {
	ReferredUserID int64           `json:"referred_user_id"`
	Amount         decimal.Decimal `json:"amount"`
	DepositAmount  decimal.Decimal `json:"deposit_amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Overview summarises the referral program for one user.
type Overview struct {
	ReferralCode            string           `json:"referral_code"`
	TotalReferrals          int              `json:"total_referrals"`
	QualifiedReferrals      int              `json:"qualified_referrals"`
	RequiredReferrals       int              `json:"required_referrals"`
	ActivationThreshold     decimal.Decimal  `json:"activation_threshold"`
	PremiumActive           bool             `json:"premium_active"`
	TwoReferralBonusClaimed bool             `json:"two_referral_bonus_claimed"`
	ReferralBonus           decimal.Decimal  `json:"referral_bonus"`
	Referrals               []ReferralView   `json:"referrals"`
	Commissions             []CommissionView `json:"commissions,omitempty"`
}

// SweepResult counts what a premium sweep changed.
type SweepResult struct {
	Evaluated int
	Changed   int
	Bonuses   int
	Failed    int
}
