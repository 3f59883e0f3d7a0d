// Package users covers registration, login, profiles and admin user
// management.
package users

import (
	"time"

	"github.com/shopspring/decimal"

	"stakehub/internal/features/salary"
	"stakehub/internal/ledger"
)

type RegisterRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email        string `json:"email" validate:"required,email,max=120"`
	Phone        string `json:"phone" validate:"omitempty,min=6,max=20"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	ReferralCode string `json:"referral_code" validate:"omitempty,len=8,alphanum"`
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=120"`
	Password string `json:"password" validate:"required,max=128"`
}

type StatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      int64     `json:"user_id"`
	IsAdmin     bool      `json:"is_admin"`
}

// Profile is the dashboard view of an account. Premium and the salary
// marker are computed live.
type Profile struct {
	ID                      int64           `json:"id"`
	Username                string          `json:"username"`
	Email                   string          `json:"email"`
	Phone                   string          `json:"phone,omitempty"`
	ReferralCode            string          `json:"referral_code"`
	ReferredBy              *int64          `json:"referred_by,omitempty"`
	Balance                 decimal.Decimal `json:"balance"`
	TotalStaked             decimal.Decimal `json:"total_staked"`
	TotalEarned             decimal.Decimal `json:"total_earned"`
	ReferralBonus           decimal.Decimal `json:"referral_bonus"`
	EconomicBalance         decimal.Decimal `json:"economic_balance"`
	QualifiedReferrals      int             `json:"qualified_referrals"`
	PremiumActive           bool            `json:"premium_active"`
	TwoReferralBonusClaimed bool            `json:"two_referral_bonus_claimed"`
	SalaryEligible          bool            `json:"salary_eligible"`
	SalaryTier              *salary.Tier    `json:"salary_tier,omitempty"`
	SalaryWallet            string          `json:"salary_wallet,omitempty"`
	IsAdmin                 bool            `json:"is_admin"`
	CreatedAt               time.Time       `json:"created_at"`
}

// AdminView is a user row in the admin list.
type AdminView struct {
	ID          int64           `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	TotalStaked decimal.Decimal `json:"total_staked"`
	ReferredBy  *int64          `json:"referred_by,omitempty"`
	Premium     bool            `json:"premium_active"`
	IsAdmin     bool            `json:"is_admin"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toAdminView(u *ledger.User) AdminView {
	return AdminView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Phone:       u.Phone,
		Balance:     u.Balance,
		TotalStaked: u.TotalStaked,
		ReferredBy:  u.ReferredBy,
		Premium:     u.PremiumActive,
		IsAdmin:     u.IsAdmin,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}
