// Package ledger describes the persistent entities of the economic engine
// and the transactional contract every storage backend implements.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Network tags.
const (
	NetworkBEP20 = "BEP20"
	NetworkTRC20 = "TRC20"
)

// User is a platform account. Balance never goes below zero and
// TotalStaked always equals the principal of the user's active stakes.
type User struct {
	ID                      int64
	Username                string
	Email                   string
	Phone                   string
	PasswordHash            string
	ReferralCode            string
	ReferredBy              *int64 // immutable once set
	Balance                 decimal.Decimal
	TotalStaked             decimal.Decimal
	TotalEarned             decimal.Decimal
	ReferralBonus           decimal.Decimal
	TwoReferralBonusClaimed bool // never cleared
	PremiumActive           bool // cache of the live qualified-referral rule
	IsAdmin                 bool
	IsActive                bool
	SalaryWallet            string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Coin is a stakeable asset.
type Coin struct {
	ID              int64
	Symbol          string
	Name            string
	MinStake        decimal.Decimal
	DailyReturnRate decimal.Decimal
	Active          bool
	CreatedAt       time.Time
}

// StakingPlan is a fixed-duration plan of one coin.
type StakingPlan struct {
	ID           int64
	CoinID       int64
	DurationDays int
	InterestRate decimal.Decimal // percent per day
	Active       bool
	CreatedAt    time.Time
}

// Stake statuses
const (
	StakeActive    = "active"
	StakeCompleted = "completed"
	StakeCancelled = "cancelled"
)

// Stake locks principal for the plan duration. DailyRate and DurationDays
// are snapshots of the plan taken when the stake was opened.
type Stake struct {
	ID                int64
	UserID            int64
	CoinID            int64
	PlanID            int64
	Amount            decimal.Decimal
	DailyRate         decimal.Decimal
	DurationDays      int
	TotalReturn       decimal.Decimal
	PremiumCommission decimal.Decimal
	StartTime         time.Time
	EndTime           time.Time
	Status            string
	Withdrawn         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Deposit statuses
const (
	DepositPending  = "pending"
	DepositVerified = "verified"
	DepositApproved = "approved"
	DepositRejected = "rejected"
)

// Deposit is a user claim of an on-chain USDT transfer. TxHash is unique
// across all users.
type Deposit struct {
	ID                  int64
	UserID              int64
	Amount              decimal.Decimal
	TxHash              string
	Network             string
	Status              string
	BlockchainVerified  bool
	VerificationDetails map[string]any
	AdminNotes          string
	CreatedAt           time.Time
	ProcessedAt         *time.Time
}

// Final reports whether the deposit has credited the wallet.
func (d *Deposit) Final() bool {
	return d.Status == DepositVerified || d.Status == DepositApproved
}

// Withdrawal statuses
const (
	WithdrawalPending   = "pending"
	WithdrawalApproved  = "approved"
	WithdrawalRejected  = "rejected"
	WithdrawalCompleted = "completed"
)

// Withdrawal is a payout request. Gross is debited at submission.
type Withdrawal struct {
	ID            int64
	UserID        int64
	Amount        decimal.Decimal // gross
	FeeAmount     decimal.Decimal
	NetAmount     decimal.Decimal
	WalletAddress string
	Network       string
	Status        string
	TxHash        string
	AdminNotes    string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	CompletedAt   *time.Time
}

// PaymentAddress is the platform deposit address of a network.
type PaymentAddress struct {
	ID         int64
	Network    string
	Address    string
	MinDeposit decimal.Decimal
	IsActive   bool
	CreatedAt  time.Time
}

// ReferralCommission is the legacy one-time deposit-tier commission.
// At most one row exists per referred user.
type ReferralCommission struct {
	ID             int64
	ReferrerID     int64
	ReferredUserID int64
	Amount         decimal.Decimal
	DepositAmount  decimal.Decimal
	CreatedAt      time.Time
}

// ActivityLog is append-only.
type ActivityLog struct {
	ID          int64
	UserID      *int64
	Action      string
	Description string
	IPAddress   string
	CreatedAt   time.Time
}

// Activity actions written by the engine.
const (
	ActionDepositVerified     = "deposit_verified"
	ActionDepositRejected     = "deposit_rejected"
	ActionDepositApproved     = "deposit_approved"
	ActionDepositRetry        = "retry_rejected_transaction"
	ActionStakeOpened         = "stake_opened"
	ActionPremiumCommission   = "stake_premium_commission"
	ActionStakeWithdrawn      = "stake_withdrawn"
	ActionStakeCancelled      = "stake_cancelled"
	ActionWithdrawalSubmitted = "withdrawal_submitted"
	ActionWithdrawalApproved  = "withdrawal_approved"
	ActionWithdrawalRejected  = "withdrawal_rejected_refund"
	ActionWithdrawalCompleted = "withdrawal_completed"
	ActionTwoReferralBonus    = "two_referral_bonus"
	ActionReferralCommission  = "referral_commission"
	ActionPremiumChanged      = "premium_status_changed"
	ActionSalaryRequest       = "salary_request"
	ActionSalaryProcessed     = "salary_request_processed"
	ActionSalaryWallet        = "salary_wallet_updated"
	ActionRegister            = "register"
	ActionLogin               = "login"
	ActionUserStatus          = "user_status_changed"
	ActionSettingUpdated      = "setting_updated"
	ActionCatalogUpdated      = "catalog_updated"
)

// PlatformSetting is a raw key/value row. Consumers read the typed view.
type PlatformSetting struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}

// Salary request statuses
const (
	SalaryPending  = "pending"
	SalaryApproved = "approved"
	SalaryRejected = "rejected"
)

// SalaryRequest records a monthly salary payout to be executed manually.
type SalaryRequest struct {
	ID            int64
	UserID        int64
	Tier          int
	Amount        decimal.Decimal
	WalletAddress string
	Status        string
	TxHash        string
	AdminNotes    string
	ProcessedBy   *int64
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// LoginAttempt is one password check.
type LoginAttempt struct {
	Login     string
	Success   bool
	CreatedAt time.Time
}
