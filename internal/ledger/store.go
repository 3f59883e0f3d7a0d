package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Storage-level errors. Backends map driver errors onto these.
var (
	ErrNotFound        = errors.New("ledger: not found")
	ErrUniqueViolation = errors.New("ledger: unique constraint violated")
)

// Constraint names surfaced through UniqueError.
const (
	ConstraintDepositTxHash      = "deposits_tx_hash_key"
	ConstraintReferralCode       = "users_referral_code_key"
	ConstraintUsername           = "users_username_key"
	ConstraintEmail              = "users_email_key"
	ConstraintPhone              = "users_phone_key"
	ConstraintCommissionReferred = "referral_commissions_referred_user_id_key"
	ConstraintCoinSymbol         = "coins_symbol_key"
)

// UniqueError tells which constraint rejected a write.
type UniqueError struct {
	Constraint string
}

func (e *UniqueError) Error() string { return "unique constraint " + e.Constraint }

func (e *UniqueError) Is(target error) bool { return target == ErrUniqueViolation }

// ConstraintOf returns the constraint name of a unique violation, or "".
func ConstraintOf(err error) string {
	var ue *UniqueError
	if errors.As(err, &ue) {
		return ue.Constraint
	}
	return ""
}

// Store runs units of work. fn's writes commit together when it returns nil
// and roll back otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// ListFilter narrows list queries. Zero values mean "no filter".
type ListFilter struct {
	UserID int64
	Status string
	Action string
	Limit  int
	Offset int
}

// Tx is one database transaction. Methods with ForUpdate take a row lock
// held until commit.
type Tx interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserForUpdate(ctx context.Context, id int64) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*User, error)
	SaveUserBalances(ctx context.Context, u *User) error
	SetUserActive(ctx context.Context, id int64, active bool) error
	SetSalaryWallet(ctx context.Context, id int64, address string) error
	ListUsers(ctx context.Context, f ListFilter) ([]*User, error)
	ListReferrals(ctx context.Context, referrerID int64) ([]*User, error)
	ListReferrerIDs(ctx context.Context) ([]int64, error)
	ListSalaryCandidates(ctx context.Context) ([]*User, error)
	// EconomicBalance is wallet balance plus principal of active stakes.
	EconomicBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	// CountQualifiedReferrals counts direct referrals whose economic
	// balance is at least threshold, in one query.
	CountQualifiedReferrals(ctx context.Context, referrerID int64, threshold decimal.Decimal) (int, error)

	// Catalog
	CreateCoin(ctx context.Context, c *Coin) error
	UpdateCoin(ctx context.Context, c *Coin) error
	GetCoin(ctx context.Context, id int64) (*Coin, error)
	ListCoins(ctx context.Context, activeOnly bool) ([]*Coin, error)
	CreatePlan(ctx context.Context, p *StakingPlan) error
	UpdatePlan(ctx context.Context, p *StakingPlan) error
	GetPlan(ctx context.Context, id int64) (*StakingPlan, error)
	ListPlans(ctx context.Context, coinID int64, activeOnly bool) ([]*StakingPlan, error)
	UpsertPaymentAddress(ctx context.Context, a *PaymentAddress) error
	DeactivatePaymentAddresses(ctx context.Context, network string, exceptID int64) error
	GetActivePaymentAddress(ctx context.Context, network string) (*PaymentAddress, error)
	ListPaymentAddresses(ctx context.Context) ([]*PaymentAddress, error)

	// Stakes
	InsertStake(ctx context.Context, s *Stake) error
	GetStake(ctx context.Context, id int64) (*Stake, error)
	GetStakeForUpdate(ctx context.Context, id int64) (*Stake, error)
	UpdateStakeStatus(ctx context.Context, s *Stake) error
	ListStakes(ctx context.Context, f ListFilter) ([]*Stake, error)

	// Deposits
	InsertDeposit(ctx context.Context, d *Deposit) error
	GetDeposit(ctx context.Context, id int64) (*Deposit, error)
	GetDepositForUpdate(ctx context.Context, id int64) (*Deposit, error)
	GetDepositByTxHash(ctx context.Context, hash string) (*Deposit, error)
	DeleteDeposit(ctx context.Context, id int64) error
	UpdateDeposit(ctx context.Context, d *Deposit) error
	ListDeposits(ctx context.Context, f ListFilter) ([]*Deposit, error)

	// Withdrawals
	InsertWithdrawal(ctx context.Context, w *Withdrawal) error
	GetWithdrawalForUpdate(ctx context.Context, id int64) (*Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w *Withdrawal) error
	ListWithdrawals(ctx context.Context, f ListFilter) ([]*Withdrawal, error)
	// SumWithdrawalsSince totals non-rejected withdrawals created at or after since.
	SumWithdrawalsSince(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error)

	// Referral commissions (legacy)
	InsertReferralCommission(ctx context.Context, c *ReferralCommission) error
	ListReferralCommissions(ctx context.Context, referrerID int64) ([]*ReferralCommission, error)

	// Activity
	AppendActivity(ctx context.Context, a *ActivityLog) error
	ListActivity(ctx context.Context, f ListFilter) ([]*ActivityLog, error)

	// Settings
	ListSettings(ctx context.Context) ([]*PlatformSetting, error)
	UpsertSetting(ctx context.Context, s *PlatformSetting) error

	// Salary
	InsertSalaryRequest(ctx context.Context, r *SalaryRequest) error
	GetSalaryRequestForUpdate(ctx context.Context, id int64) (*SalaryRequest, error)
	UpdateSalaryRequest(ctx context.Context, r *SalaryRequest) error
	HasSalaryRequestSince(ctx context.Context, userID int64, since time.Time) (bool, error)
	ListSalaryRequests(ctx context.Context, f ListFilter) ([]*SalaryRequest, error)

	// Login attempts
	RecordLoginAttempt(ctx context.Context, a *LoginAttempt) error
	CountFailedLogins(ctx context.Context, login string, since time.Time) (int, error)
}

// Log appends an activity row for userID inside tx.
func Log(ctx context.Context, tx Tx, userID int64, action, description string, at time.Time) error {
	uid := userID
	return tx.AppendActivity(ctx, &ActivityLog{
		UserID:      &uid,
		Action:      action,
		Description: description,
		IPAddress:   IPFromContext(ctx),
		CreatedAt:   at,
	})
}

type ipKey struct{}

// WithIP attaches the client IP to ctx so activity rows can record it.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// IPFromContext returns the client IP attached by WithIP.
func IPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey{}).(string)
	return ip
}
