package common

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the transport layer. Handlers switch on it to
// choose a status; services wrap the sentinels below with %w to add detail.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPrecondition
	KindConflict
	KindVerificationRejected
	KindProviderUnavailable
)

// String returns the wire tag of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindPrecondition:
		return "precondition_failed"
	case KindConflict:
		return "conflict"
	case KindVerificationRejected:
		return "verification_rejected"
	case KindProviderUnavailable:
		return "provider_unavailable"
	default:
		return "internal"
	}
}

// Error is a structured domain error. Reason carries a machine tag
// (the chain verdict for rejected deposits, the violated rule otherwise).
type Error struct {
	Kind    Kind
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the taxonomy kind of err; unknown errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the machine tag of err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// MessageOf returns the user-safe message of err. Internal errors never leak
// their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}

// Validation builds an input error with a user-safe message.
func Validation(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }
// Precondition builds a business-rule failure.
func Precondition(msg string) *Error { return &Error{Kind: KindPrecondition, Message: msg} }
// Conflict builds a uniqueness failure.
func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }

// Rejected builds a verification rejection carrying the verdict tag.
func Rejected(reason, msg string) *Error {
	return &Error{Kind: KindVerificationRejected, Message: msg, Reason: reason}
}

// Unavailable wraps a transient failure of an external dependency.
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindProviderUnavailable, Message: msg, Err: err}
}

// Input errors
var (
	ErrInvalidAmount   = &Error{Kind: KindValidation, Message: "amount must be positive", Reason: "invalid_amount"}
	ErrInvalidTxHash   = &Error{Kind: KindValidation, Message: "invalid transaction hash format", Reason: "invalid_tx_hash"}
	ErrInvalidAddress  = &Error{Kind: KindValidation, Message: "invalid wallet address", Reason: "invalid_address"}
	ErrInvalidNetwork  = &Error{Kind: KindValidation, Message: "unsupported network", Reason: "invalid_network"}
	ErrUnknownReferral = &Error{Kind: KindValidation, Message: "unknown referral code", Reason: "unknown_referral_code"}
	ErrUnknownSetting  = &Error{Kind: KindValidation, Message: "unknown setting", Reason: "unknown_setting"}
)

// Balance and lifecycle rules
var (
	ErrInsufficientBalance = &Error{Kind: KindPrecondition, Message: "insufficient balance", Reason: "insufficient_balance"}
	ErrBelowMinimum        = &Error{Kind: KindPrecondition, Message: "amount is below the minimum", Reason: "below_minimum"}
	ErrAboveMaximum        = &Error{Kind: KindPrecondition, Message: "amount is above the maximum", Reason: "above_maximum"}
	ErrDailyLimitExceeded  = &Error{Kind: KindPrecondition, Message: "daily withdrawal limit exceeded", Reason: "daily_limit"}
	ErrNetworkUnavailable  = &Error{Kind: KindPrecondition, Message: "network is not currently available", Reason: "network_unavailable"}
	ErrMaintenance         = &Error{Kind: KindPrecondition, Message: "withdrawals are temporarily unavailable", Reason: "maintenance"}
	ErrCoinInactive        = &Error{Kind: KindPrecondition, Message: "coin is not active", Reason: "coin_inactive"}
	ErrPlanInactive        = &Error{Kind: KindPrecondition, Message: "staking plan is not active", Reason: "plan_inactive"}
	ErrPlanCoinMismatch    = &Error{Kind: KindPrecondition, Message: "plan does not belong to the coin", Reason: "plan_coin_mismatch"}
	ErrStakeNotActive      = &Error{Kind: KindPrecondition, Message: "stake is not active", Reason: "stake_not_active"}
	ErrStakeNotMatured     = &Error{Kind: KindPrecondition, Message: "stake has not matured yet", Reason: "stake_not_matured"}
	ErrStakeWithdrawn      = &Error{Kind: KindPrecondition, Message: "stake already withdrawn", Reason: "stake_withdrawn"}
	ErrInvalidTransition   = &Error{Kind: KindPrecondition, Message: "status transition is not allowed", Reason: "invalid_transition"}
	ErrUserInactive        = &Error{Kind: KindPrecondition, Message: "account is deactivated", Reason: "user_inactive"}
	ErrNotFound            = &Error{Kind: KindPrecondition, Message: "not found", Reason: "not_found"}
	ErrNotEligible         = &Error{Kind: KindPrecondition, Message: "not eligible for any salary plan", Reason: "not_eligible"}
	ErrSalaryWalletMissing = &Error{Kind: KindPrecondition, Message: "salary wallet address is not set", Reason: "salary_wallet_missing"}
)

// Uniqueness
var (
	ErrDuplicateTxHash        = &Error{Kind: KindConflict, Message: "transaction has already been processed", Reason: "already_processed"}
	ErrTxBelongsToAnotherUser = &Error{Kind: KindConflict, Message: "transaction belongs to another user", Reason: "belongs_to_another_user"}
	ErrDuplicateCommission    = &Error{Kind: KindConflict, Message: "referral commission already recorded", Reason: "duplicate_commission"}
	ErrDuplicateUser          = &Error{Kind: KindConflict, Message: "username, email or phone already registered", Reason: "duplicate_user"}
	ErrSalaryAlreadyRequested = &Error{Kind: KindConflict, Message: "salary already requested this month", Reason: "salary_already_requested"}
	ErrDuplicateCoin          = &Error{Kind: KindConflict, Message: "coin symbol already exists", Reason: "duplicate_coin"}
	ErrDepositPending         = &Error{Kind: KindConflict, Message: "transaction is already awaiting review", Reason: "pending_review"}
	ErrVerificationInProgress = &Error{Kind: KindConflict, Message: "transaction is being verified, try again shortly", Reason: "verification_in_progress"}
)

// Auth
var (
	ErrWrongCredentials = &Error{Kind: KindValidation, Message: "wrong username or password", Reason: "wrong_credentials"}
	ErrTooManyAttempts  = &Error{Kind: KindPrecondition, Message: "too many login attempts, try again later", Reason: "too_many_attempts"}
)
