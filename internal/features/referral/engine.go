// Package referral is the Referral & Premium Engine. Qualified referrals are
// counted live from balances; the only persisted outcomes are the one-time
// bonus flag and a cached premium flag.
package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/common"
	"stakehub/internal/features/settings"
	"stakehub/internal/ledger"
	"stakehub/internal/metrics"
)

// SettingsSource supplies the current platform settings.
type SettingsSource interface {
	Get() settings.Settings
}

// Engine evaluates premium status inside the caller's transaction.
//
// Hooks lock the referrer row after the caller locked the referred user, so
// locks are always taken from child to referrer. Callers must persist their
// own changes to a user before running a hook that may touch the same row.
type Engine struct {
	settings SettingsSource
	clock    common.Clock
	legacy   bool // deposit-tier commission
}

// NewEngine creates the engine. legacyCommission enables the deposit-tier commission.
func NewEngine(s SettingsSource, clock common.Clock, legacyCommission bool) *Engine {
	return &Engine{settings: s, clock: clock, legacy: legacyCommission}
}

// Evaluation is the outcome of a re-evaluation.
type Evaluation struct {
	UserID    int64
	Qualified int
	Premium   bool
	Changed   bool
	Bonus     decimal.Decimal // zero unless awarded now
}

// QualifiedCount counts the user's direct referrals whose economic balance
// meets the activation threshold.
func (e *Engine) QualifiedCount(ctx context.Context, tx ledger.Tx, userID int64) (int, error) {
	return tx.CountQualifiedReferrals(ctx, userID, e.settings.Get().MinReferralActivation)
}

// IsPremium decides premium benefits from the live count; the stored flag is
// only a cache.
func (e *Engine) IsPremium(ctx context.Context, tx ledger.Tx, userID int64) (bool, error) {
	n, err := e.QualifiedCount(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	return n >= e.settings.Get().PremiumReferralCount, nil
}

// Reevaluate locks the user, syncs the premium flag and pays the one-time
// bonus the first time premium is reached. The bonus is never paid twice and
// never clawed back.
func (e *Engine) Reevaluate(ctx context.Context, tx ledger.Tx, userID int64) (Evaluation, error) {
	cfg := e.settings.Get()

	u, err := tx.GetUserForUpdate(ctx, userID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("lock user %d: %w", userID, err)
	}
	n, err := tx.CountQualifiedReferrals(ctx, userID, cfg.MinReferralActivation)
	if err != nil {
		return Evaluation{}, fmt.Errorf("count qualified referrals: %w", err)
	}

	ev := Evaluation{UserID: userID, Qualified: n, Premium: n >= cfg.PremiumReferralCount}
	ev.Changed = ev.Premium != u.PremiumActive

	now := e.clock.Now()
	awardBonus := ev.Premium && !u.TwoReferralBonusClaimed && cfg.TwoReferralBonus.IsPositive()
	if !ev.Changed && !awardBonus {
		return ev, nil
	}

	u.PremiumActive = ev.Premium
	if awardBonus {
		ev.Bonus = cfg.TwoReferralBonus
		u.Balance = u.Balance.Add(ev.Bonus)
		u.ReferralBonus = u.ReferralBonus.Add(ev.Bonus)
		u.TwoReferralBonusClaimed = true
	}
	u.UpdatedAt = now
	if err := tx.SaveUserBalances(ctx, u); err != nil {
		return Evaluation{}, fmt.Errorf("save premium state: %w", err)
	}

	if ev.Changed {
		state := "deactivated"
		if ev.Premium {
			state = "activated"
		}
		desc := fmt.Sprintf("Premium benefits %s (%d qualified referrals)", state, n)
		if err := ledger.Log(ctx, tx, userID, ledger.ActionPremiumChanged, desc, now); err != nil {
			return Evaluation{}, err
		}
	}
	if awardBonus {
		desc := fmt.Sprintf("Two-referral bonus %s credited", common.FormatUSDT(ev.Bonus))
		if err := ledger.Log(ctx, tx, userID, ledger.ActionTwoReferralBonus, desc, now); err != nil {
			return Evaluation{}, err
		}
		metrics.ReferralBonusesTotal.Inc()
		log.WithFields(log.Fields{
			"user_id":   userID,
			"qualified": n,
			"bonus":     ev.Bonus.String(),
		}).Info("Two-referral bonus awarded")
	}
	return ev, nil
}

// AfterDeposit runs after a deposit of amount was credited to user.
func (e *Engine) AfterDeposit(ctx context.Context, tx ledger.Tx, user *ledger.User, amount decimal.Decimal) error {
	if user.ReferredBy == nil {
		return nil
	}
	referrerID := *user.ReferredBy

	if e.legacy {
		if err := e.depositCommission(ctx, tx, referrerID, user.ID, amount); err != nil {
			return err
		}
	}
	if _, err := e.Reevaluate(ctx, tx, referrerID); err != nil {
		return fmt.Errorf("re-evaluate referrer: %w", err)
	}
	return nil
}

// AfterBalanceChange re-evaluates the user and the user's direct referrer.
func (e *Engine) AfterBalanceChange(ctx context.Context, tx ledger.Tx, user *ledger.User) error {
	if _, err := e.Reevaluate(ctx, tx, user.ID); err != nil {
		return fmt.Errorf("re-evaluate user: %w", err)
	}
	if user.ReferredBy == nil {
		return nil
	}
	if _, err := e.Reevaluate(ctx, tx, *user.ReferredBy); err != nil {
		return fmt.Errorf("re-evaluate referrer: %w", err)
	}
	return nil
}

// CommissionFor returns the legacy deposit-tier commission:
// [50,200) → 7, [200,300) → 15, [300,∞) → 26.
func CommissionFor(deposit decimal.Decimal) decimal.Decimal {
	switch {
	case deposit.GreaterThanOrEqual(decimal.NewFromInt(300)):
		return decimal.NewFromInt(26)
	case deposit.GreaterThanOrEqual(decimal.NewFromInt(200)):
		return decimal.NewFromInt(15)
	case deposit.GreaterThanOrEqual(decimal.NewFromInt(50)):
		return decimal.NewFromInt(7)
	}
	return decimal.Zero
}

// depositCommission records the legacy commission once per referred user.
// The unique constraint on referred_user_id decides who wins.
func (e *Engine) depositCommission(ctx context.Context, tx ledger.Tx, referrerID, referredID int64, deposit decimal.Decimal) error {
	amount := CommissionFor(deposit)
	if amount.IsZero() {
		return nil
	}
	now := e.clock.Now()

	err := tx.InsertReferralCommission(ctx, &ledger.ReferralCommission{
		ReferrerID:     referrerID,
		ReferredUserID: referredID,
		Amount:         amount,
		DepositAmount:  deposit,
		CreatedAt:      now,
	})
	if errors.Is(err, ledger.ErrUniqueViolation) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert referral commission: %w", err)
	}

	r, err := tx.GetUserForUpdate(ctx, referrerID)
	if err != nil {
		return fmt.Errorf("lock referrer: %w", err)
	}
	r.Balance = r.Balance.Add(amount)
	r.ReferralBonus = r.ReferralBonus.Add(amount)
	r.UpdatedAt = now
	if err := tx.SaveUserBalances(ctx, r); err != nil {
		return fmt.Errorf("credit referral commission: %w", err)
	}

	desc := fmt.Sprintf("Referral commission %s for user #%d deposit of %s",
		common.FormatUSDT(amount), referredID, common.FormatUSDT(deposit))
	return ledger.Log(ctx, tx, referrerID, ledger.ActionReferralCommission, desc, now)
}
