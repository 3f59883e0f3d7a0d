package referral

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/internal/common"
	"stakehub/internal/db/memory"
	"stakehub/internal/features/settings"
	"stakehub/internal/ledger"
	lt "stakehub/internal/ledger/ledgertest"
)

func newEngine(legacy bool) (*memory.Store, *Engine) {
	store := memory.New()
	clock := common.NewFixedClock(lt.Epoch)
	return store, NewEngine(settings.Fixed(settings.Defaults()), clock, legacy)
}

func setBalance(t *testing.T, s ledger.Store, id int64, amount string) {
	t.Helper()
	lt.Do(t, s, func(ctx context.Context, tx ledger.Tx) error {
		u, err := tx.GetUserForUpdate(ctx, id)
		if err != nil {
			return err
		}
		u.Balance = lt.D(amount)
		return tx.SaveUserBalances(ctx, u)
	})
}

func reevaluate(t *testing.T, s ledger.Store, e *Engine, id int64) Evaluation {
	t.Helper()
	var ev Evaluation
	lt.Do(t, s, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		ev, err = e.Reevaluate(ctx, tx, id)
		return err
	})
	return ev
}

func TestReevaluateAwardsBonusOnce(t *testing.T) {
	store, e := newEngine(false)
	r := lt.CreateUser(t, store, "referrer")
	u1 := lt.CreateUser(t, store, "u1", lt.WithReferrer(r))
	u2 := lt.CreateUser(t, store, "u2", lt.WithReferrer(r))

	setBalance(t, store, u1.ID, "100")
	ev := reevaluate(t, store, e, r.ID)
	assert.Equal(t, 1, ev.Qualified)
	assert.False(t, ev.Premium)
	assert.True(t, ev.Bonus.IsZero())

	setBalance(t, store, u2.ID, "100")
	ev = reevaluate(t, store, e, r.ID)
	assert.Equal(t, 2, ev.Qualified)
	assert.True(t, ev.Premium)
	assert.True(t, ev.Changed)
	assert.True(t, ev.Bonus.Equal(decimal.NewFromInt(20)))

	got := lt.User(t, store, r.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(20)))
	assert.True(t, got.ReferralBonus.Equal(decimal.NewFromInt(20)))
	assert.True(t, got.TwoReferralBonusClaimed)
	assert.True(t, got.PremiumActive)

	// count drops then recovers: flag flips, bonus stays single
	setBalance(t, store, u1.ID, "99.99")
	ev = reevaluate(t, store, e, r.ID)
	assert.False(t, ev.Premium)
	assert.True(t, ev.Changed)

	got = lt.User(t, store, r.ID)
	assert.False(t, got.PremiumActive)
	assert.True(t, got.TwoReferralBonusClaimed)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(20)))

	setBalance(t, store, u1.ID, "500")
	ev = reevaluate(t, store, e, r.ID)
	assert.True(t, ev.Premium)
	assert.True(t, ev.Bonus.IsZero())

	got = lt.User(t, store, r.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(20)))
	assert.Len(t, lt.Activity(t, store, r.ID, ledger.ActionTwoReferralBonus), 1)
	assert.Len(t, lt.Activity(t, store, r.ID, ledger.ActionPremiumChanged), 3)
}

func TestActiveStakesCountTowardQualification(t *testing.T) {
	store, e := newEngine(false)
	r := lt.CreateUser(t, store, "referrer")
	u1 := lt.CreateUser(t, store, "u1", lt.WithReferrer(r), lt.WithBalance("40"))
	lt.CreateUser(t, store, "u2", lt.WithReferrer(r), lt.WithBalance("100"))
	coin, plan := lt.CoinAndPlan(t, store, "USDT", "10", "1", 30)

	lt.Stake(t, store, &ledger.Stake{UserID: u1.ID, CoinID: coin.ID, PlanID: plan.ID, Amount: lt.D("60"), DurationDays: 30})

	var premium bool
	lt.Do(t, store, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		premium, err = e.IsPremium(ctx, tx, r.ID)
		return err
	})
	assert.True(t, premium, "40 wallet + 60 staked is a qualified referral")
}

func TestAfterDepositWithoutReferrer(t *testing.T) {
	store, e := newEngine(true)
	u := lt.CreateUser(t, store, "solo", lt.WithBalance("500"))

	lt.Do(t, store, func(ctx context.Context, tx ledger.Tx) error {
		return e.AfterDeposit(ctx, tx, u, lt.D("500"))
	})
	assert.True(t, lt.User(t, store, u.ID).Balance.Equal(decimal.NewFromInt(500)))
}

func TestLegacyCommissionOncePerReferredUser(t *testing.T) {
	store, e := newEngine(true)
	r := lt.CreateUser(t, store, "referrer")
	u := lt.CreateUser(t, store, "u", lt.WithReferrer(r), lt.WithBalance("250"))

	for i := 0; i < 2; i++ {
		lt.Do(t, store, func(ctx context.Context, tx ledger.Tx) error {
			return e.AfterDeposit(ctx, tx, u, lt.D("250"))
		})
	}

	got := lt.User(t, store, r.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(15)), got.Balance.String())
	assert.True(t, got.ReferralBonus.Equal(decimal.NewFromInt(15)))

	var rows []*ledger.ReferralCommission
	lt.Do(t, store, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		rows, err = tx.ListReferralCommissions(ctx, r.ID)
		return err
	})
	require.Len(t, rows, 1)
	assert.Equal(t, u.ID, rows[0].ReferredUserID)
}

func TestLegacyCommissionDisabledByDefault(t *testing.T) {
	store, e := newEngine(false)
	r := lt.CreateUser(t, store, "referrer")
	u := lt.CreateUser(t, store, "u", lt.WithReferrer(r), lt.WithBalance("400"))

	lt.Do(t, store, func(ctx context.Context, tx ledger.Tx) error {
		return e.AfterDeposit(ctx, tx, u, lt.D("400"))
	})
	assert.True(t, lt.User(t, store, r.ID).Balance.IsZero())
}

func TestCommissionFor(t *testing.T) {
	tests := []struct {
		deposit string
		want    string
	}{
		{"49.99", "0"},
		{"50", "7"},
		{"199.99", "7"},
		{"200", "15"},
		{"299.99", "15"},
		{"300", "26"},
		{"10000", "26"},
	}
	for _, tt := range tests {
		t.Run(tt.deposit, func(t *testing.T) {
			assert.True(t, CommissionFor(lt.D(tt.deposit)).Equal(lt.D(tt.want)))
		})
	}
}

func TestSweepAndOverview(t *testing.T) {
	store, e := newEngine(false)
	svc := NewService(store, e)

	r := lt.CreateUser(t, store, "referrer")
	lt.CreateUser(t, store, "u1", lt.WithReferrer(r), lt.WithBalance("150"))
	lt.CreateUser(t, store, "u2", lt.WithReferrer(r), lt.WithBalance("100"))
	lt.CreateUser(t, store, "u3", lt.WithReferrer(r), lt.WithBalance("5"))

	res, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 1, res.Bonuses)

	res, err = svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Changed)
	assert.Zero(t, res.Bonuses)

	ov, err := svc.Overview(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, ov.TotalReferrals)
	assert.Equal(t, 2, ov.QualifiedReferrals)
	assert.True(t, ov.PremiumActive)
	assert.True(t, ov.TwoReferralBonusClaimed)
	assert.True(t, ov.ReferralBonus.Equal(decimal.NewFromInt(20)))

	_, err = svc.Overview(context.Background(), 9999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
