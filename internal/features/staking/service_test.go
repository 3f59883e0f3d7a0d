package staking

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/internal/common"
	"stakehub/internal/db/memory"
	"stakehub/internal/features/referral"
	"stakehub/internal/features/settings"
	"stakehub/internal/ledger"
	lt "stakehub/internal/ledger/ledgertest"
)

func newService() (*memory.Store, *common.FixedClock, *Service) {
	store := memory.New()
	clock := common.NewFixedClock(lt.Epoch)
	cfg := settings.Fixed(settings.Defaults())
	return store, clock, NewService(store, referral.NewEngine(cfg, clock, false), cfg, clock)
}

// premiumUser creates a user with two qualified referrals whose bonus was
// already paid.
func premiumUser(t *testing.T, s ledger.Store, balance string) *ledger.User {
	t.Helper()
	p := lt.CreateUser(t, s, "premium", lt.WithBalance(balance), lt.Premium())
	lt.CreateUser(t, s, "r1", lt.WithReferrer(p), lt.WithBalance("100"))
	lt.CreateUser(t, s, "r2", lt.WithReferrer(p), lt.WithBalance("150"))
	return p
}

func TestOpenPremiumCommission(t *testing.T) {
	store, _, svc := newService()
	p := premiumUser(t, store, "1000")
	coin, plan := lt.CoinAndPlan(t, store, "USDT", "10", "1.0", 30)

	res, err := svc.Open(context.Background(), p.ID, OpenRequest{CoinID: coin.ID, PlanID: plan.ID, Amount: lt.D("500")})
	require.NoError(t, err)
	assert.True(t, res.TotalReturn.Equal(decimal.NewFromInt(150)))
	assert.True(t, res.PremiumCommission.Equal(decimal.NewFromInt(10)))
	assert.True(t, res.DailyRate.Equal(lt.D("1.0")))
	assert.Equal(t, lt.Epoch.Add(30*24*time.Hour), res.EndTime)

	u := lt.User(t, store, p.ID)
	assert.True(t, u.Balance.Equal(decimal.NewFromInt(510)), u.Balance.String())
	assert.True(t, u.TotalStaked.Equal(decimal.NewFromInt(500)))
	assert.Len(t, lt.Activity(t, store, p.ID, ledger.ActionPremiumCommission), 1)
}

func TestOpenWithoutPremium(t *testing.T) {
	store, _, svc := newService()
	u := lt.CreateUser(t, store, "plain", lt.WithBalance("1000"))
	coin, plan := lt.CoinAndPlan(t, store, "USDT", "10", "1.0", 30)

	res, err := svc.Open(context.Background(), u.ID, OpenRequest{CoinID: coin.ID, PlanID: plan.ID, Amount: lt.D("500")})
	require.NoError(t, err)
	assert.True(t, res.PremiumCommission.IsZero())
	assert.True(t, lt.User(t, store, u.ID).Balance.Equal(decimal.NewFromInt(500)))
}

func TestOpenIgnoresStalePremiumFlag(t *testing.T) {
	store, _, svc := newService()
	p := lt.CreateUser(t, store, "stale", lt.WithBalance("1000"), lt.Premium())
	lt.CreateUser(t, store, "r1", lt.WithReferrer(p), lt.WithBalance("100"))
	lt.CreateUser(t, store, "r2", lt.WithReferrer(p), lt.WithBalance("99.99"))
	coin, plan := lt.CoinAndPlan(t, store, "USDT", "10", "1.0", 30)

	res, err := svc.Open(context.Background(), p.ID, OpenRequest{CoinID: coin.ID, PlanID: plan.ID, Amount: lt.D("500")})
	require.NoError(t, err)
	assert.True(t, res.PremiumCommission.IsZero())

	u := lt.User(t, store, p.ID)
	assert.True(t, u.Balance.Equal(decimal.NewFromInt(500)), u.Balance.String())
	assert.False(t, u.PremiumActive, "re-evaluation clears the stale flag")
	assert.True(t, u.TwoReferralBonusClaimed)
	assert.Empty(t, lt.Activity(t, store, p.ID, ledger.ActionPremiumCommission))
}

func TestOpenPreconditions(t *testing.T) {
	store, _, svc := newService()
	ctx := context.Background()
	u := lt.CreateUser(t, store, "u", lt.WithBalance("100"))
	coin, plan := lt.CoinAndPlan(t, store, "USDT", "50", "1.0", 10)
	other, otherPlan := lt.CoinAndPlan(t, store, "BNB", "1", "0.5", 7)

	lt.Do(t, store, func(ctx context.Context, tx ledger.Tx) error {
		otherPlan.Active = false
		return tx.UpdatePlan(ctx, otherPlan)
	})

	tests := []struct {
		name string
		req  OpenRequest
		want error
	}{
		{"below min", OpenRequest{CoinID: coin.ID, PlanID: plan.ID, Amount: lt.D("49.99")}, common.ErrBelowMinimum},
		{"above balance", OpenRequest{CoinID: coin.ID, PlanID: plan.ID, Amount: lt.D("100.01")}, common.ErrInsufficientBalance},
		{"zero", OpenRequest{CoinID: coin.ID, PlanID: plan.ID, Amount: decimal.Zero}, common.ErrInvalidAmount},
		{"plan of another coin", OpenRequest{CoinID: coin.ID, PlanID: otherPlan.ID, Amount: lt.D("60")}, common.ErrPlanCoinMismatch},
		{"inactive plan", OpenRequest{CoinID: other.ID, PlanID: otherPlan.ID, Amount: lt.D("60")}, common.ErrPlanInactive},
		{"unknown coin", OpenRequest{CoinID: 999, PlanID: plan.ID, Amount: lt.D("60")}, common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Open(ctx, u.ID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := svc.Open(ctx, u.ID, OpenRequest{CoinID: coin.ID, PlanID: plan.ID, Amount: lt.D("50")})
	require.NoError(t, err, "exactly min_stake is accepted")
	assert.True(t, lt.User(t, store, u.ID).Balance.Equal(decimal.NewFromInt(50)))
}

func TestWithdrawMatured(t *testing.T) {
	store, clock, svc := newService()
	u := lt.CreateUser(t, store, "u")
	coin, plan := lt.CoinAndPlan(t, store, "USDT", "10", "1.0", 10)
	st := lt.Stake(t, store, &ledger.Stake{
		UserID:       u.ID,
		CoinID:       coin.ID,
		PlanID:       plan.ID,
		Amount:       lt.D("200"),
		DailyRate:    lt.D("1.0"),
		DurationDays: 10,
		TotalReturn:  lt.D("20"),
		StartTime:    lt.Epoch.Add(-10 * 24 * time.Hour),
		EndTime:      lt.Epoch,
	})

	res, err := svc.WithdrawMatured(context.Background(), u.ID, st.ID)
	require.NoError(t, err)
	assert.True(t, res.CreditedTotal.Equal(decimal.NewFromInt(220)))
	assert.True(t, res.Earnings.Equal(decimal.NewFromInt(20)))

	got := lt.User(t, store, u.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(220)))
	assert.True(t, got.TotalEarned.Equal(decimal.NewFromInt(20)))
	assert.True(t, got.TotalStaked.IsZero())

	v, err := svc.Get(context.Background(), u.ID, st.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StakeCompleted, v.Status)
	assert.True(t, v.Withdrawn)

	clock.Advance(24 * time.Hour)
	_, err = svc.WithdrawMatured(context.Background(), u.ID, st.ID)
	assert.ErrorIs(t, err, common.ErrStakeWithdrawn)
}

func TestWithdrawBeforeMaturity(t *testing.T) {
	store, _, svc := newService()
	u := lt.CreateUser(t, store, "u")
	coin, plan := lt.CoinAndPlan(t, store, "USDT", "10", "1.0", 10)
	st := lt.Stake(t, store, &ledger.Stake{
		UserID: u.ID, CoinID: coin.ID, PlanID: plan.ID,
		Amount: lt.D("200"), DailyRate: lt.D("1.0"), DurationDays: 10,
		StartTime: lt.Epoch.Add(-9 * 24 * time.Hour),
		EndTime:   lt.Epoch.Add(24 * time.Hour),
	})

	_, err := svc.WithdrawMatured(context.Background(), u.ID, st.ID)
	assert.ErrorIs(t, err, common.ErrStakeNotMatured)

	other := lt.CreateUser(t, store, "other")
	_, err = svc.WithdrawMatured(context.Background(), other.ID, st.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestOpenThenCancelRestoresBalances(t *testing.T) {
	store, clock, svc := newService()
	ctx := context.Background()
	u := lt.CreateUser(t, store, "u", lt.WithBalance("300"))
	coin, plan := lt.CoinAndPlan(t, store, "USDT", "10", "1.5", 30)

	res, err := svc.Open(ctx, u.ID, OpenRequest{CoinID: coin.ID, PlanID: plan.ID, Amount: lt.D("120")})
	require.NoError(t, err)

	clock.Advance(5 * 24 * time.Hour)
	c, err := svc.Cancel(ctx, u.ID, res.StakeID)
	require.NoError(t, err)
	assert.True(t, c.RefundedPrincipal.Equal(decimal.NewFromInt(120)))

	got := lt.User(t, store, u.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(300)))
	assert.True(t, got.TotalStaked.IsZero())
	assert.True(t, got.TotalEarned.IsZero())

	v, err := svc.Get(ctx, u.ID, res.StakeID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StakeCancelled, v.Status)
	assert.True(t, v.CurrentReturn.IsZero())

	_, err = svc.Cancel(ctx, u.ID, res.StakeID)
	assert.ErrorIs(t, err, common.ErrStakeNotActive)
}

func TestCancelReevaluatesReferrer(t *testing.T) {
	store, _, svc := newService()
	ctx := context.Background()
	r := lt.CreateUser(t, store, "referrer")
	u := lt.CreateUser(t, store, "u", lt.WithReferrer(r))
	lt.CreateUser(t, store, "u2", lt.WithReferrer(r), lt.WithBalance("100"))
	coin, plan := lt.CoinAndPlan(t, store, "USDT", "10", "1.0", 30)

	lt.Stake(t, store, &ledger.Stake{
		UserID: u.ID, CoinID: coin.ID, PlanID: plan.ID,
		Amount: lt.D("60"), DailyRate: lt.D("1.0"), DurationDays: 30,
		StartTime: lt.Epoch, EndTime: lt.Epoch.Add(30 * 24 * time.Hour),
	})
	st := lt.Stake(t, store, &ledger.Stake{
		UserID: u.ID, CoinID: coin.ID, PlanID: plan.ID,
		Amount: lt.D("40"), DailyRate: lt.D("1.0"), DurationDays: 30,
		StartTime: lt.Epoch, EndTime: lt.Epoch.Add(30 * 24 * time.Hour),
	})

	// economic balance stays 100 after cancel, so the referrer gets the bonus
	_, err := svc.Cancel(ctx, u.ID, st.ID)
	require.NoError(t, err)
	got := lt.User(t, store, r.ID)
	assert.True(t, got.PremiumActive)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(20)))
}

func TestCurrentReturn(t *testing.T) {
	st := &ledger.Stake{
		Amount:            lt.D("200"),
		DailyRate:         lt.D("1.0"),
		DurationDays:      10,
		PremiumCommission: lt.D("4"),
		StartTime:         lt.Epoch,
		EndTime:           lt.Epoch.Add(10 * 24 * time.Hour),
		Status:            ledger.StakeActive,
	}

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"at start", lt.Epoch, "4"},
		{"partial day", lt.Epoch.Add(23 * time.Hour), "4"},
		{"three days", lt.Epoch.Add(3*24*time.Hour + time.Hour), "10"},
		{"capped", lt.Epoch.Add(40 * 24 * time.Hour), "24"},
		{"before start", lt.Epoch.Add(-time.Hour), "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, CurrentReturn(st, tt.at).Equal(lt.D(tt.want)), CurrentReturn(st, tt.at).String())
		})
	}

	st.Status = ledger.StakeCancelled
	assert.True(t, CurrentReturn(st, lt.Epoch.Add(5*24*time.Hour)).IsZero())
}
