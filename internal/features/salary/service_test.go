package salary

import (
	"context"
	"fmt"
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

const payout = "0x8888888888888888888888888888888888888888"

func TestEvaluate(t *testing.T) {
	tests := []struct {
		q     int
		b     string
		level int
	}{
		{6, "100000", 0},
		{7, "349.99", 0},
		{7, "350", 1},
		{12, "5000", 1},
		{13, "680", 2},
		{26, "959", 2},
		{27, "960", 3},
		{46, "1339", 3},
		{46, "1340", 4},
		{500, "1000000", 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("q%d_b%s", tt.q, tt.b), func(t *testing.T) {
			tier, ok := Evaluate(tt.q, lt.D(tt.b))
			assert.Equal(t, tt.level > 0, ok)
			assert.Equal(t, tt.level, tier.Level)
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 50, percent(lt.D("175"), lt.D("350")))
	assert.Equal(t, 100, percent(lt.D("900"), lt.D("350")))
	assert.Equal(t, 0, percent(decimal.Zero, lt.D("350")))
}

type harness struct {
	store *memory.Store
	clock *common.FixedClock
	svc   *Service
}

func newHarness() *harness {
	store := memory.New()
	clock := common.NewFixedClock(lt.Epoch)
	cfg := settings.Fixed(settings.Defaults())
	return &harness{
		store: store,
		clock: clock,
		svc:   NewService(store, referral.NewEngine(cfg, clock, false), nil, clock),
	}
}

// tierOne gives u seven qualified referrals and a 400 USDT balance.
func (h *harness) tierOne(t *testing.T, name string, opts ...lt.UserOpt) *ledger.User {
	t.Helper()
	u := lt.CreateUser(t, h.store, name, append(opts, lt.WithBalance("400"))...)
	for i := 0; i < 7; i++ {
		lt.CreateUser(t, h.store, fmt.Sprintf("%s-ref%d", name, i), lt.WithReferrer(u), lt.WithBalance("100"))
	}
	return u
}

func TestProgress(t *testing.T) {
	h := newHarness()
	u := h.tierOne(t, "u")

	p, err := h.svc.Progress(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, p.Eligible)
	require.NotNil(t, p.Current)
	assert.Equal(t, 1, p.Current.Level)
	require.NotNil(t, p.Next)
	assert.Equal(t, 2, p.Next.Level)
	assert.Equal(t, 53, p.ReferralProgress)
	assert.Equal(t, 58, p.BalanceProgress)

	fresh := lt.CreateUser(t, h.store, "fresh")
	p, err = h.svc.Progress(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.False(t, p.Eligible)
	assert.Nil(t, p.Current)
	assert.Equal(t, 1, p.Next.Level)
}

func TestRequestOncePerMonth(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := h.tierOne(t, "u")

	_, err := h.svc.Request(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrSalaryWalletMissing)

	assert.ErrorIs(t, h.svc.SetWallet(ctx, u.ID, "short"), common.ErrInvalidAddress)
	require.NoError(t, h.svc.SetWallet(ctx, u.ID, payout))

	v, err := h.svc.Request(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Tier)
	assert.True(t, v.Amount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, ledger.SalaryPending, v.Status)

	_, err = h.svc.Request(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrSalaryAlreadyRequested)

	h.clock.Set(time.Date(2025, 4, 1, 0, 5, 0, 0, time.UTC))
	_, err = h.svc.Request(ctx, u.ID)
	assert.NoError(t, err)

	assert.True(t, lt.User(t, h.store, u.ID).Balance.Equal(decimal.NewFromInt(400)), "requests never move the balance")
}

func TestRequestNotEligible(t *testing.T) {
	h := newHarness()
	u := lt.CreateUser(t, h.store, "u", lt.WithSalaryWallet(payout), lt.WithBalance("10000"))

	_, err := h.svc.Request(context.Background(), u.ID)
	assert.ErrorIs(t, err, common.ErrNotEligible)
}

func TestGenerateMonthly(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.tierOne(t, "eligible", lt.WithSalaryWallet(payout))
	h.tierOne(t, "nowallet")
	lt.CreateUser(t, h.store, "poor", lt.WithSalaryWallet(payout))

	res, err := h.svc.GenerateMonthly(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)

	res, err = h.svc.GenerateMonthly(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Equal(t, 2, res.Skipped)
}

func TestAdminProcess(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	admin := lt.CreateUser(t, h.store, "admin", lt.AsAdmin())
	u := h.tierOne(t, "u", lt.WithSalaryWallet(payout))

	v, err := h.svc.Request(ctx, u.ID)
	require.NoError(t, err)

	got, err := h.svc.Approve(ctx, admin.ID, v.ID, "0xfeed", "paid")
	require.NoError(t, err)
	assert.Equal(t, ledger.SalaryApproved, got.Status)
	assert.Equal(t, "0xfeed", got.TxHash)

	_, err = h.svc.Reject(ctx, admin.ID, v.ID, "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = h.svc.Reject(ctx, admin.ID, 777, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
