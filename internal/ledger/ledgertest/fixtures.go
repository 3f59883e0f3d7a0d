// Package ledgertest seeds a ledger.Store for tests.
package ledgertest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stakehub/internal/ledger"
)

// Epoch is the default fixture time.
var Epoch = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// D parses a decimal literal.
func D(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// UserOpt tweaks a fixture user.
type UserOpt func(u *ledger.User)

// WithBalance sets the starting wallet balance.
func WithBalance(amount string) UserOpt {
	return func(u *ledger.User) { u.Balance = D(amount) }
}

// WithReferrer links the user to r.
func WithReferrer(r *ledger.User) UserOpt {
	return func(u *ledger.User) {
		id := r.ID
		u.ReferredBy = &id
	}
}

// AsAdmin grants the admin flag.
func AsAdmin() UserOpt {
	return func(u *ledger.User) { u.IsAdmin = true }
}

// Premium marks the two-referral bonus as already claimed. Referrals still
// have to be created for the live rule to hold.
func Premium() UserOpt {
	return func(u *ledger.User) {
		u.PremiumActive = true
		u.TwoReferralBonusClaimed = true
	}
}

// Inactive creates a deactivated user.
func Inactive() UserOpt {
	return func(u *ledger.User) { u.IsActive = false }
}

// WithSalaryWallet sets the salary payout address.
func WithSalaryWallet(addr string) UserOpt {
	return func(u *ledger.User) { u.SalaryWallet = addr }
}

// CreateUser inserts an active user with a unique referral code.
func CreateUser(t testing.TB, s ledger.Store, username string, opts ...UserOpt) *ledger.User {
	t.Helper()
	u := &ledger.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		ReferralCode: refCode(username),
		IsActive:     true,
		CreatedAt:    Epoch,
	}
	for _, o := range opts {
		o(u)
	}
	require.NoError(t, s.WithTx(context.Background(), func(tx ledger.Tx) error {
		return tx.CreateUser(context.Background(), u)
	}))
	return u
}

func refCode(username string) string {
	var h uint32 = 2166136261
	for i := 0; i < len(username); i++ {
		h ^= uint32(username[i])
		h *= 16777619
	}
	return fmt.Sprintf("T%07X", h&0xFFFFFFF)
}

// User reloads a user.
func User(t testing.TB, s ledger.Store, id int64) *ledger.User {
	t.Helper()
	var u *ledger.User
	require.NoError(t, s.WithTx(context.Background(), func(tx ledger.Tx) error {
		var err error
		u, err = tx.GetUser(context.Background(), id)
		return err
	}))
	return u
}

// CoinAndPlan creates an active coin with one active plan.
func CoinAndPlan(t testing.TB, s ledger.Store, symbol, minStake, rate string, days int) (*ledger.Coin, *ledger.StakingPlan) {
	t.Helper()
	c := &ledger.Coin{
		Symbol:          symbol,
		Name:            symbol,
		MinStake:        D(minStake),
		DailyReturnRate: D(rate),
		Active:          true,
		CreatedAt:       Epoch,
	}
	p := &ledger.StakingPlan{DurationDays: days, InterestRate: D(rate), Active: true, CreatedAt: Epoch}
	require.NoError(t, s.WithTx(context.Background(), func(tx ledger.Tx) error {
		if err := tx.CreateCoin(context.Background(), c); err != nil {
			return err
		}
		p.CoinID = c.ID
		return tx.CreatePlan(context.Background(), p)
	}))
	return c, p
}

// PaymentAddress creates the active deposit address of a network.
func PaymentAddress(t testing.TB, s ledger.Store, network, address, minDeposit string) *ledger.PaymentAddress {
	t.Helper()
	a := &ledger.PaymentAddress{
		Network:    network,
		Address:    address,
		MinDeposit: D(minDeposit),
		IsActive:   true,
		CreatedAt:  Epoch,
	}
	require.NoError(t, s.WithTx(context.Background(), func(tx ledger.Tx) error {
		return tx.UpsertPaymentAddress(context.Background(), a)
	}))
	return a
}

// Stake inserts an active stake directly, keeping total_staked consistent.
func Stake(t testing.TB, s ledger.Store, st *ledger.Stake) *ledger.Stake {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(tx ledger.Tx) error {
		ctx := context.Background()
		u, err := tx.GetUserForUpdate(ctx, st.UserID)
		if err != nil {
			return err
		}
		if st.Status == "" {
			st.Status = ledger.StakeActive
		}
		if st.Status == ledger.StakeActive {
			u.TotalStaked = u.TotalStaked.Add(st.Amount)
			if err := tx.SaveUserBalances(ctx, u); err != nil {
				return err
			}
		}
		return tx.InsertStake(ctx, st)
	}))
	return st
}

// Activity lists a user's activity rows with the given action.
func Activity(t testing.TB, s ledger.Store, userID int64, action string) []*ledger.ActivityLog {
	t.Helper()
	var out []*ledger.ActivityLog
	require.NoError(t, s.WithTx(context.Background(), func(tx ledger.Tx) error {
		var err error
		out, err = tx.ListActivity(context.Background(), ledger.ListFilter{UserID: userID, Action: action})
		return err
	}))
	return out
}

// Do runs fn in one transaction and fails the test on error.
func Do(t testing.TB, s ledger.Store, fn func(ctx context.Context, tx ledger.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Tx) error { return fn(ctx, tx) }))
}
