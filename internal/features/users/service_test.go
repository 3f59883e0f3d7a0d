package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/internal/common"
	"stakehub/internal/db/memory"
	"stakehub/internal/features/referral"
	"stakehub/internal/features/settings"
	"stakehub/internal/ledger"
	lt "stakehub/internal/ledger/ledgertest"
	"stakehub/internal/web"
)

func newService(t *testing.T) (*Service, *memory.Store, *common.FixedClock, *web.Tokens) {
	t.Helper()
	store := memory.New()
	clock := common.NewFixedClock(lt.Epoch)
	tokens := web.NewTokens("test-secret", time.Hour, clock)
	engine := referral.NewEngine(settings.Fixed(settings.Defaults()), clock, false)
	svc := NewService(store, engine, tokens, LoginPolicy{MaxAttempts: 3, Window: 15 * time.Minute}, clock)
	return svc, store, clock, tokens
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=65536,t=3,p=2$")

	ok, err := VerifyPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("x", "plain")
	assert.ErrorIs(t, err, errMalformedHash)
}

func TestReferralCode(t *testing.T) {
	code, err := newReferralCode()
	require.NoError(t, err)
	assert.Len(t, code, ReferralCodeLength)
	assert.Regexp(t, "^[A-Z0-9]+$", code)
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _, tokens := newService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "password1",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Len(t, p.ReferralCode, ReferralCodeLength)
	assert.True(t, p.Balance.IsZero())
	assert.False(t, p.PremiumActive)

	for _, login := range []string{"alice", "ALICE@example.com"} {
		tok, err := svc.Login(ctx, LoginRequest{Login: login, Password: "password1"})
		require.NoError(t, err, login)
		claims, err := tokens.Parse(tok.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, p.ID, claims.UserID)
		assert.False(t, claims.IsAdmin)
		assert.Equal(t, "Bearer", tok.TokenType)
	}

	_, err = svc.Register(ctx, RegisterRequest{Username: "ALICE", Email: "other@example.com", Password: "password1"})
	assert.ErrorIs(t, err, common.ErrDuplicateUser)
}

func TestRegisterWithReferral(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()
	ref := lt.CreateUser(t, store, "referrer")

	p, err := svc.Register(ctx, RegisterRequest{
		Username:     "bob",
		Email:        "bob@example.com",
		Password:     "password1",
		ReferralCode: ref.ReferralCode,
	})
	require.NoError(t, err)
	require.NotNil(t, p.ReferredBy)
	assert.Equal(t, ref.ID, *p.ReferredBy)

	_, err = svc.Register(ctx, RegisterRequest{
		Username:     "carol",
		Email:        "carol@example.com",
		Password:     "password1",
		ReferralCode: "NOPE0000",
	})
	assert.ErrorIs(t, err, common.ErrUnknownReferral)
}

func TestLoginLockout(t *testing.T) {
	svc, _, clock, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "dave", Email: "dave@example.com", Password: "password1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, LoginRequest{Login: "dave", Password: "bad"})
		assert.ErrorIs(t, err, common.ErrWrongCredentials)
	}
	_, err = svc.Login(ctx, LoginRequest{Login: "Dave", Password: "password1"})
	assert.ErrorIs(t, err, common.ErrTooManyAttempts, "lockout applies to the normalised login")

	clock.Advance(16 * time.Minute)
	_, err = svc.Login(ctx, LoginRequest{Login: "dave", Password: "password1"})
	assert.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Login: "ghost", Password: "password1"})
	assert.ErrorIs(t, err, common.ErrWrongCredentials)
}

func TestDeactivatedUserCannotLogin(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()
	admin := lt.CreateUser(t, store, "root", lt.AsAdmin())

	p, err := svc.Register(ctx, RegisterRequest{Username: "erin", Email: "erin@example.com", Password: "password1"})
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(ctx, admin.ID, p.ID, false))
	_, err = svc.Login(ctx, LoginRequest{Login: "erin", Password: "password1"})
	assert.ErrorIs(t, err, common.ErrUserInactive)
	assert.Len(t, lt.Activity(t, store, p.ID, ledger.ActionUserStatus), 1)

	require.NoError(t, svc.SetActive(ctx, admin.ID, p.ID, true))
	_, err = svc.Login(ctx, LoginRequest{Login: "erin", Password: "password1"})
	assert.NoError(t, err)

	assert.Equal(t, common.KindPrecondition, common.KindOf(svc.SetActive(ctx, admin.ID, admin.ID, false)))
	assert.ErrorIs(t, svc.SetActive(ctx, admin.ID, 9999, true), common.ErrNotFound)
}

func TestProfileLiveState(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	u := lt.CreateUser(t, store, "frank", lt.WithBalance("400"), lt.Premium())
	for _, name := range []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"} {
		lt.CreateUser(t, store, name, lt.WithReferrer(u), lt.WithBalance("100"))
	}

	p, err := svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, p.PremiumActive)
	assert.Equal(t, 7, p.QualifiedReferrals)
	assert.True(t, p.EconomicBalance.Equal(lt.D("400")))
	require.True(t, p.SalaryEligible)
	assert.Equal(t, 1, p.SalaryTier.Level)

	_, err = svc.Profile(ctx, 9999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	svc, _, _, tokens := newService(t)
	ctx := context.Background()

	hash, err := HashPassword("admin-pass")
	require.NoError(t, err)

	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "", hash))
	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "", hash))

	users, err := svc.List(ctx, ledger.ListFilter{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin)

	tok, err := svc.Login(ctx, LoginRequest{Login: "admin", Password: "admin-pass"})
	require.NoError(t, err)
	claims, err := tokens.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)

	assert.Error(t, svc.EnsureAdmin(ctx, "other", "", "not-a-hash"))
	assert.NoError(t, svc.EnsureAdmin(ctx, "other", "", ""))
}
