package deposit

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/internal/chain"
	"stakehub/internal/common"
	"stakehub/internal/db/memory"
	"stakehub/internal/features/referral"
	"stakehub/internal/features/settings"
	"stakehub/internal/ledger"
	lt "stakehub/internal/ledger/ledgertest"
)

const bepAddress = "0x1111111111111111111111111111111111111111"

func hashOf(c string) string { return "0x" + strings.Repeat(c, 64) }

// fakeVerifier answers every request with verdict, echoing the claimed
// amount unless actual is set.
type fakeVerifier struct {
	kind   chain.VerdictKind
	actual string

	mu    sync.Mutex
	calls int
}

func (f *fakeVerifier) Verify(_ context.Context, req chain.Request) chain.Verdict {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	amount := req.Amount
	if f.actual != "" {
		amount = lt.D(f.actual)
	}
	kind := f.kind
	if kind == "" {
		kind = chain.Verified
	}
	return chain.Verdict{
		Kind:      kind,
		TxHash:    req.TxHash,
		Recipient: req.ToAddress,
		Amount:    amount,
		Provider:  "fake",
	}
}

type busyClaims struct{}

func (busyClaims) Acquire(context.Context, string) (string, bool, error) { return "", false, nil }
func (busyClaims) Release(context.Context, string, string) error       { return nil }

type freeClaims struct {
	mu       sync.Mutex
	released int
}

func (f *freeClaims) Acquire(context.Context, string) (string, bool, error) { return "tok", true, nil }
func (f *freeClaims) Release(context.Context, string, string) error {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
	return nil
}

type fixture struct {
	store    *memory.Store
	verifier *fakeVerifier
	claims   *freeClaims
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clock := common.NewFixedClock(lt.Epoch)
	cfg := settings.Fixed(settings.Defaults())
	f := &fixture{store: store, verifier: &fakeVerifier{}, claims: &freeClaims{}}
	f.svc = NewService(store, f.verifier, f.claims, referral.NewEngine(cfg, clock, false), cfg, clock)
	lt.PaymentAddress(t, store, ledger.NetworkBEP20, bepAddress, "10")
	return f
}

func submit(amount, hash string) SubmitRequest {
	return SubmitRequest{Amount: lt.D(amount), TxHash: hash, Network: "BEP20"}
}

func TestSubmitCreditsAndActivatesReferrerPremium(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := lt.CreateUser(t, f.store, "admin", lt.AsAdmin())
	u1 := lt.CreateUser(t, f.store, "u1", lt.WithReferrer(a))
	u2 := lt.CreateUser(t, f.store, "u2", lt.WithReferrer(a))

	res, err := f.svc.Submit(ctx, u1.ID, submit("100", hashOf("1")))
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.True(t, res.Credited)
	assert.True(t, res.AmountCredited.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, ledger.DepositVerified, res.Status)

	assert.True(t, lt.User(t, f.store, u1.ID).Balance.Equal(decimal.NewFromInt(100)))
	admin := lt.User(t, f.store, a.ID)
	assert.False(t, admin.PremiumActive)
	assert.False(t, admin.TwoReferralBonusClaimed)
	assert.True(t, admin.Balance.IsZero())

	_, err = f.svc.Submit(ctx, u2.ID, submit("100", hashOf("2")))
	require.NoError(t, err)

	admin = lt.User(t, f.store, a.ID)
	assert.True(t, admin.PremiumActive)
	assert.True(t, admin.TwoReferralBonusClaimed)
	assert.True(t, admin.Balance.Equal(decimal.NewFromInt(20)))
	assert.Len(t, lt.Activity(t, f.store, a.ID, ledger.ActionTwoReferralBonus), 1)
	assert.Len(t, lt.Activity(t, f.store, u1.ID, ledger.ActionDepositVerified), 1)
	assert.Equal(t, 2, f.claims.released)
}

func TestSubmitSameHashCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := lt.CreateUser(t, f.store, "u1")
	u2 := lt.CreateUser(t, f.store, "u2")

	_, err := f.svc.Submit(ctx, u1.ID, submit("100", hashOf("a")))
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, u2.ID, submit("100", hashOf("a")))
	assert.ErrorIs(t, err, common.ErrTxBelongsToAnotherUser)
	assert.Equal(t, common.KindConflict, common.KindOf(err))
	assert.True(t, lt.User(t, f.store, u2.ID).Balance.IsZero())

	// uppercase and unprefixed forms normalise to the same hash
	_, err = f.svc.Submit(ctx, u1.ID, submit("100", strings.Repeat("A", 64)))
	assert.ErrorIs(t, err, common.ErrDuplicateTxHash)

	assert.True(t, lt.User(t, f.store, u1.ID).Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, f.verifier.calls)
}

func TestSubmitTRC20HashSpellingsCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lt.PaymentAddress(t, f.store, ledger.NetworkTRC20, chain.TronAddress(bepAddress), "10")
	u := lt.CreateUser(t, f.store, "u")

	bare := strings.Repeat("ab", 32)
	trc := func(hash string) SubmitRequest {
		return SubmitRequest{Amount: lt.D("100"), TxHash: hash, Network: "TRC20"}
	}

	res, err := f.svc.Submit(ctx, u.ID, trc(strings.ToUpper(bare)))
	require.NoError(t, err)
	assert.Equal(t, bare, res.TxHash)

	for _, spelling := range []string{bare, "0x" + bare, "0X" + strings.ToUpper(bare)} {
		_, err = f.svc.Submit(ctx, u.ID, trc(spelling))
		assert.ErrorIs(t, err, common.ErrDuplicateTxHash, spelling)
	}

	_, err = f.svc.Submit(ctx, u.ID, trc("a"))
	assert.ErrorIs(t, err, common.ErrInvalidTxHash)

	assert.True(t, lt.User(t, f.store, u.ID).Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, f.verifier.calls)
}

func TestSubmitConcurrentSameHashCreditsOnce(t *testing.T) {
	f := newFixture(t)
	u := lt.CreateUser(t, f.store, "u")

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Submit(context.Background(), u.ID, submit("100", hashOf("5")))
			if err != nil {
				assert.Equal(t, common.KindConflict, common.KindOf(err), err)
				return
			}
			if res.Credited {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, credited)
	assert.True(t, lt.User(t, f.store, u.ID).Balance.Equal(decimal.NewFromInt(100)))

	rows, err := f.svc.List(context.Background(), ledger.ListFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, lt.Activity(t, f.store, u.ID, ledger.ActionDepositVerified), 1)
}

func TestSubmitAmountMismatchRecordsRejection(t *testing.T) {
	f := newFixture(t)
	f.verifier.kind = chain.AmountMismatch
	f.verifier.actual = "99.5"
	u := lt.CreateUser(t, f.store, "u")

	res, err := f.svc.Submit(context.Background(), u.ID, submit("100", hashOf("b")))
	require.Error(t, err)
	assert.Equal(t, common.KindVerificationRejected, common.KindOf(err))
	assert.Equal(t, string(chain.AmountMismatch), common.ReasonOf(err))
	require.NotNil(t, res)
	assert.False(t, res.Credited)
	assert.Equal(t, ledger.DepositRejected, res.Status)

	rows, err := f.svc.List(context.Background(), ledger.ListFilter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.DepositRejected, rows[0].Status)
	assert.False(t, rows[0].BlockchainVerified)
	assert.Equal(t, "amount_mismatch", rows[0].VerificationDetails["verdict"])
	assert.True(t, lt.User(t, f.store, u.ID).Balance.IsZero())
	assert.Len(t, lt.Activity(t, f.store, u.ID, ledger.ActionDepositRejected), 1)
}

func TestSubmitRetriesOwnRejectedDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := lt.CreateUser(t, f.store, "u")
	other := lt.CreateUser(t, f.store, "other")

	f.verifier.kind = chain.NotFound
	_, err := f.svc.Submit(ctx, u.ID, submit("50", hashOf("c")))
	require.Error(t, err)

	// another user may not take over a rejected hash
	f.verifier.kind = chain.Verified
	_, err = f.svc.Submit(ctx, other.ID, submit("50", hashOf("c")))
	assert.ErrorIs(t, err, common.ErrTxBelongsToAnotherUser)

	res, err := f.svc.Submit(ctx, u.ID, submit("50", hashOf("c")))
	require.NoError(t, err)
	assert.True(t, res.Credited)

	rows, err := f.svc.List(ctx, ledger.ListFilter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.DepositVerified, rows[0].Status)
	assert.Len(t, lt.Activity(t, f.store, u.ID, ledger.ActionDepositRetry), 1)
	assert.True(t, lt.User(t, f.store, u.ID).Balance.Equal(decimal.NewFromInt(50)))
}

func TestSubmitMinimumBoundary(t *testing.T) {
	f := newFixture(t)
	u := lt.CreateUser(t, f.store, "u")

	_, err := f.svc.Submit(context.Background(), u.ID, submit("9.99", hashOf("d")))
	assert.ErrorIs(t, err, common.ErrBelowMinimum)
	assert.Zero(t, f.verifier.calls)

	_, err = f.svc.Submit(context.Background(), u.ID, submit("10", hashOf("d")))
	require.NoError(t, err)
	assert.True(t, lt.User(t, f.store, u.ID).Balance.Equal(decimal.NewFromInt(10)))
}

func TestSubmitInputErrors(t *testing.T) {
	f := newFixture(t)
	u := lt.CreateUser(t, f.store, "u")
	ctx := context.Background()

	tests := []struct {
		name string
		req  SubmitRequest
		want error
	}{
		{"bad network", SubmitRequest{Amount: lt.D("20"), TxHash: hashOf("e"), Network: "ERC20"}, common.ErrInvalidNetwork},
		{"zero amount", submit("0", hashOf("e")), common.ErrInvalidAmount},
		{"negative amount", submit("-5", hashOf("e")), common.ErrInvalidAmount},
		{"short hash", submit("20", "0x1234"), common.ErrInvalidTxHash},
		{"no trc20 address", SubmitRequest{Amount: lt.D("20"), TxHash: strings.Repeat("e", 64), Network: "TRC20"}, common.ErrNetworkUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, u.ID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, f.verifier.calls)
}

func TestSubmitInactiveUser(t *testing.T) {
	f := newFixture(t)
	u := lt.CreateUser(t, f.store, "u", lt.Inactive())

	_, err := f.svc.Submit(context.Background(), u.ID, submit("20", hashOf("f")))
	assert.ErrorIs(t, err, common.ErrUserInactive)
}

func TestSubmitProviderUnavailableLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	f.verifier.kind = chain.ProviderUnavailable
	u := lt.CreateUser(t, f.store, "u")

	_, err := f.svc.Submit(context.Background(), u.ID, submit("20", hashOf("9")))
	assert.Equal(t, common.KindProviderUnavailable, common.KindOf(err))

	rows, err := f.svc.List(context.Background(), ledger.ListFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)

	f.verifier.kind = chain.Verified
	_, err = f.svc.Submit(context.Background(), u.ID, submit("20", hashOf("9")))
	assert.NoError(t, err)
}

func TestSubmitVerificationInProgress(t *testing.T) {
	f := newFixture(t)
	f.svc.claims = busyClaims{}
	u := lt.CreateUser(t, f.store, "u")

	_, err := f.svc.Submit(context.Background(), u.ID, submit("20", hashOf("8")))
	assert.ErrorIs(t, err, common.ErrVerificationInProgress)
	assert.Zero(t, f.verifier.calls)
}

func pendingDeposit(t *testing.T, s ledger.Store, userID int64, amount, hash string) *ledger.Deposit {
	t.Helper()
	d := &ledger.Deposit{
		UserID:    userID,
		Amount:    lt.D(amount),
		TxHash:    hash,
		Network:   ledger.NetworkBEP20,
		Status:    ledger.DepositPending,
		CreatedAt: lt.Epoch,
	}
	lt.Do(t, s, func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertDeposit(ctx, d)
	})
	return d
}

func TestAdminReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := lt.CreateUser(t, f.store, "admin", lt.AsAdmin())
	u := lt.CreateUser(t, f.store, "u")

	d := pendingDeposit(t, f.store, u.ID, "75", hashOf("7"))

	_, err := f.svc.Submit(ctx, u.ID, submit("75", hashOf("7")))
	assert.ErrorIs(t, err, common.ErrDepositPending)

	v, err := f.svc.Approve(ctx, admin.ID, d.ID, "checked manually")
	require.NoError(t, err)
	assert.Equal(t, ledger.DepositApproved, v.Status)
	assert.Equal(t, "checked manually", v.AdminNotes)
	assert.True(t, lt.User(t, f.store, u.ID).Balance.Equal(decimal.NewFromInt(75)))

	_, err = f.svc.Approve(ctx, admin.ID, d.ID, "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	_, err = f.svc.Reject(ctx, admin.ID, d.ID, "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	d2 := pendingDeposit(t, f.store, u.ID, "30", hashOf("6"))
	v, err = f.svc.Reject(ctx, admin.ID, d2.ID, "no such transfer")
	require.NoError(t, err)
	assert.Equal(t, ledger.DepositRejected, v.Status)
	assert.True(t, lt.User(t, f.store, u.ID).Balance.Equal(decimal.NewFromInt(75)))

	_, err = f.svc.Approve(ctx, admin.ID, 9999, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
