package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"stakehub/internal/ledger"
)

var errNegativeBalance = errors.New("memory: users_balance_check violated")

// CreateUser inserts a user. Duplicate identities are unique violations.
func (t *tx) CreateUser(_ context.Context, u *ledger.User) error {
	for _, o := range t.s.users {
		switch {
		case strings.EqualFold(o.Username, u.Username):
			return &ledger.UniqueError{Constraint: ledger.ConstraintUsername}
		case u.Email != "" && strings.EqualFold(o.Email, u.Email):
			return &ledger.UniqueError{Constraint: ledger.ConstraintEmail}
		case u.Phone != "" && o.Phone == u.Phone:
			return &ledger.UniqueError{Constraint: ledger.ConstraintPhone}
		case o.ReferralCode == u.ReferralCode:
			return &ledger.UniqueError{Constraint: ledger.ConstraintReferralCode}
		}
	}
	u.ID = t.s.nextID()
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	c := *u
	t.s.users[u.ID] = &c
	return nil
}

// GetUser returns a user by ID.
func (t *tx) GetUser(_ context.Context, id int64) (*ledger.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	c := *u
	return &c, nil
}

// GetUserForUpdate returns a user and locks its row.
func (t *tx) GetUserForUpdate(ctx context.Context, id int64) (*ledger.User, error) {
	return t.GetUser(ctx, id)
}

// GetUserByLogin finds a user by lowercased username or email.
func (t *tx) GetUserByLogin(_ context.Context, login string) (*ledger.User, error) {
	for _, u := range t.s.users {
		if strings.EqualFold(u.Username, login) || (u.Email != "" && strings.EqualFold(u.Email, login)) {
			c := *u
			return &c, nil
		}
	}
	return nil, ledger.ErrNotFound
}

// GetUserByReferralCode finds a user by referral code.
func (t *tx) GetUserByReferralCode(_ context.Context, code string) (*ledger.User, error) {
	for _, u := range t.s.users {
		if u.ReferralCode == code {
			c := *u
			return &c, nil
		}
	}
	return nil, ledger.ErrNotFound
}

// SaveUserBalances stores the balance columns and referral flags of a locked user.
func (t *tx) SaveUserBalances(_ context.Context, u *ledger.User) error {
	cur, ok := t.s.users[u.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	// mirrors CHECK (balance >= 0)
	if u.Balance.IsNegative() {
		return errNegativeBalance
	}
	cur.Balance = u.Balance
	cur.TotalStaked = u.TotalStaked
	cur.TotalEarned = u.TotalEarned
	cur.ReferralBonus = u.ReferralBonus
	cur.TwoReferralBonusClaimed = cur.TwoReferralBonusClaimed || u.TwoReferralBonusClaimed
	cur.PremiumActive = u.PremiumActive
	cur.UpdatedAt = u.UpdatedAt
	return nil
}

// SetUserActive activates or deactivates a user.
func (t *tx) SetUserActive(_ context.Context, id int64, active bool) error {
	u, ok := t.s.users[id]
	if !ok {
		return ledger.ErrNotFound
	}
	u.IsActive = active
	return nil
}

// SetSalaryWallet stores the salary wallet address of a user.
func (t *tx) SetSalaryWallet(_ context.Context, id int64, address string) error {
	u, ok := t.s.users[id]
	if !ok {
		return ledger.ErrNotFound
	}
	u.SalaryWallet = address
	return nil
}

// ListUsers returns users ordered by ID.
func (t *tx) ListUsers(_ context.Context, f ledger.ListFilter) ([]*ledger.User, error) {
	out := make([]*ledger.User, 0, len(t.s.users))
	for _, u := range t.s.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f), nil
}

// ListReferrals returns the direct referrals of a user.
func (t *tx) ListReferrals(_ context.Context, referrerID int64) ([]*ledger.User, error) {
	var out []*ledger.User
	for _, u := range t.s.users {
		if u.ReferredBy != nil && *u.ReferredBy == referrerID {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListReferrerIDs returns the IDs of users that have at least one referral.
func (t *tx) ListReferrerIDs(_ context.Context) ([]int64, error) {
	seen := map[int64]bool{}
	var out []int64
	for _, u := range t.s.users {
		if u.ReferredBy != nil && !seen[*u.ReferredBy] {
			seen[*u.ReferredBy] = true
			out = append(out, *u.ReferredBy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ListSalaryCandidates returns active users with a salary wallet.
func (t *tx) ListSalaryCandidates(_ context.Context) ([]*ledger.User, error) {
	var out []*ledger.User
	for _, u := range t.s.users {
		if u.IsActive && u.SalaryWallet != "" {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) economicBalance(userID int64) decimal.Decimal {
	u, ok := t.s.users[userID]
	if !ok {
		return decimal.Zero
	}
	total := u.Balance
	for _, s := range t.s.stakes {
		if s.UserID == userID && s.Status == ledger.StakeActive {
			total = total.Add(s.Amount)
		}
	}
	return total
}

// EconomicBalance returns wallet balance plus the principal of active stakes.
func (t *tx) EconomicBalance(_ context.Context, userID int64) (decimal.Decimal, error) {
	if _, ok := t.s.users[userID]; !ok {
		return decimal.Zero, ledger.ErrNotFound
	}
	return t.economicBalance(userID), nil
}

// CountQualifiedReferrals counts direct referrals whose economic balance reaches threshold.
func (t *tx) CountQualifiedReferrals(_ context.Context, referrerID int64, threshold decimal.Decimal) (int, error) {
	n := 0
	for _, u := range t.s.users {
		if u.ReferredBy != nil && *u.ReferredBy == referrerID && t.economicBalance(u.ID).GreaterThanOrEqual(threshold) {
			n++
		}
	}
	return n, nil
}

func page[T any](rows []T, f ledger.ListFilter) []T {
	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			return nil
		}
		rows = rows[f.Offset:]
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows
}
