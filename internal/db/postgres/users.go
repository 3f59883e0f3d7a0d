package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"stakehub/internal/ledger"
)

const userColumns = `
	id, username, COALESCE(email, ''), COALESCE(phone, ''), password_hash, referral_code, referred_by,
	balance, total_staked, total_earned, referral_bonus, two_referral_bonus_claimed, premium_active,
	is_admin, is_active, COALESCE(salary_wallet, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*ledger.User, error) {
	var u ledger.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.ReferralCode, &u.ReferredBy,
		&u.Balance, &u.TotalStaked, &u.TotalEarned, &u.ReferralBonus, &u.TwoReferralBonusClaimed, &u.PremiumActive,
		&u.IsAdmin, &u.IsActive, &u.SalaryWallet, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows, err error) ([]*ledger.User, error) {
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateUser inserts a user. Duplicate identities are unique violations.
func (t *pgTx) CreateUser(ctx context.Context, u *ledger.User) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO users (username, email, phone, password_hash, referral_code, referred_by,
		                   balance, is_admin, is_active, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id
	`, u.Username, u.Email, u.Phone, u.PasswordHash, u.ReferralCode, u.ReferredBy,
		u.Balance, u.IsAdmin, u.IsActive, u.CreatedAt,
	).Scan(&u.ID)
	return mapErr(err)
}

// GetUser returns a user by ID.
func (t *pgTx) GetUser(ctx context.Context, id int64) (*ledger.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserForUpdate locks the user row until commit. Every balance move
// starts here so concurrent operations of one user are linearised.
func (t *pgTx) GetUserForUpdate(ctx context.Context, id int64) (*ledger.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// GetUserByLogin finds a user by lowercased username or email.
func (t *pgTx) GetUserByLogin(ctx context.Context, login string) (*ledger.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
		LIMIT 1
	`, login))
}

// GetUserByReferralCode finds a user by referral code.
func (t *pgTx) GetUserByReferralCode(ctx context.Context, code string) (*ledger.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
}

// SaveUserBalances writes the money columns of a locked user. The claimed
// flag can only go from false to true.
func (t *pgTx) SaveUserBalances(ctx context.Context, u *ledger.User) error {
	return t.execOne(ctx, `
		UPDATE users
		SET balance = $2,
		    total_staked = $3,
		    total_earned = $4,
		    referral_bonus = $5,
		    two_referral_bonus_claimed = two_referral_bonus_claimed OR $6,
		    premium_active = $7,
		    updated_at = $8
		WHERE id = $1
	`, u.ID, u.Balance, u.TotalStaked, u.TotalEarned, u.ReferralBonus,
		u.TwoReferralBonusClaimed, u.PremiumActive, u.UpdatedAt)
}

// SetUserActive activates or deactivates a user.
func (t *pgTx) SetUserActive(ctx context.Context, id int64, active bool) error {
	return t.execOne(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// SetSalaryWallet stores the salary wallet address of a user.
func (t *pgTx) SetSalaryWallet(ctx context.Context, id int64, address string) error {
	return t.execOne(ctx, `UPDATE users SET salary_wallet = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`, id, address)
}

// ListUsers returns users ordered by ID.
func (t *pgTx) ListUsers(ctx context.Context, f ledger.ListFilter) ([]*ledger.User, error) {
	limit, offset := limitOffset(f)
	return collectUsers(t.tx.Query(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset))
}

// ListReferrals returns the direct referrals of a user.
func (t *pgTx) ListReferrals(ctx context.Context, referrerID int64) ([]*ledger.User, error) {
	return collectUsers(t.tx.Query(ctx, `
		SELECT `+userColumns+` FROM users WHERE referred_by = $1 ORDER BY id
	`, referrerID))
}

// ListReferrerIDs returns the IDs of users that have at least one referral.
func (t *pgTx) ListReferrerIDs(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT DISTINCT referred_by FROM users WHERE referred_by IS NOT NULL ORDER BY referred_by
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// ListSalaryCandidates returns active users with a salary wallet.
func (t *pgTx) ListSalaryCandidates(ctx context.Context) ([]*ledger.User, error) {
	return collectUsers(t.tx.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active AND salary_wallet IS NOT NULL
		ORDER BY id
	`))
}

// EconomicBalance returns wallet balance plus the principal of active stakes.
func (t *pgTx) EconomicBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		SELECT u.balance + COALESCE((
			SELECT SUM(s.amount) FROM stakes s WHERE s.user_id = u.id AND s.status = 'active'
		), 0)
		FROM users u WHERE u.id = $1
	`, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, mapErr(err)
	}
	return total, nil
}

// CountQualifiedReferrals is a single aggregate over the referrer's direct
// referrals; no graph traversal.
func (t *pgTx) CountQualifiedReferrals(ctx context.Context, referrerID int64, threshold decimal.Decimal) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT u.id
			FROM users u
			LEFT JOIN stakes s ON s.user_id = u.id AND s.status = 'active'
			WHERE u.referred_by = $1
			GROUP BY u.id, u.balance
			HAVING u.balance + COALESCE(SUM(s.amount), 0) >= $2
		) q
	`, referrerID, threshold).Scan(&n)
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
