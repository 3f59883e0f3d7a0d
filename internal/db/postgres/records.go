package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stakehub/internal/ledger"
)

// Referral commissions

// InsertReferralCommission uses ON CONFLICT DO NOTHING so a duplicate does
// not abort the surrounding transaction; the duplicate is still reported as
// a UniqueError.
func (t *pgTx) InsertReferralCommission(ctx context.Context, c *ledger.ReferralCommission) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO referral_commissions (referrer_id, referred_user_id, amount, deposit_amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (referred_user_id) DO NOTHING
		RETURNING id
	`, c.ReferrerID, c.ReferredUserID, c.Amount, c.DepositAmount, c.CreatedAt).Scan(&c.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &ledger.UniqueError{Constraint: ledger.ConstraintCommissionReferred}
	}
	return mapErr(err)
}

// ListReferralCommissions returns the commissions earned by a referrer.
func (t *pgTx) ListReferralCommissions(ctx context.Context, referrerID int64) ([]*ledger.ReferralCommission, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, referrer_id, referred_user_id, amount, deposit_amount, created_at
		FROM referral_commissions
		WHERE $1::bigint = 0 OR referrer_id = $1::bigint
		ORDER BY id
	`, referrerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.ReferralCommission
	for rows.Next() {
		var c ledger.ReferralCommission
		if err := rows.Scan(&c.ID, &c.ReferrerID, &c.ReferredUserID, &c.Amount, &c.DepositAmount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Activity

// AppendActivity appends an activity row.
func (t *pgTx) AppendActivity(ctx context.Context, a *ledger.ActivityLog) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO activity_logs (user_id, action, description, ip_address, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id
	`, a.UserID, a.Action, a.Description, a.IPAddress, a.CreatedAt).Scan(&a.ID)
	return mapErr(err)
}

// ListActivity returns activity rows newest first.
func (t *pgTx) ListActivity(ctx context.Context, f ledger.ListFilter) ([]*ledger.ActivityLog, error) {
	limit, offset := limitOffset(f)
	rows, err := t.tx.Query(ctx, `
		SELECT id, user_id, action, description, COALESCE(ip_address, ''), created_at
		FROM activity_logs
		WHERE ($1::bigint = 0 OR user_id = $1::bigint) AND ($2::text = '' OR action = $2::text)
		ORDER BY id DESC LIMIT $3 OFFSET $4
	`, f.UserID, f.Action, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.ActivityLog
	for rows.Next() {
		var a ledger.ActivityLog
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Description, &a.IPAddress, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Settings

// ListSettings returns every stored platform setting.
func (t *pgTx) ListSettings(ctx context.Context) ([]*ledger.PlatformSetting, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT key, value, COALESCE(description, ''), updated_at FROM platform_settings ORDER BY key
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.PlatformSetting
	for rows.Next() {
		var s ledger.PlatformSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// UpsertSetting inserts or replaces a platform setting.
func (t *pgTx) UpsertSetting(ctx context.Context, s *ledger.PlatformSetting) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO platform_settings (key, value, description, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    description = COALESCE(EXCLUDED.description, platform_settings.description),
		    updated_at = EXCLUDED.updated_at
	`, s.Key, s.Value, s.Description, s.UpdatedAt)
	return mapErr(err)
}

// Salary requests

const salaryColumns = `
	id, user_id, tier, amount, wallet_address, status, COALESCE(tx_hash, ''),
	COALESCE(admin_notes, ''), processed_by, created_at, processed_at`

func scanSalary(row pgx.Row) (*ledger.SalaryRequest, error) {
	var r ledger.SalaryRequest
	err := row.Scan(&r.ID, &r.UserID, &r.Tier, &r.Amount, &r.WalletAddress, &r.Status, &r.TxHash,
		&r.AdminNotes, &r.ProcessedBy, &r.CreatedAt, &r.ProcessedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

// InsertSalaryRequest inserts a salary request and sets its ID.
func (t *pgTx) InsertSalaryRequest(ctx context.Context, r *ledger.SalaryRequest) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO salary_requests (user_id, tier, amount, wallet_address, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, r.UserID, r.Tier, r.Amount, r.WalletAddress, r.Status, r.CreatedAt).Scan(&r.ID)
	return mapErr(err)
}

// GetSalaryRequestForUpdate returns a salary request and locks its row.
func (t *pgTx) GetSalaryRequestForUpdate(ctx context.Context, id int64) (*ledger.SalaryRequest, error) {
	return scanSalary(t.tx.QueryRow(ctx, `SELECT `+salaryColumns+` FROM salary_requests WHERE id = $1 FOR UPDATE`, id))
}

// UpdateSalaryRequest stores the review outcome of a salary request.
func (t *pgTx) UpdateSalaryRequest(ctx context.Context, r *ledger.SalaryRequest) error {
	return t.execOne(ctx, `
		UPDATE salary_requests
		SET status = $2, tx_hash = NULLIF($3, ''), admin_notes = NULLIF($4, ''),
		    processed_by = $5, processed_at = $6
		WHERE id = $1
	`, r.ID, r.Status, r.TxHash, r.AdminNotes, r.ProcessedBy, r.ProcessedAt)
}

// HasSalaryRequestSince reports whether the user has a salary request created at or after since.
func (t *pgTx) HasSalaryRequestSince(ctx context.Context, userID int64, since time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM salary_requests WHERE user_id = $1 AND created_at >= $2)
	`, userID, since).Scan(&exists)
	return exists, mapErr(err)
}

// ListSalaryRequests returns salary requests newest first.
func (t *pgTx) ListSalaryRequests(ctx context.Context, f ledger.ListFilter) ([]*ledger.SalaryRequest, error) {
	limit, offset := limitOffset(f)
	rows, err := t.tx.Query(ctx, `
		SELECT `+salaryColumns+` FROM salary_requests
		WHERE ($1::bigint = 0 OR user_id = $1::bigint) AND ($2::text = '' OR status = $2::text)
		ORDER BY id DESC LIMIT $3 OFFSET $4
	`, f.UserID, f.Status, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.SalaryRequest
	for rows.Next() {
		r, err := scanSalary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan salary request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Login attempts

// RecordLoginAttempt stores one password check.
func (t *pgTx) RecordLoginAttempt(ctx context.Context, a *ledger.LoginAttempt) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO login_attempts (login, success, attempt_time) VALUES ($1, $2, $3)
	`, a.Login, a.Success, a.CreatedAt)
	return mapErr(err)
}

// CountFailedLogins counts failed checks of a login at or after since.
func (t *pgTx) CountFailedLogins(ctx context.Context, login string, since time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts WHERE login = $1 AND NOT success AND attempt_time >= $2
	`, login, since).Scan(&n)
	return n, mapErr(err)
}
