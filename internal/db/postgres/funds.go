package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"stakehub/internal/ledger"
)

// Stakes

const stakeColumns = `
	id, user_id, coin_id, plan_id, amount, daily_rate, duration_days, total_return,
	premium_commission, start_time, end_time, status, withdrawn, created_at, updated_at`

func scanStake(row pgx.Row) (*ledger.Stake, error) {
	var s ledger.Stake
	err := row.Scan(
		&s.ID, &s.UserID, &s.CoinID, &s.PlanID, &s.Amount, &s.DailyRate, &s.DurationDays, &s.TotalReturn,
		&s.PremiumCommission, &s.StartTime, &s.EndTime, &s.Status, &s.Withdrawn, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

// InsertStake inserts a stake and sets its ID.
func (t *pgTx) InsertStake(ctx context.Context, s *ledger.Stake) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stakes (user_id, coin_id, plan_id, amount, daily_rate, duration_days, total_return,
		                    premium_commission, start_time, end_time, status, withdrawn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id
	`, s.UserID, s.CoinID, s.PlanID, s.Amount, s.DailyRate, s.DurationDays, s.TotalReturn,
		s.PremiumCommission, s.StartTime, s.EndTime, s.Status, s.Withdrawn, s.CreatedAt,
	).Scan(&s.ID)
	return mapErr(err)
}

// GetStake returns a stake by ID.
func (t *pgTx) GetStake(ctx context.Context, id int64) (*ledger.Stake, error) {
	return scanStake(t.tx.QueryRow(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE id = $1`, id))
}

// GetStakeForUpdate returns a stake and locks its row.
func (t *pgTx) GetStakeForUpdate(ctx context.Context, id int64) (*ledger.Stake, error) {
	return scanStake(t.tx.QueryRow(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE id = $1 FOR UPDATE`, id))
}

// UpdateStakeStatus stores the status and withdrawn flag of a stake.
func (t *pgTx) UpdateStakeStatus(ctx context.Context, s *ledger.Stake) error {
	return t.execOne(ctx, `
		UPDATE stakes SET status = $2, withdrawn = $3, updated_at = $4 WHERE id = $1
	`, s.ID, s.Status, s.Withdrawn, s.UpdatedAt)
}

// ListStakes returns stakes newest first.
func (t *pgTx) ListStakes(ctx context.Context, f ledger.ListFilter) ([]*ledger.Stake, error) {
	limit, offset := limitOffset(f)
	rows, err := t.tx.Query(ctx, `
		SELECT `+stakeColumns+` FROM stakes
		WHERE ($1::bigint = 0 OR user_id = $1::bigint) AND ($2::text = '' OR status = $2::text)
		ORDER BY id DESC LIMIT $3 OFFSET $4
	`, f.UserID, f.Status, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.Stake
	for rows.Next() {
		s, err := scanStake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stake: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Deposits

const depositColumns = `
	id, user_id, amount, tx_hash, network, status, blockchain_verified,
	verification_details, COALESCE(admin_notes, ''), created_at, processed_at`

func scanDeposit(row pgx.Row) (*ledger.Deposit, error) {
	var d ledger.Deposit
	err := row.Scan(
		&d.ID, &d.UserID, &d.Amount, &d.TxHash, &d.Network, &d.Status, &d.BlockchainVerified,
		&d.VerificationDetails, &d.AdminNotes, &d.CreatedAt, &d.ProcessedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

// InsertDeposit relies on the UNIQUE constraint on tx_hash: of two
// concurrent inserts of one hash exactly one commits.
func (t *pgTx) InsertDeposit(ctx context.Context, d *ledger.Deposit) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO deposits (user_id, amount, tx_hash, network, status, blockchain_verified,
		                      verification_details, admin_notes, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
		RETURNING id
	`, d.UserID, d.Amount, d.TxHash, d.Network, d.Status, d.BlockchainVerified,
		d.VerificationDetails, d.AdminNotes, d.CreatedAt, d.ProcessedAt,
	).Scan(&d.ID)
	return mapErr(err)
}

// GetDeposit returns a deposit by ID.
func (t *pgTx) GetDeposit(ctx context.Context, id int64) (*ledger.Deposit, error) {
	return scanDeposit(t.tx.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = $1`, id))
}

// GetDepositForUpdate returns a deposit and locks its row.
func (t *pgTx) GetDepositForUpdate(ctx context.Context, id int64) (*ledger.Deposit, error) {
	return scanDeposit(t.tx.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = $1 FOR UPDATE`, id))
}

// GetDepositByTxHash returns the deposit holding a normalised tx hash.
func (t *pgTx) GetDepositByTxHash(ctx context.Context, hash string) (*ledger.Deposit, error) {
	return scanDeposit(t.tx.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE tx_hash = $1 FOR UPDATE`, hash))
}

// DeleteDeposit removes a rejected deposit before its owner retries the hash.
func (t *pgTx) DeleteDeposit(ctx context.Context, id int64) error {
	return t.execOne(ctx, `DELETE FROM deposits WHERE id = $1`, id)
}

// UpdateDeposit stores the review outcome of a deposit.
func (t *pgTx) UpdateDeposit(ctx context.Context, d *ledger.Deposit) error {
	return t.execOne(ctx, `
		UPDATE deposits
		SET status = $2, blockchain_verified = $3, verification_details = $4,
		    admin_notes = NULLIF($5, ''), processed_at = $6
		WHERE id = $1
	`, d.ID, d.Status, d.BlockchainVerified, d.VerificationDetails, d.AdminNotes, d.ProcessedAt)
}

// ListDeposits returns deposits newest first.
func (t *pgTx) ListDeposits(ctx context.Context, f ledger.ListFilter) ([]*ledger.Deposit, error) {
	limit, offset := limitOffset(f)
	rows, err := t.tx.Query(ctx, `
		SELECT `+depositColumns+` FROM deposits
		WHERE ($1::bigint = 0 OR user_id = $1::bigint) AND ($2::text = '' OR status = $2::text)
		ORDER BY id DESC LIMIT $3 OFFSET $4
	`, f.UserID, f.Status, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Withdrawals

const withdrawalColumns = `
	id, user_id, amount, fee_amount, net_amount, wallet_address, network, status,
	COALESCE(tx_hash, ''), COALESCE(admin_notes, ''), created_at, processed_at, completed_at`

func scanWithdrawal(row pgx.Row) (*ledger.Withdrawal, error) {
	var w ledger.Withdrawal
	err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.FeeAmount, &w.NetAmount, &w.WalletAddress, &w.Network, &w.Status,
		&w.TxHash, &w.AdminNotes, &w.CreatedAt, &w.ProcessedAt, &w.CompletedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &w, nil
}

// InsertWithdrawal inserts a withdrawal and sets its ID.
func (t *pgTx) InsertWithdrawal(ctx context.Context, w *ledger.Withdrawal) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO withdrawals (user_id, amount, fee_amount, net_amount, wallet_address, network, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, w.UserID, w.Amount, w.FeeAmount, w.NetAmount, w.WalletAddress, w.Network, w.Status, w.CreatedAt,
	).Scan(&w.ID)
	return mapErr(err)
}

// GetWithdrawalForUpdate returns a withdrawal and locks its row.
func (t *pgTx) GetWithdrawalForUpdate(ctx context.Context, id int64) (*ledger.Withdrawal, error) {
	return scanWithdrawal(t.tx.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
}

// UpdateWithdrawal stores the status, tx hash and notes of a withdrawal.
func (t *pgTx) UpdateWithdrawal(ctx context.Context, w *ledger.Withdrawal) error {
	return t.execOne(ctx, `
		UPDATE withdrawals
		SET status = $2, tx_hash = NULLIF($3, ''), admin_notes = NULLIF($4, ''),
		    processed_at = $5, completed_at = $6
		WHERE id = $1
	`, w.ID, w.Status, w.TxHash, w.AdminNotes, w.ProcessedAt, w.CompletedAt)
}

// ListWithdrawals returns withdrawals newest first.
func (t *pgTx) ListWithdrawals(ctx context.Context, f ledger.ListFilter) ([]*ledger.Withdrawal, error) {
	limit, offset := limitOffset(f)
	rows, err := t.tx.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE ($1::bigint = 0 OR user_id = $1::bigint) AND ($2::text = '' OR status = $2::text)
		ORDER BY id DESC LIMIT $3 OFFSET $4
	`, f.UserID, f.Status, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SumWithdrawalsSince sums the non-rejected withdrawals of a user created at or after since.
func (t *pgTx) SumWithdrawalsSince(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM withdrawals
		WHERE user_id = $1 AND status <> 'rejected' AND created_at >= $2
	`, userID, since).Scan(&sum)
	if err != nil {
		return decimal.Zero, mapErr(err)
	}
	return sum, nil
}
