package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stakehub/internal/ledger"
)

// Coins

func scanCoin(row pgx.Row) (*ledger.Coin, error) {
	var c ledger.Coin
	if err := row.Scan(&c.ID, &c.Symbol, &c.Name, &c.MinStake, &c.DailyReturnRate, &c.Active, &c.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// CreateCoin inserts a coin and sets its ID.
func (t *pgTx) CreateCoin(ctx context.Context, c *ledger.Coin) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO coins (symbol, name, min_stake, daily_return_rate, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, c.Symbol, c.Name, c.MinStake, c.DailyReturnRate, c.Active, c.CreatedAt).Scan(&c.ID)
	return mapErr(err)
}

// UpdateCoin overwrites the editable coin fields.
func (t *pgTx) UpdateCoin(ctx context.Context, c *ledger.Coin) error {
	return t.execOne(ctx, `
		UPDATE coins SET symbol = $2, name = $3, min_stake = $4, daily_return_rate = $5, active = $6
		WHERE id = $1
	`, c.ID, c.Symbol, c.Name, c.MinStake, c.DailyReturnRate, c.Active)
}

// GetCoin returns a coin by ID.
func (t *pgTx) GetCoin(ctx context.Context, id int64) (*ledger.Coin, error) {
	return scanCoin(t.tx.QueryRow(ctx, `
		SELECT id, symbol, name, min_stake, daily_return_rate, active, created_at FROM coins WHERE id = $1
	`, id))
}

// ListCoins returns coins ordered by ID, optionally only active ones.
func (t *pgTx) ListCoins(ctx context.Context, activeOnly bool) ([]*ledger.Coin, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, symbol, name, min_stake, daily_return_rate, active, created_at
		FROM coins WHERE active OR NOT $1::boolean ORDER BY id
	`, activeOnly)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.Coin
	for rows.Next() {
		c, err := scanCoin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coin: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Plans

func scanPlan(row pgx.Row) (*ledger.StakingPlan, error) {
	var p ledger.StakingPlan
	if err := row.Scan(&p.ID, &p.CoinID, &p.DurationDays, &p.InterestRate, &p.Active, &p.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// CreatePlan inserts a staking plan and sets its ID.
func (t *pgTx) CreatePlan(ctx context.Context, p *ledger.StakingPlan) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO staking_plans (coin_id, duration_days, interest_rate, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.CoinID, p.DurationDays, p.InterestRate, p.Active, p.CreatedAt).Scan(&p.ID)
	return mapErr(err)
}

// UpdatePlan overwrites the editable plan fields.
func (t *pgTx) UpdatePlan(ctx context.Context, p *ledger.StakingPlan) error {
	return t.execOne(ctx, `
		UPDATE staking_plans SET coin_id = $2, duration_days = $3, interest_rate = $4, active = $5
		WHERE id = $1
	`, p.ID, p.CoinID, p.DurationDays, p.InterestRate, p.Active)
}

// GetPlan returns a plan by ID.
func (t *pgTx) GetPlan(ctx context.Context, id int64) (*ledger.StakingPlan, error) {
	return scanPlan(t.tx.QueryRow(ctx, `
		SELECT id, coin_id, duration_days, interest_rate, active, created_at FROM staking_plans WHERE id = $1
	`, id))
}

// ListPlans returns the plans of a coin ordered by duration.
func (t *pgTx) ListPlans(ctx context.Context, coinID int64, activeOnly bool) ([]*ledger.StakingPlan, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, coin_id, duration_days, interest_rate, active, created_at
		FROM staking_plans
		WHERE ($1::bigint = 0 OR coin_id = $1::bigint) AND (active OR NOT $2::boolean)
		ORDER BY duration_days, id
	`, coinID, activeOnly)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.StakingPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Payment addresses

func scanAddress(row pgx.Row) (*ledger.PaymentAddress, error) {
	var a ledger.PaymentAddress
	if err := row.Scan(&a.ID, &a.Network, &a.Address, &a.MinDeposit, &a.IsActive, &a.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

// UpsertPaymentAddress inserts the address or updates the existing row of the same network and address.
func (t *pgTx) UpsertPaymentAddress(ctx context.Context, a *ledger.PaymentAddress) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payment_addresses (network, address, min_deposit, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (network, address) DO UPDATE
		SET min_deposit = EXCLUDED.min_deposit, is_active = EXCLUDED.is_active
		RETURNING id, created_at
	`, a.Network, a.Address, a.MinDeposit, a.IsActive, a.CreatedAt).Scan(&a.ID, &a.CreatedAt)
	return mapErr(err)
}

// DeactivatePaymentAddresses deactivates every address of the network except exceptID.
func (t *pgTx) DeactivatePaymentAddresses(ctx context.Context, network string, exceptID int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE payment_addresses SET is_active = FALSE WHERE network = $1 AND id <> $2 AND is_active
	`, network, exceptID)
	return mapErr(err)
}

// GetActivePaymentAddress returns the active deposit address of a network.
func (t *pgTx) GetActivePaymentAddress(ctx context.Context, network string) (*ledger.PaymentAddress, error) {
	return scanAddress(t.tx.QueryRow(ctx, `
		SELECT id, network, address, min_deposit, is_active, created_at
		FROM payment_addresses WHERE network = $1 AND is_active
	`, network))
}

// ListPaymentAddresses returns every payment address.
func (t *pgTx) ListPaymentAddresses(ctx context.Context) ([]*ledger.PaymentAddress, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, network, address, min_deposit, is_active, created_at FROM payment_addresses ORDER BY id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*ledger.PaymentAddress
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
