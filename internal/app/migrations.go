package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/db/postgres"
	"stakehub/internal/features/settings"
)

// Migrations are embedded in the binary and applied in order at startup.
var migrations = []struct {
	version int
	sql     string
}{
	{1, migration001Users},
	{2, migration002Catalog},
	{3, migration003Funds},
	{4, migration004Records},
	{5, migration005Salary},
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}
	for _, m := range migrations {
		applied, err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if applied {
			log.Infof("Migration %d applied", m.version)
		}
	}
	return seedSettings(ctx, pool)
}

// seedSettings inserts the default of every setting that has no row yet.
// Existing rows are left alone.
func seedSettings(ctx context.Context, pool *pgxpool.Pool) error {
	defaults := settings.Defaults()
	for _, key := range settings.Keys {
		value, _ := defaults.Value(key)
		if _, err := pool.Exec(ctx, `
			INSERT INTO platform_settings (key, value, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (key) DO NOTHING
		`, key, value, settings.Description(key)); err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}
	return nil
}

const migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(32) NOT NULL,
    email VARCHAR(120),
    phone VARCHAR(20),
    password_hash TEXT NOT NULL,
    referral_code VARCHAR(8) NOT NULL,
    referred_by BIGINT REFERENCES users(id),
    balance NUMERIC(20,8) NOT NULL DEFAULT 0,
    total_staked NUMERIC(20,8) NOT NULL DEFAULT 0,
    total_earned NUMERIC(20,8) NOT NULL DEFAULT 0,
    referral_bonus NUMERIC(20,8) NOT NULL DEFAULT 0,
    two_referral_bonus_claimed BOOLEAN NOT NULL DEFAULT FALSE,
    premium_active BOOLEAN NOT NULL DEFAULT FALSE,
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    salary_wallet VARCHAR(128),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT users_balance_check CHECK (balance >= 0),
    CONSTRAINT users_total_staked_check CHECK (total_staked >= 0),
    CONSTRAINT users_referral_code_key UNIQUE (referral_code)
);
CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (LOWER(username));
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email));
CREATE UNIQUE INDEX IF NOT EXISTS users_phone_key ON users (phone);
CREATE INDEX IF NOT EXISTS idx_users_referred_by ON users(referred_by);

CREATE TABLE IF NOT EXISTS login_attempts (
    id BIGSERIAL PRIMARY KEY,
    login VARCHAR(120) NOT NULL,
    success BOOLEAN NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_login_attempts_login_time ON login_attempts(login, attempt_time DESC);
`

const migration002Catalog = `
CREATE TABLE IF NOT EXISTS coins (
    id BIGSERIAL PRIMARY KEY,
    symbol VARCHAR(10) NOT NULL,
    name VARCHAR(50) NOT NULL,
    min_stake NUMERIC(20,8) NOT NULL,
    daily_return_rate NUMERIC(10,4) NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT coins_symbol_key UNIQUE (symbol),
    CONSTRAINT coins_min_stake_check CHECK (min_stake > 0)
);

CREATE TABLE IF NOT EXISTS staking_plans (
    id BIGSERIAL PRIMARY KEY,
    coin_id BIGINT NOT NULL REFERENCES coins(id),
    duration_days INTEGER NOT NULL CHECK (duration_days > 0),
    interest_rate NUMERIC(10,4) NOT NULL CHECK (interest_rate >= 0),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_staking_plans_coin ON staking_plans(coin_id);

CREATE TABLE IF NOT EXISTS payment_addresses (
    id BIGSERIAL PRIMARY KEY,
    network VARCHAR(10) NOT NULL,
    address VARCHAR(128) NOT NULL,
    min_deposit NUMERIC(20,8) NOT NULL DEFAULT 10,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (network, address)
);
`

const migration003Funds = `
CREATE TABLE IF NOT EXISTS stakes (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    coin_id BIGINT NOT NULL REFERENCES coins(id),
    plan_id BIGINT NOT NULL REFERENCES staking_plans(id),
    amount NUMERIC(20,8) NOT NULL CHECK (amount > 0),
    daily_rate NUMERIC(10,4) NOT NULL,
    duration_days INTEGER NOT NULL,
    total_return NUMERIC(20,8) NOT NULL,
    premium_commission NUMERIC(20,8) NOT NULL DEFAULT 0,
    start_time TIMESTAMPTZ NOT NULL,
    end_time TIMESTAMPTZ NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'active',
    withdrawn BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_stakes_user_status ON stakes(user_id, status);

CREATE TABLE IF NOT EXISTS deposits (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    amount NUMERIC(20,8) NOT NULL CHECK (amount > 0),
    tx_hash VARCHAR(128) NOT NULL,
    network VARCHAR(10) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    blockchain_verified BOOLEAN NOT NULL DEFAULT FALSE,
    verification_details JSONB,
    admin_notes TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMPTZ,
    CONSTRAINT deposits_tx_hash_key UNIQUE (tx_hash)
);
CREATE INDEX IF NOT EXISTS idx_deposits_user ON deposits(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_deposits_status ON deposits(status);

CREATE TABLE IF NOT EXISTS withdrawals (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    amount NUMERIC(20,8) NOT NULL CHECK (amount > 0),
    fee_amount NUMERIC(20,8) NOT NULL DEFAULT 0,
    net_amount NUMERIC(20,8) NOT NULL,
    wallet_address VARCHAR(128) NOT NULL,
    network VARCHAR(10) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    tx_hash VARCHAR(128),
    admin_notes TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_withdrawals_user_created ON withdrawals(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status);
`

const migration004Records = `
CREATE TABLE IF NOT EXISTS referral_commissions (
    id BIGSERIAL PRIMARY KEY,
    referrer_id BIGINT NOT NULL REFERENCES users(id),
    referred_user_id BIGINT NOT NULL REFERENCES users(id),
    amount NUMERIC(20,8) NOT NULL,
    deposit_amount NUMERIC(20,8) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT referral_commissions_referred_user_id_key UNIQUE (referred_user_id)
);
CREATE INDEX IF NOT EXISTS idx_referral_commissions_referrer ON referral_commissions(referrer_id);

CREATE TABLE IF NOT EXISTS activity_logs (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT REFERENCES users(id),
    action VARCHAR(64) NOT NULL,
    description TEXT NOT NULL,
    ip_address VARCHAR(64),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activity_logs_user ON activity_logs(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_activity_logs_action ON activity_logs(action);

CREATE TABLE IF NOT EXISTS platform_settings (
    key VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL,
    description TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const migration005Salary = `
CREATE TABLE IF NOT EXISTS salary_requests (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    tier INTEGER NOT NULL,
    amount NUMERIC(20,8) NOT NULL,
    wallet_address VARCHAR(128) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    tx_hash VARCHAR(128),
    admin_notes TEXT,
    processed_by BIGINT REFERENCES users(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_salary_requests_user_created ON salary_requests(user_id, created_at DESC);
`
