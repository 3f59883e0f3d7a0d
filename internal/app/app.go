// Package app is the composition root: it opens the database and Redis,
// builds the chain verifier, the services and the HTTP server, and wires
// them together.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/cache"
	"stakehub/internal/chain"
	"stakehub/internal/common"
	"stakehub/internal/config"
	"stakehub/internal/db/postgres"
	"stakehub/internal/features/activity"
	"stakehub/internal/features/catalog"
	"stakehub/internal/features/deposit"
	"stakehub/internal/features/referral"
	"stakehub/internal/features/salary"
	"stakehub/internal/features/settings"
	"stakehub/internal/features/staking"
	"stakehub/internal/features/users"
	"stakehub/internal/features/withdrawal"
	"stakehub/internal/jobs"
	"stakehub/internal/notify"
	"stakehub/internal/web"
)

// App holds the long-lived components.
type App struct {
	Server    *web.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	Redis     redis.UniversalClient
	rpc       *chain.RPC
}

// New builds the application. Order matters: later components depend on
// earlier ones.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := common.SetLocation(cfg.AppTimezone); err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", cfg.AppTimezone, err)
	}
	clock := common.SystemClock{}

	// === 1. Database ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	store := postgres.NewStore(pool)

	a := &App{DB: pool}

	// === 2. Redis (optional) ===
	rdb, err := cache.ConnectRedis(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rdb == nil {
		log.Warn("REDIS_ADDR not set, deposit claims rely on the database only")
	}
	a.Redis = rdb

	// === 3. Chain verifier ===
	var providers []chain.Provider
	for _, name := range cfg.ChainProviders {
		switch name {
		case "moralis":
			providers = append(providers, chain.NewMoralis(cfg.MoralisBaseURL, cfg.MoralisAPIKey, nil))
		case "bsc_rpc":
			rpc, err := chain.DialRPC(ctx, cfg.BSCRPCURL)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.rpc = rpc
			providers = append(providers, rpc)
		}
	}
	verifier := chain.NewVerifier(cfg.ChainProviderTimeout, providers...)
	log.WithField("providers", cfg.ChainProviders).Info("Chain verifier ready")

	// === 4. Notifications ===
	notifier := notify.New(cfg.TelegramBotToken, cfg.TelegramAdminChatIDs)

	// === 5. Services ===
	settingsService := settings.NewService(store, clock)
	if err := settingsService.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	tokens := web.NewTokens(cfg.JWTSecret, cfg.JWTTTL, clock)
	engine := referral.NewEngine(settingsService, clock, cfg.FeatureLegacyDepositCommission)

	userService := users.NewService(store, engine, tokens, users.LoginPolicy{
		MaxAttempts: cfg.LoginMaxAttempts,
		Window:      cfg.LoginLockWindow,
	}, clock)
	catalogService := catalog.NewService(store, settingsService, clock)
	referralService := referral.NewService(store, engine)
	depositService := deposit.NewService(store, verifier, cache.NewClaims(rdb, cfg.DepositClaimTTL), engine, settingsService, clock)
	stakingService := staking.NewService(store, engine, settingsService, clock)
	withdrawalService := withdrawal.NewService(store, engine, settingsService, notifier, clock)
	salaryService := salary.NewService(store, engine, notifier, clock)
	activityService := activity.NewService(store)

	if err := userService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPasswordHash); err != nil {
		a.Close()
		return nil, err
	}

	// === 6. HTTP ===
	server := web.NewServer(cfg, tokens)
	server.Mount(
		users.NewHandler(userService),
		settings.NewHandler(settingsService),
		catalog.NewHandler(catalogService),
		referral.NewHandler(referralService),
		deposit.NewHandler(depositService),
		staking.NewHandler(stakingService),
		withdrawal.NewHandler(withdrawalService),
		salary.NewHandler(salaryService),
		activity.NewHandler(activityService),
	)
	a.Server = server

	// === 7. Jobs ===
	a.Scheduler = jobs.NewScheduler(common.Location(), referralService, salaryService)

	return a, nil
}

// Close releases connections. Safe on a partially built App.
func (a *App) Close() {
	if a.rpc != nil {
		a.rpc.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Close redis")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
