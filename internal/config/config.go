// Package config loads process configuration from environment variables.
// envconfig maps variables onto the struct fields; an optional .env file is
// read first with godotenv.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every process-level setting. Business parameters editable by
// admins live in the platform_settings table instead.
type Config struct {
	// --- HTTP ---
	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
	CORSOrigins       string        `envconfig:"CORS_ORIGINS" default:"*"`
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Database ---
	// Inside docker-compose the database host is the service name, not localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"stakehub"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"stakehub"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis ---
	// Empty address disables the deposit claim guard.
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	DepositClaimTTL time.Duration `envconfig:"DEPOSIT_CLAIM_TTL" default:"2m"`

	// --- Auth ---
	JWTSecret        string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL           time.Duration `envconfig:"JWT_TTL" default:"24h"`
	LoginMaxAttempts int           `envconfig:"LOGIN_MAX_ATTEMPTS" default:"5"`
	LoginLockWindow  time.Duration `envconfig:"LOGIN_LOCK_WINDOW" default:"1h"`

	// --- Bootstrap admin ---
	AdminUsername     string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminEmail        string `envconfig:"ADMIN_EMAIL" default:""`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" default:""`

	// --- Chain providers ---
	// Ordered list; the first provider that gives a definitive answer wins.
	ChainProvidersRaw    string        `envconfig:"CHAIN_PROVIDERS" default:"moralis,bsc_rpc"`
	ChainProviders       []string      `envconfig:"-"`
	MoralisBaseURL       string        `envconfig:"MORALIS_BASE_URL" default:"https://deep-index.moralis.io/api/v2.2"`
	MoralisAPIKey        string        `envconfig:"MORALIS_API_KEY" default:""`
	BSCRPCURL            string        `envconfig:"BSC_RPC_URL" default:"https://bsc-dataseed.binance.org"`
	ChainProviderTimeout time.Duration `envconfig:"CHAIN_PROVIDER_TIMEOUT" default:"10s"`

	// --- Telegram ---
	TelegramBotToken     string  `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramAdminChatRaw string  `envconfig:"TELEGRAM_ADMIN_CHAT_IDS" default:""`
	TelegramAdminChatIDs []int64 `envconfig:"-"`

	// --- Application ---
	AppEnv       string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel  string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppLogFormat string `envconfig:"APP_LOG_FORMAT" default:"text"`
	AppTimezone  string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Feature Flags ---
	FeatureLegacyDepositCommission bool `envconfig:"FEATURE_LEGACY_DEPOSIT_COMMISSION" default:"false"`
	FeatureMetricsEnabled          bool `envconfig:"FEATURE_METRICS_ENABLED" default:"true"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate checks required values and ranges after loading.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ChainProviderTimeout <= 0 {
		return fmt.Errorf("CHAIN_PROVIDER_TIMEOUT must be > 0")
	}
	if len(c.ChainProviders) == 0 {
		return fmt.Errorf("CHAIN_PROVIDERS must list at least one provider")
	}
	for _, p := range c.ChainProviders {
		switch p {
		case "moralis", "bsc_rpc":
		default:
			return fmt.Errorf("unknown chain provider %q", p)
		}
	}
	if c.LoginMaxAttempts <= 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be > 0")
	}
	if c.TelegramBotToken != "" && len(c.TelegramAdminChatIDs) == 0 {
		return fmt.Errorf("TELEGRAM_ADMIN_CHAT_IDS is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

// Load reads .env (if present) and the environment into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	ids, err := parseInt64CSV(cfg.TelegramAdminChatRaw)
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_ADMIN_CHAT_IDS parse: %w", err)
	}
	cfg.TelegramAdminChatIDs = ids
	cfg.ChainProviders = parseCSV(cfg.ChainProvidersRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	parts := parseCSV(s)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
