package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Log         LogConfig
	Reservation ReservationConfig
	Jobs        JobsConfig
	Payout      PayoutConfig
	Processor   ProcessorConfig
	Transfer    TransferConfig
}

type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"localhost"`
	Port int    `envconfig:"SERVER_PORT" default:"8080"`
}

type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR" default:"localhost:6380"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize int           `envconfig:"REDIS_POOL_SIZE" default:"0"`
	Timeout  time.Duration `envconfig:"REDIS_TIMEOUT" default:"3s"`
}

type PostgresConfig struct {
	User             string        `envconfig:"POSTGRES_USER" required:"true"`
	Password         string        `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Name             string        `envconfig:"POSTGRES_DB" required:"true"`
	Host             string        `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port             int           `envconfig:"POSTGRES_PORT" default:"5432"`
	SSLMode          string        `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxConns         int32         `envconfig:"POSTGRES_MAX_CONNS" default:"0"`
	StatementTimeout time.Duration `envconfig:"POSTGRES_STATEMENT_TIMEOUT" default:"30s"`
	Migrate          bool          `envconfig:"POSTGRES_MIGRATE" default:"true"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

type ReservationConfig struct {
	MinHold     time.Duration `envconfig:"HOLD_MIN" default:"1m"`
	MaxHold     time.Duration `envconfig:"HOLD_MAX" default:"30m"`
	DefaultHold time.Duration `envconfig:"HOLD_DEFAULT" default:"15m"`
	RateLimit   int           `envconfig:"RESERVE_RATE_LIMIT" default:"10"`
	RateWindow  time.Duration `envconfig:"RESERVE_RATE_WINDOW" default:"1m"`
	IdemTTL     time.Duration `envconfig:"RESERVE_IDEMPOTENCY_TTL" default:"2h"`
}

type JobsConfig struct {
	Enabled         bool          `envconfig:"JOBS_ENABLED" default:"true"`
	ExpirySchedule  string        `envconfig:"EXPIRY_SCHEDULE" default:"@every 5m"`
	ExpiryBatchSize int           `envconfig:"EXPIRY_BATCH_SIZE" default:"500"`
	PayoutSchedule  string        `envconfig:"PAYOUT_SCHEDULE" default:"0 3 * * *"`
	LockStaleness   time.Duration `envconfig:"LOCK_STALENESS" default:"5m"`
	// Timeout bounds one tick and stays below LockStaleness so a lease is
	// never taken over while its holder still runs.
	Timeout  time.Duration `envconfig:"JOBS_TIMEOUT" default:"4m"`
	Timezone string        `envconfig:"JOBS_TIMEZONE" default:"UTC"`
}

type PayoutConfig struct {
	HoldBack    time.Duration   `envconfig:"PAYOUT_HOLD_BACK" default:"48h"`
	FeePercent  decimal.Decimal `envconfig:"PAYOUT_FEE_PERCENT" default:"10"`
	Currency    string          `envconfig:"PAYOUT_CURRENCY" default:"BRL"`
	Description string          `envconfig:"PAYOUT_DESCRIPTION" default:"tixpay settlement"`
}

type ProcessorConfig struct {
	BaseURL       string        `envconfig:"PROCESSOR_BASE_URL" default:"https://api.mercadopago.com"`
	AccessToken   string        `envconfig:"PROCESSOR_ACCESS_TOKEN"`
	Timeout       time.Duration `envconfig:"PROCESSOR_TIMEOUT" default:"10s"`
	WebhookSecret string        `envconfig:"PROCESSOR_WEBHOOK_SECRET"`
	NotifyURL     string        `envconfig:"PROCESSOR_NOTIFY_URL"`
}

type TransferConfig struct {
	BaseURL     string        `envconfig:"TRANSFER_BASE_URL" default:"https://api.mercadopago.com"`
	AccessToken string        `envconfig:"TRANSFER_ACCESS_TOKEN"`
	Timeout     time.Duration `envconfig:"TRANSFER_TIMEOUT" default:"15s"`
	MaxAttempts int           `envconfig:"TRANSFER_MAX_ATTEMPTS" default:"3"`
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Reservation.MinHold > cfg.Reservation.MaxHold {
		return nil, fmt.Errorf("%s: HOLD_MIN exceeds HOLD_MAX", op)
	}

	if cfg.Payout.FeePercent.IsNegative() || cfg.Payout.FeePercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%s: PAYOUT_FEE_PERCENT must be within [0,100]", op)
	}

	if cfg.Jobs.Timeout <= 0 || cfg.Jobs.Timeout >= cfg.Jobs.LockStaleness {
		return nil, fmt.Errorf("%s: JOBS_TIMEOUT must be positive and below LOCK_STALENESS", op)
	}

	return &cfg, nil
}
