package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"sosseats/src/fees"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Database struct {
	Host     string `envconfig:"DATABASE_HOST" default:"localhost"`
	Port     string `envconfig:"DATABASE_PORT" default:"5432"`
	SSLMode  string `envconfig:"DATABASE_SSLMODE" default:"disable"`
	TimeZone string `envconfig:"DATABASE_TIMEZONE" default:"Africa/Freetown"`
	User     string `envconfig:"DATABASE_USER" default:"postgres"`
	Password string `envconfig:"DATABASE_PASSWORD"`
	Name     string `envconfig:"DATABASE_NAME" default:"sosseats"`
}

type Monime struct {
	BaseURL      string `envconfig:"MONIME_BASE_URL" default:"https://api.monime.io"`
	APIKey       string `envconfig:"MONIME_API_KEY"`
	PayoutAPIKey string `envconfig:"MONIME_PAYOUT_API_KEY"`
	SpaceID      string `envconfig:"MONIME_SPACE_ID"`
	Version      string `envconfig:"MONIME_VERSION" default:"caph.2025-08-23"`
	Environment  string `envconfig:"MONIME_ENVIRONMENT" default:"live"`
}

type Stripe struct {
	SecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	WebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `envconfig:"STRIPE_CURRENCY" default:"usd"`
}

// Fees holds both policies as plain strings so decimal parsing errors surface at load.
type Fees struct {
	PlatformEnabled bool   `envconfig:"PLATFORM_FEE_ENABLED" default:"true"`
	PlatformPct     string `envconfig:"PLATFORM_FEE_PCT" default:"0.1"`
	PlatformMin     string `envconfig:"PLATFORM_FEE_MIN" default:"2"`
	PlatformMax     string `envconfig:"PLATFORM_FEE_MAX" default:"50"`

	WithdrawalPlatformPct string `envconfig:"WITHDRAWAL_PLATFORM_FEE_PCT" default:"0.05"`
	WithdrawalPlatformMin string `envconfig:"WITHDRAWAL_PLATFORM_FEE_MIN" default:"0"`
	WithdrawalPlatformMax string `envconfig:"WITHDRAWAL_PLATFORM_FEE_MAX" default:"0"`
	WithdrawalGatewayPct  string `envconfig:"WITHDRAWAL_GATEWAY_FEE_PCT" default:"0.01"`
}

type Withdrawals struct {
	ApprovalWindow     time.Duration `envconfig:"WITHDRAWAL_APPROVAL_WINDOW" default:"24h"`
	PayoutRecheckDelay time.Duration `envconfig:"PAYOUT_RECHECK_DELAY" default:"2s"`
	ReconcileInterval  time.Duration `envconfig:"PAYOUT_RECONCILE_INTERVAL" default:"1m"`
}

type Config struct {
	APIEnv          string        `envconfig:"API_ENV" default:"production"`
	Port            string        `envconfig:"PORT" default:"9090"`
	AppHost         string        `envconfig:"APP_HOST"`
	MaintenanceMode bool          `envconfig:"MAINTENANCE_MODE" default:"false"`
	SessionSecret   string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	RedisHost       string        `envconfig:"REDIS_HOST" default:"redis://localhost:6379/0"`
	KafkaBroker     string        `envconfig:"KAFKA_BROKER"`
	OTLPEndpoint    string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Database    Database
	Monime      Monime
	Stripe      Stripe
	Fees        Fees
	Withdrawals Withdrawals
}

// Load reads .env for local runs, then the process environment.
func Load() (*Config, error) {
	if os.Getenv("API_ENV") == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if _, err := c.PlatformPolicy(); err != nil {
		return nil, err
	}
	if _, err := c.WithdrawalPolicy(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) IsLocal() bool {
	return c.APIEnv == "local"
}

func (c *Config) PlatformPolicy() (fees.PlatformPolicy, error) {
	p := fees.PlatformPolicy{Enabled: c.Fees.PlatformEnabled}
	var err error
	if p.Pct, err = parseDecimal("PLATFORM_FEE_PCT", c.Fees.PlatformPct); err != nil {
		return p, err
	}
	if p.Min, err = parseDecimal("PLATFORM_FEE_MIN", c.Fees.PlatformMin); err != nil {
		return p, err
	}
	if p.Max, err = parseDecimal("PLATFORM_FEE_MAX", c.Fees.PlatformMax); err != nil {
		return p, err
	}
	return p, p.Validate()
}

func (c *Config) WithdrawalPolicy() (fees.WithdrawalPolicy, error) {
	var p fees.WithdrawalPolicy
	var err error
	if p.PlatformPct, err = parseDecimal("WITHDRAWAL_PLATFORM_FEE_PCT", c.Fees.WithdrawalPlatformPct); err != nil {
		return p, err
	}
	if p.PlatformMin, err = parseDecimal("WITHDRAWAL_PLATFORM_FEE_MIN", c.Fees.WithdrawalPlatformMin); err != nil {
		return p, err
	}
	if p.PlatformMax, err = parseDecimal("WITHDRAWAL_PLATFORM_FEE_MAX", c.Fees.WithdrawalPlatformMax); err != nil {
		return p, err
	}
	if p.GatewayPct, err = parseDecimal("WITHDRAWAL_GATEWAY_FEE_PCT", c.Fees.WithdrawalGatewayPct); err != nil {
		return p, err
	}
	return p, p.Validate()
}

func parseDecimal(name, v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func (c *Config) GetDSN() string {
	d := c.Database
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone)
}
