package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Pricing      PricingConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TOURBOOK_APP_ENV" required:"true"`
	Port         string `envconfig:"TOURBOOK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TOURBOOK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TOURBOOK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TOURBOOK_DB_DSN"`
	Driver string `envconfig:"TOURBOOK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TOURBOOK_DB_HOST"`
	LegacyPort     int    `envconfig:"TOURBOOK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TOURBOOK_DB_USER"`
	LegacyPassword string `envconfig:"TOURBOOK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TOURBOOK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TOURBOOK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOURBOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOURBOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOURBOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOURBOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TOURBOOK_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TOURBOOK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TOURBOOK_REDIS_ADDR"`
	Password     string        `envconfig:"TOURBOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOURBOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOURBOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOURBOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOURBOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOURBOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOURBOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TOURBOOK_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TOURBOOK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TOURBOOK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TOURBOOK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"TOURBOOK_PUBSUB_NOTIFICATION_TOPIC" default:"tb-booking-notifications"`
	AlertTopic        string `envconfig:"TOURBOOK_PUBSUB_ALERT_TOPIC" default:"tb-booking-alerts"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"TOURBOOK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"TOURBOOK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"TOURBOOK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string `envconfig:"TOURBOOK_OUTBOX_METRICS_ADDR" default:":9091"`
}

type StripeConfig struct {
	APIKey           string        `envconfig:"TOURBOOK_STRIPE_API_KEY"`
	Secret           string        `envconfig:"TOURBOOK_STRIPE_SECRET"`
	Env              string        `envconfig:"TOURBOOK_STRIPE_ENV" default:"test"`
	WebhookTolerance time.Duration `envconfig:"TOURBOOK_STRIPE_WEBHOOK_TOLERANCE" default:"5m"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PricingConfig holds the rates applied on top of each line subtotal.
type PricingConfig struct {
	ServiceFeeRate string `envconfig:"TOURBOOK_PRICING_SERVICE_FEE_RATE" default:"0.03"`
	TaxRate        string `envconfig:"TOURBOOK_PRICING_TAX_RATE" default:"0.05"`
}

// Rates parses the configured rates as decimals.
func (p PricingConfig) Rates() (serviceFee, tax decimal.Decimal, err error) {
	serviceFee, err = decimal.NewFromString(strings.TrimSpace(p.ServiceFeeRate))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid %s: %w", EnvPricingServiceFeeRate, err)
	}
	tax, err = decimal.NewFromString(strings.TrimSpace(p.TaxRate))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid %s: %w", EnvPricingTaxRate, err)
	}
	return serviceFee, tax, nil
}

func (p PricingConfig) validate() error {
	fee, tax, err := p.Rates()
	if err != nil {
		return err
	}
	if fee.IsNegative() || tax.IsNegative() {
		return fmt.Errorf("pricing rates must be non-negative")
	}
	return nil
}

type ReconcileConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"TOURBOOK_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	AlertEmail            string        `envconfig:"TOURBOOK_ALERT_EMAIL" default:"ops@tourbook.local"`
	DefaultCurrency       string        `envconfig:"TOURBOOK_DEFAULT_CURRENCY" default:"usd"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
