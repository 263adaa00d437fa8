package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Billing      BillingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cron.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SAM_APP_ENV" required:"true"`
	Port         string `envconfig:"SAM_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SAM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SAM_LOG_WARN_STACK" default:"false"`

	AllowedOrigins []string `envconfig:"SAM_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SAM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SAM_DB_DSN"`
	Driver string `envconfig:"SAM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SAM_DB_HOST"`
	LegacyPort     int    `envconfig:"SAM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SAM_DB_USER"`
	LegacyPassword string `envconfig:"SAM_DB_PASSWORD"`
	LegacyName     string `envconfig:"SAM_DB_NAME"`
	LegacySSLMode  string `envconfig:"SAM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SAM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SAM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SAM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SAM_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// Queries slower than this are logged at warn level; zero disables the check.
	SlowQueryThreshold time.Duration `envconfig:"SAM_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SAM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SAM_REDIS_ADDR"`
	Password     string        `envconfig:"SAM_REDIS_PASSWORD"`
	DB           int           `envconfig:"SAM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SAM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SAM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SAM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SAM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SAM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for tokens minted by the auth gateway.
type JWTConfig struct {
	Secret string `envconfig:"SAM_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"SAM_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SAM_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SAM_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SAM_GCP_PROJECT_ID" required:"true"`
}

type PubSubConfig struct {
	BillingTopic             string `envconfig:"SAM_PUBSUB_BILLING_TOPIC" default:"sam-billing-events"`
	NotificationTopic        string `envconfig:"SAM_PUBSUB_NOTIFICATION_TOPIC" default:"sam-notification-events"`
	DocumentsTopic           string `envconfig:"SAM_PUBSUB_DOCUMENTS_TOPIC" default:"sam-document-requests"`
	NotificationSubscription string `envconfig:"SAM_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	TransactionSubscription  string `envconfig:"SAM_PUBSUB_TRANSACTION_SUBSCRIPTION" default:"sam-billing-transactions"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SAM_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SAM_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SAM_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SAM_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"SAM_CRON_LOCK_TTL" default:"25h"`

	NotificationRetention time.Duration `envconfig:"SAM_CRON_NOTIFICATION_RETENTION" default:"720h"`
	OutboxRetention       time.Duration `envconfig:"SAM_CRON_OUTBOX_RETENTION" default:"720h"`
	// OutboxPurgeMinAttempts keeps unpublished rows until the relay gave up on them.
	OutboxPurgeMinAttempts int `envconfig:"SAM_CRON_OUTBOX_PURGE_MIN_ATTEMPTS" default:"5"`
	PurgeBatchSize         int `envconfig:"SAM_CRON_PURGE_BATCH_SIZE" default:"1000"`
}

// validate keeps the scheduler lock alive across a whole tick, otherwise a
// second replica could start the same cycle.
func (c CronConfig) validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%s must be positive", EnvCronInterval)
	}
	if c.LockTTL < c.Interval {
		return fmt.Errorf("%s (%s) must be at least %s (%s)", EnvCronLockTTL, c.LockTTL, EnvCronInterval, c.Interval)
	}
	if c.PurgeBatchSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvCronPurgeSize)
	}
	return nil
}

// BillingConfig carries the deadlines and scan bounds of the partner billing cycle.
type BillingConfig struct {
	CallToInvoiceDeadlineDays int    `envconfig:"SAM_BILLING_CALL_TO_INVOICE_DEADLINE_DAYS" default:"10"`
	PaymentDelayDays          int    `envconfig:"SAM_BILLING_PAYMENT_DELAY_DAYS" default:"15"`
	FirstReminderDay          int    `envconfig:"SAM_BILLING_FIRST_REMINDER_DAY" default:"3"`
	FinalReminderDay          int    `envconfig:"SAM_BILLING_FINAL_REMINDER_DAY" default:"7"`
	EscalationSLABusinessDays int    `envconfig:"SAM_BILLING_ESCALATION_SLA_BUSINESS_DAYS" default:"10"`
	ScanPageSize              int    `envconfig:"SAM_BILLING_SCAN_PAGE_SIZE" default:"500"`
	Timezone                  string `envconfig:"SAM_BILLING_TIMEZONE" default:"Europe/Paris"`
}

// DefaultBillingConfig mirrors the envconfig defaults for callers that build the config by hand.
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		CallToInvoiceDeadlineDays: 10,
		PaymentDelayDays:          15,
		FirstReminderDay:          3,
		FinalReminderDay:          7,
		EscalationSLABusinessDays: 10,
		ScanPageSize:              500,
		Timezone:                  "Europe/Paris",
	}
}

// Location resolves the configured billing timezone, falling back to UTC.
func (b BillingConfig) Location() *time.Location {
	if strings.TrimSpace(b.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (b BillingConfig) validate() error {
	if b.CallToInvoiceDeadlineDays <= 0 {
		return fmt.Errorf("%s must be positive", EnvBillingDeadlineDays)
	}
	if b.PaymentDelayDays < 0 {
		return fmt.Errorf("%s must not be negative", EnvBillingPaymentDelayDays)
	}
	if b.FirstReminderDay >= b.FinalReminderDay {
		return fmt.Errorf("first reminder day (%d) must precede final reminder day (%d)", b.FirstReminderDay, b.FinalReminderDay)
	}
	if _, err := time.LoadLocation(b.Timezone); err != nil {
		return fmt.Errorf("invalid billing timezone %q: %w", b.Timezone, err)
	}
	return nil
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
