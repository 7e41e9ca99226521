package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	SeatLocks    SeatLocksConfig
	Cron         CronConfig
	Checkout     CheckoutConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Auth         AuthConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SKYFARE_APP_ENV" required:"true"`
	Port         string `envconfig:"SKYFARE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SKYFARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SKYFARE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SKYFARE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SKYFARE_DB_DSN"`
	Driver string `envconfig:"SKYFARE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SKYFARE_DB_HOST"`
	LegacyPort     int    `envconfig:"SKYFARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SKYFARE_DB_USER"`
	LegacyPassword string `envconfig:"SKYFARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SKYFARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SKYFARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SKYFARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SKYFARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SKYFARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SKYFARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SKYFARE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SKYFARE_REDIS_ADDR"`
	Password     string        `envconfig:"SKYFARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SKYFARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SKYFARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SKYFARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SKYFARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SKYFARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SKYFARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SKYFARE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SKYFARE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SKYFARE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SKYFARE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SKYFARE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BookingTopic             string `envconfig:"SKYFARE_PUBSUB_BOOKING_TOPIC" required:"true"`
	BookingSubscription      string `envconfig:"SKYFARE_PUBSUB_BOOKING_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"SKYFARE_PUBSUB_NOTIFICATION_TOPIC" default:"sf-notification-events"`
	NotificationSubscription string `envconfig:"SKYFARE_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"SKYFARE_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"SKYFARE_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"SKYFARE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"SKYFARE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"SKYFARE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"SKYFARE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionAge   time.Duration `envconfig:"SKYFARE_OUTBOX_RETENTION_AGE" default:"168h"`
}

type SeatLocksConfig struct {
	TTL           time.Duration `envconfig:"SKYFARE_SEAT_LOCK_TTL" default:"10m"`
	SweepBatch    int           `envconfig:"SKYFARE_SEAT_LOCK_SWEEP_BATCH" default:"200"`
	SweepInterval time.Duration `envconfig:"SKYFARE_SEAT_LOCK_SWEEP_INTERVAL" default:"30s"`
}

type CronConfig struct {
	TickInterval time.Duration `envconfig:"SKYFARE_CRON_TICK_INTERVAL" default:"15s"`
	LeaderTTL    time.Duration `envconfig:"SKYFARE_CRON_LEADER_TTL" default:"60s"`
}

type CheckoutConfig struct {
	MaxSeatsPerBooking  int           `envconfig:"SKYFARE_CHECKOUT_MAX_SEATS" default:"9"`
	PaymentWindow       time.Duration `envconfig:"SKYFARE_CHECKOUT_PAYMENT_WINDOW" default:"30m"`
	IdempotencyKeyTTL   time.Duration `envconfig:"SKYFARE_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	ReferenceMaxRetries int           `envconfig:"SKYFARE_CHECKOUT_REFERENCE_MAX_RETRIES" default:"5"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SKYFARE_JWT_SECRET"`
	Issuer            string `envconfig:"SKYFARE_JWT_ISSUER" default:"skyfare"`
	ExpirationMinutes int    `envconfig:"SKYFARE_JWT_EXPIRATION_MINUTES" default:"15"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SKYFARE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SKYFARE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SKYFARE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SKYFARE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SKYFARE_ARGON_KEY_LEN" default:"32"`
}

type AuthConfig struct {
	// OwnerEmail registers as an admin instead of a traveler.
	OwnerEmail string `envconfig:"SKYFARE_AUTH_OWNER_EMAIL"`
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
