package config

// EnvPrefix is the prefix for all environment variables consumed by the
// service. envconfig also uses it when deriving names for untagged fields.
const EnvPrefix = "SKYFARE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SKYFARE_APP_ENV"
	EnvPort     = "SKYFARE_APP_PORT"
	EnvLogLevel = "SKYFARE_LOG_LEVEL"

	EnvDBDSN      = "SKYFARE_DB_DSN"
	EnvDBHost     = "SKYFARE_DB_HOST"
	EnvDBPort     = "SKYFARE_DB_PORT"
	EnvDBUser     = "SKYFARE_DB_USER"
	EnvDBPassword = "SKYFARE_DB_PASSWORD"
	EnvDBName     = "SKYFARE_DB_NAME"
	EnvDBSSLMode  = "SKYFARE_DB_SSLMODE"

	EnvRedisURL = "SKYFARE_REDIS_URL"

	EnvGCPProjectID = "SKYFARE_GCP_PROJECT_ID"

	EnvPubSubBookingTopic      = "SKYFARE_PUBSUB_BOOKING_TOPIC"
	EnvPubSubBookingSub        = "SKYFARE_PUBSUB_BOOKING_SUBSCRIPTION"
	EnvPubSubNotificationTopic = "SKYFARE_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub   = "SKYFARE_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvStripeAPIKey        = "SKYFARE_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "SKYFARE_STRIPE_WEBHOOK_SECRET"
)

// legacyDBEnvVars are the discrete connection variables accepted when
// SKYFARE_DB_DSN is not set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
