package config

// EnvPrefix is passed to envconfig; every field below carries an explicit
// envconfig key so the prefix only matters for unknown-variable checks.
const EnvPrefix = "REPLENISH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "REPLENISH_APP_ENV"
	EnvPort     = "REPLENISH_APP_PORT"
	EnvLogLevel = "REPLENISH_LOG_LEVEL"

	EnvDBDSN  = "REPLENISH_DB_DSN"
	EnvDBHost = "REPLENISH_DB_HOST"
	EnvDBUser = "REPLENISH_DB_USER"
	EnvDBName = "REPLENISH_DB_NAME"

	EnvRedisURL = "REPLENISH_REDIS_URL"

	EnvJWTSecret = "REPLENISH_JWT_SECRET"
	EnvJWTIssuer = "REPLENISH_JWT_ISSUER"

	EnvEventingTransport = "REPLENISH_EVENTING_TRANSPORT"
	EnvGCPProjectID      = "REPLENISH_GCP_PROJECT_ID"
	EnvPubSubTopic       = "REPLENISH_PUBSUB_REPLENISHMENT_TOPIC"
	EnvKafkaBrokers      = "REPLENISH_KAFKA_BROKERS"
	EnvKafkaTopic        = "REPLENISH_KAFKA_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

const (
	TransportPubSub = "pubsub"
	TransportKafka  = "kafka"
)
