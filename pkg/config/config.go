package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	HTTP          HTTPConfig
	FeatureFlags  FeatureFlagsConfig
	Replenishment ReplenishmentConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"REPLENISH_APP_ENV" required:"true"`
	Port         string `envconfig:"REPLENISH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"REPLENISH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REPLENISH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"REPLENISH_DB_DSN"`
	Driver string `envconfig:"REPLENISH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"REPLENISH_DB_HOST"`
	LegacyPort     int    `envconfig:"REPLENISH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REPLENISH_DB_USER"`
	LegacyPassword string `envconfig:"REPLENISH_DB_PASSWORD"`
	LegacyName     string `envconfig:"REPLENISH_DB_NAME"`
	LegacySSLMode  string `envconfig:"REPLENISH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REPLENISH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REPLENISH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REPLENISH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REPLENISH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REPLENISH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"REPLENISH_REDIS_ADDR"`
	Password     string        `envconfig:"REPLENISH_REDIS_PASSWORD"`
	DB           int           `envconfig:"REPLENISH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REPLENISH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REPLENISH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REPLENISH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REPLENISH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REPLENISH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the identity service.
type JWTConfig struct {
	Secret string `envconfig:"REPLENISH_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"REPLENISH_JWT_ISSUER" required:"true"`
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `envconfig:"REPLENISH_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"REPLENISH_HTTP_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"REPLENISH_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"REPLENISH_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	IdempotencyTTL  time.Duration `envconfig:"REPLENISH_HTTP_IDEMPOTENCY_TTL" default:"24h"`
	CORSOrigins     []string      `envconfig:"REPLENISH_HTTP_CORS_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REPLENISH_AUTO_MIGRATE" default:"false"`
	StatsCache  bool `envconfig:"REPLENISH_STATS_CACHE" default:"true"`
}

type ReplenishmentConfig struct {
	MaxTransitionAttempts int           `envconfig:"REPLENISH_MAX_TRANSITION_ATTEMPTS" default:"3"`
	RecentTransferDays    int           `envconfig:"REPLENISH_RECENT_TRANSFER_DAYS" default:"30"`
	StatsCacheTTL         time.Duration `envconfig:"REPLENISH_STATS_CACHE_TTL" default:"5m"`
	ListPageSize          int           `envconfig:"REPLENISH_LIST_PAGE_SIZE" default:"100"`
}

// RecentTransferWindow is the trailing window used for recent transfer stats.
func (r ReplenishmentConfig) RecentTransferWindow() time.Duration {
	if r.RecentTransferDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(r.RecentTransferDays) * 24 * time.Hour
}

type EventingConfig struct {
	Transport            string        `envconfig:"REPLENISH_EVENTING_TRANSPORT" default:"pubsub"`
	OutboxIdempotencyTTL time.Duration `envconfig:"REPLENISH_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (e EventingConfig) validate(cfg Config) error {
	switch strings.ToLower(strings.TrimSpace(e.Transport)) {
	case TransportPubSub:
		return nil
	case TransportKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("%s is required when %s=%s", EnvKafkaBrokers, EnvEventingTransport, TransportKafka)
		}
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvEventingTransport, TransportPubSub, TransportKafka, e.Transport)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"REPLENISH_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"REPLENISH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"REPLENISH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ReplenishmentTopic string `envconfig:"REPLENISH_PUBSUB_REPLENISHMENT_TOPIC" default:"replenishment-events"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"REPLENISH_KAFKA_BROKERS"`
	Topic        string        `envconfig:"REPLENISH_KAFKA_TOPIC" default:"replenishment-events"`
	WriteTimeout time.Duration `envconfig:"REPLENISH_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize          int `envconfig:"REPLENISH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS     int `envconfig:"REPLENISH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts        int `envconfig:"REPLENISH_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays      int `envconfig:"REPLENISH_OUTBOX_RETENTION_DAYS" default:"30"`
	RetentionBatchSize int `envconfig:"REPLENISH_OUTBOX_RETENTION_BATCH_SIZE" default:"1000"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"REPLENISH_CRON_INTERVAL" default:"1h"`
	LockTTL        time.Duration `envconfig:"REPLENISH_CRON_LOCK_TTL" default:"10m"`
	AlertDedupeTTL time.Duration `envconfig:"REPLENISH_CRON_ALERT_DEDUPE_TTL" default:"24h"`
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
