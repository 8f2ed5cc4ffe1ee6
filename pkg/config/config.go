package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Availability AvailabilityConfig
	Coupons      CouponsConfig
	Events       EventsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Coupons.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Events.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"TOURBOOK_APP_ENV" required:"true"`
	Port         string   `envconfig:"TOURBOOK_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"TOURBOOK_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TOURBOOK_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"TOURBOOK_CORS_ORIGINS" default:"http://localhost:3000"`
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

	MaxOpenConns    int           `envconfig:"TOURBOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOURBOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOURBOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOURBOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = defaultSQLiteDSN
		}
		return nil
	}
	if db.DSN == "" {
		return fmt.Errorf("%s is required", EnvDBDSN)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"TOURBOOK_REDIS_URL"`
	Address      string        `envconfig:"TOURBOOK_REDIS_ADDR"`
	Password     string        `envconfig:"TOURBOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOURBOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOURBOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOURBOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOURBOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOURBOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOURBOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TOURBOOK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TOURBOOK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TOURBOOK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TOURBOOK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TOURBOOK_AUTO_MIGRATE" default:"false"`
}

// AvailabilityConfig tunes the push channel and the client poll fallback.
type AvailabilityConfig struct {
	PollInterval    time.Duration `envconfig:"TOURBOOK_AVAILABILITY_POLL_INTERVAL" default:"15s"`
	ClientQueueSize int           `envconfig:"TOURBOOK_AVAILABILITY_CLIENT_QUEUE" default:"16"`
	RelayChannel    string        `envconfig:"TOURBOOK_AVAILABILITY_RELAY_CHANNEL" default:"availability"`
	WriteWait       time.Duration `envconfig:"TOURBOOK_AVAILABILITY_WRITE_WAIT" default:"10s"`
	PongWait        time.Duration `envconfig:"TOURBOOK_AVAILABILITY_PONG_WAIT" default:"60s"`
	ResyncInterval  time.Duration `envconfig:"TOURBOOK_AVAILABILITY_RESYNC_INTERVAL" default:"1m"`
	ResyncWindow    time.Duration `envconfig:"TOURBOOK_AVAILABILITY_RESYNC_WINDOW" default:"5m"`
}

type CouponsConfig struct {
	Source             string        `envconfig:"TOURBOOK_COUPONS_SOURCE" default:"static"`
	SeedFile           string        `envconfig:"TOURBOOK_COUPONS_SEED_FILE"`
	CacheTTL           time.Duration `envconfig:"TOURBOOK_COUPONS_CACHE_TTL" default:"5m"`
	ApplyRatePerMinute int           `envconfig:"TOURBOOK_COUPONS_APPLY_RATE_PER_MINUTE" default:"10"`
	ApplyBurst         int           `envconfig:"TOURBOOK_COUPONS_APPLY_BURST" default:"5"`
}

func (c CouponsConfig) validate() error {
	switch c.Source {
	case CouponSourceStatic, CouponSourceDB:
		return nil
	}
	return fmt.Errorf("%s must be %q or %q, got %q", EnvCouponsSource, CouponSourceStatic, CouponSourceDB, c.Source)
}

// EventsConfig selects the bus that carries seat-change events between bookings and the
// availability worker.
type EventsConfig struct {
	Driver string `envconfig:"TOURBOOK_EVENTS_DRIVER" default:"none"`

	KafkaBrokers []string `envconfig:"TOURBOOK_KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"TOURBOOK_KAFKA_TOPIC" default:"tour.seats.changed"`
	KafkaGroupID string   `envconfig:"TOURBOOK_KAFKA_GROUP_ID" default:"availability-worker"`

	GCPProjectID       string `envconfig:"TOURBOOK_GCP_PROJECT_ID"`
	PubSubTopic        string `envconfig:"TOURBOOK_PUBSUB_TOPIC" default:"tour-seats-changed"`
	PubSubSubscription string `envconfig:"TOURBOOK_PUBSUB_SUBSCRIPTION" default:"tour-seats-changed-worker"`
}

func (e EventsConfig) validate() error {
	switch e.Driver {
	case EventsDriverNone:
		return nil
	case EventsDriverKafka:
		if len(e.KafkaBrokers) == 0 {
			return fmt.Errorf("%s is required for the kafka driver", EnvKafkaBrokers)
		}
		return nil
	case EventsDriverPubSub:
		if strings.TrimSpace(e.GCPProjectID) == "" {
			return fmt.Errorf("%s is required for the pubsub driver", EnvGCPProjectID)
		}
		return nil
	}
	return fmt.Errorf("unknown %s %q", EnvEventsDriver, e.Driver)
}
