package config

const EnvPrefix = "TOURBOOK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	CouponSourceStatic = "static"
	CouponSourceDB     = "db"

	EventsDriverNone   = "none"
	EventsDriverKafka  = "kafka"
	EventsDriverPubSub = "pubsub"

	defaultSQLiteDSN = "file:tourbook.db?cache=shared&_foreign_keys=1"
)

const (
	EnvAppEnv        = "TOURBOOK_APP_ENV"
	EnvPort          = "TOURBOOK_APP_PORT"
	EnvDBDSN         = "TOURBOOK_DB_DSN"
	EnvRedisURL      = "TOURBOOK_REDIS_URL"
	EnvJWTSecret     = "TOURBOOK_JWT_SECRET"
	EnvJWTIssuer     = "TOURBOOK_JWT_ISSUER"
	EnvUseSQLite     = "TOURBOOK_USE_SQLITE"
	EnvPollInterval  = "TOURBOOK_AVAILABILITY_POLL_INTERVAL"
	EnvCouponsSource = "TOURBOOK_COUPONS_SOURCE"
	EnvEventsDriver  = "TOURBOOK_EVENTS_DRIVER"
	EnvKafkaBrokers  = "TOURBOOK_KAFKA_BROKERS"
	EnvGCPProjectID  = "TOURBOOK_GCP_PROJECT_ID"
)
