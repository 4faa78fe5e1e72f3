package config

// EnvPrefix scopes every environment variable consumed by this service.
const EnvPrefix = "CAJA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "CAJA_APP_ENV"
	EnvPort     = "CAJA_APP_PORT"
	EnvDBDSN    = "CAJA_DB_DSN"
	EnvDBHost   = "CAJA_DB_HOST"
	EnvDBUser   = "CAJA_DB_USER"
	EnvDBName   = "CAJA_DB_NAME"
	EnvRedisURL = "CAJA_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
