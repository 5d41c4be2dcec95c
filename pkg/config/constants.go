package config

const (
	EnvPrefix = "balcao"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv    = "BALCAO_APP_ENV"
	EnvPort      = "BALCAO_APP_PORT"
	EnvDBDSN     = "BALCAO_DB_DSN"
	EnvDBHost    = "BALCAO_DB_HOST"
	EnvDBUser    = "BALCAO_DB_USER"
	EnvDBName    = "BALCAO_DB_NAME"
	EnvRedisURL  = "BALCAO_REDIS_URL"
	EnvJWTSecret = "BALCAO_JWT_SECRET"
	EnvJWTIssuer = "BALCAO_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
