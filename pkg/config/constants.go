package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names.
const EnvPrefix = "ZAPKART"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "ZAPKART_APP_ENV"
	EnvPort     = "ZAPKART_APP_PORT"
	EnvLogLevel = "ZAPKART_LOG_LEVEL"

	EnvDBDSN  = "ZAPKART_DB_DSN"
	EnvDBHost = "ZAPKART_DB_HOST"
	EnvDBUser = "ZAPKART_DB_USER"
	EnvDBName = "ZAPKART_DB_NAME"

	EnvRedisURL = "ZAPKART_REDIS_URL"

	EnvJWTSecret  = "ZAPKART_JWT_SECRET"
	EnvJWTIssuer  = "ZAPKART_JWT_ISSUER"
	EnvJWTExpMins = "ZAPKART_JWT_EXPIRATION_MINUTES"

	EnvGatewayBaseURL       = "ZAPKART_GATEWAY_BASE_URL"
	EnvGatewayKeyID         = "ZAPKART_GATEWAY_KEY_ID"
	EnvGatewayKeySecret     = "ZAPKART_GATEWAY_KEY_SECRET"
	EnvGatewayWebhookSecret = "ZAPKART_GATEWAY_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
