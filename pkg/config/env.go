package config

const (
	EnvPrefix = "JEMI"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "JEMI_APP_ENV"
	EnvPort        = "JEMI_APP_PORT"
	EnvLogLevel    = "JEMI_LOG_LEVEL"
	EnvFrontendURL = "JEMI_FRONTEND_URL"

	EnvDBDSN  = "JEMI_DB_DSN"
	EnvDBHost = "JEMI_DB_HOST"
	EnvDBUser = "JEMI_DB_USER"
	EnvDBName = "JEMI_DB_NAME"

	EnvRedisURL = "JEMI_REDIS_URL"

	EnvJWTSecret = "JEMI_JWT_SECRET"
	EnvJWTIssuer = "JEMI_JWT_ISSUER"

	EnvPaystackSecretKey = "JEMI_PAYSTACK_SECRET_KEY"
	EnvPaystackTimeout   = "JEMI_PAYSTACK_TIMEOUT"

	EnvCheckoutBrandCode           = "JEMI_CHECKOUT_BRAND_CODE"
	EnvCheckoutDeliveryFee         = "JEMI_CHECKOUT_PICKUP_DELIVERY_FEE"
	EnvCheckoutOrderNumberAttempts = "JEMI_CHECKOUT_ORDER_NUMBER_ATTEMPTS"
	EnvCheckoutDirectMethods       = "JEMI_CHECKOUT_DIRECT_METHODS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
