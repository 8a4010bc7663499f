package config

const (
	EnvPrefix = "TOURBOOK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "TOURBOOK_APP_ENV"
	EnvPort     = "TOURBOOK_APP_PORT"
	EnvRedisURL = "TOURBOOK_REDIS_URL"

	EnvDBDSN  = "TOURBOOK_DB_DSN"
	EnvDBHost = "TOURBOOK_DB_HOST"
	EnvDBUser = "TOURBOOK_DB_USER"
	EnvDBName = "TOURBOOK_DB_NAME"

	EnvStripeAPIKey = "TOURBOOK_STRIPE_API_KEY"
	EnvStripeSecret = "TOURBOOK_STRIPE_SECRET"

	EnvPricingServiceFeeRate = "TOURBOOK_PRICING_SERVICE_FEE_RATE"
	EnvPricingTaxRate        = "TOURBOOK_PRICING_TAX_RATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
