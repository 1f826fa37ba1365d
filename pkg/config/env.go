package config

import "time"

const EnvPrefix = "PAYRECON"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	BankProviderNone  = "none"
	BankProviderSepay = "sepay"
	BankProviderCasso = "casso"
)

const maxBankAPITimeout = 15 * time.Second

const (
	EnvAppEnv = "PAYRECON_APP_ENV"
	EnvPort   = "PAYRECON_APP_PORT"

	EnvDBDSN  = "PAYRECON_DB_DSN"
	EnvDBHost = "PAYRECON_DB_HOST"
	EnvDBUser = "PAYRECON_DB_USER"
	EnvDBName = "PAYRECON_DB_NAME"

	EnvRedisURL = "PAYRECON_REDIS_URL"

	EnvJWTSecret = "PAYRECON_JWT_SECRET"
	EnvJWTIssuer = "PAYRECON_JWT_ISSUER"

	EnvWebhookSecret   = "PAYRECON_WEBHOOK_SECRET"
	EnvMerchantAccount = "PAYRECON_MERCHANT_ACCOUNT_NUMBER"

	EnvBankAPIProvider = "PAYRECON_BANK_API_PROVIDER"
	EnvBankAPIKey      = "PAYRECON_BANK_API_KEY"
	EnvBankAPITimeout  = "PAYRECON_BANK_API_TIMEOUT"

	EnvUseSQLite = "PAYRECON_USE_SQLITE"
)

var dbHostEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
