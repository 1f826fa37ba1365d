package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Webhook      WebhookConfig
	Merchant     MerchantConfig
	BankAPI      BankAPIConfig
	Polling      PollingConfig
	Alerts       AlertsConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.BankAPI.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYRECON_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYRECON_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAYRECON_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PAYRECON_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PAYRECON_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PAYRECON_DB_DSN"`
	Driver string `envconfig:"PAYRECON_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PAYRECON_DB_HOST"`
	Port     int    `envconfig:"PAYRECON_DB_PORT" default:"5432"`
	User     string `envconfig:"PAYRECON_DB_USER"`
	Password string `envconfig:"PAYRECON_DB_PASSWORD"`
	Name     string `envconfig:"PAYRECON_DB_NAME"`
	SSLMode  string `envconfig:"PAYRECON_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"PAYRECON_SQLITE_PATH" default:"payrecon.db"`

	MaxOpenConns    int           `envconfig:"PAYRECON_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYRECON_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYRECON_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYRECON_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYRECON_REDIS_URL"`
	Address      string        `envconfig:"PAYRECON_REDIS_ADDR"`
	Password     string        `envconfig:"PAYRECON_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYRECON_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYRECON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYRECON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYRECON_REDIS_DIAL_TIMEOUT" default:"2s"`
	ReadTimeout  time.Duration `envconfig:"PAYRECON_REDIS_READ_TIMEOUT" default:"1s"`
	WriteTimeout time.Duration `envconfig:"PAYRECON_REDIS_WRITE_TIMEOUT" default:"1s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret string `envconfig:"PAYRECON_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"PAYRECON_JWT_ISSUER" required:"true"`
}

// WebhookConfig guards the bank webhook. An empty secret rejects every delivery.
type WebhookConfig struct {
	Secret       string `envconfig:"PAYRECON_WEBHOOK_SECRET"`
	MaxBodyBytes int64  `envconfig:"PAYRECON_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
}

type MerchantConfig struct {
	AccountNumber string `envconfig:"PAYRECON_MERCHANT_ACCOUNT_NUMBER" required:"true"`
}

type BankAPIConfig struct {
	Provider      string        `envconfig:"PAYRECON_BANK_API_PROVIDER" default:"none"`
	BaseURL       string        `envconfig:"PAYRECON_BANK_API_BASE_URL"`
	APIKey        string        `envconfig:"PAYRECON_BANK_API_KEY"`
	AccountNumber string        `envconfig:"PAYRECON_BANK_API_ACCOUNT_NUMBER"`
	Timeout       time.Duration `envconfig:"PAYRECON_BANK_API_TIMEOUT" default:"5s"`
	Lookback      time.Duration `envconfig:"PAYRECON_BANK_API_LOOKBACK" default:"24h"`
	PageSize      int           `envconfig:"PAYRECON_BANK_API_PAGE_SIZE" default:"50"`
}

// ProviderName returns the normalized provider name.
func (b BankAPIConfig) ProviderName() string {
	name := strings.ToLower(strings.TrimSpace(b.Provider))
	if name == "" {
		return BankProviderNone
	}
	return name
}

func (b BankAPIConfig) validate() error {
	switch b.ProviderName() {
	case BankProviderNone:
		return nil
	case BankProviderSepay, BankProviderCasso:
	default:
		return fmt.Errorf("unsupported bank api provider %q", b.Provider)
	}
	if strings.TrimSpace(b.APIKey) == "" {
		return fmt.Errorf("%s is required when %s=%s", EnvBankAPIKey, EnvBankAPIProvider, b.ProviderName())
	}
	if b.Timeout <= 0 || b.Timeout > maxBankAPITimeout {
		return fmt.Errorf("%s must be within (0, %s]", EnvBankAPITimeout, maxBankAPITimeout)
	}
	return nil
}

type PollingConfig struct {
	RateLimitWindow time.Duration `envconfig:"PAYRECON_POLL_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerKey int           `envconfig:"PAYRECON_POLL_RATE_LIMIT" default:"30"`
}

type AlertsConfig struct {
	TelegramBotToken string        `envconfig:"PAYRECON_TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string        `envconfig:"PAYRECON_TELEGRAM_CHAT_ID"`
	Timeout          time.Duration `envconfig:"PAYRECON_ALERT_TIMEOUT" default:"5s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PAYRECON_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"PAYRECON_CRON_LOCK_TTL" default:"4m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PAYRECON_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PAYRECON_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite || db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbHostEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
