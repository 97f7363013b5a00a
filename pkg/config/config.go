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
	Checkout     CheckoutConfig
	Gateway      GatewayConfig
	Referral     ReferralConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ZAPKART_APP_ENV" required:"true"`
	Port         string `envconfig:"ZAPKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ZAPKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ZAPKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ZAPKART_DB_DSN"`
	Driver string `envconfig:"ZAPKART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ZAPKART_DB_HOST"`
	LegacyPort     int    `envconfig:"ZAPKART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ZAPKART_DB_USER"`
	LegacyPassword string `envconfig:"ZAPKART_DB_PASSWORD"`
	LegacyName     string `envconfig:"ZAPKART_DB_NAME"`
	LegacySSLMode  string `envconfig:"ZAPKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ZAPKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ZAPKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ZAPKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ZAPKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ZAPKART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ZAPKART_REDIS_ADDR"`
	Password     string        `envconfig:"ZAPKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"ZAPKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ZAPKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ZAPKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ZAPKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ZAPKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ZAPKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ZAPKART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ZAPKART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ZAPKART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CheckoutConfig struct {
	DraftTTL time.Duration `envconfig:"ZAPKART_CHECKOUT_DRAFT_TTL" default:"30m"`
	Currency string        `envconfig:"ZAPKART_CHECKOUT_CURRENCY" default:"INR"`
}

type GatewayConfig struct {
	BaseURL       string        `envconfig:"ZAPKART_GATEWAY_BASE_URL"`
	KeyID         string        `envconfig:"ZAPKART_GATEWAY_KEY_ID"`
	KeySecret     string        `envconfig:"ZAPKART_GATEWAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"ZAPKART_GATEWAY_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"ZAPKART_GATEWAY_TIMEOUT" default:"10s"`
}

type ReferralConfig struct {
	RewardCents int `envconfig:"ZAPKART_REFERRAL_REWARD_CENTS" default:"10000"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ZAPKART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ZAPKART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ZAPKART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ZAPKART_AUTO_MIGRATE" default:"false"`
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
