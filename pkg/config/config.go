package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Paystack     PaystackConfig
	Checkout     CheckoutConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"JEMI_APP_ENV" required:"true"`
	Port         string `envconfig:"JEMI_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"JEMI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"JEMI_LOG_WARN_STACK" default:"false"`
	FrontendURL  string `envconfig:"JEMI_FRONTEND_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"JEMI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"JEMI_DB_DSN"`
	Driver string `envconfig:"JEMI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"JEMI_DB_HOST"`
	LegacyPort     int    `envconfig:"JEMI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"JEMI_DB_USER"`
	LegacyPassword string `envconfig:"JEMI_DB_PASSWORD"`
	LegacyName     string `envconfig:"JEMI_DB_NAME"`
	LegacySSLMode  string `envconfig:"JEMI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"JEMI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"JEMI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"JEMI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"JEMI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"JEMI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"JEMI_REDIS_ADDR"`
	Password     string        `envconfig:"JEMI_REDIS_PASSWORD"`
	DB           int           `envconfig:"JEMI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"JEMI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"JEMI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"JEMI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"JEMI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"JEMI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig only covers verification; tokens are issued by the accounts service.
type JWTConfig struct {
	Secret string `envconfig:"JEMI_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"JEMI_JWT_ISSUER" required:"true"`
}

type PaystackConfig struct {
	SecretKey       string        `envconfig:"JEMI_PAYSTACK_SECRET_KEY" required:"true"`
	PublicKey       string        `envconfig:"JEMI_PAYSTACK_PUBLIC_KEY"`
	BaseURL         string        `envconfig:"JEMI_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	CallbackPath    string        `envconfig:"JEMI_PAYSTACK_CALLBACK_PATH" default:"/checkout/verify"`
	ReferencePrefix string        `envconfig:"JEMI_PAYSTACK_REFERENCE_PREFIX" default:"JEMI"`
	Timeout         time.Duration `envconfig:"JEMI_PAYSTACK_TIMEOUT" default:"30s"`

	BreakerMaxFailures uint32        `envconfig:"JEMI_PAYSTACK_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"JEMI_PAYSTACK_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

type CheckoutConfig struct {
	BrandCode           string   `envconfig:"JEMI_CHECKOUT_BRAND_CODE" default:"JM"`
	PickupDeliveryFee   string   `envconfig:"JEMI_CHECKOUT_PICKUP_DELIVERY_FEE" default:"0"`
	OrderNumberAttempts int      `envconfig:"JEMI_CHECKOUT_ORDER_NUMBER_ATTEMPTS" default:"5"`
	DirectMethods       []string `envconfig:"JEMI_CHECKOUT_DIRECT_METHODS" default:"cash_on_pickup,transfer_on_pickup"`
}

// DeliveryFee parses the configured pickup fee; validate guarantees it is well formed.
func (c CheckoutConfig) DeliveryFee() decimal.Decimal {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.PickupDeliveryFee))
	if err != nil {
		return decimal.Zero
	}
	return fee
}

func (c CheckoutConfig) validate() error {
	if len(c.BrandCode) != 2 {
		return fmt.Errorf("%s must be exactly two characters", EnvCheckoutBrandCode)
	}
	fee, err := decimal.NewFromString(strings.TrimSpace(c.PickupDeliveryFee))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvCheckoutDeliveryFee, err)
	}
	if fee.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvCheckoutDeliveryFee)
	}
	if c.OrderNumberAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvCheckoutOrderNumberAttempts)
	}
	return nil
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"JEMI_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"JEMI_AUTO_MIGRATE" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"JEMI_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"JEMI_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"JEMI_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Stream         string `envconfig:"JEMI_OUTBOX_STREAM" default:"order-events"`
	StreamMaxLen   int64  `envconfig:"JEMI_OUTBOX_STREAM_MAXLEN" default:"100000"`
}

func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
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
