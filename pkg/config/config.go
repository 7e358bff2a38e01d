package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Storefront    StorefrontConfig
	Downloads     DownloadsConfig
	Media         MediaConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Stripe        StripeConfig
	PayPal        PayPalConfig
	Sendgrid      SendgridConfig
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
	Env          string `envconfig:"HARMONIA_APP_ENV" required:"true"`
	Port         string `envconfig:"HARMONIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HARMONIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HARMONIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"HARMONIA_DB_DSN"`
	Driver string `envconfig:"HARMONIA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HARMONIA_DB_HOST"`
	LegacyPort     int    `envconfig:"HARMONIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HARMONIA_DB_USER"`
	LegacyPassword string `envconfig:"HARMONIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"HARMONIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"HARMONIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HARMONIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HARMONIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HARMONIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HARMONIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HARMONIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HARMONIA_REDIS_ADDR"`
	Password     string        `envconfig:"HARMONIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"HARMONIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HARMONIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HARMONIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HARMONIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HARMONIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HARMONIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HARMONIA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HARMONIA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"HARMONIA_JWT_EXPIRATION_MINUTES" default:"480"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"HARMONIA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"HARMONIA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"HARMONIA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"HARMONIA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"HARMONIA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"HARMONIA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"HARMONIA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"HARMONIA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"HARMONIA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"HARMONIA_AUTO_MIGRATE" default:"false"`
}

type StorefrontConfig struct {
	ClientURL         string `envconfig:"HARMONIA_CLIENT_URL" default:"http://localhost:3000"`
	OrderNumberPrefix string `envconfig:"HARMONIA_ORDER_NUMBER_PREFIX" default:"HT"`
	Currency          string `envconfig:"HARMONIA_CURRENCY" default:"EUR"`
}

type DownloadsConfig struct {
	SignedURLTTL       time.Duration `envconfig:"HARMONIA_DOWNLOAD_SIGNED_URL_TTL" default:"1h"`
	DefaultLimit       int           `envconfig:"HARMONIA_DOWNLOAD_DEFAULT_LIMIT" default:"5"`
	DefaultExpiryHours int           `envconfig:"HARMONIA_DOWNLOAD_DEFAULT_EXPIRY_HOURS" default:"48"`
}

// DefaultExpiry returns the fallback token lifetime.
func (d DownloadsConfig) DefaultExpiry() time.Duration {
	return time.Duration(d.DefaultExpiryHours) * time.Hour
}

type MediaConfig struct {
	MaxUploadMB int `envconfig:"HARMONIA_MAX_UPLOAD_MB" default:"200"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HARMONIA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"HARMONIA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HARMONIA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"HARMONIA_GCS_BUCKET_NAME"`
	DownloadURLExpiry time.Duration `envconfig:"HARMONIA_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"HARMONIA_PUBSUB_NOTIFICATION_TOPIC" default:"storefront-notification-events"`
	NotificationSubscription string `envconfig:"HARMONIA_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HARMONIA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HARMONIA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HARMONIA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"HARMONIA_STRIPE_API_KEY"`
	Secret string `envconfig:"HARMONIA_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"HARMONIA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID     string `envconfig:"HARMONIA_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"HARMONIA_PAYPAL_CLIENT_SECRET"`
	Env          string `envconfig:"HARMONIA_PAYPAL_ENV" default:"sandbox"`
	WebhookID    string `envconfig:"HARMONIA_PAYPAL_WEBHOOK_ID"`
}

// BaseURL returns the REST endpoint for the configured PayPal environment.
func (p PayPalConfig) BaseURL() string {
	if strings.EqualFold(p.Env, "live") {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}

type SendgridConfig struct {
	APIKey    string `envconfig:"HARMONIA_SENDGRID_API_KEY"`
	FromEmail string `envconfig:"HARMONIA_SENDGRID_FROM_EMAIL"`
	FromName  string `envconfig:"HARMONIA_SENDGRID_FROM_NAME" default:"Harmonia Digital"`
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
