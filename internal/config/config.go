package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewGateConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBRunMigrations   bool

	Gateway GatewayConfig
	Token   TokenConfig
	Redis   RedisConfig
	Notify  NotifyConfig

	Reconcile ReconcileConfig

	// SeedDemoOrgID, outside production, seeds a demo event for that org.
	SeedDemoOrgID string

	// BootstrapAdmins is a list of "org_id:user_id" pairs granted org_admin on startup.
	BootstrapAdmins []string
}

type GatewayConfig struct {
	Provider      string
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ReconcileConfig drives the background sweep. PaymentExpireAfter zero leaves
// INITIATED transactions alone.
type ReconcileConfig struct {
	Interval           time.Duration
	BatchSize          int
	PaymentExpireAfter time.Duration
}

type NotifyConfig struct {
	Sink         string
	KafkaBrokers string
	KafkaTopic   string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "eventpass"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "eventpass"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME_SECONDS", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME_SECONDS", 300),
		DBRunMigrations:   getenvBool("DATABASE_RUN_MIGRATIONS", true),

		Gateway: GatewayConfig{
			Provider:      strings.ToLower(getenv("PAYMENT_GATEWAY", "sandbox")),
			BaseURL:       strings.TrimSpace(getenv("PAYMENT_GATEWAY_BASE_URL", "https://api.razorpay.com")),
			KeyID:         strings.TrimSpace(getenv("PAYMENT_GATEWAY_KEY_ID", "")),
			KeySecret:     strings.TrimSpace(getenv("PAYMENT_GATEWAY_KEY_SECRET", "")),
			WebhookSecret: strings.TrimSpace(getenv("PAYMENT_GATEWAY_WEBHOOK_SECRET", "")),
			Timeout:       getenvDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),
		},
		Token: TokenConfig{
			Secret: strings.TrimSpace(getenv("QR_TOKEN_SECRET", "")),
			TTL:    getenvDuration("QR_TOKEN_TTL", 0),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Notify: NotifyConfig{
			Sink:         strings.ToLower(getenv("NOTIFY_SINK", "log")),
			KafkaBrokers: strings.TrimSpace(getenv("KAFKA_BROKERS", "localhost:9092")),
			KafkaTopic:   strings.TrimSpace(getenv("KAFKA_TOPIC", "eventpass.notifications")),
		},
		Reconcile: ReconcileConfig{
			Interval:           getenvDuration("RECONCILE_INTERVAL", time.Minute),
			BatchSize:          getenvInt("RECONCILE_BATCH_SIZE", 50),
			PaymentExpireAfter: getenvDuration("PAYMENT_EXPIRE_AFTER", 0),
		},
		SeedDemoOrgID:   strings.TrimSpace(getenv("SEED_DEMO_ORG", "")),
		BootstrapAdmins: splitList(getenv("BOOTSTRAP_ADMINS", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
