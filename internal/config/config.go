package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env file - ignore error if file doesn't exist
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Note: .env file not found or could not be loaded: %v\n", err)
	}
}

type Config struct {
	Primary       PrimaryConfig
	Database      DatabaseConfig
	Server        ServerConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Observability *ObservabilityConfig
	Gateways      GatewaysConfig
	Payout        PayoutConfig
}

type PrimaryConfig struct {
	Env string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	IdleTimeout        int
	CORSAllowedOrigins []string
	RateLimitPerMinute int64
}

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
	KeyPrefix    string
}

type KafkaConfig struct {
	Brokers []string
}

type ObservabilityConfig struct {
	ServiceName  string
	Environment  string
	Logging      LoggingConfig
	NewRelic     NewRelicConfig
	HealthChecks HealthChecksConfig
}

type LoggingConfig struct {
	Level              string
	Format             string
	SlowQueryThreshold time.Duration
}

type NewRelicConfig struct {
	LicenseKey                string
	AppLogForwardingEnabled   bool
	DistributedTracingEnabled bool
	DebugLogging              bool
}

type HealthChecksConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
	Checks   []string
}

// GatewaysConfig holds per-gateway credentials. Webhook secrets are required:
// signature verification is always on, there is no configured-off bypass.
type GatewaysConfig struct {
	Paystack GatewayConfig
	Stripe   GatewayConfig
}

type GatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
}

// PayoutConfig carries the platform's fixed payout bounds, fee rates and the
// twice-daily batch cutoff schedule.
type PayoutConfig struct {
	MinAmount      int64
	MaxAmount      int64
	GatewayFeeBps  int64
	PlatformFeeBps int64
	Timezone       string
	CutoffHours    []int
}

// Helper functions for parsing env vars
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return fallback
}

func getEnvIntSlice(key string, fallback []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fallback
		}
		out = append(out, i)
	}
	return out
}

func (c *ObservabilityConfig) GetLogLevel() string {
	if c.Logging.Level == "" {
		switch c.Environment {
		case "production":
			return "info"
		case "development":
			return "debug"
		default:
			return "info"
		}
	}
	return c.Logging.Level
}

func (c *ObservabilityConfig) IsProduction() bool {
	return c.Environment == "production"
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Primary: PrimaryConfig{
			Env: getEnv("TALARIA_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("TALARIA_DB_HOST", "localhost"),
			Port:            getEnvInt("TALARIA_DB_PORT", 5432),
			User:            getEnv("TALARIA_DB_USER", "talaria"),
			Password:        getEnv("TALARIA_DB_PASSWORD", ""),
			Name:            getEnv("TALARIA_DB_NAME", "talaria"),
			SSLMode:         getEnv("TALARIA_DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("TALARIA_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("TALARIA_DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvInt("TALARIA_DB_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("TALARIA_DB_CONN_MAX_IDLE_TIME", 60),
		},
		Server: ServerConfig{
			Port:               getEnv("TALARIA_SERVER_PORT", "8080"),
			ReadTimeout:        getEnvInt("TALARIA_SERVER_READ_TIMEOUT", 30),
			WriteTimeout:       getEnvInt("TALARIA_SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:        getEnvInt("TALARIA_SERVER_IDLE_TIMEOUT", 60),
			CORSAllowedOrigins: getEnvSlice("TALARIA_SERVER_CORS_ORIGINS", []string{"*"}),
			RateLimitPerMinute: getEnvInt64("TALARIA_SERVER_RATE_LIMIT_PER_MINUTE", 120),
		},
		Redis: RedisConfig{
			Address:      getEnv("TALARIA_REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnv("TALARIA_REDIS_PASSWORD", ""),
			DB:           getEnvInt("TALARIA_REDIS_DB", 0),
			PoolSize:     getEnvInt("TALARIA_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("TALARIA_REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvDuration("TALARIA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("TALARIA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("TALARIA_REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      getEnvDuration("TALARIA_REDIS_LOCK_TTL", 30*time.Second),
			KeyPrefix:    getEnv("TALARIA_REDIS_KEY_PREFIX", "talaria:"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("TALARIA_KAFKA_BROKERS", []string{"localhost:9092"}),
		},
		Observability: &ObservabilityConfig{
			ServiceName: "Talaria",
			Environment: getEnv("TALARIA_ENV", "development"),
			Logging: LoggingConfig{
				Level:              getEnv("TALARIA_LOG_LEVEL", "debug"),
				Format:             getEnv("TALARIA_LOG_FORMAT", "console"),
				SlowQueryThreshold: getEnvDuration("TALARIA_LOG_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
			},
			NewRelic: NewRelicConfig{
				LicenseKey:                getEnv("TALARIA_NEWRELIC_LICENSE_KEY", ""),
				AppLogForwardingEnabled:   getEnvBool("TALARIA_NEWRELIC_LOG_FORWARDING", true),
				DistributedTracingEnabled: getEnvBool("TALARIA_NEWRELIC_DISTRIBUTED_TRACING", true),
				DebugLogging:              getEnvBool("TALARIA_NEWRELIC_DEBUG", false),
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  getEnvBool("TALARIA_HEALTHCHECK_ENABLED", true),
				Interval: getEnvDuration("TALARIA_HEALTHCHECK_INTERVAL", 30*time.Second),
				Timeout:  getEnvDuration("TALARIA_HEALTHCHECK_TIMEOUT", 5*time.Second),
				Checks:   getEnvSlice("TALARIA_HEALTHCHECK_CHECKS", []string{"database", "redis"}),
			},
		},
		Gateways: GatewaysConfig{
			Paystack: GatewayConfig{
				SecretKey:     getEnv("TALARIA_PAYSTACK_SECRET_KEY", ""),
				WebhookSecret: getEnv("TALARIA_PAYSTACK_WEBHOOK_SECRET", ""),
				BaseURL:       getEnv("TALARIA_PAYSTACK_BASE_URL", "https://api.paystack.co"),
			},
			Stripe: GatewayConfig{
				SecretKey:     getEnv("TALARIA_STRIPE_SECRET_KEY", ""),
				WebhookSecret: getEnv("TALARIA_STRIPE_WEBHOOK_SECRET", ""),
				BaseURL:       getEnv("TALARIA_STRIPE_BASE_URL", "https://api.stripe.com"),
			},
		},
		Payout: PayoutConfig{
			MinAmount:      getEnvInt64("TALARIA_PAYOUT_MIN_AMOUNT", 10_00),
			MaxAmount:      getEnvInt64("TALARIA_PAYOUT_MAX_AMOUNT", 50_000_00),
			GatewayFeeBps:  getEnvInt64("TALARIA_PAYOUT_GATEWAY_FEE_BPS", 100),
			PlatformFeeBps: getEnvInt64("TALARIA_PAYOUT_PLATFORM_FEE_BPS", 50),
			Timezone:       getEnv("TALARIA_PAYOUT_TIMEZONE", "Africa/Accra"),
			CutoffHours:    getEnvIntSlice("TALARIA_PAYOUT_CUTOFF_HOURS", []int{8, 16}),
		},
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("TALARIA_DB_HOST is required")
	}
	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("TALARIA_DB_NAME is required")
	}
	if cfg.Payout.MinAmount <= 0 || cfg.Payout.MaxAmount < cfg.Payout.MinAmount {
		return nil, fmt.Errorf("invalid payout bounds: min=%d max=%d", cfg.Payout.MinAmount, cfg.Payout.MaxAmount)
	}
	if len(cfg.Payout.CutoffHours) == 0 {
		return nil, fmt.Errorf("TALARIA_PAYOUT_CUTOFF_HOURS must name at least one cutoff")
	}

	return cfg, nil
}
