// Package config loads the storefront service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/currency"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Session store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort       int           `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"STOREFRONT_REQUEST_TIMEOUT" envDefault:"30s"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Session store
	StoreBackend    string        `env:"STORE_BACKEND" envDefault:"memory"`
	SessionTTLHours int           `env:"SESSION_TTL_HOURS" envDefault:"720"`
	SlowStoreOp     time.Duration `env:"STORE_SLOW_OP_THRESHOLD" envDefault:"250ms"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`

	// Downstream services
	OrderServiceURL string `env:"ORDER_SERVICE_URL" envDefault:"http://localhost:8004"`
	UserServiceURL  string `env:"USER_SERVICE_URL" envDefault:""`
	ExchangeRateURL string `env:"EXCHANGE_RATE_URL" envDefault:""`
	BaseCurrency    string `env:"BASE_CURRENCY" envDefault:"USD"`
	DefaultCountry  string `env:"DEFAULT_COUNTRY" envDefault:"SE"`

	// Kafka
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	settings pkgconfig.Settings
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	return load(func(cfg *Config) (pkgconfig.Settings, error) { return pkgconfig.Load(cfg) })
}

// LoadFrom reads configuration from vars instead of the environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(func(cfg *Config) (pkgconfig.Settings, error) { return pkgconfig.LoadFrom(cfg, vars) })
}

func load(parse func(*Config) (pkgconfig.Settings, error)) (*Config, error) {
	cfg := &Config{}
	settings, err := parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg.settings = settings
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.BaseCurrency = strings.ToUpper(strings.TrimSpace(cfg.BaseCurrency))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants and reports every violation.
func (c *Config) validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must not be negative: %v", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be at least 1: %d", c.RateLimitBurst))
	}
	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres: got %q", c.StoreBackend))
	}
	if c.SessionTTLHours < 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL_HOURS must not be negative: %d", c.SessionTTLHours))
	}
	if c.SlowStoreOp < 0 {
		errs = append(errs, fmt.Errorf("STORE_SLOW_OP_THRESHOLD must not be negative: %s", c.SlowStoreOp))
	}
	if c.StoreBackend == BackendRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
	}
	if c.StoreBackend == BackendPostgres && (c.PostgresHost == "" || c.PostgresDB == "") {
		errs = append(errs, errors.New("POSTGRES_HOST and POSTGRES_DB are required for the postgres backend"))
	}
	if _, ok := currency.Lookup(c.BaseCurrency); !ok {
		errs = append(errs, fmt.Errorf("unsupported BASE_CURRENCY %q", c.BaseCurrency))
	}
	for name, raw := range map[string]string{
		"ORDER_SERVICE_URL": c.OrderServiceURL,
		"USER_SERVICE_URL":  c.UserServiceURL,
		"EXCHANGE_RATE_URL": c.ExchangeRateURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL: %q", name, raw))
		}
	}
	if c.EventsEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENTS_ENABLED is set"))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0: %v", c.OTELSampleRate))
	}

	return errors.Join(errs...)
}

// SessionTTL is how long an untouched session is kept. Zero keeps it forever.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// Settings returns the resolved environment with secrets masked.
func (c *Config) Settings() pkgconfig.Settings {
	return c.settings
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the connection settings for the postgres backend.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSLMode,
		MaxConns: c.PostgresMaxConns,
	}
}

// Redis returns the connection settings for the redis backend.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:         c.RedisAddr,
		Password:     c.RedisPass,
		DB:           c.RedisDB,
		PoolSize:     c.RedisPoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing(serviceName string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}
