package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, "SE", cfg.DefaultCountry)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowStoreOp)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 20.0, cfg.RateLimitRPS)
	assert.Equal(t, 40, cfg.RateLimitBurst)
	assert.False(t, cfg.EventsEnabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"STORE_BACKEND":        "Redis",
		"REDIS_ADDR":           "redis.internal:6380",
		"BASE_CURRENCY":        "eur",
		"SESSION_TTL_HOURS":    "24",
		"KAFKA_BROKERS":        "k1:9092,k2:9092",
		"EVENTS_ENABLED":       "true",
		"CORS_ALLOWED_ORIGINS": "https://shop.example,https://m.shop.example",
	})

	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, "EUR", cfg.BaseCurrency)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "redis.internal:6380", cfg.Redis().Addr)
	assert.Len(t, cfg.CORSOrigins, 2)
	assert.Equal(t, 10, cfg.Redis().PoolSize)

	for _, st := range cfg.Settings() {
		switch st.Key {
		case "POSTGRES_PASSWORD":
			assert.Equal(t, "***", st.Value)
		case "STORE_BACKEND":
			assert.Equal(t, "Redis", st.Value)
			assert.False(t, st.Default)
		}
	}
	assert.NotEmpty(t, cfg.Settings())
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{name: "port", vars: map[string]string{"STOREFRONT_HTTP_PORT": "0"}, wantErr: "invalid HTTP port"},
		{name: "rate limit", vars: map[string]string{"RATE_LIMIT_RPS": "-1"}, wantErr: "RATE_LIMIT_RPS"},
		{name: "rate limit burst", vars: map[string]string{"RATE_LIMIT_BURST": "0"}, wantErr: "RATE_LIMIT_BURST"},
		{name: "backend", vars: map[string]string{"STORE_BACKEND": "mongo"}, wantErr: "STORE_BACKEND"},
		{name: "slow op threshold", vars: map[string]string{"STORE_SLOW_OP_THRESHOLD": "-1s"}, wantErr: "STORE_SLOW_OP_THRESHOLD"},
		{name: "ttl", vars: map[string]string{"SESSION_TTL_HOURS": "-1"}, wantErr: "SESSION_TTL_HOURS"},
		{name: "currency", vars: map[string]string{"BASE_CURRENCY": "XYZ"}, wantErr: "BASE_CURRENCY"},
		{name: "order url", vars: map[string]string{"ORDER_SERVICE_URL": "not a url"}, wantErr: "ORDER_SERVICE_URL"},
		{name: "sample rate", vars: map[string]string{"OTEL_SAMPLE_RATE": "2.0"}, wantErr: "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
		{name: "unparsable", vars: map[string]string{"REDIS_DB": "zero"}, wantErr: "load storefront config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(tt.vars)
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFrom_ReportsAllViolations(t *testing.T) {
	_, err := LoadFrom(map[string]string{
		"STOREFRONT_HTTP_PORT": "70000",
		"STORE_BACKEND":        "file",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "STORE_BACKEND")
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STOREFRONT_HTTP_PORT", "9099")
	t.Setenv("DEFAULT_COUNTRY", "NO")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9099, cfg.HTTPPort)
	assert.Equal(t, "NO", cfg.DefaultCountry)
}

func TestConfig_Derived(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"POSTGRES_HOST":    "db",
		"POSTGRES_DB":      "shop",
		"OTEL_ENABLED":     "true",
		"OTEL_SAMPLE_RATE": "0.5",
	})
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "postgres://storefront:storefront@db:5432/shop?sslmode=disable", pg.DSN())

	tc := cfg.Tracing("storefront")
	assert.True(t, tc.Enabled)
	assert.Equal(t, 0.5, tc.SampleRate)
	assert.Equal(t, "storefront", tc.ServiceName)
}
