package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func TestInstrument_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := Instrument(context.Background(), "redis", "get", "GET")
	end(nil)
	_, end = Instrument(context.Background(), "redis", "set", "SET")
	end(errors.New("connection reset by peer"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "redis.get", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, "redis.set", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "redis", attrs["db.system"])
	assert.Equal(t, "get", attrs["db.operation"])

	assert.GreaterOrEqual(t, testutil.CollectAndCount(storeOpDuration, "storefront_store_operation_duration_seconds"), 2)
}

func TestInstrument_LogsSlowOperations(t *testing.T) {
	var buf bytes.Buffer
	SetSlowOpLogging(time.Nanosecond, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowOpLogging(0, nil) })

	_, end := Instrument(context.Background(), "postgresql", "purge", "DELETE")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow store operation")
	assert.Contains(t, buf.String(), `"operation":"purge"`)

	buf.Reset()
	SetSlowOpLogging(0, slog.New(slog.NewJSONHandler(&buf, nil)))
	_, end = Instrument(context.Background(), "postgresql", "get", "SELECT")
	end(nil)
	assert.Empty(t, buf.String())
}

func lazyPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:1/storefront?pool_max_conns=4")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPoolCollector(t *testing.T) {
	c := NewPoolCollector(lazyPool(t))

	assert.Equal(t, 7, testutil.CollectAndCount(c))

	expected := `
# HELP storefront_pg_pool_max_connections Configured connection limit
# TYPE storefront_pg_pool_max_connections gauge
storefront_pg_pool_max_connections 4
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "storefront_pg_pool_max_connections"))
}

func TestRegisterPoolMetrics_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()
	pool := lazyPool(t)

	require.NoError(t, RegisterPoolMetrics(reg, pool))
	require.NoError(t, RegisterPoolMetrics(reg, pool))
}
