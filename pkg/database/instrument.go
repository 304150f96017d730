package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/storefront/pkg/database"

var storeOpDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "storefront_store_operation_duration_seconds",
		Help:    "Duration of session store operations",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	},
	[]string{"system", "operation", "result"},
)

var slowOps struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowOpLogging logs store operations slower than threshold as warnings.
// A zero threshold turns it off.
func SetSlowOpLogging(threshold time.Duration, logger *slog.Logger) {
	slowOps.mu.Lock()
	defer slowOps.mu.Unlock()
	slowOps.threshold = threshold
	slowOps.logger = logger
}

func slowOpConfig() (time.Duration, *slog.Logger) {
	slowOps.mu.RLock()
	defer slowOps.mu.RUnlock()
	return slowOps.threshold, slowOps.logger
}

// Instrument starts a client span for one store operation and returns the
// function that ends it. Callers pass nil to the end function for a key miss.
//
//	ctx, end := database.Instrument(ctx, "redis", "get", "GET")
//	data, err := client.Get(ctx, key).Bytes()
//	end(err)
func Instrument(ctx context.Context, system, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, system+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		storeOpDuration.WithLabelValues(system, operation, result).Observe(elapsed.Seconds())

		if threshold, logger := slowOpConfig(); threshold > 0 && logger != nil && elapsed >= threshold {
			logger.WarnContext(ctx, "slow store operation",
				slog.String("system", system),
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
				slog.String("result", result),
			)
		}
	}
}
