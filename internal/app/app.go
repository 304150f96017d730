// Package app wires the storefront service together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/addressbook"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/currency"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/order"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/internal/storage/memory"
	pgstore "github.com/utafrali/storefront/internal/storage/postgres"
	redisstore "github.com/utafrali/storefront/internal/storage/redis"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// ServiceName identifies the service in logs, traces and events.
const ServiceName = "storefront"

// purgeInterval is how often stale sessions are deleted.
const purgeInterval = time.Hour

// stalePurger is a session store backend without native key expiry.
type stalePurger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// App holds the wired dependencies of the storefront service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	rdb        *redis.Client
	pool       *pgxpool.Pool
	purger     stalePurger
	producer   *pkgkafka.Producer
	shutdownTP tracing.ShutdownFunc
	handler    http.Handler
	httpServer *http.Server
}

// NewApp creates the application, connecting to the configured backends.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg

	shutdownTP, err := tracing.Init(ctx, cfg.Tracing(ServiceName))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTP = shutdownTP

	healthHandler := health.NewHandler()

	stores, err := a.openStore(ctx, healthHandler)
	if err != nil {
		return err
	}

	// Order placement must not be retried; a repeated POST could create a
	// second order.
	orderClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.NoRetryConfig()),
		httpclient.DefaultCircuitBreakerConfig("order-service"),
		a.logger,
	)

	deps := service.Dependencies{
		Stores:       stores,
		BaseCurrency: cfg.BaseCurrency,
	}

	var orderEvents order.EventPublisher
	if cfg.EventsEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), a.logger)
		events := event.NewProducer(a.producer, a.logger)
		orderEvents = events
		deps.Events = events
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		a.logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	deps.Orders = order.NewSubmitter(orderClient, cfg.OrderServiceURL, cfg.DefaultCountry, orderEvents, a.logger)

	if cfg.UserServiceURL != "" {
		deps.Addresses = addressbook.NewClient(a.breakerClient("user-service"), cfg.UserServiceURL)
	}
	if cfg.ExchangeRateURL != "" {
		deps.Rates = currency.NewRateClient(a.breakerClient("exchange-rate"), cfg.ExchangeRateURL)
	}

	svc := service.NewSessionService(deps, a.logger)
	a.logger.Info("readiness checks registered", slog.Any("checks", healthHandler.Names()))

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSOrigins
	cors.AllowAnyOrigin = cfg.IsDevelopment()

	a.handler = handler.NewRouter(svc, healthHandler, handler.RouterConfig{
		CORS:           cors,
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, a.logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return nil
}

func (a *App) breakerClient(name string) *httpclient.CircuitBreakerClient {
	return httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig(name),
		a.logger,
	)
}

// openStore connects the configured session store backend and registers its
// readiness check.
func (a *App) openStore(ctx context.Context, hh *health.Handler) (storage.Factory, error) {
	cfg := a.cfg
	database.SetSlowOpLogging(cfg.SlowStoreOp, a.logger)

	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.Redis(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		hh.Register("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		return redisstore.NewFactory(rdb, cfg.SessionTTL()), nil

	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		if err := database.RunMigrations(ctx, pool, pgstore.Migrations, "migrations", a.logger); err != nil {
			return nil, fmt.Errorf("migrate session store: %w", err)
		}
		hh.Register("postgres", pool.Ping)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool); err != nil {
			a.logger.Warn("postgres pool metrics not registered", slog.String("error", err.Error()))
		}
		factory := pgstore.NewFactory(pool)
		a.purger = factory
		return factory, nil

	default:
		a.logger.Warn("using in-memory session store; state is lost on restart")
		registry := memory.NewRegistry()
		a.purger = registry
		return registry, nil
	}
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run starts the HTTP server and background jobs and blocks until ctx is
// canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	jobsCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	if a.purger != nil && a.cfg.SessionTTL() > 0 {
		go a.purgeLoop(jobsCtx)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopJobs()
	if err := a.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// purgeLoop deletes sessions idle for longer than the session TTL.
func (a *App) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-a.cfg.SessionTTL())
			n, err := a.purger.PurgeStale(ctx, cutoff)
			if err != nil {
				a.logger.Error("failed to purge stale sessions", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				a.logger.Info("purged stale session keys", slog.Int64("rows", n))
			}
		}
	}
}

// Shutdown gracefully stops the server and closes every connection.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if a.httpServer != nil {
		if serr := a.httpServer.Shutdown(shutdownCtx); serr != nil {
			a.logger.Error("http server shutdown error", slog.String("error", serr.Error()))
			err = serr
		}
	}
	a.close()

	a.logger.Info("application shutdown complete")
	return err
}

func (a *App) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.shutdownTP != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTP(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
		a.shutdownTP = nil
	}
}
