package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/tenant-booking-engine/internal/api"
	"github.com/hackgods/tenant-booking-engine/internal/appointment"
	"github.com/hackgods/tenant-booking-engine/internal/config"
	"github.com/hackgods/tenant-booking-engine/internal/db"
	"github.com/hackgods/tenant-booking-engine/internal/logger"
	"github.com/hackgods/tenant-booking-engine/internal/metrics"
	"github.com/hackgods/tenant-booking-engine/internal/outbox"
	"github.com/hackgods/tenant-booking-engine/internal/payment"
	redisclient "github.com/hackgods/tenant-booking-engine/internal/redis"
	"github.com/hackgods/tenant-booking-engine/internal/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel, "api-server")
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, cfg, "api-server")
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry setup error")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		log.Fatal().Err(err).Msg("migration error")
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	var payments appointment.PaymentChecker = payment.Static(appointment.PaymentPending)
	if cfg.StripeSecretKey != "" {
		payments = payment.NewStripeChecker(cfg.StripeSecretKey)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, paid bookings stay pending until confirmed")
	}

	repo := appointment.NewPgRepository(pgPool, outbox.NewRepository(pgPool))
	locker := redisclient.NewRedisSlotLocker(rdb, redisclient.LockOptionsFrom(cfg))
	svc := appointment.NewService(repo, locker, cfg, appointment.Options{
		Payments: payments,
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
		Logger:   log,
	})

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Logger:         log,
		PostgresCheck:  pgPool.Ping,
		RedisCheck:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		MetricsHandler: promhttp.Handler(),
		BookingRate:    cfg.BookingRateLimit,
		BookingBurst:   cfg.BookingRateBurst,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("http server error")
	}

	log.Info().Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
