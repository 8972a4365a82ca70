package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackgods/tenant-booking-engine/internal/config"
	"github.com/hackgods/tenant-booking-engine/internal/db"
	"github.com/hackgods/tenant-booking-engine/internal/logger"
	"github.com/hackgods/tenant-booking-engine/internal/metrics"
	"github.com/hackgods/tenant-booking-engine/internal/outbox"
	"github.com/hackgods/tenant-booking-engine/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel, "outbox-relay")
	log.Info().Str("env", cfg.Env).Str("brokers", cfg.KafkaBrokers).Msg("outbox-relay starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, cfg, "outbox-relay")
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry setup error")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	publisher := outbox.NewPublisher(pgPool, outbox.NewRepository(pgPool), log,
		metrics.New(prometheus.DefaultRegisterer), outbox.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			PollEvery: cfg.OutboxPollInterval,
			BatchSize: cfg.OutboxBatchSize,
		})

	publisher.Run(rootCtx)
	log.Info().Msg("outbox-relay stopped")
}
