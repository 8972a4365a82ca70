package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackgods/tenant-booking-engine/internal/appointment"
	"github.com/hackgods/tenant-booking-engine/internal/config"
	"github.com/hackgods/tenant-booking-engine/internal/db"
	"github.com/hackgods/tenant-booking-engine/internal/logger"
	"github.com/hackgods/tenant-booking-engine/internal/metrics"
	"github.com/hackgods/tenant-booking-engine/internal/outbox"
	redisclient "github.com/hackgods/tenant-booking-engine/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel, "expiry-worker")
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Expiry never books, so the process-local locker is enough here.
	repo := appointment.NewPgRepository(pgPool, outbox.NewRepository(pgPool))
	svc := appointment.NewService(repo, redisclient.NewLocalLocker(), cfg, appointment.Options{
		Metrics: metrics.New(prometheus.DefaultRegisterer),
		Logger:  log,
	})

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.ExpirePendingAppointments(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("expiry run error")
		return
	}
	log.Info().Int("expired", n).Dur("took", time.Since(start)).Msg("expiry run complete")
}
