package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/tenant-booking-engine/internal/appointment"
	"github.com/hackgods/tenant-booking-engine/internal/availability"
	"github.com/hackgods/tenant-booking-engine/internal/config"
	"github.com/hackgods/tenant-booking-engine/internal/db"
	"github.com/hackgods/tenant-booking-engine/internal/logger"
	"github.com/hackgods/tenant-booking-engine/internal/outbox"
)

// demoCompanyID is stable so the simulator and local tooling can find it.
var demoCompanyID = uuid.MustParse("0b1c0e5a-6d7e-4f30-9a51-3c2f6d8e9a10")

var serviceNames = []string{
	"Consultation",
	"Follow-up",
	"Haircut",
	"Massage",
	"Physiotherapy",
	"Dental cleaning",
	"Nutrition review",
	"Vaccination",
}

var timezones = []string{"UTC", "America/Sao_Paulo", "Europe/Lisbon", "America/New_York"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(cfg.Env, cfg.LogLevel, "seed")
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	repo := appointment.NewPgRepository(pool, outbox.NewRepository(pool))
	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	companies := getCount("SEED_COMPANIES", 5)
	for i := 0; i < companies; i++ {
		id := uuid.New()
		if i == 0 {
			id = demoCompanyID
		}
		s, err := seedCompany(ctx, pool, repo, faker, id)
		if err != nil {
			if db.IsUniqueViolation(err) {
				log.Info().Str("company_id", id.String()).Msg("company already seeded, skipping")
				continue
			}
			log.Fatal().Err(err).Msg("seed company")
		}
		log.Info().
			Str("company_id", id.String()).
			Int("professionals", s.professionals).
			Int("services", s.services).
			Msg("company seeded")
	}

	log.Info().Msg("seed complete")
}

type seeded struct {
	professionals int
	services      int
}

func seedCompany(ctx context.Context, pool *pgxpool.Pool, repo *appointment.PgRepository, faker *gofakeit.Faker, companyID uuid.UUID) (seeded, error) {
	var out seeded
	tz := timezones[faker.Number(0, len(timezones)-1)]
	if companyID == demoCompanyID {
		tz = "UTC"
	}

	if _, err := pool.Exec(ctx, `
		INSERT INTO companies (id, name, timezone) VALUES ($1, $2, $3)
	`, companyID, faker.Company(), tz); err != nil {
		return out, err
	}

	tpl, err := repo.SaveTemplate(ctx, availability.WeekdayTemplate(companyID, "Comercial", availability.BusinessDays,
		availability.TimeInterval{Start: availability.NewTimeOfDay(9, 0), End: availability.NewTimeOfDay(12, 0)},
		availability.TimeInterval{Start: availability.NewTimeOfDay(13, 0), End: availability.NewTimeOfDay(18, 0)},
	))
	if err != nil {
		return out, fmt.Errorf("save template: %w", err)
	}

	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE companies SET default_template_id = $2 WHERE id = $1`, companyID, tpl.ID); err != nil {
			return err
		}

		pros := make([]uuid.UUID, faker.Number(2, 6))
		for i := range pros {
			pros[i] = uuid.New()
			if _, err := tx.Exec(ctx, `
				INSERT INTO professionals (id, company_id, name) VALUES ($1, $2, $3)
			`, pros[i], companyID, faker.Name()); err != nil {
				return err
			}
		}
		out.professionals = len(pros)

		for _, name := range pickServices(faker) {
			policy := randomPolicy(faker)
			serviceID := uuid.New()
			var fee int64
			if faker.Bool() {
				fee = int64(faker.Number(20, 200)) * 100
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO services (id, company_id, name, fee_cents, duration_minutes, simultaneous_per_user,
				                      simultaneous_per_slot, automatic_per_slot, interval_between_slots_minutes,
				                      block_after_24_hours, confirmation)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, serviceID, companyID, name, fee, policy.DurationMinutes, policy.SimultaneousPerUser,
				policy.SimultaneousPerSlot, policy.AutomaticPerSlot, policy.IntervalBetweenSlotsMinutes,
				policy.BlockAfter24Hours, string(policy.Confirmation)); err != nil {
				return err
			}

			for _, proID := range pros {
				if faker.Number(0, 3) == 0 {
					continue
				}
				if _, err := tx.Exec(ctx, `
					INSERT INTO service_professionals (service_id, professional_id) VALUES ($1, $2)
				`, serviceID, proID); err != nil {
					return err
				}
			}
			out.services++
		}
		return nil
	})
	return out, err
}

func pickServices(faker *gofakeit.Faker) []string {
	names := append([]string(nil), serviceNames...)
	faker.ShuffleStrings(names)
	return names[:faker.Number(2, 4)]
}

func randomPolicy(faker *gofakeit.Faker) availability.CapacityPolicy {
	durations := []int{30, 45, 60, 90}
	p := availability.CapacityPolicy{
		DurationMinutes:             durations[faker.Number(0, len(durations)-1)],
		SimultaneousPerUser:         faker.Number(1, 2),
		SimultaneousPerSlot:         faker.Number(1, 3),
		AutomaticPerSlot:            faker.Number(0, 4) == 0,
		IntervalBetweenSlotsMinutes: []int{0, 0, 15}[faker.Number(0, 2)],
		BlockAfter24Hours:           faker.Number(0, 4) == 0,
		Confirmation:                availability.ConfirmAutomatic,
	}
	if faker.Number(0, 3) == 0 {
		p.Confirmation = availability.ConfirmManual
	}
	return p
}

func getCount(key string, def int) int {
	var n int
	if _, err := fmt.Sscanf(os.Getenv(key), "%d", &n); err != nil || n <= 0 {
		return def
	}
	return n
}
