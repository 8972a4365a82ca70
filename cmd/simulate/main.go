package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/tenant-booking-engine/internal/config"
	"github.com/hackgods/tenant-booking-engine/internal/db"
	"github.com/hackgods/tenant-booking-engine/internal/logger"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	RaceClients  int
	BookingRatio float64
	ConfirmRatio float64
	ReadRatio    float64
	TargetLimit  int
	DaysAhead    int
	PostgresDSN  string
}

// target is one bookable (service, professional) pair.
type target struct {
	CompanyID      uuid.UUID
	ServiceID      uuid.UUID
	ProfessionalID uuid.UUID
}

type slot struct {
	Start             time.Time `json:"start"`
	RemainingCapacity int       `json:"remaining_capacity"`
}

type created struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

type DataPool struct {
	Targets      []target
	mu           sync.RWMutex
	appointments []created
}

func (dp *DataPool) AddAppointment(c created) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, c)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (created, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return created{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type Metrics struct {
	Booking   OperationMetrics
	Confirm   OperationMetrics
	ListSlots OperationMetrics
}

type raceResult struct {
	Capacity int
	Winners  int64
	Losers   int64
	Errors   int64
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     zerolog.Logger
	metrics Metrics
	race    raceResult
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load base config")
	}
	log := logger.New(baseCfg.Env, baseCfg.LogLevel, "simulate")

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("race_clients", cfg.RaceClients).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().Int("targets", len(dataPool.Targets)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	if err := sim.Race(context.Background()); err != nil {
		log.Error().Err(err).Msg("race skipped")
	}
	sim.Run()
	sim.PrintReport()

	if sim.race.Capacity > 0 && int(sim.race.Winners) > sim.race.Capacity {
		log.Fatal().
			Int64("winners", sim.race.Winners).
			Int("capacity", sim.race.Capacity).
			Msg("overbooking detected")
	}
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		RaceClients:  getInt("SIM_RACE_CLIENTS", 50),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		TargetLimit:  getInt("SIM_TARGET_LIMIT", 200),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 14),
		PostgresDSN:  base.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	rows, err := pool.Query(ctx, `
		SELECT s.company_id, s.id, sp.professional_id
		FROM services s
		JOIN service_professionals sp ON sp.service_id = s.id
		ORDER BY s.company_id, s.id
		LIMIT $1
	`, cfg.TargetLimit)
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}
	defer rows.Close()

	dataPool := &DataPool{}
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.CompanyID, &t.ServiceID, &t.ProfessionalID); err != nil {
			return nil, err
		}
		dataPool.Targets = append(dataPool.Targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dataPool.Targets) == 0 {
		return nil, fmt.Errorf("no bookable services found, run the seed first")
	}
	return dataPool, nil
}

// Race fires RaceClients simultaneous bookings at one slot. At most the
// slot's remaining capacity may win.
func (s *Simulator) Race(ctx context.Context) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var (
		t     target
		chose slot
		found bool
	)
	for attempt := 0; attempt < 20 && !found; attempt++ {
		t = s.pool.Targets[rng.Intn(len(s.pool.Targets))]
		slots, err := s.listSlots(ctx, t, s.randomDate(rng))
		if err != nil {
			return err
		}
		if len(slots) > 0 {
			chose, found = slots[rng.Intn(len(slots))], true
		}
	}
	if !found {
		return fmt.Errorf("no open slot found to race on")
	}

	s.race.Capacity = chose.RemainingCapacity
	s.log.Info().
		Str("service_id", t.ServiceID.String()).
		Time("start", chose.Start).
		Int("capacity", chose.RemainingCapacity).
		Msg("racing clients for one slot")

	var wg sync.WaitGroup
	gate := make(chan struct{})
	for i := 0; i < s.config.RaceClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			status, _, err := s.book(ctx, t, chose.Start, uuid.New())
			switch {
			case err != nil:
				atomic.AddInt64(&s.race.Errors, 1)
			case status == http.StatusCreated:
				atomic.AddInt64(&s.race.Winners, 1)
			case status == http.StatusConflict:
				atomic.AddInt64(&s.race.Losers, 1)
			default:
				atomic.AddInt64(&s.race.Errors, 1)
			}
		}()
	}
	close(gate)
	wg.Wait()
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			default:
				s.doListSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	slots, err := s.listSlots(ctx, t, s.randomDate(rng))
	if err != nil || len(slots) == 0 {
		return
	}

	start := time.Now()
	status, id, err := s.book(ctx, t, slots[rng.Intn(len(slots))].Start, uuid.New())
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success {
		s.pool.AddAppointment(created{ID: id, CompanyID: t.CompanyID})
	}
	conflict := status == http.StatusConflict || status == http.StatusUnprocessableEntity
	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/appointments/%s/confirm", s.config.APIBaseURL, appt.ID), nil)
	setIdentity(req, appt.CompanyID, uuid.New(), "operator")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}
	s.metrics.Confirm.Record(latency, success, conflict)
}

func (s *Simulator) doListSlots(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]

	start := time.Now()
	_, err := s.listSlots(ctx, t, s.randomDate(rng))
	s.metrics.ListSlots.Record(time.Since(start), err == nil, false)
}

func (s *Simulator) listSlots(ctx context.Context, t target, date string) ([]slot, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/slots?service_id=%s&professional_id=%s&date=%s", s.config.APIBaseURL, t.ServiceID, t.ProfessionalID, date), nil)
	setIdentity(req, t.CompanyID, uuid.New(), "client")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list slots: status %d", resp.StatusCode)
	}
	var body struct {
		Slots []slot `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Slots, nil
}

func (s *Simulator) book(ctx context.Context, t target, start time.Time, clientID uuid.UUID) (int, uuid.UUID, error) {
	body, _ := json.Marshal(map[string]any{
		"service_id":      t.ServiceID,
		"professional_id": t.ProfessionalID,
		"start":           start,
	})

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	setIdentity(req, t.CompanyID, clientID, "client")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, uuid.Nil, err
	}
	defer resp.Body.Close()

	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	if resp.StatusCode == http.StatusCreated {
		_ = json.NewDecoder(resp.Body).Decode(&appt)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, appt.ID, nil
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")
}

func setIdentity(req *http.Request, companyID, actorID uuid.UUID, role string) {
	req.Header.Set("X-Company-Id", companyID.String())
	req.Header.Set("X-Actor-Id", actorID.String())
	req.Header.Set("X-Role", role)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	if s.race.Capacity > 0 {
		fmt.Println("Slot race:")
		fmt.Printf("  Clients: %d  Capacity: %d\n", s.config.RaceClients, s.race.Capacity)
		fmt.Printf("  Winners: %d  Rejected: %d  Errors: %d\n", s.race.Winners, s.race.Losers, s.race.Errors)
		fmt.Println()
	}

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("List slots", &s.metrics.ListSlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
