package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
	"github.com/hackgods/tenant-booking-engine/internal/config"
	"github.com/hackgods/tenant-booking-engine/internal/logger"
	"github.com/hackgods/tenant-booking-engine/internal/metrics"
	redisclient "github.com/hackgods/tenant-booking-engine/internal/redis"
)

// Monday 2031-03-03 07:00 UTC
var t0 = time.Date(2031, 3, 3, 7, 0, 0, 0, time.UTC)

// wednesday is the Wednesday of t0's week.
var wednesday = time.Date(2031, 3, 5, 0, 0, 0, 0, time.UTC)

func at(day time.Time, h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type stubPayments map[string]PaymentStatus

func (s stubPayments) PaymentStatus(_ context.Context, reference string) (PaymentStatus, error) {
	st, ok := s[reference]
	if !ok {
		return "", errors.New("unknown payment reference")
	}
	return st, nil
}

type fixture struct {
	repo     *MemoryRepository
	svc      *Service
	clock    *testClock
	company  Company
	pro      Professional
	service  ServiceOffering
	template availability.Template
}

func comercialTemplate(companyID uuid.UUID) availability.Template {
	tpl := availability.WeekdayTemplate(companyID, "Comercial", availability.BusinessDays,
		availability.TimeInterval{Start: availability.NewTimeOfDay(9, 0), End: availability.NewTimeOfDay(18, 0)})
	tpl.ID = uuid.New()
	return tpl
}

func hourlyPolicy() availability.CapacityPolicy {
	return availability.CapacityPolicy{
		DurationMinutes:     60,
		SimultaneousPerUser: 1,
		SimultaneousPerSlot: 1,
		Confirmation:        availability.ConfirmAutomatic,
	}
}

// newFixture builds a company with the "Comercial" template as its default,
// one professional and one hourly service. mutate may adjust the service
// before it is stored.
func newFixture(t *testing.T, mutate func(*ServiceOffering)) *fixture {
	t.Helper()

	clock := &testClock{t: t0}
	repo := NewMemoryRepository()
	repo.SetClock(clock.Now)

	company := Company{ID: uuid.New(), Name: "Acme Clinic", Timezone: "UTC"}
	tpl := comercialTemplate(company.ID)
	company.DefaultTemplateID = &tpl.ID
	repo.AddCompany(company)
	if _, err := repo.SaveTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("save template: %v", err)
	}

	pro := Professional{ID: uuid.New(), CompanyID: company.ID, Name: "Dr. Ana"}
	repo.AddProfessional(pro)

	service := ServiceOffering{
		ID:              uuid.New(),
		CompanyID:       company.ID,
		Name:            "Consultation",
		Policy:          hourlyPolicy(),
		ProfessionalIDs: []uuid.UUID{pro.ID},
	}
	if mutate != nil {
		mutate(&service)
	}
	repo.AddService(service)

	cfg := config.Config{PendingHoldTTL: 15 * time.Minute, CatalogCacheTTL: time.Minute}
	svc := NewService(repo, redisclient.NewLocalLocker(), cfg, Options{
		Payments: stubPayments{"pi_paid": PaymentPaid, "pi_open": PaymentPending},
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Logger:   logger.Nop(),
		Now:      clock.Now,
	})

	return &fixture{
		repo:     repo,
		svc:      svc,
		clock:    clock,
		company:  company,
		pro:      pro,
		service:  service,
		template: tpl,
	}
}

func (f *fixture) book(t *testing.T, clientID uuid.UUID, start time.Time) (*Appointment, error) {
	t.Helper()
	return f.svc.CreateBooking(context.Background(), BookingRequest{
		ServiceID:      f.service.ID,
		ProfessionalID: f.pro.ID,
		ClientID:       clientID,
		Start:          start,
	})
}

func (f *fixture) slotStarts(t *testing.T, day time.Time) []string {
	t.Helper()
	list, err := f.svc.ListSlots(context.Background(), SlotQuery{ServiceID: f.service.ID, ProfessionalID: &f.pro.ID, Date: day})
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	out := make([]string, 0, len(list.Slots))
	for _, s := range list.Slots {
		out = append(out, s.Start.Format("15:04"))
	}
	return out
}
