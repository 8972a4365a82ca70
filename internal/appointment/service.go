package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
	"github.com/hackgods/tenant-booking-engine/internal/config"
	"github.com/hackgods/tenant-booking-engine/internal/metrics"
	"github.com/hackgods/tenant-booking-engine/internal/telemetry"
	redisclient "github.com/hackgods/tenant-booking-engine/internal/redis"
)

const (
	ReasonPaymentHoldExpired = "payment_hold_expired"
)

// PaymentChecker reports the status of a payment made for a booking.
type PaymentChecker interface {
	PaymentStatus(ctx context.Context, reference string) (PaymentStatus, error)
}

type Options struct {
	Payments PaymentChecker
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
	Now      func() time.Time
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	payments PaymentChecker
	cache    *catalogCache
	metrics  *metrics.Metrics
	log      zerolog.Logger
	cfg      config.Config
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		payments: opts.Payments,
		cache:    newCatalogCache(cfg.CatalogCacheTTL),
		metrics:  opts.Metrics,
		log:      opts.Logger.With().Str("component", "booking").Logger(),
		cfg:      cfg,
		now:      now,
	}
}

type BookingRequest struct {
	ServiceID        uuid.UUID
	ProfessionalID   uuid.UUID
	ClientID         uuid.UUID
	Start            time.Time
	PaymentReference string
	// CompanyID, when set, must own the service.
	CompanyID uuid.UUID
}

// CreateBooking admits a booking for one slot. Slots are recomputed under a
// per-slot lock and the store repeats the capacity checks inside the
// inserting transaction, so concurrent requests never overbook.
func (s *Service) CreateBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "appointment.create_booking",
		trace.WithAttributes(
			attribute.String("booking.service_id", req.ServiceID.String()),
			attribute.String("booking.professional_id", req.ProfessionalID.String()),
			attribute.String("booking.start", req.Start.UTC().Format(time.RFC3339)),
		),
	)
	defer span.End()

	started := time.Now()
	appt, err := s.createBooking(ctx, req)
	outcome := bookingOutcome(err)
	s.metrics.ObserveBooking(outcome, started)
	span.SetAttributes(attribute.String("booking.outcome", outcome))
	if appt != nil {
		span.SetAttributes(
			attribute.String("appointment.id", appt.ID.String()),
			attribute.String("appointment.status", string(appt.Status)),
		)
	}
	recordSpanError(span, err)
	return appt, err
}

const tracerName = "appointment"

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (s *Service) createBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	svc, err := s.repo.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if req.CompanyID != uuid.Nil && req.CompanyID != svc.CompanyID {
		return nil, ErrCompanyMismatch
	}

	pro, err := s.repo.GetProfessional(ctx, req.ProfessionalID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}
	if pro.CompanyID != svc.CompanyID || !svc.Qualifies(pro.ID) {
		return nil, ErrProfessionalNotQualified
	}

	var created *Appointment
	key := redisclient.SlotKey(svc.ID, pro.ID, req.Start)

	err = s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		now := s.now()

		cat, err := s.catalog(lockCtx, svc.CompanyID)
		if err != nil {
			return err
		}

		// Inside the critical section recompute the professional's slots
		slots, err := s.professionalSlots(lockCtx, cat, svc, pro, req.Start, now)
		if err != nil {
			if errors.Is(err, availability.ErrNoAvailabilityDefined) {
				return ErrSlotNoLongerAvailable
			}
			return err
		}
		slot, ok := availability.Find(slots, req.Start)
		if !ok {
			return ErrSlotNoLongerAvailable
		}

		active, err := s.repo.CountActiveForClient(lockCtx, req.ClientID, svc.ID, now)
		if err != nil {
			return fmt.Errorf("count active appointments: %w", err)
		}
		if svc.Policy.UserLimitReached(active) {
			return ErrCapacityExceeded
		}

		cooldownSince := svc.Policy.CooldownSince(now)
		if cooldownSince != nil {
			recent, err := s.repo.HasCreatedSince(lockCtx, req.ClientID, svc.ID, *cooldownSince, now)
			if err != nil {
				return fmt.Errorf("check cool-down: %w", err)
			}
			if recent {
				return ErrCooldownActive
			}
		}

		status, payment := s.initialStatus(lockCtx, svc, req.PaymentReference)
		appt := Appointment{
			ID:               uuid.New(),
			CompanyID:        svc.CompanyID,
			ProfessionalID:   pro.ID,
			ServiceID:        svc.ID,
			ClientID:         req.ClientID,
			Start:            slot.Start,
			End:              slot.End,
			Status:           status,
			PaymentStatus:    payment,
			PaymentReference: req.PaymentReference,
		}
		if status == StatusPending && svc.RequiresPayment() && payment != PaymentPaid && s.cfg.PendingHoldTTL > 0 {
			expires := now.Add(s.cfg.PendingHoldTTL)
			appt.HoldExpiresAt = &expires
		}

		created, err = s.repo.AdmitAppointment(lockCtx, appt, AdmissionGuard{
			SlotCapacity:   slot.Capacity,
			PerUserLimit:   svc.Policy.SimultaneousPerUser,
			CooldownSince:  cooldownSince,
			CatalogVersion: cat.version,
			Now:            now,
		})
		if err != nil {
			if errors.Is(err, ErrSlotNoLongerAvailable) || errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrCooldownActive) {
				return err
			}
			return fmt.Errorf("admit appointment: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.metrics.LockFailed()
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("service_id", created.ServiceID.String()).
		Str("professional_id", created.ProfessionalID.String()).
		Time("start", created.Start).
		Str("status", string(created.Status)).
		Msg("appointment created")

	return created, nil
}

// initialStatus confirms automatically only when nothing is owed.
func (s *Service) initialStatus(ctx context.Context, svc *ServiceOffering, reference string) (AppointmentStatus, PaymentStatus) {
	payment := PaymentUnpaid
	if svc.RequiresPayment() && reference != "" && s.payments != nil {
		st, err := s.payments.PaymentStatus(ctx, reference)
		if err != nil {
			s.log.Warn().Err(err).Str("payment_reference", reference).Msg("payment status lookup failed")
			st = PaymentPending
		}
		payment = st
	}

	if svc.Policy.Confirmation == availability.ConfirmAutomatic && (!svc.RequiresPayment() || payment == PaymentPaid) {
		return StatusConfirmed, payment
	}
	return StatusPending, payment
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrSlotNoLongerAvailable):
		return "slot_no_longer_available"
	case errors.Is(err, ErrSlotBeingBooked):
		return "slot_being_booked"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrCooldownActive):
		return "cooldown_active"
	default:
		return "error"
	}
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// ConfirmAppointment moves a pending appointment to confirmed
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}
	if appt.HoldExpiresAt != nil && appt.HoldExpiresAt.Before(s.now()) {
		if _, err := s.expire(ctx, *appt); err != nil {
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to expire appointment during confirm")
		}
		return nil, ErrInvalidStatusTransition
	}
	return s.TransitionStatus(ctx, id, StatusConfirmed, "")
}

// TransitionStatus applies one move of the appointment life cycle. The store
// update is conditional on the status read here, so a concurrent change
// surfaces as ErrInvalidStatusTransition.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, reason string) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to, reason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", string(appt.Status)).
		Str("to", string(to)).
		Msg("appointment status changed")
	return updated, nil
}

// ExpirePendingAppointments releases pending appointments whose payment hold
// ran out. Called by the worker periodically.
func (s *Service) ExpirePendingAppointments(ctx context.Context) (int, error) {
	candidates, err := s.repo.FindExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range candidates {
		ok, err := s.expire(ctx, appt)
		if err != nil {
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to expire appointment")
			continue
		}
		if ok {
			expired++
		}
	}
	s.metrics.Expired(expired)
	return expired, nil
}

func (s *Service) expire(ctx context.Context, appt Appointment) (bool, error) {
	_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusCancelledBySystem, ReasonPaymentHoldExpired)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// already moved on by someone else
			return false, nil
		}
		return false, err
	}
	return true, nil
}
