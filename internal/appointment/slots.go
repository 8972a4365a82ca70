package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
	"github.com/hackgods/tenant-booking-engine/internal/telemetry"
)

const ReasonNoAvailabilityDefined = "no_availability_defined"

type SlotQuery struct {
	ServiceID      uuid.UUID
	ProfessionalID *uuid.UUID
	// Date is read as a calendar date in the company time zone.
	Date time.Time
	// CompanyID, when set, must own the service.
	CompanyID uuid.UUID
}

type SlotList struct {
	ServiceID      uuid.UUID           `json:"service_id"`
	ProfessionalID *uuid.UUID          `json:"professional_id,omitempty"`
	Date           string              `json:"date"`
	Timezone       string              `json:"timezone"`
	Slots          []availability.Slot `json:"slots"`
	Reason         string              `json:"reason,omitempty"`
}

// ListSlots returns the bookable slots of a service on one day, for one
// professional or aggregated over every qualified professional. A missing
// availability template is not an error: the list is empty and Reason says
// why.
func (s *Service) ListSlots(ctx context.Context, q SlotQuery) (*SlotList, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "appointment.list_slots",
		trace.WithAttributes(
			attribute.String("slots.service_id", q.ServiceID.String()),
			attribute.String("slots.date", q.Date.Format(time.DateOnly)),
			attribute.Bool("slots.aggregated", q.ProfessionalID == nil),
		),
	)
	defer span.End()

	started := time.Now()
	list, err := s.listSlots(ctx, q)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case list.Reason != "":
		outcome = "no_availability"
	}
	s.metrics.ObserveSlotQuery(outcome, started)
	span.SetAttributes(attribute.String("slots.outcome", outcome))
	if list != nil {
		span.SetAttributes(attribute.Int("slots.count", len(list.Slots)))
	}
	recordSpanError(span, err)
	return list, err
}

func (s *Service) listSlots(ctx context.Context, q SlotQuery) (*SlotList, error) {
	svc, err := s.repo.GetService(ctx, q.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if q.CompanyID != uuid.Nil && q.CompanyID != svc.CompanyID {
		return nil, ErrCompanyMismatch
	}

	cat, err := s.catalog(ctx, svc.CompanyID)
	if err != nil {
		return nil, err
	}

	y, m, d := q.Date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, cat.loc)
	now := s.now()

	list := &SlotList{
		ServiceID:      svc.ID,
		ProfessionalID: q.ProfessionalID,
		Date:           day.Format("2006-01-02"),
		Timezone:       cat.loc.String(),
		Slots:          []availability.Slot{},
	}

	professionals := svc.ProfessionalIDs
	if q.ProfessionalID != nil {
		if !svc.Qualifies(*q.ProfessionalID) {
			return nil, ErrProfessionalNotQualified
		}
		professionals = []uuid.UUID{*q.ProfessionalID}
	}

	var occupancies [][]availability.Slot
	for _, proID := range professionals {
		pro, err := s.repo.GetProfessional(ctx, proID)
		if err != nil {
			if errors.Is(err, ErrProfessionalNotFound) && q.ProfessionalID == nil {
				continue
			}
			return nil, fmt.Errorf("load professional: %w", err)
		}

		occ, err := s.professionalOccupancy(ctx, cat, svc, pro, day, now)
		if err != nil {
			if errors.Is(err, availability.ErrNoAvailabilityDefined) {
				s.log.Warn().
					Str("service_id", svc.ID.String()).
					Str("professional_id", pro.ID.String()).
					Msg("no availability template resolves for professional")
				continue
			}
			return nil, err
		}
		occupancies = append(occupancies, occ)
	}

	if len(occupancies) == 0 {
		list.Reason = ReasonNoAvailabilityDefined
		return list, nil
	}
	list.Slots = availability.Aggregate(occupancies...)
	return list, nil
}

// professionalSlots returns the bookable slots of pro for svc on the
// calendar day of at, in the company time zone.
func (s *Service) professionalSlots(ctx context.Context, cat *companyCatalog, svc *ServiceOffering, pro *Professional, at, now time.Time) ([]availability.Slot, error) {
	occ, err := s.professionalOccupancy(ctx, cat, svc, pro, at.In(cat.loc), now)
	if err != nil {
		return nil, err
	}
	return availability.Aggregate(occ), nil
}

func (s *Service) professionalOccupancy(ctx context.Context, cat *companyCatalog, svc *ServiceOffering, pro *Professional, day, now time.Time) ([]availability.Slot, error) {
	tpl, err := s.resolveTemplate(ctx, cat, svc, pro)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, availability.ErrNoAvailabilityDefined
	}

	bounds := availability.DayBounds(day, cat.loc)
	appts, err := s.repo.ListActiveAppointments(ctx, svc.ID, pro.ID, bounds)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	booked := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		booked = append(booked, a.Window())
	}

	proID := pro.ID
	return availability.Occupancy(availability.SlotInput{
		Day:      day,
		Location: cat.loc,
		Template: tpl,
		Policy:   svc.Policy,
		Blocked:  cat.registry.WindowsOn(availability.Scope{CompanyID: cat.company.ID, ProfessionalID: &proID}, day),
		Booked:   booked,
		Now:      now,
	})
}

// resolveTemplate tries the service-linked template, then the professional
// default, then the company default. A dangling reference falls through to
// the next candidate. Returns nil when none resolves.
func (s *Service) resolveTemplate(ctx context.Context, cat *companyCatalog, svc *ServiceOffering, pro *Professional) (*availability.Template, error) {
	candidates := []*uuid.UUID{
		svc.Policy.LinkedTemplateID,
		pro.DefaultTemplateID,
		cat.company.DefaultTemplateID,
	}
	for _, id := range candidates {
		if id == nil {
			continue
		}
		tpl, err := s.template(ctx, cat, *id)
		if err != nil {
			if errors.Is(err, ErrTemplateNotFound) {
				s.log.Warn().Str("template_id", id.String()).Msg("referenced availability template not found")
				continue
			}
			return nil, fmt.Errorf("load template: %w", err)
		}
		if tpl.CompanyID != cat.company.ID {
			continue
		}
		return tpl, nil
	}
	return nil, nil
}
