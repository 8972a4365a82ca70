package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
)

type AppointmentStatus string

const (
	StatusPending                 AppointmentStatus = "pending"
	StatusConfirmed               AppointmentStatus = "confirmed"
	StatusCancelledByClient       AppointmentStatus = "cancelled_by_client"
	StatusCancelledByProfessional AppointmentStatus = "cancelled_by_professional"
	StatusCancelledBySystem       AppointmentStatus = "cancelled_by_system"
	StatusCompleted               AppointmentStatus = "completed"
	StatusNoShow                  AppointmentStatus = "no_show"
)

// Active appointments hold capacity.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) Cancelled() bool {
	switch s {
	case StatusCancelledByClient, StatusCancelledByProfessional, StatusCancelledBySystem:
		return true
	}
	return false
}

var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending: {
		StatusConfirmed,
		StatusCancelledByClient,
		StatusCancelledByProfessional,
		StatusCancelledBySystem,
	},
	StatusConfirmed: {
		StatusCompleted,
		StatusNoShow,
		StatusCancelledByClient,
		StatusCancelledByProfessional,
		StatusCancelledBySystem,
	},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Company struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Timezone          string     `json:"timezone"`
	DefaultTemplateID *uuid.UUID `json:"default_template_id,omitempty"`
}

// Location resolves the company time zone, falling back to UTC for unknown names.
func (c Company) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Professional struct {
	ID                uuid.UUID  `json:"id"`
	CompanyID         uuid.UUID  `json:"company_id"`
	Name              string     `json:"name"`
	DefaultTemplateID *uuid.UUID `json:"default_template_id,omitempty"`
}

// ServiceOffering is a bookable service of a company. Its capacity policy
// drives slot generation and admission.
type ServiceOffering struct {
	ID              uuid.UUID                   `json:"id"`
	CompanyID       uuid.UUID                   `json:"company_id"`
	Name            string                      `json:"name"`
	FeeCents        int64                       `json:"fee_cents"`
	Policy          availability.CapacityPolicy `json:"policy"`
	ProfessionalIDs []uuid.UUID                 `json:"professional_ids"`
}

func (s ServiceOffering) Qualifies(professionalID uuid.UUID) bool {
	for _, id := range s.ProfessionalIDs {
		if id == professionalID {
			return true
		}
	}
	return false
}

func (s ServiceOffering) RequiresPayment() bool {
	return s.FeeCents > 0
}

type Appointment struct {
	ID               uuid.UUID         `json:"id"`
	CompanyID        uuid.UUID         `json:"company_id"`
	ProfessionalID   uuid.UUID         `json:"professional_id"`
	ServiceID        uuid.UUID         `json:"service_id"`
	ClientID         uuid.UUID         `json:"client_id"`
	Start            time.Time         `json:"start"`
	End              time.Time         `json:"end"`
	Status           AppointmentStatus `json:"status"`
	PaymentStatus    PaymentStatus     `json:"payment_status"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	CancelReason     string            `json:"cancel_reason,omitempty"`
	// HoldExpiresAt is set while a pending appointment waits for payment.
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (a Appointment) Window() availability.Interval {
	return availability.Interval{Start: a.Start, End: a.End}
}

// Summary is the projection returned to operators when a block conflicts
// with existing appointments.
type Summary struct {
	ID             uuid.UUID         `json:"id"`
	ProfessionalID uuid.UUID         `json:"professional_id"`
	ServiceID      uuid.UUID         `json:"service_id"`
	ClientID       uuid.UUID         `json:"client_id"`
	Start          time.Time         `json:"start"`
	End            time.Time         `json:"end"`
	Status         AppointmentStatus `json:"status"`
}

func (a Appointment) Summary() Summary {
	return Summary{
		ID:             a.ID,
		ProfessionalID: a.ProfessionalID,
		ServiceID:      a.ServiceID,
		ClientID:       a.ClientID,
		Start:          a.Start,
		End:            a.End,
		Status:         a.Status,
	}
}

func summaries(appts []Appointment) []Summary {
	out := make([]Summary, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.Summary())
	}
	return out
}

type DraftState string

const (
	DraftStateDraft           DraftState = "draft"
	DraftStateConflictChecked DraftState = "conflict_checked"
	DraftStateApplied         DraftState = "applied"
	DraftStateAborted         DraftState = "aborted"
)

// BlockDraft is a block change waiting for the operator to decide what
// happens to the appointments it conflicts with.
type BlockDraft struct {
	ID          uuid.UUID             `json:"id"`
	CompanyID   uuid.UUID             `json:"company_id"`
	Block       availability.Block    `json:"block"`
	Window      availability.Interval `json:"window"`
	State       DraftState            `json:"state"`
	ConflictIDs []uuid.UUID           `json:"conflict_ids"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}
