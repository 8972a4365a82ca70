package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
)

var (
	ErrCompanyNotFound      = errors.New("company not found")
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrServiceNotFound      = errors.New("service not found")
	ErrTemplateNotFound     = errors.New("availability template not found")
	ErrBlockNotFound        = errors.New("block not found")
	ErrBlockDraftNotFound   = errors.New("block draft not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
)

// AdmissionGuard carries the checks the store repeats inside the transaction
// that inserts an appointment.
type AdmissionGuard struct {
	SlotCapacity   int
	PerUserLimit   int
	CooldownSince  *time.Time
	CatalogVersion int64
	Now            time.Time
}

// ApplyBlockRequest saves a block and deals with the active appointments
// overlapping Window. Without CancelConflicts any conflict aborts the change
// with ErrConflictsPending and the conflicting appointments are returned.
type ApplyBlockRequest struct {
	DraftID         *uuid.UUID
	Block           availability.Block
	Window          availability.Interval
	CancelConflicts bool
	Now             time.Time
}

// Repository contains all store interactions needed by the service.
type Repository interface {
	// Catalog
	GetCompany(ctx context.Context, id uuid.UUID) (*Company, error)
	GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error)
	GetService(ctx context.Context, id uuid.UUID) (*ServiceOffering, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*availability.Template, error)
	SaveTemplate(ctx context.Context, tpl availability.Template) (*availability.Template, error)
	// CatalogVersion changes whenever templates or blocks of the company change.
	CatalogVersion(ctx context.Context, companyID uuid.UUID) (int64, error)

	// Blocks
	ListActiveBlocks(ctx context.Context, companyID uuid.UUID) ([]availability.Block, error)
	GetBlock(ctx context.Context, id uuid.UUID) (*availability.Block, error)
	ApplyBlock(ctx context.Context, req ApplyBlockRequest) ([]Appointment, error)
	DeactivateBlock(ctx context.Context, id uuid.UUID) (*availability.Block, error)
	SaveBlockDraft(ctx context.Context, d BlockDraft) error
	GetBlockDraft(ctx context.Context, id uuid.UUID) (*BlockDraft, error)
	AbortBlockDraft(ctx context.Context, id uuid.UUID) (*BlockDraft, error)

	// Appointments
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListActiveAppointments(ctx context.Context, serviceID, professionalID uuid.UUID, window availability.Interval) ([]Appointment, error)
	CountActiveForClient(ctx context.Context, clientID, serviceID uuid.UUID, now time.Time) (int, error)
	HasCreatedSince(ctx context.Context, clientID, serviceID uuid.UUID, since, now time.Time) (bool, error)
	AdmitAppointment(ctx context.Context, appt Appointment, guard AdmissionGuard) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, reason string) (*Appointment, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)
}
