package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
	"github.com/hackgods/tenant-booking-engine/internal/outbox"
)

// MemoryRepository keeps everything in process memory behind one mutex, which
// gives every method the atomicity the Postgres repository gets from its
// transactions. Used by tests and the local simulator.
type MemoryRepository struct {
	mu            sync.Mutex
	companies     map[uuid.UUID]Company
	professionals map[uuid.UUID]Professional
	services      map[uuid.UUID]ServiceOffering
	templates     map[uuid.UUID]availability.Template
	blocks        map[uuid.UUID]availability.Block
	drafts        map[uuid.UUID]BlockDraft
	appointments  map[uuid.UUID]Appointment
	versions      map[uuid.UUID]int64
	events        []outbox.Event
	now           func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		companies:     make(map[uuid.UUID]Company),
		professionals: make(map[uuid.UUID]Professional),
		services:      make(map[uuid.UUID]ServiceOffering),
		templates:     make(map[uuid.UUID]availability.Template),
		blocks:        make(map[uuid.UUID]availability.Block),
		drafts:        make(map[uuid.UUID]BlockDraft),
		appointments:  make(map[uuid.UUID]Appointment),
		versions:      make(map[uuid.UUID]int64),
		now:           time.Now,
	}
}

// SetClock replaces the clock used for created/updated timestamps.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryRepository) AddCompany(c Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[c.ID] = c
	r.versions[c.ID]++
}

func (r *MemoryRepository) AddProfessional(p Professional) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.professionals[p.ID] = p
}

func (r *MemoryRepository) AddService(s ServiceOffering) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ProfessionalIDs = append([]uuid.UUID(nil), s.ProfessionalIDs...)
	r.services[s.ID] = s
}

func (r *MemoryRepository) AddBlock(b availability.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[b.ID] = b
	r.versions[b.CompanyID]++
}

// AddAppointment stores a without any admission checks.
func (r *MemoryRepository) AddAppointment(a Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[a.ID] = a
}

// Events returns a copy of the outbox.
func (r *MemoryRepository) Events() []outbox.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outbox.Event(nil), r.events...)
}

func (r *MemoryRepository) GetCompany(_ context.Context, id uuid.UUID) (*Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[id]
	if !ok {
		return nil, ErrCompanyNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) GetProfessional(_ context.Context, id uuid.UUID) (*Professional, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetService(_ context.Context, id uuid.UUID) (*ServiceOffering, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	s.ProfessionalIDs = append([]uuid.UUID(nil), s.ProfessionalIDs...)
	return &s, nil
}

func (r *MemoryRepository) GetTemplate(_ context.Context, id uuid.UUID) (*availability.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) SaveTemplate(_ context.Context, tpl availability.Template) (*availability.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.companies[tpl.CompanyID]; !ok {
		return nil, ErrCompanyNotFound
	}
	r.templates[tpl.ID] = tpl
	r.versions[tpl.CompanyID]++
	return &tpl, nil
}

func (r *MemoryRepository) CatalogVersion(_ context.Context, companyID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.companies[companyID]; !ok {
		return 0, ErrCompanyNotFound
	}
	return r.versions[companyID], nil
}

func (r *MemoryRepository) ListActiveBlocks(_ context.Context, companyID uuid.UUID) ([]availability.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []availability.Block
	for _, b := range r.blocks {
		if b.CompanyID == companyID && b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r *MemoryRepository) GetBlock(_ context.Context, id uuid.UUID) (*availability.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return &b, nil
}

func (r *MemoryRepository) ApplyBlock(_ context.Context, req ApplyBlockRequest) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.DraftID != nil {
		d, ok := r.drafts[*req.DraftID]
		if !ok {
			return nil, ErrBlockDraftNotFound
		}
		if d.State != DraftStateConflictChecked {
			return nil, ErrInvalidDraftState
		}
	}

	conflicts := r.conflictingLocked(req.Block, req.Window)
	if len(conflicts) > 0 && !req.CancelConflicts {
		return conflicts, ErrConflictsPending
	}

	// build every change first so a marshal failure leaves nothing half applied
	now := r.now()
	cancelled := make([]Appointment, 0, len(conflicts))
	events := make([]outbox.Event, 0, len(conflicts))
	for _, a := range conflicts {
		prev := a.Status
		a.Status = StatusCancelledBySystem
		a.CancelReason = cancelReasonBlock(req.Block)
		a.HoldExpiresAt = nil
		a.UpdatedAt = now
		evt, err := appointmentEvent(outbox.TopicAppointmentCancelled, a, prev)
		if err != nil {
			return nil, fmt.Errorf("build cancellation event: %w", err)
		}
		cancelled = append(cancelled, a)
		events = append(events, evt)
	}

	for _, a := range cancelled {
		r.appointments[a.ID] = a
	}
	r.events = append(r.events, events...)

	block := req.Block
	block.Active = true
	r.blocks[block.ID] = block
	r.versions[block.CompanyID]++

	if req.DraftID != nil {
		d := r.drafts[*req.DraftID]
		d.State = DraftStateApplied
		d.UpdatedAt = now
		r.drafts[d.ID] = d
	}
	return cancelled, nil
}

func (r *MemoryRepository) conflictingLocked(b availability.Block, window availability.Interval) []Appointment {
	var out []Appointment
	for _, a := range r.appointments {
		if a.CompanyID != b.CompanyID || !a.Status.Active() {
			continue
		}
		if b.Target == availability.TargetProfessional && (b.ProfessionalID == nil || *b.ProfessionalID != a.ProfessionalID) {
			continue
		}
		if a.Window().Overlaps(window) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out
}

func (r *MemoryRepository) DeactivateBlock(_ context.Context, id uuid.UUID) (*availability.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	b.Active = false
	r.blocks[id] = b
	r.versions[b.CompanyID]++
	return &b, nil
}

func (r *MemoryRepository) SaveBlockDraft(_ context.Context, d BlockDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ConflictIDs = append([]uuid.UUID(nil), d.ConflictIDs...)
	r.drafts[d.ID] = d
	return nil
}

func (r *MemoryRepository) GetBlockDraft(_ context.Context, id uuid.UUID) (*BlockDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, ErrBlockDraftNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) AbortBlockDraft(_ context.Context, id uuid.UUID) (*BlockDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, ErrBlockDraftNotFound
	}
	if d.State != DraftStateConflictChecked && d.State != DraftStateDraft {
		return nil, ErrInvalidDraftState
	}
	d.State = DraftStateAborted
	d.UpdatedAt = r.now()
	r.drafts[id] = d
	return &d, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListActiveAppointments(_ context.Context, serviceID, professionalID uuid.UUID, window availability.Interval) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.ServiceID == serviceID && a.ProfessionalID == professionalID && a.Status.Active() && a.Window().Overlaps(window) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r *MemoryRepository) CountActiveForClient(_ context.Context, clientID, serviceID uuid.UUID, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countActiveForClientLocked(clientID, serviceID, now), nil
}

func (r *MemoryRepository) countActiveForClientLocked(clientID, serviceID uuid.UUID, now time.Time) int {
	n := 0
	for _, a := range r.appointments {
		if a.ClientID == clientID && a.ServiceID == serviceID && a.Status.Active() && a.End.After(now) {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) HasCreatedSince(_ context.Context, clientID, serviceID uuid.UUID, since, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasCreatedSinceLocked(clientID, serviceID, since, now), nil
}

func (r *MemoryRepository) hasCreatedSinceLocked(clientID, serviceID uuid.UUID, since, now time.Time) bool {
	for _, a := range r.appointments {
		if a.ClientID == clientID && a.ServiceID == serviceID && a.CreatedAt.After(since) && !a.CreatedAt.After(now) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) AdmitAppointment(_ context.Context, appt Appointment, guard AdmissionGuard) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.versions[appt.CompanyID] != guard.CatalogVersion {
		return nil, ErrSlotNoLongerAvailable
	}

	used := 0
	for _, a := range r.appointments {
		if a.ServiceID == appt.ServiceID && a.ProfessionalID == appt.ProfessionalID && a.Status.Active() && a.Window().Overlaps(appt.Window()) {
			used++
		}
	}
	if used >= guard.SlotCapacity {
		return nil, ErrSlotNoLongerAvailable
	}
	if r.countActiveForClientLocked(appt.ClientID, appt.ServiceID, guard.Now) >= guard.PerUserLimit {
		return nil, ErrCapacityExceeded
	}
	if guard.CooldownSince != nil && r.hasCreatedSinceLocked(appt.ClientID, appt.ServiceID, *guard.CooldownSince, guard.Now) {
		return nil, ErrCooldownActive
	}

	appt.CreatedAt = guard.Now
	appt.UpdatedAt = guard.Now
	evt, err := appointmentEvent(outbox.TopicAppointmentCreated, appt, "")
	if err != nil {
		return nil, fmt.Errorf("build created event: %w", err)
	}
	r.appointments[appt.ID] = appt
	r.events = append(r.events, evt)
	return &appt, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, reason string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = r.now()
	if to != StatusPending {
		a.HoldExpiresAt = nil
	}
	if to.Cancelled() {
		a.CancelReason = reason
	}
	evt, err := appointmentEvent(topicFor(to), a, from)
	if err != nil {
		return nil, fmt.Errorf("build status event: %w", err)
	}
	r.appointments[id] = a
	r.events = append(r.events, evt)
	return &a, nil
}

func (r *MemoryRepository) FindExpiredPending(_ context.Context, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusPending && a.HoldExpiresAt != nil && a.HoldExpiresAt.Before(now) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func sortAppointments(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Start.Equal(appts[j].Start) {
			return appts[i].ID.String() < appts[j].ID.String()
		}
		return appts[i].Start.Before(appts[j].Start)
	})
}
