package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ConfirmationType string

const (
	ConfirmManual    ConfirmationType = "manual"
	ConfirmAutomatic ConfirmationType = "automatic"
)

// CooldownWindow is the look-back used when BlockAfter24Hours is set.
const CooldownWindow = 24 * time.Hour

// CapacityPolicy holds the per-service booking rules.
type CapacityPolicy struct {
	DurationMinutes             int              `json:"duration_minutes"`
	SimultaneousPerUser         int              `json:"simultaneous_per_user"`
	SimultaneousPerSlot         int              `json:"simultaneous_per_slot"`
	AutomaticPerSlot            bool             `json:"automatic_per_slot"`
	IntervalBetweenSlotsMinutes int              `json:"interval_between_slots_minutes"`
	BlockAfter24Hours           bool             `json:"block_after_24_hours"`
	Confirmation                ConfirmationType `json:"confirmation"`
	LinkedTemplateID            *uuid.UUID       `json:"linked_template_id,omitempty"`
}

func (p CapacityPolicy) Validate() error {
	if p.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidPolicy)
	}
	if p.SimultaneousPerUser < 1 {
		return fmt.Errorf("%w: simultaneous per user must be at least 1", ErrInvalidPolicy)
	}
	if !p.AutomaticPerSlot && p.SimultaneousPerSlot < 1 {
		return fmt.Errorf("%w: simultaneous per slot must be at least 1", ErrInvalidPolicy)
	}
	if p.IntervalBetweenSlotsMinutes < 0 {
		return fmt.Errorf("%w: interval between slots cannot be negative", ErrInvalidPolicy)
	}
	switch p.Confirmation {
	case ConfirmManual, ConfirmAutomatic:
	default:
		return fmt.Errorf("%w: unknown confirmation type %q", ErrInvalidPolicy, p.Confirmation)
	}
	return nil
}

func (p CapacityPolicy) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// Step is the distance between consecutive candidate starts.
func (p CapacityPolicy) Step() time.Duration {
	return time.Duration(p.DurationMinutes+p.IntervalBetweenSlotsMinutes) * time.Minute
}

// MaxConcurrentAt is the slot capacity given how many qualified professionals
// are available at that start. Under automatic capacity one professional
// holds one booking, so the headcount is the capacity.
func (p CapacityPolicy) MaxConcurrentAt(availableProfessionals int) int {
	if p.AutomaticPerSlot {
		return availableProfessionals
	}
	return p.SimultaneousPerSlot
}

// PerProfessionalCapacity is the capacity of one professional's slot.
func (p CapacityPolicy) PerProfessionalCapacity() int {
	return p.MaxConcurrentAt(1)
}

// UserLimitReached reports whether a client holding active bookings may not book again.
func (p CapacityPolicy) UserLimitReached(active int) bool {
	return active >= p.SimultaneousPerUser
}

// CooldownSince returns the earliest creation time that still counts toward
// the cool-down, or nil when the policy has none.
func (p CapacityPolicy) CooldownSince(now time.Time) *time.Time {
	if !p.BlockAfter24Hours {
		return nil
	}
	since := now.Add(-CooldownWindow)
	return &since
}
