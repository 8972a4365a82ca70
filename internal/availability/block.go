package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type BlockTarget string

const (
	TargetCompany      BlockTarget = "company"
	TargetProfessional BlockTarget = "professional"
)

const week = 7 * 24 * time.Hour

// Block is an operator-defined period removing availability ("agenda block").
// A weekly block repeats the wall-clock window of Start/End on every
// following week, until RepeatUntil when set.
type Block struct {
	ID             uuid.UUID   `json:"id"`
	CompanyID      uuid.UUID   `json:"company_id"`
	Target         BlockTarget `json:"target"`
	ProfessionalID *uuid.UUID  `json:"professional_id,omitempty"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	Reason         string      `json:"reason"`
	RepeatsWeekly  bool        `json:"repeats_weekly"`
	RepeatUntil    *time.Time  `json:"repeat_until,omitempty"`
	Active         bool        `json:"active"`
}

func (b Block) Validate() error {
	if !b.Start.Before(b.End) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidBlock)
	}
	switch b.Target {
	case TargetCompany:
		if b.ProfessionalID != nil {
			return fmt.Errorf("%w: company-wide block cannot name a professional", ErrInvalidBlock)
		}
	case TargetProfessional:
		if b.ProfessionalID == nil || *b.ProfessionalID == uuid.Nil {
			return fmt.Errorf("%w: professional block requires professional_id", ErrInvalidBlock)
		}
	default:
		return fmt.Errorf("%w: unknown target %q", ErrInvalidBlock, b.Target)
	}
	if b.RepeatsWeekly {
		if b.End.Sub(b.Start) >= week {
			return fmt.Errorf("%w: weekly block must be shorter than a week", ErrInvalidBlock)
		}
		if b.RepeatUntil != nil && b.RepeatUntil.Before(b.Start) {
			return fmt.Errorf("%w: repeat_until before start", ErrInvalidBlock)
		}
	}
	return nil
}

// AppliesTo reports whether the block removes availability for professionalID.
// A nil professionalID means the company scope, which only company-wide
// blocks affect.
func (b Block) AppliesTo(professionalID *uuid.UUID) bool {
	if b.Target == TargetCompany {
		return true
	}
	return professionalID != nil && b.ProfessionalID != nil && *b.ProfessionalID == *professionalID
}

// occurrence returns the k-th weekly projection, keeping the wall-clock
// time-of-day in loc across DST changes.
func (b Block) occurrence(k int, loc *time.Location) Interval {
	start := b.Start.In(loc)
	end := b.End.In(loc)
	return Interval{Start: start.AddDate(0, 0, 7*k), End: end.AddDate(0, 0, 7*k)}
}

// WindowsWithin returns the parts of the block falling inside bounds.
// Cross-midnight windows therefore split across the two days they touch.
func (b Block) WindowsWithin(bounds Interval, loc *time.Location) []Interval {
	if !b.RepeatsWeekly {
		return clip(Interval{Start: b.Start, End: b.End}, bounds)
	}

	startDay := DayBounds(b.Start, loc).Start
	boundsDay := DayBounds(bounds.Start, loc).Start
	// whole calendar days between the stored start and the window, in loc
	days := int(boundsDay.Sub(startDay).Round(time.Hour).Hours() / 24)
	k0 := days / 7

	var out []Interval
	for k := k0 - 1; k <= k0+1; k++ {
		if k < 0 {
			continue
		}
		occ := b.occurrence(k, loc)
		if b.RepeatUntil != nil && occ.Start.After(*b.RepeatUntil) {
			continue
		}
		out = append(out, clip(occ, bounds)...)
	}
	return out
}

// ImmediateOccurrence is the window checked against existing appointments:
// the stored window for one-off blocks, the first occurrence still running
// at now for weekly ones. ok is false when a weekly block's recurrence ended
// before that occurrence, so the block removes no future availability.
func (b Block) ImmediateOccurrence(now time.Time, loc *time.Location) (Interval, bool) {
	if !b.RepeatsWeekly || b.End.After(now) {
		return Interval{Start: b.Start, End: b.End}, true
	}
	k := int(now.Sub(b.End) / week)
	for {
		occ := b.occurrence(k, loc)
		if occ.End.After(now) {
			if b.RepeatUntil != nil && occ.Start.After(*b.RepeatUntil) {
				return Interval{}, false
			}
			return occ, true
		}
		k++
	}
}

func clip(w, bounds Interval) []Interval {
	if !w.Overlaps(bounds) {
		return nil
	}
	if w.Start.Before(bounds.Start) {
		w.Start = bounds.Start
	}
	if w.End.After(bounds.End) {
		w.End = bounds.End
	}
	return []Interval{w}
}

type Scope struct {
	CompanyID      uuid.UUID
	ProfessionalID *uuid.UUID
}

// BlockRegistry answers which agenda blocks of one company remove
// availability on a given day.
type BlockRegistry struct {
	blocks []Block
	loc    *time.Location
}

func NewBlockRegistry(blocks []Block, loc *time.Location) *BlockRegistry {
	if loc == nil {
		loc = time.UTC
	}
	return &BlockRegistry{blocks: blocks, loc: loc}
}

// ActiveOn returns active blocks for scope that project onto day.
func (r *BlockRegistry) ActiveOn(scope Scope, day time.Time) []Block {
	bounds := DayBounds(day, r.loc)
	var out []Block
	for _, b := range r.blocks {
		if !b.Active || b.CompanyID != scope.CompanyID || !b.AppliesTo(scope.ProfessionalID) {
			continue
		}
		if len(b.WindowsWithin(bounds, r.loc)) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// WindowsOn returns the blocked windows for scope on day, sorted by start.
func (r *BlockRegistry) WindowsOn(scope Scope, day time.Time) []Interval {
	bounds := DayBounds(day, r.loc)
	var out []Interval
	for _, b := range r.ActiveOn(scope, day) {
		out = append(out, b.WindowsWithin(bounds, r.loc)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
