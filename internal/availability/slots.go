package availability

import (
	"sort"
	"time"
)

// Slot is a concrete bookable window.
type Slot struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	Capacity          int       `json:"capacity"`
	RemainingCapacity int       `json:"remaining_capacity"`
}

// SlotInput is everything needed to compute one professional's slots for
// one service on one day. Booked holds the windows of pending and confirmed
// appointments of that service and professional.
type SlotInput struct {
	Day      time.Time
	Location *time.Location
	Template *Template
	Policy   CapacityPolicy
	Blocked  []Interval
	Booked   []Interval
	Now      time.Time
}

// Candidates walks each active interval of the day in duration steps,
// advancing by duration plus the configured gap, and keeps only candidates
// that fit entirely inside one interval.
func Candidates(t Template, day time.Time, loc *time.Location, p CapacityPolicy) []Interval {
	if loc == nil {
		loc = time.UTC
	}
	day = day.In(loc)
	duration := p.Duration()
	step := p.Step()
	if duration <= 0 || step <= 0 {
		return nil
	}

	var out []Interval
	for _, iv := range t.IntervalsFor(day.Weekday()) {
		start := iv.Start.On(day)
		end := iv.End.On(day)
		for c := start; !c.Add(duration).After(end); c = c.Add(step) {
			out = append(out, Interval{Start: c, End: c.Add(duration)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Occupancy returns every unblocked, not-yet-started candidate with its
// capacity and remaining capacity, including full ones.
func Occupancy(in SlotInput) ([]Slot, error) {
	if in.Template == nil {
		return nil, ErrNoAvailabilityDefined
	}
	capacity := in.Policy.PerProfessionalCapacity()

	var out []Slot
	for _, c := range Candidates(*in.Template, in.Day, in.Location, in.Policy) {
		if c.Start.Before(in.Now) {
			continue
		}
		if overlapsAny(c, in.Blocked) {
			continue
		}
		used := 0
		for _, b := range in.Booked {
			if c.Overlaps(b) {
				used++
			}
		}
		out = append(out, Slot{
			Start:             c.Start,
			End:               c.End,
			Capacity:          capacity,
			RemainingCapacity: capacity - used,
		})
	}
	return out, nil
}

// ComputeSlots returns the bookable slots in ascending start order.
func ComputeSlots(in SlotInput) ([]Slot, error) {
	all, err := Occupancy(in)
	if err != nil {
		return nil, err
	}
	return bookable(all), nil
}

// Aggregate merges per-professional occupancy lists into one client-facing
// list: capacity and remaining capacity are summed per start time.
func Aggregate(perProfessional ...[]Slot) []Slot {
	type key struct{ start, end int64 }
	merged := make(map[key]*Slot)
	for _, list := range perProfessional {
		for _, s := range list {
			k := key{s.Start.UnixNano(), s.End.UnixNano()}
			m, ok := merged[k]
			if !ok {
				cp := s
				merged[k] = &cp
				continue
			}
			m.Capacity += s.Capacity
			m.RemainingCapacity += s.RemainingCapacity
		}
	}

	out := make([]Slot, 0, len(merged))
	for _, s := range merged {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return bookable(out)
}

// Find returns the bookable slot starting at start.
func Find(slots []Slot, start time.Time) (Slot, bool) {
	for _, s := range slots {
		if s.Start.Equal(start) && s.RemainingCapacity > 0 {
			return s, true
		}
	}
	return Slot{}, false
}

func bookable(all []Slot) []Slot {
	out := make([]Slot, 0, len(all))
	for _, s := range all {
		if s.RemainingCapacity > 0 {
			out = append(out, s)
		}
	}
	return out
}
