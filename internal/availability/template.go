package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type TimeInterval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (i TimeInterval) overlaps(o TimeInterval) bool {
	return i.Start < o.End && o.Start < i.End
}

type DaySchedule struct {
	Active    bool           `json:"active"`
	Intervals []TimeInterval `json:"intervals"`
}

// Template is a named weekly availability pattern ("availability type").
type Template struct {
	ID          uuid.UUID                    `json:"id"`
	CompanyID   uuid.UUID                    `json:"company_id"`
	Name        string                       `json:"name"`
	Description string                       `json:"description,omitempty"`
	Days        map[time.Weekday]DaySchedule `json:"days"`
}

// Validate rejects empty or inverted intervals and overlapping intervals on
// the same weekday. Inactive days are validated too so that a later
// activation cannot surface a broken schedule.
func (t Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	}
	for wd, day := range t.Days {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: unknown weekday %d", ErrInvalidSchedule, wd)
		}
		for i, a := range day.Intervals {
			if a.Start < 0 || a.End > EndOfDay || a.Start >= a.End {
				return fmt.Errorf("%w: %s interval %s-%s must have start before end", ErrInvalidSchedule, wd, a.Start, a.End)
			}
			for _, b := range day.Intervals[i+1:] {
				if a.overlaps(b) {
					return fmt.Errorf("%w: %s intervals %s-%s and %s-%s overlap", ErrInvalidSchedule, wd, a.Start, a.End, b.Start, b.End)
				}
			}
		}
	}
	return nil
}

// IntervalsFor returns the day's intervals ordered by start, or nil when the
// weekday is inactive.
func (t Template) IntervalsFor(wd time.Weekday) []TimeInterval {
	day, ok := t.Days[wd]
	if !ok || !day.Active || len(day.Intervals) == 0 {
		return nil
	}
	out := make([]TimeInterval, len(day.Intervals))
	copy(out, day.Intervals)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// WeekdayTemplate builds a template with the same intervals on each of the given weekdays.
func WeekdayTemplate(companyID uuid.UUID, name string, days []time.Weekday, intervals ...TimeInterval) Template {
	t := Template{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      name,
		Days:      make(map[time.Weekday]DaySchedule, 7),
	}
	for _, wd := range days {
		t.Days[wd] = DaySchedule{Active: true, Intervals: append([]TimeInterval(nil), intervals...)}
	}
	return t
}

var BusinessDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
