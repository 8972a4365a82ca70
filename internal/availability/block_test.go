package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nextWeekday returns the first date on or after from that falls on wd.
func nextWeekday(from time.Time, wd time.Weekday) time.Time {
	for from.Weekday() != wd {
		from = from.AddDate(0, 0, 1)
	}
	return from
}

var base = time.Date(2031, time.March, 3, 0, 0, 0, 0, time.UTC)

func TestBlock_Validate(t *testing.T) {
	companyID := uuid.New()
	proID := uuid.New()
	start := base.Add(9 * time.Hour)

	valid := Block{CompanyID: companyID, Target: TargetCompany, Start: start, End: start.Add(time.Hour)}
	require.NoError(t, valid.Validate())

	inverted := valid
	inverted.End = start
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidBlock)

	missingPro := valid
	missingPro.Target = TargetProfessional
	assert.ErrorIs(t, missingPro.Validate(), ErrInvalidBlock)

	companyWithPro := valid
	companyWithPro.ProfessionalID = &proID
	assert.ErrorIs(t, companyWithPro.Validate(), ErrInvalidBlock)

	tooLong := valid
	tooLong.RepeatsWeekly = true
	tooLong.End = start.Add(8 * 24 * time.Hour)
	assert.ErrorIs(t, tooLong.Validate(), ErrInvalidBlock)
}

func TestBlockRegistry_OneOffSpansDays(t *testing.T) {
	companyID := uuid.New()
	monday := nextWeekday(base, time.Monday)
	b := Block{
		ID: uuid.New(), CompanyID: companyID, Target: TargetCompany, Active: true,
		Start: monday.Add(20 * time.Hour), End: monday.Add(2*24*time.Hour + 8*time.Hour),
	}
	reg := NewBlockRegistry([]Block{b}, time.UTC)
	scope := Scope{CompanyID: companyID}

	assert.Len(t, reg.ActiveOn(scope, monday), 1)
	assert.Len(t, reg.ActiveOn(scope, monday.AddDate(0, 0, 1)), 1)
	assert.Len(t, reg.ActiveOn(scope, monday.AddDate(0, 0, 2)), 1)
	assert.Empty(t, reg.ActiveOn(scope, monday.AddDate(0, 0, 3)))
	assert.Empty(t, reg.ActiveOn(scope, monday.AddDate(0, 0, -1)))

	tuesday := reg.WindowsOn(scope, monday.AddDate(0, 0, 1))
	require.Len(t, tuesday, 1)
	assert.Equal(t, monday.AddDate(0, 0, 1), tuesday[0].Start)
	assert.Equal(t, monday.AddDate(0, 0, 2), tuesday[0].End)
}

func TestBlockRegistry_WeeklyProjectsOnSameWeekdayOnly(t *testing.T) {
	companyID := uuid.New()
	monday := nextWeekday(base, time.Monday)
	b := Block{
		ID: uuid.New(), CompanyID: companyID, Target: TargetCompany, Active: true, RepeatsWeekly: true,
		Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour),
	}
	reg := NewBlockRegistry([]Block{b}, time.UTC)
	scope := Scope{CompanyID: companyID}

	for w := 0; w < 60; w++ {
		day := monday.AddDate(0, 0, 7*w)
		windows := reg.WindowsOn(scope, day)
		require.Len(t, windows, 1, "week %d", w)
		assert.Equal(t, day.Add(9*time.Hour), windows[0].Start)
		assert.Equal(t, day.Add(10*time.Hour), windows[0].End)

		for d := 1; d < 7; d++ {
			assert.Empty(t, reg.WindowsOn(scope, day.AddDate(0, 0, d)), "week %d day +%d", w, d)
		}
	}

	// never projected backwards
	assert.Empty(t, reg.WindowsOn(scope, monday.AddDate(0, 0, -7)))
}

func TestBlockRegistry_WeeklyCrossMidnightSplits(t *testing.T) {
	companyID := uuid.New()
	friday := nextWeekday(base, time.Friday)
	b := Block{
		ID: uuid.New(), CompanyID: companyID, Target: TargetCompany, Active: true, RepeatsWeekly: true,
		Start: friday.Add(22 * time.Hour), End: friday.Add(26 * time.Hour),
	}
	reg := NewBlockRegistry([]Block{b}, time.UTC)
	scope := Scope{CompanyID: companyID}

	nextFriday := friday.AddDate(0, 0, 7)
	fri := reg.WindowsOn(scope, nextFriday)
	require.Len(t, fri, 1)
	assert.Equal(t, nextFriday.Add(22*time.Hour), fri[0].Start)
	assert.Equal(t, nextFriday.Add(24*time.Hour), fri[0].End)

	sat := reg.WindowsOn(scope, nextFriday.AddDate(0, 0, 1))
	require.Len(t, sat, 1)
	assert.Equal(t, nextFriday.Add(24*time.Hour), sat[0].Start)
	assert.Equal(t, nextFriday.Add(26*time.Hour), sat[0].End)
}

func TestBlockRegistry_RepeatUntil(t *testing.T) {
	companyID := uuid.New()
	monday := nextWeekday(base, time.Monday)
	until := monday.AddDate(0, 0, 14).Add(12 * time.Hour)
	b := Block{
		ID: uuid.New(), CompanyID: companyID, Target: TargetCompany, Active: true, RepeatsWeekly: true,
		Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour), RepeatUntil: &until,
	}
	reg := NewBlockRegistry([]Block{b}, time.UTC)
	scope := Scope{CompanyID: companyID}

	assert.Len(t, reg.WindowsOn(scope, monday.AddDate(0, 0, 14)), 1)
	assert.Empty(t, reg.WindowsOn(scope, monday.AddDate(0, 0, 21)))
}

func TestBlockRegistry_Scope(t *testing.T) {
	companyID := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	monday := nextWeekday(base, time.Monday)

	companyWide := Block{ID: uuid.New(), CompanyID: companyID, Target: TargetCompany, Active: true,
		Start: monday.Add(12 * time.Hour), End: monday.Add(13 * time.Hour)}
	aliceOnly := Block{ID: uuid.New(), CompanyID: companyID, Target: TargetProfessional, ProfessionalID: &alice, Active: true,
		Start: monday.Add(15 * time.Hour), End: monday.Add(16 * time.Hour)}
	inactive := Block{ID: uuid.New(), CompanyID: companyID, Target: TargetCompany, Active: false,
		Start: monday.Add(8 * time.Hour), End: monday.Add(9 * time.Hour)}
	otherCompany := Block{ID: uuid.New(), CompanyID: uuid.New(), Target: TargetCompany, Active: true,
		Start: monday.Add(8 * time.Hour), End: monday.Add(9 * time.Hour)}

	reg := NewBlockRegistry([]Block{companyWide, aliceOnly, inactive, otherCompany}, time.UTC)

	assert.Len(t, reg.ActiveOn(Scope{CompanyID: companyID, ProfessionalID: &alice}, monday), 2)
	assert.Len(t, reg.ActiveOn(Scope{CompanyID: companyID, ProfessionalID: &bob}, monday), 1)
	assert.Len(t, reg.ActiveOn(Scope{CompanyID: companyID}, monday), 1)
}

func TestBlock_ImmediateOccurrence(t *testing.T) {
	monday := nextWeekday(base, time.Monday)
	b := Block{Target: TargetCompany, RepeatsWeekly: true,
		Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)}

	now := monday.AddDate(0, 0, 17) // Thursday two weeks later
	occ, ok := b.ImmediateOccurrence(now, time.UTC)
	require.True(t, ok)
	assert.Equal(t, monday.AddDate(0, 0, 21).Add(9*time.Hour), occ.Start)

	future, ok := b.ImmediateOccurrence(monday, time.UTC)
	require.True(t, ok)
	assert.Equal(t, b.Start, future.Start)
}

func TestBlock_ImmediateOccurrenceAfterRepeatUntil(t *testing.T) {
	monday := nextWeekday(base, time.Monday)
	until := monday.AddDate(0, 0, 7).Add(12 * time.Hour)
	b := Block{Target: TargetCompany, RepeatsWeekly: true, RepeatUntil: &until,
		Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)}

	// the week-two occurrence is still projected
	occ, ok := b.ImmediateOccurrence(monday.AddDate(0, 0, 3), time.UTC)
	require.True(t, ok)
	assert.Equal(t, monday.AddDate(0, 0, 7).Add(9*time.Hour), occ.Start)

	// recurrence ended before the next occurrence
	_, ok = b.ImmediateOccurrence(monday.AddDate(0, 0, 10), time.UTC)
	assert.False(t, ok)
	bounds := DayBounds(monday.AddDate(0, 0, 14), time.UTC)
	assert.Empty(t, b.WindowsWithin(bounds, time.UTC))
}
