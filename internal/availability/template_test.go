package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hm(h, m int) TimeOfDay { return NewTimeOfDay(h, m) }

func TestTemplate_Validate(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	tests := []struct {
		name    string
		days    map[time.Weekday]DaySchedule
		wantErr bool
	}{
		{
			name: "two disjoint intervals",
			days: map[time.Weekday]DaySchedule{
				time.Monday: {Active: true, Intervals: []TimeInterval{{hm(9, 0), hm(12, 0)}, {hm(13, 0), hm(18, 0)}}},
			},
		},
		{
			name: "touching intervals are not overlapping",
			days: map[time.Weekday]DaySchedule{
				time.Monday: {Active: true, Intervals: []TimeInterval{{hm(9, 0), hm(12, 0)}, {hm(12, 0), hm(18, 0)}}},
			},
		},
		{
			name: "start equals end",
			days: map[time.Weekday]DaySchedule{
				time.Tuesday: {Active: true, Intervals: []TimeInterval{{hm(9, 0), hm(9, 0)}}},
			},
			wantErr: true,
		},
		{
			name: "inverted interval",
			days: map[time.Weekday]DaySchedule{
				time.Tuesday: {Active: true, Intervals: []TimeInterval{{hm(18, 0), hm(9, 0)}}},
			},
			wantErr: true,
		},
		{
			name: "overlap on inactive day is still rejected",
			days: map[time.Weekday]DaySchedule{
				time.Sunday: {Active: false, Intervals: []TimeInterval{{hm(9, 0), hm(12, 0)}, {hm(11, 0), hm(14, 0)}}},
			},
			wantErr: true,
		},
		{
			name: "ends at midnight",
			days: map[time.Weekday]DaySchedule{
				time.Friday: {Active: true, Intervals: []TimeInterval{{hm(20, 0), EndOfDay}}},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tpl := Template{ID: uuid.New(), CompanyID: companyID, Name: "t", Days: tc.days}
			err := tpl.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidSchedule)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTemplate_IntervalsFor(t *testing.T) {
	tpl := Template{
		Name: "split",
		Days: map[time.Weekday]DaySchedule{
			time.Monday:   {Active: true, Intervals: []TimeInterval{{hm(14, 0), hm(18, 0)}, {hm(8, 0), hm(12, 0)}}},
			time.Saturday: {Active: false, Intervals: []TimeInterval{{hm(8, 0), hm(12, 0)}}},
		},
	}

	got := tpl.IntervalsFor(time.Monday)
	require.Len(t, got, 2)
	assert.Equal(t, hm(8, 0), got[0].Start)
	assert.Equal(t, hm(14, 0), got[1].Start)

	assert.Empty(t, tpl.IntervalsFor(time.Saturday))
	assert.Empty(t, tpl.IntervalsFor(time.Sunday))
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, hm(9, 30), got)
	assert.Equal(t, "09:30", got.String())

	got, err = ParseTimeOfDay("24:00")
	require.NoError(t, err)
	assert.Equal(t, EndOfDay, got)

	for _, bad := range []string{"25:00", "10:60", "24:30", "noon"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}
