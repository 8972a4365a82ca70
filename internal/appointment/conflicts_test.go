package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
	"github.com/hackgods/tenant-booking-engine/internal/outbox"
)

func companyBlock(companyID uuid.UUID, start, end time.Time) availability.Block {
	return availability.Block{
		CompanyID: companyID,
		Target:    availability.TargetCompany,
		Start:     start,
		End:       end,
		Reason:    "staff meeting",
	}
}

func TestCreateOrUpdateBlock_NoConflictsAppliesImmediately(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.CreateOrUpdateBlock(context.Background(), companyBlock(f.company.ID, at(wednesday, 12, 0), at(wednesday, 13, 0)))
	require.NoError(t, err)
	assert.Equal(t, DraftStateApplied, res.State)
	assert.Nil(t, res.DraftID)

	starts := f.slotStarts(t, wednesday)
	assert.Len(t, starts, 8)
	assert.NotContains(t, starts, "12:00")
}

func TestCreateOrUpdateBlock_ConfirmCancelsConflicts(t *testing.T) {
	f := newFixture(t, nil)
	appt, err := f.book(t, uuid.New(), at(wednesday, 10, 0))
	require.NoError(t, err)

	res, err := f.svc.CreateOrUpdateBlock(context.Background(), companyBlock(f.company.ID, at(wednesday, 9, 30), at(wednesday, 10, 30)))
	require.ErrorIs(t, err, ErrConflictsPending)
	require.NotNil(t, res.DraftID)
	assert.Equal(t, DraftStateConflictChecked, res.State)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, appt.ID, res.Conflicts[0].ID)

	// nothing is saved before the operator decides
	_, err = f.repo.GetBlock(context.Background(), res.Block.ID)
	require.ErrorIs(t, err, ErrBlockNotFound)
	assert.Contains(t, f.slotStarts(t, wednesday), "09:00")

	confirmed, err := f.svc.ConfirmBlockWithCancellations(context.Background(), f.company.ID, *res.DraftID)
	require.NoError(t, err)
	assert.Equal(t, DraftStateApplied, confirmed.State)
	require.Len(t, confirmed.Cancelled, 1)
	assert.Equal(t, StatusCancelledBySystem, confirmed.Cancelled[0].Status)

	got, err := f.svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelledBySystem, got.Status)
	assert.Equal(t, "agenda_blocked: staff meeting", got.CancelReason)

	block, err := f.repo.GetBlock(context.Background(), res.Block.ID)
	require.NoError(t, err)
	assert.True(t, block.Active)

	starts := f.slotStarts(t, wednesday)
	assert.NotContains(t, starts, "09:00")
	assert.NotContains(t, starts, "10:00")
	assert.Contains(t, starts, "11:00")

	events := f.repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, outbox.TopicAppointmentCancelled, events[1].EventType)

	_, err = f.svc.ConfirmBlockWithCancellations(context.Background(), f.company.ID, *res.DraftID)
	require.ErrorIs(t, err, ErrInvalidDraftState)
}

func TestCreateOrUpdateBlock_AbortLeavesAppointments(t *testing.T) {
	f := newFixture(t, nil)
	appt, err := f.book(t, uuid.New(), at(wednesday, 10, 0))
	require.NoError(t, err)

	res, err := f.svc.CreateOrUpdateBlock(context.Background(), companyBlock(f.company.ID, at(wednesday, 10, 0), at(wednesday, 11, 0)))
	require.ErrorIs(t, err, ErrConflictsPending)

	aborted, err := f.svc.AbortBlock(context.Background(), f.company.ID, *res.DraftID)
	require.NoError(t, err)
	assert.Equal(t, DraftStateAborted, aborted.State)

	got, err := f.svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	_, err = f.repo.GetBlock(context.Background(), res.Block.ID)
	require.ErrorIs(t, err, ErrBlockNotFound)

	_, err = f.svc.ConfirmBlockWithCancellations(context.Background(), f.company.ID, *res.DraftID)
	require.ErrorIs(t, err, ErrInvalidDraftState)
}

func TestCreateOrUpdateBlock_ProfessionalScope(t *testing.T) {
	other := Professional{ID: uuid.New(), Name: "Dr. Bruno"}
	f := newFixture(t, func(s *ServiceOffering) { s.ProfessionalIDs = append(s.ProfessionalIDs, other.ID) })
	other.CompanyID = f.company.ID
	f.repo.AddProfessional(other)

	_, err := f.book(t, uuid.New(), at(wednesday, 10, 0))
	require.NoError(t, err)

	// a block on another professional does not conflict
	res, err := f.svc.CreateOrUpdateBlock(context.Background(), availability.Block{
		CompanyID:      f.company.ID,
		Target:         availability.TargetProfessional,
		ProfessionalID: &other.ID,
		Start:          at(wednesday, 10, 0),
		End:            at(wednesday, 11, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, DraftStateApplied, res.State)
	assert.Contains(t, f.slotStarts(t, wednesday), "11:00")
}

func TestCreateOrUpdateBlock_EditChecksNewWindowOnly(t *testing.T) {
	f := newFixture(t, nil)
	b := companyBlock(f.company.ID, at(wednesday, 12, 0), at(wednesday, 13, 0))
	res, err := f.svc.CreateOrUpdateBlock(context.Background(), b)
	require.NoError(t, err)

	_, err = f.book(t, uuid.New(), at(wednesday, 15, 0))
	require.NoError(t, err)

	edited := res.Block
	edited.Start = at(wednesday, 16, 0)
	edited.End = at(wednesday, 17, 0)
	moved, err := f.svc.CreateOrUpdateBlock(context.Background(), edited)
	require.NoError(t, err)
	assert.Equal(t, res.Block.ID, moved.Block.ID)

	starts := f.slotStarts(t, wednesday)
	assert.Contains(t, starts, "12:00")
	assert.NotContains(t, starts, "16:00")
}

func TestCreateOrUpdateBlock_WeeklyChecksImmediateOccurrence(t *testing.T) {
	f := newFixture(t, nil)
	appt, err := f.book(t, uuid.New(), at(wednesday, 9, 0))
	require.NoError(t, err)

	// stored on the previous Wednesday; the next occurrence is this one
	b := companyBlock(f.company.ID, at(wednesday, 9, 0).AddDate(0, 0, -7), at(wednesday, 10, 0).AddDate(0, 0, -7))
	b.RepeatsWeekly = true

	res, err := f.svc.CreateOrUpdateBlock(context.Background(), b)
	require.ErrorIs(t, err, ErrConflictsPending)
	assert.True(t, res.Window.Start.Equal(at(wednesday, 9, 0)))
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, appt.ID, res.Conflicts[0].ID)
}

func TestCreateOrUpdateBlock_WeeklyRecurrenceEnded(t *testing.T) {
	f := newFixture(t, nil)
	appt, err := f.book(t, uuid.New(), at(wednesday, 9, 0))
	require.NoError(t, err)

	// stored two weeks back, last repeated the Wednesday before this one
	until := at(wednesday, 12, 0).AddDate(0, 0, -7)
	b := companyBlock(f.company.ID, at(wednesday, 9, 0).AddDate(0, 0, -14), at(wednesday, 10, 0).AddDate(0, 0, -14))
	b.RepeatsWeekly = true
	b.RepeatUntil = &until

	res, err := f.svc.CreateOrUpdateBlock(context.Background(), b)
	require.ErrorIs(t, err, availability.ErrInvalidBlock)
	assert.Nil(t, res)

	got, err := f.svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Contains(t, f.slotStarts(t, wednesday.AddDate(0, 0, 7)), "09:00")
}

func TestCreateOrUpdateBlock_Validation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateOrUpdateBlock(context.Background(), companyBlock(f.company.ID, at(wednesday, 13, 0), at(wednesday, 12, 0)))
	require.ErrorIs(t, err, availability.ErrInvalidBlock)

	stranger := uuid.New()
	_, err = f.svc.CreateOrUpdateBlock(context.Background(), availability.Block{
		CompanyID: f.company.ID, Target: availability.TargetProfessional, ProfessionalID: &stranger,
		Start: at(wednesday, 9, 0), End: at(wednesday, 10, 0),
	})
	require.ErrorIs(t, err, ErrProfessionalNotFound)
}

func TestDeactivateBlock_RestoresSlots(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.CreateOrUpdateBlock(context.Background(), companyBlock(f.company.ID, at(wednesday, 12, 0), at(wednesday, 13, 0)))
	require.NoError(t, err)
	require.NotContains(t, f.slotStarts(t, wednesday), "12:00")

	_, err = f.svc.DeactivateBlock(context.Background(), uuid.New(), res.Block.ID)
	require.ErrorIs(t, err, ErrCompanyMismatch)

	b, err := f.svc.DeactivateBlock(context.Background(), f.company.ID, res.Block.ID)
	require.NoError(t, err)
	assert.False(t, b.Active)
	assert.Contains(t, f.slotStarts(t, wednesday), "12:00")
}

func TestBlockDraft_CompanyScoped(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.book(t, uuid.New(), at(wednesday, 10, 0))
	require.NoError(t, err)

	res, err := f.svc.CreateOrUpdateBlock(context.Background(), companyBlock(f.company.ID, at(wednesday, 10, 0), at(wednesday, 11, 0)))
	require.ErrorIs(t, err, ErrConflictsPending)

	_, err = f.svc.ConfirmBlockWithCancellations(context.Background(), uuid.New(), *res.DraftID)
	require.ErrorIs(t, err, ErrCompanyMismatch)
	_, err = f.svc.AbortBlock(context.Background(), f.company.ID, uuid.New())
	require.ErrorIs(t, err, ErrBlockDraftNotFound)
}

func TestSaveTemplate(t *testing.T) {
	f := newFixture(t, nil)

	broken := f.template
	broken.Days = map[time.Weekday]availability.DaySchedule{
		time.Wednesday: {Active: true, Intervals: []availability.TimeInterval{
			{Start: availability.NewTimeOfDay(9, 0), End: availability.NewTimeOfDay(12, 0)},
			{Start: availability.NewTimeOfDay(11, 0), End: availability.NewTimeOfDay(13, 0)},
		}},
	}
	_, err := f.svc.SaveTemplate(context.Background(), broken)
	require.ErrorIs(t, err, availability.ErrInvalidSchedule)

	shorter := f.template
	shorter.Days = map[time.Weekday]availability.DaySchedule{
		time.Wednesday: {Active: true, Intervals: []availability.TimeInterval{
			{Start: availability.NewTimeOfDay(14, 0), End: availability.NewTimeOfDay(16, 0)},
		}},
	}
	_, err = f.svc.SaveTemplate(context.Background(), shorter)
	require.NoError(t, err)
	assert.Equal(t, []string{"14:00", "15:00"}, f.slotStarts(t, wednesday))

	foreign := shorter
	foreign.CompanyID = uuid.New()
	_, err = f.svc.SaveTemplate(context.Background(), foreign)
	require.ErrorIs(t, err, ErrCompanyMismatch)
}
