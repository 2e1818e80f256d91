package projection

import (
	"context"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-day-scheduling/internal/checkpoint"
	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/readmodel"
	"github.com/hackgods/doctor-day-scheduling/internal/schema"
	"github.com/hackgods/doctor-day-scheduling/internal/subscription"
)

func discard() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

var june1 = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func scheduleDay(doctor day.DoctorID, date time.Time, slots int) command.ScheduleDay {
	cmd := command.ScheduleDay{DoctorID: doctor, Date: date}
	for i := 0; i < slots; i++ {
		cmd.Slots = append(cmd.Slots, command.SlotToSchedule{
			StartTime: date.Add(9*time.Hour + time.Duration(i)*day.SlotDuration),
			Duration:  day.SlotDuration,
		})
	}
	return cmd
}

func TestAvailableSlots_EndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	codec := schema.NewCodec()
	store := eventlog.NewMemoryStore()
	svc := command.NewService(store, codec, day.RandomSlotID, discard())
	repo := readmodel.NewMemoryAvailableSlots()
	sub := subscription.New(
		subscription.Config{ID: "projections", Filter: subscription.StreamPrefix(day.StreamPrefix)},
		store, checkpoint.NewStore(checkpoint.NewMemoryBackend(), checkpoint.DefaultBatchSize, discard()), discard(),
		NewAvailableSlots(repo, codec),
	)

	res, err := svc.Handle(ctx, scheduleDay("X", june1, 30))
	require.NoError(t, err)
	require.Len(t, res.Events, 31)
	fifth := res.Events[5].(day.SlotScheduled).SlotID

	_, err = svc.Handle(ctx, command.BookSlot{DayID: res.DayID, SlotID: fifth, PatientID: "jdoe"})
	require.NoError(t, err)
	require.NoError(t, sub.CatchUp(ctx))

	available, err := repo.AvailableOn(ctx, "2023-06-01")
	require.NoError(t, err)
	require.Len(t, available, 29)
	for _, s := range available {
		assert.NotEqual(t, fifth.String(), s.ID)
		assert.Equal(t, res.DayID.String(), s.DayID)
	}

	_, err = svc.Handle(ctx, command.CancelSlotBooking{DayID: res.DayID, SlotID: fifth, Reason: "moved"})
	require.NoError(t, err)
	_, err = svc.Handle(ctx, command.CancelDaySchedule{DayID: res.DayID})
	require.NoError(t, err)
	require.NoError(t, sub.CatchUp(ctx))

	available, err = repo.AvailableOn(ctx, "2023-06-01")
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestAvailableSlots_ReplayedBookingIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	codec := schema.NewCodec()
	p := NewAvailableSlots(readmodel.NewMemoryAvailableSlots(), codec)
	repo := p.repo.(*readmodel.MemoryAvailableSlots)

	slot := day.RandomSlotID()
	start := june1.Add(9 * time.Hour)
	recorded := func(e day.Event, position uint64) eventlog.RecordedEvent {
		data, err := codec.Encode(e, eventlog.Metadata{})
		require.NoError(t, err)
		return eventlog.RecordedEvent{ID: data.ID, Type: data.Type, Data: data.Data, Position: position}
	}

	scheduled := recorded(day.SlotScheduled{DayID: "X_2023-06-01", SlotID: slot, StartTime: start, Duration: day.SlotDuration}, 2)
	booked := recorded(day.SlotBooked{DayID: "X_2023-06-01", SlotID: slot, PatientID: "jdoe"}, 3)
	released := recorded(day.SlotBookingCancelled{DayID: "X_2023-06-01", SlotID: slot, Reason: "r"}, 4)

	require.NoError(t, p.Handle(ctx, scheduled))
	require.NoError(t, p.Handle(ctx, booked))
	once, _ := repo.Get(slot.String())

	require.NoError(t, p.Handle(ctx, booked))
	twice, _ := repo.Get(slot.String())
	assert.Equal(t, once, twice)
	assert.True(t, twice.IsBooked)
	assert.Equal(t, uint64(3), twice.Position)

	// a late redelivery of the booking cannot undo the newer release
	require.NoError(t, p.Handle(ctx, released))
	require.NoError(t, p.Handle(ctx, booked))
	row, _ := repo.Get(slot.String())
	assert.False(t, row.IsBooked)
	assert.Equal(t, uint64(4), row.Position)
}
