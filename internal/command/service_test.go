package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-day-scheduling/internal/calendar"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/queue"
	"github.com/hackgods/doctor-day-scheduling/internal/schema"
)

var (
	_ Handler       = (*Service)(nil)
	_ queue.Payload = BookSlot{}

	testDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
)

func discard() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

func newService(store eventlog.Store) *Service {
	return NewService(store, schema.NewCodec(), day.RandomSlotID, discard())
}

func scheduleDay(slots int) ScheduleDay {
	cmd := ScheduleDay{DoctorID: "doc-1", Date: testDate}
	for i := 0; i < slots; i++ {
		cmd.Slots = append(cmd.Slots, SlotToSchedule{
			StartTime: testDate.Add(9*time.Hour + time.Duration(i)*day.SlotDuration),
			Duration:  day.SlotDuration,
		})
	}
	return cmd
}

func TestHandle_ScheduleDay(t *testing.T) {
	t.Parallel()
	ctx := eventlog.WithMetadata(context.Background(), eventlog.Metadata{CorrelationID: "req-1"})
	store := eventlog.NewMemoryStore()
	svc := newService(store)

	res, err := svc.Handle(ctx, scheduleDay(30))
	require.NoError(t, err)
	assert.Equal(t, day.DayID("doc-1_2023-06-01"), res.DayID)
	assert.Len(t, res.Events, 31)
	assert.Equal(t, int64(30), res.NextExpectedVersion)

	recorded, err := store.ReadStream(ctx, "Day-doc-1_2023-06-01", 0, eventlog.Forwards)
	require.NoError(t, err)
	require.Len(t, recorded, 31)
	assert.Equal(t, day.TypeDayScheduled, recorded[0].Type)
	assert.Equal(t, "req-1", recorded[0].Metadata.CorrelationID)

	_, err = svc.Handle(ctx, scheduleDay(1))
	assert.ErrorIs(t, err, day.ErrDayAlreadyScheduled)
}

func TestHandle_ExistingStreamRequiresDay(t *testing.T) {
	t.Parallel()
	svc := newService(eventlog.NewMemoryStore())

	_, err := svc.Handle(context.Background(), BookSlot{DayID: "doc-1_2023-06-01", SlotID: day.RandomSlotID(), PatientID: "jdoe"})
	require.ErrorIs(t, err, day.ErrDayNotScheduled)
	assert.False(t, IsRetryable(err))
}

func TestHandle_BookAndCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(eventlog.NewMemoryStore())

	res, err := svc.Handle(ctx, scheduleDay(2))
	require.NoError(t, err)
	slot := res.Events[1].(day.SlotScheduled).SlotID

	_, err = svc.Handle(ctx, BookSlot{DayID: res.DayID, SlotID: slot, PatientID: "jdoe"})
	require.NoError(t, err)
	_, err = svc.Handle(ctx, BookSlot{DayID: res.DayID, SlotID: slot, PatientID: "jdoe"})
	assert.ErrorIs(t, err, day.ErrSlotAlreadyBooked)

	_, err = svc.Handle(ctx, CancelSlotBooking{DayID: res.DayID, SlotID: slot, Reason: "sick"})
	require.NoError(t, err)

	d, err := svc.Load(ctx, res.DayID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), d.Version)
	assert.False(t, d.State.IsSlotBooked(slot))
}

func TestHandle_ScheduleSlotAndCancelDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(eventlog.NewMemoryStore())

	res, err := svc.Handle(ctx, scheduleDay(0))
	require.NoError(t, err)

	_, err = svc.Handle(ctx, ScheduleSlot{DayID: res.DayID, StartTime: testDate.Add(10 * time.Hour), Duration: day.SlotDuration})
	require.NoError(t, err)
	_, err = svc.Handle(ctx, ScheduleSlot{DayID: res.DayID, StartTime: testDate.Add(10*time.Hour + 5*time.Minute), Duration: day.SlotDuration})
	assert.ErrorIs(t, err, day.ErrSlotOverlaps)

	out, err := svc.Handle(ctx, CancelDaySchedule{DayID: res.DayID})
	require.NoError(t, err)
	assert.Len(t, out.Events, 2)

	_, err = svc.Handle(ctx, ArchiveDaySchedule{DayID: res.DayID})
	require.NoError(t, err)
	_, err = svc.Handle(ctx, ArchiveDaySchedule{DayID: res.DayID})
	assert.ErrorIs(t, err, day.ErrDayAlreadyArchived)
}

// racingStore lets another writer append between load and append.
type racingStore struct {
	eventlog.Store
	once  sync.Once
	racer func()
}

func (s *racingStore) AppendEvents(ctx context.Context, stream string, expected eventlog.ExpectedVersion, events []eventlog.EventData) (eventlog.AppendResult, error) {
	s.once.Do(s.racer)
	return s.Store.AppendEvents(ctx, stream, expected, events)
}

func TestHandle_ConcurrencyConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := eventlog.NewMemoryStore()
	setup := newService(mem)

	res, err := setup.Handle(ctx, scheduleDay(2))
	require.NoError(t, err)
	first := res.Events[1].(day.SlotScheduled).SlotID
	second := res.Events[2].(day.SlotScheduled).SlotID

	racing := &racingStore{Store: mem}
	racing.racer = func() {
		_, err := setup.Handle(ctx, BookSlot{DayID: res.DayID, SlotID: second, PatientID: "other"})
		require.NoError(t, err)
	}
	svc := newService(racing)

	_, err = svc.Handle(ctx, BookSlot{DayID: res.DayID, SlotID: first, PatientID: "jdoe"})
	require.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.True(t, IsRetryable(err))

	// nothing from the rejected append reached the log
	d, err := setup.Load(ctx, res.DayID)
	require.NoError(t, err)
	assert.False(t, d.State.IsSlotBooked(first))

	_, err = svc.Handle(ctx, BookSlot{DayID: res.DayID, SlotID: first, PatientID: "jdoe"})
	assert.NoError(t, err)
}

func TestHandle_StartCalendarDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := eventlog.NewMemoryStore()
	svc := newService(store)

	for i := 0; i < 2; i++ {
		_, err := svc.Handle(ctx, StartCalendarDay{Date: testDate.Add(13 * time.Hour)})
		require.NoError(t, err)
	}

	recorded, err := store.ReadStream(ctx, calendar.StreamName, 0, eventlog.Forwards)
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	assert.Equal(t, calendar.TypeDayStarted, recorded[0].Type)
}

func TestDecode(t *testing.T) {
	t.Parallel()
	q := queue.NewMemoryQueue()
	slot := day.RandomSlotID()
	want := CancelSlotBooking{DayID: "doc-1_2023-06-01", SlotID: slot, Reason: "limit"}
	require.NoError(t, q.Produce(context.Background(), "cmds", eventlog.Metadata{}, want))

	msg := q.Messages("cmds")[0]
	got, err := Decode(msg.Type, msg.Data)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Decode("Nope", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

// scriptedHandler fails with the queued errors before succeeding.
type scriptedHandler struct {
	mu    sync.Mutex
	errs  []error
	calls []Command
	md    []eventlog.Metadata
}

func (h *scriptedHandler) Handle(ctx context.Context, cmd Command) (*Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, cmd)
	h.md = append(h.md, eventlog.MetadataFrom(ctx))
	if len(h.errs) > 0 {
		err := h.errs[0]
		h.errs = h.errs[1:]
		return nil, err
	}
	return &Result{}, nil
}

func testWorker(h Handler) *Worker {
	w := NewWorker(queue.NewMemoryQueue(), h, "cmds", "g", "w1", discard())
	w.newBackOff = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5) }
	return w
}

func message(t *testing.T, cmd Command, md eventlog.Metadata) queue.Message {
	t.Helper()
	q := queue.NewMemoryQueue()
	require.NoError(t, q.Produce(context.Background(), "cmds", md, cmd))
	return q.Messages("cmds")[0]
}

func TestWorker_RetriesConflicts(t *testing.T) {
	t.Parallel()
	h := &scriptedHandler{errs: []error{ErrConcurrencyConflict, ErrConcurrencyConflict}}
	w := testWorker(h)
	md := eventlog.Metadata{CorrelationID: "c", CausationID: "e"}

	err := w.handle(context.Background(), message(t, ArchiveDaySchedule{DayID: "doc_2023-06-01"}, md))
	require.NoError(t, err)
	assert.Len(t, h.calls, 3)
	assert.Equal(t, md, h.md[2])
}

func TestWorker_AcksDomainRejections(t *testing.T) {
	t.Parallel()
	h := &scriptedHandler{errs: []error{day.ErrSlotNotBooked}}
	w := testWorker(h)

	err := w.handle(context.Background(), message(t, CancelSlotBooking{DayID: "doc_2023-06-01", SlotID: day.RandomSlotID()}, eventlog.Metadata{}))
	require.NoError(t, err)
	assert.Len(t, h.calls, 1)
}

func TestWorker_LeavesInfraFailuresPending(t *testing.T) {
	t.Parallel()
	boom := errors.New("store down")
	h := &scriptedHandler{errs: []error{boom, boom, boom, boom, boom, boom, boom}}
	w := testWorker(h)

	err := w.handle(context.Background(), message(t, ArchiveDaySchedule{DayID: "doc_2023-06-01"}, eventlog.Metadata{}))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, h.calls, 6)
}

func TestWorker_Run(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	store := eventlog.NewMemoryStore()
	svc := newService(store)
	res, err := svc.Handle(ctx, scheduleDay(1))
	require.NoError(t, err)

	q := queue.NewMemoryQueue()
	require.NoError(t, q.Produce(ctx, "cmds", eventlog.Metadata{}, ArchiveDaySchedule{DayID: res.DayID}))

	w := NewWorker(q, svc, "cmds", "g", "w1", discard())
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool {
		d, err := svc.Load(ctx, res.DayID)
		return err == nil && d.State.Archived
	}, time.Second, 10*time.Millisecond)
}
