package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-day-scheduling/internal/calendar"
	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/logging"
	"github.com/hackgods/doctor-day-scheduling/internal/readmodel"
	"github.com/hackgods/doctor-day-scheduling/internal/schema"
)

type fixture struct {
	store  *eventlog.MemoryStore
	slots  *readmodel.MemoryAvailableSlots
	server *httptest.Server
}

func newFixture(t *testing.T, svc CommandService, deps ...Dependency) *fixture {
	t.Helper()
	f := &fixture{store: eventlog.NewMemoryStore(), slots: readmodel.NewMemoryAvailableSlots()}
	if svc == nil {
		svc = command.NewService(f.store, schema.NewCodec(), day.RandomSlotID, logging.Discard())
	}
	f.server = httptest.NewServer(NewRouter(RouterConfig{
		Service:        svc,
		AvailableSlots: f.slots,
		Dependencies:   deps,
		Logger:         logging.Discard(),
		Env:            "test",
		Now:            func() time.Time { return time.Date(2023, 6, 1, 15, 0, 0, 0, time.UTC) },
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func scheduleRequest(slots int) ScheduleDayRequest {
	req := ScheduleDayRequest{DoctorID: "doc-1", Date: "2023-06-01"}
	start := time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < slots; i++ {
		req.Slots = append(req.Slots, SlotRequest{StartTime: start.Add(time.Duration(i) * 10 * time.Minute), Duration: "10m"})
	}
	return req
}

func TestScheduleBookAndCancel(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/v1/doctor/schedule", scheduleRequest(3), "X-Request-ID", "req-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "req-1", resp.Header.Get("X-Request-ID"))
	scheduled := decode[ScheduleDayResponse](t, resp)
	assert.Equal(t, "doc-1_2023-06-01", scheduled.DayID)
	assert.Equal(t, 4, scheduled.Events)
	require.Len(t, scheduled.SlotIDs, 3)

	events, err := f.store.ReadStream(context.Background(), "Day-doc-1_2023-06-01", 0, eventlog.Forwards)
	require.NoError(t, err)
	for _, e := range events {
		assert.Equal(t, "req-1", e.Metadata.CorrelationID)
	}

	book := BookSlotRequest{SlotID: scheduled.SlotIDs[1], PatientID: "jdoe"}
	resp = f.do(t, http.MethodPut, "/api/v1/slots/doc-1_2023-06-01/book", book)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/api/v1/slots/doc-1_2023-06-01/book", book)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, ErrorResponse{Error: "slot_already_booked", Details: day.ErrSlotAlreadyBooked.Message}, decode[ErrorResponse](t, resp))

	resp = f.do(t, http.MethodPut, "/api/v1/slots/doc-1_2023-06-01/cancel-booking", CancelBookingRequest{SlotID: scheduled.SlotIDs[1], Reason: "sick"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/days/doc-1_2023-06-01/slots", SlotRequest{StartTime: time.Date(2023, 6, 1, 14, 0, 0, 0, time.UTC), Duration: "10m"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, decode[ScheduleSlotResponse](t, resp).SlotID)

	resp = f.do(t, http.MethodPost, "/api/v1/days/doc-1_2023-06-01/cancel", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/days/doc-1_2023-06-01/archive", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPut, "/api/v1/slots/doc-1_2023-06-01/book", BookSlotRequest{SlotID: day.RandomSlotID().String(), PatientID: "jdoe"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "day_not_scheduled", decode[ErrorResponse](t, resp).Error)

	resp = f.do(t, http.MethodPost, "/api/v1/doctor/schedule", scheduleRequest(1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/v1/doctor/schedule", scheduleRequest(1))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "day_already_scheduled", decode[ErrorResponse](t, resp).Error)

	resp = f.do(t, http.MethodPost, "/api/v1/days/doc-1_2023-06-01/slots", SlotRequest{StartTime: time.Date(2023, 6, 1, 9, 5, 0, 0, time.UTC), Duration: "10m"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "slot_overlaps", decode[ErrorResponse](t, resp).Error)

	resp = f.do(t, http.MethodPut, "/api/v1/slots/not-a-day/book", BookSlotRequest{SlotID: day.RandomSlotID().String(), PatientID: "jdoe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_day_id", decode[ErrorResponse](t, resp).Error)

	resp = f.do(t, http.MethodPut, "/api/v1/slots/doc-1_2023-06-01/book", BookSlotRequest{SlotID: "nope", PatientID: "jdoe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_slot_id", decode[ErrorResponse](t, resp).Error)
}

type conflictingService struct{}

func (conflictingService) Handle(context.Context, command.Command) (*command.Result, error) {
	return nil, command.ErrConcurrencyConflict
}

func TestConcurrencyConflictIs409(t *testing.T) {
	f := newFixture(t, conflictingService{})

	resp := f.do(t, http.MethodPost, "/api/v1/days/doc-1_2023-06-01/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "concurrency_conflict", decode[ErrorResponse](t, resp).Error)
}

func TestDayStarted(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/v1/calendar/2023-07-15/day-started", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	events, err := f.store.ReadStream(context.Background(), calendar.StreamName, 0, eventlog.Forwards)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, calendar.TypeDayStarted, events[0].Type)

	resp = f.do(t, http.MethodPost, "/api/v1/calendar/15-07-2023/day-started", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAvailableSlots(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	start := time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.slots.Add(ctx, readmodel.AvailableSlot{ID: "b", DayID: "doc-1_2023-06-01", Date: "2023-06-01", StartTime: start.Add(10 * time.Minute), Duration: 10 * time.Minute, Position: 3}))
	require.NoError(t, f.slots.Add(ctx, readmodel.AvailableSlot{ID: "a", DayID: "doc-1_2023-06-01", Date: "2023-06-01", StartTime: start, Duration: 10 * time.Minute, Position: 2}))
	require.NoError(t, f.slots.Add(ctx, readmodel.AvailableSlot{ID: "c", DayID: "doc-2_2023-06-02", Date: "2023-06-02", StartTime: start.AddDate(0, 0, 1), Duration: 10 * time.Minute, Position: 4}))
	require.NoError(t, f.slots.SetBooked(ctx, "b", true, 5))

	resp := f.do(t, http.MethodGet, "/api/v1/slots/2023-06-02/available", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[[]AvailableSlotResponse](t, resp)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].SlotID)
	assert.Equal(t, "10m0s", got[0].Duration)

	resp = f.do(t, http.MethodGet, "/api/v1/slots/today/available", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[[]AvailableSlotResponse](t, resp)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].SlotID)

	resp = f.do(t, http.MethodGet, "/api/v1/slots/2023-06-03/available", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]AvailableSlotResponse](t, resp))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadiness(t *testing.T) {
	up := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	f := newFixture(t, nil,
		Dependency{Name: "postgres", Pinger: up},
		Dependency{Name: "redis", Pinger: down, Optional: true},
	)
	resp := f.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[ReadinessResponse](t, resp)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "down"}, ready.Dependencies)

	f = newFixture(t, nil, Dependency{Name: "mongo", Pinger: down})
	resp = f.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
