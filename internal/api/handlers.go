package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inconshreveable/log15"

	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/readmodel"
)

// CommandService applies commands to the event log.
type CommandService interface {
	Handle(ctx context.Context, cmd command.Command) (*command.Result, error)
}

type handlers struct {
	svc    CommandService
	slots  readmodel.AvailableSlots
	now    func() time.Time
	logger log15.Logger
}

// commandContext carries the request id into the metadata of appended events.
func commandContext(r *http.Request) context.Context {
	return eventlog.WithMetadata(r.Context(), eventlog.Metadata{CorrelationID: GetRequestID(r.Context())})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func dayIDParam(w http.ResponseWriter, r *http.Request) (day.DayID, bool) {
	id, err := day.ParseDayID(chi.URLParam(r, "dayId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day_id", "dayId must look like <doctor>_<yyyy-MM-dd>")
		return "", false
	}
	return id, true
}

func slotIDField(w http.ResponseWriter, raw string) (day.SlotID, bool) {
	id, err := day.ParseSlotID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
		return day.SlotID{}, false
	}
	return id, true
}

func (h *handlers) execute(w http.ResponseWriter, r *http.Request, cmd command.Command) (*command.Result, bool) {
	res, err := h.svc.Handle(commandContext(r), cmd)
	if err != nil {
		if _, ok := day.AsError(err); !ok {
			h.logger.Error("Command failed.", "command", cmd.MessageType(), "request_id", GetRequestID(r.Context()), "err", err)
		}
		writeCommandError(w, err)
		return nil, false
	}
	return res, true
}

func (h *handlers) scheduleDay(w http.ResponseWriter, r *http.Request) {
	var req ScheduleDayRequest
	if !decodeBody(w, r, &req) {
		return
	}

	doctorID, err := day.NewDoctorID(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id is required")
		return
	}
	date, err := day.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be yyyy-MM-dd")
		return
	}

	cmd := command.ScheduleDay{DoctorID: doctorID, Date: date}
	for _, s := range req.Slots {
		d, err := time.ParseDuration(s.Duration)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a Go duration such as 10m")
			return
		}
		cmd.Slots = append(cmd.Slots, command.SlotToSchedule{StartTime: s.StartTime, Duration: d})
	}

	res, ok := h.execute(w, r, cmd)
	if !ok {
		return
	}

	resp := ScheduleDayResponse{DayID: res.DayID.String(), Events: len(res.Events), SlotIDs: []string{}}
	for _, e := range res.Events {
		if s, ok := e.(day.SlotScheduled); ok {
			resp.SlotIDs = append(resp.SlotIDs, s.SlotID.String())
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *handlers) scheduleSlot(w http.ResponseWriter, r *http.Request) {
	dayID, ok := dayIDParam(w, r)
	if !ok {
		return
	}
	var req SlotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a Go duration such as 10m")
		return
	}

	res, ok := h.execute(w, r, command.ScheduleSlot{DayID: dayID, StartTime: req.StartTime, Duration: d})
	if !ok {
		return
	}

	resp := ScheduleSlotResponse{DayID: dayID.String()}
	if len(res.Events) > 0 {
		if s, ok := res.Events[0].(day.SlotScheduled); ok {
			resp.SlotID = s.SlotID.String()
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *handlers) bookSlot(w http.ResponseWriter, r *http.Request) {
	dayID, ok := dayIDParam(w, r)
	if !ok {
		return
	}
	var req BookSlotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	slotID, ok := slotIDField(w, req.SlotID)
	if !ok {
		return
	}
	patientID, err := day.NewPatientID(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id is required")
		return
	}

	if _, ok := h.execute(w, r, command.BookSlot{DayID: dayID, SlotID: slotID, PatientID: patientID}); ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	dayID, ok := dayIDParam(w, r)
	if !ok {
		return
	}
	var req CancelBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	slotID, ok := slotIDField(w, req.SlotID)
	if !ok {
		return
	}

	if _, ok := h.execute(w, r, command.CancelSlotBooking{DayID: dayID, SlotID: slotID, Reason: req.Reason}); ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) cancelDay(w http.ResponseWriter, r *http.Request) {
	dayID, ok := dayIDParam(w, r)
	if !ok {
		return
	}
	if _, ok := h.execute(w, r, command.CancelDaySchedule{DayID: dayID}); ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) archiveDay(w http.ResponseWriter, r *http.Request) {
	dayID, ok := dayIDParam(w, r)
	if !ok {
		return
	}
	if _, ok := h.execute(w, r, command.ArchiveDaySchedule{DayID: dayID}); ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) dayStarted(w http.ResponseWriter, r *http.Request) {
	date, err := day.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be yyyy-MM-dd")
		return
	}
	if _, ok := h.execute(w, r, command.StartCalendarDay{Date: date}); ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) availableOn(w http.ResponseWriter, r *http.Request) {
	date, err := day.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be yyyy-MM-dd")
		return
	}
	h.writeAvailable(w, r, date)
}

func (h *handlers) availableToday(w http.ResponseWriter, r *http.Request) {
	h.writeAvailable(w, r, day.DateOf(h.now()))
}

func (h *handlers) writeAvailable(w http.ResponseWriter, r *http.Request, date time.Time) {
	slots, err := h.slots.AvailableOn(r.Context(), date.Format(day.DateLayout))
	if err != nil {
		h.logger.Error("Available slots query failed.", "date", date.Format(day.DateLayout), "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := make([]AvailableSlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, AvailableSlotResponse{
			SlotID:    s.ID,
			DayID:     s.DayID,
			Date:      s.Date,
			StartTime: s.StartTime,
			Duration:  s.Duration.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
