package day

import "time"

// NoVersion is the version of a day that has no events.
const NoVersion int64 = -1

// Day is the aggregate: folded state plus the stream version it was loaded at.
type Day struct {
	Version int64
	State   State
}

func New() Day {
	return Day{Version: NoVersion}
}

// Replay folds events on top of d. version is the stream version of the last event.
func Replay(d Day, version int64, events []Event) Day {
	for _, e := range events {
		d.State = Fold(d.State, e)
	}
	if len(events) > 0 {
		d.Version = version
	}
	return d
}

func (d Day) Scheduled() bool { return d.Version > NoVersion }

type SlotSpec struct {
	StartTime time.Time
	Duration  time.Duration
}

// Schedule opens the day and schedules the given slots in order. Each slot is
// validated against the slots before it.
func (d Day) Schedule(doctorID DoctorID, date time.Time, slots []SlotSpec, newID IDGenerator) ([]Event, error) {
	if d.Scheduled() {
		return nil, ErrDayAlreadyScheduled
	}
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}

	id := NewDayID(doctorID, date)
	events := []Event{DayScheduled{DayID: id, DoctorID: doctorID, Date: DateOf(date)}}
	state := Fold(d.State, events[0])

	for _, spec := range slots {
		if err := checkSlot(state, spec.StartTime, spec.Duration); err != nil {
			return nil, err
		}
		e := SlotScheduled{DayID: id, SlotID: newID(), StartTime: spec.StartTime, Duration: spec.Duration}
		state = Fold(state, e)
		events = append(events, e)
	}
	return events, nil
}

func (d Day) ScheduleSlot(start time.Time, duration time.Duration, newID IDGenerator) ([]Event, error) {
	if err := d.ensureMutable(); err != nil {
		return nil, err
	}
	if err := checkSlot(d.State, start, duration); err != nil {
		return nil, err
	}
	return []Event{SlotScheduled{DayID: d.State.DayID, SlotID: newID(), StartTime: start, Duration: duration}}, nil
}

func (d Day) BookSlot(slotID SlotID, patientID PatientID) ([]Event, error) {
	if err := d.ensureMutable(); err != nil {
		return nil, err
	}
	if !d.State.HasSlot(slotID) {
		return nil, ErrSlotNotScheduled
	}
	if d.State.IsSlotBooked(slotID) {
		return nil, ErrSlotAlreadyBooked
	}
	return []Event{SlotBooked{DayID: d.State.DayID, SlotID: slotID, PatientID: patientID}}, nil
}

func (d Day) CancelSlotBooking(slotID SlotID, reason string) ([]Event, error) {
	if err := d.ensureMutable(); err != nil {
		return nil, err
	}
	if !d.State.HasSlot(slotID) {
		return nil, ErrSlotNotScheduled
	}
	if !d.State.IsSlotBooked(slotID) {
		return nil, ErrSlotNotBooked
	}
	return []Event{SlotBookingCancelled{DayID: d.State.DayID, SlotID: slotID, Reason: reason}}, nil
}

// CancelPatientBooking cancels the booking only while patientID still holds it.
func (d Day) CancelPatientBooking(slotID SlotID, patientID PatientID, reason string) ([]Event, error) {
	events, err := d.CancelSlotBooking(slotID, reason)
	if err != nil {
		return nil, err
	}
	if sl, _ := d.State.Slot(slotID); sl.PatientID != patientID {
		return nil, ErrBookingHeldByOther
	}
	return events, nil
}

// CancelDayReason is recorded on bookings released by CancelDaySchedule.
const CancelDayReason = "Day cancelled."

// CancelDaySchedule releases every booking, then every slot, then the day.
func (d Day) CancelDaySchedule() ([]Event, error) {
	if err := d.ensureMutable(); err != nil {
		return nil, err
	}
	id := d.State.DayID
	var events []Event
	for _, sl := range d.State.BookedSlots() {
		events = append(events, SlotBookingCancelled{DayID: id, SlotID: sl.ID, Reason: CancelDayReason})
	}
	for _, sl := range d.State.Slots {
		events = append(events, SlotScheduleCancelled{DayID: id, SlotID: sl.ID})
	}
	return append(events, DayScheduleCancelled{DayID: id}), nil
}

// Archive is allowed on a cancelled day.
func (d Day) Archive() ([]Event, error) {
	if !d.Scheduled() {
		return nil, ErrDayNotScheduled
	}
	if d.State.Archived {
		return nil, ErrDayAlreadyArchived
	}
	return []Event{DayScheduleArchived{DayID: d.State.DayID}}, nil
}

func (d Day) ensureMutable() error {
	if !d.Scheduled() {
		return ErrDayNotScheduled
	}
	return d.ensureOpen()
}

func (d Day) ensureOpen() error {
	if d.State.Archived {
		return ErrDayAlreadyArchived
	}
	if d.State.Cancelled {
		return ErrDayAlreadyCancelled
	}
	return nil
}

func checkSlot(s State, start time.Time, duration time.Duration) error {
	switch {
	case !s.SameDate(start):
		return ErrSlotForWrongDay
	case duration != SlotDuration:
		return ErrSlotDurationInvalid
	case s.Full():
		return ErrDayFull
	case s.Overlaps(start, duration):
		return ErrSlotOverlaps
	}
	return nil
}
