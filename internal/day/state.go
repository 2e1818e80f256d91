package day

import "time"

const (
	// SlotDuration is the only duration a slot may have.
	SlotDuration = 10 * time.Minute

	maxScheduledHours = 6

	// Capacity is the maximum number of slots in a day.
	Capacity = maxScheduledHours * 60 / int(SlotDuration/time.Minute)
)

type Slot struct {
	ID        SlotID
	StartTime time.Time
	Duration  time.Duration
	Booked    bool
	PatientID PatientID
}

func (s Slot) End() time.Time { return s.StartTime.Add(s.Duration) }

// State is the folded view of a day stream. Slots keep scheduling order.
type State struct {
	DayID     DayID
	DoctorID  DoctorID
	Date      time.Time
	Archived  bool
	Cancelled bool
	Slots     []Slot
}

// Fold applies one event and returns the next state. s is never modified.
func Fold(s State, e Event) State {
	switch ev := e.(type) {
	case DayScheduled:
		s.DayID = ev.DayID
		s.DoctorID = ev.DoctorID
		s.Date = DateOf(ev.Date)
	case SlotScheduled:
		s.Slots = append(s.copySlots(), Slot{ID: ev.SlotID, StartTime: ev.StartTime, Duration: ev.Duration})
	case SlotBooked:
		s.Slots = s.withBooked(ev.SlotID, ev.PatientID)
	case SlotBookingCancelled:
		s.Slots = s.withBooked(ev.SlotID, "")
	case SlotScheduleCancelled:
		slots := make([]Slot, 0, len(s.Slots))
		for _, sl := range s.Slots {
			if sl.ID != ev.SlotID {
				slots = append(slots, sl)
			}
		}
		s.Slots = slots
	case DayScheduleCancelled:
		s.Cancelled = true
	case DayScheduleArchived:
		s.Archived = true
	}
	return s
}

func (s State) copySlots() []Slot {
	out := make([]Slot, len(s.Slots), len(s.Slots)+1)
	copy(out, s.Slots)
	return out
}

// withBooked books the slot for patient, or releases it when patient is empty.
func (s State) withBooked(id SlotID, patient PatientID) []Slot {
	out := s.copySlots()
	for i := range out {
		if out[i].ID == id {
			out[i].Booked = patient != ""
			out[i].PatientID = patient
		}
	}
	return out
}

func (s State) Full() bool { return len(s.Slots) >= Capacity }

func (s State) Slot(id SlotID) (Slot, bool) {
	for _, sl := range s.Slots {
		if sl.ID == id {
			return sl, true
		}
	}
	return Slot{}, false
}

func (s State) HasSlot(id SlotID) bool {
	_, ok := s.Slot(id)
	return ok
}

func (s State) IsSlotBooked(id SlotID) bool {
	sl, ok := s.Slot(id)
	return ok && sl.Booked
}

func (s State) BookedSlots() []Slot {
	var out []Slot
	for _, sl := range s.Slots {
		if sl.Booked {
			out = append(out, sl)
		}
	}
	return out
}

// Overlaps reports whether [start, start+duration) intersects any scheduled slot.
func (s State) Overlaps(start time.Time, duration time.Duration) bool {
	end := start.Add(duration)
	for _, sl := range s.Slots {
		if start.Before(sl.End()) && end.After(sl.StartTime) {
			return true
		}
	}
	return false
}

func (s State) SameDate(t time.Time) bool {
	return DateOf(t).Equal(s.Date)
}
