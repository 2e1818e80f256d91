package day

import "time"

const (
	TypeDayScheduled          = "DayScheduled_V1"
	TypeSlotScheduled         = "SlotScheduled_V1"
	TypeSlotBooked            = "SlotBooked_V1"
	TypeSlotBookingCancelled  = "SlotBookingCancelled_V1"
	TypeSlotScheduleCancelled = "SlotScheduleCancelled_V1"
	TypeDayScheduleCancelled  = "DayScheduleCancelled_V1"
	TypeDayScheduleArchived   = "DayScheduleArchived_V1"
)

// Event is the closed set of facts recorded on a day stream.
type Event interface {
	EventType() string
	dayEvent()
}

type DayScheduled struct {
	DayID    DayID     `json:"dayId"`
	DoctorID DoctorID  `json:"doctorId"`
	Date     time.Time `json:"date"`
}

type SlotScheduled struct {
	DayID     DayID         `json:"dayId"`
	SlotID    SlotID        `json:"slotId"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
}

type SlotBooked struct {
	DayID     DayID     `json:"dayId"`
	SlotID    SlotID    `json:"slotId"`
	PatientID PatientID `json:"patientId"`
}

type SlotBookingCancelled struct {
	DayID  DayID  `json:"dayId"`
	SlotID SlotID `json:"slotId"`
	Reason string `json:"reason"`
}

type SlotScheduleCancelled struct {
	DayID  DayID  `json:"dayId"`
	SlotID SlotID `json:"slotId"`
}

type DayScheduleCancelled struct {
	DayID DayID `json:"dayId"`
}

type DayScheduleArchived struct {
	DayID DayID `json:"dayId"`
}

func (DayScheduled) EventType() string          { return TypeDayScheduled }
func (SlotScheduled) EventType() string         { return TypeSlotScheduled }
func (SlotBooked) EventType() string            { return TypeSlotBooked }
func (SlotBookingCancelled) EventType() string  { return TypeSlotBookingCancelled }
func (SlotScheduleCancelled) EventType() string { return TypeSlotScheduleCancelled }
func (DayScheduleCancelled) EventType() string  { return TypeDayScheduleCancelled }
func (DayScheduleArchived) EventType() string   { return TypeDayScheduleArchived }

func (DayScheduled) dayEvent()          {}
func (SlotScheduled) dayEvent()         {}
func (SlotBooked) dayEvent()            {}
func (SlotBookingCancelled) dayEvent()  {}
func (SlotScheduleCancelled) dayEvent() {}
func (DayScheduleCancelled) dayEvent()  {}
func (DayScheduleArchived) dayEvent()   {}

// Prototypes returns a zero value of every day event, for codec registration.
func Prototypes() []Event {
	return []Event{
		DayScheduled{},
		SlotScheduled{},
		SlotBooked{},
		SlotBookingCancelled{},
		SlotScheduleCancelled{},
		DayScheduleCancelled{},
		DayScheduleArchived{},
	}
}
