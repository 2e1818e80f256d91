package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hackgods/doctor-day-scheduling/internal/day"
)

const (
	TypeScheduleDay        = "ScheduleDay"
	TypeScheduleSlot       = "ScheduleSlot"
	TypeBookSlot           = "BookSlot"
	TypeCancelSlotBooking  = "CancelSlotBooking"
	TypeCancelDaySchedule  = "CancelDaySchedule"
	TypeArchiveDaySchedule = "ArchiveDaySchedule"
	TypeStartCalendarDay   = "StartCalendarDay"
)

// Command is a request to change state. MessageType names it on the wire.
type Command interface {
	MessageType() string
}

type SlotToSchedule struct {
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
}

type ScheduleDay struct {
	DoctorID day.DoctorID     `json:"doctorId"`
	Date     time.Time        `json:"date"`
	Slots    []SlotToSchedule `json:"slots"`
}

type ScheduleSlot struct {
	DayID     day.DayID     `json:"dayId"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
}

type BookSlot struct {
	DayID     day.DayID     `json:"dayId"`
	SlotID    day.SlotID    `json:"slotId"`
	PatientID day.PatientID `json:"patientId"`
}

// CancelSlotBooking releases a booking. With PatientID set it only applies
// while that patient still holds the slot.
type CancelSlotBooking struct {
	DayID     day.DayID     `json:"dayId"`
	SlotID    day.SlotID    `json:"slotId"`
	PatientID day.PatientID `json:"patientId,omitempty"`
	Reason    string        `json:"reason"`
}

type CancelDaySchedule struct {
	DayID day.DayID `json:"dayId"`
}

type ArchiveDaySchedule struct {
	DayID day.DayID `json:"dayId"`
}

// StartCalendarDay records that a calendar date has begun.
type StartCalendarDay struct {
	Date time.Time `json:"date"`
}

func (ScheduleDay) MessageType() string        { return TypeScheduleDay }
func (ScheduleSlot) MessageType() string       { return TypeScheduleSlot }
func (BookSlot) MessageType() string           { return TypeBookSlot }
func (CancelSlotBooking) MessageType() string  { return TypeCancelSlotBooking }
func (CancelDaySchedule) MessageType() string  { return TypeCancelDaySchedule }
func (ArchiveDaySchedule) MessageType() string { return TypeArchiveDaySchedule }
func (StartCalendarDay) MessageType() string   { return TypeStartCalendarDay }

// target says whether a command opens a new stream or changes an existing one.
type target int

const (
	newStream target = iota + 1
	existingStream
)

// dayCommand is a command handled by the day aggregate.
type dayCommand interface {
	Command
	dayID() day.DayID
	decide(d day.Day, newID day.IDGenerator) ([]day.Event, error)
}

var routes = map[string]target{
	TypeScheduleDay:        newStream,
	TypeScheduleSlot:       existingStream,
	TypeBookSlot:           existingStream,
	TypeCancelSlotBooking:  existingStream,
	TypeCancelDaySchedule:  existingStream,
	TypeArchiveDaySchedule: existingStream,
}

func (c ScheduleDay) dayID() day.DayID        { return day.NewDayID(c.DoctorID, c.Date) }
func (c ScheduleSlot) dayID() day.DayID       { return c.DayID }
func (c BookSlot) dayID() day.DayID           { return c.DayID }
func (c CancelSlotBooking) dayID() day.DayID  { return c.DayID }
func (c CancelDaySchedule) dayID() day.DayID  { return c.DayID }
func (c ArchiveDaySchedule) dayID() day.DayID { return c.DayID }

func (c ScheduleDay) decide(d day.Day, newID day.IDGenerator) ([]day.Event, error) {
	specs := make([]day.SlotSpec, len(c.Slots))
	for i, s := range c.Slots {
		specs[i] = day.SlotSpec{StartTime: s.StartTime, Duration: s.Duration}
	}
	return d.Schedule(c.DoctorID, c.Date, specs, newID)
}

func (c ScheduleSlot) decide(d day.Day, newID day.IDGenerator) ([]day.Event, error) {
	return d.ScheduleSlot(c.StartTime, c.Duration, newID)
}

func (c BookSlot) decide(d day.Day, _ day.IDGenerator) ([]day.Event, error) {
	return d.BookSlot(c.SlotID, c.PatientID)
}

func (c CancelSlotBooking) decide(d day.Day, _ day.IDGenerator) ([]day.Event, error) {
	if c.PatientID != "" {
		return d.CancelPatientBooking(c.SlotID, c.PatientID, c.Reason)
	}
	return d.CancelSlotBooking(c.SlotID, c.Reason)
}

func (c CancelDaySchedule) decide(d day.Day, _ day.IDGenerator) ([]day.Event, error) {
	return d.CancelDaySchedule()
}

func (c ArchiveDaySchedule) decide(d day.Day, _ day.IDGenerator) ([]day.Event, error) {
	return d.Archive()
}

// Decode rebuilds a command from its wire form.
func Decode(typ string, data []byte) (Command, error) {
	switch typ {
	case TypeScheduleDay:
		return decodeAs[ScheduleDay](typ, data)
	case TypeScheduleSlot:
		return decodeAs[ScheduleSlot](typ, data)
	case TypeBookSlot:
		return decodeAs[BookSlot](typ, data)
	case TypeCancelSlotBooking:
		return decodeAs[CancelSlotBooking](typ, data)
	case TypeCancelDaySchedule:
		return decodeAs[CancelDaySchedule](typ, data)
	case TypeArchiveDaySchedule:
		return decodeAs[ArchiveDaySchedule](typ, data)
	case TypeStartCalendarDay:
		return decodeAs[StartCalendarDay](typ, data)
	}
	return nil, fmt.Errorf("decode %s: %w", typ, ErrUnknownCommand)
}

func decodeAs[C Command](typ string, data []byte) (Command, error) {
	var c C
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return c, nil
}
