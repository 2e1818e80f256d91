package day

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format used in day ids and read-model queries.
const DateLayout = "2006-01-02"

// StreamPrefix is prepended to a DayID to form the event-log stream name.
const StreamPrefix = "Day-"

var ErrInvalidID = errors.New("invalid identifier")

type DoctorID string

func NewDoctorID(raw string) (DoctorID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("doctor id: %w", ErrInvalidID)
	}
	return DoctorID(raw), nil
}

func (id DoctorID) String() string { return string(id) }

type PatientID string

func NewPatientID(raw string) (PatientID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("patient id: %w", ErrInvalidID)
	}
	return PatientID(raw), nil
}

func (id PatientID) String() string { return string(id) }

// SlotID identifies a slot within a day. The zero value is invalid.
type SlotID struct {
	uuid.UUID
}

func NewSlotID(u uuid.UUID) (SlotID, error) {
	if u == uuid.Nil {
		return SlotID{}, fmt.Errorf("slot id: %w", ErrInvalidID)
	}
	return SlotID{u}, nil
}

func ParseSlotID(raw string) (SlotID, error) {
	u, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return SlotID{}, fmt.Errorf("slot id: %w", ErrInvalidID)
	}
	return NewSlotID(u)
}

// IDGenerator yields fresh slot ids. Tests substitute a deterministic sequence.
type IDGenerator func() SlotID

func RandomSlotID() SlotID {
	return SlotID{uuid.New()}
}

// DayID is "{doctorId}_{yyyy-MM-dd}".
type DayID string

func NewDayID(doctorID DoctorID, date time.Time) DayID {
	return DayID(fmt.Sprintf("%s_%s", doctorID, date.Format(DateLayout)))
}

func ParseDayID(raw string) (DayID, error) {
	raw = strings.TrimSpace(raw)
	i := strings.LastIndex(raw, "_")
	if i <= 0 {
		return "", fmt.Errorf("day id %q: %w", raw, ErrInvalidID)
	}
	if _, err := time.Parse(DateLayout, raw[i+1:]); err != nil {
		return "", fmt.Errorf("day id %q: %w", raw, ErrInvalidID)
	}
	return DayID(raw), nil
}

func (id DayID) String() string { return string(id) }

func (id DayID) StreamName() string { return StreamPrefix + string(id) }

// DayIDFromStream reverses StreamName.
func DayIDFromStream(stream string) (DayID, bool) {
	if !strings.HasPrefix(stream, StreamPrefix) {
		return "", false
	}
	id, err := ParseDayID(strings.TrimPrefix(stream, StreamPrefix))
	if err != nil {
		return "", false
	}
	return id, true
}

// DateOf truncates t to its calendar date at midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, err)
	}
	return t, nil
}
