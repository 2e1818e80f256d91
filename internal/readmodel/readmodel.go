// Package readmodel holds the query-side views written by projections and
// process managers. Every row write is guarded by the global log position of
// the event that produced it, so redelivered events are no-ops.
package readmodel

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("read model row not found")

// ArchivableDay is written once when a day is scheduled.
type ArchivableDay struct {
	ID   string
	Date time.Time
}

type AvailableSlot struct {
	ID        string
	DayID     string
	Date      string // yyyy-MM-dd
	StartTime time.Time
	Duration  time.Duration
	IsBooked  bool
	Position  uint64
}

type BookedSlot struct {
	ID        string
	DayID     string
	Year      int
	Month     int
	IsBooked  bool
	PatientID string
	Position  uint64
}

type ArchivableDays interface {
	// Add inserts d unless a row with its id exists.
	Add(ctx context.Context, d ArchivableDay) error
	// ScheduledOnOrBefore lists days whose date is not after date.
	ScheduledOnOrBefore(ctx context.Context, date time.Time) ([]ArchivableDay, error)
}

type AvailableSlots interface {
	// Add inserts s unless a row with its id exists.
	Add(ctx context.Context, s AvailableSlot) error
	// SetBooked updates the row only when position is newer than its own.
	SetBooked(ctx context.Context, id string, booked bool, position uint64) error
	// Delete removes the row only when position is newer than its own.
	Delete(ctx context.Context, id string, position uint64) error
	// AvailableOn lists unbooked slots of a date, earliest first.
	AvailableOn(ctx context.Context, date string) ([]AvailableSlot, error)
}

type BookedSlots interface {
	Add(ctx context.Context, s BookedSlot) error
	Get(ctx context.Context, id string) (BookedSlot, error)
	// MarkBooked and MarkAvailable update the row only when position is newer
	// than its own.
	MarkBooked(ctx context.Context, id, patientID string, position uint64) error
	MarkAvailable(ctx context.Context, id string, position uint64) error
	Delete(ctx context.Context, id string, position uint64) error
	// CountBooked counts booked slots of a patient in one month.
	CountBooked(ctx context.Context, patientID string, year, month int) (int, error)
}
