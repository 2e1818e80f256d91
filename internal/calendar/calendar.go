// Package calendar holds the wall-clock facts that drive time-based processes.
package calendar

import "time"

const (
	StreamName = "calendar_events"

	TypeDayStarted = "CalendarDayStarted_V1"
)

// DayStarted is appended once per calendar date.
type DayStarted struct {
	Date time.Time `json:"date"`
}

func (DayStarted) EventType() string { return TypeDayStarted }
