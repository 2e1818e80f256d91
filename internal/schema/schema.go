// Package schema registers every event type written to the log.
package schema

import (
	"github.com/hackgods/doctor-day-scheduling/internal/calendar"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
)

func NewCodec() *eventlog.Codec {
	types := []eventlog.Typed{calendar.DayStarted{}}
	for _, p := range day.Prototypes() {
		types = append(types, p)
	}
	return eventlog.NewCodec(types...)
}
