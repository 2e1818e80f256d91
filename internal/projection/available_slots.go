// Package projection writes query views from the event log.
package projection

import (
	"context"
	"fmt"

	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/readmodel"
)

// AvailableSlots keeps one row per scheduled slot and tracks whether it is
// bookable.
type AvailableSlots struct {
	repo  readmodel.AvailableSlots
	codec *eventlog.Codec
}

func NewAvailableSlots(repo readmodel.AvailableSlots, codec *eventlog.Codec) *AvailableSlots {
	return &AvailableSlots{repo: repo, codec: codec}
}

func (p *AvailableSlots) Name() string { return "available_slots" }

func (p *AvailableSlots) Handle(ctx context.Context, e eventlog.RecordedEvent) error {
	switch e.Type {
	case day.TypeSlotScheduled, day.TypeSlotBooked, day.TypeSlotBookingCancelled, day.TypeSlotScheduleCancelled:
	default:
		return nil
	}

	v, err := p.codec.Decode(e.Type, e.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name(), err)
	}

	switch ev := v.(type) {
	case day.SlotScheduled:
		return p.repo.Add(ctx, readmodel.AvailableSlot{
			ID:        ev.SlotID.String(),
			DayID:     ev.DayID.String(),
			Date:      ev.StartTime.Format(day.DateLayout),
			StartTime: ev.StartTime,
			Duration:  ev.Duration,
			Position:  e.Position,
		})
	case day.SlotBooked:
		return p.repo.SetBooked(ctx, ev.SlotID.String(), true, e.Position)
	case day.SlotBookingCancelled:
		return p.repo.SetBooked(ctx, ev.SlotID.String(), false, e.Position)
	case day.SlotScheduleCancelled:
		return p.repo.Delete(ctx, ev.SlotID.String(), e.Position)
	}
	return nil
}
