// Package process holds the process managers that react to day events and
// issue follow-up commands or side effects.
package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/inconshreveable/log15"

	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/queue"
	"github.com/hackgods/doctor-day-scheduling/internal/readmodel"
)

// OverbookingReason is recorded on bookings cancelled for exceeding the limit.
const OverbookingReason = "Patient exceeded monthly booking limit."

// Overbooking caps the bookings a patient holds per calendar month. The check
// runs after the booking is already recorded, so a booking over the limit is
// visible until the compensating cancellation is applied.
type Overbooking struct {
	slots    readmodel.BookedSlots
	producer queue.Producer
	codec    *eventlog.Codec
	limit    int
	stream   string
	logger   log15.Logger
}

func NewOverbooking(slots readmodel.BookedSlots, producer queue.Producer, codec *eventlog.Codec, limit int, commandStream string, logger log15.Logger) *Overbooking {
	return &Overbooking{
		slots:    slots,
		producer: producer,
		codec:    codec,
		limit:    limit,
		stream:   commandStream,
		logger:   logger.New("process", "overbooking"),
	}
}

func (p *Overbooking) Name() string { return "overbooking" }

func (p *Overbooking) Handle(ctx context.Context, e eventlog.RecordedEvent) error {
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
		return p.slots.Add(ctx, readmodel.BookedSlot{
			ID:       ev.SlotID.String(),
			DayID:    ev.DayID.String(),
			Year:     ev.StartTime.Year(),
			Month:    int(ev.StartTime.Month()),
			Position: e.Position,
		})
	case day.SlotBooked:
		return p.booked(ctx, e, ev)
	case day.SlotBookingCancelled:
		return p.slots.MarkAvailable(ctx, ev.SlotID.String(), e.Position)
	case day.SlotScheduleCancelled:
		return p.slots.Delete(ctx, ev.SlotID.String(), e.Position)
	}
	return nil
}

func (p *Overbooking) booked(ctx context.Context, e eventlog.RecordedEvent, ev day.SlotBooked) error {
	id := ev.SlotID.String()
	if err := p.slots.MarkBooked(ctx, id, ev.PatientID.String(), e.Position); err != nil {
		return err
	}

	row, err := p.slots.Get(ctx, id)
	if errors.Is(err, readmodel.ErrNotFound) {
		p.logger.Warn("Booked slot has no row.", "slot", id, "position", e.Position)
		return nil
	}
	if err != nil {
		return err
	}

	count, err := p.slots.CountBooked(ctx, ev.PatientID.String(), row.Year, row.Month)
	if err != nil {
		return err
	}
	if count <= p.limit {
		return nil
	}

	p.logger.Info("Monthly booking limit exceeded.", "patient", ev.PatientID, "bookings", count, "limit", p.limit, "slot", id)
	cancel := command.CancelSlotBooking{DayID: ev.DayID, SlotID: ev.SlotID, PatientID: ev.PatientID, Reason: OverbookingReason}
	return p.producer.Produce(ctx, p.stream, e.Metadata.CausedBy(e.ID.String()), cancel)
}
