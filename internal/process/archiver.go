package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/hackgods/doctor-day-scheduling/internal/calendar"
	"github.com/hackgods/doctor-day-scheduling/internal/coldstorage"
	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/queue"
	"github.com/hackgods/doctor-day-scheduling/internal/readmodel"
)

// Archiver moves days older than a threshold out of the event log. When a
// calendar day starts it asks for every old day to be archived; once a day is
// archived it copies the whole stream to cold storage and truncates it.
type Archiver struct {
	days      readmodel.ArchivableDays
	store     eventlog.Store
	cold      coldstorage.Storage
	producer  queue.Producer
	codec     *eventlog.Codec
	threshold time.Duration
	stream    string
	logger    log15.Logger
}

func NewArchiver(
	days readmodel.ArchivableDays,
	store eventlog.Store,
	cold coldstorage.Storage,
	producer queue.Producer,
	codec *eventlog.Codec,
	threshold time.Duration,
	commandStream string,
	logger log15.Logger,
) *Archiver {
	return &Archiver{
		days:      days,
		store:     store,
		cold:      cold,
		producer:  producer,
		codec:     codec,
		threshold: threshold,
		stream:    commandStream,
		logger:    logger.New("process", "archiver"),
	}
}

func (p *Archiver) Name() string { return "day_archiver" }

func (p *Archiver) Handle(ctx context.Context, e eventlog.RecordedEvent) error {
	switch e.Type {
	case day.TypeDayScheduled, calendar.TypeDayStarted, day.TypeDayScheduleArchived:
	default:
		return nil
	}

	v, err := p.codec.Decode(e.Type, e.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name(), err)
	}

	switch ev := v.(type) {
	case day.DayScheduled:
		return p.days.Add(ctx, readmodel.ArchivableDay{ID: ev.DayID.String(), Date: day.DateOf(ev.Date)})
	case calendar.DayStarted:
		return p.requestArchival(ctx, e, ev)
	case day.DayScheduleArchived:
		return p.archive(ctx, ev.DayID)
	}
	return nil
}

func (p *Archiver) requestArchival(ctx context.Context, e eventlog.RecordedEvent, ev calendar.DayStarted) error {
	cutoff := day.DateOf(ev.Date).Add(-p.threshold)
	due, err := p.days.ScheduledOnOrBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	cmds := make([]queue.Payload, 0, len(due))
	for _, d := range due {
		cmds = append(cmds, command.ArchiveDaySchedule{DayID: day.DayID(d.ID)})
	}
	p.logger.Info("Requesting archival.", "calendar_date", ev.Date.Format(day.DateLayout), "cutoff", cutoff.Format(day.DateLayout), "days", len(cmds))
	return p.producer.Produce(ctx, p.stream, e.Metadata.CausedBy(e.ID.String()), cmds...)
}

// archive reads the full stream, writes it to cold storage and truncates the
// log before the last event read. A stream already truncated is left alone.
func (p *Archiver) archive(ctx context.Context, id day.DayID) error {
	stream := id.StreamName()
	events, err := p.store.ReadStream(ctx, stream, 0, eventlog.Forwards)
	if errors.Is(err, eventlog.ErrStreamNotFound) {
		p.logger.Warn("Archived day has no stream.", "stream", stream)
		return nil
	}
	if err != nil {
		return err
	}
	if len(events) == 0 || events[0].Version > 0 {
		p.logger.Debug("Stream already truncated.", "stream", stream)
		return nil
	}

	last := events[len(events)-1].Version
	if err := p.cold.ArchiveStream(ctx, stream, events); err != nil {
		return fmt.Errorf("archive %s: %w", stream, err)
	}
	if err := p.store.TruncateStream(ctx, stream, last, eventlog.Any); err != nil {
		return fmt.Errorf("truncate %s: %w", stream, err)
	}

	late, err := p.store.ReadStream(ctx, stream, last+1, eventlog.Forwards)
	if err != nil {
		return err
	}
	if len(late) > 0 {
		p.logger.Warn("Events appended after archival read were kept in the log.", "stream", stream, "count", len(late))
	}
	p.logger.Info("Day archived to cold storage.", "stream", stream, "events", len(events), "truncated_before", last)
	return nil
}
