// Package command loads a day from its stream, runs a decision against it and
// appends the result with an optimistic version check.
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/inconshreveable/log15"

	"github.com/hackgods/doctor-day-scheduling/internal/calendar"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
)

var (
	// ErrConcurrencyConflict means another writer appended to the stream
	// after it was loaded. Callers retry against fresh state.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrUnknownCommand      = errors.New("unknown command")
)

// Result describes what a handled command appended.
type Result struct {
	Stream              string
	DayID               day.DayID
	Events              []day.Event
	NextExpectedVersion int64
	Position            uint64
}

type Service struct {
	store  eventlog.Store
	codec  *eventlog.Codec
	newID  day.IDGenerator
	logger log15.Logger
}

func NewService(store eventlog.Store, codec *eventlog.Codec, newID day.IDGenerator, logger log15.Logger) *Service {
	if newID == nil {
		newID = day.RandomSlotID
	}
	return &Service{store: store, codec: codec, newID: newID, logger: logger}
}

// Handle applies cmd. Domain violations come back as *day.Error; conflicts
// with concurrent writers as ErrConcurrencyConflict. Nothing is retried here.
func (s *Service) Handle(ctx context.Context, cmd Command) (*Result, error) {
	if c, ok := cmd.(StartCalendarDay); ok {
		return s.startCalendarDay(ctx, c)
	}

	dc, ok := cmd.(dayCommand)
	if !ok {
		return nil, fmt.Errorf("handle %s: %w", cmd.MessageType(), ErrUnknownCommand)
	}
	route, ok := routes[cmd.MessageType()]
	if !ok {
		return nil, fmt.Errorf("handle %s: %w", cmd.MessageType(), ErrUnknownCommand)
	}

	id := dc.dayID()
	stream := id.StreamName()
	logger := s.logger.New("command", cmd.MessageType(), "stream", stream)

	d, err := s.load(ctx, stream)
	if err != nil {
		return nil, err
	}

	expected := eventlog.NoStream
	if route == existingStream {
		if !d.Scheduled() {
			return nil, day.ErrDayNotScheduled
		}
		expected = eventlog.Exact(d.Version)
	}

	events, err := dc.decide(d, s.newID)
	if err != nil {
		logger.Debug("Command rejected.", "reason", reasonOf(err))
		return nil, err
	}

	res, err := s.append(ctx, stream, expected, events)
	if errors.Is(err, eventlog.ErrWrongExpectedVersion) {
		if route == newStream {
			return nil, day.ErrDayAlreadyScheduled
		}
		logger.Info("Concurrent append detected.", "expected", expected)
		return nil, fmt.Errorf("handle %s on %s: %w", cmd.MessageType(), stream, ErrConcurrencyConflict)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Command handled.", "events", len(events), "version", res.NextExpectedVersion)
	return &Result{
		Stream:              stream,
		DayID:               id,
		Events:              events,
		NextExpectedVersion: res.NextExpectedVersion,
		Position:            res.Position,
	}, nil
}

// Load folds the live events of a day stream.
func (s *Service) Load(ctx context.Context, id day.DayID) (day.Day, error) {
	return s.load(ctx, id.StreamName())
}

func (s *Service) load(ctx context.Context, stream string) (day.Day, error) {
	recorded, err := s.store.ReadStream(ctx, stream, 0, eventlog.Forwards)
	if errors.Is(err, eventlog.ErrStreamNotFound) {
		return day.New(), nil
	}
	if err != nil {
		return day.Day{}, fmt.Errorf("load %s: %w", stream, err)
	}
	if len(recorded) == 0 {
		return day.New(), nil
	}

	events := make([]day.Event, 0, len(recorded))
	for _, r := range recorded {
		v, err := s.codec.Decode(r.Type, r.Data)
		if err != nil {
			return day.Day{}, fmt.Errorf("load %s: %w", stream, err)
		}
		e, ok := v.(day.Event)
		if !ok {
			return day.Day{}, fmt.Errorf("load %s: %s is not a day event", stream, r.Type)
		}
		events = append(events, e)
	}
	return day.Replay(day.New(), recorded[len(recorded)-1].Version, events), nil
}

func (s *Service) append(ctx context.Context, stream string, expected eventlog.ExpectedVersion, events []day.Event) (eventlog.AppendResult, error) {
	md := eventlog.MetadataFrom(ctx)
	data := make([]eventlog.EventData, 0, len(events))
	for _, e := range events {
		ed, err := s.codec.Encode(e, md)
		if err != nil {
			return eventlog.AppendResult{}, err
		}
		data = append(data, ed)
	}
	return s.store.AppendEvents(ctx, stream, expected, data)
}

func (s *Service) startCalendarDay(ctx context.Context, c StartCalendarDay) (*Result, error) {
	ed, err := s.codec.Encode(calendar.DayStarted{Date: day.DateOf(c.Date)}, eventlog.MetadataFrom(ctx))
	if err != nil {
		return nil, err
	}
	res, err := s.store.AppendEvents(ctx, calendar.StreamName, eventlog.Any, []eventlog.EventData{ed})
	if err != nil {
		return nil, fmt.Errorf("start calendar day: %w", err)
	}
	s.logger.Info("Calendar day started.", "date", c.Date.Format(day.DateLayout))
	return &Result{Stream: calendar.StreamName, NextExpectedVersion: res.NextExpectedVersion, Position: res.Position}, nil
}

// IsRetryable reports whether err may succeed when retried as is. Domain
// violations and malformed commands never do.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := day.AsError(err); ok {
		return false
	}
	if errors.Is(err, ErrUnknownCommand) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func reasonOf(err error) string {
	if de, ok := day.AsError(err); ok {
		return de.Reason
	}
	return err.Error()
}
