package eventlog

import (
	"context"
	"errors"

	"github.com/inconshreveable/log15"
)

// LoggingStore decorates a Store with debug logging of every call.
type LoggingStore struct {
	logger log15.Logger
	store  Store
}

func NewLoggingStore(store Store, logger log15.Logger) (*LoggingStore, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		return nil, errors.New("logger is nil")
	}
	return &LoggingStore{logger: logger, store: store}, nil
}

func (s *LoggingStore) AppendEvents(ctx context.Context, stream string, expected ExpectedVersion, events []EventData) (AppendResult, error) {
	s.logger.Debug("Appending events.", "stream", stream, "expected", expected, "count", len(events))
	res, err := s.store.AppendEvents(ctx, stream, expected, events)
	if err == nil {
		s.logger.Debug("Appended events.", "stream", stream, "version", res.NextExpectedVersion, "position", res.Position)
	} else {
		s.logger.Debug("Failed to append events.", "stream", stream, "error", err)
	}
	return res, err
}

func (s *LoggingStore) ReadStream(ctx context.Context, stream string, from int64, dir Direction) ([]RecordedEvent, error) {
	s.logger.Debug("Reading stream.", "stream", stream, "from", from, "backwards", dir == Backwards)
	events, err := s.store.ReadStream(ctx, stream, from, dir)
	if err == nil {
		s.logger.Debug("Read stream.", "stream", stream, "count", len(events))
	} else {
		s.logger.Debug("Failed to read stream.", "stream", stream, "error", err)
	}
	return events, err
}

func (s *LoggingStore) ReadAll(ctx context.Context, after uint64, limit int) ([]RecordedEvent, error) {
	events, err := s.store.ReadAll(ctx, after, limit)
	if err != nil {
		s.logger.Debug("Failed to read log.", "after", after, "error", err)
	}
	return events, err
}

func (s *LoggingStore) TruncateStream(ctx context.Context, stream string, before int64, expected ExpectedVersion) error {
	s.logger.Debug("Truncating stream.", "stream", stream, "before", before, "expected", expected)
	err := s.store.TruncateStream(ctx, stream, before, expected)
	if err != nil {
		s.logger.Debug("Failed to truncate stream.", "stream", stream, "error", err)
	}
	return err
}
