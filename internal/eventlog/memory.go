package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memStream struct {
	version        int64
	truncateBefore int64
}

// MemoryStore keeps the log in process. It is used by tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	log     []RecordedEvent
	streams map[string]*memStream
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string]*memStream),
		now:     time.Now,
	}
}

func (s *MemoryStore) AppendEvents(ctx context.Context, stream string, expected ExpectedVersion, events []EventData) (AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return AppendResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := int64(-1)
	st, exists := s.streams[stream]
	if exists {
		current = st.version
	}
	if !expected.matches(current) {
		return AppendResult{}, fmt.Errorf("append to %s: expected %s, stream at %d: %w", stream, expected, current, ErrWrongExpectedVersion)
	}
	if len(events) == 0 {
		return AppendResult{NextExpectedVersion: current, Position: uint64(len(s.log))}, nil
	}
	if !exists {
		st = &memStream{version: -1}
		s.streams[stream] = st
	}

	created := s.now().UTC()
	for _, e := range events {
		st.version++
		s.log = append(s.log, RecordedEvent{
			ID:       e.ID,
			Type:     e.Type,
			Data:     append([]byte(nil), e.Data...),
			Metadata: e.Metadata,
			Stream:   stream,
			Version:  st.version,
			Position: uint64(len(s.log)) + 1,
			Created:  created,
		})
	}
	return AppendResult{NextExpectedVersion: st.version, Position: uint64(len(s.log))}, nil
}

func (s *MemoryStore) ReadStream(ctx context.Context, stream string, from int64, dir Direction) ([]RecordedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.streams[stream]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", stream, ErrStreamNotFound)
	}

	var out []RecordedEvent
	for _, e := range s.log {
		if e.Stream != stream || e.Version < st.truncateBefore {
			continue
		}
		switch {
		case dir == Forwards && e.Version >= from:
			out = append(out, e)
		case dir == Backwards && (from < 0 || e.Version <= from):
			out = append(out, e)
		}
	}
	if dir == Backwards {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (s *MemoryStore) ReadAll(ctx context.Context, after uint64, limit int) ([]RecordedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RecordedEvent
	for i := after; i < uint64(len(s.log)); i++ {
		e := s.log[i]
		if e.Version < s.streams[e.Stream].truncateBefore {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) TruncateStream(ctx context.Context, stream string, before int64, expected ExpectedVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[stream]
	if !ok {
		return fmt.Errorf("truncate %s: %w", stream, ErrStreamNotFound)
	}
	if !expected.matches(st.version) {
		return fmt.Errorf("truncate %s: expected %s, stream at %d: %w", stream, expected, st.version, ErrWrongExpectedVersion)
	}
	if before > st.truncateBefore {
		st.truncateBefore = before
	}
	return nil
}
