// Package coldstorage keeps archived event history outside the event log.
package coldstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
)

var ErrNotFound = errors.New("archive not found")

// Storage accepts the full history of a stream in one write.
type Storage interface {
	ArchiveStream(ctx context.Context, stream string, events []eventlog.RecordedEvent) error
}

// Reader reads an archive back. Only admin tooling needs it.
type Reader interface {
	ReadArchive(ctx context.Context, stream string) ([]eventlog.RecordedEvent, error)
}

// archivedEvent is the serialized form of one event in an archive.
type archivedEvent struct {
	ID       uuid.UUID         `json:"id"`
	Type     string            `json:"type"`
	Data     json.RawMessage   `json:"data"`
	Metadata eventlog.Metadata `json:"metadata"`
	Stream   string            `json:"stream"`
	Version  int64             `json:"version"`
	Position uint64            `json:"position"`
	Created  time.Time         `json:"created"`
}

func marshal(events []eventlog.RecordedEvent) ([]byte, error) {
	out := make([]archivedEvent, len(events))
	for i, e := range events {
		out[i] = archivedEvent(e)
	}
	return json.Marshal(out)
}

func unmarshal(data []byte) ([]eventlog.RecordedEvent, error) {
	var in []archivedEvent
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	out := make([]eventlog.RecordedEvent, len(in))
	for i, e := range in {
		out[i] = eventlog.RecordedEvent(e)
	}
	return out, nil
}

// MemoryStorage keeps the last archive written per stream.
type MemoryStorage struct {
	mu       sync.Mutex
	archives map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{archives: make(map[string][]byte)}
}

func (s *MemoryStorage) ArchiveStream(ctx context.Context, stream string, events []eventlog.RecordedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := marshal(events)
	if err != nil {
		return fmt.Errorf("archive %s: %w", stream, err)
	}
	s.mu.Lock()
	s.archives[stream] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) ReadArchive(_ context.Context, stream string) ([]eventlog.RecordedEvent, error) {
	s.mu.Lock()
	data, ok := s.archives[stream]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("read archive %s: %w", stream, ErrNotFound)
	}
	return unmarshal(data)
}
