// Package eventlog is the append-only event store: per-stream versions with
// optimistic concurrency, plus one global ordering used by subscriptions.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWrongExpectedVersion = errors.New("wrong expected version")
	ErrStreamNotFound       = errors.New("stream not found")
)

// ExpectedVersion is an exact stream version or one of NoStream and Any.
type ExpectedVersion int64

const (
	NoStream ExpectedVersion = -1
	Any      ExpectedVersion = -2
)

func Exact(version int64) ExpectedVersion { return ExpectedVersion(version) }

func (ev ExpectedVersion) String() string {
	switch ev {
	case NoStream:
		return "no_stream"
	case Any:
		return "any"
	default:
		return fmt.Sprintf("%d", int64(ev))
	}
}

// matches reports whether a stream at current satisfies ev. current is -1 for
// a stream that does not exist.
func (ev ExpectedVersion) matches(current int64) bool {
	switch ev {
	case Any:
		return true
	case NoStream:
		return current == -1
	default:
		return int64(ev) == current
	}
}

type Direction int

const (
	Forwards Direction = iota
	Backwards
)

// EventData is an event ready to be appended.
type EventData struct {
	ID       uuid.UUID
	Type     string
	Data     json.RawMessage
	Metadata Metadata
}

// RecordedEvent is an event as stored. Version counts from 0 within its
// stream; Position counts from 1 across the whole log.
type RecordedEvent struct {
	ID       uuid.UUID
	Type     string
	Data     json.RawMessage
	Metadata Metadata
	Stream   string
	Version  int64
	Position uint64
	Created  time.Time
}

type AppendResult struct {
	NextExpectedVersion int64
	Position            uint64
}

// Store is the event log.
type Store interface {
	// AppendEvents writes all events or none. It fails with
	// ErrWrongExpectedVersion when the stream is not at expected.
	AppendEvents(ctx context.Context, stream string, expected ExpectedVersion, events []EventData) (AppendResult, error)
	// ReadStream returns the live events of a stream starting at version from.
	// Backwards reads start at from, or at the end when from is negative.
	ReadStream(ctx context.Context, stream string, from int64, dir Direction) ([]RecordedEvent, error)
	// ReadAll returns up to limit events with a global position after after.
	ReadAll(ctx context.Context, after uint64, limit int) ([]RecordedEvent, error)
	// TruncateStream removes events with a version below before. The stream
	// keeps its version. Truncating to an earlier point is a no-op.
	TruncateStream(ctx context.Context, stream string, before int64, expected ExpectedVersion) error
}
