// Package queue carries commands between processes on named streams.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
)

// Payload is anything that can be put on a stream.
type Payload interface {
	MessageType() string
}

type Message struct {
	ID       string
	Type     string
	Data     json.RawMessage
	Metadata eventlog.Metadata
}

// HandlerFunc processes one message. A nil return acknowledges it; an error
// leaves it pending for redelivery.
type HandlerFunc func(ctx context.Context, msg Message) error

type Producer interface {
	// Produce appends all payloads to stream in one call, each carrying md.
	Produce(ctx context.Context, stream string, md eventlog.Metadata, payloads ...Payload) error
}

type Consumer interface {
	// Consume blocks, delivering messages of stream to handle until ctx ends.
	Consume(ctx context.Context, stream, group, consumer string, handle HandlerFunc) error
}

func encode(md eventlog.Metadata, payloads []Payload) ([]Message, error) {
	out := make([]Message, 0, len(payloads))
	for _, p := range payloads {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", p.MessageType(), err)
		}
		out = append(out, Message{
			ID:       uuid.NewString(),
			Type:     p.MessageType(),
			Data:     data,
			Metadata: md,
		})
	}
	return out, nil
}
