package queue

import (
	"context"
	"sync"
	"time"

	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
)

// MemoryQueue is an in-process queue. Each group keeps its own offset.
type MemoryQueue struct {
	mu      sync.Mutex
	streams map[string][]Message
	offsets map[string]int
	poll    time.Duration
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		streams: make(map[string][]Message),
		offsets: make(map[string]int),
		poll:    10 * time.Millisecond,
	}
}

func (q *MemoryQueue) Produce(ctx context.Context, stream string, md eventlog.Metadata, payloads ...Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msgs, err := encode(md, payloads)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.streams[stream] = append(q.streams[stream], msgs...)
	q.mu.Unlock()
	return nil
}

// Messages returns everything produced to stream so far.
func (q *MemoryQueue) Messages(stream string) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.streams[stream]...)
}

func (q *MemoryQueue) Consume(ctx context.Context, stream, group, _ string, handle HandlerFunc) error {
	key := stream + "/" + group
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		q.mu.Lock()
		offset := q.offsets[key]
		var next *Message
		if offset < len(q.streams[stream]) {
			m := q.streams[stream][offset]
			next = &m
		}
		q.mu.Unlock()

		if next != nil {
			if err := handle(ctx, *next); err == nil {
				q.mu.Lock()
				q.offsets[key] = offset + 1
				q.mu.Unlock()
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
