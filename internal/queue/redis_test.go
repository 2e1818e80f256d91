package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream models one consumer's view of a stream: entries already
// delivered to it but unacked, and entries not yet delivered.
type fakeStream struct {
	pending map[string]redis.XMessage
	fresh   []redis.XMessage
	acked   []string
	reads   []string
	// done is called once every entry has been acked.
	done func()
}

func newFakeStream(pending, fresh int) *fakeStream {
	f := &fakeStream{pending: map[string]redis.XMessage{}}
	n := 0
	for i := 0; i < pending; i++ {
		n++
		xm := fakeEntry(n)
		f.pending[xm.ID] = xm
	}
	for i := 0; i < fresh; i++ {
		n++
		f.fresh = append(f.fresh, fakeEntry(n))
	}
	return f
}

func fakeEntry(n int) redis.XMessage {
	return redis.XMessage{
		ID: fmt.Sprintf("%04d-0", n),
		Values: map[string]any{
			"id":   fmt.Sprintf("m%d", n),
			"type": "Ping",
			"data": fmt.Sprintf(`{"n":%d}`, n),
		},
	}
}

func (f *fakeStream) XGroupCreateMkStream(context.Context, string, string, string) *redis.StatusCmd {
	return redis.NewStatusResult("", errors.New("BUSYGROUP Consumer Group name already exists"))
}

func (f *fakeStream) XReadGroup(_ context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	stream, cursor := a.Streams[0], a.Streams[1]
	f.reads = append(f.reads, cursor)

	var out []redis.XMessage
	if cursor == ">" {
		for len(f.fresh) > 0 && int64(len(out)) < a.Count {
			xm := f.fresh[0]
			f.fresh = f.fresh[1:]
			f.pending[xm.ID] = xm
			out = append(out, xm)
		}
	} else {
		ids := make([]string, 0, len(f.pending))
		for id := range f.pending {
			if cursor == "0" || id > cursor {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			if int64(len(out)) == a.Count {
				break
			}
			out = append(out, f.pending[id])
		}
		// a history read answers with an empty list, not nil
		return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: stream, Messages: out}}, nil)
	}
	if len(out) == 0 {
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: stream, Messages: out}}, nil)
}

func (f *fakeStream) XAck(_ context.Context, _, _ string, ids ...string) *redis.IntCmd {
	for _, id := range ids {
		delete(f.pending, id)
		f.acked = append(f.acked, id)
	}
	if len(f.pending) == 0 && len(f.fresh) == 0 {
		f.done()
	}
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStream) TxPipelined(context.Context, func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	return nil, nil
}

func newTestRedisQueue(f *fakeStream, sweep time.Duration) *RedisQueue {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	q := newRedisQueue(f, l)
	q.sweep = sweep
	return q
}

func TestRedisQueue_ConsumeDrainsPendingBeyondOneBatch(t *testing.T) {
	t.Parallel()
	f := newFakeStream(20, 2)
	q := newTestRedisQueue(f, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f.done = cancel

	var seen []string
	err := q.Consume(ctx, "cmds", "g", "c1", func(_ context.Context, m Message) error {
		seen = append(seen, m.ID)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, seen, 22)
	assert.Equal(t, "m1", seen[0])
	assert.Equal(t, "m20", seen[19])
	assert.Equal(t, "m22", seen[21])
	assert.Empty(t, f.pending)
	assert.Equal(t, []string{"0", "0016-0", "0020-0", ">"}, f.reads[:4])
}

func TestRedisQueue_ConsumeRetriesFailedEntryOnSweep(t *testing.T) {
	t.Parallel()
	f := newFakeStream(0, 3)
	q := newTestRedisQueue(f, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f.done = cancel

	var seen []string
	fails := 1
	err := q.Consume(ctx, "cmds", "g", "c1", func(_ context.Context, m Message) error {
		seen = append(seen, m.ID)
		if m.ID == "m2" && fails > 0 {
			fails--
			return errors.New("day store unavailable")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m2", "m3", "m2"}, seen)
	assert.Equal(t, []string{"0001-0", "0003-0", "0002-0"}, f.acked)
	assert.Empty(t, f.pending)
}
