package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
)

// streamClient is the part of *redis.Client the queue uses.
type streamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// RedisQueue maps streams onto Redis Streams with consumer groups.
type RedisQueue struct {
	client streamClient
	logger log15.Logger
	block  time.Duration
	count  int64
	// sweep is how often pending entries are read again.
	sweep time.Duration
}

func NewRedisQueue(client *redis.Client, logger log15.Logger) *RedisQueue {
	return newRedisQueue(client, logger)
}

func newRedisQueue(client streamClient, logger log15.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		logger: logger,
		block:  5 * time.Second,
		count:  16,
		sweep:  30 * time.Second,
	}
}

func (q *RedisQueue) Produce(ctx context.Context, stream string, md eventlog.Metadata, payloads ...Payload) error {
	msgs, err := encode(md, payloads)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	meta, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, m := range msgs {
			p.XAdd(ctx, &redis.XAddArgs{
				Stream: stream,
				Values: map[string]any{
					"id":       m.ID,
					"type":     m.Type,
					"data":     string(m.Data),
					"metadata": string(meta),
				},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("produce to %s: %w", stream, err)
	}
	q.logger.Debug("Produced messages.", "stream", stream, "count", len(msgs), "correlation_id", md.CorrelationID)
	return nil
}

// Consume first works through this consumer's pending entries, then reads new
// ones. Entries left pending by a failed handler are read again on the next
// sweep.
func (q *RedisQueue) Consume(ctx context.Context, stream, group, consumer string, handle HandlerFunc) error {
	err := q.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", group, stream, err)
	}

	// cursor is ">" for new entries, otherwise the last pending entry seen
	cursor := "0"
	lastSweep := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if cursor == ">" && time.Since(lastSweep) >= q.sweep {
			cursor = "0"
		}

		res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, cursor},
			Count:    q.count,
			Block:    q.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			if cursor != ">" {
				cursor, lastSweep = ">", time.Now()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.logger.Error("Failed to read stream.", "stream", stream, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		last := ""
		for _, s := range res {
			for _, xm := range s.Messages {
				q.deliver(ctx, stream, group, xm, handle)
				last = xm.ID
			}
		}

		switch {
		case cursor == ">":
		case last == "":
			cursor, lastSweep = ">", time.Now()
		default:
			cursor = last
		}
	}
}

func (q *RedisQueue) deliver(ctx context.Context, stream, group string, xm redis.XMessage, handle HandlerFunc) {
	msg, err := decodeXMessage(xm)
	if err != nil {
		q.logger.Error("Dropping undecodable message.", "stream", stream, "entry", xm.ID, "error", err)
		q.ack(ctx, stream, group, xm.ID)
		return
	}
	if err := handle(ctx, msg); err != nil {
		q.logger.Warn("Message left pending.", "stream", stream, "entry", xm.ID, "type", msg.Type, "error", err)
		return
	}
	q.ack(ctx, stream, group, xm.ID)
}

func (q *RedisQueue) ack(ctx context.Context, stream, group, id string) {
	if err := q.client.XAck(ctx, stream, group, id).Err(); err != nil {
		q.logger.Error("Failed to ack message.", "stream", stream, "entry", id, "error", err)
	}
}

func decodeXMessage(xm redis.XMessage) (Message, error) {
	str := func(key string) string {
		v, _ := xm.Values[key].(string)
		return v
	}
	msg := Message{ID: str("id"), Type: str("type"), Data: json.RawMessage(str("data"))}
	if msg.Type == "" {
		return Message{}, errors.New("missing type")
	}
	if raw := str("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &msg.Metadata); err != nil {
			return Message{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return msg, nil
}
