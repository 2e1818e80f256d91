package command

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/inconshreveable/log15"

	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/queue"
)

// Handler is what the worker hands decoded commands to.
type Handler interface {
	Handle(ctx context.Context, cmd Command) (*Result, error)
}

// Worker consumes the async command stream and feeds it to a Handler.
// Concurrency conflicts and infrastructure errors are retried with backoff;
// domain rejections are logged and acknowledged.
type Worker struct {
	consumer   queue.Consumer
	handler    Handler
	stream     string
	group      string
	name       string
	logger     log15.Logger
	newBackOff func() backoff.BackOff
}

func NewWorker(consumer queue.Consumer, handler Handler, stream, group, name string, logger log15.Logger) *Worker {
	return &Worker{
		consumer: consumer,
		handler:  handler,
		stream:   stream,
		group:    group,
		name:     name,
		logger:   logger.New("worker", name, "stream", stream),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Command worker started.")
	defer w.logger.Info("Command worker stopped.")
	return w.consumer.Consume(ctx, w.stream, w.group, w.name, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) error {
	logger := w.logger.New("type", msg.Type, "correlation_id", msg.Metadata.CorrelationID)

	cmd, err := Decode(msg.Type, msg.Data)
	if err != nil {
		logger.Error("Dropping undecodable command.", "error", err)
		return nil
	}

	ctx = eventlog.WithMetadata(ctx, msg.Metadata)
	op := func() error {
		_, err := w.handler.Handle(ctx, cmd)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Debug("Retrying command.", "error", err)
		}
		return err
	}

	err = backoff.Retry(op, backoff.WithContext(w.newBackOff(), ctx))
	switch {
	case err == nil:
		logger.Debug("Command applied.")
		return nil
	case !IsRetryable(err):
		logger.Warn("Command rejected.", "reason", reasonOf(err))
		return nil
	default:
		logger.Error("Command failed.", "error", err)
		return err
	}
}
