// Package subscription reads the global log in order from a checkpoint and
// hands every event to a set of handlers. Delivery is at least once.
package subscription

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/inconshreveable/log15"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/doctor-day-scheduling/internal/checkpoint"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
)

// Handler must be idempotent: an event can arrive more than once.
type Handler interface {
	Name() string
	Handle(ctx context.Context, e eventlog.RecordedEvent) error
}

// Filter selects the streams a subscription dispatches.
type Filter func(stream string) bool

// StreamPrefix accepts streams starting with any of prefixes.
func StreamPrefix(prefixes ...string) Filter {
	return func(stream string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(stream, p) {
				return true
			}
		}
		return false
	}
}

type Config struct {
	ID           string
	PageSize     int
	PollInterval time.Duration
	Filter       Filter
}

type Subscription struct {
	cfg         Config
	store       eventlog.Store
	checkpoints *checkpoint.Store
	handlers    []Handler
	logger      log15.Logger
	newBackOff  func() backoff.BackOff

	mu       sync.Mutex
	started  bool
	position uint64
}

func New(cfg Config, store eventlog.Store, checkpoints *checkpoint.Store, logger log15.Logger, handlers ...Handler) *Subscription {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Subscription{
		cfg:         cfg,
		store:       store,
		checkpoints: checkpoints,
		handlers:    handlers,
		logger:      logger.New("subscription", cfg.ID),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = time.Minute
			return b
		},
	}
}

// Run catches up, then polls for new events until ctx ends. The last
// processed position is always persisted on the way out.
func (s *Subscription) Run(ctx context.Context) error {
	defer s.Stop()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		err := s.CatchUp(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Position is the last dispatched global position.
func (s *Subscription) Position() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// CatchUp dispatches every event after the current position, then returns.
func (s *Subscription) CatchUp(ctx context.Context) error {
	if err := s.start(ctx); err != nil {
		return err
	}

	for {
		events, err := s.store.ReadAll(ctx, s.Position(), s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		for _, e := range events {
			if s.cfg.Filter == nil || s.cfg.Filter(e.Stream) {
				if err := s.dispatch(ctx, e); err != nil {
					return fmt.Errorf("dispatch %s at %d: %w", e.Type, e.Position, err)
				}
			}
			s.advance(ctx, e.Position)
		}
	}
}

// Stop forces the last position to the checkpoint backend.
func (s *Subscription) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.checkpoints.Flush(ctx, s.cfg.ID); err != nil {
		s.logger.Error("Failed to store checkpoint on stop.", "error", err)
		return
	}
	s.logger.Info("Subscription stopped.", "position", s.Position())
}

func (s *Subscription) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	cp, err := s.checkpoints.GetLastCheckpoint(ctx, s.cfg.ID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	s.position = cp.Position
	s.started = true
	s.logger.Info("Subscription started.", "position", cp.Position, "handlers", len(s.handlers))
	return nil
}

// dispatch runs all handlers for e concurrently, each retried with backoff.
func (s *Subscription) dispatch(ctx context.Context, e eventlog.RecordedEvent) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range s.handlers {
		h := h
		g.Go(func() error {
			op := func() error {
				err := h.Handle(gctx, e)
				if err != nil {
					s.logger.Warn("Handler failed.", "handler", h.Name(), "type", e.Type, "position", e.Position, "error", err)
				}
				return err
			}
			return backoff.Retry(op, backoff.WithContext(s.newBackOff(), gctx))
		})
	}
	return g.Wait()
}

func (s *Subscription) advance(ctx context.Context, position uint64) {
	s.mu.Lock()
	s.position = position
	s.mu.Unlock()

	if _, err := s.checkpoints.StoreCheckpoint(ctx, checkpoint.Checkpoint{ID: s.cfg.ID, Position: position}, false); err != nil {
		// the next successful store or Stop covers this position
		s.logger.Warn("Failed to store checkpoint.", "position", position, "error", err)
	}
}
