// Package checkpoint stores the last processed log position per subscriber.
package checkpoint

import (
	"context"
	"sync"

	"github.com/inconshreveable/log15"
)

// DefaultBatchSize is how many stores are buffered before one is persisted.
const DefaultBatchSize = 5

// Checkpoint is a subscriber's cursor. Position 0 means nothing processed.
type Checkpoint struct {
	ID       string
	Position uint64
}

func (c Checkpoint) IsNone() bool { return c.Position == 0 }

// Backend is the durable side of a checkpoint store.
type Backend interface {
	// Load reports found=false when the subscriber has no checkpoint yet.
	Load(ctx context.Context, id string) (cp Checkpoint, found bool, err error)
	Save(ctx context.Context, cp Checkpoint) error
}

// Store buffers checkpoint writes in memory and persists every batchSize
// stores, or immediately when forced.
type Store struct {
	backend   Backend
	batchSize int
	logger    log15.Logger

	mu      sync.Mutex
	pending map[string]int
	latest  map[string]Checkpoint
}

func NewStore(backend Backend, batchSize int, logger log15.Logger) *Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{
		backend:   backend,
		batchSize: batchSize,
		logger:    logger,
		pending:   make(map[string]int),
		latest:    make(map[string]Checkpoint),
	}
}

// GetLastCheckpoint returns the durable checkpoint, creating it at position
// none when the subscriber starts for the first time.
func (s *Store) GetLastCheckpoint(ctx context.Context, id string) (Checkpoint, error) {
	cp, found, err := s.backend.Load(ctx, id)
	if err != nil {
		return Checkpoint{}, err
	}
	if found {
		s.logger.Debug("Loaded checkpoint.", "id", id, "position", cp.Position)
		return cp, nil
	}

	cp = Checkpoint{ID: id}
	if err := s.backend.Save(ctx, cp); err != nil {
		return Checkpoint{}, err
	}
	s.logger.Info("Created checkpoint.", "id", id)
	return cp, nil
}

// StoreCheckpoint records cp and reports whether it reached the backend.
func (s *Store) StoreCheckpoint(ctx context.Context, cp Checkpoint, force bool) (bool, error) {
	s.mu.Lock()
	s.pending[cp.ID]++
	s.latest[cp.ID] = cp
	due := force || s.pending[cp.ID] >= s.batchSize
	s.mu.Unlock()

	if !due {
		return false, nil
	}
	if err := s.backend.Save(ctx, cp); err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.latest[cp.ID] == cp {
		s.pending[cp.ID] = 0
	}
	s.mu.Unlock()
	s.logger.Debug("Stored checkpoint.", "id", cp.ID, "position", cp.Position, "forced", force)
	return true, nil
}

// Flush persists the latest buffered checkpoint of id, if any is pending.
func (s *Store) Flush(ctx context.Context, id string) error {
	s.mu.Lock()
	cp, ok := s.latest[id]
	pending := s.pending[id]
	s.mu.Unlock()

	if !ok || pending == 0 {
		return nil
	}
	_, err := s.StoreCheckpoint(ctx, cp, true)
	return err
}
