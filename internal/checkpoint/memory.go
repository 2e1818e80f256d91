package checkpoint

import (
	"context"
	"sync"
)

type MemoryBackend struct {
	mu    sync.Mutex
	saved map[string]Checkpoint
	saves int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{saved: make(map[string]Checkpoint)}
}

func (b *MemoryBackend) Load(_ context.Context, id string) (Checkpoint, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp, ok := b.saved[id]
	return cp, ok, nil
}

func (b *MemoryBackend) Save(_ context.Context, cp Checkpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved[cp.ID] = cp
	b.saves++
	return nil
}

// Saves counts durable writes.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}
