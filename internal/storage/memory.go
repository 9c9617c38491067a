package storage

import (
	"context"
	"sync"

	"pairScout/internal/model"
)

// MemoryStore keeps records in process memory. It backs the watcher when
// persistence is disabled and doubles as a test fake.
type MemoryStore struct {
	mu    sync.RWMutex
	pairs []model.TrackedPair
	swaps []model.SwapRecord
	mints []model.LiquidityRecord
	burns []model.LiquidityRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) StorePair(ctx context.Context, pair model.TrackedPair) error {
	s.mu.Lock()
	s.pairs = append(s.pairs, pair)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) FetchPairs(ctx context.Context) ([]model.TrackedPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TrackedPair(nil), s.pairs...), nil
}

func (s *MemoryStore) StoreSwap(ctx context.Context, record model.SwapRecord) error {
	s.mu.Lock()
	s.swaps = append(s.swaps, record)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) StoreMint(ctx context.Context, record model.LiquidityRecord) error {
	s.mu.Lock()
	s.mints = append(s.mints, record)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) StoreBurn(ctx context.Context, record model.LiquidityRecord) error {
	s.mu.Lock()
	s.burns = append(s.burns, record)
	s.mu.Unlock()
	return nil
}

// Swaps returns a copy of the stored swap records.
func (s *MemoryStore) Swaps() []model.SwapRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SwapRecord(nil), s.swaps...)
}

// Mints returns a copy of the stored mint records.
func (s *MemoryStore) Mints() []model.LiquidityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.LiquidityRecord(nil), s.mints...)
}

// Burns returns a copy of the stored burn records.
func (s *MemoryStore) Burns() []model.LiquidityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.LiquidityRecord(nil), s.burns...)
}
