// Package storage persists tracked pairs and the records derived from their
// events.
package storage

import (
	"context"

	"pairScout/internal/model"
)

// Store is an append-only sink for pairs and derived records that can list
// previously stored pairs.
type Store interface {
	StorePair(ctx context.Context, pair model.TrackedPair) error
	FetchPairs(ctx context.Context) ([]model.TrackedPair, error)
	StoreSwap(ctx context.Context, record model.SwapRecord) error
	StoreMint(ctx context.Context, record model.LiquidityRecord) error
	StoreBurn(ctx context.Context, record model.LiquidityRecord) error
}
