package model

import (
	"math/big"
	"time"
)

// TrackedPair is an admitted pair. Token1 is always the reference asset.
type TrackedPair struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Token0    TokenInfo `json:"token0"`
	Token1    TokenInfo `json:"token1"`
	CreatedAt time.Time `json:"created_at"`
}

// Ticker returns the display ticker, e.g. PEPE/WETH.
func (p TrackedPair) Ticker() string {
	return p.Token0.Symbol + "/" + p.Token1.Symbol
}

// ReserveSnapshot holds raw pair reserves at one point in time.
type ReserveSnapshot struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}
