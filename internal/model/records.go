package model

import "time"

// SwapAmounts keeps the raw swap legs as base-10 strings.
type SwapAmounts struct {
	In0  string `json:"in0"`
	In1  string `json:"in1"`
	Out0 string `json:"out0"`
	Out1 string `json:"out1"`
}

// SwapPrice is the token0 price at the time of a swap.
type SwapPrice struct {
	USD string `json:"usd"`
	Ref string `json:"ref"`
}

// SwapRecord is the derived record persisted for every swap on a tracked pair.
type SwapRecord struct {
	ID         string      `json:"id"`
	Pair       string      `json:"pair"`
	Ticker     string      `json:"ticker"`
	Sender     string      `json:"sender"`
	To         string      `json:"to"`
	Amounts    SwapAmounts `json:"amounts"`
	Price      SwapPrice   `json:"price"`
	Log        LogRef      `json:"log"`
	ObservedAt time.Time   `json:"observed_at"`
}

// LiquidityKind distinguishes liquidity additions from removals.
type LiquidityKind string

const (
	LiquidityMint LiquidityKind = "mint"
	LiquidityBurn LiquidityKind = "burn"
)

// LiquidityAmounts keeps raw token amounts as base-10 strings.
type LiquidityAmounts struct {
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
}

// LiquidityRecord is the derived record persisted for Mint and Burn events.
type LiquidityRecord struct {
	ID         string           `json:"id"`
	Kind       LiquidityKind    `json:"kind"`
	Pair       string           `json:"pair"`
	Sender     string           `json:"sender"`
	To         string           `json:"to,omitempty"`
	Amount     LiquidityAmounts `json:"amount"`
	Log        LogRef           `json:"log"`
	ObservedAt time.Time        `json:"observed_at"`
}
