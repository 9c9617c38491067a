package model

import (
	"math/big"
	"strconv"
)

// LogRef identifies the chain log an event was decoded from.
type LogRef struct {
	Address     string `json:"address"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Removed     bool   `json:"-"`
}

// Key identifies the log for duplicate detection.
func (r LogRef) Key() string {
	return r.TxHash + ":" + strconv.FormatUint(r.LogIndex, 10)
}

// PairCreatedEvent is the decoded factory PairCreated payload.
type PairCreatedEvent struct {
	Log    LogRef
	Token0 string
	Token1 string
	Pair   string
}

// SwapEvent is the decoded pair Swap payload.
type SwapEvent struct {
	Log        LogRef
	Sender     string
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int
	To         string
}

// MintEvent is the decoded pair Mint payload.
type MintEvent struct {
	Log     LogRef
	Sender  string
	Amount0 *big.Int
	Amount1 *big.Int
}

// BurnEvent is the decoded pair Burn payload.
type BurnEvent struct {
	Log     LogRef
	Sender  string
	Amount0 *big.Int
	Amount1 *big.Int
	To      string
}

