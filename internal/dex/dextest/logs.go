// Package dextest builds ABI-encoded Uniswap V2 logs for tests.
package dextest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"pairScout/internal/dex"
)

// Meta positions a log in the chain.
type Meta struct {
	Block uint64
	Tx    common.Hash
	Index uint
}

// AddressTopic left-pads an address into an indexed topic.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

// PairCreated builds a factory PairCreated log.
func PairCreated(factory, token0, token1, pair common.Address, meta Meta) types.Log {
	factoryABI := mustABI(dex.V2FactoryABI())
	event := factoryABI.Events["PairCreated"]
	data, err := event.Inputs.NonIndexed().Pack(pair, big.NewInt(1))
	if err != nil {
		panic(err)
	}
	return build(factory, event.ID, data, meta, AddressTopic(token0), AddressTopic(token1))
}

// Swap builds a pair Swap log.
func Swap(pair, sender, to common.Address, in0, in1, out0, out1 *big.Int, meta Meta) types.Log {
	pairABI := mustABI(dex.V2PairABI())
	event := pairABI.Events["Swap"]
	data, err := event.Inputs.NonIndexed().Pack(in0, in1, out0, out1)
	if err != nil {
		panic(err)
	}
	return build(pair, event.ID, data, meta, AddressTopic(sender), AddressTopic(to))
}

// Mint builds a pair Mint log.
func Mint(pair, sender common.Address, amount0, amount1 *big.Int, meta Meta) types.Log {
	pairABI := mustABI(dex.V2PairABI())
	event := pairABI.Events["Mint"]
	data, err := event.Inputs.NonIndexed().Pack(amount0, amount1)
	if err != nil {
		panic(err)
	}
	return build(pair, event.ID, data, meta, AddressTopic(sender))
}

// Burn builds a pair Burn log.
func Burn(pair, sender, to common.Address, amount0, amount1 *big.Int, meta Meta) types.Log {
	pairABI := mustABI(dex.V2PairABI())
	event := pairABI.Events["Burn"]
	data, err := event.Inputs.NonIndexed().Pack(amount0, amount1)
	if err != nil {
		panic(err)
	}
	return build(pair, event.ID, data, meta, AddressTopic(sender), AddressTopic(to))
}

func build(address common.Address, topic0 common.Hash, data []byte, meta Meta, indexed ...common.Hash) types.Log {
	topics := append([]common.Hash{topic0}, indexed...)
	return types.Log{
		Address:     address,
		Topics:      topics,
		Data:        data,
		BlockNumber: meta.Block,
		TxHash:      meta.Tx,
		Index:       meta.Index,
	}
}
