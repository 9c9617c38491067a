package dextest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"pairScout/internal/dex"
)

// ErrNoResponse is returned for calls without a registered response.
var ErrNoResponse = errors.New("no response registered")

// Caller answers eth_call requests from ABI-packed canned responses.
type Caller struct {
	mu        sync.Mutex
	responses map[string][]byte
	calls     map[string]int
}

// NewCaller returns an empty Caller.
func NewCaller() *Caller {
	return &Caller{
		responses: make(map[string][]byte),
		calls:     make(map[string]int),
	}
}

// SetReserves registers a getReserves response for pair.
func (c *Caller) SetReserves(pair common.Address, reserve0, reserve1 *big.Int) {
	pairABI := mustABI(dex.V2PairABI())
	c.set(pair, pairABI, "getReserves", reserve0, reserve1, uint32(0))
}

// SetTotalSupply registers a totalSupply response for token.
func (c *Caller) SetTotalSupply(token common.Address, supply *big.Int) {
	c.set(token, mustABI(dex.ERC20ABI()), "totalSupply", supply)
}

// SetBalance registers a balanceOf(owner) response for token.
func (c *Caller) SetBalance(token, owner common.Address, balance *big.Int) {
	erc20 := mustABI(dex.ERC20ABI())
	input, err := erc20.Pack("balanceOf", owner)
	if err != nil {
		panic(err)
	}
	out, err := erc20.Methods["balanceOf"].Outputs.Pack(balance)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.responses[key(token, input)] = out
	c.mu.Unlock()
}

// SetToken registers decimals and a string symbol for token.
func (c *Caller) SetToken(token common.Address, symbol string, decimals uint8) {
	erc20 := mustABI(dex.ERC20ABI())
	c.set(token, erc20, "decimals", decimals)
	c.set(token, erc20, "symbol", symbol)
}

// SetBytes32Token registers decimals and a bytes32 symbol for token.
func (c *Caller) SetBytes32Token(token common.Address, symbol string, decimals uint8) {
	c.set(token, mustABI(dex.ERC20ABI()), "decimals", decimals)
	var raw [32]byte
	copy(raw[:], symbol)
	c.set(token, mustABI(dex.ERC20Bytes32ABI()), "symbol", raw)
}

// Calls returns how many calls hit method selectors on target.
func (c *Caller) Calls(target common.Address) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[target.Hex()]
}

// CallContract implements dex.Caller.
func (c *Caller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, fmt.Errorf("missing call target")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[msg.To.Hex()]++
	out, ok := c.responses[key(*msg.To, msg.Data)]
	if !ok {
		return nil, ErrNoResponse
	}
	return out, nil
}

func (c *Caller) set(target common.Address, parsed abi.ABI, method string, values ...interface{}) {
	input, err := parsed.Pack(method)
	if err != nil {
		panic(err)
	}
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.responses[key(target, input)] = out
	c.mu.Unlock()
}

func key(target common.Address, input []byte) string {
	return target.Hex() + ":" + common.Bytes2Hex(input)
}
