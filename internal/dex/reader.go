package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairScout/internal/model"
)

// Caller performs read-only contract calls. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenInfoCache caches immutable token metadata by address.
type TokenInfoCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenInfo
}

func NewTokenInfoCache() *TokenInfoCache {
	return &TokenInfoCache{data: make(map[common.Address]model.TokenInfo)}
}

func (c *TokenInfoCache) Get(address common.Address) (model.TokenInfo, bool) {
	c.mu.RLock()
	info, ok := c.data[address]
	c.mu.RUnlock()
	return info, ok
}

func (c *TokenInfoCache) Set(address common.Address, info model.TokenInfo) {
	c.mu.Lock()
	c.data[address] = info
	c.mu.Unlock()
}

// Reader reads pair and token state at the latest block.
type Reader struct {
	caller Caller
	tokens *TokenInfoCache
	logger *zap.Logger
}

// NewReader builds a Reader over caller.
func NewReader(caller Caller, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		caller: caller,
		tokens: NewTokenInfoCache(),
		logger: logger,
	}
}

// Reserves returns the pair's current reserves.
func (r *Reader) Reserves(ctx context.Context, pair common.Address) (model.ReserveSnapshot, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return model.ReserveSnapshot{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := r.call(ctx, pair, pairABI, "getReserves")
	if err != nil {
		return model.ReserveSnapshot{}, err
	}
	if len(values) < 2 {
		return model.ReserveSnapshot{}, fmt.Errorf("getReserves return size %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.ReserveSnapshot{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.ReserveSnapshot{}, fmt.Errorf("reserve1: %w", err)
	}
	return model.ReserveSnapshot{Reserve0: reserve0, Reserve1: reserve1}, nil
}

// TotalSupply returns an ERC20 token's (or LP token's) total supply.
func (r *Reader) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := r.call(ctx, token, erc20, "totalSupply")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// BalanceOf returns owner's balance of token.
func (r *Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := r.call(ctx, token, erc20, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// TokenInfo returns the token's symbol and decimals, reading the chain only
// the first time a token is seen.
func (r *Reader) TokenInfo(ctx context.Context, token common.Address) (model.TokenInfo, error) {
	if info, ok := r.tokens.Get(token); ok {
		return info, nil
	}
	info, err := r.fetchTokenInfo(ctx, token)
	if err != nil {
		return info, err
	}
	r.tokens.Set(token, info)
	return info, nil
}

func (r *Reader) fetchTokenInfo(ctx context.Context, token common.Address) (model.TokenInfo, error) {
	info := model.TokenInfo{Address: token.Hex()}

	stringABI, err := ERC20ABI()
	if err != nil {
		return info, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := ERC20Bytes32ABI()
	if err != nil {
		return info, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := r.call(ctx, token, stringABI, "decimals")
	if err != nil {
		return info, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return info, err
	}
	info.Decimals = decimals

	if values, err := r.call(ctx, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			info.Symbol = symbol
		}
	} else if values, err := r.call(ctx, token, bytes32ABI, "symbol"); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			info.Symbol = symbol
		}
	} else {
		r.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return info, nil
}

func (r *Reader) call(ctx context.Context, target common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if r.caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &target, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
