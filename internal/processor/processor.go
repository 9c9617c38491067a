// Package processor turns decoded pair events into the records that get
// persisted, pricing swaps against the current reference price.
package processor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pairScout/internal/model"
	"pairScout/internal/pricing"
)

const (
	liquidityPlaces int32 = 3
	percentPlaces   int32 = 2
	marketCapPlaces int32 = 2
)

// Processor builds derived records. The zero value is not usable; use New.
type Processor struct {
	now   func() time.Time
	newID func() string
}

// New returns a Processor stamping records with uuid v4 ids and the wall clock.
func New() *Processor {
	return &Processor{now: time.Now, newID: uuid.NewString}
}

// ComputeSwap prices token0 from one swap. The token leg is in0 when token0
// was sold in, otherwise out0; the reference leg is the opposite side.
func (p *Processor) ComputeSwap(pair model.TrackedPair, ev model.SwapEvent, refUSD decimal.Decimal) (model.SwapRecord, error) {
	var tokenRaw, refRaw *big.Int
	switch {
	case positive(ev.Amount0In):
		tokenRaw, refRaw = ev.Amount0In, ev.Amount1Out
	case positive(ev.Amount1In):
		tokenRaw, refRaw = ev.Amount0Out, ev.Amount1In
	default:
		return model.SwapRecord{}, invariant("swap", pair.Address, ErrNoInputLeg)
	}

	price, err := pricing.CrossRatePriceUSD(tokenRaw, refRaw, pair.Token0.Decimals, pair.Token1.Decimals, refUSD)
	if err != nil {
		return model.SwapRecord{}, invariant("swap", pair.Address, err)
	}

	return model.SwapRecord{
		ID:     p.newID(),
		Pair:   pair.Address,
		Ticker: pair.Ticker(),
		Sender: ev.Sender,
		To:     ev.To,
		Amounts: model.SwapAmounts{
			In0:  amount(ev.Amount0In),
			In1:  amount(ev.Amount1In),
			Out0: amount(ev.Amount0Out),
			Out1: amount(ev.Amount1Out),
		},
		Price: model.SwapPrice{
			USD: pricing.Fixed(price.USD, pricing.FullPrecision),
			Ref: pricing.Fixed(price.Ref, pricing.FullPrecision),
		},
		Log:        ev.Log,
		ObservedAt: p.now().UTC(),
	}, nil
}

// ComputeMint shapes a Mint event for persistence.
func (p *Processor) ComputeMint(pair model.TrackedPair, ev model.MintEvent) model.LiquidityRecord {
	return model.LiquidityRecord{
		ID:     p.newID(),
		Kind:   model.LiquidityMint,
		Pair:   pair.Address,
		Sender: ev.Sender,
		Amount: model.LiquidityAmounts{
			Token0: amount(ev.Amount0),
			Token1: amount(ev.Amount1),
		},
		Log:        ev.Log,
		ObservedAt: p.now().UTC(),
	}
}

// ComputeBurn shapes a Burn event for persistence.
func (p *Processor) ComputeBurn(pair model.TrackedPair, ev model.BurnEvent) model.LiquidityRecord {
	return model.LiquidityRecord{
		ID:     p.newID(),
		Kind:   model.LiquidityBurn,
		Pair:   pair.Address,
		Sender: ev.Sender,
		To:     ev.To,
		Amount: model.LiquidityAmounts{
			Token0: amount(ev.Amount0),
			Token1: amount(ev.Amount1),
		},
		Log:        ev.Log,
		ObservedAt: p.now().UTC(),
	}
}

// Announce computes the figures published for a freshly admitted pair.
// lock may be nil when locker balances were not read.
func (p *Processor) Announce(pair model.TrackedPair, reserves model.ReserveSnapshot, refUSD decimal.Decimal, lock *LockInfo) (model.Announcement, error) {
	liquidity0 := pricing.Normalize(reserves.Reserve0, pair.Token0.Decimals)
	liquidity1 := pricing.Normalize(reserves.Reserve1, pair.Token1.Decimals)

	price, err := pricing.CrossRate(liquidity0, liquidity1, refUSD)
	if err != nil {
		return model.Announcement{}, invariant("announce", pair.Address, err)
	}

	supply, ok := new(big.Int).SetString(pair.Token0.TotalSupply, 10)
	if !ok {
		return model.Announcement{}, fmt.Errorf("parse token0 total supply %q", pair.Token0.TotalSupply)
	}
	concentration, err := pricing.Percentage(pricing.Normalize(reserves.Reserve0, 0), pricing.Normalize(supply, 0))
	if err != nil {
		return model.Announcement{}, invariant("announce", pair.Address, err)
	}
	marketCap := pricing.Normalize(supply, pair.Token0.Decimals).Mul(price.USD)

	out := model.Announcement{
		Pair:             pair,
		Liquidity0:       pricing.Fixed(liquidity0, liquidityPlaces),
		Liquidity1:       pricing.Fixed(liquidity1, liquidityPlaces),
		ConcentrationPct: pricing.Fixed(concentration, percentPlaces),
		PriceUSD:         pricing.Fixed(price.USD, pricing.FullPrecision),
		PriceRef:         pricing.Fixed(price.Ref, pricing.FullPrecision),
		MarketCapUSD:     pricing.Fixed(marketCap, marketCapPlaces),
		ReferenceUSD:     pricing.Fixed(refUSD, pricing.ReferencePrecision),
	}
	if lock != nil {
		out.LockedPct = pricing.Fixed(lock.Percentage, percentPlaces)
	}
	return out, nil
}

// LPReader reads LP token balances. *dex.Reader satisfies it.
type LPReader interface {
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// LockInfo is the share of LP tokens held by known locker contracts.
type LockInfo struct {
	TotalSupply *big.Int
	Locked      *big.Int
	Percentage  decimal.Decimal
}

// LockedLiquidity sums the pair LP balances of lockers against the LP supply.
func LockedLiquidity(ctx context.Context, reader LPReader, pair common.Address, lockers []common.Address) (*LockInfo, error) {
	supply, err := reader.TotalSupply(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("read lp total supply: %w", err)
	}
	locked := new(big.Int)
	for _, locker := range lockers {
		balance, err := reader.BalanceOf(ctx, pair, locker)
		if err != nil {
			return nil, fmt.Errorf("read locker %s balance: %w", locker.Hex(), err)
		}
		locked.Add(locked, balance)
	}
	pct, err := pricing.Percentage(pricing.Normalize(locked, 0), pricing.Normalize(supply, 0))
	if err != nil {
		return nil, invariant("lock", pair.Hex(), err)
	}
	return &LockInfo{TotalSupply: supply, Locked: locked, Percentage: pct}, nil
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
