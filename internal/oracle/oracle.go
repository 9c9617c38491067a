// Package oracle keeps the running USD price estimate of the reference asset.
//
// The estimate is seeded once from the reference pair's reserves and then
// corrected on every swap seen on that pair. Oracle is the only writer;
// everything else reads through Reader.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"pairScout/internal/model"
	"pairScout/internal/pricing"
)

var (
	buyCorrection  = decimal.RequireFromString("0.0031")
	sellCorrection = decimal.RequireFromString("0.0029")
)

// Reader exposes the current reference price to consumers.
type Reader interface {
	Price() decimal.Decimal
}

// Gauge receives every committed price.
type Gauge interface {
	SetReferencePrice(price float64)
}

// ReservesReader reads pair reserves. *dex.Reader satisfies it.
type ReservesReader interface {
	Reserves(ctx context.Context, pair common.Address) (model.ReserveSnapshot, error)
}

// Config describes the reference pair's orientation and decimals.
type Config struct {
	Pair        common.Address
	USDIsToken0 bool
	USDDecimals uint8
	RefDecimals uint8
}

// Oracle owns the reference price estimate.
type Oracle struct {
	cfg   Config
	gauge Gauge

	mu    sync.RWMutex
	price decimal.Decimal
}

// New returns an uninitialized oracle. gauge may be nil.
func New(cfg Config, gauge Gauge) *Oracle {
	return &Oracle{cfg: cfg, gauge: gauge}
}

// Price returns the last committed estimate.
func (o *Oracle) Price() decimal.Decimal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.price
}

// Load reads the reference pair reserves and seeds the estimate.
func (o *Oracle) Load(ctx context.Context, reader ReservesReader) (decimal.Decimal, error) {
	reserves, err := reader.Reserves(ctx, o.cfg.Pair)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read reference reserves: %w", err)
	}
	return o.Init(reserves)
}

// Init seeds the estimate as usdReserve / refReserve.
func (o *Oracle) Init(reserves model.ReserveSnapshot) (decimal.Decimal, error) {
	usdRaw, refRaw := o.legs(reserves.Reserve0, reserves.Reserve1)
	price, err := pricing.Ratio(
		pricing.Normalize(usdRaw, o.cfg.USDDecimals),
		pricing.Normalize(refRaw, o.cfg.RefDecimals),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("seed reference price: %w", err)
	}
	return o.commit(price), nil
}

// Observe applies one reference pair swap to the estimate. It returns the new
// price and whether an update happened. A zero counter leg is an error and
// leaves the estimate unchanged.
func (o *Oracle) Observe(ev model.SwapEvent) (decimal.Decimal, bool, error) {
	usdIn, refIn := o.legs(ev.Amount0In, ev.Amount1In)
	usdOut, refOut := o.legs(ev.Amount0Out, ev.Amount1Out)

	usdInN := pricing.Normalize(usdIn, o.cfg.USDDecimals)
	refInN := pricing.Normalize(refIn, o.cfg.RefDecimals)

	o.mu.Lock()
	defer o.mu.Unlock()

	var next decimal.Decimal
	switch {
	case usdInN.IsPositive():
		spot, err := pricing.Ratio(usdInN, pricing.Normalize(refOut, o.cfg.RefDecimals))
		if err != nil {
			return o.price, false, fmt.Errorf("reference buy: %w", err)
		}
		next = spot.Sub(o.price.Mul(buyCorrection))
	case refInN.IsPositive():
		spot, err := pricing.Ratio(pricing.Normalize(usdOut, o.cfg.USDDecimals), refInN)
		if err != nil {
			return o.price, false, fmt.Errorf("reference sell: %w", err)
		}
		next = spot.Add(o.price.Mul(sellCorrection))
	default:
		return o.price, false, nil
	}

	o.price = next.Truncate(pricing.ReferencePrecision)
	o.publish(o.price)
	return o.price, true, nil
}

func (o *Oracle) commit(price decimal.Decimal) decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.price = price.Truncate(pricing.ReferencePrecision)
	o.publish(o.price)
	return o.price
}

func (o *Oracle) publish(price decimal.Decimal) {
	if o.gauge != nil {
		o.gauge.SetReferencePrice(price.InexactFloat64())
	}
}

// legs orders a (token0, token1) pair of values as (usd, ref).
func (o *Oracle) legs(v0, v1 *big.Int) (usd, ref *big.Int) {
	if o.cfg.USDIsToken0 {
		return v0, v1
	}
	return v1, v0
}
