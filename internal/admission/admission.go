// Package admission decides which newly created pairs are worth tracking.
package admission

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pairScout/internal/model"
	"pairScout/internal/pricing"
)

// Reason identifies the check that rejected a pair.
type Reason string

const (
	ReasonNotReferencePair               Reason = "not_reference_pair"
	ReasonWrongLegOrder                  Reason = "wrong_leg_order"
	ReasonEmptyPool                      Reason = "empty_pool"
	ReasonInsufficientReferenceLiquidity Reason = "insufficient_reference_liquidity"
	ReasonExcessConcentration            Reason = "excess_concentration"
)

// ErrZeroTotalSupply means token0 reported a zero total supply while its pair
// holds a positive reserve.
var ErrZeroTotalSupply = errors.New("token0 total supply is zero")

// Rejection is the outcome of a failed check. It is not an error.
type Rejection struct {
	Reason  Reason
	Check   int
	Message string
}

func (r *Rejection) String() string {
	return fmt.Sprintf("check %d %s: %s", r.Check, r.Reason, r.Message)
}

// Config holds the admission thresholds.
type Config struct {
	Reference common.Address
	// ReferenceDecimals is the configured reference asset decimals.
	ReferenceDecimals uint8
	// MinReferenceLiquidity is compared against reserve1 in raw units.
	MinReferenceLiquidity *big.Int
	// MaxConcentrationPct rejects pairs whose reserve0 is at least this share of token0 supply.
	MaxConcentrationPct decimal.Decimal
}

// Evaluate runs every check in order on already collected inputs and returns
// the first rejection, or nil when the pair passes.
func Evaluate(cfg Config, token0, token1 common.Address, reserves model.ReserveSnapshot, totalSupply0 *big.Int) (*Rejection, error) {
	if rej := checkLegs(cfg, token0, token1); rej != nil {
		return rej, nil
	}
	if rej := checkReserves(cfg, reserves); rej != nil {
		return rej, nil
	}
	return checkConcentration(cfg, reserves.Reserve0, totalSupply0)
}

func checkLegs(cfg Config, token0, token1 common.Address) *Rejection {
	is0 := token0 == cfg.Reference
	is1 := token1 == cfg.Reference
	if is0 == is1 {
		return &Rejection{
			Reason:  ReasonNotReferencePair,
			Check:   1,
			Message: fmt.Sprintf("neither or both legs are %s", cfg.Reference.Hex()),
		}
	}
	if is0 {
		return &Rejection{
			Reason:  ReasonWrongLegOrder,
			Check:   2,
			Message: "reference asset is token0",
		}
	}
	return nil
}

func checkReserves(cfg Config, reserves model.ReserveSnapshot) *Rejection {
	if sign(reserves.Reserve0) <= 0 && sign(reserves.Reserve1) <= 0 {
		return &Rejection{
			Reason:  ReasonEmptyPool,
			Check:   3,
			Message: "both reserves are zero",
		}
	}
	min := cfg.MinReferenceLiquidity
	if min != nil && (reserves.Reserve1 == nil || reserves.Reserve1.Cmp(min) < 0) {
		return &Rejection{
			Reason: ReasonInsufficientReferenceLiquidity,
			Check:  4,
			Message: fmt.Sprintf("reference reserve %s below %s",
				pricing.Normalize(reserves.Reserve1, cfg.ReferenceDecimals),
				pricing.Normalize(min, cfg.ReferenceDecimals)),
		}
	}
	return nil
}

func checkConcentration(cfg Config, reserve0, totalSupply0 *big.Int) (*Rejection, error) {
	pct, err := pricing.Percentage(decimal.NewFromBigInt(orZero(reserve0), 0), decimal.NewFromBigInt(orZero(totalSupply0), 0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrZeroTotalSupply, err)
	}
	if pct.GreaterThanOrEqual(cfg.MaxConcentrationPct) {
		return &Rejection{
			Reason:  ReasonExcessConcentration,
			Check:   5,
			Message: fmt.Sprintf("pool holds %s%% of supply, max %s%%", pricing.Fixed(pct, 2), cfg.MaxConcentrationPct),
		}, nil
	}
	return nil, nil
}

// ChainReader is the on-chain state the filter needs. *dex.Reader satisfies it.
type ChainReader interface {
	Reserves(ctx context.Context, pair common.Address) (model.ReserveSnapshot, error)
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
	TokenInfo(ctx context.Context, token common.Address) (model.TokenInfo, error)
}

// Admission is an accepted pair with the state read while admitting it.
type Admission struct {
	Pair         model.TrackedPair
	Reserves     model.ReserveSnapshot
	TotalSupply0 *big.Int
}

// Filter runs the checks against live chain state, reading only what the
// next check needs.
type Filter struct {
	cfg    Config
	reader ChainReader
	logger *zap.Logger
	now    func() time.Time
}

// NewFilter builds a Filter.
func NewFilter(cfg Config, reader ChainReader, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{cfg: cfg, reader: reader, logger: logger, now: time.Now}
}

// Admit evaluates a PairCreated event. Exactly one of the admission, the
// rejection or the error is meaningful.
func (f *Filter) Admit(ctx context.Context, ev model.PairCreatedEvent) (Admission, *Rejection, error) {
	token0 := common.HexToAddress(ev.Token0)
	token1 := common.HexToAddress(ev.Token1)
	pair := common.HexToAddress(ev.Pair)

	if rej := checkLegs(f.cfg, token0, token1); rej != nil {
		return Admission{}, rej, nil
	}

	reserves, err := f.reader.Reserves(ctx, pair)
	if err != nil {
		return Admission{}, nil, fmt.Errorf("read reserves: %w", err)
	}
	if rej := checkReserves(f.cfg, reserves); rej != nil {
		return Admission{}, rej, nil
	}

	supply0, err := f.reader.TotalSupply(ctx, token0)
	if err != nil {
		return Admission{}, nil, fmt.Errorf("read token0 total supply: %w", err)
	}
	rej, err := checkConcentration(f.cfg, reserves.Reserve0, supply0)
	if err != nil || rej != nil {
		return Admission{}, rej, err
	}

	info0, err := f.reader.TokenInfo(ctx, token0)
	if err != nil {
		return Admission{}, nil, fmt.Errorf("read token0 metadata: %w", err)
	}
	info0.TotalSupply = supply0.String()

	info1, err := f.reader.TokenInfo(ctx, token1)
	if err != nil {
		return Admission{}, nil, fmt.Errorf("read token1 metadata: %w", err)
	}
	if info1.Decimals != f.cfg.ReferenceDecimals {
		f.logger.Warn("reference decimals mismatch",
			zap.String("token", token1.Hex()),
			zap.Uint8("configured", f.cfg.ReferenceDecimals),
			zap.Uint8("onchain", info1.Decimals),
		)
	}

	tracked := model.TrackedPair{
		ID:        uuid.NewString(),
		Address:   pair.Hex(),
		Token0:    info0,
		Token1:    info1,
		CreatedAt: f.now().UTC(),
	}
	return Admission{Pair: tracked, Reserves: reserves, TotalSupply0: supply0}, nil, nil
}

func sign(v *big.Int) int {
	if v == nil {
		return 0
	}
	return v.Sign()
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
