// Package pricing holds the decimal math shared by the oracle, the admission
// filter and the trade processor. Raw on-chain integers are converted to
// decimal.Decimal before any division.
package pricing

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// FullPrecision is the number of fractional digits kept for token prices.
	FullPrecision int32 = 18
	// ReferencePrecision is the number of fractional digits kept for the reference price.
	ReferencePrecision int32 = 6

	divisionScale int32 = 36
)

// ErrZeroDenominator is returned when a ratio would divide by zero.
var ErrZeroDenominator = errors.New("zero denominator")

var hundred = decimal.NewFromInt(100)

// Price is a token price expressed in the reference asset and in USD.
type Price struct {
	Ref decimal.Decimal
	USD decimal.Decimal
}

// Normalize scales a raw integer amount down by 10^decimals.
func Normalize(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// Ratio divides num by den with 36 fractional digits of working precision.
func Ratio(num, den decimal.Decimal) (decimal.Decimal, error) {
	if den.IsZero() {
		return decimal.Zero, ErrZeroDenominator
	}
	return num.DivRound(den, divisionScale), nil
}

// CrossRate prices one unit of token in the reference asset and in USD from
// two already normalized legs.
func CrossRate(tokenAmount, refAmount, refUSD decimal.Decimal) (Price, error) {
	inRef, err := Ratio(refAmount, tokenAmount)
	if err != nil {
		return Price{}, err
	}
	return Price{
		Ref: inRef.Truncate(FullPrecision),
		USD: inRef.Mul(refUSD).Truncate(FullPrecision),
	}, nil
}

// CrossRatePriceUSD computes the two-hop price of a token from raw reserves:
// (refReserve / tokenReserve) * refUSD, each reserve normalized by its decimals.
func CrossRatePriceUSD(tokenRaw, refRaw *big.Int, tokenDecimals, refDecimals uint8, refUSD decimal.Decimal) (Price, error) {
	return CrossRate(Normalize(tokenRaw, tokenDecimals), Normalize(refRaw, refDecimals), refUSD)
}

// Percentage returns part / whole * 100.
func Percentage(part, whole decimal.Decimal) (decimal.Decimal, error) {
	ratio, err := Ratio(part, whole)
	if err != nil {
		return decimal.Zero, err
	}
	return ratio.Mul(hundred), nil
}

// Fixed renders d truncated to the given number of fractional digits.
func Fixed(d decimal.Decimal, places int32) string {
	return d.Truncate(places).StringFixed(places)
}
