// Package clmath implements concentrated-liquidity valuation math: Q64.64
// square-root price codecs, tick conversions, amount/liquidity formulas,
// fee-growth accrual, and impermanent loss. On-chain quantities are
// arbitrary-precision integers; only derived human-facing decimals are
// IEEE-754 doubles.
package clmath

import (
	"log/slog"
	"math"
	"math/big"

	"github.com/lenslabs/lplens/internal/validate"
)

// q64 is the Q64.64 fixed-point scale, 2^64.
var q64 = new(big.Int).Lsh(big.NewInt(1), 64)

var q64Float = new(big.Float).SetInt(q64)

// SqrtPriceToPrice decodes a Q64.64 square-root price and squares it. The
// raw integer is split with integer division and remainder before any float
// conversion so large values keep their high bits; converting the whole
// integer directly would lose precision past 2^53.
func SqrtPriceToPrice(sqrtPrice *big.Int) float64 {
	if sqrtPrice == nil || sqrtPrice.Sign() <= 0 {
		return 0
	}

	quo := new(big.Int)
	rem := new(big.Int)
	quo.QuoRem(sqrtPrice, q64, rem)

	whole, _ := new(big.Float).SetInt(quo).Float64()
	fracNum, _ := new(big.Float).SetInt(rem).Float64()
	sqrt := whole + fracNum/math.Pow(2, 64)

	price := sqrt * sqrt
	if !validate.Finite(price) || price < 0 {
		slog.Warn("clmath: decoded sqrt price is not a valid price",
			slog.String("sqrt_price", sqrtPrice.String()),
		)
		return 0
	}
	return price
}

// PriceToSqrtPrice encodes a decimal price as a Q64.64 square-root price.
// Non-finite or non-positive prices encode to zero.
func PriceToSqrtPrice(price float64) *big.Int {
	if !validate.Finite(price) || price <= 0 {
		return new(big.Int)
	}
	sqrt := math.Sqrt(price)
	scaled := new(big.Float).Mul(big.NewFloat(sqrt), q64Float)
	out, _ := scaled.Int(nil)
	return out
}

// ParseQ64 parses a decimal string into the raw fixed-point integer used by
// pool state. Invalid or negative input yields zero.
func ParseQ64(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}
