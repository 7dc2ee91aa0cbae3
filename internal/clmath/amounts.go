package clmath

import (
	"math/big"

	"github.com/lenslabs/lplens/internal/validate"
)

// sqrtFloat decodes a Q64.64 square-root price to a float square root.
func sqrtFloat(sqrtPrice *big.Int) float64 {
	if sqrtPrice == nil || sqrtPrice.Sign() <= 0 {
		return 0
	}
	quo := new(big.Int)
	rem := new(big.Int)
	quo.QuoRem(sqrtPrice, q64, rem)
	whole, _ := new(big.Float).SetInt(quo).Float64()
	frac, _ := new(big.Float).SetInt(rem).Float64()
	return whole + frac/18446744073709551616.0 // 2^64
}

// TokenAmountsFromLiquidity computes the decimal token amounts a liquidity
// value represents at the current price, using the standard three-region
// piecewise formula: all token A below the range, all token B above it, a
// mix inside it. Results are scaled down by each token's decimal count and
// clamped at zero.
func TokenAmountsFromLiquidity(
	liquidity *big.Int,
	sqrtPrice, sqrtPriceLower, sqrtPriceUpper *big.Int,
	decimalsA, decimalsB int,
) (amountA, amountB float64) {
	if liquidity == nil || liquidity.Sign() <= 0 {
		return 0, 0
	}
	if sqrtPriceLower == nil || sqrtPriceUpper == nil || sqrtPriceLower.Cmp(sqrtPriceUpper) >= 0 {
		return 0, 0
	}
	if !validate.ValidDecimals(decimalsA) || !validate.ValidDecimals(decimalsB) {
		return 0, 0
	}

	liq, _ := new(big.Float).SetInt(liquidity).Float64()
	sp := sqrtFloat(sqrtPrice)
	sa := sqrtFloat(sqrtPriceLower)
	sb := sqrtFloat(sqrtPriceUpper)
	if sa <= 0 || sb <= 0 {
		return 0, 0
	}

	var rawA, rawB float64
	switch {
	case sp <= sa:
		// Below range: position holds only token A.
		rawA = liq * (1/sa - 1/sb)
		rawB = 0
	case sp >= sb:
		// Above range: position holds only token B.
		rawA = 0
		rawB = liq * (sb - sa)
	default:
		rawA = liq * (1/sp - 1/sb)
		rawB = liq * (sp - sa)
	}

	if rawA < 0 {
		rawA = 0
	}
	if rawB < 0 {
		rawB = 0
	}

	scaleA, err := validate.Pow10(decimalsA)
	if err != nil {
		return 0, 0
	}
	scaleB, err := validate.Pow10(decimalsB)
	if err != nil {
		return 0, 0
	}

	amountA = validate.SafeDivide(rawA, scaleA)
	amountB = validate.SafeDivide(rawB, scaleB)
	return amountA, amountB
}

// LiquidityFromAmounts inverts TokenAmountsFromLiquidity: given the deposited
// decimal amounts and the entry price range, it returns the implied liquidity
// as the binding (minimum) constraint of whichever token-side equation
// applies. Degenerate ranges and non-positive results yield 0.
func LiquidityFromAmounts(
	amountA, amountB float64,
	sqrtPriceEntry, sqrtPriceLower, sqrtPriceUpper *big.Int,
) float64 {
	sp := sqrtFloat(sqrtPriceEntry)
	sa := sqrtFloat(sqrtPriceLower)
	sb := sqrtFloat(sqrtPriceUpper)
	if sa <= 0 || sb <= 0 || sa >= sb {
		return 0
	}

	var liq float64
	switch {
	case sp <= sa:
		liq = amountA * validate.SafeDivide(sa*sb, sb-sa)
	case sp >= sb:
		liq = validate.SafeDivide(amountB, sb-sa)
	default:
		la := amountA * validate.SafeDivide(sp*sb, sb-sp)
		lb := validate.SafeDivide(amountB, sp-sa)
		liq = la
		if lb < la {
			liq = lb
		}
	}

	if !validate.Finite(liq) || liq <= 0 {
		return 0
	}
	return liq
}
