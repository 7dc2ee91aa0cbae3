package clmath

import "github.com/lenslabs/lplens/internal/validate"

// ImpermanentLossResult compares the value of a liquidity position against
// simply holding the originally deposited tokens.
type ImpermanentLossResult struct {
	ImpermanentLoss float64 `json:"impermanentLoss"` // hodl value minus position value
	HodlValue       float64 `json:"hodlValue"`
	Percentage      float64 `json:"percentage"`
}

// ImpermanentLoss computes the shortfall of the position's current USD value
// against the hodl value of the initial deposit at current prices. The
// percentage is taken against the initial USD value via safe division.
func ImpermanentLoss(
	initialAmountA, initialAmountB float64,
	initialPriceA, initialPriceB float64,
	currentPriceA, currentPriceB float64,
	currentLiquidityValueUSD float64,
) ImpermanentLossResult {
	hodl := initialAmountA*currentPriceA + initialAmountB*currentPriceB
	if !validate.Finite(hodl) {
		hodl = 0
	}
	il := hodl - currentLiquidityValueUSD
	if !validate.Finite(il) {
		il = 0
	}

	initialValue := initialAmountA*initialPriceA + initialAmountB*initialPriceB
	return ImpermanentLossResult{
		ImpermanentLoss: il,
		HodlValue:       hodl,
		Percentage:      validate.SafeDivide(il*100, initialValue),
	}
}
