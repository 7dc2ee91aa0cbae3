package clmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenAmountsThreeRegions(t *testing.T) {
	lower := PriceToSqrtPrice(1.0)
	upper := PriceToSqrtPrice(4.0)
	liq := new(big.Int).Lsh(big.NewInt(1_000_000), 64)

	// Below range: only token A.
	a, b := TokenAmountsFromLiquidity(liq, PriceToSqrtPrice(0.5), lower, upper, 0, 0)
	assert.Greater(t, a, 0.0)
	assert.Equal(t, 0.0, b)

	// Above range: only token B.
	a, b = TokenAmountsFromLiquidity(liq, PriceToSqrtPrice(9.0), lower, upper, 0, 0)
	assert.Equal(t, 0.0, a)
	assert.Greater(t, b, 0.0)

	// In range: both tokens.
	a, b = TokenAmountsFromLiquidity(liq, PriceToSqrtPrice(2.0), lower, upper, 0, 0)
	assert.Greater(t, a, 0.0)
	assert.Greater(t, b, 0.0)
}

func TestTokenAmountsContinuityAtBounds(t *testing.T) {
	lower := PriceToSqrtPrice(1.0)
	upper := PriceToSqrtPrice(4.0)
	liq := new(big.Int).Lsh(big.NewInt(1_000_000), 64)

	// At the lower bound the in-range formula degenerates to the below-range
	// one; amounts on either side of the bound must be close.
	aBelow, _ := TokenAmountsFromLiquidity(liq, PriceToSqrtPrice(0.9999), lower, upper, 0, 0)
	aAt, _ := TokenAmountsFromLiquidity(liq, lower, lower, upper, 0, 0)
	assert.InEpsilon(t, aBelow, aAt, 1e-3)

	_, bAbove := TokenAmountsFromLiquidity(liq, PriceToSqrtPrice(4.0001), lower, upper, 0, 0)
	_, bAt := TokenAmountsFromLiquidity(liq, upper, lower, upper, 0, 0)
	assert.InEpsilon(t, bAbove, bAt, 1e-3)
}

func TestTokenAmountsDecimalScaling(t *testing.T) {
	lower := PriceToSqrtPrice(1.0)
	upper := PriceToSqrtPrice(4.0)
	cur := PriceToSqrtPrice(2.0)
	liq := new(big.Int).Lsh(big.NewInt(1_000_000), 64)

	a0, b0 := TokenAmountsFromLiquidity(liq, cur, lower, upper, 0, 0)
	a6, b9 := TokenAmountsFromLiquidity(liq, cur, lower, upper, 6, 9)
	assert.InEpsilon(t, a0/1e6, a6, 1e-9)
	assert.InEpsilon(t, b0/1e9, b9, 1e-9)
}

func TestTokenAmountsDegenerate(t *testing.T) {
	lower := PriceToSqrtPrice(1.0)
	upper := PriceToSqrtPrice(4.0)
	cur := PriceToSqrtPrice(2.0)
	liq := new(big.Int).Lsh(big.NewInt(1_000_000), 64)

	a, b := TokenAmountsFromLiquidity(nil, cur, lower, upper, 0, 0)
	assert.Equal(t, 0.0, a)
	assert.Equal(t, 0.0, b)

	a, b = TokenAmountsFromLiquidity(big.NewInt(0), cur, lower, upper, 0, 0)
	assert.Equal(t, 0.0, a)
	assert.Equal(t, 0.0, b)

	// Inverted range.
	a, b = TokenAmountsFromLiquidity(liq, cur, upper, lower, 0, 0)
	assert.Equal(t, 0.0, a)
	assert.Equal(t, 0.0, b)

	// Invalid decimals.
	a, b = TokenAmountsFromLiquidity(liq, cur, lower, upper, 19, 0)
	assert.Equal(t, 0.0, a)
	assert.Equal(t, 0.0, b)
}

func TestLiquidityFromAmountsRoundTrip(t *testing.T) {
	lower := PriceToSqrtPrice(1.0)
	upper := PriceToSqrtPrice(4.0)
	cur := PriceToSqrtPrice(2.0)
	liq := new(big.Int).Lsh(big.NewInt(1_000_000), 64)

	a, b := TokenAmountsFromLiquidity(liq, cur, lower, upper, 0, 0)
	got := LiquidityFromAmounts(a, b, cur, lower, upper)

	want, _ := new(big.Float).SetInt(liq).Float64()
	assert.InEpsilon(t, want, got, 1e-6)
}

func TestLiquidityFromAmountsDegenerate(t *testing.T) {
	lower := PriceToSqrtPrice(1.0)
	upper := PriceToSqrtPrice(4.0)

	assert.Equal(t, 0.0, LiquidityFromAmounts(1, 1, PriceToSqrtPrice(2.0), upper, lower))
	assert.Equal(t, 0.0, LiquidityFromAmounts(0, 0, PriceToSqrtPrice(2.0), lower, upper))
	assert.Equal(t, 0.0, LiquidityFromAmounts(1, 1, PriceToSqrtPrice(2.0), nil, upper))
}

func TestFeesFromGrowth(t *testing.T) {
	liq := new(big.Int).Lsh(big.NewInt(500), 64) // 500 << 64
	last := big.NewInt(0)
	// growth delta of exactly 1 token per unit liquidity: 1 << 64.
	global := new(big.Int).Lsh(big.NewInt(1), 64)

	feeA, feeB := FeesFromGrowth(liq, global, global, last, last)
	// (500<<64 * 1<<64) >> 64 = 500 << 64
	want := new(big.Int).Lsh(big.NewInt(500), 64)
	assert.Equal(t, want, feeA)
	assert.Equal(t, want, feeB)
}

func TestFeesFromGrowthNegativeDeltaClamps(t *testing.T) {
	liq := big.NewInt(1000)
	now := big.NewInt(5)
	last := big.NewInt(10)

	feeA, feeB := FeesFromGrowth(liq, now, now, last, last)
	assert.Equal(t, 0, feeA.Sign())
	assert.Equal(t, 0, feeB.Sign())
}

func TestRewardWithScaling(t *testing.T) {
	liq := big.NewInt(1 << 10)
	last := big.NewInt(0)
	now := new(big.Int).Lsh(big.NewInt(3), 64)

	got := RewardWithScaling(liq, now, last)
	assert.Equal(t, big.NewInt(3<<10), got)

	assert.Equal(t, 0, RewardWithScaling(nil, now, last).Sign())
}

func TestImpermanentLoss(t *testing.T) {
	// Deposit 10 A @ $1 and 10 B @ $1 ($20). Price of A doubles; pool value
	// rebalances to $28. Hodl would be worth $30, so IL is $2 (10%).
	res := ImpermanentLoss(10, 10, 1, 1, 2, 1, 28)
	assert.InDelta(t, 30.0, res.HodlValue, 1e-9)
	assert.InDelta(t, 2.0, res.ImpermanentLoss, 1e-9)
	assert.InDelta(t, 10.0, res.Percentage, 1e-9)
}

func TestImpermanentLossZeroInitialValue(t *testing.T) {
	res := ImpermanentLoss(0, 0, 0, 0, 2, 1, 0)
	assert.Equal(t, 0.0, res.Percentage)
	assert.Equal(t, 0.0, res.ImpermanentLoss)
}
