package clmath

import (
	"log/slog"
	"math/big"
)

// FeesFromGrowth computes fee accrual from fee-growth deltas:
// fee = liquidity * (growthGlobal - growthLast) / 2^64, entirely in integer
// arithmetic. Negative deltas (which indicate broken accounting upstream)
// clamp to zero. Provided for manual verification against the vendor SDK's
// own accrual computation.
func FeesFromGrowth(
	liquidity *big.Int,
	feeGrowthGlobalA, feeGrowthGlobalB *big.Int,
	feeGrowthLastA, feeGrowthLastB *big.Int,
) (feeA, feeB *big.Int) {
	return growthDelta(liquidity, feeGrowthGlobalA, feeGrowthLastA),
		growthDelta(liquidity, feeGrowthGlobalB, feeGrowthLastB)
}

// RewardWithScaling computes reward accrual from a per-token-stored delta:
// reward = (liquidity * (now - last)) >> 64.
func RewardWithScaling(liquidity, rewardPerTokenNow, rewardPerTokenLast *big.Int) *big.Int {
	return growthDelta(liquidity, rewardPerTokenNow, rewardPerTokenLast)
}

func growthDelta(liquidity, now, last *big.Int) *big.Int {
	if liquidity == nil || now == nil || last == nil {
		return new(big.Int)
	}
	delta := new(big.Int).Sub(now, last)
	if delta.Sign() < 0 {
		slog.Warn("clmath: negative growth delta, clamping to zero",
			slog.String("now", now.String()),
			slog.String("last", last.String()),
		)
		return new(big.Int)
	}
	out := new(big.Int).Mul(liquidity, delta)
	return out.Rsh(out, 64)
}
