package clmath

import (
	"math"
	"math/big"

	"github.com/lenslabs/lplens/internal/validate"
)

// tickBase is the proportional price step between adjacent ticks.
const tickBase = 1.0001

// TickToPrice returns the price at a tick index: tickBase^(2*tick).
func TickToPrice(tick int) float64 {
	return math.Pow(tickBase, 2*float64(tick))
}

// PriceToTick inverts TickToPrice, rounding to the nearest integer tick.
// Non-finite or non-positive prices map to tick 0.
func PriceToTick(price float64) int {
	if !validate.Finite(price) || price <= 0 {
		return 0
	}
	return int(math.Round(math.Log(price) / (2 * math.Log(tickBase))))
}

// InRangeTick reports whether the current tick lies inside the position's
// tick bounds, inclusive on both ends.
func InRangeTick(current, lower, upper int) bool {
	return current >= lower && current <= upper
}

// InRangeSqrtPrice is the fixed-point variant of the in-range test, comparing
// Q64.64 square-root prices directly. It must agree with InRangeTick for
// bounds derived from the same ticks.
func InRangeSqrtPrice(current, lower, upper *big.Int) bool {
	if current == nil || lower == nil || upper == nil {
		return false
	}
	return current.Cmp(lower) >= 0 && current.Cmp(upper) <= 0
}
