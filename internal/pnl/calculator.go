// Package pnl derives profit-and-loss figures: per-position P&L records from
// live position state plus ledger entries and current prices, portfolio-wide
// summary statistics, and time-bucketed aggregated series.
package pnl

import (
	"log/slog"
	"math/big"
	"time"

	"github.com/lenslabs/lplens/internal/clmath"
	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/validate"
)

// maxSafeAmount is the largest integer part a decimal token amount may carry
// before float64 precision degrades. Larger quotients are clamped.
const maxSafeAmount = int64(1) << 53

// RawToDecimal converts a raw base-unit amount string into a decimal token
// amount. The division happens in integer arithmetic so very large on-chain
// amounts do not lose precision before the final float conversion; a quotient
// beyond the safe integer range clamps with a warning.
func RawToDecimal(raw string, decimals int) float64 {
	if raw == "" || raw == "0" {
		return 0
	}
	if !validate.ValidDecimals(decimals) {
		slog.Warn("pnl: decimals out of range", slog.Int("decimals", decimals))
		return 0
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() < 0 {
		slog.Warn("pnl: invalid raw amount", slog.String("raw", raw))
		return 0
	}

	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quo, rem := new(big.Int).QuoRem(n, div, new(big.Int))
	if !quo.IsInt64() || quo.Int64() > maxSafeAmount {
		slog.Warn("pnl: raw amount exceeds safe range, clamping",
			slog.String("raw", raw),
			slog.Int("decimals", decimals),
		)
		return float64(maxSafeAmount)
	}
	return float64(quo.Int64()) + float64(rem.Int64())/float64(div.Int64())
}

// finiteOr replaces a non-finite value with fallback so no output field ever
// carries NaN or Infinity.
func finiteOr(v, fallback float64) float64 {
	if !validate.Finite(v) {
		return fallback
	}
	return v
}

// CalculatePositionPnL combines a live position snapshot, its ledger entry,
// and current USD prices into a fully populated P&L record. Missing price
// data degrades to zero-valued fields rather than an error; callers decide
// how to present unknown prices.
func CalculatePositionPnL(pos domain.LivePosition, entry domain.PositionEntryRecord, priceA, priceB float64, now time.Time) domain.PositionPnL {
	amountA := RawToDecimal(pos.AmountA, pos.Pool.DecimalsA)
	amountB := RawToDecimal(pos.AmountB, pos.Pool.DecimalsB)
	feeA := RawToDecimal(pos.FeeA, pos.Pool.DecimalsA)
	feeB := RawToDecimal(pos.FeeB, pos.Pool.DecimalsB)

	if !validate.ValidPrice(priceA) {
		priceA = 0
	}
	if !validate.ValidPrice(priceB) {
		priceB = 0
	}

	currentValue := finiteOr(amountA*priceA+amountB*priceB, 0)
	feesValue := finiteOr(feeA*priceA+feeB*priceB, 0)

	pnl := finiteOr(currentValue-entry.InitialValueUSD, 0)
	withFees := finiteOr(pnl+feesValue, 0)
	pct := validate.SafeDivide(withFees*100, entry.InitialValueUSD)

	poolPrice := validate.SafeDivide(priceB, priceA)
	priceChange := finiteOr(poolPrice-entry.EntryPoolPrice, 0)
	priceChangePct := validate.SafeDivide(priceChange*100, entry.EntryPoolPrice)

	ageMS := float64(now.UnixMilli() - entry.EntryTimestamp)
	if ageMS < 0 {
		ageMS = 0
	}

	inRange := clmath.InRangeSqrtPrice(
		clmath.ParseQ64(pos.Pool.SqrtPrice),
		clmath.ParseQ64(pos.Pool.SqrtPriceLower),
		clmath.ParseQ64(pos.Pool.SqrtPriceUpper),
	)

	return domain.PositionPnL{
		PositionID: pos.PositionID,
		PoolID:     pos.Pool.PoolID,
		Wallet:     pos.Wallet,

		InvestedUSD:     entry.InitialValueUSD,
		CurrentValueUSD: currentValue,
		FeesUSD:         feesValue,
		PnLUSD:          pnl,
		PnLWithFeesUSD:  withFees,
		PnLPct:          pct,

		AmountA:    amountA,
		AmountB:    amountB,
		FeeAmountA: feeA,
		FeeAmountB: feeB,

		PriceAUSD:      priceA,
		PriceBUSD:      priceB,
		EntryPoolPrice: entry.EntryPoolPrice,
		PoolPrice:      poolPrice,
		PriceChange:    priceChange,
		PriceChangePct: priceChangePct,

		AgeHours: ageMS / float64(time.Hour/time.Millisecond),
		AgeDays:  ageMS / float64(24*time.Hour/time.Millisecond),
		InRange:  inRange,

		CalculatedAt: now.UnixMilli(),
	}
}
