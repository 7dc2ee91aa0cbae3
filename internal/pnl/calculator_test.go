package pnl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lenslabs/lplens/internal/clmath"
	"github.com/lenslabs/lplens/internal/domain"
)

func TestRawToDecimal(t *testing.T) {
	assert.Equal(t, 0.0, RawToDecimal("", 6))
	assert.Equal(t, 0.0, RawToDecimal("0", 6))
	assert.Equal(t, 1.0, RawToDecimal("1000000", 6))
	assert.InDelta(t, 1.5, RawToDecimal("1500000", 6), 1e-12)
	assert.InDelta(t, 0.000001, RawToDecimal("1", 6), 1e-15)
	assert.Equal(t, 1234.0, RawToDecimal("1234", 0))

	// Nine-decimal native units.
	assert.InDelta(t, 2.5, RawToDecimal("2500000000", 9), 1e-12)
}

func TestRawToDecimalInvalidInput(t *testing.T) {
	assert.Equal(t, 0.0, RawToDecimal("abc", 6))
	assert.Equal(t, 0.0, RawToDecimal("-100", 6))
	assert.Equal(t, 0.0, RawToDecimal("1.5", 6))
	assert.Equal(t, 0.0, RawToDecimal("100", -1))
	assert.Equal(t, 0.0, RawToDecimal("100", 19))
}

func TestRawToDecimalClampsHugeAmounts(t *testing.T) {
	// 10^30 with 6 decimals quotients to 10^24, far past 2^53.
	huge := "1000000000000000000000000000000"
	got := RawToDecimal(huge, 6)
	assert.Equal(t, float64(int64(1)<<53), got)
}

func TestRawToDecimalLargePrecision(t *testing.T) {
	// A value just under the clamp keeps integer precision through the split.
	got := RawToDecimal("9007199254740992000000", 6) // 2^53 * 10^6
	assert.Equal(t, float64(int64(1)<<53), got)
}

func livePosition() domain.LivePosition {
	cur := clmath.PriceToSqrtPrice(100).String()
	lower := clmath.PriceToSqrtPrice(50).String()
	upper := clmath.PriceToSqrtPrice(200).String()
	return domain.LivePosition{
		PositionID: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		Wallet:     "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK",
		Pool: domain.PoolState{
			PoolID:         "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2",
			DecimalsA:      6,
			DecimalsB:      6,
			SqrtPrice:      cur,
			SqrtPriceLower: lower,
			SqrtPriceUpper: upper,
		},
		AmountA: "500000000", // 500 tokens
		AmountB: "3000000",   // 3 tokens
		FeeA:    "0",
		FeeB:    "0",
	}
}

func TestCalculatePositionPnLBasic(t *testing.T) {
	// $1000 invested, current value $1100: pnl 100, 10%.
	pos := livePosition()
	entry := domain.PositionEntryRecord{
		PositionID:      pos.PositionID,
		InitialValueUSD: 1000,
		EntryPoolPrice:  100,
		EntryTimestamp:  time.Now().Add(-48 * time.Hour).UnixMilli(),
	}
	now := time.Now()

	// 500 * $1 + 3 * $200 = $1100.
	res := CalculatePositionPnL(pos, entry, 1.0, 200.0, now)

	assert.InDelta(t, 1100.0, res.CurrentValueUSD, 1e-9)
	assert.InDelta(t, 100.0, res.PnLUSD, 1e-9)
	assert.InDelta(t, 100.0, res.PnLWithFeesUSD, 1e-9)
	assert.InDelta(t, 10.0, res.PnLPct, 1e-9)
	assert.InDelta(t, 1000.0, res.InvestedUSD, 1e-9)
	assert.InDelta(t, 200.0, res.PoolPrice, 1e-9) // priceB / priceA
	assert.InDelta(t, 100.0, res.PriceChange, 1e-9)
	assert.InDelta(t, 100.0, res.PriceChangePct, 1e-9)
	assert.InDelta(t, 48.0, res.AgeHours, 0.1)
	assert.InDelta(t, 2.0, res.AgeDays, 0.01)
	assert.True(t, res.InRange)
}

func TestCalculatePositionPnLWithFees(t *testing.T) {
	pos := livePosition()
	pos.FeeA = "10000000" // 10 tokens
	pos.FeeB = "0"
	entry := domain.PositionEntryRecord{
		PositionID:      pos.PositionID,
		InitialValueUSD: 1000,
		EntryTimestamp:  time.Now().UnixMilli(),
	}

	res := CalculatePositionPnL(pos, entry, 2.0, 0, time.Now())

	assert.InDelta(t, 20.0, res.FeesUSD, 1e-9)
	assert.Equal(t, res.PnLUSD+res.FeesUSD, res.PnLWithFeesUSD)
}

func TestCalculatePositionPnLUnknownPrices(t *testing.T) {
	pos := livePosition()
	entry := domain.PositionEntryRecord{
		PositionID:      pos.PositionID,
		InitialValueUSD: 1000,
		EntryTimestamp:  time.Now().UnixMilli(),
	}

	// A price of zero degrades valuation to zero, never NaN.
	res := CalculatePositionPnL(pos, entry, 0, 0, time.Now())
	assert.Equal(t, 0.0, res.CurrentValueUSD)
	assert.Equal(t, 0.0, res.PoolPrice)
	assert.InDelta(t, -1000.0, res.PnLUSD, 1e-9)

	// Invalid prices are treated as unknown.
	res = CalculatePositionPnL(pos, entry, -5, 1e16, time.Now())
	assert.Equal(t, 0.0, res.PriceAUSD)
	assert.Equal(t, 0.0, res.PriceBUSD)
}

func TestCalculatePositionPnLZeroInvested(t *testing.T) {
	pos := livePosition()
	entry := domain.PositionEntryRecord{PositionID: pos.PositionID, EntryTimestamp: time.Now().UnixMilli()}

	res := CalculatePositionPnL(pos, entry, 1, 1, time.Now())
	// Percentage against zero investment degrades to zero.
	assert.Equal(t, 0.0, res.PnLPct)
}

func TestCalculatePositionPnLOutOfRange(t *testing.T) {
	pos := livePosition()
	pos.Pool.SqrtPrice = clmath.PriceToSqrtPrice(300).String() // above upper bound
	entry := domain.PositionEntryRecord{PositionID: pos.PositionID, EntryTimestamp: time.Now().UnixMilli()}

	res := CalculatePositionPnL(pos, entry, 1, 1, time.Now())
	assert.False(t, res.InRange)
}

func TestCalculatePositionPnLFutureEntryClampsAge(t *testing.T) {
	pos := livePosition()
	entry := domain.PositionEntryRecord{
		PositionID:     pos.PositionID,
		EntryTimestamp: time.Now().Add(time.Hour).UnixMilli(),
	}

	res := CalculatePositionPnL(pos, entry, 1, 1, time.Now())
	assert.Equal(t, 0.0, res.AgeHours)
	assert.Equal(t, 0.0, res.AgeDays)
}
