package validate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	knownWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	wrappedSOL  = "So11111111111111111111111111111111111111112"
)

func TestDangerousKey(t *testing.T) {
	assert.True(t, DangerousKey("__proto__"))
	assert.True(t, DangerousKey("constructor"))
	assert.True(t, DangerousKey("prototype"))
	assert.False(t, DangerousKey("proto"))
	assert.False(t, DangerousKey(""))
	assert.False(t, DangerousKey(knownWallet))
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress(knownWallet))
	assert.True(t, ValidAddress(wrappedSOL))

	// Synthetic historical identifiers are accepted without base58-decoding
	// the whole string.
	assert.True(t, ValidAddress("hist-5UfDuX94A1"))
	assert.True(t, ValidAddress("hist-2nBhEBYYvfaAe16UMNqRHre4GcTkz"))

	assert.False(t, ValidAddress(""))
	assert.False(t, ValidAddress("short"))
	assert.False(t, ValidAddress("hist-"))
	assert.False(t, ValidAddress("hist-abc"))       // fragment too short
	assert.False(t, ValidAddress("hist-0OIl0OIl0")) // non-base58 characters
	assert.False(t, ValidAddress("__proto__"))
	// Right length, invalid base58 payload.
	assert.False(t, ValidAddress("IIIIIIIIIIIIIIIIIIIIIIIIIIIIIIIIIIIIIIII"))
}

func TestClampTimestamp(t *testing.T) {
	now := time.Now().UnixMilli()

	assert.Equal(t, now, ClampTimestamp(now))

	weekAgo := time.Now().Add(-7 * 24 * time.Hour).UnixMilli()
	assert.Equal(t, weekAgo, ClampTimestamp(weekAgo))

	// Out-of-range values are replaced with the current time.
	clamped := ClampTimestamp(0)
	assert.InDelta(t, now, clamped, 5000)

	future := time.Now().Add(48 * time.Hour).UnixMilli()
	clamped = ClampTimestamp(future)
	assert.InDelta(t, now, clamped, 5000)

	clamped = ClampTimestamp(-1)
	assert.InDelta(t, now, clamped, 5000)
}

func TestValidDecimals(t *testing.T) {
	assert.True(t, ValidDecimals(0))
	assert.True(t, ValidDecimals(6))
	assert.True(t, ValidDecimals(9))
	assert.True(t, ValidDecimals(18))
	assert.False(t, ValidDecimals(-1))
	assert.False(t, ValidDecimals(19))
	assert.False(t, ValidDecimals(255))
}

func TestValidPrice(t *testing.T) {
	assert.True(t, ValidPrice(0))
	assert.True(t, ValidPrice(172.35))
	assert.True(t, ValidPrice(1e14))
	assert.False(t, ValidPrice(1e15))
	assert.False(t, ValidPrice(-0.01))
	assert.False(t, ValidPrice(math.NaN()))
	assert.False(t, ValidPrice(math.Inf(1)))
	assert.False(t, ValidPrice(math.Inf(-1)))
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 2.0, SafeDivide(10, 5))
	assert.Equal(t, 0.0, SafeDivide(10, 0))
	assert.Equal(t, 0.0, SafeDivide(10, 1e-11))
	assert.Equal(t, 0.0, SafeDivide(10, -1e-11))
	assert.Equal(t, 0.0, SafeDivide(math.NaN(), 5))
	assert.Equal(t, 0.0, SafeDivide(10, math.Inf(1)))

	// Divisors at exactly the threshold still divide.
	assert.NotEqual(t, 0.0, SafeDivide(1, 1e-9))

	assert.Equal(t, -1.0, SafeDivideOr(10, 0, -1))
	assert.Equal(t, 2.0, SafeDivideOr(10, 5, -1))
}

func TestPow10(t *testing.T) {
	v, err := Pow10(0)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = Pow10(9)
	assert.NoError(t, err)
	assert.Equal(t, 1e9, v)

	v, err = Pow10(18)
	assert.NoError(t, err)
	assert.Equal(t, 1e18, v)

	_, err = Pow10(-1)
	assert.Error(t, err)
	_, err = Pow10(19)
	assert.Error(t, err)
}
