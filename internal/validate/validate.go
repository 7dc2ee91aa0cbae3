// Package validate is the validation kernel: pure guards for addresses,
// timestamps, decimal counts, prices, and safe arithmetic. Every numeric
// routine downstream routes through these helpers so malformed persisted data
// and extreme inputs degrade to safe defaults instead of propagating NaN,
// Infinity, or panics.
package validate

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	// MaxDecimals is the largest token decimal count accepted anywhere.
	MaxDecimals = 18

	// MaxPrice is the exclusive upper bound on accepted USD prices.
	MaxPrice = 1e15

	// minDenominator is the magnitude below which a divisor is treated as zero.
	minDenominator = 1e-10

	// maxTimestampPast bounds how far in the past a timestamp may lie.
	maxTimestampPast = 365 * 24 * time.Hour

	// maxTimestampFuture bounds how far ahead of the clock a timestamp may lie.
	maxTimestampFuture = 24 * time.Hour

	// HistoricalIDPrefix marks synthetic position identifiers minted by the
	// historical transaction scanner.
	HistoricalIDPrefix = "hist-"
)

// dangerousKeys are property names that must never be accepted as map keys
// deserialized from storage. The persisted format originated in a JavaScript
// frontend where these enable prototype pollution; rejecting them keeps the
// stores mutually readable and refuses obviously hostile payloads.
var dangerousKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// historicalIDPattern matches the scanner's synthetic identifiers: the
// prefix followed by a bounded base58 fragment of the source signature.
var historicalIDPattern = regexp.MustCompile(`^hist-[1-9A-HJ-NP-Za-km-z]{8,44}$`)

// DangerousKey reports whether s is a forbidden property name.
func DangerousKey(s string) bool {
	return dangerousKeys[s]
}

// ValidAddress reports whether s is an acceptable position, pool, or mint
// identifier: either a base58 address that parses as a 32-byte public key, or
// a synthetic historical-position identifier.
func ValidAddress(s string) bool {
	if DangerousKey(s) {
		return false
	}
	if historicalIDPattern.MatchString(s) {
		return true
	}
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// ClampTimestamp returns ts unchanged when it is a plausible unix-millisecond
// timestamp (non-negative, finite, within one year past to one day future).
// Anything else is replaced with the current time and logged.
func ClampTimestamp(ts int64) int64 {
	now := time.Now()
	min := now.Add(-maxTimestampPast).UnixMilli()
	max := now.Add(maxTimestampFuture).UnixMilli()
	if ts < min || ts > max {
		slog.Warn("validate: timestamp out of range, clamping to now",
			slog.Int64("timestamp", ts),
		)
		return now.UnixMilli()
	}
	return ts
}

// ValidDecimals reports whether d is a token decimal count in [0, MaxDecimals].
func ValidDecimals(d int) bool {
	return d >= 0 && d <= MaxDecimals
}

// ValidPrice reports whether p is a finite, non-negative USD price below
// MaxPrice.
func ValidPrice(p float64) bool {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return false
	}
	return p >= 0 && p < MaxPrice
}

// Finite reports whether f is neither NaN nor infinite.
func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SafeDivide divides n by d, returning 0 when either operand is non-finite,
// the divisor is effectively zero, or the quotient is non-finite.
func SafeDivide(n, d float64) float64 {
	return SafeDivideOr(n, d, 0)
}

// SafeDivideOr is SafeDivide with an explicit fallback value.
func SafeDivideOr(n, d, fallback float64) float64 {
	if !Finite(n) || !Finite(d) {
		return fallback
	}
	if math.Abs(d) < minDenominator {
		return fallback
	}
	q := n / d
	if !Finite(q) {
		return fallback
	}
	return q
}

// Pow10 returns 10^exp for token decimal scaling. It fails for exponents
// outside [0, MaxDecimals] and for non-finite results.
func Pow10(exp int) (float64, error) {
	if exp < 0 || exp > MaxDecimals {
		return 0, fmt.Errorf("validate: pow10 exponent %d out of range [0,%d]", exp, MaxDecimals)
	}
	v := math.Pow10(exp)
	if !Finite(v) {
		return 0, fmt.Errorf("validate: pow10(%d) overflow", exp)
	}
	return v, nil
}
