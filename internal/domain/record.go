// Package domain defines the core data model for the LP position P&L
// service: persisted ledger records, live position shapes, derived P&L
// structures, and the interfaces implemented by storage, cache, and
// platform adapters.
package domain

// Provenance distinguishes records captured from the live position flow
// from records synthesized by backfill heuristics. Estimated records must
// never overwrite measured ones.
type Provenance string

const (
	ProvenanceMeasured  Provenance = "measured"
	ProvenanceEstimated Provenance = "estimated"
)

// WrappedNativeMint is the mint address of wrapped SOL. Native lamport
// balance changes are attributed to this mint when reconciling withdrawals.
const WrappedNativeMint = "So11111111111111111111111111111111111111112"

// UnknownPoolID is the sentinel pool identifier used on records synthesized
// from transaction history, where the originating pool cannot be recovered.
const UnknownPoolID = "unknown"

// PositionEntryRecord captures a position's opening state. It is written once
// when a position is opened (measured) or first discovered without a record
// (estimated), and never mutated afterwards. Raw token amounts are decimal
// strings of base-unit integers so arbitrarily large on-chain values survive
// JSON round-trips intact.
type PositionEntryRecord struct {
	PositionID      string     `json:"positionId"`
	PoolID          string     `json:"poolId"`
	EntryTimestamp  int64      `json:"entryTimestamp"` // unix milliseconds
	TokenAMint      string     `json:"tokenAMint"`
	TokenBMint      string     `json:"tokenBMint"`
	InitialAmountA  string     `json:"initialAmountA"` // raw base units
	InitialAmountB  string     `json:"initialAmountB"`
	EntryPriceAUSD  float64    `json:"entryPriceAUsd"`
	EntryPriceBUSD  float64    `json:"entryPriceBUsd"`
	EntryPoolPrice  float64    `json:"entryPoolPrice"` // token B per token A
	InitialValueUSD float64    `json:"initialValueUsd"`
	DecimalsA       int        `json:"decimalsA"`
	DecimalsB       int        `json:"decimalsB"`
	TxSignature     string     `json:"txSignature,omitempty"`
	Provenance      Provenance `json:"provenance"`
}

// PositionExitRecord is the terminal record of a closed position. Realized
// P&L is final value minus the paired entry's initial value; collected fees
// are informational and not part of the P&L delta. The wallet tag keeps one
// wallet's realized history out of every other wallet's series.
type PositionExitRecord struct {
	PositionID     string     `json:"positionId"`
	PoolID         string     `json:"poolId"`
	Wallet         string     `json:"wallet,omitempty"`
	ExitTimestamp  int64      `json:"exitTimestamp"` // unix milliseconds
	FinalAmountA   string     `json:"finalAmountA"`  // raw base units
	FinalAmountB   string     `json:"finalAmountB"`
	ExitPriceAUSD  float64    `json:"exitPriceAUsd"`
	ExitPriceBUSD  float64    `json:"exitPriceBUsd"`
	ExitPoolPrice  float64    `json:"exitPoolPrice"`
	FinalValueUSD  float64    `json:"finalValueUsd"`
	FeesAmountA    string     `json:"feesAmountA"`
	FeesAmountB    string     `json:"feesAmountB"`
	FeesValueUSD   float64    `json:"feesValueUsd"`
	RealizedPnLUSD float64    `json:"realizedPnlUsd"`
	RealizedPnLPct float64    `json:"realizedPnlPct"`
	TxSignature    string     `json:"txSignature,omitempty"`
	Provenance     Provenance `json:"provenance"`
}

// PositionSnapshot is a point-in-time valuation sample taken periodically for
// every open position. Snapshots are append-only; each position keeps a
// bounded FIFO sequence of them.
type PositionSnapshot struct {
	Timestamp    int64   `json:"timestamp"` // unix milliseconds
	ValueUSD     float64 `json:"valueUsd"`
	FeesValueUSD float64 `json:"feesValueUsd"`
	PnLUSD       float64 `json:"pnlUsd"`
	PnLPct       float64 `json:"pnlPct"`
	PriceAUSD    float64 `json:"priceAUsd"`
	PriceBUSD    float64 `json:"priceBUsd"`
	PoolPrice    float64 `json:"poolPrice"`
}

// ClaimedFeesRecord records one manual fee-claim action on a position.
type ClaimedFeesRecord struct {
	AmountA   string  `json:"amountA"` // raw base units
	AmountB   string  `json:"amountB"`
	ValueUSD  float64 `json:"valueUsd"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}
