package domain

// PositionPnL is the derived, non-persisted P&L view of one open position.
// It is recomputed on every query and always fully populated: every numeric
// field is finite by construction.
type PositionPnL struct {
	PositionID string `json:"positionId"`
	PoolID     string `json:"poolId"`
	Wallet     string `json:"wallet"`

	InvestedUSD     float64 `json:"investedUsd"`
	CurrentValueUSD float64 `json:"currentValueUsd"`
	FeesUSD         float64 `json:"feesUsd"` // unclaimed
	ClaimedFeesUSD  float64 `json:"claimedFeesUsd"`
	PnLUSD          float64 `json:"pnlUsd"` // excluding fees
	PnLWithFeesUSD  float64 `json:"pnlWithFeesUsd"`
	PnLPct          float64 `json:"pnlPct"`

	AmountA    float64 `json:"amountA"` // decimal token amounts
	AmountB    float64 `json:"amountB"`
	FeeAmountA float64 `json:"feeAmountA"`
	FeeAmountB float64 `json:"feeAmountB"`

	PriceAUSD      float64 `json:"priceAUsd"`
	PriceBUSD      float64 `json:"priceBUsd"`
	EntryPoolPrice float64 `json:"entryPoolPrice"`
	PoolPrice      float64 `json:"poolPrice"`
	PriceChange    float64 `json:"priceChange"`
	PriceChangePct float64 `json:"priceChangePct"`

	AgeHours float64 `json:"ageHours"`
	AgeDays  float64 `json:"ageDays"`
	InRange  bool    `json:"inRange"`

	CalculatedAt int64 `json:"calculatedAt"` // unix milliseconds
}

// AggregatedPnLPoint is one bucket of a portfolio-wide time series.
type AggregatedPnLPoint struct {
	Timestamp        int64   `json:"timestamp"` // unix milliseconds
	OpenValueUSD     float64 `json:"openValueUsd"`
	OpenPnLUSD       float64 `json:"openPnlUsd"`
	ClosedPnLUSD     float64 `json:"closedPnlUsd"`
	TotalPnLUSD      float64 `json:"totalPnlUsd"`
	TotalPnLPct      float64 `json:"totalPnlPct"`
	TotalFeesUSD     float64 `json:"totalFeesUsd"`
	TotalInvestedUSD float64 `json:"totalInvestedUsd"`
	TotalValueUSD    float64 `json:"totalValueUsd"`
}

// PortfolioStats is the flat, non-time-series portfolio summary.
type PortfolioStats struct {
	NetWorthUSD      float64 `json:"netWorthUsd"`
	TotalProfitUSD   float64 `json:"totalProfitUsd"`
	TotalProfitPct   float64 `json:"totalProfitPct"`
	TotalInvestedUSD float64 `json:"totalInvestedUsd"`
	TotalFeesUSD     float64 `json:"totalFeesUsd"`
	OpenPositions    int     `json:"openPositions"`
	AvgPositionUSD   float64 `json:"avgPositionUsd"`
}

// ScanStatus reports the progress and outcome of a historical transaction
// scan. It is exposed as data, never as an error to callers.
type ScanStatus struct {
	RunID             string   `json:"runId"`
	Running           bool     `json:"running"`
	Wallet            string   `json:"wallet,omitempty"`
	StartedAt         int64    `json:"startedAt,omitempty"`   // unix milliseconds
	CompletedAt       int64    `json:"completedAt,omitempty"` // unix milliseconds
	Processed         int      `json:"processed"`
	Skipped           int      `json:"skipped"`
	PositionsFound    int      `json:"positionsFound"`
	ConsecutiveErrors int      `json:"consecutiveErrors"`
	Aborted           bool     `json:"aborted"`
	Errors            []string `json:"errors,omitempty"`
}
