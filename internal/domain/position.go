package domain

// PoolState is the per-pool slice of on-chain state the valuation math needs.
// Square-root prices are Q64.64 fixed-point values carried as decimal strings
// of the raw integers.
type PoolState struct {
	PoolID         string `json:"poolId"`
	TokenAMint     string `json:"tokenAMint"`
	TokenBMint     string `json:"tokenBMint"`
	DecimalsA      int    `json:"decimalsA"`
	DecimalsB      int    `json:"decimalsB"`
	SqrtPrice      string `json:"sqrtPrice"`      // current
	SqrtPriceLower string `json:"sqrtPriceLower"` // position's lower bound
	SqrtPriceUpper string `json:"sqrtPriceUpper"` // position's upper bound
}

// LivePosition is a point-in-time view of an open position as reported by the
// wallet-side position source. The service never reads on-chain program state
// itself; it consumes these snapshots verbatim.
type LivePosition struct {
	PositionID string    `json:"positionId"`
	Wallet     string    `json:"wallet"`
	Pool       PoolState `json:"pool"`
	AmountA    string    `json:"amountA"` // raw base units
	AmountB    string    `json:"amountB"`
	FeeA       string    `json:"feeA"` // unclaimed fees, raw base units
	FeeB       string    `json:"feeB"`
}

// TokenPrice is one price service quote for a mint.
type TokenPrice struct {
	UsdPrice       float64 `json:"usdPrice"`
	BlockID        int64   `json:"blockId"`
	Decimals       int     `json:"decimals"`
	PriceChange24h float64 `json:"priceChange24h"`
}

// SignatureInfo is one entry of a wallet's transaction signature history.
type SignatureInfo struct {
	Signature string
	BlockTime int64 // unix seconds
	Failed    bool
}

// TokenBalance is a pre- or post-transaction token account balance.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string // raw base units
	Decimals     int
}

// TransactionDetail is the decoded transaction view the historical scanner
// inspects: involved accounts, log messages, and balance states around the
// transaction.
type TransactionDetail struct {
	Signature         string
	BlockTime         int64 // unix seconds
	AccountKeys       []string
	LogMessages       []string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	PreNative         []uint64 // lamports, indexed like AccountKeys
	PostNative        []uint64
}
