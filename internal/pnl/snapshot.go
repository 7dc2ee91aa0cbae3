package pnl

import "github.com/lenslabs/lplens/internal/domain"

// NewPositionSnapshot captures a P&L calculation's valuation fields into the
// persisted snapshot shape. The snapshot records P&L excluding unclaimed
// fees; fees are carried separately so the series builder can total them.
func NewPositionSnapshot(p domain.PositionPnL) domain.PositionSnapshot {
	return domain.PositionSnapshot{
		Timestamp:    p.CalculatedAt,
		ValueUSD:     p.CurrentValueUSD,
		FeesValueUSD: p.FeesUSD,
		PnLUSD:       p.PnLUSD,
		PnLPct:       p.PnLPct,
		PriceAUSD:    p.PriceAUSD,
		PriceBUSD:    p.PriceBUSD,
		PoolPrice:    p.PoolPrice,
	}
}
