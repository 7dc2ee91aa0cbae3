package pnl

import (
	"time"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/validate"
)

// liveBucketWindow is how close to now a bucket must be before the series
// builder uses live P&L figures instead of historical snapshots.
const liveBucketWindow = 60 * time.Second

// AggregateStats folds per-position P&L records into flat portfolio totals.
// An empty input yields the zero struct, not an error.
func AggregateStats(pnls []domain.PositionPnL) domain.PortfolioStats {
	var stats domain.PortfolioStats
	for _, p := range pnls {
		stats.NetWorthUSD += p.CurrentValueUSD
		stats.TotalProfitUSD += p.PnLWithFeesUSD
		stats.TotalInvestedUSD += p.InvestedUSD
		stats.TotalFeesUSD += p.FeesUSD
	}
	stats.OpenPositions = len(pnls)
	stats.AvgPositionUSD = validate.SafeDivide(stats.NetWorthUSD, float64(len(pnls)))
	stats.TotalProfitPct = validate.SafeDivide(stats.TotalProfitUSD*100, stats.TotalInvestedUSD)
	return stats
}

// TimeSeries builds the portfolio-wide aggregated P&L series for a timeframe.
//
// Past buckets beyond the live window draw each open position's value from
// the snapshot nearest the bucket timestamp when snapshot history exists;
// buckets without coverage fall back to the position's live figures. Closed
// positions contribute their realized P&L, fees, and initial investment to
// every bucket at or after their exit timestamp.
func TimeSeries(
	open []domain.PositionPnL,
	timeframe domain.Timeframe,
	snapshots map[string][]domain.PositionSnapshot,
	exits map[string]domain.PositionExitRecord,
	entries map[string]domain.PositionEntryRecord,
	now time.Time,
) ([]domain.AggregatedPnLPoint, error) {
	cfg, ok := timeframe.Config()
	if !ok {
		return nil, domain.ErrUnsupportedTimeframe
	}
	if len(open) == 0 && len(exits) == 0 {
		return nil, nil
	}

	buckets := timeframe.Buckets()
	start := now.Add(-cfg.Duration)
	liveCutoff := now.Add(-liveBucketWindow).UnixMilli()

	series := make([]domain.AggregatedPnLPoint, 0, buckets)
	for i := 1; i <= buckets; i++ {
		ts := start.Add(time.Duration(i) * cfg.Interval).UnixMilli()
		point := domain.AggregatedPnLPoint{Timestamp: ts}

		for _, p := range open {
			snap, found := nearestSnapshot(snapshots[p.PositionID], ts)
			if ts < liveCutoff && found {
				point.OpenValueUSD += snap.ValueUSD
				point.OpenPnLUSD += snap.PnLUSD
				point.TotalFeesUSD += snap.FeesValueUSD
			} else {
				point.OpenValueUSD += p.CurrentValueUSD
				point.OpenPnLUSD += p.PnLUSD
				point.TotalFeesUSD += p.FeesUSD
			}
			point.TotalInvestedUSD += p.InvestedUSD
		}

		for id, exit := range exits {
			if exit.ExitTimestamp > ts {
				continue
			}
			point.ClosedPnLUSD += exit.RealizedPnLUSD
			point.TotalFeesUSD += exit.FeesValueUSD
			point.TotalInvestedUSD += closedInvested(exit, entries[id])
		}

		point.TotalPnLUSD = point.OpenPnLUSD + point.ClosedPnLUSD
		point.TotalPnLPct = validate.SafeDivide(point.TotalPnLUSD*100, point.TotalInvestedUSD)
		point.TotalValueUSD = point.OpenValueUSD

		series = append(series, point)
	}
	return series, nil
}

// nearestSnapshot picks the snapshot with the minimum absolute timestamp
// distance from ts.
func nearestSnapshot(snaps []domain.PositionSnapshot, ts int64) (domain.PositionSnapshot, bool) {
	if len(snaps) == 0 {
		return domain.PositionSnapshot{}, false
	}
	best := snaps[0]
	bestDist := absInt64(best.Timestamp - ts)
	for _, s := range snaps[1:] {
		if d := absInt64(s.Timestamp - ts); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, true
}

// closedInvested resolves a closed position's initial investment, preferring
// the paired entry record and falling back to the exit's implied value when
// no entry survives.
func closedInvested(exit domain.PositionExitRecord, entry domain.PositionEntryRecord) float64 {
	if entry.PositionID != "" {
		return entry.InitialValueUSD
	}
	return exit.FinalValueUSD - exit.RealizedPnLUSD
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
