// Package backfill reconstructs missing ledger history: synthesized entry
// records for live positions discovered without one, and synthesized
// entry/exit pairs recovered from wallet transaction history. Everything this
// package writes is tagged estimated and never overwrites measured records.
package backfill

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/ledger"
	"github.com/lenslabs/lplens/internal/oracle"
	"github.com/lenslabs/lplens/internal/pnl"
	"github.com/lenslabs/lplens/internal/validate"
)

const (
	// assumedEntryAge is how far before discovery a backfilled entry is dated.
	assumedEntryAge = 7 * 24 * time.Hour

	// entryDiscount is the assumed ratio of entry value to current value for
	// auto-backfilled open positions.
	entryDiscount = 0.95

	// autoBackfillTx marks entries synthesized by the auto backfiller.
	autoBackfillTx = "auto-backfill"
)

// AutoBackfiller writes estimated entry records for open positions that have
// none. Each run targets only positions absent from the ledger, so repeated
// runs are idempotent.
type AutoBackfiller struct {
	ledger *ledger.Ledger
	oracle *oracle.Client
	logger *slog.Logger

	mu        sync.Mutex
	inFlight  bool
	lastCount int
}

// NewAutoBackfiller creates an AutoBackfiller over the given ledger and
// oracle.
func NewAutoBackfiller(l *ledger.Ledger, o *oracle.Client, logger *slog.Logger) *AutoBackfiller {
	return &AutoBackfiller{
		ledger: l,
		oracle: o,
		logger: logger.With(slog.String("component", "backfill")),
	}
}

// Run backfills entries for any of the given live positions missing one. It
// returns the number of entries written. A run is skipped, returning 0, when
// another run is in flight or when the live position count has not grown
// since the last completed run.
func (b *AutoBackfiller) Run(ctx context.Context, positions []domain.LivePosition) (int, error) {
	b.mu.Lock()
	if b.inFlight || len(positions) <= b.lastCount {
		b.mu.Unlock()
		return 0, nil
	}
	b.inFlight = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inFlight = false
		b.mu.Unlock()
	}()

	entries := b.ledger.Entries(ctx)
	var missing []domain.LivePosition
	for _, pos := range positions {
		if _, ok := entries[pos.PositionID]; !ok {
			missing = append(missing, pos)
		}
	}
	if len(missing) == 0 {
		b.finish(len(positions))
		return 0, nil
	}

	mints := make([]string, 0, 2*len(missing))
	for _, pos := range missing {
		mints = append(mints, pos.Pool.TokenAMint, pos.Pool.TokenBMint)
	}
	prices := b.oracle.BatchPricesUSD(ctx, mints)

	written := 0
	for _, pos := range missing {
		rec := b.synthesize(pos, prices)
		if err := b.ledger.SaveEntry(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrMeasuredPrecedence) {
				continue
			}
			b.logger.WarnContext(ctx, "backfill entry rejected",
				slog.String("position", pos.PositionID),
				slog.String("error", err.Error()),
			)
			continue
		}
		written++
	}

	b.finish(len(positions))
	b.logger.InfoContext(ctx, "auto backfill completed",
		slog.Int("missing", len(missing)),
		slog.Int("written", written),
	)
	return written, nil
}

func (b *AutoBackfiller) finish(count int) {
	b.mu.Lock()
	b.lastCount = count
	b.mu.Unlock()
}

// synthesize builds an estimated entry record for a live position, assuming
// the position was opened assumedEntryAge ago at entryDiscount of today's
// prices.
func (b *AutoBackfiller) synthesize(pos domain.LivePosition, prices map[string]float64) domain.PositionEntryRecord {
	priceA := prices[pos.Pool.TokenAMint]
	priceB := prices[pos.Pool.TokenBMint]

	amountA := pnl.RawToDecimal(pos.AmountA, pos.Pool.DecimalsA)
	amountB := pnl.RawToDecimal(pos.AmountB, pos.Pool.DecimalsB)
	currentValue := amountA*priceA + amountB*priceB

	return domain.PositionEntryRecord{
		PositionID:      pos.PositionID,
		PoolID:          pos.Pool.PoolID,
		EntryTimestamp:  time.Now().Add(-assumedEntryAge).UnixMilli(),
		TokenAMint:      pos.Pool.TokenAMint,
		TokenBMint:      pos.Pool.TokenBMint,
		InitialAmountA:  pos.AmountA,
		InitialAmountB:  pos.AmountB,
		EntryPriceAUSD:  priceA * entryDiscount,
		EntryPriceBUSD:  priceB * entryDiscount,
		EntryPoolPrice:  validate.SafeDivide(priceB, priceA) * entryDiscount,
		InitialValueUSD: currentValue * entryDiscount,
		DecimalsA:       pos.Pool.DecimalsA,
		DecimalsB:       pos.Pool.DecimalsB,
		TxSignature:     autoBackfillTx,
		Provenance:      domain.ProvenanceEstimated,
	}
}
