package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/ledger"
	"github.com/lenslabs/lplens/internal/pnl"
)

// DefaultSnapshotInterval spaces the periodic valuation samples. Hourly
// samples against the ledger's FIFO cap retain roughly 90 days of history
// per position.
const DefaultSnapshotInterval = time.Hour

// SnapshotService periodically values every live open position and appends
// the sample to its snapshot sequence in the ledger.
type SnapshotService struct {
	positions *PositionService
	ledger    *ledger.Ledger
	bus       domain.SignalBus
	logger    *slog.Logger
	interval  time.Duration
}

// NewSnapshotService creates a SnapshotService. A non-positive interval
// falls back to DefaultSnapshotInterval.
func NewSnapshotService(positions *PositionService, l *ledger.Ledger, bus domain.SignalBus, interval time.Duration, logger *slog.Logger) *SnapshotService {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &SnapshotService{
		positions: positions,
		ledger:    l,
		bus:       bus,
		logger:    logger.With(slog.String("component", "snapshot_service")),
		interval:  interval,
	}
}

// Run records snapshots on a fixed ticker until the context is cancelled.
// One round fires immediately so a freshly started process does not wait a
// full interval for its first sample.
func (s *SnapshotService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RecordAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RecordAll(ctx)
		}
	}
}

// RecordAll takes one valuation sample for every live position across all
// synced wallets. It returns the number of snapshots written.
func (s *SnapshotService) RecordAll(ctx context.Context) int {
	written := 0
	for _, wallet := range s.positions.Wallets() {
		for _, p := range s.positions.PnL(ctx, wallet) {
			snap := pnl.NewPositionSnapshot(p)
			if err := s.ledger.SaveSnapshot(ctx, p.PositionID, snap); err != nil {
				s.logger.WarnContext(ctx, "snapshot write failed",
					slog.String("position", p.PositionID),
					slog.String("error", err.Error()),
				)
				continue
			}
			written++
		}
	}
	if written > 0 {
		s.publish(ctx, written)
	}
	return written
}

func (s *SnapshotService) publish(ctx context.Context, written int) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event":     "snapshots_recorded",
		"count":     written,
		"timestamp": time.Now().UnixMilli(),
	})
	if err := s.bus.Publish(ctx, ChannelSnapshots, payload); err != nil {
		s.logger.WarnContext(ctx, "publish snapshot event failed",
			slog.String("error", err.Error()),
		)
	}
}
