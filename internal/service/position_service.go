// Package service coordinates the ledger, oracle, backfill, and signal bus
// into the operations the HTTP and WebSocket layers expose.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lenslabs/lplens/internal/backfill"
	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/ledger"
	"github.com/lenslabs/lplens/internal/oracle"
	"github.com/lenslabs/lplens/internal/pnl"
	"github.com/lenslabs/lplens/internal/validate"
)

// Signal bus channels carrying live update events.
const (
	ChannelPositions = "positions"
	ChannelPnL       = "pnl"
	ChannelSnapshots = "snapshots"
	ChannelScan      = "scan"
)

// Notifier delivers operator notifications. Satisfied by notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// PositionService owns the live position set synced from the dashboard and
// derives P&L views from it. The dashboard is the only source of on-chain
// position state; this service never calls chain programs itself.
type PositionService struct {
	ledger     *ledger.Ledger
	oracle     *oracle.Client
	backfiller *backfill.AutoBackfiller
	scanner    *backfill.Scanner
	bus        domain.SignalBus
	notifier   Notifier
	logger     *slog.Logger

	mu   sync.RWMutex
	live map[string][]domain.LivePosition // wallet -> open positions
}

// NewPositionService creates a PositionService. The bus and notifier may be
// nil; events and notifications are then skipped.
func NewPositionService(
	l *ledger.Ledger,
	o *oracle.Client,
	backfiller *backfill.AutoBackfiller,
	scanner *backfill.Scanner,
	bus domain.SignalBus,
	notifier Notifier,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		ledger:     l,
		oracle:     o,
		backfiller: backfiller,
		scanner:    scanner,
		bus:        bus,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "position_service")),
		live:       make(map[string][]domain.LivePosition),
	}
}

// Sync replaces a wallet's live position set with the dashboard's latest
// snapshot, then backfills entry records for any position the ledger has
// never seen. Positions with malformed identifiers are dropped, not stored.
func (s *PositionService) Sync(ctx context.Context, wallet string, positions []domain.LivePosition) (int, error) {
	if !validate.ValidAddress(wallet) {
		return 0, fmt.Errorf("position_service: wallet: %w", domain.ErrInvalidAddress)
	}

	accepted := make([]domain.LivePosition, 0, len(positions))
	for _, pos := range positions {
		if !validate.ValidAddress(pos.PositionID) || !validate.ValidAddress(pos.Pool.PoolID) {
			s.logger.WarnContext(ctx, "dropping position with invalid identifiers",
				slog.String("position", pos.PositionID),
			)
			continue
		}
		pos.Wallet = wallet
		accepted = append(accepted, pos)
	}

	s.mu.Lock()
	s.live[wallet] = accepted
	s.mu.Unlock()

	written, err := s.backfiller.Run(ctx, accepted)
	if err != nil {
		s.logger.WarnContext(ctx, "auto backfill failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
	}
	if written > 0 && s.notifier != nil {
		_ = s.notifier.Notify(ctx, "backfill_completed", "Backfill completed",
			fmt.Sprintf("Synthesized %d entry record(s) for wallet %s", written, wallet))
	}

	s.publish(ctx, ChannelPositions, map[string]any{
		"event":     "positions_synced",
		"wallet":    wallet,
		"positions": len(accepted),
		"timestamp": time.Now().UnixMilli(),
	})
	return len(accepted), nil
}

// Positions returns a copy of a wallet's current live position set.
func (s *PositionService) Positions(wallet string) []domain.LivePosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LivePosition(nil), s.live[wallet]...)
}

// Wallets returns every wallet with at least one live position.
func (s *PositionService) Wallets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.live))
	for w := range s.live {
		out = append(out, w)
	}
	return out
}

// PnL computes current P&L records for every live position of a wallet.
// Prices for all involved mints are fetched in one batch; unknown prices
// degrade to zero-valued fields.
func (s *PositionService) PnL(ctx context.Context, wallet string) []domain.PositionPnL {
	positions := s.Positions(wallet)
	if len(positions) == 0 {
		return nil
	}

	mints := make([]string, 0, 2*len(positions))
	for _, pos := range positions {
		mints = append(mints, pos.Pool.TokenAMint, pos.Pool.TokenBMint)
	}
	prices := s.oracle.BatchPricesUSD(ctx, mints)
	entries := s.ledger.Entries(ctx)

	now := time.Now()
	out := make([]domain.PositionPnL, 0, len(positions))
	for _, pos := range positions {
		entry := entries[pos.PositionID]
		rec := pnl.CalculatePositionPnL(pos, entry,
			prices[pos.Pool.TokenAMint], prices[pos.Pool.TokenBMint], now)
		rec.ClaimedFeesUSD = s.ledger.TotalClaimedFeesValue(ctx, pos.PositionID)
		out = append(out, rec)
	}
	return out
}

// Stats folds a wallet's open-position P&L into flat portfolio totals.
func (s *PositionService) Stats(ctx context.Context, wallet string) domain.PortfolioStats {
	return pnl.AggregateStats(s.PnL(ctx, wallet))
}

// Series builds the aggregated P&L time series for a wallet and timeframe.
// Only the wallet's own exits contribute realized history; untagged exit
// records are visible to every wallet.
func (s *PositionService) Series(ctx context.Context, wallet string, timeframe domain.Timeframe) ([]domain.AggregatedPnLPoint, error) {
	open := s.PnL(ctx, wallet)
	exits := make(map[string]domain.PositionExitRecord)
	for id, exit := range s.ledger.Exits(ctx) {
		if exit.Wallet == "" || exit.Wallet == wallet {
			exits[id] = exit
		}
	}
	if len(open) == 0 && len(exits) == 0 {
		return nil, nil
	}
	return pnl.TimeSeries(open, timeframe,
		s.ledger.Snapshots(ctx), exits, s.ledger.Entries(ctx), time.Now())
}

// CloseRequest carries the dashboard's report of a completed position close.
type CloseRequest struct {
	PositionID   string `json:"positionId"`
	FinalAmountA string `json:"finalAmountA"`
	FinalAmountB string `json:"finalAmountB"`
	FeesAmountA  string `json:"feesAmountA"`
	FeesAmountB  string `json:"feesAmountB"`
	TxSignature  string `json:"txSignature"`
}

// Close records a position exit reported by the dashboard, prices the final
// amounts, writes the measured exit record, and removes the position from the
// live set.
func (s *PositionService) Close(ctx context.Context, wallet string, req CloseRequest) (domain.PositionExitRecord, error) {
	if !validate.ValidAddress(req.PositionID) {
		return domain.PositionExitRecord{}, fmt.Errorf("position_service: position: %w", domain.ErrInvalidAddress)
	}

	pos, ok := s.findLive(wallet, req.PositionID)
	if !ok {
		return domain.PositionExitRecord{}, fmt.Errorf("position_service: position %s: %w", req.PositionID, domain.ErrNotFound)
	}
	entry, hasEntry := s.ledger.Entries(ctx)[req.PositionID]
	if !hasEntry {
		return domain.PositionExitRecord{}, fmt.Errorf("position_service: entry for %s: %w", req.PositionID, domain.ErrNotFound)
	}

	prices := s.oracle.BatchPricesUSD(ctx, []string{pos.Pool.TokenAMint, pos.Pool.TokenBMint})
	priceA := prices[pos.Pool.TokenAMint]
	priceB := prices[pos.Pool.TokenBMint]

	finalValue := pnl.RawToDecimal(req.FinalAmountA, pos.Pool.DecimalsA)*priceA +
		pnl.RawToDecimal(req.FinalAmountB, pos.Pool.DecimalsB)*priceB
	feesValue := pnl.RawToDecimal(req.FeesAmountA, pos.Pool.DecimalsA)*priceA +
		pnl.RawToDecimal(req.FeesAmountB, pos.Pool.DecimalsB)*priceB
	realized := finalValue - entry.InitialValueUSD

	exit := domain.PositionExitRecord{
		PositionID:     req.PositionID,
		PoolID:         pos.Pool.PoolID,
		Wallet:         wallet,
		ExitTimestamp:  time.Now().UnixMilli(),
		FinalAmountA:   req.FinalAmountA,
		FinalAmountB:   req.FinalAmountB,
		ExitPriceAUSD:  priceA,
		ExitPriceBUSD:  priceB,
		ExitPoolPrice:  validate.SafeDivide(priceB, priceA),
		FinalValueUSD:  finalValue,
		FeesAmountA:    req.FeesAmountA,
		FeesAmountB:    req.FeesAmountB,
		FeesValueUSD:   feesValue,
		RealizedPnLUSD: realized,
		RealizedPnLPct: validate.SafeDivide(realized*100, entry.InitialValueUSD),
		TxSignature:    req.TxSignature,
		Provenance:     domain.ProvenanceMeasured,
	}
	if err := s.ledger.SaveExit(ctx, exit); err != nil {
		return domain.PositionExitRecord{}, fmt.Errorf("position_service: save exit: %w", err)
	}

	s.removeLive(wallet, req.PositionID)

	s.publish(ctx, ChannelPositions, map[string]any{
		"event":       "position_closed",
		"wallet":      wallet,
		"positionId":  req.PositionID,
		"realizedPnl": realized,
		"timestamp":   exit.ExitTimestamp,
	})
	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, "position_closed", "Position closed",
			fmt.Sprintf("Position %s closed with realized P&L $%.2f", req.PositionID, realized))
	}
	return exit, nil
}

// RecordClaimedFees prices a manual fee claim and appends it to the ledger.
func (s *PositionService) RecordClaimedFees(ctx context.Context, wallet, positionID, amountA, amountB string) (domain.ClaimedFeesRecord, error) {
	pos, ok := s.findLive(wallet, positionID)
	if !ok {
		return domain.ClaimedFeesRecord{}, fmt.Errorf("position_service: position %s: %w", positionID, domain.ErrNotFound)
	}

	prices := s.oracle.BatchPricesUSD(ctx, []string{pos.Pool.TokenAMint, pos.Pool.TokenBMint})
	rec := domain.ClaimedFeesRecord{
		AmountA: amountA,
		AmountB: amountB,
		ValueUSD: pnl.RawToDecimal(amountA, pos.Pool.DecimalsA)*prices[pos.Pool.TokenAMint] +
			pnl.RawToDecimal(amountB, pos.Pool.DecimalsB)*prices[pos.Pool.TokenBMint],
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.ledger.RecordClaimedFees(ctx, positionID, rec); err != nil {
		return domain.ClaimedFeesRecord{}, fmt.Errorf("position_service: record claimed fees: %w", err)
	}
	return rec, nil
}

// StartScan launches a historical transaction scan in the background and
// returns its initial status. domain.ErrScanInProgress is returned when one
// is already running.
func (s *PositionService) StartScan(ctx context.Context, wallet string) (domain.ScanStatus, error) {
	if s.scanner == nil {
		return domain.ScanStatus{}, fmt.Errorf("position_service: scanner not configured")
	}
	if !validate.ValidAddress(wallet) {
		return domain.ScanStatus{}, fmt.Errorf("position_service: wallet: %w", domain.ErrInvalidAddress)
	}
	if st := s.scanner.Status(); st.Running {
		return st, domain.ErrScanInProgress
	}

	go func() {
		// Detach from the request context; the scan outlives the trigger call.
		scanCtx := context.WithoutCancel(ctx)
		status, err := s.scanner.Scan(scanCtx, wallet)
		if err != nil {
			s.logger.WarnContext(scanCtx, "historical scan failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
			return
		}
		s.publish(scanCtx, ChannelScan, map[string]any{
			"event":          "scan_completed",
			"wallet":         wallet,
			"runId":          status.RunID,
			"processed":      status.Processed,
			"positionsFound": status.PositionsFound,
			"aborted":        status.Aborted,
			"timestamp":      status.CompletedAt,
		})
		if s.notifier != nil {
			_ = s.notifier.Notify(scanCtx, "scan_completed", "Historical scan completed",
				fmt.Sprintf("Scanned %d transaction(s), recovered %d position(s)", status.Processed, status.PositionsFound))
		}
	}()

	return domain.ScanStatus{Running: true, Wallet: wallet, StartedAt: time.Now().UnixMilli()}, nil
}

// ScanStatus reports the latest historical scan's progress.
func (s *PositionService) ScanStatus() domain.ScanStatus {
	if s.scanner == nil {
		return domain.ScanStatus{}
	}
	return s.scanner.Status()
}

func (s *PositionService) findLive(wallet, positionID string) (domain.LivePosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pos := range s.live[wallet] {
		if pos.PositionID == positionID {
			return pos, true
		}
	}
	return domain.LivePosition{}, false
}

func (s *PositionService) removeLive(wallet, positionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.live[wallet][:0]
	for _, pos := range s.live[wallet] {
		if pos.PositionID != positionID {
			kept = append(kept, pos)
		}
	}
	s.live[wallet] = kept
}

func (s *PositionService) publish(ctx context.Context, channel string, event map[string]any) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(event)
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
