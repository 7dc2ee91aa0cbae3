package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/ledger"
	"github.com/lenslabs/lplens/internal/oracle"
	"github.com/lenslabs/lplens/internal/pnl"
	"github.com/lenslabs/lplens/internal/validate"
)

// removalLogPatterns are the log-message fragments that identify a
// liquidity-removal or fee-claim instruction in a scanned transaction.
var removalLogPatterns = []string{
	"RemoveLiquidity",
	"DecreaseLiquidity",
	"ClosePosition",
	"ClaimFee",
}

// ScanConfig bounds a historical transaction scan.
type ScanConfig struct {
	// WindowDays limits how far back signatures are considered.
	WindowDays int
	// MaxTransactions caps the number of signatures fetched per scan.
	MaxTransactions int
	// BatchSize is the number of transactions inspected between delays.
	BatchSize int
	// BatchDelay spaces batches to respect RPC rate limits.
	BatchDelay time.Duration
	// MaxConsecutiveErrors aborts the scan once reached.
	MaxConsecutiveErrors int
	// ProgramIDs restricts scanning to transactions touching these programs.
	// Empty means no program filter.
	ProgramIDs []string
}

// DefaultScanConfig returns the scan bounds used when the config file leaves
// them unset.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		WindowDays:           60,
		MaxTransactions:      200,
		BatchSize:            10,
		BatchDelay:           time.Second,
		MaxConsecutiveErrors: 5,
	}
}

// exitHeuristic captures the assumptions applied to every synthesized closed
// position: entry value 10% below the observed exit value, entry dated
// assumedEntryAge before the exit, fees at 5% of the withdrawn amounts.
const (
	exitEntryDiscount = 0.90
	exitFeeFraction   = 0.05
)

// nativeDecimals is the decimal count of the chain's native token (lamports).
const nativeDecimals = 9

// Scanner reconstructs closed positions from a wallet's transaction history.
// One scan runs at a time; progress and outcome are exposed as a ScanStatus,
// never as errors from individual transactions.
type Scanner struct {
	history domain.TransactionHistory
	ledger  *ledger.Ledger
	oracle  *oracle.Client
	logger  *slog.Logger
	cfg     ScanConfig

	mu     sync.Mutex
	status domain.ScanStatus
}

// NewScanner creates a Scanner with the given bounds.
func NewScanner(history domain.TransactionHistory, l *ledger.Ledger, o *oracle.Client, cfg ScanConfig, logger *slog.Logger) *Scanner {
	return &Scanner{
		history: history,
		ledger:  l,
		oracle:  o,
		logger:  logger.With(slog.String("component", "scanner")),
		cfg:     cfg,
	}
}

// Status returns a copy of the most recent scan's status.
func (s *Scanner) Status() domain.ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Errors = append([]string(nil), s.status.Errors...)
	return st
}

// Scan walks the wallet's recent transaction history and synthesizes
// entry/exit record pairs for pool withdrawals not yet in the ledger. It
// returns domain.ErrScanInProgress when a scan is already running.
func (s *Scanner) Scan(ctx context.Context, wallet string) (domain.ScanStatus, error) {
	if !validate.ValidAddress(wallet) {
		return domain.ScanStatus{}, fmt.Errorf("scanner: wallet: %w", domain.ErrInvalidAddress)
	}

	s.mu.Lock()
	if s.status.Running {
		st := s.status
		s.mu.Unlock()
		return st, domain.ErrScanInProgress
	}
	s.status = domain.ScanStatus{
		RunID:     uuid.NewString(),
		Running:   true,
		Wallet:    wallet,
		StartedAt: time.Now().UnixMilli(),
	}
	s.mu.Unlock()

	status := s.run(ctx, wallet)

	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	return status, nil
}

func (s *Scanner) run(ctx context.Context, wallet string) domain.ScanStatus {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	// Mirrors the local counters into s.status so the status endpoint shows
	// live progress while the scan is running.
	progress := func() {
		s.mu.Lock()
		st := status
		st.Errors = append([]string(nil), status.Errors...)
		s.status = st
		s.mu.Unlock()
	}

	defer func() {
		status.Running = false
		status.CompletedAt = time.Now().UnixMilli()
	}()

	sigs, err := s.history.Signatures(ctx, wallet, s.cfg.MaxTransactions)
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("signature fetch: %v", err))
		status.Aborted = true
		return status
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.WindowDays).Unix()
	existing := s.existingSignatures(ctx)

	backoff := s.cfg.BatchDelay
	for i, sig := range sigs {
		if sig.Failed || sig.BlockTime < cutoff || existing[sig.Signature] {
			status.Skipped++
			progress()
			continue
		}

		detail, err := s.history.Transaction(ctx, sig.Signature)
		if err != nil {
			status.ConsecutiveErrors++
			status.Errors = append(status.Errors, fmt.Sprintf("%s: %v", sig.Signature, err))
			progress()
			if status.ConsecutiveErrors >= s.cfg.MaxConsecutiveErrors {
				s.logger.WarnContext(ctx, "aborting scan after repeated errors",
					slog.Int("consecutive", status.ConsecutiveErrors),
				)
				status.Aborted = true
				return status
			}
			if !sleep(ctx, backoff) {
				status.Aborted = true
				return status
			}
			backoff *= 2
			continue
		}
		status.ConsecutiveErrors = 0
		backoff = s.cfg.BatchDelay
		status.Processed++

		if s.reconcile(ctx, wallet, detail) {
			status.PositionsFound++
		} else {
			status.Skipped++
		}
		progress()

		// Only fetched transactions count toward the batch boundary; skipped
		// signatures cost no RPC calls and earn no delay.
		if s.cfg.BatchSize > 0 && status.Processed%s.cfg.BatchSize == 0 && i+1 < len(sigs) {
			if !sleep(ctx, s.cfg.BatchDelay) {
				status.Aborted = true
				return status
			}
		}
	}

	s.logger.InfoContext(ctx, "historical scan completed",
		slog.Int("processed", status.Processed),
		slog.Int("skipped", status.Skipped),
		slog.Int("found", status.PositionsFound),
	)
	return status
}

// existingSignatures collects transaction signatures already represented by
// an exit record, so re-running the scan never duplicates a position.
func (s *Scanner) existingSignatures(ctx context.Context) map[string]bool {
	out := make(map[string]bool)
	for _, exit := range s.ledger.Exits(ctx) {
		if exit.TxSignature != "" {
			out[exit.TxSignature] = true
		}
	}
	return out
}

// reconcile inspects one transaction and, when it has the shape of a
// pool-pair withdrawal, writes a synthesized entry/exit pair. It reports
// whether a position was recorded.
func (s *Scanner) reconcile(ctx context.Context, wallet string, tx *domain.TransactionDetail) bool {
	if !s.touchesProgram(tx) || !hasRemovalLogs(tx.LogMessages) {
		return false
	}

	increases, decimals := netMintIncreases(wallet, tx)
	if len(increases) != 2 {
		return false
	}

	mints := make([]string, 0, 2)
	for mint := range increases {
		mints = append(mints, mint)
	}
	prices := s.oracle.BatchPricesUSD(ctx, mints)

	exitValue := 0.0
	for mint, delta := range increases {
		exitValue += decimalAmount(delta, decimals[mint]) * prices[mint]
	}

	mintA, mintB := mints[0], mints[1]
	if mintB < mintA {
		mintA, mintB = mintB, mintA
	}

	positionID := syntheticID(tx.Signature)
	exitTS := tx.BlockTime * 1000
	entryValue := exitValue * exitEntryDiscount
	realized := exitValue - entryValue

	priceA, priceB := prices[mintA], prices[mintB]
	poolPrice := validate.SafeDivide(priceB, priceA)

	entry := domain.PositionEntryRecord{
		PositionID:      positionID,
		PoolID:          domain.UnknownPoolID,
		EntryTimestamp:  exitTS - assumedEntryAge.Milliseconds(),
		TokenAMint:      mintA,
		TokenBMint:      mintB,
		InitialAmountA:  increases[mintA].String(),
		InitialAmountB:  increases[mintB].String(),
		EntryPriceAUSD:  priceA * exitEntryDiscount,
		EntryPriceBUSD:  priceB * exitEntryDiscount,
		EntryPoolPrice:  poolPrice * exitEntryDiscount,
		InitialValueUSD: entryValue,
		DecimalsA:       decimals[mintA],
		DecimalsB:       decimals[mintB],
		TxSignature:     tx.Signature,
		Provenance:      domain.ProvenanceEstimated,
	}
	exit := domain.PositionExitRecord{
		PositionID:     positionID,
		PoolID:         domain.UnknownPoolID,
		Wallet:         wallet,
		ExitTimestamp:  exitTS,
		FinalAmountA:   increases[mintA].String(),
		FinalAmountB:   increases[mintB].String(),
		ExitPriceAUSD:  priceA,
		ExitPriceBUSD:  priceB,
		ExitPoolPrice:  poolPrice,
		FinalValueUSD:  exitValue,
		FeesAmountA:    feeFraction(increases[mintA]).String(),
		FeesAmountB:    feeFraction(increases[mintB]).String(),
		FeesValueUSD:   exitValue * exitFeeFraction,
		RealizedPnLUSD: realized,
		RealizedPnLPct: validate.SafeDivide(realized*100, entryValue),
		TxSignature:    tx.Signature,
		Provenance:     domain.ProvenanceEstimated,
	}

	if err := s.ledger.SaveEntry(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "scan entry rejected",
			slog.String("position", positionID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if err := s.ledger.SaveExit(ctx, exit); err != nil {
		s.logger.WarnContext(ctx, "scan exit rejected",
			slog.String("position", positionID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (s *Scanner) touchesProgram(tx *domain.TransactionDetail) bool {
	if len(s.cfg.ProgramIDs) == 0 {
		return true
	}
	for _, key := range tx.AccountKeys {
		for _, program := range s.cfg.ProgramIDs {
			if key == program {
				return true
			}
		}
	}
	return false
}

func hasRemovalLogs(logs []string) bool {
	for _, line := range logs {
		for _, pattern := range removalLogPatterns {
			if strings.Contains(line, pattern) {
				return true
			}
		}
	}
	return false
}

// netMintIncreases computes each mint's net wallet-owned balance change
// across the transaction, keeping only positive deltas. Native lamport gains
// are attributed to the wrapped native mint.
func netMintIncreases(wallet string, tx *domain.TransactionDetail) (map[string]*big.Int, map[string]int) {
	deltas := make(map[string]*big.Int)
	decimals := make(map[string]int)

	add := func(mint, amount string, d int, negate bool) {
		v, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return
		}
		if negate {
			v.Neg(v)
		}
		if cur, ok := deltas[mint]; ok {
			cur.Add(cur, v)
		} else {
			deltas[mint] = v
		}
		decimals[mint] = d
	}

	for _, b := range tx.PreTokenBalances {
		if b.Owner == wallet {
			add(b.Mint, b.Amount, b.Decimals, true)
		}
	}
	for _, b := range tx.PostTokenBalances {
		if b.Owner == wallet {
			add(b.Mint, b.Amount, b.Decimals, false)
		}
	}

	// Wrapped-native withdrawals arrive as raw lamport increases on the
	// wallet account rather than token balance changes.
	for i, key := range tx.AccountKeys {
		if key != wallet || i >= len(tx.PreNative) || i >= len(tx.PostNative) {
			continue
		}
		if tx.PostNative[i] > tx.PreNative[i] {
			gain := new(big.Int).SetUint64(tx.PostNative[i] - tx.PreNative[i])
			if cur, ok := deltas[domain.WrappedNativeMint]; ok {
				cur.Add(cur, gain)
			} else {
				deltas[domain.WrappedNativeMint] = gain
			}
			decimals[domain.WrappedNativeMint] = nativeDecimals
		}
	}

	for mint, delta := range deltas {
		if delta.Sign() <= 0 {
			delete(deltas, mint)
			delete(decimals, mint)
		}
	}
	return deltas, decimals
}

// syntheticID derives a stable ledger identifier from a transaction
// signature.
func syntheticID(signature string) string {
	frag := signature
	if len(frag) > 16 {
		frag = frag[:16]
	}
	return validate.HistoricalIDPrefix + frag
}

func decimalAmount(raw *big.Int, decimals int) float64 {
	return pnl.RawToDecimal(raw.String(), decimals)
}

// feeFraction estimates the fee portion of a withdrawn raw amount.
func feeFraction(amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(5))
	return fee.Quo(fee, big.NewInt(100))
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
