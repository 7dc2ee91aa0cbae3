package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/ledger"
	"github.com/lenslabs/lplens/internal/oracle"
	"github.com/lenslabs/lplens/internal/store/memory"
)

const (
	scanWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	usdcMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	bonkMint   = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	removalSig = "5UfDuXsfEvvrY3pTbrDLKEgBre7zUsLcRvY66yC4RWEq"
	clmmProg   = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
)

// fakeHistory serves scripted signature lists and transaction details.
type fakeHistory struct {
	sigs    []domain.SignatureInfo
	sigErr  error
	txs     map[string]*domain.TransactionDetail
	txErr   error
	txCalls int
	onTx    func(signature string)
}

func (f *fakeHistory) Signatures(context.Context, string, int) ([]domain.SignatureInfo, error) {
	return f.sigs, f.sigErr
}

func (f *fakeHistory) Transaction(_ context.Context, signature string) (*domain.TransactionDetail, error) {
	f.txCalls++
	if f.onTx != nil {
		f.onTx(signature)
	}
	if f.txErr != nil {
		return nil, f.txErr
	}
	tx, ok := f.txs[signature]
	if !ok {
		return nil, fmt.Errorf("unknown signature %s", signature)
	}
	return tx, nil
}

// staticPrices answers every fetch from a fixed quote table.
type staticPrices struct {
	prices map[string]float64
}

func (s staticPrices) FetchPrices(_ context.Context, mints []string) (map[string]domain.TokenPrice, error) {
	out := make(map[string]domain.TokenPrice, len(mints))
	for _, mint := range mints {
		if p, ok := s.prices[mint]; ok {
			out[mint] = domain.TokenPrice{UsdPrice: p}
		}
	}
	return out, nil
}

func testOracle(prices map[string]float64) *oracle.Client {
	return oracle.NewClient(staticPrices{prices: prices}, oracle.NewPriceCache(time.Minute), slog.Default())
}

func testScanConfig() ScanConfig {
	cfg := DefaultScanConfig()
	cfg.BatchDelay = time.Millisecond
	cfg.MaxConsecutiveErrors = 3
	return cfg
}

func newScanFixture(t *testing.T, history *fakeHistory, cfg ScanConfig) (*Scanner, *ledger.Ledger) {
	t.Helper()
	led := ledger.New(memory.NewKVStore(), slog.Default())
	orc := testOracle(map[string]float64{usdcMint: 1.0, domain.WrappedNativeMint: 150.0, bonkMint: 0.00002})
	return NewScanner(history, led, orc, cfg, slog.Default()), led
}

// withdrawalTx builds a transaction where the wallet gains 300 USDC in token
// balances and 2 SOL in raw lamports.
func withdrawalTx(sig string) *domain.TransactionDetail {
	return &domain.TransactionDetail{
		Signature:   sig,
		BlockTime:   time.Now().Add(-time.Hour).Unix(),
		AccountKeys: []string{scanWallet, clmmProg},
		LogMessages: []string{"Program log: Instruction: DecreaseLiquidity"},
		PreTokenBalances: []domain.TokenBalance{
			{Mint: usdcMint, Owner: scanWallet, Amount: "0", Decimals: 6},
		},
		PostTokenBalances: []domain.TokenBalance{
			{Mint: usdcMint, Owner: scanWallet, Amount: "300000000", Decimals: 6},
		},
		PreNative:  []uint64{1000000000, 0},
		PostNative: []uint64{3000000000, 0},
	}
}

func TestScanRejectsInvalidWallet(t *testing.T) {
	s, _ := newScanFixture(t, &fakeHistory{}, testScanConfig())
	_, err := s.Scan(context.Background(), "not-a-wallet")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestScanSynthesizesClosedPosition(t *testing.T) {
	history := &fakeHistory{
		sigs: []domain.SignatureInfo{{Signature: removalSig, BlockTime: time.Now().Add(-time.Hour).Unix()}},
		txs:  map[string]*domain.TransactionDetail{removalSig: withdrawalTx(removalSig)},
	}
	s, led := newScanFixture(t, history, testScanConfig())

	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.False(t, status.Aborted)
	assert.Equal(t, 1, status.Processed)
	assert.Equal(t, 1, status.PositionsFound)

	ctx := context.Background()
	wantID := "hist-" + removalSig[:16]

	entry, ok := led.Entries(ctx)[wantID]
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceEstimated, entry.Provenance)
	assert.Equal(t, domain.UnknownPoolID, entry.PoolID)
	assert.Equal(t, removalSig, entry.TxSignature)

	exit, ok := led.Exits(ctx)[wantID]
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceEstimated, exit.Provenance)
	assert.Equal(t, scanWallet, exit.Wallet)

	// 300 USDC at $1 plus 2 SOL at $150 withdrawn: $600 exit, $540 assumed
	// entry, $60 realized, $30 estimated fees.
	assert.InDelta(t, 600.0, exit.FinalValueUSD, 1e-6)
	assert.InDelta(t, 540.0, entry.InitialValueUSD, 1e-6)
	assert.InDelta(t, 60.0, exit.RealizedPnLUSD, 1e-6)
	assert.InDelta(t, 30.0, exit.FeesValueUSD, 1e-6)
	assert.Less(t, entry.EntryTimestamp, exit.ExitTimestamp)
}

func TestScanSkipsTransactionsWithoutPairShape(t *testing.T) {
	tx := withdrawalTx(removalSig)
	// A third gaining mint breaks the pool-pair shape.
	tx.PostTokenBalances = append(tx.PostTokenBalances, domain.TokenBalance{
		Mint: bonkMint, Owner: scanWallet, Amount: "1000000", Decimals: 5,
	})

	history := &fakeHistory{
		sigs: []domain.SignatureInfo{{Signature: removalSig, BlockTime: time.Now().Add(-time.Hour).Unix()}},
		txs:  map[string]*domain.TransactionDetail{removalSig: tx},
	}
	s, led := newScanFixture(t, history, testScanConfig())

	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Processed)
	assert.Equal(t, 0, status.PositionsFound)
	assert.Empty(t, led.Exits(context.Background()))
}

func TestScanSkipsTransactionsWithoutRemovalLogs(t *testing.T) {
	tx := withdrawalTx(removalSig)
	tx.LogMessages = []string{"Program log: Instruction: Swap"}

	history := &fakeHistory{
		sigs: []domain.SignatureInfo{{Signature: removalSig, BlockTime: time.Now().Add(-time.Hour).Unix()}},
		txs:  map[string]*domain.TransactionDetail{removalSig: tx},
	}
	s, _ := newScanFixture(t, history, testScanConfig())

	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.Equal(t, 0, status.PositionsFound)
}

func TestScanHonorsProgramFilter(t *testing.T) {
	cfg := testScanConfig()
	cfg.ProgramIDs = []string{"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"}

	history := &fakeHistory{
		sigs: []domain.SignatureInfo{{Signature: removalSig, BlockTime: time.Now().Add(-time.Hour).Unix()}},
		txs:  map[string]*domain.TransactionDetail{removalSig: withdrawalTx(removalSig)},
	}
	s, _ := newScanFixture(t, history, cfg)

	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.Equal(t, 0, status.PositionsFound)
}

func TestScanSkipsKnownSignatures(t *testing.T) {
	history := &fakeHistory{
		sigs: []domain.SignatureInfo{{Signature: removalSig, BlockTime: time.Now().Add(-time.Hour).Unix()}},
		txs:  map[string]*domain.TransactionDetail{removalSig: withdrawalTx(removalSig)},
	}
	s, led := newScanFixture(t, history, testScanConfig())

	_, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	require.Equal(t, 1, history.txCalls)

	// A rescan finds the exit already recorded and never refetches the tx.
	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.Equal(t, 1, history.txCalls)
	assert.Equal(t, 1, status.Skipped)
	assert.Len(t, led.Exits(context.Background()), 1)
}

func TestScanSkipsFailedAndStaleSignatures(t *testing.T) {
	cfg := testScanConfig()
	cfg.WindowDays = 30
	history := &fakeHistory{
		sigs: []domain.SignatureInfo{
			{Signature: removalSig, BlockTime: time.Now().Add(-time.Hour).Unix(), Failed: true},
			{Signature: "3QzKtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgVhW", BlockTime: time.Now().AddDate(0, 0, -45).Unix()},
		},
	}
	s, _ := newScanFixture(t, history, cfg)

	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Skipped)
	assert.Equal(t, 0, history.txCalls)
}

func TestScanStatusShowsMidScanProgress(t *testing.T) {
	secondSig := "3QzKtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgVhW"
	now := time.Now().Add(-time.Hour).Unix()
	history := &fakeHistory{
		sigs: []domain.SignatureInfo{
			{Signature: removalSig, BlockTime: now},
			{Signature: secondSig, BlockTime: now},
		},
		txs: map[string]*domain.TransactionDetail{
			removalSig: withdrawalTx(removalSig),
			secondSig:  withdrawalTx(secondSig),
		},
	}
	s, _ := newScanFixture(t, history, testScanConfig())

	// Capture the status endpoint's view while the second transaction is
	// still being fetched.
	var mid domain.ScanStatus
	history.onTx = func(sig string) {
		if sig == secondSig {
			mid = s.Status()
		}
	}

	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Processed)

	assert.True(t, mid.Running)
	assert.Equal(t, 1, mid.Processed)
	assert.Equal(t, 1, mid.PositionsFound)
}

func TestScanSkippedSignaturesEarnNoBatchDelay(t *testing.T) {
	cfg := testScanConfig()
	cfg.BatchSize = 2
	cfg.BatchDelay = time.Hour
	cfg.WindowDays = 30

	stale := time.Now().AddDate(0, 0, -45).Unix()
	history := &fakeHistory{
		sigs: []domain.SignatureInfo{
			{Signature: removalSig, BlockTime: stale},
			{Signature: "3QzKtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgVhW", BlockTime: stale},
			{Signature: "4RzKtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgVhW", BlockTime: stale},
			{Signature: "5SzKtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgVhW", BlockTime: stale},
		},
	}
	s, _ := newScanFixture(t, history, cfg)

	start := time.Now()
	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.Equal(t, 4, status.Skipped)
	assert.Equal(t, 0, history.txCalls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScanAbortsAfterConsecutiveErrors(t *testing.T) {
	cfg := testScanConfig()
	cfg.MaxConsecutiveErrors = 2

	now := time.Now().Add(-time.Hour).Unix()
	history := &fakeHistory{
		sigs: []domain.SignatureInfo{
			{Signature: removalSig, BlockTime: now},
			{Signature: "3QzKtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgVhW", BlockTime: now},
			{Signature: "4RzKtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgVhW", BlockTime: now},
		},
		txErr: errors.New("rpc node unavailable"),
	}
	s, _ := newScanFixture(t, history, cfg)

	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.True(t, status.Aborted)
	assert.Equal(t, 2, status.ConsecutiveErrors)
	assert.Equal(t, 2, history.txCalls)
	assert.Len(t, status.Errors, 2)
}

func TestScanAbortsOnSignatureFetchFailure(t *testing.T) {
	history := &fakeHistory{sigErr: errors.New("history backend down")}
	s, _ := newScanFixture(t, history, testScanConfig())

	status, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)
	assert.True(t, status.Aborted)
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "signature fetch")
}

func TestStatusReturnsCopy(t *testing.T) {
	s, _ := newScanFixture(t, &fakeHistory{}, testScanConfig())
	_, err := s.Scan(context.Background(), scanWallet)
	require.NoError(t, err)

	st := s.Status()
	st.Errors = append(st.Errors, "mutated")
	assert.NotContains(t, s.Status().Errors, "mutated")
}
