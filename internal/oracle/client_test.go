package oracle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslabs/lplens/internal/domain"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	solMint  = "So11111111111111111111111111111111111111112"
	bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

// fakeSource scripts FetchPrices responses per call.
type fakeSource struct {
	responses []func(mints []string) (map[string]domain.TokenPrice, error)
	calls     [][]string
}

func (f *fakeSource) FetchPrices(_ context.Context, mints []string) (map[string]domain.TokenPrice, error) {
	f.calls = append(f.calls, mints)
	if len(f.responses) == 0 {
		return nil, errors.New("unscripted call")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next(mints)
}

func quotes(prices map[string]float64) func([]string) (map[string]domain.TokenPrice, error) {
	return func([]string) (map[string]domain.TokenPrice, error) {
		out := make(map[string]domain.TokenPrice, len(prices))
		for mint, p := range prices {
			out[mint] = domain.TokenPrice{UsdPrice: p}
		}
		return out, nil
	}
}

func fetchError(msg string) func([]string) (map[string]domain.TokenPrice, error) {
	return func([]string) (map[string]domain.TokenPrice, error) {
		return nil, errors.New(msg)
	}
}

func newTestClient(src *fakeSource) *Client {
	c := NewClient(src, NewPriceCache(time.Minute), slog.Default())
	c.batchDelay = time.Millisecond
	return c
}

func TestPriceUSDInvalidMintSkipsNetwork(t *testing.T) {
	src := &fakeSource{}
	c := newTestClient(src)

	assert.Equal(t, 0.0, c.PriceUSD(context.Background(), "__proto__"))
	assert.Equal(t, 0.0, c.PriceUSD(context.Background(), "short"))
	assert.Empty(t, src.calls)
}

func TestPriceUSDCachesAndReuses(t *testing.T) {
	src := &fakeSource{responses: []func([]string) (map[string]domain.TokenPrice, error){
		quotes(map[string]float64{usdcMint: 1.0}),
	}}
	c := newTestClient(src)

	assert.Equal(t, 1.0, c.PriceUSD(context.Background(), usdcMint))
	assert.Equal(t, 1.0, c.PriceUSD(context.Background(), usdcMint))
	assert.Len(t, src.calls, 1)
	assert.True(t, c.Known(usdcMint))
}

func TestPriceUSDFailureNotCached(t *testing.T) {
	src := &fakeSource{responses: []func([]string) (map[string]domain.TokenPrice, error){
		fetchError("429 too many requests"),
		quotes(map[string]float64{solMint: 150.0}),
	}}
	c := newTestClient(src)

	// The rate-limited fetch degrades to 0 without poisoning the cache.
	assert.Equal(t, 0.0, c.PriceUSD(context.Background(), solMint))
	assert.False(t, c.Known(solMint))

	// The retry reaches the source again and succeeds.
	assert.Equal(t, 150.0, c.PriceUSD(context.Background(), solMint))
	assert.Len(t, src.calls, 2)
}

func TestPriceUSDRejectsOutOfRangeQuote(t *testing.T) {
	src := &fakeSource{responses: []func([]string) (map[string]domain.TokenPrice, error){
		quotes(map[string]float64{usdcMint: -3.0}),
	}}
	c := newTestClient(src)

	assert.Equal(t, 0.0, c.PriceUSD(context.Background(), usdcMint))
	assert.False(t, c.Known(usdcMint))
}

func TestBatchPricesDeduplicatesAndValidates(t *testing.T) {
	src := &fakeSource{responses: []func([]string) (map[string]domain.TokenPrice, error){
		quotes(map[string]float64{usdcMint: 1.0, solMint: 150.0}),
	}}
	c := newTestClient(src)

	out := c.BatchPricesUSD(context.Background(), []string{usdcMint, solMint, usdcMint, "garbage"})
	assert.Equal(t, 1.0, out[usdcMint])
	assert.Equal(t, 150.0, out[solMint])
	assert.Equal(t, 0.0, out["garbage"])

	require.Len(t, src.calls, 1)
	assert.ElementsMatch(t, []string{usdcMint, solMint}, src.calls[0])
}

func TestBatchPricesServedFromCache(t *testing.T) {
	src := &fakeSource{}
	c := newTestClient(src)
	c.cache.Set(usdcMint, 1.0)
	c.cache.Set(solMint, 150.0)

	out := c.BatchPricesUSD(context.Background(), []string{usdcMint, solMint})
	assert.Equal(t, 1.0, out[usdcMint])
	assert.Equal(t, 150.0, out[solMint])
	assert.Empty(t, src.calls)
}

func TestBatchPricesFallbackBatches(t *testing.T) {
	src := &fakeSource{responses: []func([]string) (map[string]domain.TokenPrice, error){
		fetchError("503 service unavailable"),
		quotes(map[string]float64{usdcMint: 1.0}),
		quotes(map[string]float64{bonkMint: 0.00002}),
	}}
	c := newTestClient(src)
	c.batchSize = 2

	out := c.BatchPricesUSD(context.Background(), []string{usdcMint, solMint, bonkMint})
	assert.Equal(t, 1.0, out[usdcMint])
	assert.Equal(t, 0.0, out[solMint]) // absent from its batch's quotes
	assert.Equal(t, 0.00002, out[bonkMint])

	// One multi-id attempt plus two fallback batches of size two and one.
	require.Len(t, src.calls, 3)
	assert.Len(t, src.calls[1], 2)
	assert.Len(t, src.calls[2], 1)
}

func TestBatchPricesFallbackBatchFailureZeroes(t *testing.T) {
	src := &fakeSource{responses: []func([]string) (map[string]domain.TokenPrice, error){
		fetchError("timeout"),
		fetchError("timeout"),
		quotes(map[string]float64{bonkMint: 0.00002}),
	}}
	c := newTestClient(src)
	c.batchSize = 2

	out := c.BatchPricesUSD(context.Background(), []string{usdcMint, solMint, bonkMint})
	assert.Equal(t, 0.0, out[usdcMint])
	assert.Equal(t, 0.0, out[solMint])
	assert.Equal(t, 0.00002, out[bonkMint])
}

func TestBatchPricesCancelledContextZeroesRemainder(t *testing.T) {
	src := &fakeSource{responses: []func([]string) (map[string]domain.TokenPrice, error){
		fetchError("down"),
		quotes(map[string]float64{usdcMint: 1.0}),
	}}
	c := newTestClient(src)
	c.batchSize = 1
	c.batchDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := c.BatchPricesUSD(ctx, []string{usdcMint, solMint})
	assert.Equal(t, 1.0, out[usdcMint])
	assert.Equal(t, 0.0, out[solMint])
	require.Len(t, src.calls, 2)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewPriceCache(time.Nanosecond)
	cache.Set(usdcMint, 1.0)
	time.Sleep(time.Millisecond)

	_, ok := cache.Get(usdcMint)
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Cleanup())
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestCacheStats(t *testing.T) {
	cache := NewPriceCache(time.Minute)
	cache.Set(usdcMint, 1.0)
	cache.Set(solMint, 150.0)

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 2, stats.Fresh)

	cache.Clear()
	assert.Equal(t, 0, cache.Stats().Entries)
}
