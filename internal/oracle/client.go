package oracle

import (
	"context"
	"log/slog"
	"time"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/validate"
)

const (
	// fallbackBatchSize caps sequential lookups when a multi-id fetch fails.
	fallbackBatchSize = 5

	// fallbackBatchDelay spaces fallback batches to respect rate limits.
	fallbackBatchDelay = 500 * time.Millisecond
)

// Client is the price oracle: it validates mints, consults its cache, and
// falls back to the external price source. All failures degrade to price 0.
type Client struct {
	source     domain.PriceSource
	cache      *PriceCache
	logger     *slog.Logger
	batchSize  int
	batchDelay time.Duration
}

// NewClient creates an oracle Client owning the given cache.
func NewClient(source domain.PriceSource, cache *PriceCache, logger *slog.Logger) *Client {
	return &Client{
		source:     source,
		cache:      cache,
		logger:     logger.With(slog.String("component", "oracle")),
		batchSize:  fallbackBatchSize,
		batchDelay: fallbackBatchDelay,
	}
}

// PriceUSD returns the USD price for a single mint. Invalid mints return 0
// without touching the network; fetch or parse failures also return 0 and do
// not populate the cache, so the next call retries.
func (c *Client) PriceUSD(ctx context.Context, mint string) float64 {
	if !validate.ValidAddress(mint) {
		c.logger.WarnContext(ctx, "rejecting invalid mint", slog.String("mint", mint))
		return 0
	}
	if price, ok := c.cache.Get(mint); ok {
		return price
	}

	prices, err := c.source.FetchPrices(ctx, []string{mint})
	if err != nil {
		c.logger.WarnContext(ctx, "price fetch failed, degrading to zero",
			slog.String("mint", mint),
			slog.String("error", err.Error()),
		)
		return 0
	}

	price := c.accept(ctx, mint, prices)
	return price
}

// BatchPricesUSD returns USD prices for a set of mints. The mint list is
// de-duplicated and validated first; one multi-id lookup is attempted, and on
// failure the client falls back to small sequential batches with a short
// inter-batch delay. Every mint in the input appears in the result, with 0
// for unknown prices.
func (c *Client) BatchPricesUSD(ctx context.Context, mints []string) map[string]float64 {
	out := make(map[string]float64, len(mints))

	var wanted []string
	seen := make(map[string]bool, len(mints))
	for _, mint := range mints {
		if seen[mint] {
			continue
		}
		seen[mint] = true
		if !validate.ValidAddress(mint) {
			c.logger.WarnContext(ctx, "rejecting invalid mint in batch", slog.String("mint", mint))
			out[mint] = 0
			continue
		}
		if price, ok := c.cache.Get(mint); ok {
			out[mint] = price
			continue
		}
		wanted = append(wanted, mint)
	}
	if len(wanted) == 0 {
		return out
	}

	prices, err := c.source.FetchPrices(ctx, wanted)
	if err == nil {
		for _, mint := range wanted {
			out[mint] = c.accept(ctx, mint, prices)
		}
		return out
	}

	c.logger.WarnContext(ctx, "batch price fetch failed, falling back to small batches",
		slog.Int("mints", len(wanted)),
		slog.String("error", err.Error()),
	)

	for start := 0; start < len(wanted); start += c.batchSize {
		end := start + c.batchSize
		if end > len(wanted) {
			end = len(wanted)
		}
		batch := wanted[start:end]

		prices, err := c.source.FetchPrices(ctx, batch)
		if err != nil {
			c.logger.WarnContext(ctx, "fallback batch failed",
				slog.Int("batch", start/c.batchSize),
				slog.String("error", err.Error()),
			)
			for _, mint := range batch {
				out[mint] = 0
			}
		} else {
			for _, mint := range batch {
				out[mint] = c.accept(ctx, mint, prices)
			}
		}

		if end < len(wanted) {
			select {
			case <-ctx.Done():
				for _, mint := range wanted[end:] {
					out[mint] = 0
				}
				return out
			case <-time.After(c.batchDelay):
			}
		}
	}
	return out
}

// Known reports whether a fresh cached price exists for mint, letting callers
// distinguish "price is 0" from "price is unknown".
func (c *Client) Known(mint string) bool {
	_, ok := c.cache.Get(mint)
	return ok
}

// Cache exposes the owned cache for stats, clear, and cleanup operations.
func (c *Client) Cache() *PriceCache {
	return c.cache
}

// accept validates one quote out of a fetch result, caches it when valid, and
// returns the accepted price (0 when absent or rejected).
func (c *Client) accept(ctx context.Context, mint string, prices map[string]domain.TokenPrice) float64 {
	quote, ok := prices[mint]
	if !ok {
		return 0
	}
	if !validate.ValidPrice(quote.UsdPrice) {
		c.logger.WarnContext(ctx, "rejecting out-of-range price",
			slog.String("mint", mint),
			slog.Float64("price", quote.UsdPrice),
		)
		return 0
	}
	c.cache.Set(mint, quote.UsdPrice)
	return quote.UsdPrice
}
