// Package jupiter implements domain.PriceSource against the Jupiter lite
// price API.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/validate"
)

// Client queries the Jupiter price API over HTTP.
type Client struct {
	host       string
	httpClient *http.Client
}

// NewClient creates a price API client.
//
// host is the API origin, e.g. "https://lite-api.jup.ag".
func NewClient(host string) *Client {
	return &Client{
		host: strings.TrimRight(host, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchPrices requests USD quotes for the given mints in one call.
// GET {host}/price/v3?ids=mint1,mint2
//
// The response shape is validated at this boundary: dangerous keys and
// out-of-range prices are dropped before they reach callers. HTTP 429 is
// surfaced as domain.ErrRateLimited.
func (c *Client) FetchPrices(ctx context.Context, mints []string) (map[string]domain.TokenPrice, error) {
	if len(mints) == 0 {
		return map[string]domain.TokenPrice{}, nil
	}

	endpoint := fmt.Sprintf("%s/price/v3?ids=%s", c.host, url.QueryEscape(strings.Join(mints, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jupiter: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("jupiter: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var raw map[string]domain.TokenPrice
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("jupiter: decode response: %w", err)
	}

	out := make(map[string]domain.TokenPrice, len(raw))
	for mint, quote := range raw {
		if validate.DangerousKey(mint) || !validate.ValidAddress(mint) {
			continue
		}
		if !validate.ValidPrice(quote.UsdPrice) {
			continue
		}
		out[mint] = quote
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*Client)(nil)
