package domain

import (
	"context"
	"io"
	"time"
)

// KVStore is the durable string key to string value substrate beneath the
// position ledger. Implementations must return ErrNotFound for missing keys.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// PriceSource fetches USD quotes for one or more token mints from the
// external price service. Implementations perform no caching; the oracle
// client owns the cache.
type PriceSource interface {
	FetchPrices(ctx context.Context, mints []string) (map[string]TokenPrice, error)
}

// TransactionHistory provides read access to a wallet's past transactions.
// Used only by the historical backfill scanner.
type TransactionHistory interface {
	Signatures(ctx context.Context, wallet string, limit int) ([]SignatureInfo, error)
	Transaction(ctx context.Context, signature string) (*TransactionDetail, error)
}

// RateLimiter bounds request rates per key. Used by the HTTP middleware.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus is a lightweight pub/sub bus for live update events pushed to
// dashboard clients.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader reads and lists objects in blob storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// BlobDeleter removes objects from blob storage.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}
