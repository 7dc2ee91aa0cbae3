package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/ledger"
)

// DefaultArchiveInterval spaces periodic ledger exports.
const DefaultArchiveInterval = 24 * time.Hour

// Archiver periodically exports the ledger's four namespaces to blob storage
// as dated JSON documents. The archive is an off-site copy for audit and
// recovery; the ledger itself remains the source of truth.
type Archiver struct {
	writer   domain.BlobWriter
	ledger   *ledger.Ledger
	logger   *slog.Logger
	prefix   string
	interval time.Duration
}

// NewArchiver creates an Archiver writing under the given key prefix. A
// non-positive interval falls back to DefaultArchiveInterval.
func NewArchiver(writer domain.BlobWriter, l *ledger.Ledger, prefix string, interval time.Duration, logger *slog.Logger) *Archiver {
	if prefix == "" {
		prefix = "ledger"
	}
	if interval <= 0 {
		interval = DefaultArchiveInterval
	}
	return &Archiver{
		writer:   writer,
		ledger:   l,
		logger:   logger.With(slog.String("component", "archiver")),
		prefix:   prefix,
		interval: interval,
	}
}

// Run exports the ledger on a fixed ticker until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.ArchiveOnce(ctx); err != nil {
				a.logger.WarnContext(ctx, "ledger archive failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// ArchiveOnce exports each ledger namespace as one JSON object under a
// date-stamped key prefix.
func (a *Archiver) ArchiveOnce(ctx context.Context) error {
	stamp := time.Now().UTC().Format("2006-01-02")

	exports := map[string]any{
		"position-entries":   a.ledger.Entries(ctx),
		"position-exits":     a.ledger.Exits(ctx),
		"position-snapshots": a.ledger.Snapshots(ctx),
		"claimed-fees":       a.ledger.ClaimedFees(ctx),
	}

	for name, payload := range exports {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("s3blob: marshal %s: %w", name, err)
		}
		key := fmt.Sprintf("%s/%s/%s.json", a.prefix, stamp, name)
		if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
			return fmt.Errorf("s3blob: archive %s: %w", name, err)
		}
	}

	a.logger.InfoContext(ctx, "ledger archived",
		slog.String("date", stamp),
		slog.Int("namespaces", len(exports)),
	)
	return nil
}
