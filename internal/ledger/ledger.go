// Package ledger is the durable record of position lifecycle events: entry
// records, exit records, periodic value snapshots, and claimed-fee events.
// It is the sole reader and writer of the underlying key-value substrate;
// every other component receives copies.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/validate"
)

// Substrate keys, one per namespace.
const (
	keyEntries     = "position-entries"
	keyExits       = "position-exits"
	keySnapshots   = "position-snapshots"
	keyClaimedFees = "claimed-fees"
)

// DefaultSnapshotCap bounds each position's snapshot sequence: hourly samples
// for roughly 90 days.
const DefaultSnapshotCap = 2160

// Ledger owns the four persisted namespaces. All writes are read-modify-write
// cycles over the whole namespace, serialized by an internal mutex.
type Ledger struct {
	kv          domain.KVStore
	logger      *slog.Logger
	snapshotCap int

	mu sync.Mutex
}

// New creates a Ledger over the given substrate.
func New(kv domain.KVStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		kv:          kv,
		logger:      logger.With(slog.String("component", "ledger")),
		snapshotCap: DefaultSnapshotCap,
	}
}

// WithSnapshotCap overrides the snapshot sequence bound. Values below one
// keep the default.
func (l *Ledger) WithSnapshotCap(cap int) *Ledger {
	if cap > 0 {
		l.snapshotCap = cap
	}
	return l
}

// SaveEntry persists a position entry record. Unlike the other writers it
// fails on malformed input: a corrupt entry would poison all derived P&L for
// that position. Out-of-range timestamps are clamped here, on write only;
// records already at rest are never rewritten on read. Last-write-wins per
// position id, except that an estimated record never overwrites a measured
// one (ErrMeasuredPrecedence).
func (l *Ledger) SaveEntry(ctx context.Context, rec domain.PositionEntryRecord) error {
	if rec.Provenance == "" {
		rec.Provenance = domain.ProvenanceMeasured
	}
	rec.EntryTimestamp = validate.ClampTimestamp(rec.EntryTimestamp)
	if err := guardEntry(rec.PositionID, &rec); err != nil {
		return fmt.Errorf("ledger: save entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.loadEntries(ctx)
	if existing, ok := entries[rec.PositionID]; ok {
		if existing.Provenance == domain.ProvenanceMeasured && rec.Provenance == domain.ProvenanceEstimated {
			l.logger.WarnContext(ctx, "refusing to overwrite measured entry with estimate",
				slog.String("position", rec.PositionID),
			)
			return domain.ErrMeasuredPrecedence
		}
	}
	entries[rec.PositionID] = rec

	return l.store(ctx, keyEntries, entries)
}

// SaveExit persists a position exit record. Closing is terminal; re-saving
// the same position id overwrites, subject to the same provenance guard as
// entries.
func (l *Ledger) SaveExit(ctx context.Context, rec domain.PositionExitRecord) error {
	if rec.Provenance == "" {
		rec.Provenance = domain.ProvenanceMeasured
	}
	rec.ExitTimestamp = validate.ClampTimestamp(rec.ExitTimestamp)
	if err := guardExit(rec.PositionID, &rec); err != nil {
		return fmt.Errorf("ledger: save exit: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	exits := l.loadExits(ctx)
	if existing, ok := exits[rec.PositionID]; ok {
		if existing.Provenance == domain.ProvenanceMeasured && rec.Provenance == domain.ProvenanceEstimated {
			l.logger.WarnContext(ctx, "refusing to overwrite measured exit with estimate",
				slog.String("position", rec.PositionID),
			)
			return domain.ErrMeasuredPrecedence
		}
	}
	exits[rec.PositionID] = rec

	return l.store(ctx, keyExits, exits)
}

// Entries returns all entry records, keyed by position id. A corrupt
// namespace is logged and returned as empty, never partially.
func (l *Ledger) Entries(ctx context.Context) map[string]domain.PositionEntryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadEntries(ctx)
}

// Exits returns all exit records, keyed by position id.
func (l *Ledger) Exits(ctx context.Context) map[string]domain.PositionExitRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadExits(ctx)
}

// SaveSnapshot appends a valuation sample to a position's sequence, evicting
// from the front once the sequence exceeds the cap.
func (l *Ledger) SaveSnapshot(ctx context.Context, positionID string, snap domain.PositionSnapshot) error {
	if !validate.ValidAddress(positionID) {
		return fmt.Errorf("ledger: save snapshot: %w: %q", domain.ErrInvalidAddress, positionID)
	}
	if err := guardSnapshot(positionID, &snap); err != nil {
		return fmt.Errorf("ledger: save snapshot: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.loadSnapshots(ctx)
	seq := append(all[positionID], snap)
	if len(seq) > l.snapshotCap {
		seq = seq[len(seq)-l.snapshotCap:]
	}
	all[positionID] = seq

	return l.store(ctx, keySnapshots, all)
}

// Snapshots returns every position's snapshot sequence.
func (l *Ledger) Snapshots(ctx context.Context) map[string][]domain.PositionSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadSnapshots(ctx)
}

// RecordClaimedFees appends one fee-claim record for a position. The list is
// unbounded; claims are rare, manual actions.
func (l *Ledger) RecordClaimedFees(ctx context.Context, positionID string, rec domain.ClaimedFeesRecord) error {
	if !validate.ValidAddress(positionID) {
		return fmt.Errorf("ledger: record claimed fees: %w: %q", domain.ErrInvalidAddress, positionID)
	}
	if err := guardClaimedFees(positionID, &rec); err != nil {
		return fmt.Errorf("ledger: record claimed fees: %w", err)
	}
	rec.Timestamp = validate.ClampTimestamp(rec.Timestamp)

	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.loadClaimedFees(ctx)
	all[positionID] = append(all[positionID], rec)

	return l.store(ctx, keyClaimedFees, all)
}

// ClaimedFees returns every position's fee-claim records.
func (l *Ledger) ClaimedFees(ctx context.Context) map[string][]domain.ClaimedFeesRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadClaimedFees(ctx)
}

// TotalClaimedFeesValue sums the USD value of all fee claims for a position.
func (l *Ledger) TotalClaimedFeesValue(ctx context.Context, positionID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total float64
	for _, rec := range l.loadClaimedFees(ctx)[positionID] {
		total += rec.ValueUSD
	}
	return total
}

// ClearAll erases all four namespaces. Destructive; used for resets and tests.
func (l *Ledger) ClearAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, key := range []string{keyEntries, keyExits, keySnapshots, keyClaimedFees} {
		if err := l.kv.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, fmt.Errorf("ledger: clear %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Namespace load/store. Loaders must be called with the mutex held; any
// decode failure resets the namespace view to empty.
// ---------------------------------------------------------------------------

func (l *Ledger) loadRaw(ctx context.Context, key string) (string, bool) {
	raw, err := l.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l.logger.WarnContext(ctx, "substrate read failed, treating namespace as empty",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	return raw, true
}

func (l *Ledger) loadEntries(ctx context.Context) map[string]domain.PositionEntryRecord {
	raw, ok := l.loadRaw(ctx, keyEntries)
	if !ok {
		return map[string]domain.PositionEntryRecord{}
	}
	m, err := decodeEntries(raw)
	if err != nil {
		l.warnCorrupt(ctx, keyEntries, err)
		return map[string]domain.PositionEntryRecord{}
	}
	return m
}

func (l *Ledger) loadExits(ctx context.Context) map[string]domain.PositionExitRecord {
	raw, ok := l.loadRaw(ctx, keyExits)
	if !ok {
		return map[string]domain.PositionExitRecord{}
	}
	m, err := decodeExits(raw)
	if err != nil {
		l.warnCorrupt(ctx, keyExits, err)
		return map[string]domain.PositionExitRecord{}
	}
	return m
}

func (l *Ledger) loadSnapshots(ctx context.Context) map[string][]domain.PositionSnapshot {
	raw, ok := l.loadRaw(ctx, keySnapshots)
	if !ok {
		return map[string][]domain.PositionSnapshot{}
	}
	m, err := decodeSnapshots(raw)
	if err != nil {
		l.warnCorrupt(ctx, keySnapshots, err)
		return map[string][]domain.PositionSnapshot{}
	}
	return m
}

func (l *Ledger) loadClaimedFees(ctx context.Context) map[string][]domain.ClaimedFeesRecord {
	raw, ok := l.loadRaw(ctx, keyClaimedFees)
	if !ok {
		return map[string][]domain.ClaimedFeesRecord{}
	}
	m, err := decodeClaimedFees(raw)
	if err != nil {
		l.warnCorrupt(ctx, keyClaimedFees, err)
		return map[string][]domain.ClaimedFeesRecord{}
	}
	return m
}

func (l *Ledger) warnCorrupt(ctx context.Context, key string, err error) {
	l.logger.WarnContext(ctx, "corrupt namespace, discarding",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

func (l *Ledger) store(ctx context.Context, key string, m any) error {
	var (
		encoded string
		err     error
	)
	switch v := m.(type) {
	case map[string]domain.PositionEntryRecord:
		encoded, err = encodePairs(v)
	case map[string]domain.PositionExitRecord:
		encoded, err = encodePairs(v)
	case map[string][]domain.PositionSnapshot:
		encoded, err = encodePairs(v)
	case map[string][]domain.ClaimedFeesRecord:
		encoded, err = encodePairs(v)
	default:
		return fmt.Errorf("ledger: store %s: unsupported namespace type %T", key, m)
	}
	if err != nil {
		return err
	}
	if err := l.kv.Set(ctx, key, encoded); err != nil {
		return fmt.Errorf("ledger: store %s: %w", key, err)
	}
	return nil
}
