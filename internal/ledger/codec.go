package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/validate"
)

// Each namespace is persisted as a JSON array of [key, value] pairs under a
// single substrate key. Decoding is deliberately all-or-nothing: a namespace
// that fails any structural check is treated as empty rather than partially
// trusted, so no malformed object ever reaches downstream computation.

// encodePairs serializes a map as an array of [key, value] pairs in sorted
// key order, so repeated saves of the same state are byte-identical.
func encodePairs[V any](m map[string]V) (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]any, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]any{k, m[k]})
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("ledger: encode pairs: %w", err)
	}
	return string(data), nil
}

// decodePairs parses a pair-list container and hands every element to
// accept. Any structural violation (non-array container, non-pair element,
// non-string key, dangerous key) fails the whole decode.
func decodePairs(raw string, accept func(key string, value json.RawMessage) error) error {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return fmt.Errorf("ledger: container is not an array: %w", err)
	}

	for i, elem := range elems {
		var pair []json.RawMessage
		if err := json.Unmarshal(elem, &pair); err != nil || len(pair) != 2 {
			return fmt.Errorf("ledger: element %d is not a [key, value] pair: %w", i, domain.ErrCorruptNamespace)
		}
		var key string
		if err := json.Unmarshal(pair[0], &key); err != nil {
			return fmt.Errorf("ledger: element %d key is not a string: %w", i, domain.ErrCorruptNamespace)
		}
		if validate.DangerousKey(key) {
			return fmt.Errorf("ledger: element %d has dangerous key %q: %w", i, key, domain.ErrCorruptNamespace)
		}
		if err := accept(key, pair[1]); err != nil {
			return err
		}
	}
	return nil
}

// rawAmountOK reports whether s parses as a non-negative base-unit integer.
func rawAmountOK(s string) bool {
	v, ok := new(big.Int).SetString(s, 10)
	return ok && v.Sign() >= 0
}

func provenanceOK(p domain.Provenance) bool {
	return p == domain.ProvenanceMeasured || p == domain.ProvenanceEstimated
}

// guardEntry applies the structural type-guard for a deserialized entry
// record. A failed guard poisons the namespace; see decodeEntries.
func guardEntry(key string, e *domain.PositionEntryRecord) error {
	if e.PositionID != key || !validate.ValidAddress(e.PositionID) {
		return fmt.Errorf("ledger: entry %q: bad position id: %w", key, domain.ErrInvalidRecord)
	}
	if e.PoolID != domain.UnknownPoolID && !validate.ValidAddress(e.PoolID) {
		return fmt.Errorf("ledger: entry %q: bad pool id: %w", key, domain.ErrInvalidRecord)
	}
	if !validate.ValidAddress(e.TokenAMint) || !validate.ValidAddress(e.TokenBMint) {
		return fmt.Errorf("ledger: entry %q: bad token mint: %w", key, domain.ErrInvalidRecord)
	}
	if !validate.ValidDecimals(e.DecimalsA) || !validate.ValidDecimals(e.DecimalsB) {
		return fmt.Errorf("ledger: entry %q: decimals out of range: %w", key, domain.ErrInvalidRecord)
	}
	if !rawAmountOK(e.InitialAmountA) || !rawAmountOK(e.InitialAmountB) {
		return fmt.Errorf("ledger: entry %q: bad raw amount: %w", key, domain.ErrInvalidRecord)
	}
	if !validate.ValidPrice(e.EntryPriceAUSD) || !validate.ValidPrice(e.EntryPriceBUSD) {
		return fmt.Errorf("ledger: entry %q: bad entry price: %w", key, domain.ErrInvalidRecord)
	}
	if !validate.Finite(e.EntryPoolPrice) || !validate.Finite(e.InitialValueUSD) {
		return fmt.Errorf("ledger: entry %q: non-finite value: %w", key, domain.ErrInvalidRecord)
	}
	if !provenanceOK(e.Provenance) {
		return fmt.Errorf("ledger: entry %q: unknown provenance %q: %w", key, e.Provenance, domain.ErrInvalidRecord)
	}
	if e.EntryTimestamp < 0 {
		return fmt.Errorf("ledger: entry %q: negative timestamp: %w", key, domain.ErrInvalidRecord)
	}
	return nil
}

// guardExit applies the structural type-guard for a deserialized exit record.
func guardExit(key string, e *domain.PositionExitRecord) error {
	if e.PositionID != key || !validate.ValidAddress(e.PositionID) {
		return fmt.Errorf("ledger: exit %q: bad position id: %w", key, domain.ErrInvalidRecord)
	}
	if e.PoolID != domain.UnknownPoolID && !validate.ValidAddress(e.PoolID) {
		return fmt.Errorf("ledger: exit %q: bad pool id: %w", key, domain.ErrInvalidRecord)
	}
	if e.Wallet != "" && !validate.ValidAddress(e.Wallet) {
		return fmt.Errorf("ledger: exit %q: bad wallet: %w", key, domain.ErrInvalidRecord)
	}
	if !rawAmountOK(e.FinalAmountA) || !rawAmountOK(e.FinalAmountB) {
		return fmt.Errorf("ledger: exit %q: bad raw amount: %w", key, domain.ErrInvalidRecord)
	}
	if !validate.ValidPrice(e.ExitPriceAUSD) || !validate.ValidPrice(e.ExitPriceBUSD) {
		return fmt.Errorf("ledger: exit %q: bad exit price: %w", key, domain.ErrInvalidRecord)
	}
	if !validate.Finite(e.FinalValueUSD) || !validate.Finite(e.RealizedPnLUSD) || !validate.Finite(e.RealizedPnLPct) {
		return fmt.Errorf("ledger: exit %q: non-finite value: %w", key, domain.ErrInvalidRecord)
	}
	if !provenanceOK(e.Provenance) {
		return fmt.Errorf("ledger: exit %q: unknown provenance %q: %w", key, e.Provenance, domain.ErrInvalidRecord)
	}
	if e.ExitTimestamp < 0 {
		return fmt.Errorf("ledger: exit %q: negative timestamp: %w", key, domain.ErrInvalidRecord)
	}
	return nil
}

// guardSnapshot applies the structural type-guard for one snapshot sample.
func guardSnapshot(key string, s *domain.PositionSnapshot) error {
	for _, f := range []float64{s.ValueUSD, s.FeesValueUSD, s.PnLUSD, s.PnLPct, s.PriceAUSD, s.PriceBUSD, s.PoolPrice} {
		if !validate.Finite(f) {
			return fmt.Errorf("ledger: snapshot for %q: non-finite field: %w", key, domain.ErrInvalidRecord)
		}
	}
	if s.Timestamp < 0 {
		return fmt.Errorf("ledger: snapshot for %q: negative timestamp: %w", key, domain.ErrInvalidRecord)
	}
	return nil
}

// guardClaimedFees applies the structural type-guard for one fee-claim record.
func guardClaimedFees(key string, r *domain.ClaimedFeesRecord) error {
	if !rawAmountOK(r.AmountA) || !rawAmountOK(r.AmountB) {
		return fmt.Errorf("ledger: claimed fees for %q: bad raw amount: %w", key, domain.ErrInvalidRecord)
	}
	if !validate.Finite(r.ValueUSD) || r.ValueUSD < 0 {
		return fmt.Errorf("ledger: claimed fees for %q: bad value: %w", key, domain.ErrInvalidRecord)
	}
	if r.Timestamp < 0 {
		return fmt.Errorf("ledger: claimed fees for %q: negative timestamp: %w", key, domain.ErrInvalidRecord)
	}
	return nil
}

func decodeEntries(raw string) (map[string]domain.PositionEntryRecord, error) {
	out := make(map[string]domain.PositionEntryRecord)
	err := decodePairs(raw, func(key string, value json.RawMessage) error {
		var rec domain.PositionEntryRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("ledger: entry %q: %w", key, domain.ErrCorruptNamespace)
		}
		if err := guardEntry(key, &rec); err != nil {
			return err
		}
		out[key] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeExits(raw string) (map[string]domain.PositionExitRecord, error) {
	out := make(map[string]domain.PositionExitRecord)
	err := decodePairs(raw, func(key string, value json.RawMessage) error {
		var rec domain.PositionExitRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("ledger: exit %q: %w", key, domain.ErrCorruptNamespace)
		}
		if err := guardExit(key, &rec); err != nil {
			return err
		}
		out[key] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeSnapshots(raw string) (map[string][]domain.PositionSnapshot, error) {
	out := make(map[string][]domain.PositionSnapshot)
	err := decodePairs(raw, func(key string, value json.RawMessage) error {
		if !validate.ValidAddress(key) {
			return fmt.Errorf("ledger: snapshots: bad position id %q: %w", key, domain.ErrInvalidRecord)
		}
		var seq []domain.PositionSnapshot
		if err := json.Unmarshal(value, &seq); err != nil {
			return fmt.Errorf("ledger: snapshots for %q: %w", key, domain.ErrCorruptNamespace)
		}
		for i := range seq {
			if err := guardSnapshot(key, &seq[i]); err != nil {
				return err
			}
		}
		out[key] = seq
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeClaimedFees(raw string) (map[string][]domain.ClaimedFeesRecord, error) {
	out := make(map[string][]domain.ClaimedFeesRecord)
	err := decodePairs(raw, func(key string, value json.RawMessage) error {
		if !validate.ValidAddress(key) {
			return fmt.Errorf("ledger: claimed fees: bad position id %q: %w", key, domain.ErrInvalidRecord)
		}
		var seq []domain.ClaimedFeesRecord
		if err := json.Unmarshal(value, &seq); err != nil {
			return fmt.Errorf("ledger: claimed fees for %q: %w", key, domain.ErrCorruptNamespace)
		}
		for i := range seq {
			if err := guardClaimedFees(key, &seq[i]); err != nil {
				return err
			}
		}
		out[key] = seq
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
