package mapstore

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/metrics"
)

// MapStore is the persistence contract invoked by a host map.
// Implementations are safe for concurrent use.
type MapStore[K comparable, V any] interface {
	// Load returns the value stored for key and whether it was found
	Load(ctx context.Context, key K) (V, bool, error)

	// LoadAll returns the stored values for keys; keys without a stored value are omitted
	LoadAll(ctx context.Context, keys []K) (map[K]V, error)

	// LoadAllKeys lazily enumerates every stored key. Nothing is read until the
	// sequence is ranged over, and breaking out of the loop releases the remote
	// cursor. Ranging again starts a new enumeration.
	LoadAllKeys(ctx context.Context) iter.Seq2[K, error]

	// Store writes one entry
	Store(ctx context.Context, key K, value V) error

	// StoreAll writes many entries
	StoreAll(ctx context.Context, entries map[K]V) error

	// Delete removes one entry; removing an absent entry is not an error
	Delete(ctx context.Context, key K) error

	// DeleteAll removes many entries
	DeleteAll(ctx context.Context, keys []K) error

	// Metrics returns a snapshot of the operation metrics
	Metrics() metrics.MetricsSnapshot

	// Close releases the remote connection. It is safe to call more than once.
	Close() error
}

// Strategy names a persistence layout.
type Strategy string

const (
	// StrategyAggregated stores the whole map in one record
	StrategyAggregated Strategy = "aggregated"
	// StrategyRecord stores one record per entry
	StrategyRecord Strategy = "record"
)

// WriteMode selects how RecordStore executes StoreAll and DeleteAll.
type WriteMode int

const (
	// WriteSerial issues one remote call per entry, in order, stopping at the first failure
	WriteSerial WriteMode = iota
	// WriteParallel issues one remote call per entry with bounded concurrency
	WriteParallel
	// WriteBatch issues a single batch call for all entries
	WriteBatch
)

var writeModeNames = map[WriteMode]string{
	WriteSerial:   "serial",
	WriteParallel: "parallel",
	WriteBatch:    "batch",
}

// String returns the mode name
func (m WriteMode) String() string {
	if name, ok := writeModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("WriteMode(%d)", int(m))
}

// ParseWriteMode parses serial, parallel or batch
func ParseWriteMode(s string) (WriteMode, error) {
	for mode, name := range writeModeNames {
		if strings.EqualFold(s, name) {
			return mode, nil
		}
	}
	return 0, errors.Invalid("mapstore.ParseWriteMode", fmt.Errorf("%w: unknown write mode %q", errors.ErrInvalidConfig, s))
}

var (
	_ MapStore[string, string] = (*AggregatedStore[string, string])(nil)
	_ MapStore[string, string] = (*RecordStore[string, string])(nil)
)
