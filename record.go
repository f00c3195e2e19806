package mapstore

import (
	"context"
	"fmt"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gozephyr/aerospike-mapstore/config"
	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/internal"
	"github.com/gozephyr/aerospike-mapstore/remote"
)

// RecordStore keeps each entry of a map in its own record, keyed by the encoded
// map key, in cfg.Namespace and cfg.Set.
//
// Writes to different keys do not contend with each other. StoreAll and DeleteAll
// are not atomic: depending on the WriteMode they issue one call per entry,
// serially or in parallel, or a single batch call. In every mode the whole
// operation fails when any entry fails.
type RecordStore[K comparable, V any] struct {
	*connector
	mapper RecordMapper[K, V]
}

// pendingWrite is one encoded entry of StoreAll
type pendingWrite[K comparable] struct {
	key   K
	entry remote.Entry
}

// NewRecordStore validates cfg, connects and returns a per-entry store.
func NewRecordStore[K comparable, V any](ctx context.Context, cfg config.Config, mapper RecordMapper[K, V], opts ...Option) (*RecordStore[K, V], error) {
	if internal.IsNil(mapper) {
		return nil, errors.Invalid(opInit, fmt.Errorf("%w: nil record mapper", errors.ErrInvalidConfig))
	}

	conn, err := newConnector(ctx, StrategyRecord, cfg, opts)
	if err != nil {
		return nil, err
	}
	if !conn.cfg.SendKey {
		conn.logger.Warn("sendKey is disabled; LoadAllKeys will not see keys of records written by this store")
	}
	return &RecordStore[K, V]{connector: conn, mapper: mapper}, nil
}

// Load implements MapStore
func (s *RecordStore[K, V]) Load(ctx context.Context, key K) (value V, found bool, err error) {
	start := time.Now()
	defer func() {
		s.observe(opLoad, key, boolToInt(found), start, err)
		s.observeLoad(found, err)
	}()

	if err = s.checkState(opLoad); err != nil {
		return value, false, err
	}
	if internal.IsNil(key) {
		return value, false, nil
	}

	rk, err := s.recordKey(opLoad, key)
	if err != nil {
		return value, false, err
	}
	rec, err := s.client.Get(ctx, s.policies.Read, rk)
	if err != nil {
		return value, false, errors.Retryable(opLoad, key, err)
	}
	if rec == nil {
		return value, false, nil
	}
	value, err = s.mapper.FromBins(rec.Bins)
	if errors.Is(err, errors.ErrNoValue) {
		var zero V
		return zero, false, nil
	}
	if err != nil {
		return value, false, errors.Decoding(opLoad, key, err)
	}
	return value, true, nil
}

// LoadAll implements MapStore with one batch read.
func (s *RecordStore[K, V]) LoadAll(ctx context.Context, keys []K) (result map[K]V, err error) {
	start := time.Now()
	defer func() { s.observe(opLoadAll, nil, len(result), start, err) }()

	if err = s.checkState(opLoadAll); err != nil {
		return nil, err
	}
	keys = internal.UniqueKeys(keys)
	result = make(map[K]V, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	recordKeys := make([]remote.Key, len(keys))
	for i, k := range keys {
		if recordKeys[i], err = s.recordKey(opLoadAll, k); err != nil {
			return nil, err
		}
	}

	records, err := s.client.BatchGet(ctx, s.policies.Batch, recordKeys)
	if err != nil {
		return nil, errors.RetryableBatch(opLoadAll, len(keys), err)
	}
	if len(records) != len(keys) {
		return nil, errors.Inconsistent(opLoadAll, nil, fmt.Errorf("batch read returned %d records for %d keys", len(records), len(keys)))
	}

	for i, rec := range records {
		if rec == nil {
			continue
		}
		value, err := s.mapper.FromBins(rec.Bins)
		if errors.Is(err, errors.ErrNoValue) {
			continue
		}
		if err != nil {
			return nil, errors.Decoding(opLoadAll, keys[i], err)
		}
		result[keys[i]] = value
	}
	return result, nil
}

// LoadAllKeys implements MapStore by scanning the set without bin data.
// Records whose user key was not stored, or does not decode, are skipped.
// Each range over the sequence runs a new scan.
func (s *RecordStore[K, V]) LoadAllKeys(ctx context.Context) iter.Seq2[K, error] {
	return func(yield func(K, error) bool) {
		var (
			zero    K
			err     error
			count   int
			skipped int
		)
		start := time.Now()
		defer func() {
			s.observe(opLoadAllKeys, nil, count, start, err)
			if skipped > 0 {
				s.logger.Debug("skipped records without a decodable key", "op", opLoadAllKeys, "skipped", skipped)
			}
		}()

		if err = s.checkState(opLoadAllKeys); err != nil {
			yield(zero, err)
			return
		}

		policy := s.policies.Scan
		policy.IncludeBinData = false
		for rec, serr := range s.client.Scan(ctx, policy, s.cfg.Namespace, s.cfg.Set) {
			if serr != nil {
				err = errors.Retryable(opLoadAllKeys, nil, serr)
				yield(zero, err)
				return
			}
			if rec == nil || rec.Key.Value == nil {
				skipped++
				continue
			}
			k, derr := s.mapper.DecodeKey(rec.Key.Value)
			if derr != nil {
				skipped++
				continue
			}
			count++
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Store implements MapStore
func (s *RecordStore[K, V]) Store(ctx context.Context, key K, value V) (err error) {
	start := time.Now()
	items := 0
	defer func() { s.observe(opStore, key, items, start, err) }()

	if err = s.checkState(opStore); err != nil {
		return err
	}
	if internal.IsNil(key) {
		return nil
	}

	w, err := s.prepare(opStore, key, value)
	if err != nil {
		return err
	}
	if err := s.client.Put(ctx, s.policies.Write, w.entry.Key, w.entry.Bins); err != nil {
		return errors.Retryable(opStore, key, err)
	}
	items = 1
	return nil
}

// StoreAll implements MapStore. Every entry is encoded before the first write,
// so an unencodable entry fails the call without touching the cluster.
func (s *RecordStore[K, V]) StoreAll(ctx context.Context, entries map[K]V) (err error) {
	start := time.Now()
	items := 0
	defer func() { s.observe(opStoreAll, nil, items, start, err) }()

	if err = s.checkState(opStoreAll); err != nil {
		return err
	}

	writes := make([]pendingWrite[K], 0, len(entries))
	for k, v := range entries {
		if internal.IsNil(k) {
			continue
		}
		w, err := s.prepare(opStoreAll, k, v)
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}
	if len(writes) == 0 {
		return nil
	}

	put := func(ctx context.Context, w pendingWrite[K]) error {
		if err := s.client.Put(ctx, s.policies.Write, w.entry.Key, w.entry.Bins); err != nil {
			return errors.Retryable(opStoreAll, w.key, err)
		}
		return nil
	}

	switch s.opts.WriteMode {
	case WriteBatch:
		batch := make([]remote.Entry, len(writes))
		for i, w := range writes {
			batch[i] = w.entry
		}
		if err := s.client.BatchPut(ctx, s.policies.Batch, s.policies.Write, batch); err != nil {
			return errors.RetryableBatch(opStoreAll, len(batch), err)
		}
	case WriteParallel:
		if err := fanOut(ctx, s.opts.MaxConcurrent, writes, put); err != nil {
			return err
		}
	default:
		for _, w := range writes {
			if err := put(ctx, w); err != nil {
				return err
			}
		}
	}
	items = len(writes)
	return nil
}

// Delete implements MapStore
func (s *RecordStore[K, V]) Delete(ctx context.Context, key K) (err error) {
	start := time.Now()
	items := 0
	defer func() { s.observe(opDelete, key, items, start, err) }()

	if err = s.checkState(opDelete); err != nil {
		return err
	}
	if internal.IsNil(key) {
		return nil
	}

	rk, err := s.recordKey(opDelete, key)
	if err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, s.policies.Delete, rk); err != nil {
		return errors.Retryable(opDelete, key, err)
	}
	items = 1
	return nil
}

// DeleteAll implements MapStore following the configured WriteMode.
func (s *RecordStore[K, V]) DeleteAll(ctx context.Context, keys []K) (err error) {
	start := time.Now()
	keys = internal.UniqueKeys(keys)
	defer func() { s.observe(opDeleteAll, nil, len(keys), start, err) }()

	if err = s.checkState(opDeleteAll); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	recordKeys := make([]remote.Key, len(keys))
	for i, k := range keys {
		if recordKeys[i], err = s.recordKey(opDeleteAll, k); err != nil {
			return err
		}
	}

	del := func(ctx context.Context, i int) error {
		if _, err := s.client.Delete(ctx, s.policies.Delete, recordKeys[i]); err != nil {
			return errors.Retryable(opDeleteAll, keys[i], err)
		}
		return nil
	}

	switch s.opts.WriteMode {
	case WriteBatch:
		if err := s.client.BatchDelete(ctx, s.policies.Batch, s.policies.Delete, recordKeys); err != nil {
			return errors.RetryableBatch(opDeleteAll, len(recordKeys), err)
		}
	case WriteParallel:
		indexes := make([]int, len(keys))
		for i := range indexes {
			indexes[i] = i
		}
		return fanOut(ctx, s.opts.MaxConcurrent, indexes, del)
	default:
		for i := range keys {
			if err := del(ctx, i); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordKey derives the primary key of the record holding key
func (s *RecordStore[K, V]) recordKey(op string, key K) (remote.Key, error) {
	raw, err := s.mapper.EncodeKey(key)
	if err != nil {
		return remote.Key{}, errors.Encoding(op, key, err)
	}
	switch v := remote.NormalizeKey(raw).(type) {
	case string, int64, []byte:
		return remote.Key{Namespace: s.cfg.Namespace, Set: s.cfg.Set, Value: v}, nil
	default:
		return remote.Key{}, errors.Encoding(op, key, fmt.Errorf("unsupported user key type %T", raw))
	}
}

func (s *RecordStore[K, V]) prepare(op string, key K, value V) (pendingWrite[K], error) {
	rk, err := s.recordKey(op, key)
	if err != nil {
		return pendingWrite[K]{}, err
	}
	bins, err := s.mapper.ToBins(value)
	if err != nil {
		return pendingWrite[K]{}, errors.Encoding(op, key, err)
	}
	if len(bins) == 0 {
		return pendingWrite[K]{}, errors.Encoding(op, key, fmt.Errorf("value %T produced no bins", value))
	}
	return pendingWrite[K]{key: key, entry: remote.Entry{Key: rk, Bins: bins}}, nil
}

// fanOut runs call for every item with at most limit calls in flight.
// The first failure cancels the remaining calls and is returned.
func fanOut[T any](ctx context.Context, limit int, items []T, call func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			return call(gctx, item)
		})
	}
	return g.Wait()
}
