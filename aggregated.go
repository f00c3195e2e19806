package mapstore

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"time"

	"github.com/gozephyr/aerospike-mapstore/config"
	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/internal"
	"github.com/gozephyr/aerospike-mapstore/remote"
)

// AggregatedStore keeps every entry of a map in the container bin of one record.
//
// Each operation is a single atomic map sub-operation on that record, so StoreAll
// and DeleteAll apply all-or-nothing and LoadAll reads a consistent view. All
// writes to the map serialize on the record, which bounds write throughput to the
// single-record update rate of the cluster.
type AggregatedStore[K comparable, V any] struct {
	*connector
	marshaller Marshaller[K, V]
	key        remote.Key
	bin        string
}

// NewAggregatedStore validates cfg, connects and returns a store for the record
// addressed by cfg.Namespace, cfg.Set and cfg.RecordKey.
func NewAggregatedStore[K comparable, V any](ctx context.Context, cfg config.Config, marshaller Marshaller[K, V], opts ...Option) (_ *AggregatedStore[K, V], err error) {
	if internal.IsNil(marshaller) {
		return nil, errors.Invalid(opInit, fmt.Errorf("%w: nil marshaller", errors.ErrInvalidConfig))
	}
	if cfg.BinName == "" {
		return nil, errors.Invalid(opInit, fmt.Errorf("%w: empty map bin name", errors.ErrInvalidConfig))
	}

	conn, err := newConnector(ctx, StrategyAggregated, cfg, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	pk, err := conn.cfg.RecordKeyValue()
	if err != nil {
		return nil, errors.Invalid(opInit, err)
	}

	return &AggregatedStore[K, V]{
		connector:  conn,
		marshaller: marshaller,
		key:        remote.Key{Namespace: conn.cfg.Namespace, Set: conn.cfg.Set, Value: pk},
		bin:        conn.cfg.BinName,
	}, nil
}

// RecordKey returns the primary key of the aggregated record
func (s *AggregatedStore[K, V]) RecordKey() remote.Key {
	return s.key
}

// Load implements MapStore
func (s *AggregatedStore[K, V]) Load(ctx context.Context, key K) (value V, found bool, err error) {
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

	ck, err := s.encodeKey(opLoad, key)
	if err != nil {
		return value, false, err
	}
	raw, err := s.client.Operate(ctx, s.policies.Operate, s.key, remote.GetByKey(s.bin, ck))
	if err != nil {
		return value, false, s.remoteErr(opLoad, key, 0, err)
	}
	if raw == nil {
		return value, false, nil
	}
	if value, err = s.marshaller.DecodeValue(raw); err != nil {
		return value, false, errors.Decoding(opLoad, key, err)
	}
	return value, true, nil
}

// LoadAll implements MapStore with one map read for the whole batch.
func (s *AggregatedStore[K, V]) LoadAll(ctx context.Context, keys []K) (result map[K]V, err error) {
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

	encoded := make([]any, 0, len(keys))
	byContainerKey := make(map[any]K, len(keys))
	for _, k := range keys {
		ck, err := s.encodeKey(opLoadAll, k)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, ck)
		byContainerKey[ck] = k
	}

	raw, err := s.client.Operate(ctx, s.policies.Operate, s.key, remote.GetByKeyList(s.bin, encoded))
	if err != nil {
		return nil, s.remoteErr(opLoadAll, nil, len(keys), err)
	}
	if raw == nil {
		return result, nil
	}
	found, ok := remote.AsMap(raw)
	if !ok {
		return nil, errors.Inconsistent(opLoadAll, nil, fmt.Errorf("map read returned %T", raw))
	}

	for ck, v := range found {
		k, ok := byContainerKey[ck]
		if !ok {
			continue
		}
		value, err := s.marshaller.DecodeValue(v)
		if err != nil {
			return nil, errors.Decoding(opLoadAll, k, err)
		}
		result[k] = value
	}
	return result, nil
}

// LoadAllKeys implements MapStore. It reads the whole record, so its cost is
// proportional to the number of entries in the map.
func (s *AggregatedStore[K, V]) LoadAllKeys(ctx context.Context) iter.Seq2[K, error] {
	return func(yield func(K, error) bool) {
		var (
			zero  K
			err   error
			count int
		)
		start := time.Now()
		defer func() { s.observe(opLoadAllKeys, nil, count, start, err) }()

		if err = s.checkState(opLoadAllKeys); err != nil {
			yield(zero, err)
			return
		}

		rec, rerr := s.client.Get(ctx, s.policies.Read, s.key, s.bin)
		if rerr != nil {
			err = s.remoteErr(opLoadAllKeys, nil, 0, rerr)
			yield(zero, err)
			return
		}
		if rec == nil {
			return
		}
		raw, ok := rec.Bins[s.bin]
		if !ok || raw == nil {
			return
		}
		container, ok := remote.AsMap(raw)
		if !ok {
			err = errors.Inconsistent(opLoadAllKeys, nil, fmt.Errorf("container bin %q holds %T", s.bin, raw))
			yield(zero, err)
			return
		}

		for ck := range container {
			k, derr := s.decodeKey(ck)
			if derr != nil {
				err = errors.Decoding(opLoadAllKeys, ck, derr)
				yield(zero, err)
				return
			}
			count++
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Store implements MapStore
func (s *AggregatedStore[K, V]) Store(ctx context.Context, key K, value V) (err error) {
	start := time.Now()
	items := 0
	defer func() { s.observe(opStore, key, items, start, err) }()

	if err = s.checkState(opStore); err != nil {
		return err
	}
	if internal.IsNil(key) {
		return nil
	}

	ck, err := s.encodeKey(opStore, key)
	if err != nil {
		return err
	}
	cv, err := s.marshaller.EncodeValue(value)
	if err != nil {
		return errors.Encoding(opStore, key, err)
	}
	if _, err := s.client.Operate(ctx, s.policies.Operate, s.key, remote.Put(s.policies.Map, s.bin, ck, cv)); err != nil {
		return s.remoteErr(opStore, key, 0, err)
	}
	items = 1
	return nil
}

// StoreAll implements MapStore with one atomic map write for the whole batch.
func (s *AggregatedStore[K, V]) StoreAll(ctx context.Context, entries map[K]V) (err error) {
	start := time.Now()
	items := 0
	defer func() { s.observe(opStoreAll, nil, items, start, err) }()

	if err = s.checkState(opStoreAll); err != nil {
		return err
	}

	container := make(map[any]any, len(entries))
	for k, v := range entries {
		if internal.IsNil(k) {
			continue
		}
		ck, err := s.encodeKey(opStoreAll, k)
		if err != nil {
			return err
		}
		cv, err := s.marshaller.EncodeValue(v)
		if err != nil {
			return errors.Encoding(opStoreAll, k, err)
		}
		container[ck] = cv
	}
	if len(container) == 0 {
		return nil
	}

	if _, err := s.client.Operate(ctx, s.policies.Operate, s.key, remote.PutItems(s.policies.Map, s.bin, container)); err != nil {
		return s.remoteErr(opStoreAll, nil, len(container), err)
	}
	items = len(container)
	return nil
}

// Delete implements MapStore
func (s *AggregatedStore[K, V]) Delete(ctx context.Context, key K) (err error) {
	start := time.Now()
	items := 0
	defer func() { s.observe(opDelete, key, items, start, err) }()

	if err = s.checkState(opDelete); err != nil {
		return err
	}
	if internal.IsNil(key) {
		return nil
	}

	ck, err := s.encodeKey(opDelete, key)
	if err != nil {
		return err
	}
	if _, err := s.client.Operate(ctx, s.policies.Operate, s.key, remote.RemoveByKey(s.bin, ck)); err != nil {
		return s.remoteErr(opDelete, key, 0, err)
	}
	items = 1
	return nil
}

// DeleteAll implements MapStore with one atomic map removal for the whole batch.
func (s *AggregatedStore[K, V]) DeleteAll(ctx context.Context, keys []K) (err error) {
	start := time.Now()
	keys = internal.UniqueKeys(keys)
	defer func() { s.observe(opDeleteAll, nil, len(keys), start, err) }()

	if err = s.checkState(opDeleteAll); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	encoded := make([]any, 0, len(keys))
	for _, k := range keys {
		ck, err := s.encodeKey(opDeleteAll, k)
		if err != nil {
			return err
		}
		encoded = append(encoded, ck)
	}
	if _, err := s.client.Operate(ctx, s.policies.Operate, s.key, remote.RemoveByKeyList(s.bin, encoded)); err != nil {
		return s.remoteErr(opDeleteAll, nil, len(keys), err)
	}
	return nil
}

// encodeKey returns the normalized container key for key
func (s *AggregatedStore[K, V]) encodeKey(op string, key K) (any, error) {
	raw, err := s.marshaller.EncodeKey(key)
	if err != nil {
		return nil, errors.Encoding(op, key, err)
	}
	if raw == nil || !reflect.TypeOf(raw).Comparable() {
		return nil, errors.Encoding(op, key, fmt.Errorf("unusable container key %T", raw))
	}
	return remote.NormalizeKey(raw), nil
}

func (s *AggregatedStore[K, V]) decodeKey(raw any) (K, error) {
	if kd, ok := s.marshaller.(KeyDecoder[K]); ok {
		return kd.DecodeKey(raw)
	}
	return assertKey[K](raw)
}

// remoteErr classifies a failed map operation. A container bin holding
// something other than a map is a local inconsistency; anything else is retryable.
func (s *AggregatedStore[K, V]) remoteErr(op string, key any, count int, err error) error {
	if errors.Is(err, remote.ErrBinType) {
		return errors.Inconsistent(op, key, err)
	}
	if count > 0 {
		return errors.RetryableBatch(op, count, err)
	}
	return errors.Retryable(op, key, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
