// Package remotetest provides an in-memory remote.Client for tests.
//
// Server keeps records in a map guarded by a RWMutex and applies map
// sub-operations atomically per record, which is the same isolation the real
// cluster gives. It honors SendKey (user keys are only echoed by scans when they
// were stored), record expiration, and map write flags. Failures can be injected
// per operation and every call is counted.
package remotetest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gozephyr/aerospike-mapstore/remote"
	"github.com/gozephyr/aerospike-mapstore/ttl"
)

// Operation names used for call counting and failure injection.
const (
	OpGet         = "get"
	OpBatchGet    = "batch_get"
	OpPut         = "put"
	OpBatchPut    = "batch_put"
	OpDelete      = "delete"
	OpBatchDelete = "batch_delete"
	OpOperate     = "operate"
	OpScan        = "scan"
)

var (
	// ErrClientClosed is returned by every call after Close
	ErrClientClosed = errors.New("remotetest: client closed")
	// ErrBinType is returned when a map operation targets a bin that is not a map
	ErrBinType = remote.ErrBinType
	// ErrElementExists is returned by create-only map puts on existing keys
	ErrElementExists = errors.New("remotetest: map key exists")
	// ErrElementNotFound is returned by update-only map puts on missing keys
	ErrElementNotFound = errors.New("remotetest: map key not found")
)

type storedRecord struct {
	key        remote.Key
	sendKey    bool
	bins       remote.Bins
	generation uint32
	expiration uint32
	expires    time.Time
}

// Server is an in-memory Aerospike stand-in.
type Server struct {
	mu      sync.RWMutex
	records map[string]*storedRecord

	failMu   sync.RWMutex
	failures map[string]error

	calls   sync.Map // op -> *atomic.Int64
	scanned atomic.Int64
	closed  atomic.Bool
}

var _ remote.Client = (*Server)(nil)

// NewServer creates an empty server
func NewServer() *Server {
	return &Server{
		records:  make(map[string]*storedRecord),
		failures: make(map[string]error),
	}
}

// FailWith makes every call of op return err until ClearFailures is called
func (s *Server) FailWith(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures[op] = err
}

// ClearFailures removes all injected failures
func (s *Server) ClearFailures() {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures = make(map[string]error)
}

// Calls returns how many times op was invoked
func (s *Server) Calls(op string) int64 {
	if c, ok := s.calls.Load(op); ok {
		return c.(*atomic.Int64).Load()
	}
	return 0
}

// ResetCalls zeroes all call counters
func (s *Server) ResetCalls() {
	s.calls.Range(func(key, _ any) bool {
		s.calls.Delete(key)
		return true
	})
	s.scanned.Store(0)
}

// ScannedRecords returns how many records scans have handed out
func (s *Server) ScannedRecords() int64 {
	return s.scanned.Load()
}

// Len returns the number of live records
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if !ttl.IsExpired(rec.expires) {
			n++
		}
	}
	return n
}

func (s *Server) enter(ctx context.Context, op string) error {
	c, _ := s.calls.LoadOrStore(op, new(atomic.Int64))
	c.(*atomic.Int64).Add(1)

	if s.closed.Load() {
		return ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.failMu.RLock()
	defer s.failMu.RUnlock()
	return s.failures[op]
}

func recordID(key remote.Key) string {
	return fmt.Sprintf("%s/%s/%T/%v", key.Namespace, key.Set, remote.NormalizeKey(key.Value), key.Value)
}

// lookup returns a live record, dropping it when expired. Callers hold s.mu.
func (s *Server) lookup(key remote.Key) *storedRecord {
	id := recordID(key)
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	if ttl.IsExpired(rec.expires) {
		delete(s.records, id)
		return nil
	}
	return rec
}

func (s *Server) snapshot(rec *storedRecord, binNames []string, withBins bool) *remote.Record {
	out := &remote.Record{
		Key:        remote.Key{Namespace: rec.key.Namespace, Set: rec.key.Set},
		Generation: rec.generation,
		Expiration: rec.expiration,
	}
	if rec.sendKey {
		out.Key.Value = rec.key.Value
	}
	if !withBins {
		return out
	}
	out.Bins = make(remote.Bins)
	if len(binNames) == 0 {
		for name, v := range rec.bins {
			out.Bins[name] = copyValue(v)
		}
		return out
	}
	for _, name := range binNames {
		if v, ok := rec.bins[name]; ok {
			out.Bins[name] = copyValue(v)
		}
	}
	return out
}

func copyValue(v any) any {
	if m, ok := v.(map[any]any); ok {
		out := make(map[any]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out
	}
	return v
}

// Get implements remote.Client
func (s *Server) Get(ctx context.Context, policy remote.Policy, key remote.Key, bins ...string) (*remote.Record, error) {
	if err := s.enter(ctx, OpGet); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookup(key)
	if rec == nil {
		return nil, nil
	}
	return s.snapshot(rec, bins, true), nil
}

// BatchGet implements remote.Client
func (s *Server) BatchGet(ctx context.Context, policy remote.BatchPolicy, keys []remote.Key, bins ...string) ([]*remote.Record, error) {
	if err := s.enter(ctx, OpBatchGet); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*remote.Record, len(keys))
	for i, key := range keys {
		if rec := s.lookup(key); rec != nil {
			out[i] = s.snapshot(rec, bins, true)
		}
	}
	return out, nil
}

// write stores bins into a record, creating it when needed. Callers hold s.mu.
func (s *Server) write(key remote.Key, policy remote.WritePolicy, bins remote.Bins) *storedRecord {
	rec := s.lookup(key)
	if rec == nil {
		rec = &storedRecord{key: key, bins: make(remote.Bins)}
		s.records[recordID(key)] = rec
	}
	for name, v := range bins {
		if v == nil {
			delete(rec.bins, name)
			continue
		}
		rec.bins[name] = v
	}
	rec.sendKey = rec.sendKey || policy.SendKey
	rec.generation++
	if policy.Expiration != ttl.ExpirationDontUpdate {
		rec.expiration = policy.Expiration
		rec.expires = ttl.GetExpirationTime(time.Now(), policy.Expiration)
	}
	return rec
}

// Put implements remote.Client
func (s *Server) Put(ctx context.Context, policy remote.WritePolicy, key remote.Key, bins remote.Bins) error {
	if err := s.enter(ctx, OpPut); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.write(key, policy, bins.Clone())
	return nil
}

// BatchPut implements remote.Client
func (s *Server) BatchPut(ctx context.Context, policy remote.BatchPolicy, write remote.WritePolicy, entries []remote.Entry) error {
	if err := s.enter(ctx, OpBatchPut); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		s.write(entry.Key, write, entry.Bins.Clone())
	}
	return nil
}

// Delete implements remote.Client
func (s *Server) Delete(ctx context.Context, policy remote.WritePolicy, key remote.Key) (bool, error) {
	if err := s.enter(ctx, OpDelete); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) == nil {
		return false, nil
	}
	delete(s.records, recordID(key))
	return true, nil
}

// BatchDelete implements remote.Client
func (s *Server) BatchDelete(ctx context.Context, policy remote.BatchPolicy, write remote.WritePolicy, keys []remote.Key) error {
	if err := s.enter(ctx, OpBatchDelete); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.records, recordID(key))
	}
	return nil
}

// Operate implements remote.Client
func (s *Server) Operate(ctx context.Context, policy remote.WritePolicy, key remote.Key, op remote.MapOp) (any, error) {
	if err := s.enter(ctx, OpOperate); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookup(key)
	var container map[any]any
	if rec != nil {
		if raw, ok := rec.bins[op.Bin]; ok {
			m, isMap := remote.AsMap(raw)
			if !isMap {
				return nil, fmt.Errorf("%w: bin %q holds %T", ErrBinType, op.Bin, raw)
			}
			container = m
		}
	}

	switch op.Kind {
	case remote.MapGetByKey:
		if container == nil {
			return nil, nil
		}
		return container[remote.NormalizeKey(op.Keys[0])], nil

	case remote.MapGetByKeyList:
		if rec == nil {
			return nil, nil
		}
		found := make(map[any]any)
		for _, k := range op.Keys {
			nk := remote.NormalizeKey(k)
			if v, ok := container[nk]; ok {
				found[nk] = v
			}
		}
		return found, nil

	case remote.MapPut, remote.MapPutItems:
		items := op.Items
		if op.Kind == remote.MapPut {
			items = map[any]any{op.Keys[0]: op.Value}
		}
		next := make(map[any]any, len(container)+len(items))
		for k, v := range container {
			next[k] = v
		}
		for k, v := range items {
			nk := remote.NormalizeKey(k)
			_, exists := next[nk]
			switch {
			case op.Policy.Flags&remote.MapWriteCreateOnly != 0 && exists,
				op.Policy.Flags&remote.MapWriteUpdateOnly != 0 && !exists:
				if op.Policy.Flags&remote.MapWriteNoFail != 0 {
					continue
				}
				if exists {
					return nil, fmt.Errorf("%w: %v", ErrElementExists, k)
				}
				return nil, fmt.Errorf("%w: %v", ErrElementNotFound, k)
			}
			next[nk] = v
		}
		s.write(key, policy, remote.Bins{op.Bin: next})
		return nil, nil

	case remote.MapRemoveByKey, remote.MapRemoveByKeyList:
		if container == nil {
			return nil, nil
		}
		next := make(map[any]any, len(container))
		for k, v := range container {
			next[k] = v
		}
		for _, k := range op.Keys {
			delete(next, remote.NormalizeKey(k))
		}
		s.write(key, policy, remote.Bins{op.Bin: next})
		return nil, nil

	default:
		return nil, fmt.Errorf("remotetest: unsupported map operation %s", op.Kind)
	}
}

// Scan implements remote.Client. Records are handed out lazily in key order.
func (s *Server) Scan(ctx context.Context, policy remote.ScanPolicy, namespace, set string) iter.Seq2[*remote.Record, error] {
	return func(yield func(*remote.Record, error) bool) {
		if err := s.enter(ctx, OpScan); err != nil {
			yield(nil, err)
			return
		}

		s.mu.RLock()
		ids := make([]string, 0, len(s.records))
		for id, rec := range s.records {
			if rec.key.Namespace == namespace && rec.key.Set == set && !ttl.IsExpired(rec.expires) {
				ids = append(ids, id)
			}
		}
		s.mu.RUnlock()
		sort.Strings(ids)

		var count int64
		for _, id := range ids {
			if policy.MaxRecords > 0 && count >= policy.MaxRecords {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			s.mu.RLock()
			rec, ok := s.records[id]
			var out *remote.Record
			if ok {
				out = s.snapshot(rec, nil, policy.IncludeBinData)
			}
			s.mu.RUnlock()
			if !ok {
				continue
			}

			count++
			s.scanned.Add(1)
			if !yield(out, nil) {
				return
			}
		}
	}
}

// Peek returns a copy of a bin without going through the client API
func (s *Server) Peek(key remote.Key, bin string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID(key)]
	if !ok || ttl.IsExpired(rec.expires) {
		return nil, false
	}
	v, ok := rec.bins[bin]
	return copyValue(v), ok
}

// IsConnected implements remote.Client
func (s *Server) IsConnected() bool {
	return !s.closed.Load()
}

// Close implements remote.Client
func (s *Server) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close was called
func (s *Server) Closed() bool {
	return s.closed.Load()
}
