// Package metrics provides functionality for collecting and reporting map-store operation metrics.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/internal"
)

// Operation outcomes used as metric labels
const (
	OutcomeOK = "ok"
)

// Outcome returns the label for the result of an operation
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if kind := errors.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// StoreMetrics represents unified metrics for one map store
type StoreMetrics struct {
	Operations        atomic.Int64
	Items             atomic.Int64
	Errors            atomic.Int64
	Hits              atomic.Int64
	Misses            atomic.Int64
	TotalLatency      atomic.Int64 // nanoseconds
	LastOperationTime atomic.Value // time.Time

	perOp      *internal.SafeCounters
	perOutcome *internal.SafeCounters
}

// MetricsSnapshot is a thread-safe copy of metrics
type MetricsSnapshot struct {
	Operations        int64
	Items             int64
	Errors            int64
	Hits              int64
	Misses            int64
	TotalLatency      time.Duration
	LastOperationTime time.Time

	// ByOperation counts calls per operation name
	ByOperation map[string]int64
	// ByOutcome counts calls per outcome label
	ByOutcome map[string]int64
}

// NewStoreMetrics creates a new StoreMetrics instance
func NewStoreMetrics() *StoreMetrics {
	m := &StoreMetrics{
		perOp:      internal.NewSafeCounters(),
		perOutcome: internal.NewSafeCounters(),
	}
	m.LastOperationTime.Store(time.Time{})
	return m
}

// RecordOperation records one completed store operation touching items entries
func (m *StoreMetrics) RecordOperation(op string, items int, d time.Duration, err error) {
	m.Operations.Add(1)
	m.Items.Add(int64(items))
	m.TotalLatency.Add(int64(d))
	if err != nil {
		m.Errors.Add(1)
	}
	m.perOp.Add(op, 1)
	m.perOutcome.Add(Outcome(err), 1)
	m.LastOperationTime.Store(time.Now())
}

// RecordHit records a load that found a stored value
func (m *StoreMetrics) RecordHit() {
	m.Hits.Add(1)
}

// RecordMiss records a load that found nothing
func (m *StoreMetrics) RecordMiss() {
	m.Misses.Add(1)
}

// GetSnapshot returns a thread-safe copy of current metrics
func (m *StoreMetrics) GetSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Operations:        m.Operations.Load(),
		Items:             m.Items.Load(),
		Errors:            m.Errors.Load(),
		Hits:              m.Hits.Load(),
		Misses:            m.Misses.Load(),
		TotalLatency:      time.Duration(m.TotalLatency.Load()),
		LastOperationTime: m.LastOperationTime.Load().(time.Time),
		ByOperation:       m.perOp.Snapshot(),
		ByOutcome:         m.perOutcome.Snapshot(),
	}
}

// HitRatio returns the load hit ratio
func (s MetricsSnapshot) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Reset resets all metrics to zero
func (m *StoreMetrics) Reset() {
	m.Operations.Store(0)
	m.Items.Store(0)
	m.Errors.Store(0)
	m.Hits.Store(0)
	m.Misses.Store(0)
	m.TotalLatency.Store(0)
	m.LastOperationTime.Store(time.Time{})
	m.perOp.Reset()
	m.perOutcome.Reset()
}
