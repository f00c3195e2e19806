package metrics

import (
	"testing"
	"time"

	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsExporter(t *testing.T) {
	tests := []struct {
		name         string
		exporterType ExporterType
		storeName    string
		labels       map[string]string
		wantType     any
	}{
		{
			name:         "Standard Exporter",
			exporterType: StandardExporter,
			storeName:    "orders",
			wantType:     &StoreMetrics{},
		},
		{
			name:         "Prometheus Exporter",
			exporterType: PrometheusExporterType,
			storeName:    "orders",
			labels: map[string]string{
				"service": "test-service",
			},
			wantType: &PrometheusMetricsExporter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, err := NewMetricsExporter(tt.exporterType, tt.storeName, tt.labels, prometheus.NewRegistry())
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, exporter)
		})
	}
}

func TestOutcome(t *testing.T) {
	require.Equal(t, OutcomeOK, Outcome(nil))
	require.Equal(t, "retryable", Outcome(errors.Retryable("load", "k", assert.AnError)))
	require.Equal(t, "inconsistency", Outcome(errors.Inconsistent("load", "k", assert.AnError)))
	require.Equal(t, "error", Outcome(assert.AnError))
}

func TestStoreMetrics(t *testing.T) {
	m := NewStoreMetrics()

	t.Run("Record Operations", func(t *testing.T) {
		m.RecordOperation("load", 1, 2*time.Millisecond, nil)
		m.RecordOperation("store_all", 5, 3*time.Millisecond, nil)
		m.RecordOperation("load", 0, time.Millisecond, errors.Retryable("load", "k", assert.AnError))
		m.RecordHit()
		m.RecordMiss()
		m.RecordHit()

		snapshot := m.GetSnapshot()
		assert.Equal(t, int64(3), snapshot.Operations)
		assert.Equal(t, int64(6), snapshot.Items)
		assert.Equal(t, int64(1), snapshot.Errors)
		assert.Equal(t, 6*time.Millisecond, snapshot.TotalLatency)
		assert.Equal(t, map[string]int64{"load": 2, "store_all": 1}, snapshot.ByOperation)
		assert.Equal(t, map[string]int64{"ok": 2, "retryable": 1}, snapshot.ByOutcome)
		assert.InDelta(t, 2.0/3.0, snapshot.HitRatio(), 0.0001)
		assert.False(t, snapshot.LastOperationTime.IsZero())
	})

	t.Run("Reset", func(t *testing.T) {
		m.Reset()
		snapshot := m.GetSnapshot()
		assert.Zero(t, snapshot.Operations)
		assert.Zero(t, snapshot.Hits)
		assert.Empty(t, snapshot.ByOperation)
		assert.True(t, snapshot.LastOperationTime.IsZero())
		assert.Zero(t, snapshot.HitRatio())
	})
}
