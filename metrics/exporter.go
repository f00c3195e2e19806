package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExporterType defines the type of metrics exporter
type ExporterType string

const (
	// StandardExporter keeps metrics in memory only
	StandardExporter ExporterType = "standard"
	// PrometheusExporterType also publishes Prometheus metrics
	PrometheusExporterType ExporterType = "prometheus"
)

// MetricsExporter defines the interface for metrics exporters
type MetricsExporter interface {
	// RecordOperation records one completed store operation
	RecordOperation(op string, items int, d time.Duration, err error)
	// RecordHit records a load that found a stored value
	RecordHit()
	// RecordMiss records a load that found nothing
	RecordMiss()
	// GetSnapshot returns a thread-safe copy of current metrics
	GetSnapshot() MetricsSnapshot
	// Reset resets all metrics to zero
	Reset()
}

// PrometheusMetricsExporter implements MetricsExporter using Prometheus metrics
type PrometheusMetricsExporter struct {
	operations *prometheus.CounterVec
	items      *prometheus.CounterVec
	loads      *prometheus.CounterVec
	latency    *prometheus.HistogramVec

	// Internal counters for snapshot
	internal *StoreMetrics

	service string
	store   string
}

// NewPrometheusMetricsExporter creates a Prometheus exporter for one store and
// registers its collectors on reg, or on the default registerer when reg is nil.
// Collectors already registered by another store are shared.
func NewPrometheusMetricsExporter(storeName string, labels map[string]string, reg prometheus.Registerer) (*PrometheusMetricsExporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	service := labels["service"]
	if service == "" {
		service = "aerospike_mapstore"
	}

	exporter := &PrometheusMetricsExporter{
		internal: NewStoreMetrics(),
		service:  service,
		store:    storeName,
	}

	exporter.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapstore_operations_total",
			Help: "Total number of map-store operations",
		},
		[]string{"service", "store", "op", "outcome"},
	)

	exporter.items = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapstore_items_total",
			Help: "Total number of entries handled by map-store operations",
		},
		[]string{"service", "store", "op"},
	)

	exporter.loads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapstore_loads_total",
			Help: "Single-key loads by result",
		},
		[]string{"service", "store", "result"},
	)

	exporter.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mapstore_operation_duration_seconds",
			Help:    "Latency of map-store operations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"service", "store", "op"},
	)

	var err error
	if exporter.operations, err = register(reg, exporter.operations); err != nil {
		return nil, err
	}
	if exporter.items, err = register(reg, exporter.items); err != nil {
		return nil, err
	}
	if exporter.loads, err = register(reg, exporter.loads); err != nil {
		return nil, err
	}
	if exporter.latency, err = register(reg, exporter.latency); err != nil {
		return nil, err
	}

	return exporter, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordOperation implements MetricsExporter
func (e *PrometheusMetricsExporter) RecordOperation(op string, items int, d time.Duration, err error) {
	e.operations.WithLabelValues(e.service, e.store, op, Outcome(err)).Inc()
	e.items.WithLabelValues(e.service, e.store, op).Add(float64(items))
	e.latency.WithLabelValues(e.service, e.store, op).Observe(d.Seconds())
	e.internal.RecordOperation(op, items, d, err)
}

// RecordHit implements MetricsExporter
func (e *PrometheusMetricsExporter) RecordHit() {
	e.loads.WithLabelValues(e.service, e.store, "hit").Inc()
	e.internal.RecordHit()
}

// RecordMiss implements MetricsExporter
func (e *PrometheusMetricsExporter) RecordMiss() {
	e.loads.WithLabelValues(e.service, e.store, "miss").Inc()
	e.internal.RecordMiss()
}

// GetSnapshot implements MetricsExporter
func (e *PrometheusMetricsExporter) GetSnapshot() MetricsSnapshot {
	return e.internal.GetSnapshot()
}

// Reset implements MetricsExporter.
// Prometheus counters are cumulative and are not reset.
func (e *PrometheusMetricsExporter) Reset() {
	e.internal.Reset()
}

// NewMetricsExporter creates a new metrics exporter based on the specified type
func NewMetricsExporter(exporterType ExporterType, storeName string, labels map[string]string, reg prometheus.Registerer) (MetricsExporter, error) {
	switch exporterType {
	case PrometheusExporterType:
		exporter, err := NewPrometheusMetricsExporter(storeName, labels, reg)
		if err != nil {
			return nil, err
		}
		return exporter, nil
	default:
		return NewStoreMetrics(), nil
	}
}
