package mapstore

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/metrics"
	"github.com/gozephyr/aerospike-mapstore/remote"
)

// DefaultMaxConcurrent bounds the per-entry calls in flight for WriteParallel
const DefaultMaxConcurrent = 10

// Options represents store options
type Options struct {
	// Logger receives operation logs; hclog.NewNullLogger() by default
	Logger hclog.Logger

	// Metrics records operation metrics; an in-memory StoreMetrics by default
	Metrics metrics.MetricsExporter

	// Client replaces the Aerospike connection built from the configuration.
	// The store owns the client and closes it on Close. A constructor that
	// rejects its configuration or marshaller leaves the client untouched; any
	// later construction failure, including a rejected option, closes it.
	Client remote.Client

	// Policies replaces the policies derived from the configuration
	Policies *remote.Policies

	// MapPolicy replaces the container ordering and write flags
	MapPolicy *remote.MapPolicy

	// WriteMode selects how RecordStore runs StoreAll and DeleteAll
	WriteMode WriteMode

	// MaxConcurrent bounds WriteParallel
	MaxConcurrent int
}

// NewOptions creates a new Options instance with default values
func NewOptions() *Options {
	return &Options{
		Logger:        hclog.NewNullLogger(),
		WriteMode:     WriteSerial,
		MaxConcurrent: DefaultMaxConcurrent,
	}
}

// Option is a function that configures store options
type Option func(*Options) error

// Apply applies the given options
func (o *Options) Apply(opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return errors.Invalid("mapstore.Options", err)
		}
	}
	return nil
}

// WithLogger sets the logger
func WithLogger(logger hclog.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", errors.ErrInvalidConfig)
		}
		o.Logger = logger
		return nil
	}
}

// WithMetrics sets the metrics exporter
func WithMetrics(exporter metrics.MetricsExporter) Option {
	return func(o *Options) error {
		if exporter == nil {
			return fmt.Errorf("%w: nil metrics exporter", errors.ErrInvalidConfig)
		}
		o.Metrics = exporter
		return nil
	}
}

// WithClient uses client instead of dialing the configured cluster
func WithClient(client remote.Client) Option {
	return func(o *Options) error {
		if client == nil {
			return fmt.Errorf("%w: nil client", errors.ErrInvalidConfig)
		}
		o.Client = client
		return nil
	}
}

// WithPolicies overrides the per-operation policies
func WithPolicies(policies remote.Policies) Option {
	return func(o *Options) error {
		o.Policies = &policies
		return nil
	}
}

// WithMapPolicy overrides the container ordering and write flags
func WithMapPolicy(policy remote.MapPolicy) Option {
	return func(o *Options) error {
		o.MapPolicy = &policy
		return nil
	}
}

// WithWriteMode sets how RecordStore runs StoreAll and DeleteAll
func WithWriteMode(mode WriteMode) Option {
	return func(o *Options) error {
		if _, ok := writeModeNames[mode]; !ok {
			return fmt.Errorf("%w: unknown write mode %d", errors.ErrInvalidConfig, int(mode))
		}
		o.WriteMode = mode
		return nil
	}
}

// WithMaxConcurrent bounds the concurrency of WriteParallel
func WithMaxConcurrent(n int) Option {
	return func(o *Options) error {
		if n <= 0 {
			return fmt.Errorf("%w: max concurrent must be positive, got %d", errors.ErrInvalidConfig, n)
		}
		o.MaxConcurrent = n
		return nil
	}
}
