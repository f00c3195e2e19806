package mapstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/gozephyr/aerospike-mapstore/config"
	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/metrics"
	"github.com/gozephyr/aerospike-mapstore/remote"
)

// Operation names used in errors, logs and metrics
const (
	opInit        = "init"
	opLoad        = "load"
	opLoadAll     = "load_all"
	opLoadAllKeys = "load_all_keys"
	opStore       = "store"
	opStoreAll    = "store_all"
	opDelete      = "delete"
	opDeleteAll   = "delete_all"
	opClose       = "close"
)

// connector owns the remote client and the ambient plumbing shared by both
// strategies.
type connector struct {
	strategy Strategy
	cfg      config.Config
	client   remote.Client
	policies remote.Policies
	opts     *Options
	logger   hclog.Logger
	metrics  metrics.MetricsExporter

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// newConnector validates cfg and opts, then dials the cluster unless a client
// was supplied. Nothing is dialed when validation fails.
func newConnector(ctx context.Context, strategy Strategy, cfg config.Config, opts []Option) (*connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := NewOptions()
	if err := options.Apply(opts...); err != nil {
		if options.Client != nil {
			_ = options.Client.Close()
		}
		return nil, err
	}

	logger := options.Logger.Named(string(strategy)).With(
		"map", cfg.MapName,
		"namespace", cfg.Namespace,
		"set", cfg.Set,
	)

	policies := remote.PoliciesFromConfig(cfg)
	if options.Policies != nil {
		policies = *options.Policies
	}
	if options.MapPolicy != nil {
		policies.Map = *options.MapPolicy
	}

	exporter := options.Metrics
	if exporter == nil {
		exporter = metrics.NewStoreMetrics()
	}

	client := options.Client
	if client == nil {
		ac, err := remote.Dial(ctx, cfg, logger)
		if err != nil {
			return nil, errors.Retryable(opInit, nil, err)
		}
		client = ac
	}

	c := &connector{
		strategy: strategy,
		cfg:      cfg,
		client:   client,
		policies: policies,
		opts:     options,
		logger:   logger,
		metrics:  exporter,
	}
	if !client.IsConnected() {
		_ = c.Close()
		return nil, errors.Retryable(opInit, nil, fmt.Errorf("not connected to %s", cfg.Address()))
	}
	logger.Info("map store initialized", "address", cfg.Address())
	return c, nil
}

// checkState fails operations on a closed store
func (c *connector) checkState(op string) error {
	if c.closed.Load() {
		return errors.Invalid(op, errors.ErrStoreClosed)
	}
	return nil
}

// observe records metrics and logs the outcome of one operation
func (c *connector) observe(op string, key any, items int, start time.Time, err error) {
	d := time.Since(start)
	c.metrics.RecordOperation(op, items, d, err)
	if err != nil {
		c.logger.Warn("operation failed", "op", op, "key", key, "kind", errors.KindOf(err), "error", err)
		return
	}
	if c.logger.IsDebug() {
		c.logger.Debug("operation completed", "op", op, "key", key, "items", items, "duration", d)
	}
}

// observeLoad records a single-key load hit or miss
func (c *connector) observeLoad(found bool, err error) {
	if err != nil {
		return
	}
	if found {
		c.metrics.RecordHit()
	} else {
		c.metrics.RecordMiss()
	}
}

// Metrics returns a snapshot of the operation metrics
func (c *connector) Metrics() metrics.MetricsSnapshot {
	return c.metrics.GetSnapshot()
}

// Close releases the remote client exactly once
func (c *connector) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err := c.client.Close(); err != nil {
			c.closeErr = errors.Retryable(opClose, nil, err)
		}
		c.logger.Info("map store closed")
	})
	return c.closeErr
}
