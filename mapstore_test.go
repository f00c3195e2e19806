package mapstore

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/gozephyr/aerospike-mapstore/config"
	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/metrics"
	"github.com/gozephyr/aerospike-mapstore/remote"
	"github.com/gozephyr/aerospike-mapstore/remote/remotetest"
)

var sendKeyPolicy = remote.WritePolicy{Policy: remote.Policy{SendKey: true}}

func testLogger(t *testing.T) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   t.Name(),
		Level:  hclog.Debug,
		Output: hclog.DefaultOutput,
	})
}

func newAggregated(t *testing.T, opts ...Option) (*AggregatedStore[string, string], *remotetest.Server) {
	t.Helper()
	server := remotetest.NewServer()
	opts = append([]Option{WithClient(server), WithLogger(testLogger(t))}, opts...)
	store, err := NewAggregatedStore[string, string](context.Background(), config.Default("orders"), StringMarshaller{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, server
}

func newRecord(t *testing.T, opts ...Option) (*RecordStore[string, string], *remotetest.Server) {
	t.Helper()
	server := remotetest.NewServer()
	opts = append([]Option{WithClient(server), WithLogger(testLogger(t))}, opts...)
	cfg := config.Default("orders")
	store, err := NewRecordStore[string, string](context.Background(), cfg, NewStringRecordMapper(cfg.ValueBin), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, server
}

func TestWriteMode(t *testing.T) {
	for _, mode := range []WriteMode{WriteSerial, WriteParallel, WriteBatch} {
		parsed, err := ParseWriteMode(mode.String())
		require.NoError(t, err)
		require.Equal(t, mode, parsed)
	}

	parsed, err := ParseWriteMode("BATCH")
	require.NoError(t, err)
	require.Equal(t, WriteBatch, parsed)

	_, err = ParseWriteMode("bulk")
	require.True(t, errors.IsValidation(err))
	require.Equal(t, "WriteMode(9)", WriteMode(9).String())
}

func TestOptions(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		o := NewOptions()
		require.NoError(t, o.Apply())
		require.Equal(t, WriteSerial, o.WriteMode)
		require.Equal(t, DefaultMaxConcurrent, o.MaxConcurrent)
		require.NotNil(t, o.Logger)
		require.Nil(t, o.Client)
	})

	t.Run("Invalid", func(t *testing.T) {
		invalid := []Option{
			WithLogger(nil),
			WithMetrics(nil),
			WithClient(nil),
			WithWriteMode(WriteMode(7)),
			WithMaxConcurrent(0),
		}
		for _, opt := range invalid {
			err := NewOptions().Apply(opt)
			require.True(t, errors.IsValidation(err))
			require.ErrorIs(t, err, errors.ErrInvalidConfig)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		policies := remote.DefaultPolicies()
		mp := remote.MapPolicy{Order: remote.MapUnordered, Flags: remote.MapWriteCreateOnly}
		o := NewOptions()
		require.NoError(t, o.Apply(WithPolicies(policies), WithMapPolicy(mp), WithWriteMode(WriteBatch), WithMaxConcurrent(3)))
		require.Equal(t, policies, *o.Policies)
		require.Equal(t, mp, *o.MapPolicy)
		require.Equal(t, WriteBatch, o.WriteMode)
		require.Equal(t, 3, o.MaxConcurrent)
	})
}

func TestInitialization(t *testing.T) {
	ctx := context.Background()

	t.Run("Validation Before Connect", func(t *testing.T) {
		server := remotetest.NewServer()
		cfg := config.Default("orders")
		cfg.RecordKeyType = "uuid"

		_, err := NewAggregatedStore[string, string](ctx, cfg, StringMarshaller{}, WithClient(server))
		require.True(t, errors.IsValidation(err))
		require.ErrorIs(t, err, errors.ErrInvalidKeyType)
		require.False(t, server.Closed())

		cfg = config.Default("orders")
		cfg.Port = 70000
		_, err = NewRecordStore[string, string](ctx, cfg, NewStringRecordMapper(""), WithClient(server))
		require.ErrorIs(t, err, errors.ErrInvalidPort)
		require.Zero(t, server.Calls(remotetest.OpGet))
	})

	t.Run("Unparsable Port", func(t *testing.T) {
		_, err := config.FromProperties("orders", map[string]string{"aerospike.port": "http"})
		require.True(t, errors.IsValidation(err))
	})

	t.Run("Nil Marshaller", func(t *testing.T) {
		_, err := NewAggregatedStore[string, string](ctx, config.Default("orders"), nil, WithClient(remotetest.NewServer()))
		require.True(t, errors.IsValidation(err))

		_, err = NewRecordStore[string, string](ctx, config.Default("orders"), nil, WithClient(remotetest.NewServer()))
		require.True(t, errors.IsValidation(err))
	})

	t.Run("Empty Bin Name", func(t *testing.T) {
		cfg := config.Default("orders")
		cfg.BinName = ""
		_, err := NewAggregatedStore[string, string](ctx, cfg, StringMarshaller{}, WithClient(remotetest.NewServer()))
		require.True(t, errors.IsValidation(err))
	})

	t.Run("Rejected Option Releases Client", func(t *testing.T) {
		server := remotetest.NewServer()
		_, err := NewAggregatedStore[string, string](ctx, config.Default("orders"), StringMarshaller{},
			WithClient(server), WithMaxConcurrent(0))
		require.True(t, errors.IsValidation(err))
		require.True(t, server.Closed())

		server = remotetest.NewServer()
		_, err = NewRecordStore[string, string](ctx, config.Default("orders"), NewStringRecordMapper(""),
			WithClient(server), WithLogger(nil))
		require.True(t, errors.IsValidation(err))
		require.True(t, server.Closed())
	})

	t.Run("Disconnected Client Is Released", func(t *testing.T) {
		server := remotetest.NewServer()
		require.NoError(t, server.Close())
		_, err := NewAggregatedStore[string, string](ctx, config.Default("orders"), StringMarshaller{}, WithClient(server))
		require.True(t, errors.IsRetryable(err))
	})

	t.Run("Typed Record Key", func(t *testing.T) {
		cfg := config.Default("orders")
		cfg.RecordKeyType = "LONG"
		cfg.RecordKey = "42"
		store, err := NewAggregatedStore[string, string](ctx, cfg, StringMarshaller{}, WithClient(remotetest.NewServer()))
		require.NoError(t, err)
		defer store.Close()
		require.Equal(t, remote.Key{Namespace: "test", Set: "orders", Value: int64(42)}, store.RecordKey())
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	exporter := metrics.NewStoreMetrics()

	for _, tc := range []struct {
		name  string
		build func(t *testing.T) (MapStore[string, string], *remotetest.Server)
	}{
		{"Aggregated", func(t *testing.T) (MapStore[string, string], *remotetest.Server) {
			return newAggregated(t, WithMetrics(exporter))
		}},
		{"Record", func(t *testing.T) (MapStore[string, string], *remotetest.Server) {
			return newRecord(t, WithMetrics(exporter))
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store, server := tc.build(t)
			require.NoError(t, store.Close())
			require.NoError(t, store.Close())
			require.True(t, server.Closed())

			_, _, err := store.Load(ctx, "k")
			require.True(t, errors.IsStoreClosed(err))
			require.True(t, errors.IsValidation(err))

			_, err = store.LoadAll(ctx, []string{"k"})
			require.True(t, errors.IsStoreClosed(err))
			require.True(t, errors.IsStoreClosed(store.Store(ctx, "k", "v")))
			require.True(t, errors.IsStoreClosed(store.StoreAll(ctx, map[string]string{"k": "v"})))
			require.True(t, errors.IsStoreClosed(store.Delete(ctx, "k")))
			require.True(t, errors.IsStoreClosed(store.DeleteAll(ctx, []string{"k"})))
			for _, err := range store.LoadAllKeys(ctx) {
				require.True(t, errors.IsStoreClosed(err))
			}

			require.Zero(t, server.Calls(remotetest.OpOperate)+server.Calls(remotetest.OpGet))
		})
	}
}
