package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	mapstore "github.com/gozephyr/aerospike-mapstore"
	"github.com/gozephyr/aerospike-mapstore/config"
	"github.com/gozephyr/aerospike-mapstore/metrics"
)

// rootFlags holds the flags shared by every subcommand
type rootFlags struct {
	configPath string
	mapName    string
	strategy   string
	writeMode  string
	host       string
	port       int
	namespace  string
	set        string
	logLevel   string
	stats      bool
}

// openFunc builds the store a subcommand runs against
type openFunc func(ctx context.Context, cfg config.Config, strategy mapstore.Strategy, opts ...mapstore.Option) (mapstore.MapStore[string, string], error)

// openStore dials the cluster described by cfg
func openStore(ctx context.Context, cfg config.Config, strategy mapstore.Strategy, opts ...mapstore.Option) (mapstore.MapStore[string, string], error) {
	switch strategy {
	case mapstore.StrategyAggregated:
		return mapstore.NewAggregatedStore[string, string](ctx, cfg, mapstore.StringMarshaller{}, opts...)
	case mapstore.StrategyRecord:
		return mapstore.NewRecordStore[string, string](ctx, cfg, mapstore.NewStringRecordMapper(cfg.ValueBin), opts...)
	default:
		return nil, fmt.Errorf("unknown strategy %q, want %q or %q", strategy, mapstore.StrategyAggregated, mapstore.StrategyRecord)
	}
}

// newRootCmd creates the mapstorectl command tree
func newRootCmd(open openFunc) *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:          "mapstorectl",
		Short:        "Inspect and edit maps persisted in Aerospike",
		Long:         "mapstorectl reads and writes the entries of a map persisted in Aerospike, using either the aggregated-record or the record-per-entry layout.",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVarP(&flags.mapName, "map", "m", "", "Logical map name (default set and record key)")
	pf.StringVarP(&flags.strategy, "strategy", "s", string(mapstore.StrategyAggregated), "Storage layout: aggregated or record")
	pf.StringVar(&flags.writeMode, "write-mode", mapstore.WriteSerial.String(), "Record layout bulk writes: serial, parallel or batch")
	pf.StringVar(&flags.host, "host", "", "Seed host (overrides the configuration)")
	pf.IntVar(&flags.port, "port", 0, "Seed port (overrides the configuration)")
	pf.StringVar(&flags.namespace, "namespace", "", "Namespace (overrides the configuration)")
	pf.StringVar(&flags.set, "set", "", "Set (overrides the configuration)")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Log level: trace, debug, info, warn or error")
	pf.BoolVar(&flags.stats, "stats", false, "Print operation metrics after the command")
	_ = rootCmd.MarkPersistentFlagRequired("map")

	rootCmd.AddCommand(
		newGetCmd(flags, open),
		newGetAllCmd(flags, open),
		newPutCmd(flags, open),
		newDeleteCmd(flags, open),
		newKeysCmd(flags, open),
	)
	return rootCmd
}

// configure resolves the configuration from the file and flag overrides
func (f *rootFlags) configure() (config.Config, error) {
	var opts []config.Option
	if f.host != "" || f.port != 0 {
		host, port := f.host, f.port
		if host == "" {
			host = config.DefaultHost
		}
		if port == 0 {
			port = config.DefaultPort
		}
		opts = append(opts, config.WithHost(host, port))
	}
	if f.namespace != "" {
		opts = append(opts, config.WithNamespace(f.namespace))
	}
	if f.set != "" {
		opts = append(opts, config.WithSet(f.set))
	}

	if f.configPath != "" {
		return config.Load(f.configPath, f.mapName, opts...)
	}
	cfg := config.Default(f.mapName)
	if err := cfg.Apply(opts...); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// session is an open store plus what is needed to report on it
type session struct {
	store mapstore.MapStore[string, string]
	flags *rootFlags
}

func (f *rootFlags) open(cmd *cobra.Command, open openFunc) (*session, error) {
	cfg, err := f.configure()
	if err != nil {
		return nil, err
	}
	mode, err := mapstore.ParseWriteMode(f.writeMode)
	if err != nil {
		return nil, err
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "mapstorectl",
		Level:  hclog.LevelFromString(f.logLevel),
		Output: cmd.ErrOrStderr(),
	})

	exporter, err := metrics.NewMetricsExporter(metrics.PrometheusExporterType, cfg.MapName, map[string]string{"service": "mapstorectl"}, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	store, err := open(cmd.Context(), cfg, mapstore.Strategy(strings.ToLower(f.strategy)),
		mapstore.WithLogger(logger),
		mapstore.WithMetrics(exporter),
		mapstore.WithWriteMode(mode),
	)
	if err != nil {
		return nil, err
	}
	return &session{store: store, flags: f}, nil
}

// close releases the store and prints metrics when requested
func (s *session) close(cmd *cobra.Command) error {
	if s.flags.stats {
		snapshot := s.store.Metrics()
		fmt.Fprintf(cmd.ErrOrStderr(), "operations=%d items=%d errors=%d latency=%s\n",
			snapshot.Operations, snapshot.Items, snapshot.Errors, snapshot.TotalLatency)
	}
	return s.store.Close()
}
