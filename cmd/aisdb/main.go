// Command aisdb ingests AIS NMEA logs into a SQL or columnar store and
// queries them.
//
// Usage:
//
//	aisdb [--config aisdb.yaml] <command> [flags]
//
// Commands:
//
//	ingest FILE...     decode NMEA files (plain, .gz or .zst) into the store
//	search             query position reports and export them
//	vessels MMSI...    look up static and voyage records
//	schema             create the schema, optionally print row counts
//	serve              run the HTTP query API
//	feed               ingest lines published on a NATS subject
//	gfw                query the Global Fishing Watch API
//
// Every setting can come from the YAML file, from the environment
// (AISDB_BACKEND, AISDB_SQLITE_PATH, CLICKHOUSE_*, POSTGRES_*, NATS_URL,
// GFW_API_TOKEN) or from the global flags, in increasing precedence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aisdb/internal/config"
	"aisdb/internal/decoder"
	"aisdb/internal/logging"
	"aisdb/internal/metrics"
	_ "aisdb/internal/parsers" // register all parsers via init()
	"aisdb/internal/query"
	"aisdb/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries the loaded configuration and shared components of one
// invocation.
type app struct {
	configPath string
	backend    string
	sqlitePath string
	extended   bool
	logLevel   string

	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "aisdb",
		Short: "AIS NMEA ingestion and query tool",
		Long: `aisdb decodes AIS NMEA logs into SQLite, ClickHouse or PostgreSQL and
runs filtered, cached queries over the stored position reports.

Examples:
  aisdb ingest data/2016-07-28.nm4.gz
  aisdb search --mmsi 367596940 --start 2016-07-27 --end 2016-07-28 -o track.geojson
  aisdb vessels 351759000
  aisdb serve --addr :8080`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&a.backend, "backend", "", "Store backend: sqlite, clickhouse or postgres")
	pf.StringVar(&a.sqlitePath, "db", "", "SQLite database path")
	pf.BoolVar(&a.extended, "extended", false, "Use the extended schema with class B tables")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddGroup(
		&cobra.Group{ID: "data", Title: "Data Commands:"},
		&cobra.Group{ID: "service", Title: "Service Commands:"},
	)
	root.AddCommand(
		newIngestCmd(a),
		newSearchCmd(a),
		newVesselsCmd(a),
		newSchemaCmd(a),
		newServeCmd(a),
		newFeedCmd(a),
		newGFWCmd(a),
	)
	return root
}

// setup loads the configuration and applies the global flags on top.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Storage.Backend = a.backend
	}
	if flags.Changed("db") {
		cfg.Storage.SQLitePath = a.sqlitePath
	}
	if flags.Changed("extended") {
		cfg.Ingest.ExtendedSchema = a.extended
		cfg.Storage.ExtendedSchema = a.extended
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	a.log = log
	a.metrics = metrics.New(prometheus.NewRegistry())
	return nil
}

func (a *app) openStore(ctx context.Context) (*storage.Handle, error) {
	store, err := storage.NewHandle(a.cfg.StorageConfig(), a.log.Named("storage"), a.metrics)
	if err != nil {
		return nil, err
	}
	if err := store.Open(ctx); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func (a *app) decoder() *decoder.Decoder {
	return decoder.New(decoder.Options{
		Extended: a.cfg.StorageConfig().ExtendedSchema,
		Logger:   a.log.Named("decoder"),
		Metrics:  a.metrics,
	})
}

func (a *app) engine(store *storage.Handle) (*query.Engine, error) {
	opts, err := a.cfg.QueryOptions()
	if err != nil {
		return nil, err
	}
	return query.NewEngine(store, opts, a.log.Named("query"), a.metrics)
}

// closeStore closes store, logging rather than returning the error so it
// does not mask the command's own result.
func (a *app) closeStore(store *storage.Handle) {
	if err := store.Close(context.Background()); err != nil {
		a.log.Error("close store", zap.Error(err))
	}
}
