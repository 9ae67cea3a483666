package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lintang-b-s/navigatorx-pg/pkg/config"
	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/lintang-b-s/navigatorx-pg/pkg/logger"
	"github.com/lintang-b-s/navigatorx-pg/pkg/profile"
	"github.com/lintang-b-s/navigatorx-pg/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile  string
	debug       bool
	logFile     string
	dryRun      bool
	useProfile  bool
	skipEnsure  bool
	workers     int
	metricName  string
	schemaName  string
	edgesTable  string
	sampleLimit int
)

var rootCmd = &cobra.Command{
	Use:   "materializer",
	Short: "Compute way lengths and upsert them into the way length table",
	Long: `materializer reads ways and nodes from the osm2pgsql middle tables, computes the
length and endpoints of every way and upserts one row per way into the way length
table (ways_length by default).

Stored lengths are ignored while computing, so the run also repairs stale rows.`,
	SilenceUsage: true,
	RunE:         runMaterialize,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default ./data/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to a rotated JSON log file")

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute lengths without writing them")
	rootCmd.Flags().BoolVar(&useProfile, "use-profile", false, "Only materialize ways accepted by routing.profile_file")
	rootCmd.Flags().BoolVar(&skipEnsure, "skip-create", false, "Do not create the way length table when it is missing")
	rootCmd.Flags().IntVarP(&workers, "workers", "j", 0, "Parallel workers (default routing.build_workers or all CPUs)")
	rootCmd.Flags().StringVar(&metricName, "metric", "", "Distance metric, haversine or planar (default routing.metric)")
	rootCmd.Flags().StringVar(&schemaName, "db-schema", "", "PostgreSQL schema (default db.schema)")
	rootCmd.Flags().StringVar(&edgesTable, "edges-table", "", "Way length table (default db.edges_table)")
	rootCmd.Flags().IntVar(&sampleLimit, "rejected-samples", 20, "Rejected ways to log")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if debug {
		cfg.Log.Debug = true
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	applyFlags(cfg)

	log, err := logger.NewWithFile(cfg.Log.Debug, cfg.Log.File)
	if err != nil {
		return err
	}
	defer log.Sync()

	metric, err := geo.NewMetric(cfg.Routing.Metric)
	if err != nil {
		return err
	}
	filter := profile.Default()
	if useProfile && cfg.Routing.ProfileFile != "" {
		if filter, err = profile.Load(cfg.Routing.ProfileFile); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	pg, err := store.NewPostgresStore(ctx, cfg.DB, log)
	if err != nil {
		log.Error("failed to open PostgreSQL", zap.Error(err))
		return err
	}
	defer pg.Close()

	if err := pg.Ping(ctx); err != nil {
		log.Error("PostgreSQL is not reachable", zap.Error(err))
		return err
	}

	log.Info("loading road network",
		zap.String("database", cfg.DB.Name),
		zap.String("schema", cfg.DB.Schema),
		zap.String("ways_table", cfg.DB.WaysTable))
	network, err := pg.Load(ctx)
	if err != nil {
		log.Error("failed to load road network", zap.Error(err))
		return err
	}
	network.Edges = nil

	index, err := datastructure.BuildEdgeIndex(network, datastructure.EdgeIndexOptions{
		Metric:     metric,
		Filter:     filter,
		Workers:    cfg.Routing.BuildWorkers,
		MaxSamples: sampleLimit,
	})
	if err != nil {
		return err
	}

	report := index.Report()
	for _, r := range report.Samples {
		log.Warn("way skipped",
			zap.Int64("way_id", r.WayID),
			zap.String("reason", string(r.Reason)),
			zap.String("detail", r.Detail))
	}
	records := index.DerivedRecords()
	log.Info("way lengths computed",
		zap.Int("ways", report.Ways),
		zap.Int("records", len(records)),
		zap.Int("filtered", report.Filtered),
		zap.Int("rejected", report.TotalRejected()),
		zap.Duration("took", time.Since(start)))

	if dryRun {
		log.Info("dry run, nothing written")
		return nil
	}

	if !skipEnsure {
		if err := pg.EnsureEdgesTable(ctx); err != nil {
			return err
		}
	}
	written, err := pg.WriteEdges(ctx, records)
	if err != nil {
		log.Error("failed to write way lengths", zap.Error(err))
		return err
	}

	log.Info("way lengths materialized",
		zap.String("table", cfg.DB.EdgesTable),
		zap.Int64("rows", written),
		zap.Duration("took", time.Since(start)))
	return nil
}

func applyFlags(cfg *config.Config) {
	if workers > 0 {
		cfg.Routing.BuildWorkers = workers
	}
	if metricName != "" {
		cfg.Routing.Metric = metricName
	}
	if schemaName != "" {
		cfg.DB.Schema = schemaName
	}
	if edgesTable != "" {
		cfg.DB.EdgesTable = edgesTable
	}
}
