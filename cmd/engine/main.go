package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/lintang-b-s/navigatorx-pg/pkg/config"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine"
	"github.com/lintang-b-s/navigatorx-pg/pkg/http"
	"github.com/lintang-b-s/navigatorx-pg/pkg/http/usecases"
	"github.com/lintang-b-s/navigatorx-pg/pkg/logger"
	"github.com/lintang-b-s/navigatorx-pg/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-pg/pkg/osmparser"
	"github.com/lintang-b-s/navigatorx-pg/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configFile string
	debug      bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "navigatorx",
	Short: "Shortest path routing over an OpenStreetMap road network",
	Long: `navigatorx serves shortest path queries over the road network of an osm2pgsql
database (or an .osm.pbf extract).

On start it serves HTTP immediately and builds the routing snapshot in the background,
retrying until the store is reachable. Snapshots are rebuilt on the refresh interval or
through POST /api/admin/refresh.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build one snapshot, print its build report and exit",
	RunE:  runCheck,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default ./data/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to a rotated JSON log file")

	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Log.Debug = true
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	log, err := logger.NewWithFile(cfg.Log.Debug, cfg.Log.File)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newSource opens the configured network source. The returned func releases it.
func newSource(ctx context.Context, cfg *config.Config, log *zap.Logger) (engine.Source, func(), error) {
	switch cfg.Source.Kind {
	case "pbf":
		procs := cfg.Routing.BuildWorkers
		if procs <= 0 {
			procs = runtime.NumCPU()
		}
		return osmparser.NewOsmParser(cfg.Source.PBFFile, procs, log), func() {}, nil
	default:
		pg, err := store.NewPostgresStore(ctx, cfg.DB, log)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := http.GracefulShutdown()
	defer stop()

	src, closeSource, err := newSource(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open network source", zap.Error(err))
		return err
	}
	defer closeSource()

	opts, err := engine.NewOptions(cfg)
	if err != nil {
		log.Error("invalid routing options", zap.Error(err))
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	routingEngine := engine.NewEngine(src, opts, log, m)

	api, err := http.NewServer(log).Use(ctx, cfg.API,
		usecases.NewRoutingService(log, routingEngine),
		usecases.NewAdminService(ctx, log, routingEngine),
		m, reg)
	if err != nil {
		return err
	}

	log.Info("Navigatorx Routing Engine Server Started",
		zap.String("source", src.Name()),
		zap.String("profile", opts.Profile.Name),
		zap.String("metric", opts.Metric.Name()),
		zap.Int("port", cfg.API.Port))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return routingEngine.Run(gctx)
	})
	g.Go(api.Wait)

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Navigatorx Routing Engine Server Failed", zap.Error(err))
		return err
	}
	log.Info("Navigatorx Routing Engine Server Stopped")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := http.GracefulShutdown()
	defer stop()

	src, closeSource, err := newSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSource()

	opts, err := engine.NewOptions(cfg)
	if err != nil {
		return err
	}

	snap, err := engine.NewEngine(src, opts, log, nil).Refresh(ctx)
	if err != nil {
		return err
	}

	report := snap.Report
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "source:    %s\n", snap.Source)
	fmt.Fprintf(out, "ways:      %d\n", report.Ways)
	fmt.Fprintf(out, "accepted:  %d\n", report.Accepted)
	fmt.Fprintf(out, "filtered:  %d\n", report.Filtered)
	fmt.Fprintf(out, "uncached:  %d\n", report.Uncached)
	fmt.Fprintf(out, "rejected:  %d\n", report.TotalRejected())
	for reason, n := range report.Rejected {
		fmt.Fprintf(out, "  %-16s %d\n", reason, n)
	}
	fmt.Fprintf(out, "vertices:  %d\n", snap.Graph().NumberOfVertices())
	fmt.Fprintf(out, "edges:     %d\n", snap.Graph().NumberOfEdges())
	fmt.Fprintf(out, "took:      %s\n", snap.BuildDuration)
	return nil
}
