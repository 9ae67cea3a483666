package engine

import (
	"github.com/lintang-b-s/navigatorx-pg/pkg/config"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/lintang-b-s/navigatorx-pg/pkg/profile"
)

// NewOptions maps the routing and refresh sections of cfg onto engine options, loading the way
// profile when one is configured.
func NewOptions(cfg *config.Config) (Options, error) {
	metric, err := geo.NewMetric(cfg.Routing.Metric)
	if err != nil {
		return Options{}, err
	}

	prof := profile.Default()
	if cfg.Routing.ProfileFile != "" {
		prof, err = profile.Load(cfg.Routing.ProfileFile)
		if err != nil {
			return Options{}, err
		}
	}

	return Options{
		Metric:             metric,
		Profile:            prof,
		SearchRadius:       cfg.Routing.SearchRadius,
		MaxSettled:         cfg.Routing.MaxSettled,
		QueryTimeout:       cfg.Routing.QueryTimeout,
		DisableHeuristic:   cfg.Routing.DisableHeuristic,
		StaleAbs:           cfg.Routing.StaleLengthAbs,
		StaleRel:           cfg.Routing.StaleLengthRel,
		BuildWorkers:       cfg.Routing.BuildWorkers,
		RouteCacheSize:     cfg.Routing.RouteCacheSize,
		RejectedLogSamples: cfg.Routing.RejectedLogSamples,
		RefreshInterval:    cfg.Refresh.Interval,
		RetryBackoff:       cfg.Refresh.RetryBackoff,
		MaxBackoff:         cfg.Refresh.MaxBackoff,
	}, nil
}
