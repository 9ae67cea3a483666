package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine/routing"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/lintang-b-s/navigatorx-pg/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-pg/pkg/profile"
	"github.com/lintang-b-s/navigatorx-pg/pkg/spatialindex"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotReady = errors.New("routing graph is not ready")
)

// Source loads the road network a snapshot is built from.
type Source interface {
	Name() string
	Load(ctx context.Context) (*datastructure.Network, error)
}

// Observer receives engine events. metrics.Metrics implements it.
type Observer interface {
	OnQuery(outcome string, d time.Duration)
	OnCacheHit()
	OnRefresh(status string, d time.Duration)
	OnSnapshot(version uint64, vertices, edges int, report datastructure.BuildReport)
}

type NoopObserver struct{}

func (NoopObserver) OnQuery(string, time.Duration)                          {}
func (NoopObserver) OnCacheHit()                                            {}
func (NoopObserver) OnRefresh(string, time.Duration)                        {}
func (NoopObserver) OnSnapshot(uint64, int, int, datastructure.BuildReport) {}

type Options struct {
	Metric             geo.Metric
	Profile            *profile.Profile
	SearchRadius       float64
	MaxSettled         int
	QueryTimeout       time.Duration
	DisableHeuristic   bool
	StaleAbs           float64
	StaleRel           float64
	BuildWorkers       int
	RouteCacheSize     int
	RejectedLogSamples int
	RefreshInterval    time.Duration
	RetryBackoff       time.Duration
	MaxBackoff         time.Duration
}

type routeKey struct {
	startLat, startLon, endLat, endLon int64
}

func newRouteKey(start, end geo.Coordinate) routeKey {
	q := func(v float64) int64 { return int64(math.Round(v * 1e7)) }
	return routeKey{q(start.Lat), q(start.Lon), q(end.Lat), q(end.Lon)}
}

// Snapshot is an immutable graph generation. Queries hold on to the snapshot they started with,
// so a refresh never changes the graph under a running search.
type Snapshot struct {
	Version       uint64
	Source        string
	BuiltAt       time.Time
	BuildDuration time.Duration
	Report        datastructure.BuildReport

	index  *datastructure.EdgeIndex
	graph  *datastructure.Graph
	router *routing.Router
	cache  *lru.Cache[routeKey, *routing.Route]
}

func (s *Snapshot) Graph() *datastructure.Graph {
	return s.graph
}

func (s *Snapshot) EdgeIndex() *datastructure.EdgeIndex {
	return s.index
}

func (s *Snapshot) Router() *routing.Router {
	return s.router
}

// Engine owns the current snapshot and replaces it atomically on refresh.
type Engine struct {
	source   Source
	opts     Options
	log      *zap.Logger
	observer Observer

	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	group   singleflight.Group

	mu          sync.RWMutex
	lastErr     error
	lastAttempt time.Time
}

func NewEngine(source Source, opts Options, log *zap.Logger, observer Observer) *Engine {
	if opts.Metric == nil {
		opts.Metric = geo.Haversine{}
	}
	if opts.Profile == nil {
		opts.Profile = profile.Default()
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Engine{
		source:   source,
		opts:     opts,
		log:      log,
		observer: observer,
	}
}

// Ready reports whether a snapshot is available for queries.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// Snapshot returns the serving snapshot, or nil before the first successful build.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// LastBuild returns the start time of the most recent build and its error, nil if it succeeded.
func (e *Engine) LastBuild() (time.Time, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastAttempt, e.lastErr
}

// Refresh loads the network and swaps in a new snapshot. Concurrent calls share one build.
// On failure the serving snapshot is kept.
func (e *Engine) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := e.group.Do("refresh", func() (interface{}, error) {
		start := time.Now()
		snap, err := e.build(ctx)

		e.mu.Lock()
		e.lastErr = err
		e.lastAttempt = start
		e.mu.Unlock()

		if err != nil {
			e.observer.OnRefresh("failure", time.Since(start))
			e.log.Error("snapshot build failed, keeping current snapshot",
				zap.String("source", e.source.Name()), zap.Error(err))
			return nil, err
		}

		e.current.Store(snap)
		e.observer.OnRefresh("success", snap.BuildDuration)
		e.observer.OnSnapshot(snap.Version, snap.graph.NumberOfVertices(), snap.graph.NumberOfEdges(), snap.Report)

		fields := []zap.Field{
			zap.Uint64("version", snap.Version),
			zap.Int("vertices", snap.graph.NumberOfVertices()),
			zap.Int("edges", snap.graph.NumberOfEdges()),
			zap.Duration("took", snap.BuildDuration),
		}
		if rss, err := metrics.ProcessRSS(); err == nil {
			fields = append(fields, zap.Uint64("rss_bytes", rss))
		}
		if used, err := metrics.MemoryUsedPercent(); err == nil {
			fields = append(fields, zap.Float64("system_memory_used_percent", used))
		}
		e.log.Info("snapshot ready", fields...)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (e *Engine) build(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	e.log.Info("loading road network", zap.String("source", e.source.Name()))

	network, err := e.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load network from %s: %w", e.source.Name(), err)
	}
	e.log.Info("road network loaded",
		zap.Int("nodes", len(network.Nodes)),
		zap.Int("ways", len(network.Ways)),
		zap.Int("length_rows", len(network.Edges)))

	index, err := datastructure.BuildEdgeIndex(network, datastructure.EdgeIndexOptions{
		Metric:     e.opts.Metric,
		Filter:     e.opts.Profile,
		StaleAbs:   e.opts.StaleAbs,
		StaleRel:   e.opts.StaleRel,
		Workers:    e.opts.BuildWorkers,
		MaxSamples: e.opts.RejectedLogSamples,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := index.Report()
	e.log.Info("edge index built",
		zap.Int("ways", report.Ways),
		zap.Int("accepted", report.Accepted),
		zap.Int("filtered", report.Filtered),
		zap.Int("uncached", report.Uncached),
		zap.Int("rejected", report.TotalRejected()))
	for _, r := range report.Samples {
		e.log.Warn("way rejected",
			zap.Int64("way_id", r.WayID),
			zap.String("reason", string(r.Reason)),
			zap.String("detail", r.Detail))
	}
	if index.Len() == 0 {
		return nil, fmt.Errorf("no routable ways among %d ways", report.Ways)
	}

	graph := datastructure.NewGraph(index)
	rtree := spatialindex.NewRtree(e.opts.Metric)
	rtree.Build(graph, e.log)

	router := routing.NewRouter(graph, rtree, e.opts.Metric, routing.Options{
		SearchRadius:     e.opts.SearchRadius,
		MaxSettled:       e.opts.MaxSettled,
		DisableHeuristic: e.opts.DisableHeuristic,
	})

	snap := &Snapshot{
		Version: e.version.Add(1),
		Source:  e.source.Name(),
		BuiltAt: time.Now(),
		Report:  report,
		index:   index,
		graph:   graph,
		router:  router,
	}
	if e.opts.RouteCacheSize > 0 {
		snap.cache, err = lru.New[routeKey, *routing.Route](e.opts.RouteCacheSize)
		if err != nil {
			return nil, err
		}
	}
	snap.BuildDuration = time.Since(start)
	return snap, nil
}

// Route answers one shortest path query on the current snapshot. Coordinates are validated before
// the route cache is consulted.
func (e *Engine) Route(ctx context.Context, start, end geo.Coordinate) (*routing.Route, *Snapshot, error) {
	began := time.Now()
	snap := e.current.Load()
	if snap == nil {
		e.observer.OnQuery(Outcome(ErrNotReady), time.Since(began))
		return nil, nil, ErrNotReady
	}

	if err := validateQuery(start, end); err != nil {
		e.observer.OnQuery(Outcome(err), time.Since(began))
		return nil, snap, err
	}

	key := newRouteKey(start, end)
	if snap.cache != nil {
		if route, ok := snap.cache.Get(key); ok {
			e.observer.OnCacheHit()
			e.observer.OnQuery(Outcome(nil), time.Since(began))
			return route, snap, nil
		}
	}

	if e.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.QueryTimeout)
		defer cancel()
	}

	route, err := snap.router.ShortestPath(ctx, start, end)
	e.observer.OnQuery(Outcome(err), time.Since(began))
	if err != nil {
		return nil, snap, err
	}
	if snap.cache != nil {
		snap.cache.Add(key, route)
	}
	return route, snap, nil
}

func validateQuery(start, end geo.Coordinate) error {
	if !start.Valid() {
		return fmt.Errorf("origin: %w: (%v, %v)", routing.ErrInvalidCoordinate, start.Lat, start.Lon)
	}
	if !end.Valid() {
		return fmt.Errorf("destination: %w: (%v, %v)", routing.ErrInvalidCoordinate, end.Lat, end.Lon)
	}
	return nil
}

// Neighbors returns the adjacency of one OSM node on the current snapshot.
func (e *Engine) Neighbors(nodeID int64) ([]datastructure.Neighbor, bool, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, false, ErrNotReady
	}
	neighbors, ok := snap.graph.Neighbors(nodeID)
	return neighbors, ok, nil
}

// Outcome maps a query error to a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, routing.ErrInvalidCoordinate):
		return "invalid"
	case errors.Is(err, routing.ErrNoRoadNearby):
		return "no_road"
	case errors.Is(err, routing.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, routing.ErrSearchTimeout):
		return "timeout"
	default:
		return "error"
	}
}
