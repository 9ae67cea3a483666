package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of the routing service.
type Metrics struct {
	queries         *prometheus.CounterVec
	queryLatency    *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	refreshes       *prometheus.CounterVec
	refreshLatency  prometheus.Histogram
	snapshotVersion prometheus.Gauge
	vertices        prometheus.Gauge
	edges           prometheus.Gauge
	ways            *prometheus.GaugeVec
	rejectedWays    *prometheus.GaugeVec
	residentMemory  prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navigatorx_route_queries_total",
			Help: "Route queries by outcome",
		}, []string{"outcome"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navigatorx_route_query_duration_seconds",
			Help:    "Latency of route queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navigatorx_route_cache_hits_total",
			Help: "Route queries answered from the snapshot route cache",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navigatorx_snapshot_refreshes_total",
			Help: "Snapshot builds by status",
		}, []string{"status"}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "navigatorx_snapshot_build_duration_seconds",
			Help:    "Time to load the network and build a snapshot",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		snapshotVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navigatorx_snapshot_version",
			Help: "Version of the snapshot currently serving queries",
		}),
		vertices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navigatorx_graph_vertices",
			Help: "Vertices of the serving graph",
		}),
		edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navigatorx_graph_edges",
			Help: "Directed edges of the serving graph",
		}),
		ways: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navigatorx_snapshot_ways",
			Help: "Ways read for the serving snapshot by state",
		}, []string{"state"}),
		rejectedWays: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navigatorx_snapshot_rejected_ways",
			Help: "Ways rejected while building the serving snapshot by reason",
		}, []string{"reason"}),
		residentMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "navigatorx_resident_memory_bytes",
			Help: "Resident set size measured after the last snapshot build",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navigatorx_http_requests_total",
			Help: "HTTP requests by path, method and status code",
		}, []string{"path", "method", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navigatorx_http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
	}

	reg.MustRegister(
		m.queries,
		m.queryLatency,
		m.cacheHits,
		m.refreshes,
		m.refreshLatency,
		m.snapshotVersion,
		m.vertices,
		m.edges,
		m.ways,
		m.rejectedWays,
		m.residentMemory,
		m.httpRequests,
		m.httpLatency,
	)
	return m
}

func (m *Metrics) OnQuery(outcome string, d time.Duration) {
	m.queries.WithLabelValues(outcome).Inc()
	m.queryLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) OnCacheHit() {
	m.cacheHits.Inc()
}

func (m *Metrics) OnRefresh(status string, d time.Duration) {
	m.refreshes.WithLabelValues(status).Inc()
	if status == "success" {
		m.refreshLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) OnSnapshot(version uint64, vertices, edges int, report datastructure.BuildReport) {
	m.snapshotVersion.Set(float64(version))
	m.vertices.Set(float64(vertices))
	m.edges.Set(float64(edges))

	m.ways.WithLabelValues("accepted").Set(float64(report.Accepted))
	m.ways.WithLabelValues("filtered").Set(float64(report.Filtered))
	m.ways.WithLabelValues("uncached").Set(float64(report.Uncached))

	m.rejectedWays.Reset()
	for reason, n := range report.Rejected {
		m.rejectedWays.WithLabelValues(string(reason)).Set(float64(n))
	}

	if rss, err := ProcessRSS(); err == nil {
		m.residentMemory.Set(float64(rss))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware records request counts and latency.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := pathLabel(r.URL.Path)
		m.httpRequests.WithLabelValues(path, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpLatency.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

// pathLabel replaces numeric path segments with ":id" so node ids do not become label values.
func pathLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
