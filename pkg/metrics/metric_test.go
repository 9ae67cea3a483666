package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.OnQuery("ok", 10*time.Millisecond)
	m.OnQuery("ok", 20*time.Millisecond)
	m.OnQuery("unreachable", time.Millisecond)
	m.OnCacheHit()
	m.OnRefresh("success", time.Second)
	m.OnRefresh("failure", time.Second)
	m.OnSnapshot(3, 10, 18, datastructure.BuildReport{
		Accepted: 4,
		Filtered: 2,
		Rejected: map[datastructure.RejectReason]int{datastructure.RejectStaleLength: 1},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("unreachable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.snapshotVersion))
	assert.Equal(t, 18.0, testutil.ToFloat64(m.edges))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ways.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejectedWays.WithLabelValues("stale_length")))
}

func TestHTTPMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/healthz", "GET", "418")))
}

func TestPathLabel(t *testing.T) {
	assert.Equal(t, "/api/nodes/:id/neighbors", pathLabel("/api/nodes/1234/neighbors"))
	assert.Equal(t, "/api/nodes/:id/neighbors", pathLabel("/api/nodes/-7/neighbors"))
	assert.Equal(t, "/api/computeRoutes", pathLabel("/api/computeRoutes"))
	assert.Equal(t, "/", pathLabel("/"))
}

func TestProcessRSS(t *testing.T) {
	rss, err := ProcessRSS()
	if err != nil {
		t.Skipf("process stats unavailable: %v", err)
	}
	assert.Greater(t, rss, uint64(0))
}
