package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/lintang-b-s/navigatorx-pg/pkg/http/usecases"
	"github.com/lintang-b-s/navigatorx-pg/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-pg/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, opts Options) (http.Handler, *engine.Engine) {
	t.Helper()
	network := &datastructure.Network{
		Nodes: []datastructure.Node{
			datastructure.NewNode(1, 0, 0),
			datastructure.NewNode(2, 0, 1),
		},
		Ways: []datastructure.Way{
			datastructure.NewWay(100, []int64{1, 2}, map[string]string{"highway": "residential"}),
		},
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	e := engine.NewEngine(store.NewStaticSource(network), engine.Options{
		Metric:       geo.Planar{},
		SearchRadius: 0.5,
		QueryTimeout: time.Second,
	}, zap.NewNop(), m)

	api := NewAPI(zap.NewNop())
	h := api.Handler(opts,
		usecases.NewRoutingService(zap.NewNop(), e),
		usecases.NewAdminService(context.Background(), zap.NewNop(), e),
		m, reg)
	return h, e
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerHealthAndReadiness(t *testing.T) {
	h, e := newTestHandler(t, Options{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err := e.Refresh(context.Background())
	require.NoError(t, err)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/computeRoutes?origin_lat=0&origin_lon=0&destination_lat=0&destination_lon=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `navigatorx_route_queries_total{outcome="ok"} 1`)
	assert.Contains(t, body, "navigatorx_snapshot_version 1")
	assert.Contains(t, body, `navigatorx_http_requests_total{code="200",method="GET",path="/readyz"} 1`)
}

func TestEnforceJSONHandler(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/route", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/route", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/route", strings.NewReader(`{"start":{"lat":0,"lng":0},"end":{"lat":0,"lng":1}}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, req).Code)
}

func TestRecoverPanic(t *testing.T) {
	api := NewAPI(zap.NewNop())
	h := api.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestRealIP(t *testing.T) {
	var got string
	h := RealIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.RemoteAddr
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 172.16.0.1")
	serve(h, req)
	assert.Equal(t, "10.0.0.7", got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "10.0.0.8")
	req.Header.Set("X-Forwarded-For", "10.0.0.7")
	serve(h, req)
	assert.Equal(t, "10.0.0.8", got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "not-an-ip")
	serve(h, req)
	assert.Equal(t, req.RemoteAddr, got)
}

func TestLimit(t *testing.T) {
	h, _ := newTestHandler(t, Options{RateLimit: true, Rate: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusServiceUnavailable, serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
	}
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestHeartbeatBypassesLimit(t *testing.T) {
	h, _ := newTestHandler(t, Options{RateLimit: true, Rate: 0.001, Burst: 1})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
}
