package usecases

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine/routing"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/lintang-b-s/navigatorx-pg/pkg/store"
	"github.com/lintang-b-s/navigatorx-pg/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEngine struct {
	err error
}

func (s stubEngine) Route(context.Context, geo.Coordinate, geo.Coordinate) (*routing.Route, *engine.Snapshot, error) {
	return nil, nil, s.err
}

func (s stubEngine) Neighbors(int64) ([]datastructure.Neighbor, bool, error) {
	return nil, false, s.err
}

func squareNetwork() *datastructure.Network {
	return &datastructure.Network{
		Nodes: []datastructure.Node{
			datastructure.NewNode(1, 0, 0),
			datastructure.NewNode(2, 0, 1),
			datastructure.NewNode(3, 1, 1),
			datastructure.NewNode(4, 1, 0),
		},
		Ways: []datastructure.Way{
			datastructure.NewWay(10, []int64{1, 2, 3}, map[string]string{"highway": "residential"}),
			datastructure.NewWay(11, []int64{3, 4, 1}, map[string]string{"highway": "residential"}),
		},
	}
}

func newTestEngine(t *testing.T, network *datastructure.Network) *engine.Engine {
	t.Helper()
	src := store.NewStaticSource(network)
	return engine.NewEngine(src, engine.Options{
		Metric:       geo.Planar{},
		SearchRadius: 0.5,
		QueryTimeout: time.Second,
		StaleAbs:     1e-6,
		StaleRel:     0.01,
	}, zap.NewNop(), nil)
}

func TestShortestPath(t *testing.T) {
	e := newTestEngine(t, squareNetwork())
	_, err := e.Refresh(context.Background())
	require.NoError(t, err)

	rs := NewRoutingService(zap.NewNop(), e)
	route, version, err := rs.ShortestPath(context.Background(), 0, 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	assert.InDelta(t, 2.0, route.Distance, 1e-9)
	assert.Equal(t, int64(1), route.NodeIDs[0])
	assert.Equal(t, int64(3), route.NodeIDs[len(route.NodeIDs)-1])
}

func TestShortestPathNotReady(t *testing.T) {
	rs := NewRoutingService(zap.NewNop(), newTestEngine(t, squareNetwork()))
	_, _, err := rs.ShortestPath(context.Background(), 0, 0, 1, 1)
	assert.ErrorIs(t, err, engine.ErrNotReady)
	assert.Equal(t, util.ErrServiceUnavailable, util.ErrorCode(err))
}

func TestWrapEngineError(t *testing.T) {
	tests := []struct {
		err  error
		code error
	}{
		{engine.ErrNotReady, util.ErrServiceUnavailable},
		{fmt.Errorf("origin: %w", routing.ErrInvalidCoordinate), util.ErrBadParamInput},
		{fmt.Errorf("destination: %w", routing.ErrNoRoadNearby), util.ErrNotFound},
		{routing.ErrUnreachable, util.ErrNotFound},
		{routing.ErrSearchTimeout, util.ErrTimeout},
		{context.DeadlineExceeded, util.ErrTimeout},
		{errors.New("boom"), util.ErrInternalServerError},
	}
	rs := NewRoutingService(zap.NewNop(), nil)
	for _, tt := range tests {
		rs.engine = stubEngine{err: tt.err}
		_, _, err := rs.ShortestPath(context.Background(), 0, 0, 1, 1)
		assert.ErrorIs(t, err, tt.err)
		assert.Equal(t, tt.code, util.ErrorCode(err), "%v", tt.err)
	}
}

func TestNeighbors(t *testing.T) {
	e := newTestEngine(t, squareNetwork())
	_, err := e.Refresh(context.Background())
	require.NoError(t, err)
	rs := NewRoutingService(zap.NewNop(), e)

	neighbors, err := rs.Neighbors(1)
	require.NoError(t, err)
	assert.Len(t, neighbors, 2)

	_, err = rs.Neighbors(99)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Equal(t, util.ErrNotFound, util.ErrorCode(err))
}

func TestAdminRefresh(t *testing.T) {
	src := store.NewStaticSource(&datastructure.Network{})
	e := engine.NewEngine(src, engine.Options{Metric: geo.Planar{}, SearchRadius: 0.5}, zap.NewNop(), nil)
	as := NewAdminService(context.Background(), zap.NewNop(), e)

	_, err := as.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, util.ErrInternalServerError, util.ErrorCode(err))
	status := as.Status()
	assert.False(t, status.Ready)
	assert.Error(t, status.LastError)

	src.Set(squareNetwork())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := as.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Version)

	status = as.Status()
	assert.True(t, status.Ready)
	assert.NoError(t, status.LastError)
	assert.Same(t, snap, status.Snapshot)
}

func TestAdminRefreshAsync(t *testing.T) {
	e := newTestEngine(t, squareNetwork())
	as := NewAdminService(context.Background(), zap.NewNop(), e)
	as.RefreshAsync()
	assert.Eventually(t, as.Ready, 2*time.Second, 5*time.Millisecond)
}
