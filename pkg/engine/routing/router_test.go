package routing

import (
	"context"
	"testing"

	da "github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/lintang-b-s/navigatorx-pg/pkg/profile"
	"github.com/lintang-b-s/navigatorx-pg/pkg/spatialindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var onewayProfile = &profile.Profile{Name: "oneway", Oneway: &profile.OnewayConfig{Respect: true}}

func newTestRouter(t *testing.T, network *da.Network, opts Options) *Router {
	t.Helper()
	idx, err := da.BuildEdgeIndex(network, da.EdgeIndexOptions{
		Metric:   geo.Planar{},
		Filter:   onewayProfile,
		StaleAbs: 1e-6,
		StaleRel: 0.01,
	})
	require.NoError(t, err)
	g := da.NewGraph(idx)
	rt := spatialindex.NewRtree(geo.Planar{})
	rt.Build(g, zap.NewNop())
	if opts.SearchRadius == 0 {
		opts.SearchRadius = 10
	}
	return NewRouter(g, rt, geo.Planar{}, opts)
}

// A(0,0) - B(0,1) - C(0,2)
func lineNetwork(tags map[string]string) *da.Network {
	return &da.Network{
		Nodes: []da.Node{
			da.NewNode(1, 0, 0),
			da.NewNode(2, 0, 1),
			da.NewNode(3, 0, 2),
		},
		Ways: []da.Way{
			da.NewWay(100, []int64{1, 2, 3}, tags),
		},
	}
}

// size x size grid with unit spacing. Node (i, j) has id i*size+j+1.
func gridNetwork(size int) *da.Network {
	network := &da.Network{}
	id := func(i, j int) int64 { return int64(i*size + j + 1) }
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			network.Nodes = append(network.Nodes, da.NewNode(id(i, j), float64(i), float64(j)))
		}
	}
	wayID := int64(1)
	for i := 0; i < size; i++ {
		row := make([]int64, 0, size)
		col := make([]int64, 0, size)
		for j := 0; j < size; j++ {
			row = append(row, id(i, j))
			col = append(col, id(j, i))
		}
		network.Ways = append(network.Ways, da.NewWay(wayID, row, nil), da.NewWay(wayID+1, col, nil))
		wayID += 2
	}
	return network
}

func pathLength(path []geo.Coordinate) float64 {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		total += geo.Planar{}.Distance(path[i], path[i+1])
	}
	return total
}

func TestShortestPathAlongLine(t *testing.T) {
	r := newTestRouter(t, lineNetwork(nil), Options{})

	route, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 0), geo.NewCoordinate(0, 2))
	require.NoError(t, err)

	assert.InDelta(t, 2.0, route.Distance, 1e-9)
	assert.Equal(t, []int64{1, 2, 3}, route.NodeIDs)
	assert.Equal(t, []geo.Coordinate{
		geo.NewCoordinate(0, 0),
		geo.NewCoordinate(0, 1),
		geo.NewCoordinate(0, 2),
	}, route.Path)
	assert.InDelta(t, 0.0, route.SnapStart.Distance, 1e-9)
	assert.InDelta(t, 0.0, route.SnapEnd.Distance, 1e-9)

	back, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 2), geo.NewCoordinate(0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, back.Distance, 1e-9)
	assert.Equal(t, []int64{3, 2, 1}, back.NodeIDs)
}

func TestShortestPathWithinOneSegment(t *testing.T) {
	network := &da.Network{
		Nodes: []da.Node{da.NewNode(1, 0, 0), da.NewNode(2, 0, 5)},
		Ways:  []da.Way{da.NewWay(7, []int64{1, 2}, nil)},
	}
	r := newTestRouter(t, network, Options{})

	route, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 2), geo.NewCoordinate(0, 4))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, route.Distance, 1e-9)
	assert.Empty(t, route.NodeIDs)
	assert.Zero(t, route.SettledNodes)
	require.Len(t, route.Path, 2)
	assert.InDelta(t, 2.0, route.Path[0].Lon, 1e-9)
	assert.InDelta(t, 4.0, route.Path[1].Lon, 1e-9)

	back, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 4), geo.NewCoordinate(0, 2))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, back.Distance, 1e-9)
}

func TestShortestPathSnapOffRoad(t *testing.T) {
	r := newTestRouter(t, lineNetwork(nil), Options{})

	route, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0.5, 0.5), geo.NewCoordinate(-0.25, 2))
	require.NoError(t, err)

	assert.InDelta(t, 1.5, route.Distance, 1e-9)
	assert.Equal(t, []int64{2, 3}, route.NodeIDs)
	assert.InDelta(t, 0.5, route.SnapStart.Distance, 1e-9)
	assert.InDelta(t, 0.25, route.SnapEnd.Distance, 1e-9)
	assert.InDelta(t, route.Distance, pathLength(route.Path), 1e-9)
}

func TestShortestPathSamePoint(t *testing.T) {
	r := newTestRouter(t, lineNetwork(nil), Options{})

	route, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 1), geo.NewCoordinate(0, 1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, route.Distance)
	assert.Equal(t, []int64{2}, route.NodeIDs)

	route, err = r.ShortestPath(context.Background(), geo.NewCoordinate(0, 0.5), geo.NewCoordinate(0, 0.5))
	require.NoError(t, err)
	assert.Equal(t, 0.0, route.Distance)
	assert.Len(t, route.Path, 1)
}

func TestShortestPathOneway(t *testing.T) {
	r := newTestRouter(t, lineNetwork(map[string]string{"oneway": "yes"}), Options{})

	route, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 0), geo.NewCoordinate(0, 2))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, route.Distance, 1e-9)

	_, err = r.ShortestPath(context.Background(), geo.NewCoordinate(0, 2), geo.NewCoordinate(0, 0))
	assert.ErrorIs(t, err, ErrUnreachable)

	// both points on the same segment, against the allowed direction
	_, err = r.ShortestPath(context.Background(), geo.NewCoordinate(0, 0.75), geo.NewCoordinate(0, 0.25))
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestShortestPathLeavesVirtualSourceBackward(t *testing.T) {
	network := &da.Network{
		Nodes: []da.Node{da.NewNode(1, 0, 0), da.NewNode(2, 0, 4), da.NewNode(3, 0, -2)},
		Ways: []da.Way{
			da.NewWay(1, []int64{1, 2}, nil),
			da.NewWay(2, []int64{1, 3}, nil),
		},
	}
	r := newTestRouter(t, network, Options{})

	route, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 3), geo.NewCoordinate(0, -2))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, route.Distance, 1e-9)
	assert.Equal(t, []int64{1, 3}, route.NodeIDs)
	assert.Equal(t, []geo.Coordinate{
		geo.NewCoordinate(0, 3),
		geo.NewCoordinate(0, 0),
		geo.NewCoordinate(0, -2),
	}, route.Path)

	network.Ways[0].Tags = map[string]string{"oneway": "yes"}
	r = newTestRouter(t, network, Options{})
	_, err = r.ShortestPath(context.Background(), geo.NewCoordinate(0, 3), geo.NewCoordinate(0, -2))
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestShortestPathDisconnected(t *testing.T) {
	network := lineNetwork(nil)
	network.Nodes = append(network.Nodes, da.NewNode(4, 5, 0), da.NewNode(5, 5, 1))
	network.Ways = append(network.Ways, da.NewWay(200, []int64{4, 5}, nil))
	r := newTestRouter(t, network, Options{})

	_, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 0), geo.NewCoordinate(5, 1))
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestShortestPathSnapErrors(t *testing.T) {
	r := newTestRouter(t, lineNetwork(nil), Options{SearchRadius: 1})

	_, err := r.ShortestPath(context.Background(), geo.NewCoordinate(30, 30), geo.NewCoordinate(0, 0))
	assert.ErrorIs(t, err, ErrNoRoadNearby)
	assert.Contains(t, err.Error(), "origin")

	_, err = r.ShortestPath(context.Background(), geo.NewCoordinate(0, 0), geo.NewCoordinate(0, 3.5))
	assert.ErrorIs(t, err, ErrNoRoadNearby)
	assert.Contains(t, err.Error(), "destination")

	_, err = r.ShortestPath(context.Background(), geo.NewCoordinate(95, 0), geo.NewCoordinate(0, 0))
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestShortestPathBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRouter(t, lineNetwork(nil), Options{})
	_, err := r.ShortestPath(ctx, geo.NewCoordinate(0, 0), geo.NewCoordinate(0, 2))
	assert.ErrorIs(t, err, ErrSearchTimeout)

	r = newTestRouter(t, lineNetwork(nil), Options{MaxSettled: 1})
	_, err = r.ShortestPath(context.Background(), geo.NewCoordinate(0, 0), geo.NewCoordinate(0, 2))
	assert.ErrorIs(t, err, ErrSearchTimeout)
}

func TestAstarMatchesDijkstra(t *testing.T) {
	network := gridNetwork(6)
	astar := newTestRouter(t, network, Options{})
	dijkstra := newTestRouter(t, network, Options{DisableHeuristic: true})

	queries := [][2]geo.Coordinate{
		{geo.NewCoordinate(0, 0), geo.NewCoordinate(5, 5)},
		{geo.NewCoordinate(0.5, 0), geo.NewCoordinate(4, 2.5)},
		{geo.NewCoordinate(5, 0), geo.NewCoordinate(0, 5)},
		{geo.NewCoordinate(2.2, 3), geo.NewCoordinate(2.2, 3.9)},
	}
	for _, q := range queries {
		a, err := astar.ShortestPath(context.Background(), q[0], q[1])
		require.NoError(t, err)
		d, err := dijkstra.ShortestPath(context.Background(), q[0], q[1])
		require.NoError(t, err)

		assert.InDelta(t, d.Distance, a.Distance, 1e-9)
		assert.InDelta(t, a.Distance, pathLength(a.Path), 1e-9)
		assert.LessOrEqual(t, a.SettledNodes, d.SettledNodes)
	}
}

func TestShortestPathDeterministic(t *testing.T) {
	r := newTestRouter(t, gridNetwork(5), Options{})

	first, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 0), geo.NewCoordinate(4, 4))
	require.NoError(t, err)
	assert.InDelta(t, 8.0, first.Distance, 1e-9)

	for i := 0; i < 10; i++ {
		again, err := r.ShortestPath(context.Background(), geo.NewCoordinate(0, 0), geo.NewCoordinate(4, 4))
		require.NoError(t, err)
		assert.Equal(t, first.NodeIDs, again.NodeIDs)
		assert.Equal(t, first.Distance, again.Distance)
	}
}

func TestShortestPathStaleHeapEntry(t *testing.T) {
	r := newTestRouter(t, lineNetwork(nil), Options{DisableHeuristic: true})
	vA, ok := r.graph.VertexIndex(1)
	require.True(t, ok)
	vB, _ := r.graph.VertexIndex(2)
	vC, _ := r.graph.VertexIndex(3)

	o := newOverlay(r.graph,
		endpoint{vertex: vA, point: r.graph.Coordinate(vA)},
		endpoint{vertex: vC, point: r.graph.Coordinate(vC)})

	// B is labelled with a heap node that was never inserted
	st := newSearchState()
	st.info[vB] = NewVertexInfo(100, da.INVALID_VERTEX_ID, da.NewPriorityQueueNode(100.0, vB))

	_, _, _, err := r.shortestPath(context.Background(), o, st)
	assert.ErrorIs(t, err, da.ErrInvalidDecreaseKey)
}
