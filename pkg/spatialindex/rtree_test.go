package spatialindex

import (
	"testing"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// two parallel ways one unit apart plus a short spur:
//
//	way 7:  (1,0) -- (1,4)
//	way 3:  (-1,0) -- (-1,4)
//	way 9:  (1,4) -- (2,4)
func buildIndex(t *testing.T) (*Rtree, *datastructure.Graph) {
	t.Helper()
	network := &datastructure.Network{
		Nodes: []datastructure.Node{
			datastructure.NewNode(1, 1, 0),
			datastructure.NewNode(2, 1, 4),
			datastructure.NewNode(3, -1, 0),
			datastructure.NewNode(4, -1, 4),
			datastructure.NewNode(5, 2, 4),
		},
		Ways: []datastructure.Way{
			datastructure.NewWay(7, []int64{1, 2}, nil),
			datastructure.NewWay(3, []int64{3, 4}, nil),
			datastructure.NewWay(9, []int64{2, 5}, nil),
		},
	}
	idx, err := datastructure.BuildEdgeIndex(network, datastructure.EdgeIndexOptions{Metric: geo.Planar{}})
	require.NoError(t, err)
	g := datastructure.NewGraph(idx)

	rt := NewRtree(geo.Planar{})
	rt.Build(g, zap.NewNop())
	return rt, g
}

func TestNearest(t *testing.T) {
	rt, _ := buildIndex(t)
	assert.Equal(t, 3, rt.Len())

	snap, ok := rt.Nearest(geo.NewCoordinate(0.8, 1), 5)
	require.True(t, ok)
	assert.Equal(t, int64(7), snap.WayID)
	assert.InDelta(t, 0.2, snap.Distance, 1e-9)
	assert.InDelta(t, 0.25, snap.Fraction, 1e-9)
	assert.InDelta(t, 1.0, snap.Point.Lat, 1e-9)
	assert.InDelta(t, 1.0, snap.Point.Lon, 1e-9)
}

func TestNearestTieLowestWayID(t *testing.T) {
	rt, _ := buildIndex(t)

	snap, ok := rt.Nearest(geo.NewCoordinate(0, 2), 5)
	require.True(t, ok)
	assert.Equal(t, int64(3), snap.WayID)
	assert.InDelta(t, 1.0, snap.Distance, 1e-9)
}

func TestNearestSharedVertex(t *testing.T) {
	rt, _ := buildIndex(t)

	// (1,5) is closest to node 2 which both way 7 and way 9 touch
	snap, ok := rt.Nearest(geo.NewCoordinate(1, 5), 5)
	require.True(t, ok)
	assert.Equal(t, int64(7), snap.WayID)
	assert.InDelta(t, 1.0, snap.Fraction, 1e-9)
}

func TestNearestOutsideRadius(t *testing.T) {
	rt, _ := buildIndex(t)

	_, ok := rt.Nearest(geo.NewCoordinate(10, 10), 1)
	assert.False(t, ok)

	snaps := rt.SearchWithinRadius(geo.NewCoordinate(0, 2), 1.5)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(3), snaps[0].WayID)
	assert.Equal(t, int64(7), snaps[1].WayID)
}

func TestNearestEmpty(t *testing.T) {
	rt := NewRtree(geo.Planar{})
	_, ok := rt.Nearest(geo.NewCoordinate(0, 0), 100)
	assert.False(t, ok)
}
