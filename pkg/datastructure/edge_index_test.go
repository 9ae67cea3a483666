package datastructure

import (
	"testing"

	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onewayFilter struct{}

func (onewayFilter) Accept(tags map[string]string) bool {
	return tags["highway"] != ""
}

func (onewayFilter) Direction(tags map[string]string) (bool, bool) {
	return true, tags["oneway"] != "yes"
}

func lineNetwork() *Network {
	return &Network{
		Nodes: []Node{
			NewNode(1, 0, 0),
			NewNode(2, 0, 1),
			NewNode(3, 0, 2),
		},
		Ways: []Way{
			NewWay(10, []int64{1, 2, 3}, map[string]string{"highway": "residential"}),
		},
	}
}

func planarOptions() EdgeIndexOptions {
	return EdgeIndexOptions{
		Metric:     geo.Planar{},
		StaleAbs:   1e-6,
		StaleRel:   0.01,
		Workers:    2,
		MaxSamples: 10,
	}
}

func TestBuildEdgeIndex(t *testing.T) {
	network := lineNetwork()
	network.Edges = []EdgeRecord{NewEdgeRecord(10, 2, 1, 3)}

	idx, err := BuildEdgeIndex(network, planarOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, idx.Len())
	w, ok := idx.Way(10)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, w.NodeIDs)
	assert.InDelta(t, 2.0, w.Length, 1e-9)
	assert.True(t, w.Cached)
	assert.Equal(t, int64(1), w.FirstNode())
	assert.Equal(t, int64(3), w.LastNode())

	byStart := idx.LookupByEndpoint(1)
	require.Len(t, byStart, 1)
	assert.Equal(t, int64(10), byStart[0].WayID)
	assert.Len(t, idx.LookupByEndpoint(3), 1)
	assert.Empty(t, idx.LookupByEndpoint(2))

	report := idx.Report()
	assert.Equal(t, 1, report.Ways)
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 0, report.Uncached)
	assert.Equal(t, 0, report.TotalRejected())
}

func TestBuildEdgeIndexRejections(t *testing.T) {
	network := &Network{
		Nodes: []Node{
			NewNode(1, 0, 0),
			NewNode(2, 0, 1),
			NewNode(3, 0, 2),
			NewNode(4, 0, 3),
		},
		Ways: []Way{
			NewWay(20, []int64{1, 1}, nil),
			NewWay(21, []int64{1, 99}, nil),
			NewWay(22, []int64{1, 2}, nil),
			NewWay(23, []int64{2, 3}, nil),
			NewWay(24, []int64{3, 4}, nil),
			NewWay(25, []int64{1, 2, 2, 3}, nil),
		},
		Edges: []EdgeRecord{
			NewEdgeRecord(22, 1, 2, 1),
			NewEdgeRecord(23, 5, 2, 3),
			NewEdgeRecord(24, 1.000001, 3, 4),
		},
	}

	idx, err := BuildEdgeIndex(network, planarOptions())
	require.NoError(t, err)

	report := idx.Report()
	assert.Equal(t, 1, report.Rejected[RejectDegenerate])
	assert.Equal(t, 1, report.Rejected[RejectMissingNode])
	assert.Equal(t, 1, report.Rejected[RejectEndpointMismatch])
	assert.Equal(t, 1, report.Rejected[RejectStaleLength])
	assert.Equal(t, 4, report.TotalRejected())
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 1, report.Uncached)

	require.Len(t, report.Samples, 4)
	assert.Equal(t, int64(20), report.Samples[0].WayID)
	assert.Equal(t, int64(23), report.Samples[3].WayID)

	_, ok := idx.Way(23)
	assert.False(t, ok)

	w, ok := idx.Way(25)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, w.NodeIDs)
	assert.Len(t, w.SegmentLengths, 2)
}

func TestBuildEdgeIndexFilter(t *testing.T) {
	network := lineNetwork()
	network.Ways = append(network.Ways,
		NewWay(11, []int64{3, 1}, map[string]string{"building": "yes"}),
		NewWay(12, []int64{3, 2}, map[string]string{"highway": "cycleway", "oneway": "yes"}),
	)

	opts := planarOptions()
	opts.Filter = onewayFilter{}
	idx, err := BuildEdgeIndex(network, opts)
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 1, idx.Report().Filtered)

	w, ok := idx.Way(12)
	require.True(t, ok)
	assert.True(t, w.Forward)
	assert.False(t, w.Backward)
}

func TestBuildEdgeIndexOrderIndependent(t *testing.T) {
	a := &Network{
		Nodes: []Node{NewNode(1, 0, 0), NewNode(2, 0, 1), NewNode(3, 1, 1)},
		Ways: []Way{
			NewWay(5, []int64{1, 2}, nil),
			NewWay(3, []int64{2, 3}, nil),
		},
	}
	b := &Network{
		Nodes: []Node{a.Nodes[2], a.Nodes[0], a.Nodes[1]},
		Ways:  []Way{a.Ways[1], a.Ways[0]},
	}

	idxA, err := BuildEdgeIndex(a, planarOptions())
	require.NoError(t, err)
	idxB, err := BuildEdgeIndex(b, planarOptions())
	require.NoError(t, err)

	assert.Equal(t, idxA.Ways(), idxB.Ways())
	assert.Equal(t, int64(3), idxA.Ways()[0].WayID)
	assert.True(t, NewGraph(idxA).Equal(NewGraph(idxB)))
}

func TestDerivedRecords(t *testing.T) {
	idx, err := BuildEdgeIndex(lineNetwork(), planarOptions())
	require.NoError(t, err)

	records := idx.DerivedRecords()
	require.Len(t, records, 1)
	assert.Equal(t, int64(10), records[0].WayID)
	assert.InDelta(t, 2.0, records[0].Length, 1e-9)
	assert.Equal(t, int64(1), records[0].FirstNode)
	assert.Equal(t, int64(3), records[0].LastNode)
}

func TestBuildEdgeIndexNilNetwork(t *testing.T) {
	_, err := BuildEdgeIndex(nil, planarOptions())
	assert.Error(t, err)
}
