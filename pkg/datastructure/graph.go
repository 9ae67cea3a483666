package datastructure

import (
	"sort"

	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
)

// Segment is the piece of a way between two consecutive distinct nodes.
type Segment struct {
	WayID    int64
	Offset   int
	From     Index
	To       Index
	Length   float64
	Forward  bool
	Backward bool
}

type OutEdge struct {
	head    Index
	weight  float64
	segment Index
}

func (e *OutEdge) GetHead() Index {
	return e.head
}

func (e *OutEdge) GetWeight() float64 {
	return e.weight
}

type Neighbor struct {
	NodeID int64
	Weight float64
}

// Graph is a compressed sparse row adjacency over the accepted ways. Vertices are numbered by
// ascending OSM node id, and the out edges of a vertex are ordered by (head, weight, segment).
type Graph struct {
	nodeIDs  []int64
	coords   []geo.Coordinate
	vertexOf map[int64]Index
	firstOut []Index
	outEdges []OutEdge
	segments []Segment
}

// NewGraph builds the adjacency from an edge index. Every traversable direction of a segment
// becomes one out edge weighted by the segment length.
func NewGraph(idx *EdgeIndex) *Graph {
	ways := idx.Ways()

	nodeSet := make(map[int64]struct{})
	nSegments := 0
	for i := range ways {
		for _, nodeID := range ways[i].NodeIDs {
			nodeSet[nodeID] = struct{}{}
		}
		nSegments += len(ways[i].SegmentLengths)
	}

	nodeIDs := make([]int64, 0, len(nodeSet))
	for nodeID := range nodeSet {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	g := &Graph{
		nodeIDs:  nodeIDs,
		coords:   make([]geo.Coordinate, len(nodeIDs)),
		vertexOf: make(map[int64]Index, len(nodeIDs)),
		firstOut: make([]Index, len(nodeIDs)+1),
		segments: make([]Segment, 0, nSegments),
	}
	for v, nodeID := range nodeIDs {
		g.vertexOf[nodeID] = Index(v)
		g.coords[v], _ = idx.Coordinate(nodeID)
	}

	type arc struct {
		tail Index
		OutEdge
	}
	arcs := make([]arc, 0, 2*nSegments)
	for i := range ways {
		w := &ways[i]
		for k, length := range w.SegmentLengths {
			from, to := g.vertexOf[w.NodeIDs[k]], g.vertexOf[w.NodeIDs[k+1]]
			segID := Index(len(g.segments))
			g.segments = append(g.segments, Segment{
				WayID:    w.WayID,
				Offset:   k,
				From:     from,
				To:       to,
				Length:   length,
				Forward:  w.Forward,
				Backward: w.Backward,
			})
			if w.Forward {
				arcs = append(arcs, arc{tail: from, OutEdge: OutEdge{head: to, weight: length, segment: segID}})
			}
			if w.Backward {
				arcs = append(arcs, arc{tail: to, OutEdge: OutEdge{head: from, weight: length, segment: segID}})
			}
		}
	}

	sort.Slice(arcs, func(i, j int) bool {
		a, b := arcs[i], arcs[j]
		if a.tail != b.tail {
			return a.tail < b.tail
		}
		if a.head != b.head {
			return a.head < b.head
		}
		if a.weight != b.weight {
			return a.weight < b.weight
		}
		return a.segment < b.segment
	})

	g.outEdges = make([]OutEdge, len(arcs))
	for i, a := range arcs {
		g.outEdges[i] = a.OutEdge
		g.firstOut[a.tail+1]++
	}
	for v := 0; v < len(nodeIDs); v++ {
		g.firstOut[v+1] += g.firstOut[v]
	}
	return g
}

func (g *Graph) NumberOfVertices() int {
	return len(g.nodeIDs)
}

func (g *Graph) NumberOfEdges() int {
	return len(g.outEdges)
}

func (g *Graph) NumberOfSegments() int {
	return len(g.segments)
}

func (g *Graph) VertexIndex(nodeID int64) (Index, bool) {
	v, ok := g.vertexOf[nodeID]
	return v, ok
}

func (g *Graph) NodeID(v Index) int64 {
	return g.nodeIDs[v]
}

func (g *Graph) Coordinate(v Index) geo.Coordinate {
	return g.coords[v]
}

func (g *Graph) Segment(id Index) *Segment {
	return &g.segments[id]
}

func (g *Graph) Segments() []Segment {
	return g.segments
}

func (g *Graph) OutDegree(v Index) int {
	return int(g.firstOut[v+1] - g.firstOut[v])
}

func (g *Graph) ForOutEdgesOf(v Index, handle func(e *OutEdge)) {
	for i := g.firstOut[v]; i < g.firstOut[v+1]; i++ {
		handle(&g.outEdges[i])
	}
}

// Neighbors returns the (neighbor, weight) pairs reachable in one step from nodeID.
func (g *Graph) Neighbors(nodeID int64) ([]Neighbor, bool) {
	v, ok := g.vertexOf[nodeID]
	if !ok {
		return nil, false
	}
	out := make([]Neighbor, 0, g.OutDegree(v))
	g.ForOutEdgesOf(v, func(e *OutEdge) {
		out = append(out, Neighbor{NodeID: g.nodeIDs[e.head], Weight: e.weight})
	})
	return out, true
}

// Equal reports whether both graphs have the same vertices, segments and out edges.
func (g *Graph) Equal(other *Graph) bool {
	if g.NumberOfVertices() != other.NumberOfVertices() ||
		g.NumberOfEdges() != other.NumberOfEdges() ||
		g.NumberOfSegments() != other.NumberOfSegments() {
		return false
	}
	for v := range g.nodeIDs {
		if g.nodeIDs[v] != other.nodeIDs[v] || g.coords[v] != other.coords[v] || g.firstOut[v+1] != other.firstOut[v+1] {
			return false
		}
	}
	for i := range g.outEdges {
		a, b := g.outEdges[i], other.outEdges[i]
		if a.head != b.head || a.segment != b.segment || !Eq(a.weight, b.weight) {
			return false
		}
	}
	for i := range g.segments {
		a, b := g.segments[i], other.segments[i]
		if a.WayID != b.WayID || a.Offset != b.Offset || a.From != b.From || a.To != b.To ||
			a.Forward != b.Forward || a.Backward != b.Backward || !Eq(a.Length, b.Length) {
			return false
		}
	}
	return true
}
