package routing

import (
	"context"
	"fmt"

	da "github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/lintang-b-s/navigatorx-pg/pkg/util"
)

const ctxCheckInterval = 256

// overlay is the graph plus the virtual endpoints of one query. Virtual vertices are numbered
// n (source) and n+1 (target) so they never collide with graph vertices.
type overlay struct {
	graph       *da.Graph
	source      da.Index
	target      da.Index
	sourcePoint geo.Coordinate
	targetPoint geo.Coordinate
	sourceArcs  []arc
	targetArcs  map[da.Index][]arc
}

func (o *overlay) virtualSource() da.Index {
	return da.Index(o.graph.NumberOfVertices())
}

func (o *overlay) virtualTarget() da.Index {
	return da.Index(o.graph.NumberOfVertices() + 1)
}

func (o *overlay) isVirtual(v da.Index) bool {
	return v >= da.Index(o.graph.NumberOfVertices())
}

func (o *overlay) coordinate(v da.Index) geo.Coordinate {
	switch v {
	case o.virtualSource():
		return o.sourcePoint
	case o.virtualTarget():
		return o.targetPoint
	default:
		return o.graph.Coordinate(v)
	}
}

func (o *overlay) forOutArcs(u da.Index, handle func(a arc)) {
	switch u {
	case o.virtualSource():
		for _, a := range o.sourceArcs {
			handle(a)
		}
		return
	case o.virtualTarget():
		return
	}
	o.graph.ForOutEdgesOf(u, func(e *da.OutEdge) {
		handle(arc{head: e.GetHead(), weight: e.GetWeight()})
	})
	for _, a := range o.targetArcs[u] {
		handle(a)
	}
}

// endpoint is a snapped query coordinate. It is a graph vertex when the snap lies on one,
// otherwise a virtual vertex splitting its segment.
type endpoint struct {
	vertex  da.Index
	virtual bool
	point   geo.Coordinate
	segment da.Index
	offset  float64
}

func newOverlay(graph *da.Graph, src, dst endpoint) *overlay {
	o := &overlay{
		graph:       graph,
		source:      src.vertex,
		target:      dst.vertex,
		sourcePoint: src.point,
		targetPoint: dst.point,
		targetArcs:  make(map[da.Index][]arc, 2),
	}

	if src.virtual {
		seg := graph.Segment(src.segment)
		if seg.Backward {
			o.sourceArcs = append(o.sourceArcs, arc{head: seg.From, weight: src.offset})
		}
		if seg.Forward {
			o.sourceArcs = append(o.sourceArcs, arc{head: seg.To, weight: seg.Length - src.offset})
		}
	}

	if dst.virtual {
		seg := graph.Segment(dst.segment)
		if seg.Forward {
			o.targetArcs[seg.From] = append(o.targetArcs[seg.From], arc{head: dst.vertex, weight: dst.offset})
		}
		if seg.Backward {
			o.targetArcs[seg.To] = append(o.targetArcs[seg.To], arc{head: dst.vertex, weight: seg.Length - dst.offset})
		}
	}
	return o
}

// inSegment returns the along-segment distance between two virtual endpoints on the same segment,
// or false when they lie on different segments or the segment may not be travelled that way.
func inSegment(graph *da.Graph, src, dst endpoint) (float64, bool) {
	if !src.virtual || !dst.virtual || src.segment != dst.segment {
		return 0, false
	}
	seg := graph.Segment(src.segment)
	switch {
	case dst.offset >= src.offset && seg.Forward:
		return dst.offset - src.offset, true
	case dst.offset <= src.offset && seg.Backward:
		return src.offset - dst.offset, true
	}
	return 0, false
}

// shortestPath runs A* from o.source to o.target. With useHeuristic false it is plain Dijkstra.
// The heuristic is the metric distance to the target point, which never exceeds the remaining
// path length because every arc weight is a metric distance too.
func (r *Router) shortestPath(ctx context.Context, o *overlay, st *searchState) (float64, []da.Index, int, error) {
	h := func(v da.Index) float64 {
		if r.opts.DisableHeuristic {
			return 0
		}
		return r.metric.Distance(o.coordinate(v), o.targetPoint)
	}

	sNode := da.NewPriorityQueueNode(h(o.source), o.source)
	st.pq.Insert(sNode)
	st.info[o.source] = NewVertexInfo(0, da.INVALID_VERTEX_ID, sNode)

	settled := 0
	for !st.pq.IsEmpty() {
		if settled%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, nil, settled, fmt.Errorf("%w: %v", ErrSearchTimeout, err)
			}
		}

		item, _ := st.pq.ExtractMin()
		u := item.GetItem()
		uInfo := st.info[u]
		uInfo.scanned = true
		uInfo.heapNode = nil
		settled++

		if u == o.target {
			return uInfo.dist, st.path(o.target), settled, nil
		}
		if r.opts.MaxSettled > 0 && settled >= r.opts.MaxSettled {
			return 0, nil, settled, fmt.Errorf("%w: settled %d vertices", ErrSearchTimeout, settled)
		}

		var relaxErr error
		o.forOutArcs(u, func(a arc) {
			if relaxErr != nil {
				return
			}
			newDist := uInfo.dist + a.weight

			vInfo, labelled := st.info[a.head]
			if labelled && (vInfo.scanned || !da.Lt(newDist, vInfo.dist)) {
				return
			}

			if labelled {
				vInfo.dist = newDist
				vInfo.parent = u
				if err := st.pq.DecreaseKey(vInfo.heapNode, newDist+h(a.head)); err != nil {
					relaxErr = fmt.Errorf("relax vertex %d: %w", a.head, err)
				}
				return
			}

			vNode := da.NewPriorityQueueNode(newDist+h(a.head), a.head)
			st.pq.Insert(vNode)
			st.info[a.head] = NewVertexInfo(newDist, u, vNode)
		})
		if relaxErr != nil {
			return 0, nil, settled, relaxErr
		}
	}

	return 0, nil, settled, ErrUnreachable
}

func (st *searchState) path(target da.Index) []da.Index {
	path := make([]da.Index, 0, 64)
	for v := target; v != da.INVALID_VERTEX_ID; v = st.info[v].parent {
		path = append(path, v)
	}
	return util.ReverseG(path)
}
