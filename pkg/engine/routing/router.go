package routing

import (
	"context"
	"fmt"
	"sync"

	da "github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/lintang-b-s/navigatorx-pg/pkg/spatialindex"
)

type Options struct {
	// SearchRadius bounds the snap distance of both endpoints, in the metric unit.
	SearchRadius float64
	// MaxSettled bounds the number of vertices one search may settle. Zero disables the bound.
	MaxSettled       int
	DisableHeuristic bool
}

// Route is a shortest path between two snapped coordinates.
type Route struct {
	Distance float64
	// NodeIDs are the OSM nodes passed through, in travel order.
	NodeIDs []int64
	// Path starts at the snapped origin, follows the nodes and ends at the snapped destination.
	Path         []geo.Coordinate
	SnapStart    spatialindex.Snap
	SnapEnd      spatialindex.Snap
	SettledNodes int
}

// Router answers shortest path queries over one immutable graph. It is safe for concurrent use.
type Router struct {
	graph  *da.Graph
	rtree  *spatialindex.Rtree
	metric geo.Metric
	opts   Options
	pool   sync.Pool
}

func NewRouter(graph *da.Graph, rtree *spatialindex.Rtree, metric geo.Metric, opts Options) *Router {
	return &Router{
		graph:  graph,
		rtree:  rtree,
		metric: metric,
		opts:   opts,
		pool: sync.Pool{
			New: func() any {
				return newSearchState()
			},
		},
	}
}

// Snap finds the closest segment point to c within the search radius.
func (r *Router) Snap(c geo.Coordinate) (spatialindex.Snap, error) {
	if !c.Valid() {
		return spatialindex.Snap{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	snap, ok := r.rtree.Nearest(c, r.opts.SearchRadius)
	if !ok {
		return spatialindex.Snap{}, fmt.Errorf("%w: (%v, %v)", ErrNoRoadNearby, c.Lat, c.Lon)
	}
	return snap, nil
}

func (r *Router) resolve(snap spatialindex.Snap, virtual da.Index) endpoint {
	seg := r.graph.Segment(snap.SegmentID)
	offset := snap.Fraction * seg.Length
	switch {
	case da.Le(offset, 0):
		return endpoint{vertex: seg.From, point: r.graph.Coordinate(seg.From)}
	case da.Le(seg.Length-offset, 0):
		return endpoint{vertex: seg.To, point: r.graph.Coordinate(seg.To)}
	}
	return endpoint{
		vertex:  virtual,
		virtual: true,
		point:   snap.Point,
		segment: snap.SegmentID,
		offset:  offset,
	}
}

// ShortestPath snaps start and end onto the graph and returns the shortest route between the
// snapped points. A start and end that snap to the same point give a zero length route. Two snaps
// on one segment that may be travelled from start to end are answered without a graph search.
func (r *Router) ShortestPath(ctx context.Context, start, end geo.Coordinate) (*Route, error) {
	snapStart, err := r.Snap(start)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	snapEnd, err := r.Snap(end)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	n := da.Index(r.graph.NumberOfVertices())
	src := r.resolve(snapStart, n)
	dst := r.resolve(snapEnd, n+1)

	route := &Route{SnapStart: snapStart, SnapEnd: snapEnd}

	if !src.virtual && !dst.virtual && src.vertex == dst.vertex {
		route.NodeIDs = []int64{r.graph.NodeID(src.vertex)}
		route.Path = []geo.Coordinate{src.point}
		return route, nil
	}

	if d, ok := inSegment(r.graph, src, dst); ok {
		route.Distance = d
		route.NodeIDs = []int64{}
		route.Path = []geo.Coordinate{src.point}
		if dst.point != src.point {
			route.Path = append(route.Path, dst.point)
		}
		return route, nil
	}

	o := newOverlay(r.graph, src, dst)

	st := r.pool.Get().(*searchState)
	defer func() {
		st.reset()
		r.pool.Put(st)
	}()

	dist, vertices, settled, err := r.shortestPath(ctx, o, st)
	route.SettledNodes = settled
	if err != nil {
		return nil, err
	}

	route.Distance = dist
	route.NodeIDs = make([]int64, 0, len(vertices))
	route.Path = make([]geo.Coordinate, 0, len(vertices))
	for _, v := range vertices {
		if !o.isVirtual(v) {
			route.NodeIDs = append(route.NodeIDs, r.graph.NodeID(v))
		}
		c := o.coordinate(v)
		if len(route.Path) > 0 && route.Path[len(route.Path)-1] == c {
			continue
		}
		route.Path = append(route.Path, c)
	}
	return route, nil
}
