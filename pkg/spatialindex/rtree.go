package spatialindex

import (
	"math"
	"sort"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

// Snap is the closest point of one segment to a query coordinate.
type Snap struct {
	SegmentID datastructure.Index
	WayID     int64
	Offset    int
	Point     geo.Coordinate
	// Fraction is the position of Point along the segment, 0 at From and 1 at To.
	Fraction float64
	Distance float64
}

type Rtree struct {
	tr     *rtree.RTreeG[datastructure.Index]
	graph  *datastructure.Graph
	metric geo.Metric
}

func NewRtree(metric geo.Metric) *Rtree {
	var tr rtree.RTreeG[datastructure.Index]
	return &Rtree{
		tr:     &tr,
		metric: metric,
	}
}

// Build inserts the bounding box of every graph segment.
func (rt *Rtree) Build(graph *datastructure.Graph, log *zap.Logger) {
	log.Info("Building R-tree spatial index...", zap.Int("segments", graph.NumberOfSegments()))
	rt.graph = graph

	segments := graph.Segments()
	for i := range segments {
		from := graph.Coordinate(segments[i].From)
		to := graph.Coordinate(segments[i].To)

		rt.tr.Insert(
			[2]float64{math.Min(from.Lon, to.Lon), math.Min(from.Lat, to.Lat)},
			[2]float64{math.Max(from.Lon, to.Lon), math.Max(from.Lat, to.Lat)},
			datastructure.Index(i))
	}

	log.Info("R-tree spatial index built.")
}

func (rt *Rtree) Len() int {
	return rt.tr.Len()
}

// SearchWithinRadius returns every segment whose closest point lies within radius of q,
// ordered by distance, then way id, then position in the way.
func (rt *Rtree) SearchWithinRadius(q geo.Coordinate, radius float64) []Snap {
	if rt.graph == nil {
		return nil
	}
	min, max := rt.metric.BoundingBox(q, radius)

	results := make([]Snap, 0, 10)
	rt.tr.Search(min, max, func(_, _ [2]float64, segID datastructure.Index) bool {
		seg := rt.graph.Segment(segID)
		point, fraction := rt.metric.Project(rt.graph.Coordinate(seg.From), rt.graph.Coordinate(seg.To), q)
		dist := rt.metric.Distance(q, point)
		if dist <= radius {
			results = append(results, Snap{
				SegmentID: segID,
				WayID:     seg.WayID,
				Offset:    seg.Offset,
				Point:     point,
				Fraction:  fraction,
				Distance:  dist,
			})
		}
		return true
	})

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if !datastructure.Eq(a.Distance, b.Distance) {
			return a.Distance < b.Distance
		}
		if a.WayID != b.WayID {
			return a.WayID < b.WayID
		}
		return a.Offset < b.Offset
	})
	return results
}

// Nearest returns the closest segment point within radius of q. Ties go to the lowest way id.
func (rt *Rtree) Nearest(q geo.Coordinate, radius float64) (Snap, bool) {
	candidates := rt.SearchWithinRadius(q, radius)
	if len(candidates) == 0 {
		return Snap{}, false
	}
	return candidates[0], true
}
