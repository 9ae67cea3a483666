package datastructure

import (
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/lintang-b-s/navigatorx-pg/pkg/concurrent"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
)

type RejectReason string

const (
	RejectDegenerate       RejectReason = "degenerate"
	RejectMissingNode      RejectReason = "missing_node"
	RejectEndpointMismatch RejectReason = "endpoint_mismatch"
	RejectStaleLength      RejectReason = "stale_length"
	RejectDuplicateWay     RejectReason = "duplicate_way"
)

type Rejection struct {
	WayID  int64
	Reason RejectReason
	Detail string
}

// BuildReport summarizes one edge index build. Samples holds at most MaxSamples rejections, lowest way id first.
type BuildReport struct {
	Ways     int
	Accepted int
	Filtered int
	Uncached int
	Rejected map[RejectReason]int
	Samples  []Rejection
}

func (r BuildReport) TotalRejected() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// WayEdge is an accepted way. NodeIDs has consecutive duplicates removed and
// SegmentLengths[i] is the metric length between NodeIDs[i] and NodeIDs[i+1].
type WayEdge struct {
	WayID          int64
	NodeIDs        []int64
	SegmentLengths []float64
	Length         float64
	StoredLength   float64
	Cached         bool
	Forward        bool
	Backward       bool
}

func (w *WayEdge) FirstNode() int64 {
	return w.NodeIDs[0]
}

func (w *WayEdge) LastNode() int64 {
	return w.NodeIDs[len(w.NodeIDs)-1]
}

type EdgeIndexOptions struct {
	Metric geo.Metric
	// Filter is optional. A nil filter accepts every way in both directions.
	Filter     WayFilter
	StaleAbs   float64
	StaleRel   float64
	Workers    int
	MaxSamples int
}

// EdgeIndex holds the verified ways of one network, keyed by way id and by endpoint node id.
type EdgeIndex struct {
	ways       []WayEdge
	byWay      map[int64]int
	byEndpoint map[int64][]int
	coords     map[int64]geo.Coordinate
	report     BuildReport
}

type wayResult struct {
	pos       int
	edge      WayEdge
	filtered  bool
	rejection *Rejection
}

// BuildEdgeIndex checks every way of the network against its node coordinates and its derived
// length row, then keeps the ways that pass. The result does not depend on the order of the input.
func BuildEdgeIndex(network *Network, opts EdgeIndexOptions) (*EdgeIndex, error) {
	if network == nil {
		return nil, fmt.Errorf("build edge index: nil network")
	}
	if opts.Metric == nil {
		opts.Metric = geo.Haversine{}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	coords := make(map[int64]geo.Coordinate, len(network.Nodes))
	for _, n := range network.Nodes {
		coords[n.ID] = n.Coord
	}
	records := make(map[int64]EdgeRecord, len(network.Edges))
	for _, e := range network.Edges {
		records[e.WayID] = e
	}

	ways := make([]*Way, len(network.Ways))
	for i := range network.Ways {
		ways[i] = &network.Ways[i]
	}
	sort.SliceStable(ways, func(i, j int) bool {
		return ways[i].ID < ways[j].ID
	})

	report := BuildReport{
		Ways:     len(ways),
		Rejected: make(map[RejectReason]int),
	}

	jobs := make([]int, len(ways))
	for i := range jobs {
		jobs[i] = i
	}
	results := concurrent.Map(opts.Workers, jobs, func(pos int) wayResult {
		if pos > 0 && ways[pos-1].ID == ways[pos].ID {
			return wayResult{pos: pos, rejection: &Rejection{
				WayID: ways[pos].ID, Reason: RejectDuplicateWay, Detail: "way id appears more than once",
			}}
		}
		res := processWay(ways[pos], coords, records, opts)
		res.pos = pos
		return res
	})
	sort.Slice(results, func(i, j int) bool {
		return results[i].pos < results[j].pos
	})

	idx := &EdgeIndex{
		ways:       make([]WayEdge, 0, len(results)),
		byWay:      make(map[int64]int, len(results)),
		byEndpoint: make(map[int64][]int),
		coords:     make(map[int64]geo.Coordinate),
	}

	for _, res := range results {
		switch {
		case res.rejection != nil:
			report.Rejected[res.rejection.Reason]++
			if len(report.Samples) < opts.MaxSamples {
				report.Samples = append(report.Samples, *res.rejection)
			}
		case res.filtered:
			report.Filtered++
		default:
			report.Accepted++
			if !res.edge.Cached {
				report.Uncached++
			}
			pos := len(idx.ways)
			idx.ways = append(idx.ways, res.edge)
			idx.byWay[res.edge.WayID] = pos

			first, last := res.edge.FirstNode(), res.edge.LastNode()
			idx.byEndpoint[first] = append(idx.byEndpoint[first], pos)
			if last != first {
				idx.byEndpoint[last] = append(idx.byEndpoint[last], pos)
			}
			for _, nodeID := range res.edge.NodeIDs {
				idx.coords[nodeID] = coords[nodeID]
			}
		}
	}
	idx.report = report
	return idx, nil
}

func processWay(way *Way, coords map[int64]geo.Coordinate, records map[int64]EdgeRecord,
	opts EdgeIndexOptions) wayResult {
	reject := func(reason RejectReason, format string, args ...any) wayResult {
		return wayResult{rejection: &Rejection{WayID: way.ID, Reason: reason, Detail: fmt.Sprintf(format, args...)}}
	}

	forward, backward := true, true
	if opts.Filter != nil {
		if !opts.Filter.Accept(way.Tags) {
			return wayResult{filtered: true}
		}
		forward, backward = opts.Filter.Direction(way.Tags)
		if !forward && !backward {
			return wayResult{filtered: true}
		}
	}

	nodeIDs := make([]int64, 0, len(way.NodeIDs))
	for _, nodeID := range way.NodeIDs {
		if len(nodeIDs) > 0 && nodeIDs[len(nodeIDs)-1] == nodeID {
			continue
		}
		nodeIDs = append(nodeIDs, nodeID)
	}
	if len(nodeIDs) < 2 {
		return reject(RejectDegenerate, "way has %d distinct nodes", len(nodeIDs))
	}

	for _, nodeID := range nodeIDs {
		c, ok := coords[nodeID]
		if !ok {
			return reject(RejectMissingNode, "node %d not found", nodeID)
		}
		if !c.Valid() {
			return reject(RejectMissingNode, "node %d has invalid coordinate", nodeID)
		}
	}

	segLengths := make([]float64, len(nodeIDs)-1)
	total := 0.0
	for i := 0; i+1 < len(nodeIDs); i++ {
		segLengths[i] = opts.Metric.Distance(coords[nodeIDs[i]], coords[nodeIDs[i+1]])
		total += segLengths[i]
	}

	edge := WayEdge{
		WayID:          way.ID,
		NodeIDs:        nodeIDs,
		SegmentLengths: segLengths,
		Length:         total,
		Forward:        forward,
		Backward:       backward,
	}

	rec, ok := records[way.ID]
	if !ok {
		return wayResult{edge: edge}
	}
	if rec.FirstNode != nodeIDs[0] || rec.LastNode != nodeIDs[len(nodeIDs)-1] {
		return reject(RejectEndpointMismatch, "stored endpoints (%d, %d), way endpoints (%d, %d)",
			rec.FirstNode, rec.LastNode, nodeIDs[0], nodeIDs[len(nodeIDs)-1])
	}
	if math.Abs(rec.Length-total) > opts.StaleAbs+opts.StaleRel*total {
		return reject(RejectStaleLength, "stored length %.3f, computed length %.3f", rec.Length, total)
	}
	edge.StoredLength = rec.Length
	edge.Cached = true
	return wayResult{edge: edge}
}

// Len returns the number of accepted ways.
func (idx *EdgeIndex) Len() int {
	return len(idx.ways)
}

// Ways returns the accepted ways ordered by way id.
func (idx *EdgeIndex) Ways() []WayEdge {
	return idx.ways
}

func (idx *EdgeIndex) Way(wayID int64) (*WayEdge, bool) {
	pos, ok := idx.byWay[wayID]
	if !ok {
		return nil, false
	}
	return &idx.ways[pos], true
}

// LookupByEndpoint returns the accepted ways that start or end at nodeID, ordered by way id.
func (idx *EdgeIndex) LookupByEndpoint(nodeID int64) []*WayEdge {
	positions := idx.byEndpoint[nodeID]
	out := make([]*WayEdge, 0, len(positions))
	for _, pos := range positions {
		out = append(out, &idx.ways[pos])
	}
	return out
}

func (idx *EdgeIndex) Coordinate(nodeID int64) (geo.Coordinate, bool) {
	c, ok := idx.coords[nodeID]
	return c, ok
}

func (idx *EdgeIndex) Report() BuildReport {
	return idx.report
}

// DerivedRecords returns one length row per accepted way, as the materializer writes them.
func (idx *EdgeIndex) DerivedRecords() []EdgeRecord {
	out := make([]EdgeRecord, 0, len(idx.ways))
	for i := range idx.ways {
		w := &idx.ways[i]
		out = append(out, NewEdgeRecord(w.WayID, w.Length, w.FirstNode(), w.LastNode()))
	}
	return out
}
