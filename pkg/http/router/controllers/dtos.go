package controllers

import (
	"time"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine/routing"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
)

type shortestPathRequest struct {
	OriginLat      float64 `json:"origin_lat" validate:"min=-90,max=90"`
	OriginLon      float64 `json:"origin_lon" validate:"min=-180,max=180"`
	DestinationLat float64 `json:"destination_lat" validate:"min=-90,max=90"`
	DestinationLon float64 `json:"destination_lon" validate:"min=-180,max=180"`
}

type latLng struct {
	Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lng *float64 `json:"lng" validate:"required,min=-180,max=180"`
}

type routeRequest struct {
	Start *latLng `json:"start" validate:"required"`
	End   *latLng `json:"end" validate:"required"`
}

type pathPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func NewPathPoints(route *routing.Route) []pathPoint {
	points := make([]pathPoint, 0, len(route.Path))
	for _, c := range route.Path {
		points = append(points, pathPoint{Lat: c.Lat, Lng: c.Lon})
	}
	return points
}

type snapResponse struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	WayID    int64   `json:"way_id"`
	Distance float64 `json:"distance"`
}

type shortestPathResponse struct {
	Distance          float64          `json:"distance"`
	Path              string           `json:"path"`
	Coordinates       []geo.Coordinate `json:"coordinates"`
	NodeIDs           []int64          `json:"node_ids"`
	SnapDistanceStart float64          `json:"snap_distance_start"`
	SnapDistanceEnd   float64          `json:"snap_distance_end"`
	SnapStart         snapResponse     `json:"snap_start"`
	SnapEnd           snapResponse     `json:"snap_end"`
	SettledNodes      int              `json:"settled_nodes"`
	SnapshotVersion   uint64           `json:"snapshot_version"`
}

func NewShortestPathResponse(route *routing.Route, version uint64) shortestPathResponse {
	return shortestPathResponse{
		Distance:          route.Distance,
		Path:              geo.CreatePolyline(route.Path),
		Coordinates:       route.Path,
		NodeIDs:           route.NodeIDs,
		SnapDistanceStart: route.SnapStart.Distance,
		SnapDistanceEnd:   route.SnapEnd.Distance,
		SnapStart: snapResponse{
			Lat:      route.SnapStart.Point.Lat,
			Lon:      route.SnapStart.Point.Lon,
			WayID:    route.SnapStart.WayID,
			Distance: route.SnapStart.Distance,
		},
		SnapEnd: snapResponse{
			Lat:      route.SnapEnd.Point.Lat,
			Lon:      route.SnapEnd.Point.Lon,
			WayID:    route.SnapEnd.WayID,
			Distance: route.SnapEnd.Distance,
		},
		SettledNodes:    route.SettledNodes,
		SnapshotVersion: version,
	}
}

type neighborResponse struct {
	NodeID int64   `json:"node_id"`
	Weight float64 `json:"weight"`
}

type neighborsResponse struct {
	NodeID    int64              `json:"node_id"`
	Neighbors []neighborResponse `json:"neighbors"`
}

func NewNeighborsResponse(nodeID int64, neighbors []datastructure.Neighbor) neighborsResponse {
	resp := neighborsResponse{
		NodeID:    nodeID,
		Neighbors: make([]neighborResponse, 0, len(neighbors)),
	}
	for _, n := range neighbors {
		resp.Neighbors = append(resp.Neighbors, neighborResponse{NodeID: n.NodeID, Weight: n.Weight})
	}
	return resp
}

type buildReportResponse struct {
	Ways     int            `json:"ways"`
	Accepted int            `json:"accepted"`
	Filtered int            `json:"filtered"`
	Uncached int            `json:"uncached"`
	Rejected map[string]int `json:"rejected"`
}

type snapshotResponse struct {
	Version         uint64              `json:"version"`
	Source          string              `json:"source"`
	BuiltAt         time.Time           `json:"built_at"`
	BuildDurationMs int64               `json:"build_duration_ms"`
	Vertices        int                 `json:"vertices"`
	Edges           int                 `json:"edges"`
	Segments        int                 `json:"segments"`
	Report          buildReportResponse `json:"report"`
}

func NewSnapshotResponse(snap *engine.Snapshot) *snapshotResponse {
	if snap == nil {
		return nil
	}
	report := buildReportResponse{
		Ways:     snap.Report.Ways,
		Accepted: snap.Report.Accepted,
		Filtered: snap.Report.Filtered,
		Uncached: snap.Report.Uncached,
		Rejected: make(map[string]int, len(snap.Report.Rejected)),
	}
	for reason, n := range snap.Report.Rejected {
		report.Rejected[string(reason)] = n
	}
	g := snap.Graph()
	return &snapshotResponse{
		Version:         snap.Version,
		Source:          snap.Source,
		BuiltAt:         snap.BuiltAt,
		BuildDurationMs: snap.BuildDuration.Milliseconds(),
		Vertices:        g.NumberOfVertices(),
		Edges:           g.NumberOfEdges(),
		Segments:        g.NumberOfSegments(),
		Report:          report,
	}
}

type statusResponse struct {
	Ready       bool              `json:"ready"`
	Snapshot    *snapshotResponse `json:"snapshot"`
	LastAttempt *time.Time        `json:"last_attempt,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
