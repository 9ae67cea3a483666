package geo

import (
	"fmt"
	"math"

	"github.com/lintang-b-s/navigatorx-pg/pkg/util"
)

// Metric measures distances and projects points onto segments. Every arc weight in the graph
// and the A* heuristic come from the same Metric, which keeps the heuristic admissible.
type Metric interface {
	Name() string
	// Distance between a and b in the metric unit.
	Distance(a, b Coordinate) float64
	// Project returns the point of segment (a, b) closest to p and its position along the
	// segment as a fraction in [0, 1].
	Project(a, b, p Coordinate) (Coordinate, float64)
	// BoundingBox returns a [lon, lat] box containing every point within radius of c.
	BoundingBox(c Coordinate, radius float64) (min, max [2]float64)
}

func NewMetric(name string) (Metric, error) {
	switch name {
	case "haversine":
		return Haversine{}, nil
	case "planar":
		return Planar{}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", name)
	}
}

// Haversine measures great-circle distance in meter.
type Haversine struct{}

func (Haversine) Name() string { return "haversine" }

func (Haversine) Distance(a, b Coordinate) float64 {
	return CalculateHaversineDistance(a.Lat, a.Lon, b.Lat, b.Lon) * 1000
}

func (h Haversine) Project(a, b, p Coordinate) (Coordinate, float64) {
	proj := ProjectPointToLineCoord(a, b, p)
	segLen := h.Distance(a, b)
	if segLen == 0 {
		return a, 0
	}
	return proj, clamp01(h.Distance(a, proj) / segLen)
}

func (Haversine) BoundingBox(c Coordinate, radius float64) ([2]float64, [2]float64) {
	km := radius / 1000
	dr := km / earthRadiusKM
	drDeg := util.RadiansToDegree(dr)

	north, _ := GetDestinationPoint(c.Lat, c.Lon, 0, km)
	south, _ := GetDestinationPoint(c.Lat, c.Lon, 180, km)
	if c.Lat+drDeg >= 90 {
		north = 90
	}
	if c.Lat-drDeg <= -90 {
		south = -90
	}

	cosLat := math.Cos(util.DegreeToRadians(c.Lat))
	if north == 90 || south == -90 || math.Sin(dr) >= cosLat {
		return [2]float64{-180, south}, [2]float64{180, north}
	}

	// the circle touches its widest longitude at the tangent points, north of due east/west
	dLon := util.RadiansToDegree(math.Asin(math.Sin(dr) / cosLat))
	west, east := c.Lon-dLon, c.Lon+dLon
	if west < -180 || east > 180 {
		west, east = -180, 180
	}
	return [2]float64{west, south}, [2]float64{east, north}
}

// Planar treats lat/lon as cartesian y/x in abstract units. Used for synthetic networks and tests.
type Planar struct{}

func (Planar) Name() string { return "planar" }

func (Planar) Distance(a, b Coordinate) float64 {
	return math.Hypot(b.Lon-a.Lon, b.Lat-a.Lat)
}

func (Planar) Project(a, b, p Coordinate) (Coordinate, float64) {
	dx, dy := b.Lon-a.Lon, b.Lat-a.Lat
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a, 0
	}
	t := clamp01(((p.Lon-a.Lon)*dx + (p.Lat-a.Lat)*dy) / l2)
	return NewCoordinate(a.Lat+t*dy, a.Lon+t*dx), t
}

func (Planar) BoundingBox(c Coordinate, radius float64) ([2]float64, [2]float64) {
	return [2]float64{c.Lon - radius, c.Lat - radius}, [2]float64{c.Lon + radius, c.Lat + radius}
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
