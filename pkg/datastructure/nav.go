package datastructure

import (
	"math"

	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
)

type Index uint32

const INVALID_VERTEX_ID Index = math.MaxUint32

// Node is an OSM node as read from the backing store.
type Node struct {
	ID    int64
	Coord geo.Coordinate
}

// Way is an OSM way: an ordered node id sequence plus its tags.
type Way struct {
	ID      int64
	NodeIDs []int64
	Tags    map[string]string
}

// EdgeRecord is one row of the derived way length relation.
type EdgeRecord struct {
	WayID     int64
	Length    float64
	FirstNode int64
	LastNode  int64
}

// Network is everything a graph build reads from the backing store.
type Network struct {
	Nodes []Node
	Ways  []Way
	Edges []EdgeRecord
}

func NewNode(id int64, lat, lon float64) Node {
	return Node{ID: id, Coord: geo.NewCoordinate(lat, lon)}
}

func NewWay(id int64, nodeIDs []int64, tags map[string]string) Way {
	return Way{ID: id, NodeIDs: nodeIDs, Tags: tags}
}

func NewEdgeRecord(wayID int64, length float64, firstNode, lastNode int64) EdgeRecord {
	return EdgeRecord{WayID: wayID, Length: length, FirstNode: firstNode, LastNode: lastNode}
}

// WayFilter decides which ways are routable and in which directions they may be traversed.
type WayFilter interface {
	Accept(tags map[string]string) bool
	Direction(tags map[string]string) (forward, backward bool)
}
