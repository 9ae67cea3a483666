package routing

import (
	da "github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
)

type VertexInfo struct {
	dist     float64
	parent   da.Index
	scanned  bool
	heapNode *da.PriorityQueueNode[da.Index]
}

func NewVertexInfo(dist float64, parent da.Index, heapNode *da.PriorityQueueNode[da.Index]) *VertexInfo {
	return &VertexInfo{
		dist:     dist,
		parent:   parent,
		heapNode: heapNode,
	}
}

// arc is an out edge of the per-query overlay: a graph edge, or an edge touching a virtual endpoint.
type arc struct {
	head   da.Index
	weight float64
}

// searchState is the scratch space of one query. Instances are pooled per router.
type searchState struct {
	info map[da.Index]*VertexInfo
	pq   *da.MinHeap[da.Index]
}

func newSearchState() *searchState {
	return &searchState{
		info: make(map[da.Index]*VertexInfo, 1024),
		pq:   da.NewFourAryHeap[da.Index](),
	}
}

func (s *searchState) reset() {
	clear(s.info)
	s.pq.Clear()
}
