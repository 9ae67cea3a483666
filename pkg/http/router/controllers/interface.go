package controllers

import (
	"context"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine/routing"
	"github.com/lintang-b-s/navigatorx-pg/pkg/http/usecases"
)

type RoutingService interface {
	ShortestPath(ctx context.Context, origLat, origLon, dstLat, dstLon float64) (*routing.Route, uint64, error)
	Neighbors(nodeID int64) ([]datastructure.Neighbor, error)
}

type AdminService interface {
	Ready() bool
	Refresh(ctx context.Context) (*engine.Snapshot, error)
	RefreshAsync()
	Status() usecases.SnapshotStatus
}
