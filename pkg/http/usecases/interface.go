package usecases

import (
	"context"
	"time"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine/routing"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
)

type RoutingEngine interface {
	Route(ctx context.Context, start, end geo.Coordinate) (*routing.Route, *engine.Snapshot, error)
	Neighbors(nodeID int64) ([]datastructure.Neighbor, bool, error)
}

type SnapshotManager interface {
	Ready() bool
	Snapshot() *engine.Snapshot
	LastBuild() (time.Time, error)
	Refresh(ctx context.Context) (*engine.Snapshot, error)
}
