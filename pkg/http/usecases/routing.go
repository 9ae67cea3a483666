package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine/routing"
	"github.com/lintang-b-s/navigatorx-pg/pkg/geo"
	"github.com/lintang-b-s/navigatorx-pg/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrNodeNotFound = errors.New("node not found")
)

type RoutingService struct {
	log    *zap.Logger
	engine RoutingEngine
}

func NewRoutingService(log *zap.Logger, engine RoutingEngine) *RoutingService {
	return &RoutingService{
		log:    log,
		engine: engine,
	}
}

// ShortestPath returns the route between two coordinates and the version of the snapshot it was
// computed on.
func (rs *RoutingService) ShortestPath(ctx context.Context, origLat, origLon, dstLat, dstLon float64) (*routing.Route, uint64, error) {
	route, snap, err := rs.engine.Route(ctx, geo.NewCoordinate(origLat, origLon), geo.NewCoordinate(dstLat, dstLon))
	if err != nil {
		return nil, 0, wrapEngineError(err, "route from %f,%f to %f,%f", origLat, origLon, dstLat, dstLon)
	}
	rs.log.Debug("route found",
		zap.Float64("distance", route.Distance),
		zap.Int("nodes", len(route.NodeIDs)),
		zap.Int("settled", route.SettledNodes),
		zap.Uint64("snapshot", snap.Version))
	return route, snap.Version, nil
}

func (rs *RoutingService) Neighbors(nodeID int64) ([]datastructure.Neighbor, error) {
	neighbors, ok, err := rs.engine.Neighbors(nodeID)
	if err != nil {
		return nil, wrapEngineError(err, "neighbors of node %d", nodeID)
	}
	if !ok {
		return nil, util.WrapErrorf(ErrNodeNotFound, util.ErrNotFound, "node %d is not in the routing graph", nodeID)
	}
	return neighbors, nil
}

// wrapEngineError attaches the util error code the http layer maps to a status.
func wrapEngineError(err error, format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...) + ": " + err.Error()
	switch {
	case errors.Is(err, engine.ErrNotReady):
		return util.WrapErrorf(err, util.ErrServiceUnavailable, "%s", msg)
	case errors.Is(err, routing.ErrInvalidCoordinate):
		return util.WrapErrorf(err, util.ErrBadParamInput, "%s", msg)
	case errors.Is(err, routing.ErrNoRoadNearby), errors.Is(err, routing.ErrUnreachable):
		return util.WrapErrorf(err, util.ErrNotFound, "%s", msg)
	case errors.Is(err, routing.ErrSearchTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return util.WrapErrorf(err, util.ErrTimeout, "%s", msg)
	default:
		return util.WrapErrorf(err, util.ErrInternalServerError, "%s", msg)
	}
}
