package routing

import "errors"

var (
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrNoRoadNearby      = errors.New("no road segment within search radius")
	ErrUnreachable       = errors.New("destination is not reachable from origin")
	ErrSearchTimeout     = errors.New("route search exceeded its budget")
)
