package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	helper "github.com/lintang-b-s/navigatorx-pg/pkg/http/router/routerhelper"
	"go.uber.org/zap"
)

type routingAPI struct {
	baseAPI
	routingService RoutingService
}

func New(routingService RoutingService, log *zap.Logger) *routingAPI {
	return &routingAPI{
		baseAPI:        newBaseAPI(log),
		routingService: routingService,
	}
}

func (api *routingAPI) Routes(group *helper.RouteGroup) {
	group.GET("/computeRoutes", api.shortestPath)
	group.POST("/route", api.route)
	group.GET("/nodes/:id/neighbors", api.neighbors)
}

func parseCoordinate(query map[string][]string, name string) (float64, error) {
	values := query[name]
	if len(values) == 0 || values[0] == "" {
		return 0, fmt.Errorf("%s is required and must be a valid float", name)
	}
	v, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%s is required and must be a valid float", name)
	}
	return v, nil
}

// shortestPath godoc
//
//	@Summary		shortest path between an origin and a destination coordinate
//	@Tags			navigations
//	@Produce		json
//	@Param			origin_lat		query		number	true	"origin latitude"
//	@Param			origin_lon		query		number	true	"origin longitude"
//	@Param			destination_lat	query		number	true	"destination latitude"
//	@Param			destination_lon	query		number	true	"destination longitude"
//	@Success		200				{object}	shortestPathResponse
//	@Failure		400				{object}	errorResponse
//	@Failure		404				{object}	errorResponse
//	@Failure		503				{object}	errorResponse
//	@Failure		504				{object}	errorResponse
//	@Router			/computeRoutes [get]
func (api *routingAPI) shortestPath(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var (
		request shortestPathRequest
		err     error
	)

	query := r.URL.Query()

	if request.OriginLat, err = parseCoordinate(query, "origin_lat"); err != nil {
		api.BadRequestResponse(w, r, codeInvalidRequest, err)
		return
	}
	if request.OriginLon, err = parseCoordinate(query, "origin_lon"); err != nil {
		api.BadRequestResponse(w, r, codeInvalidRequest, err)
		return
	}
	if request.DestinationLat, err = parseCoordinate(query, "destination_lat"); err != nil {
		api.BadRequestResponse(w, r, codeInvalidRequest, err)
		return
	}
	if request.DestinationLon, err = parseCoordinate(query, "destination_lon"); err != nil {
		api.BadRequestResponse(w, r, codeInvalidRequest, err)
		return
	}
	if err := api.validateStruct(request); err != nil {
		api.BadRequestResponse(w, r, codeInvalidCoordinate, err)
		return
	}

	api.answerRoute(w, r, request.OriginLat, request.OriginLon, request.DestinationLat, request.DestinationLon)
}

// route godoc
//
//	@Summary		shortest path for a start and end point given as a JSON body
//	@Tags			navigations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		routeRequest	true	"start and end point"
//	@Success		200		{array}		pathPoint
//	@Failure		400		{object}	errorResponse
//	@Failure		404		{object}	errorResponse
//	@Failure		503		{object}	errorResponse
//	@Failure		504		{object}	errorResponse
//	@Router			/route [post]
func (api *routingAPI) route(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request routeRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, codeInvalidRequest, err)
		return
	}
	if err := api.validateStruct(request); err != nil {
		api.BadRequestResponse(w, r, codeInvalidCoordinate, err)
		return
	}

	route, _, err := api.routingService.ShortestPath(r.Context(), *request.Start.Lat, *request.Start.Lng,
		*request.End.Lat, *request.End.Lng)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	// bare point list, the shape existing clients of this endpoint read
	if err := api.writeJSON(w, http.StatusOK, NewPathPoints(route), nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

func (api *routingAPI) answerRoute(w http.ResponseWriter, r *http.Request, origLat, origLon, dstLat, dstLon float64) {
	route, version, err := api.routingService.ShortestPath(r.Context(), origLat, origLon, dstLat, dstLon)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	headers := make(http.Header)
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewShortestPathResponse(route, version)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

// neighbors godoc
//
//	@Summary		out edges of one OSM node in the routing graph
//	@Tags			graph
//	@Produce		json
//	@Param			id	path		int	true	"OSM node id"
//	@Success		200	{object}	neighborsResponse
//	@Failure		400	{object}	errorResponse
//	@Failure		404	{object}	errorResponse
//	@Failure		503	{object}	errorResponse
//	@Router			/nodes/{id}/neighbors [get]
func (api *routingAPI) neighbors(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	nodeID, err := strconv.ParseInt(p.ByName("id"), 10, 64)
	if err != nil {
		api.BadRequestResponse(w, r, codeInvalidRequest, errors.New("id must be an integer OSM node id"))
		return
	}

	neighbors, err := api.routingService.Neighbors(nodeID)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewNeighborsResponse(nodeID, neighbors)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}
