package controllers

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	helper "github.com/lintang-b-s/navigatorx-pg/pkg/http/router/routerhelper"
	"go.uber.org/zap"
)

const adminTokenHeader = "X-Admin-Token"

type adminAPI struct {
	baseAPI
	adminService AdminService
	token        string
}

// NewAdmin returns the admin controller. An empty token leaves the admin routes open.
func NewAdmin(adminService AdminService, token string, log *zap.Logger) *adminAPI {
	return &adminAPI{
		baseAPI:      newBaseAPI(log),
		adminService: adminService,
		token:        token,
	}
}

func (api *adminAPI) Routes(group *helper.RouteGroup) {
	admin := group.Group("/admin")
	admin.POST("/refresh", api.requireToken(api.refresh))
	admin.GET("/snapshot", api.requireToken(api.snapshot))
}

func (api *adminAPI) requireToken(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if api.token != "" {
			got := r.Header.Get(adminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(api.token)) != 1 {
				api.UnauthorizedResponse(w, r)
				return
			}
		}
		next(w, r, p)
	}
}

// refresh godoc
//
//	@Summary		rebuild the routing snapshot from the backing store
//	@Tags			admin
//	@Produce		json
//	@Param			async			query		bool	false	"return 202 and build in the background"
//	@Param			X-Admin-Token	header		string	false	"admin token"
//	@Success		200				{object}	snapshotResponse
//	@Success		202
//	@Failure		401				{object}	errorResponse
//	@Failure		500				{object}	errorResponse
//	@Router			/admin/refresh [post]
func (api *adminAPI) refresh(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		api.adminService.RefreshAsync()
		if err := api.writeJSON(w, http.StatusAccepted, envelope{"data": map[string]string{"status": "refresh started"}}, nil); err != nil {
			api.ServerErrorResponse(w, r, err)
		}
		return
	}

	snap, err := api.adminService.Refresh(r.Context())
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewSnapshotResponse(snap)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

// snapshot godoc
//
//	@Summary		serving snapshot and last build attempt
//	@Tags			admin
//	@Produce		json
//	@Param			X-Admin-Token	header		string	false	"admin token"
//	@Success		200				{object}	statusResponse
//	@Failure		401				{object}	errorResponse
//	@Router			/admin/snapshot [get]
func (api *adminAPI) snapshot(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	status := api.adminService.Status()
	resp := statusResponse{
		Ready:    status.Ready,
		Snapshot: NewSnapshotResponse(status.Snapshot),
	}
	if !status.LastAttempt.IsZero() {
		resp.LastAttempt = &status.LastAttempt
	}
	if status.LastError != nil {
		resp.LastError = status.LastError.Error()
	}
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": resp}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

// Readiness answers 200 once a snapshot serves queries and 503 before.
func (api *adminAPI) Readiness(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !api.adminService.Ready() {
		headers := make(http.Header)
		headers.Set("Retry-After", retryAfterSeconds)
		api.errorResponse(w, r, http.StatusServiceUnavailable, codeNotReady, "routing graph is not ready", headers)
		return
	}
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": map[string]string{"status": "ready"}}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}
