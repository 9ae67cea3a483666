package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/lintang-b-s/navigatorx-pg/pkg/engine"
	"github.com/lintang-b-s/navigatorx-pg/pkg/engine/routing"
	"github.com/lintang-b-s/navigatorx-pg/pkg/http/usecases"
	"github.com/lintang-b-s/navigatorx-pg/pkg/util"
	"go.uber.org/zap"
)

const (
	codeInvalidRequest    = "INVALID_REQUEST"
	codeInvalidCoordinate = "INVALID_COORDINATE"
	codeNoRoadNearby      = "NO_ROAD_NEARBY"
	codeRouteUnreachable  = "ROUTE_UNREACHABLE"
	codeNodeNotFound      = "NODE_NOT_FOUND"
	codeNotFound          = "NOT_FOUND"
	codeNotReady          = "NOT_READY"
	codeSearchTimeout     = "SEARCH_TIMEOUT"
	codeUnauthorized      = "UNAUTHORIZED"
	codeRefreshFailed     = "REFRESH_FAILED"
	codeInternal          = "INTERNAL_ERROR"

	retryAfterSeconds = "5"
)

func (api *baseAPI) errorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, headers http.Header) {
	var resp errorResponse
	resp.Error.Code = code
	resp.Error.Message = message

	if err := api.writeJSON(w, status, envelope{"error": resp.Error}, headers); err != nil {
		api.log.Error("write error response", zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (api *baseAPI) BadRequestResponse(w http.ResponseWriter, r *http.Request, code string, err error) {
	api.errorResponse(w, r, http.StatusBadRequest, code, err.Error(), nil)
}

func (api *baseAPI) UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	api.errorResponse(w, r, http.StatusUnauthorized, codeUnauthorized, "missing or invalid admin token", nil)
}

func (api *baseAPI) ServerErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.log.Error("internal server error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	api.errorResponse(w, r, http.StatusInternalServerError, codeInternal, util.MessageInternalServerError, nil)
}

// getStatusCode answers with the status that matches the util code attached to err.
func (api *baseAPI) getStatusCode(w http.ResponseWriter, r *http.Request, err error) {
	code := errorCode(err)
	switch util.ErrorCode(err) {
	case util.ErrBadParamInput:
		api.errorResponse(w, r, http.StatusBadRequest, code, err.Error(), nil)
	case util.ErrNotFound:
		api.errorResponse(w, r, http.StatusNotFound, code, err.Error(), nil)
	case util.ErrUnauthorized:
		api.errorResponse(w, r, http.StatusUnauthorized, code, err.Error(), nil)
	case util.ErrServiceUnavailable:
		headers := make(http.Header)
		headers.Set("Retry-After", retryAfterSeconds)
		api.errorResponse(w, r, http.StatusServiceUnavailable, code, err.Error(), headers)
	case util.ErrTimeout:
		api.errorResponse(w, r, http.StatusGatewayTimeout, code, err.Error(), nil)
	default:
		if code == codeRefreshFailed {
			api.log.Error("refresh failed", zap.Error(err))
			api.errorResponse(w, r, http.StatusInternalServerError, code, err.Error(), nil)
			return
		}
		api.ServerErrorResponse(w, r, err)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotReady):
		return codeNotReady
	case errors.Is(err, routing.ErrInvalidCoordinate):
		return codeInvalidCoordinate
	case errors.Is(err, routing.ErrNoRoadNearby):
		return codeNoRoadNearby
	case errors.Is(err, routing.ErrUnreachable):
		return codeRouteUnreachable
	case errors.Is(err, routing.ErrSearchTimeout), errors.Is(err, context.DeadlineExceeded):
		return codeSearchTimeout
	case errors.Is(err, usecases.ErrNodeNotFound):
		return codeNodeNotFound
	case errors.Is(err, usecases.ErrRefreshFailed):
		return codeRefreshFailed
	}
	switch util.ErrorCode(err) {
	case util.ErrBadParamInput:
		return codeInvalidRequest
	case util.ErrNotFound:
		return codeNotFound
	case util.ErrUnauthorized:
		return codeUnauthorized
	case util.ErrServiceUnavailable:
		return codeNotReady
	case util.ErrTimeout:
		return codeSearchTimeout
	default:
		return codeInternal
	}
}
