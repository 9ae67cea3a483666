package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/lintang-b-s/navigatorx-pg/pkg/engine"
	"github.com/lintang-b-s/navigatorx-pg/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrRefreshFailed = errors.New("snapshot refresh failed")
)

// SnapshotStatus describes the serving snapshot and the most recent build attempt.
type SnapshotStatus struct {
	Ready       bool
	Snapshot    *engine.Snapshot
	LastAttempt time.Time
	LastError   error
}

type AdminService struct {
	ctx    context.Context
	log    *zap.Logger
	engine SnapshotManager
}

// NewAdminService returns an AdminService whose background refreshes stop when ctx is done.
func NewAdminService(ctx context.Context, log *zap.Logger, engine SnapshotManager) *AdminService {
	return &AdminService{
		ctx:    ctx,
		log:    log,
		engine: engine,
	}
}

func (as *AdminService) Ready() bool {
	return as.engine.Ready()
}

// Refresh rebuilds the snapshot and waits for the result. Cancelling ctx does not stop the build.
func (as *AdminService) Refresh(ctx context.Context) (*engine.Snapshot, error) {
	snap, err := as.engine.Refresh(context.WithoutCancel(ctx))
	if err != nil {
		return nil, util.WrapErrorf(errors.Join(ErrRefreshFailed, err), util.ErrInternalServerError,
			"refresh failed, previous snapshot kept: %v", err)
	}
	return snap, nil
}

// RefreshAsync starts a rebuild in the background.
func (as *AdminService) RefreshAsync() {
	go func() {
		if _, err := as.engine.Refresh(as.ctx); err != nil {
			as.log.Warn("background refresh failed", zap.Error(err))
		}
	}()
}

func (as *AdminService) Status() SnapshotStatus {
	attempt, err := as.engine.LastBuild()
	return SnapshotStatus{
		Ready:       as.engine.Ready(),
		Snapshot:    as.engine.Snapshot(),
		LastAttempt: attempt,
		LastError:   err,
	}
}
