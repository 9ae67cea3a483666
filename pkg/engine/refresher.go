package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run builds the first snapshot, retrying with exponential backoff until it succeeds, then
// refreshes on every RefreshInterval tick. It returns when ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	backoff := e.opts.RetryBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	maxBackoff := e.opts.MaxBackoff
	if maxBackoff < backoff {
		maxBackoff = backoff
	}

	for !e.Ready() {
		if _, err := e.Refresh(ctx); err == nil {
			break
		}
		e.log.Warn("initial snapshot build failed, retrying", zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	if e.opts.RefreshInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(e.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.log.Info("scheduled snapshot refresh")
			_, _ = e.Refresh(ctx)
		}
	}
}
