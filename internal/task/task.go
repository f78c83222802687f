// Package task runs side effects whose failure must never reach the caller.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DetachedTimeout bounds tasks started with Go.
const DetachedTimeout = 30 * time.Second

// BestEffort runs fn and logs, rather than returns, any error or panic.
func BestEffort(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("best-effort task panicked", "task", name, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(ctx); err != nil {
		logger.Warn("best-effort task failed", "task", name, "error", err)
	}
}

// Go runs fn in the background, detached from the caller's cancellation but
// keeping its values. The returned channel is closed when fn has finished.
func Go(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), DetachedTimeout)
	go func() {
		defer close(done)
		defer cancel()
		BestEffort(bg, logger, name, fn)
	}()
	return done
}
