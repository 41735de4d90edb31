// internal/engine/waiter.go

package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// postActionWaiter waits for a navigation an action may have started.
type postActionWaiter struct {
	nav     Navigation
	timeout time.Duration
}

// Wait returns immediately when no navigation is pending. Otherwise it blocks until the
// navigation settles, bounded by the earlier of the action deadline and the navigation timeout.
func (w *postActionWaiter) Wait(ctx context.Context, c *call) error {
	if !w.nav.IsNavigationPending() {
		return nil
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	start := time.Now()
	c.logger.Debug("Waiting for navigation to settle.")
	if err := w.nav.AwaitSettled(ctx); err != nil {
		return fmt.Errorf("waiting for navigation to settle: %w", err)
	}
	c.logger.Debug("Navigation settled.", zap.Duration("elapsed", time.Since(start)))
	return nil
}
