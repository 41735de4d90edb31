package cdp

import (
	"context"
)

// CombineContext derives a context from ctx1, which carries the chromedp target,
// that is also canceled when ctx2 (the operation's deadline) ends.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancelCause(ctx1)

	stop := context.AfterFunc(ctx2, func() {
		cancel(context.Cause(ctx2))
	})

	return combinedCtx, func() {
		stop()
		cancel(context.Canceled)
	}
}
