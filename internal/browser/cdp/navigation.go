// internal/browser/cdp/navigation.go

package cdp

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// navigationWatcher follows main-frame navigations through Page domain events.
type navigationWatcher struct {
	logger *zap.Logger

	mu        sync.Mutex
	mainFrame cdp.FrameID
	epoch     uint64
	pending   bool
	// settled is closed when the current navigation finishes; err holds its outcome.
	settled chan struct{}
	err     error
	// changed is closed and replaced on every state change.
	changed chan struct{}
}

func newNavigationWatcher(logger *zap.Logger) *navigationWatcher {
	settled := make(chan struct{})
	close(settled)
	return &navigationWatcher{
		logger:  logger.Named("navigation"),
		settled: settled,
		changed: make(chan struct{}),
	}
}

// attach records the main frame and starts listening to the tab's events.
func (w *navigationWatcher) attach(tabCtx context.Context) error {
	var tree *page.FrameTree
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		tree, err = page.GetFrameTree().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("failed to read frame tree: %w", err)
	}
	w.mu.Lock()
	w.mainFrame = tree.Frame.ID
	w.mu.Unlock()

	chromedp.ListenTarget(tabCtx, w.handleEvent)
	return nil
}

func (w *navigationWatcher) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventFrameRequestedNavigation:
		w.onStarted(e.FrameID)
	case *page.EventFrameStartedLoading:
		w.onStarted(e.FrameID)
	case *page.EventFrameNavigated:
		w.onNavigated(e.Frame)
	case *page.EventFrameStoppedLoading:
		w.onStopped(e.FrameID)
	}
}

func (w *navigationWatcher) onStarted(frame cdp.FrameID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if frame != w.mainFrame || w.pending {
		return
	}
	w.pending = true
	w.err = nil
	w.settled = make(chan struct{})
	w.notifyLocked()
	w.logger.Debug("Main frame navigation started.")
}

func (w *navigationWatcher) onNavigated(frame *cdp.Frame) {
	if frame == nil || frame.ParentID != "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mainFrame = frame.ID
	w.epoch++
	if frame.UnreachableURL != "" {
		w.err = fmt.Errorf("navigation to %s failed", frame.UnreachableURL)
	}
	w.notifyLocked()
	w.logger.Debug("Main frame committed.", zap.String("url", frame.URL), zap.Uint64("epoch", w.epoch))
}

func (w *navigationWatcher) onStopped(frame cdp.FrameID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if frame != w.mainFrame || !w.pending {
		return
	}
	w.finishLocked(w.err)
}

// finishLocked settles the current navigation. w.mu must be held.
func (w *navigationWatcher) finishLocked(err error) {
	w.pending = false
	w.err = err
	close(w.settled)
	w.notifyLocked()
}

func (w *navigationWatcher) notifyLocked() {
	close(w.changed)
	w.changed = make(chan struct{})
}

// waitFor blocks until cond, evaluated under w.mu, holds.
func (w *navigationWatcher) waitFor(ctx context.Context, cond func() bool) error {
	for {
		w.mu.Lock()
		if cond() {
			w.mu.Unlock()
			return nil
		}
		changed := w.changed
		w.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// IsNavigationPending implements engine.Navigation.
func (w *navigationWatcher) IsNavigationPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// AwaitSettled implements engine.Navigation. A navigation that starts while an
// earlier one is being awaited is awaited too.
func (w *navigationWatcher) AwaitSettled(ctx context.Context) error {
	for {
		w.mu.Lock()
		settled := w.settled
		w.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return ctx.Err()
		}

		w.mu.Lock()
		if w.pending && w.settled != settled {
			w.mu.Unlock()
			continue
		}
		err := w.err
		w.mu.Unlock()
		return err
	}
}

// Epoch implements engine.Navigation.
func (w *navigationWatcher) Epoch() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.epoch
}

// goTo issues Page.navigate and waits until the new document has committed and loaded.
func (w *navigationWatcher) goTo(ctx context.Context, run func(context.Context, ...chromedp.Action) error, url string) error {
	start := w.Epoch()
	var (
		loaderID  cdp.LoaderID
		errorText string
	)
	err := run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, loaderID, errorText, _, err = page.Navigate(url).Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if errorText != "" {
		return fmt.Errorf("navigate to %s: %s", url, errorText)
	}
	// Same-document navigations have no loader and replace nothing.
	if loaderID == "" {
		return nil
	}
	err = w.waitFor(ctx, func() bool { return w.epoch > start && !w.pending })
	if err == nil {
		err = w.currentErr()
	}
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (w *navigationWatcher) currentErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
