// internal/browser/cdp/page.go

package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/actiongate/internal/browser/input"
	"github.com/xkilldash9x/actiongate/internal/config"
	"github.com/xkilldash9x/actiongate/internal/engine"
)

// Page drives one browser tab. It implements engine.DOM and engine.Input;
// Navigation returns the tab's engine.Navigation.
type Page struct {
	ctx      context.Context // the chromedp tab context
	logger   *zap.Logger
	mouse    *input.Mouse
	keyboard *input.Keyboard
	touch    *input.Touchscreen
	nav      *navigationWatcher
}

var (
	_ engine.DOM   = (*Page)(nil)
	_ engine.Input = (*Page)(nil)
)

// NewPage attaches to the tab carried by tabCtx, which must come from chromedp.NewContext.
// The tab is started if it has not run an action yet.
func NewPage(tabCtx context.Context, cfg config.InputConfig, logger *zap.Logger) (*Page, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Page{
		ctx:    tabCtx,
		logger: logger.Named("page"),
	}
	exec := &cdpExecutor{logger: p.logger, runActionsFunc: p.RunActions}
	p.mouse = input.NewMouse(exec, cfg, p.logger)
	p.keyboard = input.NewKeyboard(exec, cfg)
	p.touch = input.NewTouchscreen(exec)
	p.nav = newNavigationWatcher(p.logger)

	// Start the tab before listening so the listener binds to its target.
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("failed to start tab: %w", err)
	}
	if err := p.nav.attach(tabCtx); err != nil {
		return nil, err
	}
	return p, nil
}

// Navigation returns the watcher tracking this tab's main frame.
func (p *Page) Navigation() engine.Navigation { return p.nav }

// Goto navigates the tab to url and waits for the load to settle.
func (p *Page) Goto(ctx context.Context, url string) error {
	return p.nav.goTo(ctx, p.RunActions, url)
}

// RunActions runs chromedp actions on the tab, bounded by ctx.
func (p *Page) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		// Report the caller's deadline or cancellation rather than the tab's derived error.
		return ctx.Err()
	}
	return err
}

// registryJS yields the per-document element registry. Keys carry a random
// document id so keys minted before a navigation never match afterwards.
const registryJS = `(() => {
	if (!window.__actiongate) {
		const doc = Math.random().toString(36).slice(2, 10);
		const refs = new Map();
		let next = 0;
		window.__actiongate = {
			key(el) {
				if (!el.__actiongateKey) {
					el.__actiongateKey = doc + ':' + (++next);
					refs.set(el.__actiongateKey, new WeakRef(el));
				}
				return el.__actiongateKey;
			},
			lookup(key) {
				const ref = refs.get(key);
				return ref ? ref.deref() : undefined;
			},
			get(key) {
				const el = this.lookup(key);
				if (!el || !el.isConnected) {
					throw new Error('actiongate:detached ' + key);
				}
				return el;
			},
		};
	}
	return window.__actiongate;
})()`

// nodeRef is the registry key of an element.
type nodeRef string

func (r nodeRef) Key() string { return string(r) }

func keyOf(ref engine.ElementRef) string {
	if ref == nil {
		return ""
	}
	return ref.Key()
}

// call evaluates fn(registry, args...) in the page and decodes its JSON result into out.
func (p *Page) call(ctx context.Context, fn string, out interface{}, args ...interface{}) error {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(fn)
	b.WriteString(")(")
	b.WriteString(registryJS)
	for _, a := range args {
		enc, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode script argument: %w", err)
		}
		b.WriteString(", ")
		b.Write(enc)
	}
	b.WriteString(")")

	var res *runtime.RemoteObject
	err := p.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exc, err := runtime.Evaluate(b.String()).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		res = obj
		return nil
	}))
	if err != nil {
		return classify(err)
	}
	if out == nil || res == nil || len(res.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		return fmt.Errorf("failed to decode script result %s: %w", string(res.Value), err)
	}
	return nil
}

// withObject resolves ref to a remote object for the duration of fn.
func (p *Page) withObject(ctx context.Context, ref engine.ElementRef, fn func(ctx context.Context, id runtime.RemoteObjectID) error) error {
	expr := fmt.Sprintf("%s.get(%q)", registryJS, keyOf(ref))
	err := p.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exc, err := runtime.Evaluate(expr).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if obj.ObjectID == "" {
			return fmt.Errorf("actiongate:detached %s", keyOf(ref))
		}
		defer func() {
			if err := runtime.ReleaseObject(obj.ObjectID).Do(ctx); err != nil {
				p.logger.Debug("Failed to release remote object.", zap.Error(err))
			}
		}()
		return fn(ctx, obj.ObjectID)
	}))
	return classify(err)
}

// detachedMessages are protocol and script errors meaning the element or its document is gone.
var detachedMessages = []string{
	"actiongate:detached",
	"Could not find node with given id",
	"No node with given id found",
	"Node is detached from document",
	"Node is not an Element",
	"Cannot find context with specified id",
	"Could not find object with given id",
	"Execution context was destroyed",
	"Inspected target navigated or closed",
}

// classify marks errors about vanished elements with engine.ErrElementDetached.
func classify(err error) error {
	if err == nil || errors.Is(err, engine.ErrElementDetached) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	for _, m := range detachedMessages {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", engine.ErrElementDetached, err)
		}
	}
	return err
}
