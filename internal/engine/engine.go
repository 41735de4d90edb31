// internal/engine/engine.go

// Package engine implements actionability-gated browser actions: each action
// re-resolves its target, waits until the element can safely receive input,
// dispatches the input and optionally waits for a resulting navigation, all
// within one deadline.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/actiongate/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Engine runs actions against one page. It is safe for concurrent use; every
// call owns its own poll loop, deadline and stability samples.
type Engine struct {
	dom   DOM
	input Input
	nav   Navigation

	cfg       config.EngineConfig
	timeouts  Timeouts
	typeDelay time.Duration
	// limiter paces dispatches across all calls. Nil when pacing is off.
	limiter *rate.Limiter
	logger  *zap.Logger

	resolver *resolver
	checker  *checker
	waiter   *postActionWaiter
}

// New creates an engine over the given backends. nav may be nil for pages that never navigate.
func New(dom DOM, input Input, nav Navigation, cfg config.EngineConfig, logger *zap.Logger) *Engine {
	if nav == nil {
		nav = staticNavigation{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		dom:      dom,
		input:    input,
		nav:      nav,
		cfg:      cfg,
		logger:   logger.Named("engine"),
		resolver: &resolver{dom: dom, nav: nav},
		checker:  &checker{dom: dom, input: input},
	}
	if cfg.ActionsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.ActionsPerSecond), 1)
	}
	e.waiter = &postActionWaiter{nav: nav, timeout: cfg.NavigationTimeout}
	return e
}

// WithPageTimeout returns a copy of the engine whose page-level timeout is d.
func (e *Engine) WithPageTimeout(d time.Duration) *Engine {
	c := *e
	c.timeouts.Page = d
	return &c
}

// WithContextTimeout returns a copy of the engine whose context-level timeout is d.
func (e *Engine) WithContextTimeout(d time.Duration) *Engine {
	c := *e
	c.timeouts.Context = d
	return &c
}

// WithTypeDelay returns a copy of the engine that pauses d between keys in Type unless the call sets a delay.
func (e *Engine) WithTypeDelay(d time.Duration) *Engine {
	c := *e
	c.typeDelay = d
	return &c
}

// Timeouts returns the page- and context-level overrides in effect.
func (e *Engine) Timeouts() Timeouts { return e.timeouts }

// NavigationTimeout returns the configured bound on waiting for a navigation to settle.
func (e *Engine) NavigationTimeout() time.Duration { return e.cfg.NavigationTimeout }

// call is the per-invocation state of one public action.
type call struct {
	id      string
	action  string
	target  Target
	opts    ActionOptions
	timeout time.Duration
	logger  *zap.Logger
}

// begin derives the call's deadline once. Every step of the call shares it.
func (e *Engine) begin(ctx context.Context, action string, target Target, opts ActionOptions) (context.Context, context.CancelFunc, *call) {
	timeout := e.timeouts.resolve(opts.Timeout, e.cfg.DefaultTimeout)
	c := &call{
		id:      uuid.NewString(),
		action:  action,
		target:  target,
		opts:    opts,
		timeout: timeout,
	}
	fields := []zap.Field{zap.String("action_id", c.id), zap.String("action", action)}
	if target != nil {
		fields = append(fields, zap.Stringer("target", target))
	}
	c.logger = e.logger.With(fields...)
	c.logger.Debug("Action started.", zap.Duration("timeout", timeout), zap.Bool("force", opts.Force), zap.Bool("trial", opts.Trial))

	ctx, cancel := context.WithDeadline(ctx, time.Now().Add(timeout))
	return ctx, cancel, c
}

// finish stamps the call identity onto a failure and logs the result.
func (c *call) finish(start time.Time, err error) error {
	elapsed := time.Since(start)
	if err == nil {
		c.logger.Debug("Action completed.", zap.Duration("elapsed", elapsed))
		return nil
	}
	var ae *ActionError
	if !errors.As(err, &ae) {
		ae = &ActionError{Kind: KindDispatchFailed, Err: err}
		err = ae
	}
	ae.Action = c.action
	if ae.Target == "" && c.target != nil {
		ae.Target = c.target.String()
	}
	c.logger.Debug("Action failed.", zap.Stringer("kind", ae.Kind), zap.Duration("elapsed", elapsed), zap.Error(ae.Err))
	return err
}

// run executes a plan for one public call.
func (e *Engine) run(ctx context.Context, action string, target Target, opts ActionOptions, p *plan) error {
	start := time.Now()
	ctx, cancel, c := e.begin(ctx, action, target, opts)
	defer cancel()
	err := e.runPlan(ctx, c, p)
	var ae *ActionError
	if len(p.steps) == 1 && errors.As(err, &ae) {
		ae.Step = ""
	}
	return c.finish(start, err)
}
