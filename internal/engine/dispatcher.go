// internal/engine/dispatcher.go

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"go.uber.org/zap"
)

// Element is what a step's hooks see of the resolved target.
type Element struct {
	Ref ElementRef
	// Bounds and Point are set when the checks computed them.
	Bounds *schemas.Rect
	Point  *schemas.Point
	Info   *schemas.ElementInfo
}

// step is one primitive unit of a plan: resolve, check, dispatch, post-wait.
type step struct {
	name     string
	target   Target
	required PredicateSet
	// needsPoint forces a pointer point to be computed even when ReceivesEvents is skipped.
	needsPoint bool
	position   *schemas.Point
	// precondition runs after resolution and may redirect el.Ref, fail fatally,
	// end the plan early (errPlanComplete) or ask for a restart (errRestartPlan).
	precondition func(ctx context.Context, el *Element) error
	// ready is an extra condition checked after the predicates hold. A non-empty
	// reason means "not yet" and the step polls again.
	ready func(ctx context.Context, el *Element) (reason string, err error)
	// dispatch performs the physical action. Nil for steps that only inspect.
	dispatch    func(ctx context.Context, el *Element) error
	mayNavigate bool
	// skipOnTrial drops the step entirely from trial runs.
	skipOnTrial bool
}

// plan is the ordered step list of one public call.
type plan struct {
	steps []*step
	// abort runs when the plan fails or restarts after some step dispatched.
	abort func(ctx context.Context)
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetry
	outcomeFatal
	outcomeTimedOut
)

// outcome is the result of one attempt. Retry outcomes never leave runStep.
type outcome struct {
	kind  outcomeKind
	state ActionabilityState
	err   error
}

func retry(st ActionabilityState, reason string) outcome {
	if reason != "" {
		st.Reason = reason
	}
	return outcome{kind: outcomeRetry, state: st}
}

func fatal(kind ErrorKind, st ActionabilityState, err error) outcome {
	return outcome{kind: outcomeFatal, state: st, err: &fatalError{kind: kind, err: err}}
}

// runPlan executes steps strictly in order under the call's deadline.
func (e *Engine) runPlan(ctx context.Context, c *call, p *plan) error {
	restarts := 0
	for {
		err := e.runSteps(ctx, c, p)
		if !errors.Is(err, errRestartPlan) {
			if err != nil && p.abort != nil {
				p.abort(ctx)
			}
			return err
		}
		restarts++
		c.logger.Debug("Restarting plan from the first step.", zap.Int("restarts", restarts))
		if p.abort != nil {
			p.abort(ctx)
		}
	}
}

func (e *Engine) runSteps(ctx context.Context, c *call, p *plan) error {
	for _, s := range p.steps {
		if s.skipOnTrial && c.opts.Trial {
			continue
		}
		err := e.runStep(ctx, c, s)
		switch {
		case err == nil:
		case errors.Is(err, errPlanComplete):
			return nil
		default:
			return err
		}
	}
	return nil
}

// runStep drives one step through Resolving, Checking, Dispatching and PostWaiting,
// polling until it succeeds, fails fatally or the deadline passes.
func (e *Engine) runStep(ctx context.Context, c *call, s *step) error {
	probe := newStabilityProbe()
	return e.poll(ctx, c, s.name, func() outcome { return e.attempt(ctx, c, s, probe) })
}

// poll repeats attempt until it stops asking for a retry. The deadline is
// consulted before every attempt and bounds every sleep.
func (e *Engine) poll(ctx context.Context, c *call, stepName string, attempt func() outcome) error {
	var last outcome
	lastReason := ""
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return e.timedOut(c, stepName, last.state, err)
		}
		o := attempt()
		switch o.kind {
		case outcomeSuccess:
			return nil
		case outcomeFatal:
			return e.fatalFromOutcome(c, stepName, o)
		case outcomeTimedOut:
			return e.timedOut(c, stepName, o.state, o.err)
		}
		last = o
		if o.state.Reason != lastReason {
			lastReason = o.state.Reason
			c.logger.Debug("Target not ready, retrying.", zap.String("step", stepName), zap.Int("attempt", n),
				zap.String("reason", o.state.Reason), zap.Stringer("state", o.state))
		}
		interval := e.cfg.PollInterval
		if o.state.Unmet == Stable && o.state.firstSample {
			interval = e.cfg.StableFrameInterval
		}
		if err := sleepUntilNextPoll(ctx, interval); err != nil {
			return e.timedOut(c, stepName, last.state, err)
		}
	}
}

// sleepUntilNextPoll waits min(interval, time to deadline) and reports ctx's error if it ended.
func sleepUntilNextPoll(ctx context.Context, interval time.Duration) error {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < interval {
			interval = remaining
		}
	}
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) timedOut(c *call, stepName string, st ActionabilityState, cause error) error {
	reason := st.Reason
	if reason == "" {
		reason = "waiting for " + describeTarget(c.target)
	}
	var err error
	if errors.Is(cause, context.Canceled) {
		err = fmt.Errorf("cancelled while %s %s: %w", reason, st, cause)
	} else {
		err = fmt.Errorf("timeout %s exceeded while %s %s: %w", c.timeout, reason, st, cause)
	}
	return &ActionError{Kind: KindActionTimeout, Step: stepName, State: &st, Err: err}
}

func (e *Engine) fatalFromOutcome(c *call, stepName string, o outcome) error {
	var fe *fatalError
	if errors.As(o.err, &fe) {
		st := o.state
		return &ActionError{Kind: fe.kind, Step: stepName, State: &st, Err: fe.err}
	}
	// Plan control signals pass through unwrapped.
	return o.err
}

func describeTarget(t Target) string {
	if t == nil {
		return "target"
	}
	return t.String()
}

// attempt is a single Resolving → Checking → Dispatching → PostWaiting pass.
func (e *Engine) attempt(ctx context.Context, c *call, s *step, probe *stabilityProbe) outcome {
	st := ActionabilityState{}

	// -- Resolving --
	refs, err := e.resolver.Resolve(ctx, s.target)
	if err != nil {
		if errors.Is(err, ErrHandleDisposed) {
			return fatal(KindDetachedHandle, st, err)
		}
		return e.classify(ctx, s.target, st, err)
	}
	st.Count = len(refs)
	st.Resolved = st.Count > 0
	switch {
	case st.Count == 0:
		return retry(st, "waiting for "+s.target.String())
	case st.Count > 1:
		return fatal(KindAmbiguousTarget, st, fmt.Errorf("%s: %w", s.target, &AmbiguityError{Count: st.Count}))
	}

	el := &Element{Ref: refs[0]}
	if s.precondition != nil {
		if err := s.precondition(ctx, el); err != nil {
			return e.classify(ctx, s.target, st, err)
		}
	}

	// -- Checking --
	required := s.required
	if c.opts.Force {
		required = AttachedOnly
	}
	st, err = e.checker.Check(ctx, el.Ref, required, s.position, probe)
	if err != nil {
		return e.classify(ctx, s.target, st, err)
	}
	if !st.Ready() {
		if _, static := s.target.(*Handle); static && st.Unmet == Attached {
			return fatal(KindDetachedHandle, st, fmt.Errorf("%s: %w", s.target, ErrElementDetached))
		}
		return retry(st, "")
	}
	el.Bounds, el.Point = st.Bounds, st.Point
	if s.needsPoint && el.Point == nil {
		bounds, point, err := e.checker.actionPoint(ctx, el.Ref, s.position)
		if err != nil {
			return e.classify(ctx, s.target, st, err)
		}
		if point == nil {
			return retry(st, "element has no bounding box")
		}
		el.Bounds, el.Point = bounds, point
		st.Bounds, st.Point = bounds, point
	}
	if s.ready != nil {
		reason, err := s.ready(ctx, el)
		if err != nil {
			return e.classify(ctx, s.target, st, err)
		}
		if reason != "" {
			return retry(st, reason)
		}
	}

	// -- Dispatching --
	if c.opts.Trial || s.dispatch == nil {
		return outcome{kind: outcomeSuccess, state: st}
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return outcome{kind: outcomeTimedOut, state: st, err: fmt.Errorf("pacing dispatch: %w", err)}
		}
	}
	if err := s.dispatch(ctx, el); err != nil {
		return e.classify(ctx, s.target, st, err)
	}

	// -- PostWaiting --
	if s.mayNavigate && !c.opts.NoWaitAfter {
		if err := e.waiter.Wait(ctx, c); err != nil {
			// The action's own deadline ending the wait is a timeout, not a failed navigation.
			if ctx.Err() != nil {
				return outcome{kind: outcomeTimedOut, state: st, err: err}
			}
			return fatal(KindNavigationFailed, st, err)
		}
	}
	return outcome{kind: outcomeSuccess, state: st}
}

// classify maps an error from resolution, a hook or the backend onto an outcome.
func (e *Engine) classify(ctx context.Context, target Target, st ActionabilityState, err error) outcome {
	var fe *fatalError
	_, static := target.(*Handle)
	switch {
	case errors.Is(err, errPlanComplete), errors.Is(err, errRestartPlan):
		return outcome{kind: outcomeFatal, state: st, err: err}
	case errors.As(err, &fe):
		return outcome{kind: outcomeFatal, state: st, err: fe}
	case ctx.Err() != nil:
		// The deadline interrupted a backend call; the loop reports the timeout.
		return retry(st, "")
	case errors.Is(err, ErrElementDetached) && static:
		return fatal(KindDetachedHandle, st, fmt.Errorf("%s: %w", target, err))
	case errors.Is(err, ErrElementDetached):
		st.Unmet = Attached
		return retry(st, Attached.unmetReason())
	default:
		return fatal(KindDispatchFailed, st, err)
	}
}
