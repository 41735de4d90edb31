// internal/engine/actions.go

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

// Click waits for the target to be actionable and clicks it.
func (e *Engine) Click(ctx context.Context, t Target, opts ClickOptions) error {
	return e.run(ctx, "click", t, opts.ActionOptions,
		e.pointerPlan(t, opts.ActionOptions, "click", schemas.PointerClick, opts.Button, opts.ClickCount))
}

// DblClick clicks the target twice within one dispatch.
func (e *Engine) DblClick(ctx context.Context, t Target, opts ClickOptions) error {
	return e.run(ctx, "dblclick", t, opts.ActionOptions, e.dblClickPlan(t, opts))
}

// Hover moves the pointer over the target.
func (e *Engine) Hover(ctx context.Context, t Target, opts ActionOptions) error {
	return e.run(ctx, "hover", t, opts, e.pointerPlan(t, opts, "hover", schemas.PointerMove, "", 0))
}

// Tap dispatches a touch tap on the target.
func (e *Engine) Tap(ctx context.Context, t Target, opts ActionOptions) error {
	return e.run(ctx, "tap", t, opts, e.pointerPlan(t, opts, "tap", schemas.PointerTap, "", 0))
}

// Check ensures a checkbox or radio button is checked.
func (e *Engine) Check(ctx context.Context, t Target, opts ActionOptions) error {
	return e.run(ctx, "check", t, opts, e.checkPlan(t, true, opts))
}

// Uncheck ensures a checkbox is unchecked.
func (e *Engine) Uncheck(ctx context.Context, t Target, opts ActionOptions) error {
	return e.run(ctx, "uncheck", t, opts, e.checkPlan(t, false, opts))
}

// SetChecked ensures the checked state equals checked. It does not dispatch when it already does.
func (e *Engine) SetChecked(ctx context.Context, t Target, checked bool, opts ActionOptions) error {
	return e.run(ctx, "set_checked", t, opts, e.checkPlan(t, checked, opts))
}

// Fill focuses the target and replaces its value.
func (e *Engine) Fill(ctx context.Context, t Target, value string, opts ActionOptions) error {
	return e.run(ctx, "fill", t, opts, e.fillPlan(t, value))
}

// Type focuses the target and types text one key at a time.
func (e *Engine) Type(ctx context.Context, t Target, text string, opts TypeOptions) error {
	delay := opts.Delay
	if delay == 0 {
		delay = e.typeDelay
	}
	return e.run(ctx, "type", t, opts.ActionOptions, e.typePlan(t, text, delay))
}

// Press focuses the target and presses a key expression such as "Enter" or "Control+A".
func (e *Engine) Press(ctx context.Context, t Target, key string, opts TypeOptions) error {
	parsed, err := schemas.ParseKeyExpression(key)
	if err != nil {
		return &ActionError{Kind: KindInvalidArgument, Action: "press", Target: describeTarget(t), Err: err}
	}
	parsed.Modifiers |= opts.Modifiers
	return e.run(ctx, "press", t, opts.ActionOptions, e.pressPlan(t, parsed))
}

// SelectOption selects options by value or label and returns the values selected afterwards.
func (e *Engine) SelectOption(ctx context.Context, t Target, values []string, opts ActionOptions) ([]string, error) {
	var selected []string
	if err := e.run(ctx, "select_option", t, opts, e.selectPlan(t, values, &selected)); err != nil {
		return nil, err
	}
	return selected, nil
}

// SetInputFiles sets the files of an <input type=file>.
func (e *Engine) SetInputFiles(ctx context.Context, t Target, files []string, opts ActionOptions) error {
	return e.run(ctx, "set_input_files", t, opts, e.filesPlan(t, files))
}

// DragAndDrop drags source onto target as one gesture.
func (e *Engine) DragAndDrop(ctx context.Context, source, target Target, opts DragOptions) error {
	return e.run(ctx, "drag_and_drop", source, opts.ActionOptions, e.dragPlan(source, target, opts))
}

// ScrollIntoViewIfNeeded scrolls the target into view once it is visible and stable.
func (e *Engine) ScrollIntoViewIfNeeded(ctx context.Context, t Target, opts ActionOptions) error {
	return e.run(ctx, "scroll_into_view", t, opts, e.scrollPlan(t))
}

// WaitForElementState polls until the target satisfies state.
func (e *Engine) WaitForElementState(ctx context.Context, t Target, state ElementState, opts ActionOptions) error {
	if _, ok := ParseElementState(string(state)); !ok {
		return &ActionError{Kind: KindInvalidArgument, Action: "wait_for_state", Target: describeTarget(t),
			Err: fmt.Errorf("unknown element state %q", state)}
	}
	start := time.Now()
	ctx, cancel, c := e.begin(ctx, "wait_for_state", t, opts)
	defer cancel()
	probe := newStabilityProbe()
	err := e.poll(ctx, c, "", func() outcome { return e.stateAttempt(ctx, t, state, probe) })
	return c.finish(start, err)
}

// stateAttempt checks state once. Detached and hidden also hold when nothing matches.
func (e *Engine) stateAttempt(ctx context.Context, t Target, state ElementState, probe *stabilityProbe) outcome {
	st := ActionabilityState{}
	refs, err := e.resolver.Resolve(ctx, t)
	if errors.Is(err, ErrHandleDisposed) {
		if state == StateDetached {
			return outcome{kind: outcomeSuccess, state: st}
		}
		return fatal(KindDetachedHandle, st, err)
	}
	if err != nil {
		return e.classify(ctx, t, st, err)
	}
	st.Count, st.Resolved = len(refs), len(refs) > 0
	if len(refs) > 1 {
		return fatal(KindAmbiguousTarget, st, fmt.Errorf("%s: %w", t, &AmbiguityError{Count: len(refs)}))
	}
	if len(refs) == 0 {
		if state == StateDetached || state == StateHidden {
			return outcome{kind: outcomeSuccess, state: st}
		}
		return retry(st, "waiting for "+t.String())
	}

	var required PredicateSet
	switch state {
	case StateVisible, StateHidden:
		required = PredicateSet(Visible)
	case StateStable:
		required = PredicateSet(Stable)
	case StateEnabled, StateDisabled:
		required = PredicateSet(Enabled)
	case StateEditable:
		required = PredicateSet(Editable)
	}
	st, err = e.checker.Check(ctx, refs[0], required, nil, probe)
	if err != nil {
		return e.classify(ctx, t, st, err)
	}

	var holds bool
	switch state {
	case StateAttached:
		holds = st.Met(Attached)
	case StateDetached:
		holds = !st.Met(Attached)
	case StateVisible:
		holds = st.Met(Visible)
	case StateHidden:
		holds = !st.Met(Attached) || !st.Met(Visible)
	case StateStable:
		holds = st.Met(Stable)
	case StateEnabled:
		holds = st.Met(Enabled)
	case StateDisabled:
		holds = st.Met(Attached) && !st.Met(Enabled)
	case StateEditable:
		holds = st.Met(Editable)
	}
	if holds {
		return outcome{kind: outcomeSuccess, state: st}
	}
	if _, static := t.(*Handle); static && !st.Met(Attached) {
		return fatal(KindDetachedHandle, st, fmt.Errorf("%s: %w", t, ErrElementDetached))
	}
	return retry(st, fmt.Sprintf("waiting for element to be %s", state))
}

// Count returns how many elements the target matches right now. It never waits.
func (e *Engine) Count(ctx context.Context, t Target) (int, error) {
	refs, err := e.resolver.Resolve(ctx, t)
	if errors.Is(err, ErrHandleDisposed) {
		return 0, &ActionError{Kind: KindDetachedHandle, Action: "count", Target: describeTarget(t), Err: err}
	}
	if err != nil {
		return 0, &ActionError{Kind: KindDispatchFailed, Action: "count", Target: describeTarget(t), Err: err}
	}
	return len(refs), nil
}

// Resolve waits until the locator matches exactly one attached element and binds a handle to it.
func (e *Engine) Resolve(ctx context.Context, l Locator, opts ActionOptions) (*Handle, error) {
	var h *Handle
	s := &step{
		name:     "resolve",
		target:   l,
		required: AttachedOnly,
		ready: func(ctx context.Context, el *Element) (string, error) {
			h = newHandle(el.Ref, e.nav.Epoch(), l.q.String())
			return "", nil
		},
	}
	// A trial resolve is still a resolve.
	opts.Trial = false
	if err := e.run(ctx, "resolve", l, opts, &plan{steps: []*step{s}}); err != nil {
		return nil, err
	}
	return h, nil
}
