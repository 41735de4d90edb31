package engine

import (
	"time"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

// ActionOptions is the per-call configuration shared by every action.
type ActionOptions struct {
	// Force skips every actionability check except Attached.
	Force bool
	// NoWaitAfter skips waiting for a navigation the action may have started.
	NoWaitAfter bool
	// Timeout overrides the page, context and configured defaults. Zero means unset.
	Timeout time.Duration
	// Position is relative to the top-left corner of the element's border box. Nil means the center.
	Position *schemas.Point
	// Modifiers are held during pointer actions.
	Modifiers schemas.KeyModifier
	// Trial performs the checks and skips the dispatch.
	Trial bool
}

// ClickOptions configures Click and DblClick.
type ClickOptions struct {
	ActionOptions
	// Button defaults to left.
	Button schemas.MouseButton
	// ClickCount defaults to 1 for Click. DblClick ignores it.
	ClickCount int
}

// TypeOptions configures Type and Press.
type TypeOptions struct {
	ActionOptions
	// Delay is the pause between consecutive keys. Zero uses the configured default.
	Delay time.Duration
}

// DragOptions configures DragAndDrop.
type DragOptions struct {
	ActionOptions
	// SourcePosition and TargetPosition override Position for the respective element.
	SourcePosition *schemas.Point
	TargetPosition *schemas.Point
}

// Timeouts are the page- and context-level overrides of the configured default timeout.
// Zero fields are unset.
type Timeouts struct {
	Context time.Duration
	Page    time.Duration
}

// resolve applies the precedence call > page > context > fallback.
func (t Timeouts) resolve(call, fallback time.Duration) time.Duration {
	for _, d := range []time.Duration{call, t.Page, t.Context} {
		if d > 0 {
			return d
		}
	}
	return fallback
}

// ElementState is a condition WaitForElementState waits for.
type ElementState string

const (
	StateAttached ElementState = "attached"
	StateDetached ElementState = "detached"
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
	StateStable   ElementState = "stable"
	StateEnabled  ElementState = "enabled"
	StateDisabled ElementState = "disabled"
	StateEditable ElementState = "editable"
)

// ParseElementState validates a state name.
func ParseElementState(s string) (ElementState, bool) {
	switch st := ElementState(s); st {
	case StateAttached, StateDetached, StateVisible, StateHidden, StateStable, StateEnabled, StateDisabled, StateEditable:
		return st, true
	}
	return "", false
}
