// internal/engine/errors.go

package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure reported by a public action.
type ErrorKind int

const (
	// KindAmbiguousTarget means the target resolved to more than one element.
	KindAmbiguousTarget ErrorKind = iota + 1
	// KindWrongElementKind means an action-specific precondition on the element failed.
	KindWrongElementKind
	// KindDetachedHandle means the action ran against a disposed or stale handle.
	KindDetachedHandle
	// KindActionTimeout means the deadline passed (or the caller cancelled) before the action could complete.
	KindActionTimeout
	// KindPostconditionFailed means the action was dispatched but did not produce the expected state.
	KindPostconditionFailed
	// KindNavigationFailed means a navigation triggered by the action did not settle.
	KindNavigationFailed
	// KindDispatchFailed means a DOM or input backend returned an unexpected error.
	KindDispatchFailed
	// KindInvalidArgument means the call itself was malformed, e.g. an unparsable key expression.
	// Nothing was resolved or dispatched.
	KindInvalidArgument
)

// Sentinels matched by errors.Is against any *ActionError of the same kind.
var (
	ErrAmbiguousTarget     = errors.New("ambiguous target")
	ErrWrongElementKind    = errors.New("wrong element kind")
	ErrDetachedHandle      = errors.New("element handle is detached")
	ErrTimeout             = errors.New("action timed out")
	ErrPostconditionFailed = errors.New("postcondition failed")
	ErrNavigationFailed    = errors.New("navigation failed")
	ErrDispatchFailed      = errors.New("dispatch failed")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Backend and resolver signals.
var (
	// ErrElementDetached is returned by backends when a referenced element is no longer in the document.
	ErrElementDetached = errors.New("element is not attached to the DOM")
	// ErrNoElements is returned by ResolveExactlyOne when nothing matches.
	ErrNoElements = errors.New("no elements match the target")
	// ErrHandleDisposed is returned when resolving a handle that was disposed or outlived its document.
	ErrHandleDisposed = errors.New("handle is disposed")
)

func (k ErrorKind) String() string {
	switch k {
	case KindAmbiguousTarget:
		return "AmbiguousTarget"
	case KindWrongElementKind:
		return "WrongElementKind"
	case KindDetachedHandle:
		return "DetachedHandle"
	case KindActionTimeout:
		return "ActionTimeout"
	case KindPostconditionFailed:
		return "PostconditionFailed"
	case KindNavigationFailed:
		return "NavigationFailed"
	case KindDispatchFailed:
		return "DispatchFailed"
	case KindInvalidArgument:
		return "InvalidArgument"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindAmbiguousTarget:
		return ErrAmbiguousTarget
	case KindWrongElementKind:
		return ErrWrongElementKind
	case KindDetachedHandle:
		return ErrDetachedHandle
	case KindActionTimeout:
		return ErrTimeout
	case KindPostconditionFailed:
		return ErrPostconditionFailed
	case KindNavigationFailed:
		return ErrNavigationFailed
	case KindInvalidArgument:
		return ErrInvalidArgument
	default:
		return ErrDispatchFailed
	}
}

// AmbiguityError reports how many elements matched when exactly one was required.
type AmbiguityError struct {
	Count int
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("target resolved to %d elements", e.Count)
}

// ActionError is the single failure type returned by public actions.
type ActionError struct {
	Kind ErrorKind
	// Action is the public call, e.g. "click".
	Action string
	// Step names the sub-step of a composite action that failed; empty for single-step actions.
	Step   string
	Target string
	// State is the last observed actionability snapshot, when one was taken.
	State *ActionabilityState
	Err   error
}

func (e *ActionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Action)
	if e.Target != "" {
		b.WriteString(" ")
		b.WriteString(e.Target)
	}
	if e.Step != "" {
		fmt.Fprintf(&b, " (step %q)", e.Step)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.sentinel().Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ActionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the kind of err if it is an *ActionError, and zero otherwise.
func KindOf(err error) ErrorKind {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// fatalError carries a classified failure out of a step hook.
type fatalError struct {
	kind ErrorKind
	err  error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

func fatalf(kind ErrorKind, format string, args ...interface{}) error {
	return &fatalError{kind: kind, err: fmt.Errorf(format, args...)}
}

// Internal plan control signals.
var (
	// errPlanComplete ends a plan successfully before its remaining steps run.
	errPlanComplete = errors.New("plan complete")
	// errRestartPlan re-runs a plan from its first step.
	errRestartPlan = errors.New("plan restart requested")
)
