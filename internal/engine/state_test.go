package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

func TestActionabilityState_String(t *testing.T) {
	assert.Equal(t, "{resolved:false}", ActionabilityState{}.String())

	st := ActionabilityState{Resolved: true, Count: 1}
	st.mark(Attached, true)
	st.mark(Visible, false)
	assert.Equal(t, "{resolved:true count:1 attached:true visible:false}", st.String())
	assert.Equal(t, Visible, st.Unmet)
	assert.Equal(t, "element is not visible", st.Reason)
	assert.False(t, st.Ready())
	assert.True(t, st.Met(Attached))
	assert.False(t, st.Met(Visible))
	assert.False(t, st.Met(Stable))
}

func TestActionabilityState_MarkKeepsFirstFailure(t *testing.T) {
	st := ActionabilityState{Resolved: true, Count: 1}
	st.Reason = "no element at (1.0, 2.0)"
	st.mark(ReceivesEvents, false)
	st.mark(Enabled, false)

	want := ActionabilityState{
		Resolved:  true,
		Count:     1,
		Evaluated: PredicateSet(ReceivesEvents | Enabled),
		Unmet:     ReceivesEvents,
		Reason:    "no element at (1.0, 2.0)",
	}
	if diff := cmp.Diff(want, st, cmp.AllowUnexported(ActionabilityState{})); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestPredicateSet_String(t *testing.T) {
	assert.Equal(t, "{attached,visible,stable,receivesEvents}", PointerPredicates.String())
	assert.Equal(t, "{attached,visible,stable,enabled,editable}", TextPredicates.String())
	assert.Equal(t, "{}", PredicateSet(0).String())
	assert.True(t, CheckPredicates.Has(Enabled))
	assert.False(t, FilePredicates.Has(Visible))
}

func TestStabilityProbe(t *testing.T) {
	p := newStabilityProbe()
	r := schemas.Rect{X: 1, Y: 2, Width: 3, Height: 4}

	stable, first := p.observe("a", r)
	assert.False(t, stable)
	assert.True(t, first)

	stable, first = p.observe("a", schemas.Rect{X: 1.001, Y: 2, Width: 3, Height: 4})
	assert.True(t, stable, "sub-pixel jitter is stable")
	assert.False(t, first)

	stable, _ = p.observe("a", schemas.Rect{X: 5, Y: 2, Width: 3, Height: 4})
	assert.False(t, stable)

	_, first = p.observe("b", r)
	assert.True(t, first, "samples are per element")
}

func TestTimeouts_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		timeouts Timeouts
		call     time.Duration
		want     time.Duration
	}{
		{"fallback", Timeouts{}, 0, 30 * time.Second},
		{"context", Timeouts{Context: 3 * time.Second}, 0, 3 * time.Second},
		{"page beats context", Timeouts{Context: 3 * time.Second, Page: 2 * time.Second}, 0, 2 * time.Second},
		{"call beats page", Timeouts{Context: 3 * time.Second, Page: 2 * time.Second}, time.Second, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.timeouts.resolve(tt.call, 30*time.Second))
		})
	}
}

func TestPickNth(t *testing.T) {
	refs := []ElementRef{keyRef("a"), keyRef("b"), keyRef("c")}
	assert.Equal(t, []ElementRef{keyRef("a")}, pickNth(refs, 0))
	assert.Equal(t, []ElementRef{keyRef("c")}, pickNth(refs, -1))
	assert.Nil(t, pickNth(refs, 3))
	assert.Nil(t, pickNth(refs, -4))
	assert.Nil(t, pickNth(nil, 0))
}

type keyRef string

func (k keyRef) Key() string { return string(k) }

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hello world", normalizeText("  Hello\n\tWORLD "))
	assert.Equal(t, "", normalizeText(" \n "))
}

func TestActionError(t *testing.T) {
	cause := fmt.Errorf("target resolved to 3 elements")
	err := &ActionError{Kind: KindAmbiguousTarget, Action: "click", Target: `locator("li")`, Err: cause}

	assert.Equal(t, `click locator("li"): target resolved to 3 elements`, err.Error())
	assert.True(t, errors.Is(err, ErrAmbiguousTarget))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, KindAmbiguousTarget, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Zero(t, KindOf(cause))

	step := &ActionError{Kind: KindPostconditionFailed, Action: "check", Step: "verify"}
	assert.Equal(t, `check (step "verify"): postcondition failed`, step.Error())
	assert.Equal(t, "PostconditionFailed", KindPostconditionFailed.String())
	assert.Equal(t, "InvalidArgument", KindInvalidArgument.String())
	assert.True(t, errors.Is(&ActionError{Kind: KindInvalidArgument, Action: "press"}, ErrInvalidArgument))
	assert.Equal(t, "ErrorKind(42)", ErrorKind(42).String())
}

func TestParseElementState(t *testing.T) {
	st, ok := ParseElementState("visible")
	assert.True(t, ok)
	assert.Equal(t, StateVisible, st)
	_, ok = ParseElementState("focused")
	assert.False(t, ok)
}
