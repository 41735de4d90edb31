// internal/engine/checker.go

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

// stabilityProbe remembers the last bounds seen per element within one call.
// It is never shared between calls.
type stabilityProbe struct {
	samples map[string]schemas.Rect
}

func newStabilityProbe() *stabilityProbe {
	return &stabilityProbe{samples: make(map[string]schemas.Rect)}
}

// observe records bounds for key and reports whether they match the previous sample.
// first is true when there was no previous sample.
func (p *stabilityProbe) observe(key string, bounds schemas.Rect) (stable, first bool) {
	prev, ok := p.samples[key]
	p.samples[key] = bounds
	if !ok {
		return false, true
	}
	return prev.Equal(bounds), false
}

// checker evaluates actionability predicates against the live document.
type checker struct {
	dom   DOM
	input Input
}

// Check evaluates required against ref, cheapest first, stopping at the first unmet predicate.
// Detachment during evaluation is reported as an unmet Attached predicate rather than an error.
// A non-nil error is a backend failure that retrying will not fix.
func (c *checker) Check(ctx context.Context, ref ElementRef, required PredicateSet, position *schemas.Point, probe *stabilityProbe) (ActionabilityState, error) {
	st := ActionabilityState{Resolved: true, Count: 1}
	err := c.evaluate(ctx, &st, ref, required.with(Attached), position, probe)
	if errors.Is(err, ErrElementDetached) {
		st.Held &^= PredicateSet(Attached)
		st.Unmet, st.Reason = 0, ""
		st.mark(Attached, false)
		return st, nil
	}
	return st, err
}

func (c *checker) evaluate(ctx context.Context, st *ActionabilityState, ref ElementRef, required PredicateSet, position *schemas.Point, probe *stabilityProbe) error {
	connected, err := c.dom.IsConnected(ctx, ref)
	if err != nil {
		return err
	}
	if !st.mark(Attached, connected) {
		return nil
	}

	if required&geometryPredicates != 0 {
		st.Bounds, err = c.dom.Bounds(ctx, ref)
		if err != nil {
			return err
		}
	}

	if required.Has(Visible) {
		visible := st.Bounds != nil && !st.Bounds.Empty()
		if visible {
			if visible, err = c.dom.IsVisible(ctx, ref); err != nil {
				return err
			}
		}
		if !st.mark(Visible, visible) {
			return nil
		}
	}

	if required.Has(Stable) {
		stable := false
		if st.Bounds != nil {
			stable, st.firstSample = probe.observe(ref.Key(), *st.Bounds)
		}
		if !st.mark(Stable, stable) {
			return nil
		}
	}

	var enabled bool
	if required.Has(Enabled) || required.Has(Editable) {
		if enabled, err = c.dom.IsEnabled(ctx, ref); err != nil {
			return err
		}
	}
	if required.Has(Enabled) && !st.mark(Enabled, enabled) {
		return nil
	}
	if required.Has(Editable) {
		editable := enabled
		if editable {
			if editable, err = c.dom.IsEditable(ctx, ref); err != nil {
				return err
			}
		}
		if !st.mark(Editable, editable) {
			return nil
		}
	}

	if required.Has(ReceivesEvents) {
		ok, err := c.receivesEvents(ctx, st, ref, position, probe)
		if err != nil {
			return err
		}
		if !st.mark(ReceivesEvents, ok) {
			return nil
		}
	}

	// A detach that raced the checks above invalidates all of them.
	if connected, err = c.dom.IsConnected(ctx, ref); err != nil {
		return err
	}
	if !connected {
		st.Held &^= PredicateSet(Attached)
		st.Unmet = Attached
		st.Reason = "element was detached during actionability checks"
	}
	return nil
}

// receivesEvents scrolls the element into view, computes the action point and hit-tests it.
func (c *checker) receivesEvents(ctx context.Context, st *ActionabilityState, ref ElementRef, position *schemas.Point, probe *stabilityProbe) (bool, error) {
	bounds, point, err := c.actionPoint(ctx, ref, position)
	if err != nil {
		return false, err
	}
	if bounds == nil {
		st.Reason = "element has no bounding box"
		return false, nil
	}
	st.Bounds, st.Point = bounds, point
	// Scrolling moved the element; compare the next poll against where it is now.
	probe.samples[ref.Key()] = *bounds

	hit, err := c.dom.HitTest(ctx, *point)
	if err != nil {
		return false, err
	}
	if hit == nil {
		st.Reason = fmt.Sprintf("no element at (%.1f, %.1f)", point.X, point.Y)
		return false, nil
	}
	if hit.Key() == ref.Key() {
		return true, nil
	}
	inside, err := c.dom.Contains(ctx, ref, hit)
	if err != nil {
		return false, err
	}
	if !inside {
		st.Reason = c.interceptReason(ctx, hit)
	}
	return inside, nil
}

func (c *checker) interceptReason(ctx context.Context, hit ElementRef) string {
	info, err := c.dom.Describe(ctx, hit)
	if err != nil || info == nil {
		return "another element intercepts pointer events"
	}
	return fmt.Sprintf("<%s> intercepts pointer events", strings.ToLower(info.TagName))
}

// actionPoint scrolls ref into view and returns its bounds and the point a pointer action targets:
// position relative to the top-left corner when given, the center otherwise.
// bounds is nil when the element is not rendered.
func (c *checker) actionPoint(ctx context.Context, ref ElementRef, position *schemas.Point) (*schemas.Rect, *schemas.Point, error) {
	if err := c.input.ScrollIntoView(ctx, ref); err != nil {
		return nil, nil, err
	}
	bounds, err := c.dom.Bounds(ctx, ref)
	if err != nil || bounds == nil || bounds.Empty() {
		return nil, nil, err
	}
	point := bounds.Center()
	if position != nil {
		point = bounds.Offset(*position)
	}
	return bounds, &point, nil
}
