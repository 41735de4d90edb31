// internal/engine/planner.go

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

// Plan builders. Each returns the ordered steps for one public action; the
// steps share the call's deadline and run strictly in order.

func (e *Engine) pointerPlan(t Target, opts ActionOptions, name string, kind schemas.PointerKind, button schemas.MouseButton, clickCount int) *plan {
	if button == "" {
		button = schemas.ButtonLeft
	}
	if clickCount <= 0 {
		clickCount = 1
	}
	s := &step{
		name:       name,
		target:     t,
		required:   PointerPredicates,
		needsPoint: true,
		position:   opts.Position,
		dispatch: func(ctx context.Context, el *Element) error {
			action := schemas.PointerAction{Kind: kind, Point: *el.Point, Modifiers: opts.Modifiers}
			if kind == schemas.PointerClick {
				action.Button = button
				action.ClickCount = clickCount
			}
			return e.input.DispatchPointer(ctx, action)
		},
		mayNavigate: kind != schemas.PointerMove,
	}
	return &plan{steps: []*step{s}}
}

func (e *Engine) dblClickPlan(t Target, opts ClickOptions) *plan {
	button := opts.Button
	if button == "" {
		button = schemas.ButtonLeft
	}
	s := &step{
		name:       "dblclick",
		target:     t,
		required:   PointerPredicates,
		needsPoint: true,
		position:   opts.Position,
		dispatch: func(ctx context.Context, el *Element) error {
			first := schemas.PointerAction{Kind: schemas.PointerClick, Point: *el.Point, Button: button, ClickCount: 1, Modifiers: opts.Modifiers}
			if err := e.input.DispatchPointer(ctx, first); err != nil {
				return err
			}
			// The first click is done; from here on nothing may be retried as a fresh double click.
			if e.nav.IsNavigationPending() {
				return fatalf(KindNavigationFailed, "navigation started after the first click of a double click")
			}
			second := first
			second.ClickCount = 2
			if err := e.input.DispatchPointer(ctx, second); err != nil {
				if errors.Is(err, ErrElementDetached) {
					return fatalf(KindDispatchFailed, "element detached between the clicks of a double click: %w", err)
				}
				return err
			}
			return nil
		},
		mayNavigate: true,
	}
	return &plan{steps: []*step{s}}
}

// checkPlan is probe, click, verify. The probe ends the plan when the element
// already has the desired state.
func (e *Engine) checkPlan(t Target, desired bool, opts ActionOptions) *plan {
	probe := &step{
		name:     "probe",
		target:   t,
		required: AttachedOnly,
		precondition: func(ctx context.Context, el *Element) error {
			info, err := e.describeCheckable(ctx, el)
			if err != nil {
				return err
			}
			if info.Checked == desired {
				return errPlanComplete
			}
			if !desired && info.Type == "radio" {
				return fatalf(KindWrongElementKind, "cannot uncheck a radio button")
			}
			return nil
		},
	}
	click := e.pointerPlan(t, opts, "click", schemas.PointerClick, schemas.ButtonLeft, 1).steps[0]
	click.required = CheckPredicates
	verify := &step{
		name:        "verify",
		target:      t,
		required:    AttachedOnly,
		skipOnTrial: true,
		precondition: func(ctx context.Context, el *Element) error {
			info, err := e.describeCheckable(ctx, el)
			if err != nil {
				return err
			}
			if info.Checked != desired {
				return fatalf(KindPostconditionFailed, "clicking the checkbox did not change its state to checked=%t", desired)
			}
			return nil
		},
	}
	return &plan{steps: []*step{probe, click, verify}}
}

func (e *Engine) describeCheckable(ctx context.Context, el *Element) (*schemas.ElementInfo, error) {
	info, err := e.dom.Describe(ctx, el.Ref)
	if err != nil {
		return nil, err
	}
	if !info.IsCheckable() {
		return nil, fatalf(KindWrongElementKind, "element is not a checkbox or radio button (<%s>)", strings.ToLower(info.TagName))
	}
	el.Info = info
	return info, nil
}

func (e *Engine) fillPlan(t Target, value string) *plan {
	s := &step{
		name:     "fill",
		target:   t,
		required: TextPredicates,
		precondition: func(ctx context.Context, el *Element) error {
			info, err := e.dom.Describe(ctx, el.Ref)
			if err != nil {
				return err
			}
			if !info.IsFillable() {
				return fatalf(KindWrongElementKind, "element is not an <input>, <textarea> or [contenteditable] element (<%s type=%q>)", strings.ToLower(info.TagName), info.Type)
			}
			el.Info = info
			return nil
		},
		dispatch: func(ctx context.Context, el *Element) error {
			if err := e.input.Focus(ctx, el.Ref); err != nil {
				return err
			}
			return e.input.SetValue(ctx, el.Ref, value)
		},
	}
	return &plan{steps: []*step{s}}
}

// typePlan focuses the element and sends one key press per rune.
func (e *Engine) typePlan(t Target, text string, delay time.Duration) *plan {
	s := &step{
		name:     "type",
		target:   t,
		required: TextPredicates,
		dispatch: func(ctx context.Context, el *Element) error {
			if err := e.input.Focus(ctx, el.Ref); err != nil {
				return err
			}
			sent := 0
			for _, r := range text {
				if sent > 0 && delay > 0 {
					if err := sleepCtx(ctx, delay); err != nil {
						return err
					}
				}
				if err := e.input.DispatchKey(ctx, schemas.KeyAction{Kind: schemas.KeyPress, Key: keyForRune(r)}); err != nil {
					if sent > 0 && errors.Is(err, ErrElementDetached) {
						// Typing resumed from scratch would duplicate the keys already sent.
						return fatalf(KindDispatchFailed, "element detached after %d of %d characters: %w", sent, utf8.RuneCountInString(text), err)
					}
					return err
				}
				sent++
			}
			return nil
		},
		mayNavigate: strings.ContainsAny(text, "\r\n"),
	}
	return &plan{steps: []*step{s}}
}

func keyForRune(r rune) string {
	switch r {
	case '\n', '\r':
		return "Enter"
	case '\t':
		return "Tab"
	}
	return string(r)
}

func (e *Engine) pressPlan(t Target, key schemas.KeyEventData) *plan {
	s := &step{
		name:     "press",
		target:   t,
		required: TextPredicates,
		dispatch: func(ctx context.Context, el *Element) error {
			if err := e.input.Focus(ctx, el.Ref); err != nil {
				return err
			}
			return e.input.DispatchKey(ctx, schemas.KeyAction{Kind: schemas.KeyPress, Key: key.Key, Modifiers: key.Modifiers})
		},
		mayNavigate: key.Key == "Enter" || key.Key == "NumpadEnter",
	}
	return &plan{steps: []*step{s}}
}

// selectPlan waits for every requested option to be present, then selects them all at once.
// selected receives the values the backend reports as selected.
func (e *Engine) selectPlan(t Target, values []string, selected *[]string) *plan {
	s := &step{
		name:     "select",
		target:   t,
		required: SelectPredicates,
		precondition: func(ctx context.Context, el *Element) error {
			info, err := e.dom.Describe(ctx, el.Ref)
			if err != nil {
				return err
			}
			if !info.IsSelect() {
				ctrl, err := e.dom.LabeledControl(ctx, el.Ref)
				if err != nil {
					return err
				}
				if ctrl == nil {
					return fatalf(KindWrongElementKind, "element is not a <select> element (<%s>)", strings.ToLower(info.TagName))
				}
				if info, err = e.dom.Describe(ctx, ctrl); err != nil {
					return err
				}
				if !info.IsSelect() {
					return fatalf(KindWrongElementKind, "label does not point at a <select> element (<%s>)", strings.ToLower(info.TagName))
				}
				el.Ref = ctrl
			}
			if len(values) > 1 && !info.Multiple {
				return fatalf(KindWrongElementKind, "non-multiple <select> cannot select %d options", len(values))
			}
			el.Info = info
			return nil
		},
		ready: func(ctx context.Context, el *Element) (string, error) {
			options, err := e.dom.Options(ctx, el.Ref)
			if err != nil {
				return "", err
			}
			for _, v := range values {
				if matchOption(options, v) == nil {
					return fmt.Sprintf("waiting for option %q", v), nil
				}
			}
			return "", nil
		},
		dispatch: func(ctx context.Context, el *Element) error {
			options, err := e.dom.Options(ctx, el.Ref)
			if err != nil {
				return err
			}
			resolved := make([]string, 0, len(values))
			for _, v := range values {
				opt := matchOption(options, v)
				if opt == nil {
					return fmt.Errorf("option %q disappeared before selection: %w", v, ErrElementDetached)
				}
				resolved = append(resolved, opt.Value)
			}
			got, err := e.input.SelectOptions(ctx, el.Ref, resolved)
			if err != nil {
				return err
			}
			*selected = got
			return nil
		},
	}
	return &plan{steps: []*step{s}}
}

// matchOption finds an option by value first, then by label.
func matchOption(options []schemas.SelectOption, want string) *schemas.SelectOption {
	for i := range options {
		if options[i].Value == want {
			return &options[i]
		}
	}
	for i := range options {
		if strings.TrimSpace(options[i].Label) == want {
			return &options[i]
		}
	}
	return nil
}

func (e *Engine) filesPlan(t Target, files []string) *plan {
	s := &step{
		name:     "set_input_files",
		target:   t,
		required: FilePredicates,
		precondition: func(ctx context.Context, el *Element) error {
			info, err := e.dom.Describe(ctx, el.Ref)
			if err != nil {
				return err
			}
			if !info.IsFileInput() {
				return fatalf(KindWrongElementKind, "element is not an <input type=file> element (<%s type=%q>)", strings.ToLower(info.TagName), info.Type)
			}
			if len(files) > 1 && !info.Multiple {
				return fatalf(KindWrongElementKind, "non-multiple file input can only accept a single file, got %d", len(files))
			}
			el.Info = info
			return nil
		},
		dispatch: func(ctx context.Context, el *Element) error {
			return e.input.SetInputFiles(ctx, el.Ref, files)
		},
	}
	return &plan{steps: []*step{s}}
}

func (e *Engine) scrollPlan(t Target) *plan {
	s := &step{
		name:     "scroll",
		target:   t,
		required: ScrollPredicates,
		dispatch: func(ctx context.Context, el *Element) error {
			return e.input.ScrollIntoView(ctx, el.Ref)
		},
	}
	return &plan{steps: []*step{s}}
}

// dragPlan presses on the source, moves to the target and releases. If the
// source is replaced after the press, the button is released and the whole
// gesture starts over.
func (e *Engine) dragPlan(source, target Target, opts DragOptions) *plan {
	var (
		sourceKey string
		pressed   bool
		lastPoint schemas.Point
		dropPoint schemas.Point
	)
	srcPos, dstPos := opts.Position, opts.Position
	if opts.SourcePosition != nil {
		srcPos = opts.SourcePosition
	}
	if opts.TargetPosition != nil {
		dstPos = opts.TargetPosition
	}

	release := func(ctx context.Context) {
		if !pressed {
			return
		}
		pressed = false
		// The call's deadline may already have passed; the button must still come up.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = e.input.DispatchPointer(ctx, schemas.PointerAction{Kind: schemas.PointerUp, Point: lastPoint, Button: schemas.ButtonLeft, ClickCount: 1})
	}

	pick := &step{
		name:       "source",
		target:     source,
		required:   PointerPredicates,
		needsPoint: true,
		position:   srcPos,
		ready: func(ctx context.Context, el *Element) (string, error) {
			sourceKey = el.Ref.Key()
			return "", nil
		},
		dispatch: func(ctx context.Context, el *Element) error {
			if err := e.input.DispatchPointer(ctx, schemas.PointerAction{Kind: schemas.PointerMove, Point: *el.Point, Modifiers: opts.Modifiers}); err != nil {
				return err
			}
			if err := e.input.DispatchPointer(ctx, schemas.PointerAction{Kind: schemas.PointerDown, Point: *el.Point, Button: schemas.ButtonLeft, ClickCount: 1, Modifiers: opts.Modifiers}); err != nil {
				return err
			}
			pressed, lastPoint = true, *el.Point
			return nil
		},
	}
	move := &step{
		name:       "target",
		target:     target,
		required:   PointerPredicates,
		needsPoint: true,
		position:   dstPos,
		precondition: func(ctx context.Context, el *Element) error {
			return e.verifyDragSource(ctx, source, sourceKey)
		},
		dispatch: func(ctx context.Context, el *Element) error {
			if err := e.input.DispatchPointer(ctx, schemas.PointerAction{Kind: schemas.PointerMove, Point: *el.Point, Button: schemas.ButtonLeft, Modifiers: opts.Modifiers}); err != nil {
				return err
			}
			lastPoint, dropPoint = *el.Point, *el.Point
			return nil
		},
	}
	drop := &step{
		name:        "drop",
		target:      target,
		required:    AttachedOnly,
		skipOnTrial: true,
		dispatch: func(ctx context.Context, el *Element) error {
			if err := e.input.DispatchPointer(ctx, schemas.PointerAction{Kind: schemas.PointerUp, Point: dropPoint, Button: schemas.ButtonLeft, ClickCount: 1, Modifiers: opts.Modifiers}); err != nil {
				return err
			}
			pressed = false
			return nil
		},
		mayNavigate: true,
	}
	return &plan{steps: []*step{pick, move, drop}, abort: release}
}

// verifyDragSource asks for a restart when the element under the pressed button is gone or replaced.
func (e *Engine) verifyDragSource(ctx context.Context, source Target, sourceKey string) error {
	if sourceKey == "" {
		return nil
	}
	refs, err := e.resolver.Resolve(ctx, source)
	if err != nil {
		if errors.Is(err, ErrHandleDisposed) {
			return &fatalError{kind: KindDetachedHandle, err: err}
		}
		return err
	}
	if len(refs) == 1 && refs[0].Key() == sourceKey {
		connected, err := e.dom.IsConnected(ctx, refs[0])
		if err != nil && !errors.Is(err, ErrElementDetached) {
			return err
		}
		if connected {
			return nil
		}
		if _, static := source.(*Handle); static {
			return fatalf(KindDetachedHandle, "drag source %s detached during the drag", source)
		}
	}
	return errRestartPlan
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
