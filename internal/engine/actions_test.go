// FILE: ./internal/engine/actions_test.go

package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/engine"
	"github.com/xkilldash9x/actiongate/internal/engine/enginetest"
)

func checkbox(id string, checked bool) *enginetest.Element {
	return &enginetest.Element{
		ID:        id,
		Tag:       "INPUT",
		Type:      "checkbox",
		Selectors: []string{"input", "#" + id},
		Checked:   checked,
		Bounds:    schemas.Rect{X: 10, Y: 10, Width: 16, Height: 16},
	}
}

func textInput(id string) *enginetest.Element {
	return &enginetest.Element{
		ID:        id,
		Tag:       "INPUT",
		Type:      "text",
		Selectors: []string{"input", "#" + id},
		Bounds:    schemas.Rect{X: 10, Y: 100, Width: 200, Height: 24},
	}
}

func TestSetChecked(t *testing.T) {
	t.Run("already in the desired state", func(t *testing.T) {
		doc := enginetest.NewDocument()
		box := doc.Add(nil, checkbox("agree", true))
		e := newEngine(t, doc)

		require.NoError(t, e.SetChecked(context.Background(), engine.NewLocator("#agree"), true, engine.ActionOptions{}))
		require.NoError(t, e.Check(context.Background(), engine.NewLocator("#agree"), engine.ActionOptions{}))
		assert.Zero(t, doc.DispatchCount())
		doc.Update(func() { assert.True(t, box.Checked) })
	})

	t.Run("toggles once", func(t *testing.T) {
		doc := enginetest.NewDocument()
		box := doc.Add(nil, checkbox("agree", true))
		e := newEngine(t, doc)

		require.NoError(t, e.SetChecked(context.Background(), engine.NewLocator("#agree"), false, engine.ActionOptions{}))
		assert.Equal(t, 1, doc.DispatchCount())
		doc.Update(func() { assert.False(t, box.Checked) })

		require.NoError(t, e.Uncheck(context.Background(), engine.NewLocator("#agree"), engine.ActionOptions{}))
		assert.Equal(t, 1, doc.DispatchCount())
	})

	t.Run("radio", func(t *testing.T) {
		doc := enginetest.NewDocument()
		radio := checkbox("opt", false)
		radio.Type = "radio"
		doc.Add(nil, radio)
		e := newEngine(t, doc)

		require.NoError(t, e.Check(context.Background(), engine.NewLocator("#opt"), engine.ActionOptions{}))
		err := e.Uncheck(context.Background(), engine.NewLocator("#opt"), engine.ActionOptions{})
		assert.Equal(t, engine.KindWrongElementKind, engine.KindOf(err))
		assert.Equal(t, 1, doc.DispatchCount())
	})

	t.Run("aria checkbox", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, &enginetest.Element{
			ID: "toggle", Tag: "DIV", Role: "checkbox", Selectors: []string{"#toggle"},
			Bounds: schemas.Rect{Width: 20, Height: 20},
		})
		e := newEngine(t, doc)

		require.NoError(t, e.Check(context.Background(), engine.NewLocator("#toggle"), engine.ActionOptions{}))
	})
}

func TestCheck_PostconditionFailed(t *testing.T) {
	doc := enginetest.NewDocument()
	box := checkbox("agree", false)
	box.IgnoreClicks = true
	doc.Add(nil, box)
	e := newEngine(t, doc)

	err := e.Check(context.Background(), engine.NewLocator("#agree"), engine.ActionOptions{})

	ae := actionError(t, err)
	assert.Equal(t, engine.KindPostconditionFailed, ae.Kind)
	assert.Equal(t, "verify", ae.Step)
	assert.Equal(t, "check", ae.Action)
	assert.True(t, errors.Is(err, engine.ErrPostconditionFailed))
	assert.Contains(t, err.Error(), `(step "verify")`)
	// Exactly one click; the check does not compensate.
	assert.Equal(t, 1, doc.DispatchCount())
}

func TestCheck_WrongElementKind(t *testing.T) {
	doc := enginetest.NewDocument()
	doc.Add(nil, button("save", 0, 0))
	e := newEngine(t, doc)

	start := time.Now()
	err := e.Check(context.Background(), engine.NewLocator("#save"), engine.ActionOptions{Timeout: 5 * time.Second})

	ae := actionError(t, err)
	assert.Equal(t, engine.KindWrongElementKind, ae.Kind)
	assert.Equal(t, "probe", ae.Step)
	assert.Contains(t, err.Error(), "<button>")
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, doc.DispatchCount())
}

func TestFill(t *testing.T) {
	t.Run("replaces the value", func(t *testing.T) {
		doc := enginetest.NewDocument()
		in := textInput("name")
		in.Value = "old"
		doc.Add(nil, in)
		e := newEngine(t, doc)

		require.NoError(t, e.Fill(context.Background(), engine.NewLocator("#name"), "Ada", engine.ActionOptions{}))
		assert.Same(t, in, doc.Focused())
		doc.Update(func() { assert.Equal(t, "Ada", in.Value) })
	})

	t.Run("waits for editable", func(t *testing.T) {
		doc := enginetest.NewDocument()
		in := textInput("name")
		in.ReadOnly = true
		doc.Add(nil, in)
		after(t, doc, 100*time.Millisecond, func() { in.ReadOnly = false })
		e := newEngine(t, doc)

		require.NoError(t, e.Fill(context.Background(), engine.NewLocator("#name"), "Ada", engine.ActionOptions{}))
	})

	t.Run("disabled input times out", func(t *testing.T) {
		doc := enginetest.NewDocument()
		in := textInput("name")
		in.Disabled = true
		doc.Add(nil, in)
		e := newEngine(t, doc)

		err := e.Fill(context.Background(), engine.NewLocator("#name"), "Ada", engine.ActionOptions{Timeout: 150 * time.Millisecond})
		ae := actionError(t, err)
		assert.Equal(t, engine.KindActionTimeout, ae.Kind)
		assert.Equal(t, engine.Enabled, ae.State.Unmet)
	})

	t.Run("rejects non-text elements", func(t *testing.T) {
		doc := enginetest.NewDocument()
		in := textInput("agree")
		in.Type = "checkbox"
		doc.Add(nil, in)
		e := newEngine(t, doc)

		err := e.Fill(context.Background(), engine.NewLocator("#agree"), "x", engine.ActionOptions{})
		assert.Equal(t, engine.KindWrongElementKind, engine.KindOf(err))
		assert.Contains(t, err.Error(), `type="checkbox"`)
	})

	t.Run("contenteditable", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, &enginetest.Element{
			ID: "editor", Tag: "DIV", ContentEditable: true, Selectors: []string{"#editor"},
			Bounds: schemas.Rect{Width: 300, Height: 100},
		})
		e := newEngine(t, doc)

		require.NoError(t, e.Fill(context.Background(), engine.NewLocator("#editor"), "hello", engine.ActionOptions{}))
	})
}

func TestType(t *testing.T) {
	doc := enginetest.NewDocument()
	in := doc.Add(nil, textInput("q"))
	e := newEngine(t, doc)

	require.NoError(t, e.Type(context.Background(), engine.NewLocator("#q"), "hi\n", engine.TypeOptions{}))

	ds := doc.Dispatches()
	require.Len(t, ds, 3)
	var keys []string
	for _, d := range ds {
		assert.Equal(t, "key:press", d.Kind)
		keys = append(keys, d.Key.Key)
	}
	assert.Equal(t, []string{"h", "i", "Enter"}, keys)
	doc.Update(func() { assert.Equal(t, "hi", in.Value) })
}

func TestType_Delay(t *testing.T) {
	doc := enginetest.NewDocument()
	doc.Add(nil, textInput("q"))
	e := newEngine(t, doc).WithTypeDelay(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, e.Type(context.Background(), engine.NewLocator("#q"), "abc", engine.TypeOptions{}))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestType_DetachAfterFirstKeyIsFatal(t *testing.T) {
	doc := enginetest.NewDocument()
	doc.Add(nil, textInput("q"))
	var mu sync.Mutex
	sent := 0
	doc.OnDispatch = func(d enginetest.Dispatch) error {
		mu.Lock()
		defer mu.Unlock()
		sent++
		if sent == 2 {
			return engine.ErrElementDetached
		}
		return nil
	}
	e := newEngine(t, doc)

	err := e.Type(context.Background(), engine.NewLocator("#q"), "abc", engine.TypeOptions{})
	assert.Equal(t, engine.KindDispatchFailed, engine.KindOf(err))
	assert.Contains(t, err.Error(), "after 1 of 3 characters")
	assert.Equal(t, 1, doc.DispatchCount())
}

func TestPress(t *testing.T) {
	doc := enginetest.NewDocument()
	doc.Add(nil, textInput("q"))
	e := newEngine(t, doc)

	require.NoError(t, e.Press(context.Background(), engine.NewLocator("#q"), "Control+Shift+A", engine.TypeOptions{}))
	ds := doc.Dispatches()
	require.Len(t, ds, 1)
	assert.Equal(t, "A", ds[0].Key.Key)
	assert.Equal(t, schemas.ModCtrl|schemas.ModShift, ds[0].Key.Modifiers)

	err := e.Press(context.Background(), engine.NewLocator("#q"), "Hyper+A", engine.TypeOptions{})
	require.Error(t, err)
	assert.Equal(t, engine.KindInvalidArgument, engine.KindOf(err))
	assert.True(t, errors.Is(err, engine.ErrInvalidArgument))
	assert.Contains(t, err.Error(), `unknown modifier "Hyper"`)
	assert.Equal(t, 1, doc.DispatchCount())
}

func selectElement(id string, options ...schemas.SelectOption) *enginetest.Element {
	return &enginetest.Element{
		ID:        id,
		Tag:       "SELECT",
		Selectors: []string{"select", "#" + id},
		Options:   options,
		Bounds:    schemas.Rect{X: 10, Y: 300, Width: 120, Height: 24},
	}
}

func TestSelectOption(t *testing.T) {
	t.Run("waits for the option to appear", func(t *testing.T) {
		doc := enginetest.NewDocument()
		sel := doc.Add(nil, selectElement("color", schemas.SelectOption{Value: "r", Label: "Red"}))
		after(t, doc, 100*time.Millisecond, func() {
			sel.Options = append(sel.Options, schemas.SelectOption{Value: "g", Label: "Green", Index: 1})
		})
		e := newEngine(t, doc)

		start := time.Now()
		got, err := e.SelectOption(context.Background(), engine.NewLocator("#color"), []string{"Green"}, engine.ActionOptions{})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
		assert.Equal(t, []string{"g"}, got)
		doc.Update(func() { assert.Equal(t, []string{"g"}, sel.Selected) })
	})

	t.Run("missing option times out", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, selectElement("color", schemas.SelectOption{Value: "r", Label: "Red"}))
		e := newEngine(t, doc)

		_, err := e.SelectOption(context.Background(), engine.NewLocator("#color"), []string{"blue"}, engine.ActionOptions{Timeout: 100 * time.Millisecond})
		assert.Equal(t, engine.KindActionTimeout, engine.KindOf(err))
		assert.Contains(t, err.Error(), `waiting for option "blue"`)
	})

	t.Run("several values need a multiple select", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, selectElement("color",
			schemas.SelectOption{Value: "r", Label: "Red"},
			schemas.SelectOption{Value: "g", Label: "Green", Index: 1}))
		e := newEngine(t, doc)

		_, err := e.SelectOption(context.Background(), engine.NewLocator("#color"), []string{"r", "g"}, engine.ActionOptions{})
		assert.Equal(t, engine.KindWrongElementKind, engine.KindOf(err))
	})

	t.Run("label redirects to its control", func(t *testing.T) {
		doc := enginetest.NewDocument()
		sel := doc.Add(nil, selectElement("color", schemas.SelectOption{Value: "r", Label: "Red"}))
		doc.Add(nil, &enginetest.Element{
			ID: "color-label", Tag: "LABEL", Selectors: []string{"label"}, LabelFor: sel,
			Bounds: schemas.Rect{X: 10, Y: 270, Width: 120, Height: 20},
		})
		e := newEngine(t, doc)

		got, err := e.SelectOption(context.Background(), engine.NewLocator("label"), []string{"r"}, engine.ActionOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"r"}, got)
		ds := doc.Dispatches()
		require.Len(t, ds, 1)
		assert.Equal(t, "color", ds[0].Target)
	})

	t.Run("rejects other elements", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, button("save", 0, 0))
		e := newEngine(t, doc)

		_, err := e.SelectOption(context.Background(), engine.NewLocator("#save"), []string{"r"}, engine.ActionOptions{})
		assert.Equal(t, engine.KindWrongElementKind, engine.KindOf(err))
	})
}

func TestSetInputFiles(t *testing.T) {
	fileInput := func(multiple bool) *enginetest.Element {
		return &enginetest.Element{
			ID: "upload", Tag: "INPUT", Type: "file", Multiple: multiple,
			Selectors: []string{"#upload"}, Bounds: schemas.Rect{Width: 200, Height: 24},
		}
	}

	t.Run("single file", func(t *testing.T) {
		doc := enginetest.NewDocument()
		in := doc.Add(nil, fileInput(false))
		e := newEngine(t, doc)

		require.NoError(t, e.SetInputFiles(context.Background(), engine.NewLocator("#upload"), []string{"/tmp/a.txt"}, engine.ActionOptions{}))
		doc.Update(func() { assert.Equal(t, []string{"/tmp/a.txt"}, in.Files) })
	})

	t.Run("several files need multiple", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, fileInput(false))
		e := newEngine(t, doc)

		err := e.SetInputFiles(context.Background(), engine.NewLocator("#upload"), []string{"a", "b"}, engine.ActionOptions{})
		assert.Equal(t, engine.KindWrongElementKind, engine.KindOf(err))
	})

	t.Run("multiple", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, fileInput(true))
		e := newEngine(t, doc)

		require.NoError(t, e.SetInputFiles(context.Background(), engine.NewLocator("#upload"), []string{"a", "b"}, engine.ActionOptions{}))
	})

	t.Run("hidden file input is fine", func(t *testing.T) {
		doc := enginetest.NewDocument()
		in := fileInput(false)
		in.Hidden = true
		doc.Add(nil, in)
		e := newEngine(t, doc)

		require.NoError(t, e.SetInputFiles(context.Background(), engine.NewLocator("#upload"), []string{"a"}, engine.ActionOptions{}))
	})

	t.Run("rejects other inputs", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, textInput("upload"))
		e := newEngine(t, doc)

		err := e.SetInputFiles(context.Background(), engine.NewLocator("#upload"), []string{"a"}, engine.ActionOptions{})
		assert.Equal(t, engine.KindWrongElementKind, engine.KindOf(err))
	})
}

func TestDblClick(t *testing.T) {
	t.Run("two clicks", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, button("cell", 0, 0))
		e := newEngine(t, doc)

		require.NoError(t, e.DblClick(context.Background(), engine.NewLocator("#cell"), engine.ClickOptions{}))
		ds := doc.Dispatches()
		require.Len(t, ds, 2)
		assert.Equal(t, 1, ds[0].Pointer.ClickCount)
		assert.Equal(t, 2, ds[1].Pointer.ClickCount)
	})

	t.Run("navigation after the first click", func(t *testing.T) {
		doc := enginetest.NewDocument()
		link := button("cell", 0, 0)
		link.Navigates = true
		doc.Add(nil, link)
		e := newEngine(t, doc)

		err := e.DblClick(context.Background(), engine.NewLocator("#cell"), engine.ClickOptions{})
		assert.Equal(t, engine.KindNavigationFailed, engine.KindOf(err))
		assert.Equal(t, 1, doc.DispatchCount())
	})
}

func TestHoverAndTap(t *testing.T) {
	doc := enginetest.NewDocument()
	doc.Add(nil, button("menu", 0, 0))
	e := newEngine(t, doc)

	require.NoError(t, e.Hover(context.Background(), engine.NewLocator("#menu"), engine.ActionOptions{}))
	require.NoError(t, e.Tap(context.Background(), engine.NewLocator("#menu"), engine.ActionOptions{}))
	assert.Equal(t, []string{"pointer:move", "pointer:tap"}, kinds(doc.Dispatches()))
}

func TestScrollIntoViewIfNeeded(t *testing.T) {
	doc := enginetest.NewDocument()
	doc.Add(nil, button("footer", 0, 5000))
	e := newEngine(t, doc)

	require.NoError(t, e.ScrollIntoViewIfNeeded(context.Background(), engine.NewLocator("#footer"), engine.ActionOptions{}))
	assert.Equal(t, 1, doc.Scrolls())
	assert.Zero(t, doc.DispatchCount())
}

func TestDragAndDrop(t *testing.T) {
	source := func(id string) *enginetest.Element {
		return &enginetest.Element{ID: id, Tag: "LI", Selectors: []string{"#src"}, Bounds: schemas.Rect{X: 0, Y: 0, Width: 50, Height: 50}}
	}
	target := &enginetest.Element{ID: "dst", Tag: "UL", Selectors: []string{"#dst"}, Bounds: schemas.Rect{X: 200, Y: 0, Width: 100, Height: 100}}

	t.Run("one gesture", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, source("src1"))
		doc.Add(nil, target)
		e := newEngine(t, doc)

		require.NoError(t, e.DragAndDrop(context.Background(), engine.NewLocator("#src"), engine.NewLocator("#dst"), engine.DragOptions{}))
		ds := doc.Dispatches()
		assert.Equal(t, []string{"pointer:move", "pointer:down", "pointer:move", "pointer:up"}, kinds(ds))
		assert.Equal(t, schemas.Point{X: 250, Y: 50}, ds[3].Pointer.Point)
	})

	t.Run("restarts when the source is replaced", func(t *testing.T) {
		doc := enginetest.NewDocument()
		src1 := doc.Add(nil, source("src1"))
		doc.Add(nil, &enginetest.Element{ID: "dst", Tag: "UL", Selectors: []string{"#dst"}, Bounds: schemas.Rect{X: 200, Y: 0, Width: 100, Height: 100}})
		var once sync.Once
		doc.OnDispatch = func(d enginetest.Dispatch) error {
			if d.Kind == "pointer:down" {
				once.Do(func() { doc.Replace(src1, source("src2")) })
			}
			return nil
		}
		e := newEngine(t, doc)

		require.NoError(t, e.DragAndDrop(context.Background(), engine.NewLocator("#src"), engine.NewLocator("#dst"), engine.DragOptions{}))

		ds := doc.Dispatches()
		assert.Equal(t, []string{
			"pointer:move", "pointer:down", "pointer:up",
			"pointer:move", "pointer:down", "pointer:move", "pointer:up",
		}, kinds(ds))
		assert.Equal(t, "src1", ds[1].Target)
		assert.Equal(t, "src2", ds[4].Target)
		assert.Equal(t, "dst", ds[6].Target)
	})

	t.Run("releases the button when the target never appears", func(t *testing.T) {
		doc := enginetest.NewDocument()
		doc.Add(nil, source("src1"))
		e := newEngine(t, doc)

		err := e.DragAndDrop(context.Background(), engine.NewLocator("#src"), engine.NewLocator("#dst"), engine.DragOptions{
			ActionOptions: engine.ActionOptions{Timeout: 150 * time.Millisecond},
		})
		ae := actionError(t, err)
		assert.Equal(t, engine.KindActionTimeout, ae.Kind)
		assert.Equal(t, "target", ae.Step)
		assert.Equal(t, []string{"pointer:move", "pointer:down", "pointer:up"}, kinds(doc.Dispatches()))
	})
}

func TestWaitForElementState(t *testing.T) {
	ctx := context.Background()

	t.Run("hidden", func(t *testing.T) {
		doc := enginetest.NewDocument()
		el := doc.Add(nil, button("toast", 0, 0))
		after(t, doc, 100*time.Millisecond, func() { el.Hidden = true })
		e := newEngine(t, doc)

		start := time.Now()
		require.NoError(t, e.WaitForElementState(ctx, engine.NewLocator("#toast"), engine.StateHidden, engine.ActionOptions{}))
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("detached and hidden hold for missing elements", func(t *testing.T) {
		doc := enginetest.NewDocument()
		e := newEngine(t, doc)

		require.NoError(t, e.WaitForElementState(ctx, engine.NewLocator("#gone"), engine.StateDetached, engine.ActionOptions{}))
		require.NoError(t, e.WaitForElementState(ctx, engine.NewLocator("#gone"), engine.StateHidden, engine.ActionOptions{}))
	})

	t.Run("enabled and disabled", func(t *testing.T) {
		doc := enginetest.NewDocument()
		el := doc.Add(nil, button("save", 0, 0))
		e := newEngine(t, doc)

		require.NoError(t, e.WaitForElementState(ctx, engine.NewLocator("#save"), engine.StateEnabled, engine.ActionOptions{}))
		err := e.WaitForElementState(ctx, engine.NewLocator("#save"), engine.StateDisabled, engine.ActionOptions{Timeout: 100 * time.Millisecond})
		ae := actionError(t, err)
		assert.Equal(t, engine.KindActionTimeout, ae.Kind)
		assert.Equal(t, "wait_for_state", ae.Action)
		assert.Contains(t, err.Error(), "waiting for element to be disabled")

		doc.Update(func() { el.Disabled = true })
		require.NoError(t, e.WaitForElementState(ctx, engine.NewLocator("#save"), engine.StateDisabled, engine.ActionOptions{}))
	})

	t.Run("handle detached", func(t *testing.T) {
		doc := enginetest.NewDocument()
		el := doc.Add(nil, button("save", 0, 0))
		e := newEngine(t, doc)

		h, err := e.Resolve(ctx, engine.NewLocator("#save"), engine.ActionOptions{})
		require.NoError(t, err)
		doc.Remove(el)

		require.NoError(t, e.WaitForElementState(ctx, h, engine.StateDetached, engine.ActionOptions{}))
		err = e.WaitForElementState(ctx, h, engine.StateVisible, engine.ActionOptions{})
		assert.Equal(t, engine.KindDetachedHandle, engine.KindOf(err))

		h.Dispose()
		require.NoError(t, e.WaitForElementState(ctx, h, engine.StateDetached, engine.ActionOptions{}))
	})

	t.Run("unknown state", func(t *testing.T) {
		doc := enginetest.NewDocument()
		e := newEngine(t, doc)

		err := e.WaitForElementState(ctx, engine.NewLocator("#save"), engine.ElementState("focused"), engine.ActionOptions{})
		require.Error(t, err)
		assert.Equal(t, engine.KindInvalidArgument, engine.KindOf(err))
	})
}
