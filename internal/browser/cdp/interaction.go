// internal/browser/cdp/interaction.go

package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/engine"
)

// DispatchPointer implements engine.Input. Taps go to the touchscreen, everything else to the mouse.
func (p *Page) DispatchPointer(ctx context.Context, action schemas.PointerAction) error {
	if action.Kind == schemas.PointerTap {
		return p.touch.Tap(ctx, action.Point, action.Modifiers)
	}
	return p.mouse.Dispatch(ctx, action)
}

// DispatchKey implements engine.Input.
func (p *Page) DispatchKey(ctx context.Context, action schemas.KeyAction) error {
	return p.keyboard.Dispatch(ctx, action)
}

// ReleaseInput lifts any mouse button left pressed by an interrupted gesture.
func (p *Page) ReleaseInput(ctx context.Context) error {
	return p.mouse.Release(ctx)
}

// ScrollIntoView implements engine.Input with DOM.scrollIntoViewIfNeeded.
func (p *Page) ScrollIntoView(ctx context.Context, ref engine.ElementRef) error {
	return p.withObject(ctx, ref, func(ctx context.Context, id runtime.RemoteObjectID) error {
		return dom.ScrollIntoViewIfNeeded().WithObjectID(id).Do(ctx)
	})
}

// Focus implements engine.Input.
func (p *Page) Focus(ctx context.Context, ref engine.ElementRef) error {
	return p.withObject(ctx, ref, func(ctx context.Context, id runtime.RemoteObjectID) error {
		return dom.Focus().WithObjectID(id).Do(ctx)
	})
}

// SetValue implements engine.Input. Inputs go through the native value setter so
// frameworks that patch the instance property still observe the change.
func (p *Page) SetValue(ctx context.Context, ref engine.ElementRef, value string) error {
	const fn = `(ag, key, value) => {
		const el = ag.get(key);
		el.focus();
		if (el.isContentEditable) {
			el.textContent = value;
		} else {
			const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
			const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
			setter.call(el, value);
		}
		el.dispatchEvent(new Event('input', { bubbles: true, composed: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	}`
	if err := p.call(ctx, fn, nil, keyOf(ref), value); err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	return nil
}

// SelectOptions implements engine.Input.
func (p *Page) SelectOptions(ctx context.Context, ref engine.ElementRef, values []string) ([]string, error) {
	const fn = `(ag, key, values) => {
		const el = ag.get(key);
		const wanted = new Set(values);
		for (const o of el.options) {
			o.selected = wanted.has(o.value);
			if (o.selected && !el.multiple) wanted.clear();
		}
		el.dispatchEvent(new Event('input', { bubbles: true, composed: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return Array.from(el.selectedOptions, (o) => o.value);
	}`
	if values == nil {
		values = []string{}
	}
	var selected []string
	if err := p.call(ctx, fn, &selected, keyOf(ref), values); err != nil {
		return nil, fmt.Errorf("select options: %w", err)
	}
	return selected, nil
}

// SetInputFiles implements engine.Input with DOM.setFileInputFiles.
func (p *Page) SetInputFiles(ctx context.Context, ref engine.ElementRef, files []string) error {
	if files == nil {
		files = []string{}
	}
	return p.withObject(ctx, ref, func(ctx context.Context, id runtime.RemoteObjectID) error {
		return dom.SetFileInputFiles(files).WithObjectID(id).Do(ctx)
	})
}
