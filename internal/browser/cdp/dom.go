package cdp

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/engine"
)

// QueryAll implements engine.DOM.
func (p *Page) QueryAll(ctx context.Context, selector string, root engine.ElementRef) ([]engine.ElementRef, error) {
	const fn = `(ag, selector, root) => {
		const scope = root ? ag.get(root) : document;
		return Array.from(scope.querySelectorAll(selector), (el) => ag.key(el));
	}`
	var keys []string
	if err := p.call(ctx, fn, &keys, selector, keyOf(root)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	refs := make([]engine.ElementRef, len(keys))
	for i, k := range keys {
		refs[i] = nodeRef(k)
	}
	return refs, nil
}

// IsConnected implements engine.DOM.
func (p *Page) IsConnected(ctx context.Context, ref engine.ElementRef) (bool, error) {
	const fn = `(ag, key) => {
		const el = ag.lookup(key);
		return !!el && el.isConnected;
	}`
	var connected bool
	err := p.call(ctx, fn, &connected, keyOf(ref))
	return connected, err
}

// Bounds implements engine.DOM using the border box reported by DOM.getBoxModel.
func (p *Page) Bounds(ctx context.Context, ref engine.ElementRef) (*schemas.Rect, error) {
	var model *dom.BoxModel
	err := p.withObject(ctx, ref, func(ctx context.Context, id runtime.RemoteObjectID) error {
		m, err := dom.GetBoxModel().WithObjectID(id).Do(ctx)
		if err != nil {
			if strings.Contains(err.Error(), "Could not compute box model") {
				return nil
			}
			return err
		}
		model = m
		return nil
	})
	if err != nil || model == nil {
		return nil, err
	}
	r, ok := schemas.RectFromQuad(model.Border)
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// IsVisible implements engine.DOM.
func (p *Page) IsVisible(ctx context.Context, ref engine.ElementRef) (bool, error) {
	const fn = `(ag, key) => {
		const el = ag.get(key);
		const style = getComputedStyle(el);
		if (style.visibility === 'hidden' || style.visibility === 'collapse') return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	}`
	var visible bool
	err := p.call(ctx, fn, &visible, keyOf(ref))
	return visible, err
}

// IsEnabled implements engine.DOM.
func (p *Page) IsEnabled(ctx context.Context, ref engine.ElementRef) (bool, error) {
	const fn = `(ag, key) => {
		const el = ag.get(key);
		const controls = ['BUTTON', 'INPUT', 'SELECT', 'TEXTAREA', 'OPTION', 'OPTGROUP'];
		if (controls.includes(el.tagName) && el.disabled) return false;
		if (controls.includes(el.tagName) && el.closest('fieldset:disabled')) {
			const legend = el.closest('legend');
			if (!legend || legend.parentElement.disabled) return false;
		}
		const aria = el.closest('[aria-disabled]');
		return !(aria && aria.getAttribute('aria-disabled') === 'true');
	}`
	var enabled bool
	err := p.call(ctx, fn, &enabled, keyOf(ref))
	return enabled, err
}

// IsEditable implements engine.DOM.
func (p *Page) IsEditable(ctx context.Context, ref engine.ElementRef) (bool, error) {
	const fn = `(ag, key) => {
		const el = ag.get(key);
		if (el.isContentEditable) return true;
		if (!['INPUT', 'TEXTAREA', 'SELECT'].includes(el.tagName)) return false;
		if (el.readOnly) return false;
		return el.getAttribute('aria-readonly') !== 'true';
	}`
	var editable bool
	err := p.call(ctx, fn, &editable, keyOf(ref))
	return editable, err
}

// HitTest implements engine.DOM with DOM.getNodeForLocation.
func (p *Page) HitTest(ctx context.Context, point schemas.Point) (engine.ElementRef, error) {
	const fn = `function() {
		const el = this.nodeType === Node.ELEMENT_NODE ? this : this.parentElement;
		return el ? ` + registryJS + `.key(el) : '';
	}`
	var key string
	err := p.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		x, y := int64(math.Floor(point.X)), int64(math.Floor(point.Y))
		backendID, _, _, err := dom.GetNodeForLocation(x, y).
			WithIgnorePointerEventsNone(false).
			Do(ctx)
		if err != nil {
			if strings.Contains(err.Error(), "No node found") {
				return nil
			}
			return err
		}
		obj, err := dom.ResolveNode().WithBackendNodeID(backendID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		return json.Unmarshal(res.Value, &key)
	}))
	if err != nil {
		return nil, classify(err)
	}
	if key == "" {
		return nil, nil
	}
	return nodeRef(key), nil
}

// Contains implements engine.DOM.
func (p *Page) Contains(ctx context.Context, ancestor, node engine.ElementRef) (bool, error) {
	const fn = `(ag, ancestor, node) => ag.get(ancestor).contains(ag.get(node))`
	var contains bool
	err := p.call(ctx, fn, &contains, keyOf(ancestor), keyOf(node))
	return contains, err
}

// Describe implements engine.DOM.
func (p *Page) Describe(ctx context.Context, ref engine.ElementRef) (*schemas.ElementInfo, error) {
	const fn = `(ag, key) => {
		const el = ag.get(key);
		const text = (el.innerText !== undefined ? el.innerText : el.textContent) || '';
		let name = el.getAttribute('aria-label') || '';
		if (!name && el.labels && el.labels.length) name = el.labels[0].textContent || '';
		if (!name) name = el.getAttribute('title') || el.getAttribute('alt') || text;
		const role = el.getAttribute('role') || '';
		let checked = false;
		if (el.tagName === 'INPUT' && (el.type === 'checkbox' || el.type === 'radio')) {
			checked = el.checked;
		} else if (role) {
			checked = el.getAttribute('aria-checked') === 'true';
		}
		return {
			tagName: el.tagName.toUpperCase(),
			type: el.tagName === 'INPUT' ? (el.type || 'text').toLowerCase() : '',
			role,
			name: name.trim(),
			text,
			checked,
			multiple: !!el.multiple,
			contentEditable: !!el.isContentEditable,
		};
	}`
	var info schemas.ElementInfo
	if err := p.call(ctx, fn, &info, keyOf(ref)); err != nil {
		return nil, err
	}
	return &info, nil
}

// Options implements engine.DOM.
func (p *Page) Options(ctx context.Context, ref engine.ElementRef) ([]schemas.SelectOption, error) {
	const fn = `(ag, key) => {
		const el = ag.get(key);
		if (el.tagName !== 'SELECT') return [];
		return Array.from(el.options, (o, i) => ({
			value: o.value,
			label: o.label || o.textContent,
			index: i,
			disabled: o.disabled,
		}));
	}`
	var opts []schemas.SelectOption
	err := p.call(ctx, fn, &opts, keyOf(ref))
	return opts, err
}

// LabeledControl implements engine.DOM.
func (p *Page) LabeledControl(ctx context.Context, ref engine.ElementRef) (engine.ElementRef, error) {
	const fn = `(ag, key) => {
		const el = ag.get(key);
		if (el.tagName !== 'LABEL' || !el.control) return '';
		return ag.key(el.control);
	}`
	var key string
	if err := p.call(ctx, fn, &key, keyOf(ref)); err != nil || key == "" {
		return nil, err
	}
	return nodeRef(key), nil
}
