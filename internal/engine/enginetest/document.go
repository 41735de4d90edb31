// Package enginetest provides an in-memory document that implements the
// engine's DOM, Input and Navigation backends, for tests.
package enginetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/engine"
)

// Element is a fake DOM element. Mutate fields of an attached element only inside Document.Update.
type Element struct {
	ID              string
	Tag             string
	Type            string
	Role            string
	Name            string
	Text            string
	Selectors       []string
	Bounds          schemas.Rect
	Hidden          bool
	Disabled        bool
	ReadOnly        bool
	Checked         bool
	Multiple        bool
	ContentEditable bool
	// PassThrough makes hit testing ignore the element, like pointer-events:none.
	PassThrough bool
	Options     []schemas.SelectOption
	LabelFor    *Element
	// Drift moves the element this many pixels right every time its bounds are read.
	Drift float64
	// IgnoreClicks keeps a checkbox's state unchanged when it is clicked.
	IgnoreClicks bool
	// Navigates makes a click or tap on the element start a navigation.
	Navigates bool

	// State written by input dispatches.
	Value    string
	Selected []string
	Files    []string

	parent    *Element
	connected bool
}

type ref struct{ el *Element }

func (r ref) Key() string { return r.el.ID }

// Ref returns the engine reference for el.
func Ref(el *Element) engine.ElementRef { return ref{el: el} }

// Dispatch records one physical input.
type Dispatch struct {
	Kind    string
	Target  string
	Pointer schemas.PointerAction
	Key     schemas.KeyAction
	Values  []string
	At      time.Time
}

// Document is a goroutine-safe fake page.
type Document struct {
	mu         sync.Mutex
	order      []*Element
	nextID     int
	dispatches []Dispatch
	scrolls    int
	focused    *Element

	// OnDispatch runs before a dispatch takes effect. A non-nil error aborts it.
	OnDispatch func(d Dispatch) error
	// OnHitTest runs after a hit test resolved, before its result is returned.
	// It may mutate the document.
	OnHitTest func(p schemas.Point, hit engine.ElementRef)

	epoch      uint64
	navPending bool
	navSettle  time.Time
	navErr     error
	navLength  time.Duration
}

// NewDocument creates an empty document. Clicking elements marked Navigates
// starts a navigation that settles after 50ms.
func NewDocument() *Document {
	return &Document{navLength: 50 * time.Millisecond}
}

// Add attaches el under parent (nil for the document root) and returns it.
func (d *Document) Add(parent, el *Element) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attach(parent, el)
	return el
}

func (d *Document) attach(parent, el *Element) {
	if el.ID == "" {
		d.nextID++
		el.ID = "e" + strconv.Itoa(d.nextID)
	}
	el.parent = parent
	el.connected = true
	d.order = append(d.order, el)
}

// Remove detaches el and its descendants.
func (d *Document) Remove(el *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detach(el)
}

func (d *Document) detach(el *Element) {
	kept := d.order[:0]
	for _, o := range d.order {
		if o == el || isDescendant(o, el) {
			o.connected = false
			continue
		}
		kept = append(kept, o)
	}
	d.order = kept
}

// Replace detaches old and attaches repl in its place, as a re-render would.
func (d *Document) Replace(old, repl *Element) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	parent := old.parent
	d.detach(old)
	d.attach(parent, repl)
	return repl
}

// Update runs fn with the document locked.
func (d *Document) Update(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// After runs fn under the document lock once delay has passed.
func (d *Document) After(delay time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(delay, func() { d.Update(fn) })
}

// Dispatches returns a copy of the physical inputs recorded so far.
func (d *Document) Dispatches() []Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Dispatch(nil), d.dispatches...)
}

// DispatchCount returns how many physical inputs were recorded.
func (d *Document) DispatchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dispatches)
}

// Scrolls returns how many times ScrollIntoView was called.
func (d *Document) Scrolls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrolls
}

// Focused returns the element that last received focus.
func (d *Document) Focused() *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

func isDescendant(el, ancestor *Element) bool {
	for p := el.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func (d *Document) live(r engine.ElementRef) (*Element, error) {
	rr, ok := r.(ref)
	if !ok {
		return nil, fmt.Errorf("foreign element reference %T", r)
	}
	if !rr.el.connected {
		return nil, fmt.Errorf("%s: %w", rr.el.ID, engine.ErrElementDetached)
	}
	return rr.el, nil
}

// -- engine.DOM --

func (d *Document) QueryAll(ctx context.Context, selector string, root engine.ElementRef) ([]engine.ElementRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var scope *Element
	if root != nil {
		el, err := d.live(root)
		if err != nil {
			return nil, err
		}
		scope = el
	}
	var out []engine.ElementRef
	for _, el := range d.order {
		if scope != nil && !isDescendant(el, scope) {
			continue
		}
		for _, s := range el.Selectors {
			if s == selector {
				out = append(out, ref{el: el})
				break
			}
		}
	}
	return out, nil
}

func (d *Document) IsConnected(ctx context.Context, r engine.ElementRef) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rr, ok := r.(ref)
	return ok && rr.el.connected, nil
}

func (d *Document) Bounds(ctx context.Context, r engine.ElementRef) (*schemas.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.live(r)
	if err != nil {
		return nil, err
	}
	if el.Hidden {
		return nil, nil
	}
	b := el.Bounds
	el.Bounds.X += el.Drift
	return &b, nil
}

func (d *Document) IsVisible(ctx context.Context, r engine.ElementRef) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.live(r)
	if err != nil {
		return false, err
	}
	return !el.Hidden, nil
}

func (d *Document) IsEnabled(ctx context.Context, r engine.ElementRef) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.live(r)
	if err != nil {
		return false, err
	}
	for e := el; e != nil; e = e.parent {
		if e.Disabled {
			return false, nil
		}
	}
	return true, nil
}

func (d *Document) IsEditable(ctx context.Context, r engine.ElementRef) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.live(r)
	if err != nil {
		return false, err
	}
	return !el.ReadOnly, nil
}

func (d *Document) HitTest(ctx context.Context, p schemas.Point) (engine.ElementRef, error) {
	d.mu.Lock()
	var hit engine.ElementRef
	if el := d.hit(p); el != nil {
		hit = ref{el: el}
	}
	hook := d.OnHitTest
	d.mu.Unlock()
	if hook != nil {
		hook(p, hit)
	}
	return hit, nil
}

// hit returns the last-attached visible element under p.
func (d *Document) hit(p schemas.Point) *Element {
	for i := len(d.order) - 1; i >= 0; i-- {
		el := d.order[i]
		if el.Hidden || el.PassThrough || el.Bounds.Empty() {
			continue
		}
		if el.Bounds.Contains(p) {
			return el
		}
	}
	return nil
}

func (d *Document) Contains(ctx context.Context, ancestor, node engine.ElementRef) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, err := d.live(ancestor)
	if err != nil {
		return false, err
	}
	n, ok := node.(ref)
	if !ok {
		return false, nil
	}
	return n.el == a || isDescendant(n.el, a), nil
}

func (d *Document) Describe(ctx context.Context, r engine.ElementRef) (*schemas.ElementInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.live(r)
	if err != nil {
		return nil, err
	}
	return &schemas.ElementInfo{
		TagName:         el.Tag,
		Type:            el.Type,
		Role:            el.Role,
		Name:            el.Name,
		Text:            el.Text,
		Checked:         el.Checked,
		Multiple:        el.Multiple,
		ContentEditable: el.ContentEditable,
	}, nil
}

func (d *Document) Options(ctx context.Context, r engine.ElementRef) ([]schemas.SelectOption, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.live(r)
	if err != nil {
		return nil, err
	}
	return append([]schemas.SelectOption(nil), el.Options...), nil
}

func (d *Document) LabeledControl(ctx context.Context, r engine.ElementRef) (engine.ElementRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.live(r)
	if err != nil {
		return nil, err
	}
	if el.LabelFor == nil || !el.LabelFor.connected {
		return nil, nil
	}
	return ref{el: el.LabelFor}, nil
}

// -- engine.Input --

// record runs the OnDispatch hook without the lock held, then appends the dispatch.
func (d *Document) record(disp Dispatch) error {
	disp.At = time.Now()
	if hook := d.OnDispatch; hook != nil {
		if err := hook(disp); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.dispatches = append(d.dispatches, disp)
	d.mu.Unlock()
	return nil
}

func (d *Document) DispatchPointer(ctx context.Context, a schemas.PointerAction) error {
	d.mu.Lock()
	target := d.hit(a.Point)
	d.mu.Unlock()
	disp := Dispatch{Kind: "pointer:" + string(a.Kind), Pointer: a}
	if target != nil {
		disp.Target = target.ID
	}
	if err := d.record(disp); err != nil {
		return err
	}
	if a.Kind != schemas.PointerClick && a.Kind != schemas.PointerTap {
		return nil
	}
	if a.Kind == schemas.PointerClick && a.ClickCount > 1 {
		// Only the first click of a sequence toggles.
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if target == nil {
		return nil
	}
	if !target.IgnoreClicks && (target.Type == "checkbox" || target.Role == "checkbox") {
		target.Checked = !target.Checked
	}
	if !target.IgnoreClicks && target.Type == "radio" {
		target.Checked = true
	}
	if target.Navigates {
		d.startNavigation(d.navLength, nil)
	}
	return nil
}

func (d *Document) DispatchKey(ctx context.Context, a schemas.KeyAction) error {
	d.mu.Lock()
	target := d.focused
	d.mu.Unlock()
	disp := Dispatch{Kind: "key:" + string(a.Kind), Key: a}
	if target != nil {
		disp.Target = target.ID
	}
	if err := d.record(disp); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if target != nil && target.connected && len(a.Key) == 1 {
		target.Value += a.Key
	}
	return nil
}

func (d *Document) ScrollIntoView(ctx context.Context, r engine.ElementRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.live(r); err != nil {
		return err
	}
	d.scrolls++
	return nil
}

func (d *Document) Focus(ctx context.Context, r engine.ElementRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.live(r)
	if err != nil {
		return err
	}
	d.focused = el
	return nil
}

func (d *Document) SetValue(ctx context.Context, r engine.ElementRef, value string) error {
	el, err := d.withLive(r)
	if err != nil {
		return err
	}
	if err := d.record(Dispatch{Kind: "fill", Target: el.ID, Values: []string{value}}); err != nil {
		return err
	}
	d.Update(func() { el.Value = value })
	return nil
}

func (d *Document) SelectOptions(ctx context.Context, r engine.ElementRef, values []string) ([]string, error) {
	el, err := d.withLive(r)
	if err != nil {
		return nil, err
	}
	if err := d.record(Dispatch{Kind: "select", Target: el.ID, Values: values}); err != nil {
		return nil, err
	}
	d.Update(func() { el.Selected = append([]string(nil), values...) })
	return values, nil
}

func (d *Document) SetInputFiles(ctx context.Context, r engine.ElementRef, files []string) error {
	el, err := d.withLive(r)
	if err != nil {
		return err
	}
	if err := d.record(Dispatch{Kind: "files", Target: el.ID, Values: files}); err != nil {
		return err
	}
	d.Update(func() { el.Files = append([]string(nil), files...) })
	return nil
}

func (d *Document) withLive(r engine.ElementRef) (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live(r)
}

// -- engine.Navigation --

// StartNavigation marks a navigation pending for length, after which it settles with err.
func (d *Document) StartNavigation(length time.Duration, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startNavigation(length, err)
}

func (d *Document) startNavigation(length time.Duration, err error) {
	d.navPending = true
	d.navSettle = time.Now().Add(length)
	d.navErr = err
}

// Navigate replaces the document: every handle created before becomes stale.
func (d *Document) Navigate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epoch++
}

func (d *Document) IsNavigationPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.navPending
}

func (d *Document) AwaitSettled(ctx context.Context) error {
	d.mu.Lock()
	if !d.navPending {
		d.mu.Unlock()
		return nil
	}
	wait := time.Until(d.navSettle)
	d.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navPending = false
	if d.navErr != nil {
		return d.navErr
	}
	d.epoch++
	return nil
}

func (d *Document) Epoch() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.epoch
}
