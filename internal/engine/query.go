package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

type partKind int

const (
	partSelector partKind = iota
	partFilter
	partNth
)

type queryPart struct {
	kind     partKind
	selector string
	filter   Filter
	nth      int
}

func (p queryPart) String() string {
	switch p.kind {
	case partSelector:
		return p.selector
	case partNth:
		return "nth=" + strconv.Itoa(p.nth)
	default:
		return p.filter.String()
	}
}

// Filter narrows the elements matched so far. Zero fields are ignored.
type Filter struct {
	// HasText keeps elements whose text contains the value, case-insensitive with whitespace collapsed.
	HasText    string
	HasNotText string
	// Has keeps elements containing a match of the locator, evaluated relative to the element.
	Has    *Locator
	HasNot *Locator
	// Role and Name match the element's ARIA role exactly and its accessible name by substring.
	Role string
	Name string
}

func (f Filter) String() string {
	var parts []string
	if f.HasText != "" {
		parts = append(parts, fmt.Sprintf("has-text=%q", f.HasText))
	}
	if f.HasNotText != "" {
		parts = append(parts, fmt.Sprintf("has-not-text=%q", f.HasNotText))
	}
	if f.Has != nil {
		parts = append(parts, fmt.Sprintf("has=%q", f.Has.String()))
	}
	if f.HasNot != nil {
		parts = append(parts, fmt.Sprintf("has-not=%q", f.HasNot.String()))
	}
	if f.Role != "" {
		parts = append(parts, "role="+f.Role)
	}
	if f.Name != "" {
		parts = append(parts, fmt.Sprintf("name=%q", f.Name))
	}
	return strings.Join(parts, " ")
}

func (f Filter) empty() bool {
	return f.HasText == "" && f.HasNotText == "" && f.Has == nil && f.HasNot == nil && f.Role == "" && f.Name == ""
}

// QueryDescriptor is an immutable chain of selector, filter and index parts with an optional root handle.
type QueryDescriptor struct {
	root  *Handle
	parts []queryPart
}

// with returns a new descriptor with p appended. The receiver's slice is never shared.
func (q QueryDescriptor) with(p queryPart) QueryDescriptor {
	parts := make([]queryPart, len(q.parts), len(q.parts)+1)
	copy(parts, q.parts)
	return QueryDescriptor{root: q.root, parts: append(parts, p)}
}

// Root returns the handle the query is scoped to, if any.
func (q QueryDescriptor) Root() *Handle { return q.root }

func (q QueryDescriptor) String() string {
	strs := make([]string, 0, len(q.parts)+1)
	if q.root != nil {
		strs = append(strs, q.root.String())
	}
	for _, p := range q.parts {
		strs = append(strs, p.String())
	}
	return strings.Join(strs, " >> ")
}

// Target is either a Locator, re-resolved on every use, or a *Handle bound to one element.
type Target interface {
	fmt.Stringer
	isTarget()
}

// Locator is a re-resolving reference to elements. The zero value matches nothing.
// Locators are plain values and safe to share between goroutines.
type Locator struct {
	q QueryDescriptor
}

// NewLocator creates a locator matching selector in the whole document.
func NewLocator(selector string) Locator {
	return Locator{q: QueryDescriptor{}.with(queryPart{kind: partSelector, selector: selector})}
}

// Locator matches selector within the elements this locator matches.
func (l Locator) Locator(selector string) Locator {
	return Locator{q: l.q.with(queryPart{kind: partSelector, selector: selector})}
}

// Filter narrows the locator. An empty filter returns the locator unchanged.
func (l Locator) Filter(f Filter) Locator {
	if f.empty() {
		return l
	}
	return Locator{q: l.q.with(queryPart{kind: partFilter, filter: f})}
}

// Nth picks the element at index i; negative indexes count from the end.
func (l Locator) Nth(i int) Locator {
	return Locator{q: l.q.with(queryPart{kind: partNth, nth: i})}
}

func (l Locator) First() Locator { return l.Nth(0) }
func (l Locator) Last() Locator  { return l.Nth(-1) }

func (l Locator) Descriptor() QueryDescriptor { return l.q }

func (l Locator) String() string { return "locator(" + strconv.Quote(l.q.String()) + ")" }

func (Locator) isTarget() {}

// Handle is bound to the element it was resolved to. It becomes invalid when
// disposed or when the page navigates away from the document it came from.
type Handle struct {
	ref      ElementRef
	epoch    uint64
	origin   string
	disposed atomic.Bool
}

func newHandle(ref ElementRef, epoch uint64, origin string) *Handle {
	return &Handle{ref: ref, epoch: epoch, origin: origin}
}

// Ref returns the underlying element reference.
func (h *Handle) Ref() ElementRef { return h.ref }

// Dispose invalidates the handle. It is safe to call more than once.
func (h *Handle) Dispose() { h.disposed.Store(true) }

// Disposed reports whether Dispose was called.
func (h *Handle) Disposed() bool { return h.disposed.Load() }

// Locator returns a locator matching selector under this handle's element.
func (h *Handle) Locator(selector string) Locator {
	return Locator{q: QueryDescriptor{root: h}.with(queryPart{kind: partSelector, selector: selector})}
}

func (h *Handle) String() string {
	if h.origin != "" {
		return "handle(" + h.origin + ")"
	}
	return "handle(" + h.ref.Key() + ")"
}

func (*Handle) isTarget() {}
