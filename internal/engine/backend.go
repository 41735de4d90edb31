// internal/engine/backend.go

package engine

import (
	"context"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

// ElementRef is an opaque reference to a live element, minted by a DOM backend.
// Two refs with the same Key denote the same element instance.
type ElementRef interface {
	Key() string
}

// DOM answers questions about the live document. Implementations return
// ErrElementDetached (possibly wrapped) when a ref no longer denotes a connected element.
type DOM interface {
	// QueryAll returns the elements matching selector, searching under root or the whole document when root is nil.
	QueryAll(ctx context.Context, selector string, root ElementRef) ([]ElementRef, error)
	IsConnected(ctx context.Context, ref ElementRef) (bool, error)
	// Bounds returns the border box in viewport coordinates, or nil if the element is not rendered.
	Bounds(ctx context.Context, ref ElementRef) (*schemas.Rect, error)
	// IsVisible reports computed visibility (not visibility:hidden, not display:none).
	IsVisible(ctx context.Context, ref ElementRef) (bool, error)
	// IsEnabled reports false for disabled form controls and descendants of disabled fieldsets.
	IsEnabled(ctx context.Context, ref ElementRef) (bool, error)
	// IsEditable reports whether the element accepts text input and is not read-only.
	IsEditable(ctx context.Context, ref ElementRef) (bool, error)
	// HitTest returns the topmost element at point, or nil when the point is outside the document.
	HitTest(ctx context.Context, point schemas.Point) (ElementRef, error)
	// Contains reports whether node is ancestor or one of its descendants.
	Contains(ctx context.Context, ancestor, node ElementRef) (bool, error)
	Describe(ctx context.Context, ref ElementRef) (*schemas.ElementInfo, error)
	// Options lists the <option> children of a <select>.
	Options(ctx context.Context, ref ElementRef) ([]schemas.SelectOption, error)
	// LabeledControl returns the control a <label> points at, or nil.
	LabeledControl(ctx context.Context, ref ElementRef) (ElementRef, error)
}

// Input performs physical input. Pointer coordinates are viewport CSS pixels.
type Input interface {
	DispatchPointer(ctx context.Context, action schemas.PointerAction) error
	DispatchKey(ctx context.Context, action schemas.KeyAction) error
	// ScrollIntoView scrolls the element into the viewport if it is not already fully visible.
	ScrollIntoView(ctx context.Context, ref ElementRef) error
	Focus(ctx context.Context, ref ElementRef) error
	// SetValue clears the element, sets value and emits input and change events.
	SetValue(ctx context.Context, ref ElementRef, value string) error
	// SelectOptions selects the options with the given values and returns the values now selected.
	SelectOptions(ctx context.Context, ref ElementRef, values []string) ([]string, error)
	SetInputFiles(ctx context.Context, ref ElementRef, files []string) error
}

// Navigation reports on navigations of the page the engine drives.
type Navigation interface {
	IsNavigationPending() bool
	// AwaitSettled blocks until the pending navigation commits and loads, or ctx ends.
	AwaitSettled(ctx context.Context) error
	// Epoch increments every time the main document is replaced.
	Epoch() uint64
}

// staticNavigation is used when no watcher is supplied: nothing ever navigates.
type staticNavigation struct{}

func (staticNavigation) IsNavigationPending() bool            { return false }
func (staticNavigation) AwaitSettled(ctx context.Context) error { return nil }
func (staticNavigation) Epoch() uint64                         { return 0 }
