// api/schemas/browser.go

package schemas

import "math"

// -- Geometry Schemas --

// Point is a coordinate in CSS pixels relative to the top-left of the viewport.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned bounding box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rect has no rendered area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Center returns the geometric center of the rect.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Offset translates a position relative to the rect's top-left corner into viewport coordinates.
func (r Rect) Offset(p Point) Point {
	return Point{X: r.X + p.X, Y: r.Y + p.Y}
}

// Contains reports whether p falls inside the rect (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Equal compares two rects with a sub-pixel tolerance, absorbing float jitter from layout.
func (r Rect) Equal(o Rect) bool {
	const eps = 0.01
	return math.Abs(r.X-o.X) < eps && math.Abs(r.Y-o.Y) < eps &&
		math.Abs(r.Width-o.Width) < eps && math.Abs(r.Height-o.Height) < eps
}

// RectFromQuad builds the bounding rect of a CDP quad (x1,y1 .. x4,y4).
func RectFromQuad(quad []float64) (Rect, bool) {
	if len(quad) < 8 {
		return Rect{}, false
	}
	minX, minY := quad[0], quad[1]
	maxX, maxY := quad[0], quad[1]
	for i := 2; i < 8; i += 2 {
		minX = math.Min(minX, quad[i])
		maxX = math.Max(maxX, quad[i])
		minY = math.Min(minY, quad[i+1])
		maxY = math.Max(maxY, quad[i+1])
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// -- Element Description Schemas --

// ElementInfo is a snapshot of the attributes the engine needs to validate action preconditions.
type ElementInfo struct {
	// TagName is upper case, e.g. "INPUT", "SELECT".
	TagName string `json:"tagName"`
	// Type is the lower-cased type attribute for inputs, empty otherwise.
	Type            string `json:"type,omitempty"`
	Role            string `json:"role,omitempty"`
	Name            string `json:"name,omitempty"`
	Text            string `json:"text,omitempty"`
	Checked         bool   `json:"checked"`
	Multiple        bool   `json:"multiple"`
	ContentEditable bool   `json:"contentEditable"`
}

// IsCheckable reports whether the element is a checkbox or radio input, or exposes a checkbox-like role.
func (e ElementInfo) IsCheckable() bool {
	if e.TagName == "INPUT" && (e.Type == "checkbox" || e.Type == "radio") {
		return true
	}
	switch e.Role {
	case "checkbox", "radio", "switch", "menuitemcheckbox", "menuitemradio":
		return true
	}
	return false
}

// unfillableInputTypes are input types that cannot receive free text.
var unfillableInputTypes = map[string]bool{
	"checkbox": true,
	"radio":    true,
	"file":     true,
	"button":   true,
	"submit":   true,
	"reset":    true,
	"image":    true,
	"hidden":   true,
	"range":    true,
	"color":    true,
}

// IsFillable reports whether a value can be filled into the element.
func (e ElementInfo) IsFillable() bool {
	switch e.TagName {
	case "TEXTAREA":
		return true
	case "INPUT":
		return !unfillableInputTypes[e.Type]
	}
	return e.ContentEditable
}

// IsSelect reports whether the element is a <select>.
func (e ElementInfo) IsSelect() bool { return e.TagName == "SELECT" }

// IsFileInput reports whether the element is an <input type=file>.
func (e ElementInfo) IsFileInput() bool { return e.TagName == "INPUT" && e.Type == "file" }

// SelectOption describes one <option> of a <select> element.
type SelectOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Index    int    `json:"index"`
	Disabled bool   `json:"disabled"`
}

// -- Low-Level Input Schemas --

// MouseEventType defines the type of a mouse event.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
	MouseWheel   MouseEventType = "mouseWheel"
)

// MouseButton defines the mouse button being pressed.
type MouseButton string

const (
	ButtonNone   MouseButton = "none"
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// MouseEventData encapsulates all data for a mouse event.
type MouseEventData struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Button     MouseButton    `json:"button"`
	Buttons    int64          `json:"buttons"`
	ClickCount int            `json:"clickCount"`
	Modifiers  KeyModifier    `json:"modifiers"`
	DeltaX     float64        `json:"deltaX"`
	DeltaY     float64        `json:"deltaY"`
}

// -- Engine Input Primitives --

// PointerKind is the physical pointer primitive requested by the engine.
type PointerKind string

const (
	PointerMove  PointerKind = "move"
	PointerDown  PointerKind = "down"
	PointerUp    PointerKind = "up"
	PointerClick PointerKind = "click"
	PointerTap   PointerKind = "tap"
)

// PointerAction is one pointer primitive at a viewport point.
type PointerAction struct {
	Kind   PointerKind `json:"kind"`
	Point  Point       `json:"point"`
	Button MouseButton `json:"button,omitempty"`
	// ClickCount is the click sequence number (2 for the second click of a double click).
	ClickCount int         `json:"clickCount,omitempty"`
	Modifiers  KeyModifier `json:"modifiers,omitempty"`
}

// KeyKind is the keyboard primitive requested by the engine.
type KeyKind string

const (
	KeyDown  KeyKind = "down"
	KeyUp    KeyKind = "up"
	KeyPress KeyKind = "press"
	// KeyChar inserts text without key down/up, used for characters missing from the layout.
	KeyChar KeyKind = "char"
)

// KeyAction is one keyboard primitive.
type KeyAction struct {
	Kind      KeyKind     `json:"kind"`
	Key       string      `json:"key"`
	Modifiers KeyModifier `json:"modifiers,omitempty"`
}
