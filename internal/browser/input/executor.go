// internal/browser/input/executor.go

// Package input turns pointer and keyboard primitives into the low-level
// mouse, key and touch events a browser accepts, tracking pointer position
// and pressed buttons between calls.
package input

import (
	"context"
	"time"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

// Executor defines the low-level event surface Mouse, Keyboard and Touchscreen drive.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	DispatchKeyEvent(ctx context.Context, data KeyEventData) error
	DispatchTouchEvent(ctx context.Context, data TouchEventData) error
}

// KeyEventType mirrors the CDP Input.dispatchKeyEvent types.
type KeyEventType string

const (
	KeyEventDown    KeyEventType = "keyDown"
	KeyEventUp      KeyEventType = "keyUp"
	KeyEventRawDown KeyEventType = "rawKeyDown"
	KeyEventChar    KeyEventType = "char"
)

// KeyEventData is one keyboard event.
type KeyEventData struct {
	Type KeyEventType `json:"type"`
	Key  string       `json:"key"`
	Code string       `json:"code,omitempty"`
	// Text is what the event inserts. Empty for non-printing keys.
	Text      string              `json:"text,omitempty"`
	KeyCode   int64               `json:"keyCode,omitempty"`
	Modifiers schemas.KeyModifier `json:"modifiers,omitempty"`
}

// TouchEventType mirrors the CDP Input.dispatchTouchEvent types.
type TouchEventType string

const (
	TouchStart TouchEventType = "touchStart"
	TouchEnd   TouchEventType = "touchEnd"
)

// TouchEventData is one touch event. Points is empty for touchEnd.
type TouchEventData struct {
	Type      TouchEventType      `json:"type"`
	Points    []schemas.Point     `json:"points"`
	Modifiers schemas.KeyModifier `json:"modifiers,omitempty"`
}
