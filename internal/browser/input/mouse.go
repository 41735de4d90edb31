// internal/browser/input/mouse.go

package input

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/config"
)

// buttonBits maps buttons to the CDP "buttons" bitfield.
var buttonBits = map[schemas.MouseButton]int64{
	schemas.ButtonLeft:   1,
	schemas.ButtonRight:  2,
	schemas.ButtonMiddle: 4,
}

// Mouse tracks the pointer position and pressed buttons of one page.
type Mouse struct {
	// mu serializes event sequences so a click's press and release are never
	// interleaved with another caller's events.
	mu       sync.Mutex
	executor Executor
	cfg      config.InputConfig
	logger   *zap.Logger
	rng      *rand.Rand
	pos      schemas.Point
	buttons  int64
}

// NewMouse creates a mouse at the viewport origin with no buttons pressed.
func NewMouse(executor Executor, cfg config.InputConfig, logger *zap.Logger) *Mouse {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mouse{
		executor: executor,
		cfg:      cfg,
		logger:   logger.Named("mouse"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Position returns the last dispatched pointer position.
func (m *Mouse) Position() schemas.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Buttons returns the bitfield of currently pressed buttons.
func (m *Mouse) Buttons() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buttons
}

// Dispatch performs one engine pointer primitive.
func (m *Mouse) Dispatch(ctx context.Context, a schemas.PointerAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch a.Kind {
	case schemas.PointerMove:
		return m.move(ctx, a.Point, a.Modifiers)
	case schemas.PointerDown:
		if err := m.move(ctx, a.Point, a.Modifiers); err != nil {
			return err
		}
		return m.press(ctx, a.Button, a.ClickCount, a.Modifiers)
	case schemas.PointerUp:
		if err := m.move(ctx, a.Point, a.Modifiers); err != nil {
			return err
		}
		return m.release(ctx, a.Button, a.ClickCount, a.Modifiers)
	case schemas.PointerClick:
		return m.click(ctx, a.Point, a.Button, a.ClickCount, a.Modifiers)
	default:
		return fmt.Errorf("mouse: unsupported pointer action %q", a.Kind)
	}
}

// Click moves to p and presses and releases button, holding it for a short randomized time.
func (m *Mouse) Click(ctx context.Context, p schemas.Point, button schemas.MouseButton, clickCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.click(ctx, p, button, clickCount, schemas.ModNone)
}

// Release lifts every pressed button at the current position. It ignores
// ctx's cancellation so a pressed button never outlives an aborted gesture.
func (m *Mouse) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx = context.WithoutCancel(ctx)
	for _, b := range []schemas.MouseButton{schemas.ButtonLeft, schemas.ButtonRight, schemas.ButtonMiddle} {
		if m.buttons&buttonBits[b] == 0 {
			continue
		}
		if err := m.release(ctx, b, 1, schemas.ModNone); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mouse) click(ctx context.Context, p schemas.Point, button schemas.MouseButton, clickCount int, mods schemas.KeyModifier) error {
	if clickCount <= 0 {
		clickCount = 1
	}
	if err := m.move(ctx, p, mods); err != nil {
		return err
	}
	if err := m.press(ctx, button, clickCount, mods); err != nil {
		return err
	}
	if err := m.executor.Sleep(ctx, m.holdDuration()); err != nil {
		// The button is down; it must come back up even though the caller gave up.
		_ = m.release(context.WithoutCancel(ctx), button, clickCount, mods)
		return err
	}
	return m.release(ctx, button, clickCount, mods)
}

func (m *Mouse) move(ctx context.Context, p schemas.Point, mods schemas.KeyModifier) error {
	data := schemas.MouseEventData{
		Type:      schemas.MouseMove,
		X:         p.X,
		Y:         p.Y,
		Button:    m.primaryPressed(),
		Buttons:   m.buttons,
		Modifiers: mods,
	}
	if err := m.executor.DispatchMouseEvent(ctx, data); err != nil {
		return fmt.Errorf("mouse: move to (%.1f, %.1f): %w", p.X, p.Y, err)
	}
	m.pos = p
	return nil
}

func (m *Mouse) press(ctx context.Context, button schemas.MouseButton, clickCount int, mods schemas.KeyModifier) error {
	if button == "" || button == schemas.ButtonNone {
		button = schemas.ButtonLeft
	}
	buttons := m.buttons | buttonBits[button]
	data := schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          m.pos.X,
		Y:          m.pos.Y,
		Button:     button,
		Buttons:    buttons,
		ClickCount: clickCount,
		Modifiers:  mods,
	}
	if err := m.executor.DispatchMouseEvent(ctx, data); err != nil {
		return fmt.Errorf("mouse: press %s: %w", button, err)
	}
	m.buttons = buttons
	return nil
}

func (m *Mouse) release(ctx context.Context, button schemas.MouseButton, clickCount int, mods schemas.KeyModifier) error {
	if button == "" || button == schemas.ButtonNone {
		button = schemas.ButtonLeft
	}
	buttons := m.buttons &^ buttonBits[button]
	data := schemas.MouseEventData{
		Type:       schemas.MouseRelease,
		X:          m.pos.X,
		Y:          m.pos.Y,
		Button:     button,
		Buttons:    buttons,
		ClickCount: clickCount,
		Modifiers:  mods,
	}
	// The button state is cleared even on failure; a browser that rejected
	// the release has lost track of the press anyway.
	m.buttons = buttons
	if err := m.executor.DispatchMouseEvent(ctx, data); err != nil {
		m.logger.Debug("Mouse release failed.", zap.String("button", string(button)), zap.Error(err))
		return fmt.Errorf("mouse: release %s: %w", button, err)
	}
	return nil
}

// primaryPressed reports the button a move event carries, for drags.
func (m *Mouse) primaryPressed() schemas.MouseButton {
	switch {
	case m.buttons&buttonBits[schemas.ButtonLeft] != 0:
		return schemas.ButtonLeft
	case m.buttons&buttonBits[schemas.ButtonRight] != 0:
		return schemas.ButtonRight
	case m.buttons&buttonBits[schemas.ButtonMiddle] != 0:
		return schemas.ButtonMiddle
	}
	return schemas.ButtonNone
}

// holdDuration is uniform in [ClickHoldMinMs, ClickHoldMaxMs].
func (m *Mouse) holdDuration() time.Duration {
	lo, hi := m.cfg.ClickHoldMinMs, m.cfg.ClickHoldMaxMs
	ms := lo
	if hi > lo {
		ms += m.rng.Intn(hi - lo + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

// Touchscreen dispatches taps.
type Touchscreen struct {
	executor Executor
}

// NewTouchscreen creates a touchscreen over executor.
func NewTouchscreen(executor Executor) *Touchscreen {
	return &Touchscreen{executor: executor}
}

// Tap touches p and lifts the finger.
func (t *Touchscreen) Tap(ctx context.Context, p schemas.Point, mods schemas.KeyModifier) error {
	if err := t.executor.DispatchTouchEvent(ctx, TouchEventData{Type: TouchStart, Points: []schemas.Point{p}, Modifiers: mods}); err != nil {
		return fmt.Errorf("touch: start at (%.1f, %.1f): %w", p.X, p.Y, err)
	}
	if err := t.executor.DispatchTouchEvent(context.WithoutCancel(ctx), TouchEventData{Type: TouchEnd, Modifiers: mods}); err != nil {
		return fmt.Errorf("touch: end: %w", err)
	}
	return nil
}
