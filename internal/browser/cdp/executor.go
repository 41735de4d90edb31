// internal/browser/cdp/executor.go

// Package cdp implements the engine's DOM, Input and Navigation backends over
// the Chrome DevTools Protocol using chromedp.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"time"

	cdpinput "github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/browser/input"
)

const (
	mouseEventTimeout = 10 * time.Second
	keyEventTimeout   = 5 * time.Second
)

// cdpExecutor adapts chromedp to input.Executor. Every event goes through
// runActionsFunc, which ties the operation to the page's tab context.
type cdpExecutor struct {
	logger         *zap.Logger
	runActionsFunc func(ctx context.Context, actions ...chromedp.Action) error
}

var _ input.Executor = (*cdpExecutor)(nil)

// Sleep pauses for d unless ctx ends first.
func (e *cdpExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return e.runActionsFunc(ctx, chromedp.Sleep(d))
}

// DispatchMouseEvent sends one Input.dispatchMouseEvent.
func (e *cdpExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	p := cdpinput.DispatchMouseEvent(cdpinput.MouseType(data.Type), data.X, data.Y).
		WithButton(cdpinput.MouseButton(data.Button)).
		WithButtons(data.Buttons).
		WithClickCount(int64(data.ClickCount)).
		WithModifiers(toCDPModifiers(data.Modifiers))

	if data.Type == schemas.MouseWheel {
		p = p.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
	}
	return e.withTimeout(ctx, "DispatchMouseEvent", mouseEventTimeout, p)
}

// DispatchKeyEvent sends one Input.dispatchKeyEvent.
func (e *cdpExecutor) DispatchKeyEvent(ctx context.Context, data input.KeyEventData) error {
	p := cdpinput.DispatchKeyEvent(cdpinput.KeyType(data.Type)).
		WithKey(data.Key).
		WithModifiers(toCDPModifiers(data.Modifiers))
	if data.Code != "" {
		p = p.WithCode(data.Code)
	}
	if data.KeyCode != 0 {
		p = p.WithWindowsVirtualKeyCode(data.KeyCode).WithNativeVirtualKeyCode(data.KeyCode)
	}
	if data.Text != "" {
		p = p.WithText(data.Text).WithUnmodifiedText(data.Text)
	}
	return e.withTimeout(ctx, "DispatchKeyEvent", keyEventTimeout, p)
}

// DispatchTouchEvent sends one Input.dispatchTouchEvent.
func (e *cdpExecutor) DispatchTouchEvent(ctx context.Context, data input.TouchEventData) error {
	points := make([]*cdpinput.TouchPoint, 0, len(data.Points))
	for _, pt := range data.Points {
		points = append(points, &cdpinput.TouchPoint{X: pt.X, Y: pt.Y})
	}
	p := cdpinput.DispatchTouchEvent(cdpinput.TouchType(data.Type), points).
		WithModifiers(toCDPModifiers(data.Modifiers))
	return e.withTimeout(ctx, "DispatchTouchEvent", mouseEventTimeout, p)
}

func (e *cdpExecutor) withTimeout(ctx context.Context, op string, timeout time.Duration, action chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := e.runActionsFunc(opCtx, action)
	// Only report our own timeout; the caller's deadline passes through untouched.
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		e.logger.Debug("cdpExecutor operation timed out.", zap.String("op", op), zap.Duration("timeout", timeout))
		return fmt.Errorf("cdpExecutor %s timed out after %v: %w", op, timeout, opCtx.Err())
	}
	return err
}

// toCDPModifiers maps the internal modifier bits to the protocol bitmask.
func toCDPModifiers(m schemas.KeyModifier) cdpinput.Modifier {
	var mods cdpinput.Modifier
	if m&schemas.ModAlt != 0 {
		mods |= cdpinput.ModifierAlt
	}
	if m&schemas.ModCtrl != 0 {
		mods |= cdpinput.ModifierCtrl
	}
	if m&schemas.ModMeta != 0 {
		mods |= cdpinput.ModifierMeta
	}
	if m&schemas.ModShift != 0 {
		mods |= cdpinput.ModifierShift
	}
	return mods
}
