// FILE: ./internal/browser/input/mouse_test.go

package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/config"
)

func testInputConfig() config.InputConfig {
	return config.InputConfig{ClickHoldMinMs: 40, ClickHoldMaxMs: 90, KeyHoldMs: 20}
}

func TestMouse_Click(t *testing.T) {
	exec := newMockExecutor(t)
	m := NewMouse(exec, testInputConfig(), zaptest.NewLogger(t))

	require.NoError(t, m.Click(context.Background(), schemas.Point{X: 10, Y: 20}, schemas.ButtonLeft, 1))

	events := exec.mouse()
	require.Len(t, events, 3)
	assert.Equal(t, schemas.MouseMove, events[0].Type)
	assert.Equal(t, schemas.MousePress, events[1].Type)
	assert.Equal(t, int64(1), events[1].Buttons)
	assert.Equal(t, 1, events[1].ClickCount)
	assert.Equal(t, schemas.MouseRelease, events[2].Type)
	assert.Equal(t, int64(0), events[2].Buttons)
	for _, ev := range events {
		assert.Equal(t, 10.0, ev.X)
		assert.Equal(t, 20.0, ev.Y)
	}

	require.Len(t, exec.sleeps, 1)
	assert.GreaterOrEqual(t, exec.sleeps[0], 40*time.Millisecond)
	assert.LessOrEqual(t, exec.sleeps[0], 90*time.Millisecond)
	assert.Equal(t, schemas.Point{X: 10, Y: 20}, m.Position())
	assert.Zero(t, m.Buttons())
}

func TestMouse_DispatchDrag(t *testing.T) {
	exec := newMockExecutor(t)
	m := NewMouse(exec, testInputConfig(), nil)
	ctx := context.Background()

	require.NoError(t, m.Dispatch(ctx, schemas.PointerAction{Kind: schemas.PointerDown, Point: schemas.Point{X: 1, Y: 1}, Button: schemas.ButtonLeft, ClickCount: 1}))
	assert.Equal(t, int64(1), m.Buttons())
	require.NoError(t, m.Dispatch(ctx, schemas.PointerAction{Kind: schemas.PointerMove, Point: schemas.Point{X: 50, Y: 60}}))
	require.NoError(t, m.Dispatch(ctx, schemas.PointerAction{Kind: schemas.PointerUp, Point: schemas.Point{X: 50, Y: 60}, Button: schemas.ButtonLeft, ClickCount: 1}))

	events := exec.mouse()
	var types []schemas.MouseEventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []schemas.MouseEventType{
		schemas.MouseMove, schemas.MousePress, schemas.MouseMove, schemas.MouseMove, schemas.MouseRelease,
	}, types)
	// Moves while the button is down carry it.
	assert.Equal(t, schemas.ButtonLeft, events[2].Button)
	assert.Equal(t, int64(1), events[2].Buttons)
	assert.Zero(t, m.Buttons())
}

func TestMouse_ReleaseIgnoresCancellation(t *testing.T) {
	exec := newMockExecutor(t)
	m := NewMouse(exec, testInputConfig(), nil)

	require.NoError(t, m.Dispatch(context.Background(), schemas.PointerAction{Kind: schemas.PointerDown, Button: schemas.ButtonRight}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, m.Release(ctx))
	events := exec.mouse()
	last := events[len(events)-1]
	assert.Equal(t, schemas.MouseRelease, last.Type)
	assert.Equal(t, schemas.ButtonRight, last.Button)
	assert.Zero(t, m.Buttons())

	// Nothing is pressed now, so a second release sends nothing.
	require.NoError(t, m.Release(ctx))
	assert.Len(t, exec.mouse(), len(events))
}

func TestMouse_ClickInterruptedDuringHold(t *testing.T) {
	exec := newMockExecutor(t)
	exec.MockSleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }
	m := NewMouse(exec, testInputConfig(), nil)

	err := m.Click(context.Background(), schemas.Point{X: 5, Y: 5}, schemas.ButtonLeft, 1)
	require.ErrorIs(t, err, context.Canceled)

	events := exec.mouse()
	require.Len(t, events, 3)
	assert.Equal(t, schemas.MouseRelease, events[2].Type)
	assert.Zero(t, m.Buttons())
}

func TestMouse_DispatchError(t *testing.T) {
	exec := newMockExecutor(t)
	boom := errors.New("boom")
	exec.MockDispatchMouseEvent = func(ctx context.Context, data schemas.MouseEventData) error {
		if data.Type == schemas.MousePress {
			return boom
		}
		return nil
	}
	m := NewMouse(exec, testInputConfig(), nil)

	err := m.Click(context.Background(), schemas.Point{}, schemas.ButtonLeft, 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "mouse: press left")
	assert.Zero(t, m.Buttons())

	err = m.Dispatch(context.Background(), schemas.PointerAction{Kind: schemas.PointerTap})
	assert.Error(t, err)
}

func TestTouchscreen_Tap(t *testing.T) {
	exec := newMockExecutor(t)
	ts := NewTouchscreen(exec)

	require.NoError(t, ts.Tap(context.Background(), schemas.Point{X: 3, Y: 4}, schemas.ModNone))
	require.Len(t, exec.touchEvents, 2)
	assert.Equal(t, TouchStart, exec.touchEvents[0].Type)
	assert.Equal(t, []schemas.Point{{X: 3, Y: 4}}, exec.touchEvents[0].Points)
	assert.Equal(t, TouchEnd, exec.touchEvents[1].Type)
	assert.Empty(t, exec.touchEvents[1].Points)
}

func TestMouse_HoldDuration(t *testing.T) {
	m := NewMouse(newMockExecutor(t), config.InputConfig{ClickHoldMinMs: 50, ClickHoldMaxMs: 50}, nil)
	assert.Equal(t, 50*time.Millisecond, m.holdDuration())

	m = NewMouse(newMockExecutor(t), config.InputConfig{}, nil)
	assert.Zero(t, m.holdDuration())
}
