package input

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

// mockExecutor records every event it receives.
type mockExecutor struct {
	t           *testing.T
	mu          sync.Mutex
	mouseEvents []schemas.MouseEventData
	keyEvents   []KeyEventData
	touchEvents []TouchEventData
	sleeps      []time.Duration

	// Overrides replace the default behavior when set.
	MockSleep              func(ctx context.Context, d time.Duration) error
	MockDispatchMouseEvent func(ctx context.Context, data schemas.MouseEventData) error
	MockDispatchKeyEvent   func(ctx context.Context, data KeyEventData) error
}

func newMockExecutor(t *testing.T) *mockExecutor {
	return &mockExecutor{t: t}
}

func (m *mockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if m.MockSleep != nil {
		return m.MockSleep(ctx, d)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeps = append(m.sleeps, d)
	return nil
}

func (m *mockExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	m.mu.Lock()
	m.mouseEvents = append(m.mouseEvents, data)
	m.mu.Unlock()
	if m.MockDispatchMouseEvent != nil {
		return m.MockDispatchMouseEvent(ctx, data)
	}
	return ctx.Err()
}

func (m *mockExecutor) DispatchKeyEvent(ctx context.Context, data KeyEventData) error {
	m.mu.Lock()
	m.keyEvents = append(m.keyEvents, data)
	m.mu.Unlock()
	if m.MockDispatchKeyEvent != nil {
		return m.MockDispatchKeyEvent(ctx, data)
	}
	return ctx.Err()
}

func (m *mockExecutor) DispatchTouchEvent(ctx context.Context, data TouchEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchEvents = append(m.touchEvents, data)
	return ctx.Err()
}

func (m *mockExecutor) mouse() []schemas.MouseEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schemas.MouseEventData(nil), m.mouseEvents...)
}

func (m *mockExecutor) keys() []KeyEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]KeyEventData(nil), m.keyEvents...)
}
