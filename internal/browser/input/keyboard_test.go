// FILE: ./internal/browser/input/keyboard_test.go

package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/config"
)

func eventSummary(events []KeyEventData) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = string(ev.Type) + ":" + ev.Key
	}
	return out
}

func TestKeyboard_PressLetter(t *testing.T) {
	exec := newMockExecutor(t)
	k := NewKeyboard(exec, testInputConfig())

	require.NoError(t, k.Press(context.Background(), "a", schemas.ModNone))

	events := exec.keys()
	require.Len(t, events, 2)
	assert.Equal(t, KeyEventData{Type: KeyEventDown, Key: "a", Code: "KeyA", Text: "a", KeyCode: 65}, events[0])
	assert.Equal(t, KeyEventData{Type: KeyEventUp, Key: "a", Code: "KeyA", KeyCode: 65}, events[1])
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, exec.sleeps)
}

func TestKeyboard_Shortcut(t *testing.T) {
	exec := newMockExecutor(t)
	k := NewKeyboard(exec, config.InputConfig{})

	require.NoError(t, k.Press(context.Background(), "A", schemas.ModCtrl|schemas.ModShift))

	events := exec.keys()
	assert.Equal(t, []string{
		"rawKeyDown:Control", "rawKeyDown:Shift", "rawKeyDown:A", "keyUp:A", "keyUp:Shift", "keyUp:Control",
	}, eventSummary(events))
	// The main key carries every held modifier and inserts no text.
	assert.Equal(t, schemas.ModCtrl|schemas.ModShift, events[2].Modifiers)
	assert.Empty(t, events[2].Text)
	assert.Equal(t, schemas.ModNone, events[5].Modifiers)
	assert.Zero(t, k.Modifiers())
}

func TestKeyboard_Type(t *testing.T) {
	exec := newMockExecutor(t)
	k := NewKeyboard(exec, config.InputConfig{})

	require.NoError(t, k.Type(context.Background(), "Hi!\né", 5*time.Millisecond))

	assert.Equal(t, []string{
		"rawKeyDown:Shift", "keyDown:H", "keyUp:H", "keyUp:Shift",
		"keyDown:i", "keyUp:i",
		"rawKeyDown:Shift", "keyDown:!", "keyUp:!", "keyUp:Shift",
		"keyDown:Enter", "keyUp:Enter",
		"char:é",
	}, eventSummary(exec.keys()))
	// One pause between each of the five characters.
	assert.Len(t, exec.sleeps, 4)
}

func TestKeyboard_Dispatch(t *testing.T) {
	exec := newMockExecutor(t)
	k := NewKeyboard(exec, config.InputConfig{})
	ctx := context.Background()

	require.NoError(t, k.Dispatch(ctx, schemas.KeyAction{Kind: schemas.KeyDown, Key: "Shift"}))
	assert.Equal(t, schemas.ModShift, k.Modifiers())
	require.NoError(t, k.Dispatch(ctx, schemas.KeyAction{Kind: schemas.KeyPress, Key: "Tab"}))
	require.NoError(t, k.Dispatch(ctx, schemas.KeyAction{Kind: schemas.KeyUp, Key: "Shift"}))
	assert.Zero(t, k.Modifiers())
	require.NoError(t, k.Dispatch(ctx, schemas.KeyAction{Kind: schemas.KeyChar, Key: "日本"}))

	assert.Equal(t, []string{
		"rawKeyDown:Shift", "rawKeyDown:Tab", "keyUp:Tab", "keyUp:Shift", "char:日本",
	}, eventSummary(exec.keys()))
	// Shift was already held, so the press did not press it again.
	assert.Equal(t, schemas.ModShift, exec.keys()[1].Modifiers)
}

func TestKeyboard_Errors(t *testing.T) {
	exec := newMockExecutor(t)
	k := NewKeyboard(exec, config.InputConfig{})

	err := k.Press(context.Background(), "NotAKey", schemas.ModNone)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown key "NotAKey"`)
	assert.Empty(t, exec.keys())

	boom := errors.New("boom")
	exec.MockDispatchKeyEvent = func(ctx context.Context, data KeyEventData) error {
		if data.Key == "a" && data.Type != KeyEventUp {
			return boom
		}
		return nil
	}
	err = k.Press(context.Background(), "a", schemas.ModCtrl)
	require.ErrorIs(t, err, boom)
	// Control still comes back up.
	events := exec.keys()
	assert.Equal(t, "keyUp:Control", eventSummary(events)[len(events)-1])
	assert.Zero(t, k.Modifiers())
}

func TestCharKey(t *testing.T) {
	tests := []struct {
		r    rune
		want keyDefinition
	}{
		{'z', keyDefinition{Key: "z", Code: "KeyZ", KeyCode: 90, Text: "z"}},
		{'Q', keyDefinition{Key: "Q", Code: "KeyQ", KeyCode: 81, Text: "Q"}},
		{'7', keyDefinition{Key: "7", Code: "Digit7", KeyCode: 55, Text: "7"}},
		{'@', keyDefinition{Key: "@", Code: "Digit2", KeyCode: 50, Text: "@"}},
		{'?', keyDefinition{Key: "?", Code: "Slash", KeyCode: 191, Text: "?"}},
		{'ß', keyDefinition{Key: "ß", Text: "ß"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, charKey(tt.r), string(tt.r))
	}
	assert.True(t, needsShift('@'))
	assert.False(t, needsShift('2'))
}
