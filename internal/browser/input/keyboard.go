// internal/browser/input/keyboard.go

package input

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/xkilldash9x/actiongate/api/schemas"
	"github.com/xkilldash9x/actiongate/internal/config"
)

// Keyboard tracks held modifiers and dispatches key events.
type Keyboard struct {
	mu        sync.Mutex
	executor  Executor
	cfg       config.InputConfig
	modifiers schemas.KeyModifier
}

// NewKeyboard creates a keyboard with no keys held.
func NewKeyboard(executor Executor, cfg config.InputConfig) *Keyboard {
	return &Keyboard{executor: executor, cfg: cfg}
}

// Modifiers returns the modifiers currently held down.
func (k *Keyboard) Modifiers() schemas.KeyModifier {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.modifiers
}

// Dispatch performs one engine keyboard primitive.
func (k *Keyboard) Dispatch(ctx context.Context, a schemas.KeyAction) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch a.Kind {
	case schemas.KeyDown:
		return k.down(ctx, a.Key)
	case schemas.KeyUp:
		return k.up(ctx, a.Key)
	case schemas.KeyPress:
		mods := a.Modifiers
		if r, size := utf8.DecodeRuneInString(a.Key); size == len(a.Key) && needsShift(r) {
			mods |= schemas.ModShift
		}
		return k.press(ctx, a.Key, mods)
	case schemas.KeyChar:
		return k.insertText(ctx, a.Key)
	default:
		return fmt.Errorf("keyboard: unsupported key action %q", a.Kind)
	}
}

// Press holds mods, presses and releases key, then releases mods.
func (k *Keyboard) Press(ctx context.Context, key string, mods schemas.KeyModifier) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.press(ctx, key, mods)
}

// Type sends text one character at a time, pausing delay between characters.
// Characters off the US layout are inserted as text.
func (k *Keyboard) Type(ctx context.Context, text string, delay time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	first := true
	for _, r := range text {
		if !first && delay > 0 {
			if err := k.executor.Sleep(ctx, delay); err != nil {
				return err
			}
		}
		first = false
		if err := k.typeRune(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (k *Keyboard) typeRune(ctx context.Context, r rune) error {
	switch r {
	case '\n', '\r':
		return k.press(ctx, "Enter", schemas.ModNone)
	case '\t':
		return k.press(ctx, "Tab", schemas.ModNone)
	}
	def := charKey(r)
	if def.Code == "" {
		return k.insertText(ctx, def.Text)
	}
	var mods schemas.KeyModifier
	if needsShift(r) {
		mods = schemas.ModShift
	}
	return k.press(ctx, def.Key, mods)
}

func (k *Keyboard) press(ctx context.Context, key string, mods schemas.KeyModifier) error {
	if _, ok := lookupKey(key); !ok {
		return fmt.Errorf("keyboard: unknown key %q", key)
	}
	var held []string
	defer func() {
		// Modifiers pressed for this key come back up even if the press failed.
		for i := len(held) - 1; i >= 0; i-- {
			_ = k.up(context.WithoutCancel(ctx), held[i])
		}
	}()
	for _, m := range modifierKeys {
		if mods&m.mod == 0 || k.modifiers&m.mod != 0 {
			continue
		}
		if err := k.down(ctx, m.key); err != nil {
			return err
		}
		held = append(held, m.key)
	}
	if err := k.down(ctx, key); err != nil {
		return err
	}
	if hold := time.Duration(k.cfg.KeyHoldMs) * time.Millisecond; hold > 0 {
		if err := k.executor.Sleep(ctx, hold); err != nil {
			_ = k.up(context.WithoutCancel(ctx), key)
			return err
		}
	}
	return k.up(ctx, key)
}

func (k *Keyboard) down(ctx context.Context, key string) error {
	def, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("keyboard: unknown key %q", key)
	}
	mod, isModifier := schemas.ParseModifier(key)
	if isModifier {
		k.modifiers |= mod
	}
	data := KeyEventData{
		Type:      KeyEventDown,
		Key:       def.Key,
		Code:      def.Code,
		Text:      def.Text,
		KeyCode:   def.KeyCode,
		Modifiers: k.modifiers,
	}
	// Shortcuts such as Control+A must not insert text.
	if def.Text == "" || k.modifiers&(schemas.ModCtrl|schemas.ModAlt|schemas.ModMeta) != 0 {
		data.Type, data.Text = KeyEventRawDown, ""
	}
	if err := k.executor.DispatchKeyEvent(ctx, data); err != nil {
		if isModifier {
			k.modifiers &^= mod
		}
		return fmt.Errorf("keyboard: key down %q: %w", key, err)
	}
	return nil
}

func (k *Keyboard) up(ctx context.Context, key string) error {
	def, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("keyboard: unknown key %q", key)
	}
	if mod, isModifier := schemas.ParseModifier(key); isModifier {
		k.modifiers &^= mod
	}
	data := KeyEventData{
		Type:      KeyEventUp,
		Key:       def.Key,
		Code:      def.Code,
		KeyCode:   def.KeyCode,
		Modifiers: k.modifiers,
	}
	if err := k.executor.DispatchKeyEvent(ctx, data); err != nil {
		return fmt.Errorf("keyboard: key up %q: %w", key, err)
	}
	return nil
}

func (k *Keyboard) insertText(ctx context.Context, text string) error {
	if err := k.executor.DispatchKeyEvent(ctx, KeyEventData{Type: KeyEventChar, Text: text, Key: text}); err != nil {
		return fmt.Errorf("keyboard: insert %q: %w", text, err)
	}
	return nil
}
