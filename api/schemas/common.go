// api/schemas/common.go

package schemas

import (
	"fmt"
	"strings"
)

// -- Common Schemas --

// KeyEventData represents a structured key event, including the main key and active modifiers.
type KeyEventData struct {
	// Key is the primary key pressed (e.g., "a", "c", "Enter", "Tab").
	Key string
	// Modifiers is a bitmask of active modifiers.
	Modifiers KeyModifier
}

// KeyModifier represents keyboard modifiers (Ctrl, Alt, Shift, Meta).
// These values correspond directly to the CDP input.DispatchKeyEvent modifiers bitfield.
type KeyModifier int

const (
	ModNone  KeyModifier = 0
	ModAlt   KeyModifier = 1 // Corresponds to CDP modifier 1
	ModCtrl  KeyModifier = 2 // Corresponds to CDP modifier 2
	ModMeta  KeyModifier = 4 // Corresponds to CDP modifier 4
	ModShift KeyModifier = 8 // Corresponds to CDP modifier 8
)

// modifierNames maps the key names accepted in key expressions to modifier bits.
var modifierNames = map[string]KeyModifier{
	"alt":     ModAlt,
	"control": ModCtrl,
	"ctrl":    ModCtrl,
	"meta":    ModMeta,
	"command": ModMeta,
	"cmd":     ModMeta,
	"shift":   ModShift,
}

// ParseModifier resolves a modifier key name such as "Shift" or "Control".
func ParseModifier(name string) (KeyModifier, bool) {
	m, ok := modifierNames[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// ParseModifiers folds a list of modifier names into a bitmask.
func ParseModifiers(names []string) (KeyModifier, error) {
	var mods KeyModifier
	for _, n := range names {
		m, ok := ParseModifier(n)
		if !ok {
			return ModNone, fmt.Errorf("unknown key modifier %q", n)
		}
		mods |= m
	}
	return mods, nil
}

// ParseKeyExpression splits an expression like "Control+Shift+A" into its modifiers and main key.
// A lone "+" is the plus key.
func ParseKeyExpression(expr string) (KeyEventData, error) {
	if expr == "" {
		return KeyEventData{}, fmt.Errorf("empty key expression")
	}
	if expr == "+" {
		return KeyEventData{Key: "+"}, nil
	}
	parts := strings.Split(expr, "+")
	// "Shift++" splits into ["Shift", "", ""]; the trailing empties are the plus key.
	if strings.HasSuffix(expr, "++") {
		parts = append(parts[:len(parts)-2], "+")
	}
	data := KeyEventData{Key: parts[len(parts)-1]}
	if data.Key == "" {
		return KeyEventData{}, fmt.Errorf("key expression %q has no main key", expr)
	}
	for _, p := range parts[:len(parts)-1] {
		m, ok := ParseModifier(p)
		if !ok {
			return KeyEventData{}, fmt.Errorf("key expression %q: unknown modifier %q", expr, p)
		}
		data.Modifiers |= m
	}
	return data, nil
}
