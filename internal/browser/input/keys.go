package input

import (
	"strings"
	"unicode/utf8"

	"github.com/xkilldash9x/actiongate/api/schemas"
)

// keyDefinition describes a key on a US layout.
type keyDefinition struct {
	Key     string
	Code    string
	KeyCode int64
	// Text is inserted on key down. Empty for non-printing keys.
	Text string
}

var namedKeys = map[string]keyDefinition{
	"Enter":       {Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"},
	"NumpadEnter": {Key: "Enter", Code: "NumpadEnter", KeyCode: 13, Text: "\r"},
	"Tab":         {Key: "Tab", Code: "Tab", KeyCode: 9},
	"Backspace":   {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"Delete":      {Key: "Delete", Code: "Delete", KeyCode: 46},
	"Escape":      {Key: "Escape", Code: "Escape", KeyCode: 27},
	"Space":       {Key: " ", Code: "Space", KeyCode: 32, Text: " "},
	"ArrowUp":     {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"ArrowDown":   {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"ArrowLeft":   {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"ArrowRight":  {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"Home":        {Key: "Home", Code: "Home", KeyCode: 36},
	"End":         {Key: "End", Code: "End", KeyCode: 35},
	"PageUp":      {Key: "PageUp", Code: "PageUp", KeyCode: 33},
	"PageDown":    {Key: "PageDown", Code: "PageDown", KeyCode: 34},
	"Insert":      {Key: "Insert", Code: "Insert", KeyCode: 45},
	"Shift":       {Key: "Shift", Code: "ShiftLeft", KeyCode: 16},
	"Control":     {Key: "Control", Code: "ControlLeft", KeyCode: 17},
	"Alt":         {Key: "Alt", Code: "AltLeft", KeyCode: 18},
	"Meta":        {Key: "Meta", Code: "MetaLeft", KeyCode: 91},
	"F1":          {Key: "F1", Code: "F1", KeyCode: 112},
	"F2":          {Key: "F2", Code: "F2", KeyCode: 113},
	"F3":          {Key: "F3", Code: "F3", KeyCode: 114},
	"F4":          {Key: "F4", Code: "F4", KeyCode: 115},
	"F5":          {Key: "F5", Code: "F5", KeyCode: 116},
	"F6":          {Key: "F6", Code: "F6", KeyCode: 117},
	"F7":          {Key: "F7", Code: "F7", KeyCode: 118},
	"F8":          {Key: "F8", Code: "F8", KeyCode: 119},
	"F9":          {Key: "F9", Code: "F9", KeyCode: 120},
	"F10":         {Key: "F10", Code: "F10", KeyCode: 121},
	"F11":         {Key: "F11", Code: "F11", KeyCode: 122},
	"F12":         {Key: "F12", Code: "F12", KeyCode: 123},
}

// punctuation maps printable punctuation to its physical key and keyCode.
var punctuation = map[rune]keyDefinition{
	' ':  {Code: "Space", KeyCode: 32},
	'-':  {Code: "Minus", KeyCode: 189},
	'_':  {Code: "Minus", KeyCode: 189},
	'=':  {Code: "Equal", KeyCode: 187},
	'+':  {Code: "Equal", KeyCode: 187},
	'[':  {Code: "BracketLeft", KeyCode: 219},
	'{':  {Code: "BracketLeft", KeyCode: 219},
	']':  {Code: "BracketRight", KeyCode: 221},
	'}':  {Code: "BracketRight", KeyCode: 221},
	'\\': {Code: "Backslash", KeyCode: 220},
	'|':  {Code: "Backslash", KeyCode: 220},
	';':  {Code: "Semicolon", KeyCode: 186},
	':':  {Code: "Semicolon", KeyCode: 186},
	'\'': {Code: "Quote", KeyCode: 222},
	'"':  {Code: "Quote", KeyCode: 222},
	',':  {Code: "Comma", KeyCode: 188},
	'<':  {Code: "Comma", KeyCode: 188},
	'.':  {Code: "Period", KeyCode: 190},
	'>':  {Code: "Period", KeyCode: 190},
	'/':  {Code: "Slash", KeyCode: 191},
	'?':  {Code: "Slash", KeyCode: 191},
	'`':  {Code: "Backquote", KeyCode: 192},
	'~':  {Code: "Backquote", KeyCode: 192},
}

const shiftedDigits = ")!@#$%^&*("

// lookupKey resolves a key name or a single character to its definition.
// ok is false for multi-character names that are not known keys.
func lookupKey(name string) (keyDefinition, bool) {
	if def, ok := namedKeys[name]; ok {
		return def, true
	}
	if utf8.RuneCountInString(name) != 1 {
		return keyDefinition{}, false
	}
	r, _ := utf8.DecodeRuneInString(name)
	return charKey(r), true
}

// charKey returns the definition of a printable character. Characters off
// the US layout get a definition without a code, typed as a char event.
func charKey(r rune) keyDefinition {
	s := string(r)
	switch {
	case r >= 'a' && r <= 'z':
		return keyDefinition{Key: s, Code: "Key" + strings.ToUpper(s), KeyCode: int64(r - 'a' + 'A'), Text: s}
	case r >= 'A' && r <= 'Z':
		return keyDefinition{Key: s, Code: "Key" + s, KeyCode: int64(r), Text: s}
	case r >= '0' && r <= '9':
		return keyDefinition{Key: s, Code: "Digit" + s, KeyCode: int64(r), Text: s}
	}
	if i := strings.IndexRune(shiftedDigits, r); i >= 0 {
		d := string(rune('0' + i))
		return keyDefinition{Key: s, Code: "Digit" + d, KeyCode: int64('0' + i), Text: s}
	}
	if def, ok := punctuation[r]; ok {
		def.Key, def.Text = s, s
		return def
	}
	return keyDefinition{Key: s, Text: s}
}

// needsShift reports whether typing r on a US layout requires Shift.
func needsShift(r rune) bool {
	if r >= 'A' && r <= 'Z' {
		return true
	}
	return strings.ContainsRune(shiftedDigits+`_+{}|:"<>?~`, r)
}

// modifierKeys lists modifier keys in press order.
var modifierKeys = []struct {
	mod schemas.KeyModifier
	key string
}{
	{schemas.ModCtrl, "Control"},
	{schemas.ModAlt, "Alt"},
	{schemas.ModMeta, "Meta"},
	{schemas.ModShift, "Shift"},
}
