// Package hotkey triggers the capture button from a global key combination.
package hotkey

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Key is one member of a combination together with the rawcodes that count
// as pressing it (left and right variants for modifiers).
type Key struct {
	Name     string
	Rawcodes []uint16
}

// Combo is a parsed key combination such as "Ctrl+Alt+C".
type Combo struct {
	Source string
	Keys   []Key
}

// Parse normalizes and maps a combination. Unknown key names are an error.
func Parse(s string) (Combo, error) {
	names := parseHotkey(s)
	if len(names) == 0 {
		return Combo{}, fmt.Errorf("empty hotkey")
	}
	c := Combo{Source: s}
	for _, name := range names {
		codes := keyNameToRawcodes(name)
		if len(codes) == 0 {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", s, name)
		}
		c.Keys = append(c.Keys, Key{Name: name, Rawcodes: codes})
	}
	return c, nil
}

// matcher tracks pressed members of a combo. It fires once when the last
// member goes down and then forgets all state.
type matcher struct {
	mu      sync.Mutex
	combo   Combo
	pressed []bool
}

func newMatcher(c Combo) *matcher {
	return &matcher{combo: c, pressed: make([]bool, len(c.Keys))}
}

func (m *matcher) index(rawcode uint16) int {
	for i, k := range m.combo.Keys {
		for _, rc := range k.Rawcodes {
			if rc == rawcode {
				return i
			}
		}
	}
	return -1
}

func (m *matcher) down(rawcode uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(rawcode)
	if i < 0 {
		return false
	}
	m.pressed[i] = true
	for _, p := range m.pressed {
		if !p {
			return false
		}
	}
	for j := range m.pressed {
		m.pressed[j] = false
	}
	return true
}

func (m *matcher) up(rawcode uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(rawcode); i >= 0 {
		m.pressed[i] = false
	}
}

// Listen invokes fn each time the combination is pressed, until ctx ends.
// fn runs on the hook goroutine and should only post work elsewhere.
func Listen(ctx context.Context, combo string, fn func()) error {
	c, err := Parse(combo)
	if err != nil {
		return err
	}
	m := newMatcher(c)
	log.Printf("Hotkey listener configured for: %s", combo)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()
		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
			return
		}
		defer gohook.End()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evChan:
				if !ok {
					log.Printf("Event channel closed")
					return
				}
				switch ev.Kind {
				case gohook.KeyDown:
					if m.down(ev.Rawcode) {
						log.Printf("Hotkey activated: %s", combo)
						if fn != nil {
							fn()
						}
					}
				case gohook.KeyUp:
					m.up(ev.Rawcode)
				}
			}
		}
	}()
	return nil
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			part = "ctrl"
		case "win", "super":
			part = "cmd"
		}
		keys = append(keys, part)
	}
	return keys
}

var specialKeys = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN
	"win":   {91, 92},
	"super": {91, 92},

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to Windows virtual key codes.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if codes, ok := specialKeys[keyName]; ok {
		return codes
	}
	if len(keyName) == 1 {
		switch ch := keyName[0]; {
		case ch >= 'a' && ch <= 'z':
			return []uint16{uint16(ch - 'a' + 'A')}
		case ch >= '0' && ch <= '9':
			return []uint16{uint16(ch)}
		}
	}
	var n int
	if _, err := fmt.Sscanf(keyName, "f%d", &n); err == nil && n >= 1 && n <= 24 && keyName == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(111 + n)} // VK_F1 is 112
	}
	log.Printf("WARNING: Unknown key name '%s', cannot map to rawcode", keyName)
	return nil
}
