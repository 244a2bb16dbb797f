// Copyright 2025 Joseph Cumines

package desktop

import (
	"fmt"
	"strings"
)

// Virtual-key codes used directly by the service.
const (
	vkBack    uint16 = 0x08
	vkReturn  uint16 = 0x0D
	vkControl uint16 = 0x11
)

var virtualKeys = map[string]uint16{
	"backspace": vkBack, "back": vkBack,
	"tab":   0x09,
	"enter": vkReturn, "return": vkReturn,
	"shift": 0x10, "lshift": 0xA0, "rshift": 0xA1,
	"ctrl": vkControl, "control": vkControl, "lctrl": 0xA2, "rctrl": 0xA3,
	"alt": 0x12, "menu": 0x12, "lalt": 0xA4, "ralt": 0xA5,
	"pause":    0x13,
	"capslock": 0x14,
	"esc":      0x1B, "escape": 0x1B,
	"space":    0x20, "spacebar": 0x20,
	"pageup":   0x21, "pgup": 0x21,
	"pagedown": 0x22, "pgdn": 0x22,
	"end":  0x23,
	"home": 0x24,
	"left": 0x25, "up": 0x26, "right": 0x27, "down": 0x28,
	"printscreen": 0x2C, "prtsc": 0x2C,
	"insert": 0x2D, "ins": 0x2D,
	"delete": 0x2E, "del": 0x2E,
	"win": 0x5B, "windows": 0x5B, "lwin": 0x5B, "rwin": 0x5C,
	"apps":       0x5D,
	"numlock":    0x90,
	"scrolllock": 0x91,
	"volumemute": 0xAD, "volumedown": 0xAE, "volumeup": 0xAF,
	"nexttrack": 0xB0, "prevtrack": 0xB1, "stop": 0xB2, "playpause": 0xB3,
	";": 0xBA, "=": 0xBB, ",": 0xBC, "-": 0xBD, ".": 0xBE, "/": 0xBF, "`": 0xC0,
	"[": 0xDB, "\\": 0xDC, "]": 0xDD, "'": 0xDE,
	"multiply": 0x6A, "add": 0x6B, "subtract": 0x6D, "decimal": 0x6E, "divide": 0x6F,
}

func init() {
	for c := 'a'; c <= 'z'; c++ {
		virtualKeys[string(c)] = uint16('A' + (c - 'a'))
	}
	for c := '0'; c <= '9'; c++ {
		virtualKeys[string(c)] = uint16(c)
		virtualKeys["num"+string(c)] = 0x60 + uint16(c-'0')
	}
	for i := 1; i <= 24; i++ {
		virtualKeys[fmt.Sprintf("f%d", i)] = 0x70 + uint16(i-1)
	}
}

// ParseShortcut maps a "+" separated combination such as "ctrl+shift+esc" to
// virtual-key codes, in press order.
func ParseShortcut(shortcut string) ([]uint16, error) {
	s := strings.TrimSpace(shortcut)
	if s == "" {
		return nil, invalidf("shortcut is empty")
	}
	var parts []string
	if s == "+" {
		parts = []string{"add"}
	} else {
		parts = strings.Split(s, "+")
	}
	keys := make([]uint16, 0, len(parts))
	for _, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		vk, ok := virtualKeys[name]
		if !ok {
			return nil, invalidf("unknown key %q in shortcut %q", p, shortcut)
		}
		keys = append(keys, vk)
	}
	return keys, nil
}
