// Package keymap maps F87 key names and group aliases to the LED indices
// used by the per-key color planes. The index assignment comes from the
// OEM app's KB.ini layout file.
package keymap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/openaula/aulactl/internal/protocol"
)

// keyIndex maps key names to LED indices.
var keyIndex = map[string]int{
	// F-row
	"esc": 0, "f1": 12, "f2": 18, "f3": 24, "f4": 30,
	"f5": 36, "f6": 42, "f7": 48, "f8": 54, "f9": 60,
	"f10": 66, "f11": 72, "f12": 78, "prtsc": 84, "scrlk": 90, "pause": 96,
	// Number row
	"`": 1, "1": 7, "2": 13, "3": 19, "4": 25, "5": 31,
	"6": 37, "7": 43, "8": 49, "9": 55, "0": 61,
	"-": 67, "=": 73, "bksp": 79, "ins": 85, "home": 91, "pgup": 97,
	// QWERTY row
	"tab": 2, "q": 8, "w": 14, "e": 20, "r": 26, "t": 32,
	"y": 38, "u": 44, "i": 50, "o": 56, "p": 62,
	"[": 68, "]": 74, "\\": 80, "del": 86, "end": 92, "pgdn": 98,
	// Home row
	"caps": 3, "a": 9, "s": 15, "d": 21, "f": 27, "g": 33,
	"h": 39, "j": 45, "k": 51, "l": 57, ";": 63, "'": 69, "enter": 81,
	// Shift row
	"lshift": 4, "z": 10, "x": 16, "c": 22, "v": 28, "b": 34,
	"n": 40, "m": 46, ",": 52, ".": 58, "/": 64, "rshift": 82, "up": 94,
	// Bottom row
	"lctrl": 5, "lwin": 11, "lalt": 17, "space": 35,
	"ralt": 53, "fn": 59, "app": 65, "rctrl": 83,
	"left": 89, "down": 95, "right": 101,
}

// groups are aliases that expand to several keys.
var groups = map[string][]string{
	"wasd":   {"w", "a", "s", "d"},
	"arrows": {"up", "down", "left", "right"},
	"fkeys":  {"f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8", "f9", "f10", "f11", "f12"},
	"numrow": {"1", "2", "3", "4", "5", "6", "7", "8", "9", "0"},
}

// LookupKey returns the LED index for a key name.
func LookupKey(name string) (int, bool) {
	idx, ok := keyIndex[strings.ToLower(strings.TrimSpace(name))]
	return idx, ok
}

// KeyNames returns all key names ordered by LED index.
func KeyNames() []string {
	names := make([]string, 0, len(keyIndex))
	for name := range keyIndex {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return keyIndex[names[i]] < keyIndex[names[j]]
	})
	return names
}

// Groups returns the group aliases and their member keys.
func Groups() map[string][]string {
	out := make(map[string][]string, len(groups))
	for name, keys := range groups {
		out[name] = append([]string(nil), keys...)
	}
	return out
}

// ParseColor parses "#RRGGBB" or "RRGGBB" into an RGB triple.
func ParseColor(s string) (protocol.RGB, error) {
	hexStr := strings.TrimPrefix(s, "#")
	if len(hexStr) != 6 {
		return protocol.RGB{}, fmt.Errorf("expected 6 hex digits, got %q", s)
	}
	v, err := strconv.ParseUint(hexStr, 16, 24)
	if err != nil {
		return protocol.RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return protocol.RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// Resolve turns "key:#RRGGBB" specs into a per-key color map. A spec may
// name a single key or a group alias.
func Resolve(specs []string) (*protocol.ColorMap, int, error) {
	var m protocol.ColorMap
	count := 0
	seen := make(map[int]struct{})
	for _, spec := range specs {
		name, colorStr, found := strings.Cut(spec, ":")
		if !found {
			return nil, 0, fmt.Errorf("invalid spec %q, use key:#RRGGBB", spec)
		}
		color, err := ParseColor(colorStr)
		if err != nil {
			return nil, 0, fmt.Errorf("spec %q: %w", spec, err)
		}
		name = strings.ToLower(strings.TrimSpace(name))

		var keys []string
		if members, ok := groups[name]; ok {
			keys = members
		} else {
			keys = []string{name}
		}
		for _, key := range keys {
			idx, ok := keyIndex[key]
			if !ok {
				return nil, 0, fmt.Errorf("unknown key %q", key)
			}
			if err := m.Set(idx, color); err != nil {
				return nil, 0, err
			}
			if _, dup := seen[idx]; !dup {
				seen[idx] = struct{}{}
				count++
			}
		}
	}
	return &m, count, nil
}
