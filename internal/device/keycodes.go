package device

import (
	"fmt"
	"strconv"
	"strings"
)

// KeycodeMode selects how the SDK encodes key codes.
type KeycodeMode uint32

// Keycode modes understood by the SDK.
const (
	ModeHID KeycodeMode = iota
	ModeScanCode1
	ModeVirtualKey
	ModeVirtualKeyTranslate
)

var modeNames = map[KeycodeMode]string{
	ModeHID:                 "hid",
	ModeScanCode1:           "scancode1",
	ModeVirtualKey:          "vk",
	ModeVirtualKeyTranslate: "vk-translate",
}

func (m KeycodeMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint32(m))
}

// ParseKeycodeMode parses a mode name as used in flags and config.
func ParseKeycodeMode(s string) (KeycodeMode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ModeHID, nil
	}
	for mode, name := range modeNames {
		if s == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown keycode mode %q (want hid, scancode1, vk or vk-translate)", s)
}

// HID usage codes for keys referenced by default settings.
const (
	KeyEnter  uint16 = 40
	KeyEscape uint16 = 41
	KeySpace  uint16 = 44
)

var hidNames = map[string]uint16{
	"enter":     KeyEnter,
	"return":    KeyEnter,
	"esc":       KeyEscape,
	"escape":    KeyEscape,
	"backspace": 42,
	"tab":       43,
	"space":     KeySpace,
	"minus":     45,
	"equal":     46,
	"capslock":  57,
	"right":     79,
	"left":      80,
	"down":      81,
	"up":        82,
	"lctrl":     224,
	"lshift":    225,
	"lalt":      226,
	"lmeta":     227,
	"rctrl":     228,
	"rshift":    229,
	"ralt":      230,
	"rmeta":     231,
}

func init() {
	for i := 0; i < 26; i++ {
		hidNames[string(rune('a'+i))] = uint16(4 + i)
	}
	for i := 1; i <= 9; i++ {
		hidNames[strconv.Itoa(i)] = uint16(29 + i)
	}
	hidNames["0"] = 39
	for i := 1; i <= 12; i++ {
		hidNames["f"+strconv.Itoa(i)] = uint16(57 + i)
	}
}

// ParseKeyCode resolves a key name (HID mode) or a numeric code.
// Digits are treated as key names; use a "#" prefix for raw numbers below 10,
// e.g. "#7". Multi-digit strings are raw numbers.
func ParseKeyCode(s string) (uint16, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty key")
	}
	if strings.HasPrefix(s, "#") {
		return parseRawCode(s[1:])
	}
	if code, ok := hidNames[s]; ok {
		return code, nil
	}
	return parseRawCode(s)
}

// ParseKeyCodes resolves a list of keys.
func ParseKeyCodes(keys []string) ([]uint16, error) {
	codes := make([]uint16, 0, len(keys))
	for _, key := range keys {
		code, err := ParseKeyCode(key)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func parseRawCode(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return uint16(v), nil
}

// KeyName returns the display name of an HID code, or the number itself.
func KeyName(code uint16) string {
	best := ""
	for name, c := range hidNames {
		if c != code {
			continue
		}
		// Prefer the shortest alias for stable output.
		if best == "" || len(name) < len(best) || (len(name) == len(best) && name < best) {
			best = name
		}
	}
	if best == "" {
		return strconv.Itoa(int(code))
	}
	return best
}
