package tasks

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// WindowID is an opaque window handle assigned by the window system. It is
// compared directly; the textual form exists only for output.
type WindowID uint64

// String returns the canonical form: lower-case hex with a 0x prefix.
func (id WindowID) String() string {
	return "0x" + strconv.FormatUint(uint64(id), 16)
}

// ParseWindowID accepts "0x"-prefixed or bare hex. Hyprland event payloads
// omit the prefix while its JSON replies include it.
func ParseWindowID(s string) (WindowID, error) {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if trimmed == "" {
		return 0, fmt.Errorf("invalid window id %q: empty", s)
	}
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q: %w", s, err)
	}
	return WindowID(v), nil
}

// HashWindowID derives a stable id from a string handle (KWin window UUIDs).
func HashWindowID(s string) WindowID {
	var hash uint64 = 5381
	for i := 0; i < len(s); i++ {
		hash = ((hash << 5) + hash) + uint64(s[i])
	}
	return WindowID(hash)
}

// MarshalText implements encoding.TextMarshaler.
func (id WindowID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *WindowID) UnmarshalText(text []byte) error {
	v, err := ParseWindowID(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// UnmarshalJSON accepts the canonical string form and, for hand-written
// input, a bare JSON number.
func (id *WindowID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] != '"' {
		var n uint64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid window id %s: %w", data, err)
		}
		*id = WindowID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return id.UnmarshalText([]byte(s))
}
