package state

import (
	"bytes"
	"strings"
)

// NamePlaceholder is shown when a player name buffer holds no terminated text.
const NamePlaceholder = "Name Error"

// PlayerName extracts the NUL-terminated string from a fixed-size name buffer.
// Invalid UTF-8 is replaced rather than rejected. ok is false when the buffer
// has no terminator.
func PlayerName(buf []byte) (string, bool) {
	i := bytes.IndexByte(buf, 0)
	if i < 0 {
		return "", false
	}
	return strings.ToValidUTF8(string(buf[:i]), "�"), true
}

// DisplayName is PlayerName with NamePlaceholder as the fallback.
func DisplayName(buf []byte) string {
	if name, ok := PlayerName(buf); ok {
		return name
	}
	return NamePlaceholder
}
