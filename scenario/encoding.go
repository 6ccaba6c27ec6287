package scenario

import (
	"golang.org/x/text/encoding/unicode"
)

// encodeUTF16 returns s as UTF-16LE followed by a terminating zero unit, the
// way the target stores overlay names.
func encodeUTF16(s string) ([]byte, error) {
	return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s + "\x00"))
}
