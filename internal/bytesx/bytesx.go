// Package bytesx provides bounds-checked little-endian reads and small
// formatting helpers shared by the wire codecs. Both hub protocols are
// little-endian throughout, so the accessors here never take a byte order.
package bytesx

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Uint16 reads a little-endian uint16 at off. ok is false when fewer than
// two bytes remain.
func Uint16(b []byte, off int) (v uint16, ok bool) {
	if off < 0 || off+2 > len(b) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[off:]), true
}

// Uint32 reads a little-endian uint32 at off.
func Uint32(b []byte, off int) (v uint32, ok bool) {
	if off < 0 || off+4 > len(b) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[off:]), true
}

// Int16 reads a little-endian two's complement int16 at off.
func Int16(b []byte, off int) (v int16, ok bool) {
	u, ok := Uint16(b, off)
	return int16(u), ok
}

// Int32 reads a little-endian two's complement int32 at off.
func Int32(b []byte, off int) (v int32, ok bool) {
	u, ok := Uint32(b, off)
	return int32(u), ok
}

// Byte reads the byte at off.
func Byte(b []byte, off int) (v byte, ok bool) {
	if off < 0 || off >= len(b) {
		return 0, false
	}
	return b[off], true
}

// AppendUint16 appends v in little-endian order.
func AppendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

// AppendUint32 appends v in little-endian order.
func AppendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// Hex renders b as upper-case space-separated hex octets, e.g. "06 00 01".
// Used for frame dumps in logs and diagnostics.
func Hex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	return sb.String()
}
