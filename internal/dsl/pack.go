package dsl

import (
	"encoding/binary"
	"fmt"
)

// packValues is the structured stand-in for the DSL's pack(fmt, ...) helper
// (spec.md §4.10): each format character consumes one value from values and
// appends it little-endian, the same byte order the wire protocol itself
// uses (spec.md §6). Recognized characters: B/b = 1 byte, H/h = 2 bytes,
// I/i/L/l = 4 bytes, Q/q = 8 bytes.
func packValues(format string, values []uint64) ([]byte, error) {
	if len(format) != len(values) {
		return nil, fmt.Errorf("dsl: pack format %q needs %d values, got %d", format, len(format), len(values))
	}
	var out []byte
	for i, c := range format {
		v := values[i]
		switch c {
		case 'B', 'b':
			out = append(out, byte(v))
		case 'H', 'h':
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		case 'I', 'i', 'L', 'l':
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		case 'Q', 'q':
			out = binary.LittleEndian.AppendUint64(out, v)
		default:
			return nil, fmt.Errorf("dsl: pack: unknown format character %q", c)
		}
	}
	return out, nil
}
