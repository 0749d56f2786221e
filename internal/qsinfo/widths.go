// Package qsinfo holds the negotiated wire-format widths and target identity
// (spec.md §3 "Target Info", §4.1). It is a process-wide singleton: every
// packet encoder in internal/qscodec consults it to know how many bytes to
// write for an object pointer, function pointer, signal, or counter field.
package qsinfo

import "fmt"

// Width is a per-field wire width, always one of 1, 2, 4, or 8 bytes. The
// design note in spec.md §9 ("Runtime-variable integer widths") calls this
// out explicitly: never use a native Go integer type to stand in for a
// target pointer, because the size is only known after attach.
type Width uint8

const (
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
	Width8 Width = 8
)

// nibbleWidth maps a 4-bit nibble from the target-info payload to a byte
// width. Per spec.md §4.1 the nibble indexes into the tuple
// (_, 'B', 'H', _, 'L', _, _, _, 'Q') meaning 1/2/4/8 byte widths at
// indices 1/2/4/8 respectively; any other index is invalid.
func nibbleWidth(n byte) (Width, error) {
	switch n {
	case 1:
		return Width1, nil
	case 2:
		return Width2, nil
	case 4:
		return Width4, nil
	case 8:
		return Width8, nil
	default:
		return 0, fmt.Errorf("qsinfo: invalid width nibble %d", n)
	}
}

func (w Width) String() string {
	switch w {
	case Width1:
		return "B"
	case Width2:
		return "H"
	case Width4:
		return "L"
	case Width8:
		return "Q"
	default:
		return fmt.Sprintf("?%d", uint8(w))
	}
}
