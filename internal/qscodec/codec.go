// Package qscodec implements the packet codec (spec.md §4.2): building
// outbound command payloads with per-field widths negotiated in
// internal/qsinfo, and recognizing the handful of inbound record IDs the
// link layer dispatches on.
package qscodec

import (
	"bytes"
	"fmt"

	"github.com/qutest-go/qutest/internal/qsinfo"
)

// Inbound record IDs the link layer dispatches on (spec.md §4.2, §6).
const (
	RecTextEcho      = 0
	RecTargetInfo    = 64
	RecAssertFail    = 69
	RecQFRun         = 70
	RecAttachConfirm = 128
	RecDetach        = 129
)

// QSPY-only outbound record IDs (spec.md §6): interpreted by the back end
// itself rather than forwarded to the target.
const (
	RecordID_ATTACH        = 128
	RecordID_DETACH        = 129
	RecordID_SAVE_DICT     = 130
	RecordID_TEXT_OUT      = 131
	RecordID_BIN_OUT       = 132
	RecordID_MATLAB_OUT    = 133
	RecordID_SEQUENCE_OUT  = 134
	RecordID_SEND_EVENT    = 135
	RecordID_SEND_AO_FILTER = 136
	RecordID_SEND_CURR_OBJ = 137
	RecordID_SEND_COMMAND  = 138
	RecordID_SEND_TEST_PROBE = 139
	RecordID_CLEAR_SCREEN  = 140
	RecordID_SHOW_NOTE     = 141
)

// Builder accumulates a packet payload: the record ID byte followed by its
// fields. The link layer prepends the sequence byte.
type Builder struct {
	buf bytes.Buffer
}

// NewBuilder starts a new payload, beginning with the record ID byte.
func NewBuilder(recordID byte) *Builder {
	b := &Builder{}
	b.buf.WriteByte(recordID)
	return b
}

// U8 appends a single byte.
func (b *Builder) U8(v uint8) *Builder {
	b.buf.WriteByte(v)
	return b
}

// U16 appends a little-endian uint16.
func (b *Builder) U16(v uint16) *Builder {
	b.buf.WriteByte(byte(v))
	b.buf.WriteByte(byte(v >> 8))
	return b
}

// U32 appends a little-endian uint32.
func (b *Builder) U32(v uint32) *Builder {
	b.buf.WriteByte(byte(v))
	b.buf.WriteByte(byte(v >> 8))
	b.buf.WriteByte(byte(v >> 16))
	b.buf.WriteByte(byte(v >> 24))
	return b
}

// U64 appends a little-endian uint64.
func (b *Builder) U64(v uint64) *Builder {
	for i := 0; i < 8; i++ {
		b.buf.WriteByte(byte(v >> (8 * i)))
	}
	return b
}

// Bytes appends raw bytes verbatim (used for poke's data and send-event's
// params).
func (b *Builder) Bytes(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

// Width appends v using exactly w bytes, per spec.md §9's "Runtime-variable
// integer widths" design note: the single write_uint(buf, value, tag)
// helper every pointer/counter field goes through.
func (b *Builder) Width(v uint64, w qsinfo.Width) *Builder {
	switch w {
	case qsinfo.Width1:
		return b.U8(uint8(v))
	case qsinfo.Width2:
		return b.U16(uint16(v))
	case qsinfo.Width4:
		return b.U32(uint32(v))
	case qsinfo.Width8:
		return b.U64(v)
	default:
		panic(fmt.Sprintf("qscodec: invalid width %d", w))
	}
}

// CString appends a zero-terminated UTF-8 string, used when an operation
// addresses an object/function/command/signal by name instead of address
// (spec.md §4.2, §4.5).
func (b *Builder) CString(s string) *Builder {
	b.buf.WriteString(s)
	b.buf.WriteByte(0)
	return b
}

// Bytes16 appends a 16-byte payload verbatim (the filter mask wire shape).
func (b *Builder) Bytes16(p [16]byte) *Builder {
	b.buf.Write(p[:])
	return b
}

// Payload returns the accumulated bytes (record ID + fields). The link
// layer is responsible for prepending the sequence byte before sendto.
func (b *Builder) Payload() []byte {
	return append([]byte(nil), b.buf.Bytes()...)
}

// RecordID peeks the second byte of a full inbound packet (seq, recordID,
// ...), per spec.md §4.2 ("Decoding is limited to dispatching on the
// second byte of inbound packets").
func RecordID(packet []byte) (byte, error) {
	if len(packet) < 2 {
		return 0, fmt.Errorf("qscodec: packet too short (%d bytes) to carry a record ID", len(packet))
	}
	return packet[1], nil
}

// TextEcho holds a decoded text-echo record: the embedded inner QS record
// ID (spec.md §4.2: "the byte after a one-byte reserved field") and the
// UTF-8 text payload starting at byte 3 of the original packet.
type TextEcho struct {
	InnerID byte
	Text    []byte
}

// DecodeTextEcho parses a text-echo packet's payload (bytes after the
// record-ID byte: reserved, innerID, then text).
func DecodeTextEcho(payload []byte) (TextEcho, error) {
	if len(payload) < 2 {
		return TextEcho{}, fmt.Errorf("qscodec: text-echo payload too short (%d bytes)", len(payload))
	}
	return TextEcho{InnerID: payload[1], Text: payload[2:]}, nil
}
