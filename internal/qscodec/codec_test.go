package qscodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qutest-go/qutest/internal/qsinfo"
)

func TestBuilderWidths(t *testing.T) {
	b := NewBuilder(5). // POKE
				U16(0x1234).
				U8(2).
				U8(1)
	payload := b.Payload()
	assert.Equal(t, []byte{5, 0x34, 0x12, 2, 1}, payload)
}

func TestBuilderWidthHelper(t *testing.T) {
	b := NewBuilder(13).Width(0xAABBCCDD, qsinfo.Width4)
	payload := b.Payload()
	assert.Equal(t, []byte{13, 0xDD, 0xCC, 0xBB, 0xAA}, payload)
}

func TestBuilderCString(t *testing.T) {
	b := NewBuilder(16).CString("AO_Philo")
	payload := b.Payload()
	assert.Equal(t, byte(0), payload[len(payload)-1])
	assert.Equal(t, "AO_Philo", string(payload[1:len(payload)-1]))
}

func TestRecordIDRejectsShortPacket(t *testing.T) {
	_, err := RecordID([]byte{1})
	require.Error(t, err)
}

func TestDecodeTextEcho(t *testing.T) {
	// payload = [reserved, innerID, 't','e','x','t']
	te, err := DecodeTextEcho([]byte{0, QS_ASSERT_FAIL_TEST, 't', 'e', 'x', 't'})
	require.NoError(t, err)
	assert.Equal(t, byte(QS_ASSERT_FAIL_TEST), te.InnerID)
	assert.Equal(t, "text", string(te.Text))
}

// QS_ASSERT_FAIL_TEST avoids importing qsfilter just for one constant in a
// codec-level test.
const QS_ASSERT_FAIL_TEST = 69

func TestReaderRoundTrip(t *testing.T) {
	b := NewBuilder(4).U16(0x1000).U8(2).U8(3)
	r := NewReader(b.Payload()[1:])
	off, err := r.U16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1000), off)
	sz, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), sz)
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader([]byte{1})
	_, err := r.U32()
	require.Error(t, err)
}
