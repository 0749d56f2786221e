package qsinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPayload(widthNibble byte, yy, mm, dd, hh, mi, ss byte, release uint32) []byte {
	b := make([]byte, currentPayloadLen)
	b[0] = widthNibble | widthNibble<<4
	b[1] = widthNibble | widthNibble<<4
	b[2] = widthNibble | widthNibble<<4
	b[3] = widthNibble | widthNibble<<4
	b[4] = widthNibble
	b[5], b[6], b[7] = yy, mm, dd
	b[8], b[9], b[10] = hh, mi, ss
	inv := ^release
	b[11] = byte(inv)
	b[12] = byte(inv >> 8)
	b[13] = byte(inv >> 16)
	b[14] = byte(inv >> 24)
	return b
}

func TestDecodeAllWidthsH(t *testing.T) {
	i := New()
	require.False(t, i.HaveInfo)

	payload := buildPayload(2, 23, 6, 15, 10, 30, 0, 721) // qp_version=721, qp_date=0
	require.NoError(t, i.Decode(payload))

	assert.True(t, i.HaveInfo)
	assert.Equal(t, Width2, i.SignalWidth)
	assert.Equal(t, Width2, i.ObjectPtrWidth)
	assert.Equal(t, "230615_103000", i.TargetID)
	assert.Equal(t, 721, i.QPVersion)
	assert.True(t, i.AtLeast(7, 2))
	assert.False(t, i.AtLeast(7, 3))
}

func TestDecodeRejectsLegacyLength(t *testing.T) {
	i := New()
	err := i.Decode(make([]byte, legacyPayloadLen))
	require.Error(t, err)
	assert.False(t, i.HaveInfo)
}

func TestDecodeRejectsBadLength(t *testing.T) {
	i := New()
	err := i.Decode(make([]byte, 3))
	require.Error(t, err)
}

func TestDecodeRejectsBadWidthNibble(t *testing.T) {
	i := New()
	payload := buildPayload(3, 1, 1, 1, 1, 1, 1, 700) // 3 is not a valid width nibble
	err := i.Decode(payload)
	require.Error(t, err)
}

func TestClearMarksStale(t *testing.T) {
	i := New()
	payload := buildPayload(4, 1, 1, 1, 1, 1, 1, 700)
	require.NoError(t, i.Decode(payload))
	require.True(t, i.HaveInfo)
	i.Clear()
	assert.False(t, i.HaveInfo)
}
