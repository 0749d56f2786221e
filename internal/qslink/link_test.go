package qslink

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qutest-go/qutest/internal/qsinfo"
)

// fakeBackend is a minimal UDP stub standing in for QSPY, used to exercise
// S1 (attach/info) from spec.md §8.
type fakeBackend struct {
	conn *net.UDPConn
}

func newFakeBackend(t *testing.T) (*fakeBackend, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	return &fakeBackend{conn: conn}, conn.LocalAddr().(*net.UDPAddr).Port
}

func (f *fakeBackend) respond(t *testing.T, reply func(req []byte, from *net.UDPAddr)) {
	t.Helper()
	go func() {
		buf := make([]byte, 1500)
		for {
			f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, addr, err := f.conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			reply(append([]byte(nil), buf[:n]...), addr)
		}
	}()
}

func (f *fakeBackend) close() { f.conn.Close() }

func TestAttachAndInfoHandshake(t *testing.T) {
	// S1: attach/info from spec.md §8.
	be, port := newFakeBackend(t)
	defer be.close()

	be.respond(t, func(req []byte, from *net.UDPAddr) {
		if len(req) < 2 {
			return
		}
		rid := req[1]
		switch rid {
		case 128: // ATTACH
			be.conn.WriteToUDP([]byte{0, 128}, from)
		case 0: // INFO query
			payload := make([]byte, 15)
			for i := 0; i < 4; i++ {
				payload[i] = 0x22 // all widths nibble=2 (H)
			}
			payload[4] = 2
			payload[5], payload[6], payload[7] = 23, 6, 15
			payload[8], payload[9], payload[10] = 10, 30, 0
			release := uint32(800)
			inv := ^release
			payload[11] = byte(inv)
			payload[12] = byte(inv >> 8)
			payload[13] = byte(inv >> 16)
			payload[14] = byte(inv >> 24)
			out := append([]byte{0, 64}, payload...)
			be.conn.WriteToUDP(out, from)
		}
	})

	info := qsinfo.New()
	link, err := Dial("127.0.0.1", port, 0, info)
	require.NoError(t, err)
	defer link.Close()
	link.Timeout = 500 * time.Millisecond

	require.NoError(t, link.Attach(context.Background(), ChannelBoth))
	assert.True(t, link.IsAttached)

	require.NoError(t, link.Send([]byte{0}))
	ok, err := link.Receive(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, info.HaveInfo)
	assert.Equal(t, "230615_103000", info.TargetID)
}

func TestReceiveTimeout(t *testing.T) {
	be, port := newFakeBackend(t)
	defer be.close()

	info := qsinfo.New()
	link, err := Dial("127.0.0.1", port, 0, info)
	require.NoError(t, err)
	defer link.Close()
	link.Timeout = 50 * time.Millisecond

	ok, err := link.Receive(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, link.LastRecord)
}

func TestReceiveShortDatagramIsProtocolError(t *testing.T) {
	be, port := newFakeBackend(t)
	defer be.close()

	info := qsinfo.New()
	link, err := Dial("127.0.0.1", port, 0, info)
	require.NoError(t, err)
	defer link.Close()
	link.Timeout = 500 * time.Millisecond

	go func() {
		time.Sleep(20 * time.Millisecond)
		be.conn.WriteToUDP([]byte{1}, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: link.conn.LocalAddr().(*net.UDPAddr).Port})
	}()

	_, err = link.Receive(context.Background())
	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestDetachFromBackendIsFatal(t *testing.T) {
	be, port := newFakeBackend(t)
	defer be.close()

	info := qsinfo.New()
	link, err := Dial("127.0.0.1", port, 0, info)
	require.NoError(t, err)
	defer link.Close()
	link.Timeout = 500 * time.Millisecond
	link.IsAttached = true

	go func() {
		time.Sleep(20 * time.Millisecond)
		be.conn.WriteToUDP([]byte{0, 129}, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: link.conn.LocalAddr().(*net.UDPAddr).Port})
	}()

	_, err = link.Receive(context.Background())
	var detachErr *DetachedError
	assert.ErrorAs(t, err, &detachErr)
	assert.False(t, link.IsAttached)
}

func TestTxSeqWrapsModulo256(t *testing.T) {
	be, port := newFakeBackend(t)
	defer be.close()

	info := qsinfo.New()
	link, err := Dial("127.0.0.1", port, 0, info)
	require.NoError(t, err)
	defer link.Close()

	link.txSeq = 255
	seq, err := link.send([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, byte(255), seq)
	assert.Equal(t, byte(0), link.TxSeq())
}
