package runner

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qutest-go/qutest/internal/qscmd"
	"github.com/qutest-go/qutest/internal/qsinfo"
	"github.com/qutest-go/qutest/internal/qslink"
	"github.com/qutest-go/qutest/internal/qsmatch"
)

// buildInfoPayload constructs a 15-byte post-QP-8.0 target-info payload
// with every width nibble set to 2 (the 2-byte "H" width), a fixed build
// timestamp, and the given negotiated qp_version baked into the
// bitwise-inverted release field.
func buildInfoPayload(qpVersion uint32) []byte {
	p := make([]byte, 15)
	for i := 0; i < 4; i++ {
		p[i] = 0x22
	}
	p[4] = 2
	p[5], p[6], p[7] = 23, 6, 15
	p[8], p[9], p[10] = 10, 30, 0
	release := qpVersion
	inv := ^release
	p[11] = byte(inv)
	p[12] = byte(inv >> 8)
	p[13] = byte(inv >> 16)
	p[14] = byte(inv >> 24)
	return p
}

func textEchoPacket(innerID byte, text string) []byte {
	out := []byte{0, 0, innerID}
	out = append(out, []byte(text)...)
	return out
}

// fakeTarget is a UDP stub acting as both QSPY and the embedded target for
// runner-level integration tests.
type fakeTarget struct {
	conn      *net.UDPConn
	qpVersion uint32
}

func newFakeTarget(t *testing.T, qpVersion uint32) (*fakeTarget, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	ft := &fakeTarget{conn: conn, qpVersion: qpVersion}
	return ft, conn.LocalAddr().(*net.UDPAddr).Port
}

func (f *fakeTarget) write(b []byte, to *net.UDPAddr) { f.conn.WriteToUDP(b, to) }

func (f *fakeTarget) writeRecord(rid byte, payload []byte, to *net.UDPAddr) {
	out := append([]byte{0, rid}, payload...)
	f.write(out, to)
}

// serve runs the scripted reply loop for S2/S3-style scenarios: attach,
// info, reset (target-info + QF_RUN), test-setup/teardown acks, and an
// ordinary text record for the test body's own expect().
func (f *fakeTarget) serve(t *testing.T, bodyText string) {
	t.Helper()
	go func() {
		buf := make([]byte, 1500)
		for {
			f.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			n, from, err := f.conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			req := append([]byte(nil), buf[:n]...)
			if len(req) < 2 {
				continue
			}
			switch req[1] {
			case 128: // ATTACH
				f.write([]byte{0, 128}, from)
			case 0: // INFO
				f.writeRecord(64, buildInfoPayload(f.qpVersion), from)
			case 2: // RESET
				go func() {
					time.Sleep(5 * time.Millisecond)
					f.writeRecord(64, buildInfoPayload(f.qpVersion), from)
					time.Sleep(5 * time.Millisecond)
					f.write(textEchoPacket(qfRunRecordID, "0000000000 QF_RUN"), from)
				}()
			case 7: // TEST_SETUP
				f.write(textEchoPacket(0, "0000000001 Trg-Ack  QS_RX_TEST_SETUP"), from)
			case 8: // TEST_TEARDOWN
				f.write(textEchoPacket(0, "0000000003 Trg-Ack  QS_RX_TEST_TEARDOWN"), from)
			case 16: // EVENT -- the test body's own expectation
				f.write(textEchoPacket(0, bodyText), from)
			}
		}
	}()
}

func (f *fakeTarget) close() { f.conn.Close() }

func dialAndAttach(t *testing.T, port int, info *qsinfo.Info) *qslink.Link {
	t.Helper()
	link, err := qslink.Dial("127.0.0.1", port, 0, info)
	require.NoError(t, err)
	link.Timeout = 500 * time.Millisecond
	require.NoError(t, link.Attach(context.Background(), qslink.ChannelBoth))
	return link
}

func TestFullTestLifecyclePasses(t *testing.T) {
	ft, port := newFakeTarget(t, 800)
	defer ft.close()
	ft.serve(t, "0000000002 Received Event<PHILO_EAT> for AO_Philo0")

	info := qsinfo.New()
	link := dialAndAttach(t, port, info)
	defer link.Close()

	cmd := qscmd.New(link, info)
	match := qsmatch.New()
	r := New(cmd, link, info, match, nil)

	ctx := context.Background()
	r.StartGroup("dpp.qutest")

	flow, err := r.Test(ctx, "philosopher eats", 0)
	require.NoError(t, err)
	assert.Equal(t, FlowContinue, flow)
	assert.Equal(t, StateTest, r.State())

	require.NoError(t, cmd.SendEvent(qscmd.EventPublish, 1, nil))
	flow, err = r.Expect(ctx, "@timestamp Received Event<*> for AO_Philo?")
	require.NoError(t, err)
	assert.Equal(t, FlowContinue, flow)

	flow, err = r.EndTest(ctx)
	require.NoError(t, err)
	assert.Equal(t, FlowContinue, flow)
	assert.Equal(t, StateInit, r.State())
	assert.Equal(t, 0, r.NumFailed())

	r.EndGroup()
	code := r.Finish()
	assert.Equal(t, 0, code)
}

func TestExpectMismatchFailsTest(t *testing.T) {
	ft, port := newFakeTarget(t, 800)
	defer ft.close()
	ft.serve(t, "0000000002 totally different line")

	info := qsinfo.New()
	link := dialAndAttach(t, port, info)
	defer link.Close()

	cmd := qscmd.New(link, info)
	match := qsmatch.New()
	r := New(cmd, link, info, match, nil)

	ctx := context.Background()
	r.StartGroup("dpp.qutest")
	_, err := r.Test(ctx, "mismatched expectation", 0)
	require.NoError(t, err)

	require.NoError(t, cmd.SendEvent(qscmd.EventPublish, 1, nil))
	flow, err := r.Expect(ctx, "@timestamp Received Event<*> for AO_Philo?")
	require.NoError(t, err)
	assert.Equal(t, FlowContinue, flow)
	assert.Equal(t, StateFail, r.State())
	assert.Equal(t, 1, r.NumFailed())
}

func TestNoResetChainingSkipsResetPacketAfterPass(t *testing.T) {
	ft, port := newFakeTarget(t, 800)
	defer ft.close()

	var resets int32
	go func() {
		buf := make([]byte, 1500)
		ts := 0 // target-side timestamp, restarted by each reset
		for {
			ft.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			n, from, err := ft.conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			req := append([]byte(nil), buf[:n]...)
			if len(req) < 2 {
				continue
			}
			switch req[1] {
			case 128:
				ft.write([]byte{0, 128}, from)
			case 0:
				ft.writeRecord(64, buildInfoPayload(800), from)
			case 2:
				resets++
				ts = 0
				go func() {
					time.Sleep(5 * time.Millisecond)
					ft.writeRecord(64, buildInfoPayload(800), from)
					time.Sleep(5 * time.Millisecond)
					ft.write(textEchoPacket(qfRunRecordID, "0000000000 QF_RUN"), from)
				}()
			case 7:
				ts++
				ft.write(textEchoPacket(0, fmt.Sprintf("%010d Trg-Ack  QS_RX_TEST_SETUP", ts)), from)
			case 8:
				ts++
				ft.write(textEchoPacket(0, fmt.Sprintf("%010d Trg-Ack  QS_RX_TEST_TEARDOWN", ts)), from)
			}
		}
	}()

	info := qsinfo.New()
	link := dialAndAttach(t, port, info)
	defer link.Close()

	cmd := qscmd.New(link, info)
	match := qsmatch.New()
	r := New(cmd, link, info, match, nil)

	ctx := context.Background()
	r.StartGroup("dpp.qutest")

	_, err := r.Test(ctx, "t1", 0)
	require.NoError(t, err)
	_, err = r.EndTest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, r.NumFailed())

	_, err = r.Test(ctx, "t2 chained", OptNORESET)
	require.NoError(t, err)
	_, err = r.EndTest(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), resets)
}
