// Package qslink owns the connection-oriented UDP channel to the QSPY
// back end (spec.md §4.3): the socket, sequence counters, attach/detach
// handshake, and dispatch of inbound records to Target Info, the
// Expectation Matcher's last-record slot, and the script runner's fatal
// signals.
package qslink

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/qutest-go/qutest/internal/logger"
	"github.com/qutest-go/qutest/internal/qscodec"
	"github.com/qutest-go/qutest/internal/qsinfo"
)

// Channels selects which inbound streams to attach for, per spec.md §4.3.
type Channels byte

const (
	ChannelBinary Channels = 1
	ChannelText   Channels = 2
	ChannelBoth   Channels = ChannelBinary | ChannelText
)

// DefaultTimeout is the link layer's default receive timeout (spec.md
// §4.3).
const DefaultTimeout = 1000 * time.Millisecond

// ProtocolError is a fatal framing violation: a short datagram or an
// unrecognized record ID (spec.md §4.3 "Dispatch", §7).
type ProtocolError struct{ Msg string }

func (e *ProtocolError) Error() string { return "qslink: protocol error: " + e.Msg }

// DetachedError signals an unsolicited detach from the back end, fatal to
// the whole run (spec.md §4.3 "Detach").
type DetachedError struct{}

func (e *DetachedError) Error() string { return "qslink: back end sent an unsolicited detach" }

// Link is the process-wide singleton link state (spec.md §3 "Link State").
type Link struct {
	conn    *net.UDPConn
	raddr   *net.UDPAddr
	Timeout time.Duration
	Info    *qsinfo.Info

	txSeq byte
	rxSeq byte

	IsAttached bool
	LastRecord []byte

	// InfoFresh is signalled (non-blocking) whenever a Target-Info record
	// is successfully decoded, unblocking a pending reset-wait (spec.md
	// §4.1 "Publishes a single event ... target info fresh").
	InfoFresh chan struct{}

	// Assert is signalled when a text-echo's embedded inner ID is the
	// assertion record (spec.md §4.7).
	Assert chan struct{}
}

// Dial opens the UDP socket and resolves the back end's address. localPort
// 0 lets the OS choose a port, per spec.md §3.
func Dial(host string, udpPort int, localPort int, info *qsinfo.Info) (*Link, error) {
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, udpPort))
	if err != nil {
		return nil, fmt.Errorf("qslink: resolve %s:%d: %w", host, udpPort, err)
	}
	laddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("0.0.0.0:%d", localPort))
	if err != nil {
		return nil, fmt.Errorf("qslink: resolve local port %d: %w", localPort, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("qslink: bind: %w", err)
	}
	return &Link{
		conn:      conn,
		raddr:     raddr,
		Timeout:   DefaultTimeout,
		Info:      info,
		InfoFresh: make(chan struct{}, 1),
		Assert:    make(chan struct{}, 1),
	}, nil
}

// Close releases the socket unconditionally; safe to call more than once.
func (l *Link) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

// send prepends the sequence byte, wraps tx_seq mod 256, and performs a
// single non-fragmented sendto (spec.md §4.3 "Send"). Returns the sequence
// byte that was used, for invariant checks in tests.
func (l *Link) send(payload []byte) (byte, error) {
	seq := l.txSeq
	out := make([]byte, 0, len(payload)+1)
	out = append(out, seq)
	out = append(out, payload...)
	l.txSeq++ // wraps cleanly mod 256 via uint8 overflow

	if _, err := l.conn.WriteToUDP(out, l.raddr); err != nil {
		return seq, fmt.Errorf("qslink: sendto: %w", err)
	}
	logger.Debug("qslink: sent", "seq", seq, "len", len(out))
	return seq, nil
}

// Send is the public entry point used by internal/qscmd.
func (l *Link) Send(payload []byte) error {
	_, err := l.send(payload)
	return err
}

// TxSeq exposes the current (next-to-use) tx sequence counter, for tests of
// invariant 1 (spec.md §8).
func (l *Link) TxSeq() byte { return l.txSeq }

// Attach sends the attach packet and blocks (polling Receive) until an
// attach-confirm arrives or five receive timeouts (5 * l.Timeout) elapse
// (spec.md §4.3 "Attach handshake").
func (l *Link) Attach(ctx context.Context, channels Channels) error {
	b := qscodec.NewBuilder(qscodec.RecordID_ATTACH).U8(byte(channels))
	if err := l.Send(b.Payload()); err != nil {
		return err
	}
	deadline := time.Now().Add(5 * l.Timeout)
	for time.Now().Before(deadline) {
		ok, err := l.Receive(ctx)
		if err != nil {
			return err
		}
		if ok && l.IsAttached {
			return nil
		}
	}
	return fmt.Errorf("qslink: timed out waiting for attach confirm")
}

// Detach sends the detach packet, briefly sleeps to flush, and closes the
// socket (spec.md §4.3 "Detach").
func (l *Link) Detach() error {
	if l.conn == nil {
		return nil
	}
	b := qscodec.NewBuilder(qscodec.RecordID_DETACH)
	_ = l.Send(b.Payload())
	time.Sleep(50 * time.Millisecond)
	l.IsAttached = false
	return l.Close()
}

// Receive blocks for up to l.Timeout waiting for one datagram. It returns
// (true, nil) when a full packet was consumed and dispatched, (false, nil)
// on timeout (LastRecord is left untouched -- spec.md says "empty" but we
// preserve the prior Expectation Matcher contract of "no new record"),
// and a non-nil error for a fatal protocol violation or detach.
func (l *Link) Receive(ctx context.Context) (bool, error) {
	if l.conn == nil {
		return false, fmt.Errorf("qslink: receive on closed link")
	}
	buf := make([]byte, 1500)
	if err := l.conn.SetReadDeadline(time.Now().Add(l.Timeout)); err != nil {
		return false, err
	}
	n, err := l.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, fmt.Errorf("qslink: recv: %w", err)
	}
	packet := buf[:n]
	if len(packet) < 2 {
		return false, &ProtocolError{Msg: fmt.Sprintf("datagram shorter than 2 bytes (%d)", len(packet))}
	}
	l.rxSeq = packet[0]
	rid, _ := qscodec.RecordID(packet)
	payload := packet[2:]

	switch rid {
	case qscodec.RecTextEcho:
		te, err := qscodec.DecodeTextEcho(payload)
		if err != nil {
			return false, &ProtocolError{Msg: err.Error()}
		}
		l.LastRecord = append([]byte(nil), te.Text...)
		if te.InnerID == qscodec.RecAssertFail {
			nonBlockingSignal(l.Assert)
		}
	case qscodec.RecTargetInfo:
		if err := l.Info.Decode(payload); err != nil {
			return false, &ProtocolError{Msg: err.Error()}
		}
		nonBlockingSignal(l.InfoFresh)
	case qscodec.RecAttachConfirm:
		l.IsAttached = true
	case qscodec.RecDetach:
		l.IsAttached = false
		return false, &DetachedError{}
	default:
		return false, &ProtocolError{Msg: fmt.Sprintf("unrecognized record ID %d", rid)}
	}
	return true, nil
}

func nonBlockingSignal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// RXSeq exposes the most recently observed inbound sequence byte
// (informational per spec.md §3).
func (l *Link) RXSeq() byte { return l.rxSeq }
