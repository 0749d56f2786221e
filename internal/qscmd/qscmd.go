// Package qscmd implements the high-level Command API (spec.md §4.5):
// synchronous operations that each send exactly one packet, built from
// internal/qscodec using widths negotiated in internal/qsinfo, dispatched
// over internal/qslink. Ack matching against the expected string is the
// caller's (internal/runner's) job via internal/qsmatch -- this package
// only knows how to shape and send the wire packet.
package qscmd

import (
	"fmt"

	"github.com/qutest-go/qutest/internal/qscodec"
	"github.com/qutest-go/qutest/internal/qsinfo"
	"github.com/qutest-go/qutest/internal/qslink"
)

// Record IDs sent directly to the target (spec.md §6 TRGT table).
const (
	ridInfo         = 0
	ridCommand      = 1
	ridReset        = 2
	ridTick         = 3
	ridPeek         = 4
	ridPoke         = 5
	ridFill         = 6
	ridTestSetup    = 7
	ridTestTeardown = 8
	ridTestProbe    = 9
	ridGlbFilter    = 10
	ridLocFilter    = 11
	ridAOFilter     = 12
	ridCurrObj      = 13
	ridContinue     = 14
	ridQueryCurr    = 15
	ridEvent        = 16
)

// Event kinds, encoded in the prio slot of send-event (spec.md §4.5).
const (
	EventPublish  = 0
	EventPost     = 253
	EventInit     = 254
	EventDispatch = 255
)

// Object/function kinds for current-obj / ao-filter (grounded in the
// original QS_OBJ_KIND enum: SM=0, AO=1, MP=2, EQ=3, TE=4, AP=5, SM_AO=6).
const (
	KindSM   = 0
	KindAO   = 1
	KindMP   = 2
	KindEQ   = 3
	KindTE   = 4
	KindAP   = 5
	KindSMAO = 6
)

// API bundles the link and the negotiated target info every encoder needs.
type API struct {
	Link *qslink.Link
	Info *qsinfo.Info
}

func New(link *qslink.Link, info *qsinfo.Info) *API {
	return &API{Link: link, Info: info}
}

func (a *API) send(b *qscodec.Builder) error {
	return a.Link.Send(b.Payload())
}

// Reset sends the RESET packet (spec.md §4.5 row "reset").
func (a *API) Reset() error {
	a.Info.Clear()
	return a.send(qscodec.NewBuilder(ridReset))
}

// InfoQuery requests a fresh Target-Info record.
func (a *API) InfoQuery() error {
	return a.send(qscodec.NewBuilder(ridInfo))
}

// Tick sends TICK(rate).
func (a *API) Tick(rate uint8) error {
	return a.send(qscodec.NewBuilder(ridTick).U8(rate))
}

// Peek sends PEEK(offset, size, num); size must be 1, 2, or 4 (spec.md §8
// boundary behavior).
func (a *API) Peek(offset uint16, size uint8, num uint8) error {
	if err := validSize(size); err != nil {
		return err
	}
	return a.send(qscodec.NewBuilder(ridPeek).U16(offset).U8(size).U8(num))
}

// Poke sends POKE(offset, size, data); len(data) must be a multiple of
// size.
func (a *API) Poke(offset uint16, size uint8, data []byte) error {
	if err := validSize(size); err != nil {
		return err
	}
	if len(data)%int(size) != 0 {
		return fmt.Errorf("qscmd: poke data length %d not a multiple of size %d", len(data), size)
	}
	num := uint8(len(data) / int(size))
	return a.send(qscodec.NewBuilder(ridPoke).U16(offset).U8(size).U8(num).Bytes(data))
}

// Fill sends FILL(offset, size, num, item), item truncated/widened to size
// bytes little-endian.
func (a *API) Fill(offset uint16, size uint8, num uint8, item uint32) error {
	if err := validSize(size); err != nil {
		return err
	}
	b := qscodec.NewBuilder(ridFill).U16(offset).U8(size).U8(num)
	switch size {
	case 1:
		b.U8(uint8(item))
	case 2:
		b.U16(uint16(item))
	case 4:
		b.U32(item)
	}
	return a.send(b)
}

func validSize(size uint8) error {
	if size != 1 && size != 2 && size != 4 {
		return fmt.Errorf("qscmd: size must be 1, 2, or 4, got %d", size)
	}
	return nil
}

// TestSetup sends TEST_SETUP.
func (a *API) TestSetup() error {
	return a.send(qscodec.NewBuilder(ridTestSetup))
}

// TestTeardown sends TEST_TEARDOWN.
func (a *API) TestTeardown() error {
	return a.send(qscodec.NewBuilder(ridTestTeardown))
}

// Probe sends TEST_PROBE(data, funcAddr), addressed directly to a function
// pointer.
func (a *API) Probe(funcAddr uint64, data uint32) error {
	return a.send(qscodec.NewBuilder(ridTestProbe).U32(data).Width(funcAddr, a.Info.FunctionPtrWidth))
}

// ProbeByName sends TEST_PROBE with the function addressed by name,
// resolved by the back end's dictionary (spec.md §4.5 "9 or name-variant").
func (a *API) ProbeByName(funcName string, data uint32) error {
	return a.send(qscodec.NewBuilder(qscodec.RecordID_SEND_TEST_PROBE).U32(data).CString(funcName))
}

// GlbFilter sends the 16-byte global filter mask (spec.md §4.4, §4.5).
func (a *API) GlbFilter(mask [16]byte) error {
	return a.send(qscodec.NewBuilder(ridGlbFilter).U8(16).Bytes16(mask))
}

// LocFilter sends the 16-byte local filter mask.
func (a *API) LocFilter(mask [16]byte) error {
	return a.send(qscodec.NewBuilder(ridLocFilter).U8(16).Bytes16(mask))
}

// AOFilter sends AO_FILTER(remove, objPtr), addressed directly.
func (a *API) AOFilter(remove bool, objAddr uint64) error {
	return a.send(qscodec.NewBuilder(ridAOFilter).U8(boolByte(remove)).Width(objAddr, a.Info.ObjectPtrWidth))
}

// AOFilterByName sends AO_FILTER with the object addressed by name.
func (a *API) AOFilterByName(remove bool, objName string) error {
	return a.send(qscodec.NewBuilder(qscodec.RecordID_SEND_AO_FILTER).U8(boolByte(remove)).CString(objName))
}

// CurrentObj sends CURR_OBJ(kind, objPtr), addressed directly.
func (a *API) CurrentObj(kind uint8, objAddr uint64) error {
	return a.send(qscodec.NewBuilder(ridCurrObj).U8(kind).Width(objAddr, a.Info.ObjectPtrWidth))
}

// CurrentObjByName sends CURR_OBJ with the object addressed by name.
func (a *API) CurrentObjByName(kind uint8, objName string) error {
	return a.send(qscodec.NewBuilder(qscodec.RecordID_SEND_CURR_OBJ).U8(kind).CString(objName))
}

// Continue sends CONTINUE, resuming a paused test.
func (a *API) Continue() error {
	return a.send(qscodec.NewBuilder(ridContinue))
}

// QueryCurrent sends QUERY_CURR(kind).
func (a *API) QueryCurrent(kind uint8) error {
	return a.send(qscodec.NewBuilder(ridQueryCurr).U8(kind))
}

// SendEvent sends EVENT(prio, sig, len, params), addressed directly by
// signal number.
func (a *API) SendEvent(prio uint8, sig uint64, params []byte) error {
	b := qscodec.NewBuilder(ridEvent).U8(prio).Width(sig, a.Info.SignalWidth).U16(uint16(len(params))).Bytes(params)
	return a.send(b)
}

// SendEventByName sends EVENT with the signal addressed by name, resolved
// by the back end's dictionary.
func (a *API) SendEventByName(prio uint8, sigName string, params []byte) error {
	b := qscodec.NewBuilder(qscodec.RecordID_SEND_EVENT).U8(prio).U16(uint16(len(params))).Bytes(params).CString(sigName)
	return a.send(b)
}

// Command sends COMMAND(cmdId, param1, param2, param3), addressed directly
// (spec.md §6's COMMAND=1, supplemented per SPEC_FULL.md).
func (a *API) Command(cmdID uint8, param1, param2, param3 uint32) error {
	return a.send(qscodec.NewBuilder(ridCommand).U8(cmdID).U32(param1).U32(param2).U32(param3))
}

// CommandByName sends COMMAND with the command addressed by name.
func (a *API) CommandByName(cmdName string, param1, param2, param3 uint32) error {
	b := qscodec.NewBuilder(qscodec.RecordID_SEND_COMMAND).U32(param1).U32(param2).U32(param3).CString(cmdName)
	return a.send(b)
}

// ShowNote asks the back end to display msg on its own console (spec.md
// §4.10 note(msg, TRACE), SHOW_NOTE QSPY-only record).
func (a *API) ShowNote(msg string) error {
	return a.send(qscodec.NewBuilder(qscodec.RecordID_SHOW_NOTE).CString(msg))
}

// ClearScreen asks QSPY to clear its own console (spec.md §6 CLEAR_SCREEN,
// the --opt c CLI flag).
func (a *API) ClearScreen() error {
	return a.send(qscodec.NewBuilder(qscodec.RecordID_CLEAR_SCREEN))
}

// SaveDict asks QSPY to save its current dictionaries to disk (spec.md §6
// SAVE_DICT, the --opt o/b CLI flags -- QSPY itself distinguishes text vs.
// binary save by its own configuration, not by a payload byte here).
func (a *API) SaveDict() error {
	return a.send(qscodec.NewBuilder(qscodec.RecordID_SAVE_DICT))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
