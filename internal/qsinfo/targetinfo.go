package qsinfo

import (
	"fmt"
	"sync"
)

// Info is the process-wide Target Info record (spec.md §3). It is
// zero-initialized at process start, populated on every received
// Target-Info record, and is implicitly considered stale (HaveInfo=false)
// between a target reset and the next Target-Info arrival.
type Info struct {
	mu sync.RWMutex

	QPVersion  int
	QPDate     int
	HaveInfo   bool
	TargetID   string // "YYMMDD_hhmmss" build timestamp string

	ObjectPtrWidth   Width
	FunctionPtrWidth Width
	TimestampWidth   Width
	SignalWidth      Width
	EventSizeWidth   Width
	QueueCtrWidth    Width
	PoolCtrWidth     Width
	PoolBlkWidth     Width
	TEvtCtrWidth     Width
}

// New returns a zero-initialized, not-yet-attached Info.
func New() *Info {
	return &Info{}
}

// Clear marks the info stale; called when a reset is initiated, per spec.md
// §3's lifecycle note ("cleared implicitly by target reset until the next
// Target-Info arrives").
func (i *Info) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.HaveInfo = false
}

// Snapshot returns a copy safe to read without holding the lock further.
func (i *Info) Snapshot() Info {
	i.mu.RLock()
	defer i.mu.RUnlock()
	cp := *i
	cp.mu = sync.RWMutex{}
	return cp
}

// TargetInfoRecordID is the QS record ID for the Target-Info record
// (spec.md §6, QS_TARGET_INFO).
const TargetInfoRecordID = 64

// legacyPayloadLen is the pre-QP-8.0 payload length (without the trailing
// inverted release number). Packets this short must be rejected as fatal
// per spec.md §4.1 ("Older packet sizes must be rejected with a fatal link
// error").
const legacyPayloadLen = 11 // 5 width bytes + 6 BCD bytes, no version field

// currentPayloadLen is the QP-8.0+ payload length: 5 width bytes, 6 BCD
// bytes, and a 4-byte bitwise-inverted release number.
const currentPayloadLen = 15

// Decode parses a Target-Info payload (the bytes following the record ID,
// i.e. NOT including the leading sequence byte or the record-ID byte) and
// applies it to i. Returns an error for any length other than
// currentPayloadLen; legacyPayloadLen is detected and reported distinctly
// so the caller can log which (rejected) wire format was seen.
func (i *Info) Decode(payload []byte) error {
	if len(payload) == legacyPayloadLen {
		return fmt.Errorf("qsinfo: pre-QP-8.0 target-info format (length %d) is not supported", len(payload))
	}
	if len(payload) != currentPayloadLen {
		return fmt.Errorf("qsinfo: malformed target-info payload: want %d bytes, got %d", currentPayloadLen, len(payload))
	}

	sigW, err := nibbleWidth(payload[0] & 0x0F)
	if err != nil {
		return err
	}
	evtSizeW, err := nibbleWidth(payload[0] >> 4)
	if err != nil {
		return err
	}
	queueCtrW, err := nibbleWidth(payload[1] & 0x0F)
	if err != nil {
		return err
	}
	tevtCtrW, err := nibbleWidth(payload[1] >> 4)
	if err != nil {
		return err
	}
	poolBlkW, err := nibbleWidth(payload[2] & 0x0F)
	if err != nil {
		return err
	}
	poolCtrW, err := nibbleWidth(payload[2] >> 4)
	if err != nil {
		return err
	}
	objPtrW, err := nibbleWidth(payload[3] & 0x0F)
	if err != nil {
		return err
	}
	funPtrW, err := nibbleWidth(payload[3] >> 4)
	if err != nil {
		return err
	}
	tsW, err := nibbleWidth(payload[4] & 0x0F)
	if err != nil {
		return err
	}

	yy, mm, dd := payload[5], payload[6], payload[7]
	hh, mi, ss := payload[8], payload[9], payload[10]
	targetID := fmt.Sprintf("%02d%02d%02d_%02d%02d%02d", yy, mm, dd, hh, mi, ss)

	raw := uint32(payload[11]) | uint32(payload[12])<<8 | uint32(payload[13])<<16 | uint32(payload[14])<<24
	release := ^raw
	qpVersion := int(release % 10000)
	qpDate := int(release / 10000)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.SignalWidth = sigW
	i.EventSizeWidth = evtSizeW
	i.QueueCtrWidth = queueCtrW
	i.TEvtCtrWidth = tevtCtrW
	i.PoolBlkWidth = poolBlkW
	i.PoolCtrWidth = poolCtrW
	i.ObjectPtrWidth = objPtrW
	i.FunctionPtrWidth = funPtrW
	i.TimestampWidth = tsW
	i.TargetID = targetID
	i.QPVersion = qpVersion
	i.QPDate = qpDate
	i.HaveInfo = true
	return nil
}

// AtLeast reports whether the negotiated qp_version is >= major*100+minor*10
// (qp_version is stored as the low 4 decimal digits of the release number,
// e.g. 720 for 7.2.0), used to gate the pre-v7.2.0 reset-on-assert behavior
// and the pre-v8 AO filter mask position (spec.md §4.7, §9).
func (i *Info) AtLeast(major, minor int) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.QPVersion >= major*100+minor*10
}
