package qsfilter

// Record IDs, reproduced verbatim from _examples/original_source's
// QSpyRecords enum (qspy/qspypy/qspy.py), giving exact grounding for the
// integer-or-string record arguments in spec.md §4.4's token table.
const (
	QS_EMPTY = 0 // QS_TEXT / session record, not maskable

	// SM records [1..9]
	QS_QEP_STATE_ENTRY = 1
	QS_QEP_STATE_EXIT  = 2
	QS_QEP_STATE_INIT  = 3
	QS_QEP_INIT_TRAN   = 4
	QS_QEP_INTERN_TRAN = 5
	QS_QEP_TRAN        = 6
	QS_QEP_IGNORED     = 7
	QS_QEP_DISPATCH    = 8
	QS_QEP_UNHANDLED   = 9

	// AO records [10..18]
	QS_QF_ACTIVE_DEFER          = 10
	QS_QF_ACTIVE_RECALL         = 11
	QS_QF_ACTIVE_SUBSCRIBE      = 12
	QS_QF_ACTIVE_UNSUBSCRIBE    = 13
	QS_QF_ACTIVE_POST_FIFO      = 14
	QS_QF_ACTIVE_POST_LIFO      = 15
	QS_QF_ACTIVE_GET            = 16
	QS_QF_ACTIVE_GET_LAST       = 17
	QS_QF_ACTIVE_RECALL_ATTEMPT = 18

	// EQ records [19..22]
	QS_QF_EQUEUE_POST_FIFO = 19
	QS_QF_EQUEUE_POST_LIFO = 20
	QS_QF_EQUEUE_GET       = 21
	QS_QF_EQUEUE_GET_LAST  = 22

	QS_QF_RESERVED2 = 23

	// MP records [24..25]
	QS_QF_MPOOL_GET = 24
	QS_QF_MPOOL_PUT = 25

	// QF records [26..31]
	QS_QF_PUBLISH   = 26
	QS_QF_NEW_REF   = 27
	QS_QF_NEW       = 28
	QS_QF_GC_ATTEMPT = 29
	QS_QF_GC        = 30
	QS_QF_TICK      = 31

	// TE records [32..37]
	QS_QF_TIMEEVT_ARM            = 32
	QS_QF_TIMEEVT_AUTO_DISARM    = 33
	QS_QF_TIMEEVT_DISARM_ATTEMPT = 34
	QS_QF_TIMEEVT_DISARM         = 35
	QS_QF_TIMEEVT_REARM          = 36
	QS_QF_TIMEEVT_POST           = 37

	// QF records [38..44]
	QS_QF_DELETE_REF  = 38
	QS_QF_CRIT_ENTRY  = 39
	QS_QF_CRIT_EXIT   = 40
	QS_QF_ISR_ENTRY   = 41
	QS_QF_ISR_EXIT    = 42
	QS_QF_INT_DISABLE = 43
	QS_QF_INT_ENABLE  = 44

	// AO records [45]
	QS_QF_ACTIVE_POST_ATTEMPT = 45

	// EQ records [46]
	QS_QF_EQUEUE_POST_ATTEMPT = 46

	// MP records [47]
	QS_QF_MPOOL_GET_ATTEMPT = 47

	// SC records [48..54]
	QS_MUTEX_LOCK   = 48
	QS_MUTEX_UNLOCK = 49
	QS_SCHED_LOCK   = 50
	QS_SCHED_UNLOCK = 51
	QS_SCHED_NEXT   = 52
	QS_SCHED_IDLE   = 53
	QS_SCHED_RESUME = 54

	// QEP records [55..57]
	QS_QEP_TRAN_HIST = 55
	QS_QEP_TRAN_EP   = 56
	QS_QEP_TRAN_XP   = 57

	// Miscellaneous (not maskable) [58..69]
	QS_TEST_PAUSED   = 58
	QS_TEST_PROBE_GET = 59
	QS_SIG_DICT      = 60
	QS_OBJ_DICT      = 61
	QS_FUN_DICT      = 62
	QS_USR_DICT      = 63
	QS_TARGET_INFO   = 64
	QS_TARGET_DONE   = 65
	QS_RX_STATUS     = 66
	QS_MSC_RESERVED1 = 67
	QS_PEEK_DATA     = 68
	QS_ASSERT_FAIL   = 69

	// Application-specific (user) records start at 70; QS_USER1..QS_USER55
	// span 70..124, the range the U0..U4/UA bands below cover.
	QS_USER1 = 70
)

// names maps the record-name strings a script may reference (e.g.
// "QS_QF_TICK") to their numeric ID, used by RecordIDByName below.
var names = map[string]int{
	"QS_QEP_STATE_ENTRY": QS_QEP_STATE_ENTRY,
	"QS_QEP_STATE_EXIT":  QS_QEP_STATE_EXIT,
	"QS_QEP_STATE_INIT":  QS_QEP_STATE_INIT,
	"QS_QEP_INIT_TRAN":   QS_QEP_INIT_TRAN,
	"QS_QEP_INTERN_TRAN": QS_QEP_INTERN_TRAN,
	"QS_QEP_TRAN":        QS_QEP_TRAN,
	"QS_QEP_IGNORED":     QS_QEP_IGNORED,
	"QS_QEP_DISPATCH":    QS_QEP_DISPATCH,
	"QS_QEP_UNHANDLED":   QS_QEP_UNHANDLED,

	"QS_QF_ACTIVE_DEFER":          QS_QF_ACTIVE_DEFER,
	"QS_QF_ACTIVE_RECALL":         QS_QF_ACTIVE_RECALL,
	"QS_QF_ACTIVE_SUBSCRIBE":      QS_QF_ACTIVE_SUBSCRIBE,
	"QS_QF_ACTIVE_UNSUBSCRIBE":    QS_QF_ACTIVE_UNSUBSCRIBE,
	"QS_QF_ACTIVE_POST_FIFO":      QS_QF_ACTIVE_POST_FIFO,
	"QS_QF_ACTIVE_POST_LIFO":      QS_QF_ACTIVE_POST_LIFO,
	"QS_QF_ACTIVE_GET":            QS_QF_ACTIVE_GET,
	"QS_QF_ACTIVE_GET_LAST":       QS_QF_ACTIVE_GET_LAST,
	"QS_QF_ACTIVE_RECALL_ATTEMPT": QS_QF_ACTIVE_RECALL_ATTEMPT,

	"QS_QF_EQUEUE_POST_FIFO": QS_QF_EQUEUE_POST_FIFO,
	"QS_QF_EQUEUE_POST_LIFO": QS_QF_EQUEUE_POST_LIFO,
	"QS_QF_EQUEUE_GET":       QS_QF_EQUEUE_GET,
	"QS_QF_EQUEUE_GET_LAST":  QS_QF_EQUEUE_GET_LAST,

	"QS_QF_MPOOL_GET": QS_QF_MPOOL_GET,
	"QS_QF_MPOOL_PUT": QS_QF_MPOOL_PUT,

	"QS_QF_PUBLISH":    QS_QF_PUBLISH,
	"QS_QF_NEW_REF":    QS_QF_NEW_REF,
	"QS_QF_NEW":        QS_QF_NEW,
	"QS_QF_GC_ATTEMPT": QS_QF_GC_ATTEMPT,
	"QS_QF_GC":         QS_QF_GC,
	"QS_QF_TICK":       QS_QF_TICK,

	"QS_QF_TIMEEVT_ARM":            QS_QF_TIMEEVT_ARM,
	"QS_QF_TIMEEVT_AUTO_DISARM":    QS_QF_TIMEEVT_AUTO_DISARM,
	"QS_QF_TIMEEVT_DISARM_ATTEMPT": QS_QF_TIMEEVT_DISARM_ATTEMPT,
	"QS_QF_TIMEEVT_DISARM":         QS_QF_TIMEEVT_DISARM,
	"QS_QF_TIMEEVT_REARM":          QS_QF_TIMEEVT_REARM,
	"QS_QF_TIMEEVT_POST":           QS_QF_TIMEEVT_POST,

	"QS_QF_DELETE_REF":  QS_QF_DELETE_REF,
	"QS_QF_CRIT_ENTRY":  QS_QF_CRIT_ENTRY,
	"QS_QF_CRIT_EXIT":   QS_QF_CRIT_EXIT,
	"QS_QF_ISR_ENTRY":   QS_QF_ISR_ENTRY,
	"QS_QF_ISR_EXIT":    QS_QF_ISR_EXIT,
	"QS_QF_INT_DISABLE": QS_QF_INT_DISABLE,
	"QS_QF_INT_ENABLE":  QS_QF_INT_ENABLE,

	"QS_QF_ACTIVE_POST_ATTEMPT": QS_QF_ACTIVE_POST_ATTEMPT,
	"QS_QF_EQUEUE_POST_ATTEMPT": QS_QF_EQUEUE_POST_ATTEMPT,
	"QS_QF_MPOOL_GET_ATTEMPT":   QS_QF_MPOOL_GET_ATTEMPT,

	"QS_MUTEX_LOCK":   QS_MUTEX_LOCK,
	"QS_MUTEX_UNLOCK": QS_MUTEX_UNLOCK,
	"QS_SCHED_LOCK":   QS_SCHED_LOCK,
	"QS_SCHED_UNLOCK": QS_SCHED_UNLOCK,
	"QS_SCHED_NEXT":   QS_SCHED_NEXT,
	"QS_SCHED_IDLE":   QS_SCHED_IDLE,
	"QS_SCHED_RESUME": QS_SCHED_RESUME,

	"QS_QEP_TRAN_HIST": QS_QEP_TRAN_HIST,
	"QS_QEP_TRAN_EP":   QS_QEP_TRAN_EP,
	"QS_QEP_TRAN_XP":   QS_QEP_TRAN_XP,

	"QS_TEST_PAUSED":    QS_TEST_PAUSED,
	"QS_TEST_PROBE_GET": QS_TEST_PROBE_GET,
	"QS_SIG_DICT":       QS_SIG_DICT,
	"QS_OBJ_DICT":       QS_OBJ_DICT,
	"QS_FUN_DICT":       QS_FUN_DICT,
	"QS_USR_DICT":       QS_USR_DICT,
	"QS_TARGET_INFO":    QS_TARGET_INFO,
	"QS_TARGET_DONE":    QS_TARGET_DONE,
	"QS_RX_STATUS":      QS_RX_STATUS,
	"QS_PEEK_DATA":      QS_PEEK_DATA,
	"QS_ASSERT_FAIL":    QS_ASSERT_FAIL,
}

// RecordIDByName resolves a record-name string (e.g. "QS_QF_TICK", or
// "QS_USER3" for an application-defined record) to its numeric ID.
func RecordIDByName(name string) (int, bool) {
	if id, ok := names[name]; ok {
		return id, true
	}
	// Application records QS_USER1..QS_USER55 (IDs 70..124) are named
	// positionally rather than individually enumerated.
	var n int
	if _, err := fmtSscanUser(name, &n); err == nil && n >= 1 && n <= 55 {
		return QS_USER1 + n - 1, true
	}
	return 0, false
}

// fmtSscanUser parses the decimal suffix of "QS_USERn" into n; kept tiny
// and local to this lookup.
func fmtSscanUser(name string, n *int) (int, error) {
	const prefix = "QS_USER"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return 0, errNotUser
	}
	val := 0
	for _, c := range name[len(prefix):] {
		if c < '0' || c > '9' {
			return 0, errNotUser
		}
		val = val*10 + int(c-'0')
	}
	*n = val
	return 1, nil
}

var errNotUser = errRecordNotUser{}

type errRecordNotUser struct{}

func (errRecordNotUser) Error() string { return "not a QS_USERn record name" }
