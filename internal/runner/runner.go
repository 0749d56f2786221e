// Package runner implements the Script Runner State Machine (spec.md
// §4.7): INIT/TEST/FAIL/SKIP transitions, reset orchestration, NORESET
// chaining, assertion-driven recovery, and group/test counters.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/qutest-go/qutest/internal/banner"
	"github.com/qutest-go/qutest/internal/history"
	"github.com/qutest-go/qutest/internal/logger"
	"github.com/qutest-go/qutest/internal/qscmd"
	"github.com/qutest-go/qutest/internal/qsinfo"
	"github.com/qutest-go/qutest/internal/qslink"
	"github.com/qutest-go/qutest/internal/qsmatch"
	"github.com/qutest-go/qutest/internal/supervisor"
)

// State is one of the script runner's states (spec.md §4.7).
type State int

const (
	StateInit State = iota
	StateTest
	StateFail
	StateSkip
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateTest:
		return "TEST"
	case StateFail:
		return "FAIL"
	case StateSkip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// TestOpt bits, passed to Test as the script's test(title, opt) argument.
type TestOpt int

const (
	OptNORESET TestOpt = 1 << iota
)

// Flow is the exception-free control-flow sentinel used instead of
// propagating panics out of script execution (spec.md §9 design note):
// every DSL-facing call returns one of these alongside an error.
type Flow int

const (
	FlowContinue Flow = iota
	FlowAbortGroup
	FlowAbortRun
)

// assertionRecordID is the inner QS record ID denoting a target assertion
// inside a TEXT_ECHO (spec.md §4.2, §6).
const assertionRecordID = 69

// qfRunRecordID is the inner ID the runner's on_reset callback conventionally
// waits for after a successful reset (spec.md §4.7).
const qfRunRecordID = 70

// preGateMajor.preGateMinor is the qp_version below which an explicit reset packet is
// still sent even when have_assert is set (spec.md §4.7 "pre-version-7.2.0").
const preGateMajor, preGateMinor = 7, 2

// ResetDrainTimeout bounds how long the runner waits for have_info after a
// reset before declaring the reset (and the whole group) failed.
const ResetDrainTimeout = 2 * time.Second

// Hooks are optional callbacks run after a successful reset and after a
// passing test's teardown (spec.md §4.7). The YAML DSL Binding does not
// set them.
type Hooks struct {
	OnReset    func() error
	OnTeardown func() error
}

// Runner is one script execution's state machine. It shares the
// process-wide Link/Info singletons but owns its own counters (spec.md §3
// "Ownership").
type Runner struct {
	Cmd    *qscmd.API
	Link   *qslink.Link
	Info   *qsinfo.Info
	Match  *qsmatch.Matcher
	Sup    *supervisor.Supervisor // nil: reset is a bare packet send
	Banner *banner.Printer
	Hist   *history.Store // nil: history not recorded

	ExitOnFail bool
	LogPath    string

	Hooks Hooks

	state     State
	prevState State

	testNum   int
	groupNum  int
	numGroups int
	numFailed int
	toSkip    int

	needReset  bool
	haveAssert bool

	failedTests  []int
	skippedTests []int

	testStart time.Time
	runStart  time.Time
	curTitle  string

	endedInAssert bool
}

// New constructs a Runner ready for its first group.
func New(cmd *qscmd.API, link *qslink.Link, info *qsinfo.Info, match *qsmatch.Matcher, out *banner.Printer) *Runner {
	return &Runner{
		Cmd:    cmd,
		Link:   link,
		Info:   info,
		Match:  match,
		Banner: out,
		state:  StateInit,
		runStart: time.Now(),
	}
}

// StartGroup begins a new script group (spec.md §4.7 "On group end, print
// group banner and accumulate into num_groups").
func (r *Runner) StartGroup(name string) {
	r.groupNum++
	r.state = StateInit
	r.needReset = false
	if r.Banner != nil {
		r.Banner.GroupStart(r.groupNum, name)
	}
}

// EndGroup finalizes the current group's counters.
func (r *Runner) EndGroup() {
	r.numGroups++
}

// Skip marks the next n tests to be skipped rather than run (script
// "skip(n)" call).
func (r *Runner) Skip(n int) {
	r.toSkip += n
}

// Test implements the INIT/TEST transition (spec.md §4.7). It drives the
// reset protocol and test-setup handshake, returning the Flow the DSL layer
// should act on.
func (r *Runner) Test(ctx context.Context, title string, opt TestOpt) (Flow, error) {
	r.testNum++
	r.curTitle = title
	r.testStart = time.Now()
	r.endedInAssert = false

	if r.toSkip > 0 {
		r.toSkip--
		r.state = StateSkip
		r.skippedTests = append(r.skippedTests, r.testNum)
		if r.Banner != nil {
			r.Banner.Skip(r.testNum, title)
		}
		return FlowContinue, nil
	}

	noReset := opt&OptNORESET != 0
	if noReset {
		if r.prevState == StateFail || r.needReset {
			return r.fail(title, "NORESET test may only follow a passing test", "", "")
		}
	} else {
		if err := r.reset(ctx); err != nil {
			r.state = StateFail
			return FlowAbortGroup, fmt.Errorf("runner: reset failed: %w", err)
		}
	}

	if err := r.Cmd.TestSetup(); err != nil {
		return r.fail(title, "test-setup send failed: "+err.Error(), "", "")
	}
	res, err := r.expectOnce(ctx, "@timestamp Trg-Ack  QS_RX_TEST_SETUP")
	if err != nil {
		return FlowAbortRun, err
	}
	if !res.Matched {
		return r.fail(title, "test-setup ack mismatch", res.Want, res.Got)
	}

	r.state = StateTest
	return FlowContinue, nil
}

// Expect runs the Expectation Matcher against the next inbound text record
// (spec.md §4.6). A mismatch or timeout transitions TEST -> FAIL.
func (r *Runner) Expect(ctx context.Context, pattern string) (Flow, error) {
	if r.state == StateSkip {
		return FlowContinue, nil
	}
	if r.state != StateTest {
		return FlowAbortGroup, fmt.Errorf("runner: expect() used outside a test")
	}

	res, err := r.expectOnce(ctx, pattern)
	if err != nil {
		return FlowAbortRun, err
	}
	if !res.Matched {
		flow, ferr := r.fail(r.curTitle, "expectation mismatch", res.Want, res.Got)
		return flow, ferr
	}
	return FlowContinue, nil
}

// Ensure is the direct Boolean assertion helper (spec.md §4.6).
func (r *Runner) Ensure(expr bool, msg string) (Flow, error) {
	if r.state == StateSkip {
		return FlowContinue, nil
	}
	if err := qsmatch.Ensure(expr, msg); err != nil {
		return r.fail(r.curTitle, err.Error(), "", "")
	}
	return FlowContinue, nil
}

// expectOnce waits for the next record and runs it through the matcher,
// detecting an assertion-bearing text echo along the way (spec.md §4.7
// "Assertion recovery").
func (r *Runner) expectOnce(ctx context.Context, pattern string) (qsmatch.Result, error) {
	ok, err := r.Link.Receive(ctx)
	if err != nil {
		return qsmatch.Result{}, err
	}
	if r.consumeAssertSignal() {
		r.endedInAssert = true
		return qsmatch.Result{Matched: false, Want: pattern, Got: string(r.Link.LastRecord)}, nil
	}
	if !ok {
		return r.Match.Expect(pattern, nil, true), nil
	}
	return r.Match.Expect(pattern, r.Link.LastRecord, false), nil
}

func (r *Runner) consumeAssertSignal() bool {
	select {
	case <-r.Link.Assert:
		r.haveAssert = true
		r.needReset = true
		r.Info.Clear()
		return true
	default:
		return false
	}
}

// fail performs the TEST -> FAIL transition (spec.md §4.7): emit failure
// banner, bump counters, set need_reset, drain remaining input.
func (r *Runner) fail(title, reason, want, got string) (Flow, error) {
	r.state = StateFail
	r.prevState = StateFail
	r.numFailed++
	r.needReset = true
	r.failedTests = append(r.failedTests, r.testNum)

	elapsed := time.Since(r.testStart).Seconds()
	if r.Banner != nil {
		r.Banner.Fail(r.testNum, title, elapsed, want, got)
	}
	logger.Warn("runner: test failed", "test", r.testNum, "title", title, "reason", reason)
	r.drain(context.Background())

	if r.ExitOnFail {
		return FlowAbortRun, fmt.Errorf("runner: exit_on_fail: %s", reason)
	}
	return FlowContinue, nil
}

// drain repeatedly calls Receive until it times out, discarding stray
// output after a failure (spec.md §5 "Cancellation").
func (r *Runner) drain(ctx context.Context) {
	for {
		ok, err := r.Link.Receive(ctx)
		if err != nil || !ok {
			return
		}
	}
}

// EndTest implements the end-of-test transition (spec.md §4.7): send
// test-teardown (unless the test already ended in a target assertion),
// invoke on_teardown, and emit the PASS banner.
func (r *Runner) EndTest(ctx context.Context) (Flow, error) {
	if r.state == StateSkip {
		r.prevState = StateSkip
		return FlowContinue, nil
	}
	if r.state == StateFail {
		r.prevState = StateFail
		return FlowContinue, nil
	}

	if !r.endedInAssert {
		if err := r.Cmd.TestTeardown(); err != nil {
			return r.fail(r.curTitle, "test-teardown send failed: "+err.Error(), "", "")
		}
		res, err := r.expectOnce(ctx, "@timestamp Trg-Ack  QS_RX_TEST_TEARDOWN")
		if err != nil {
			return FlowAbortRun, err
		}
		if !res.Matched {
			return r.fail(r.curTitle, "test-teardown ack mismatch", res.Want, res.Got)
		}
	}

	if r.Hooks.OnTeardown != nil {
		if err := r.Hooks.OnTeardown(); err != nil {
			return r.fail(r.curTitle, "on_teardown: "+err.Error(), "", "")
		}
	}

	elapsed := time.Since(r.testStart).Seconds()
	if r.Banner != nil {
		r.Banner.Pass(r.testNum, r.curTitle, elapsed)
	}
	r.prevState = StateTest
	r.state = StateInit
	return FlowContinue, nil
}

// reset implements the reset protocol (spec.md §4.7 "Reset protocol"):
// send the reset packet (suppressed after an assertion on a post-7.2.0
// target), terminate/respawn a host executable when one is supervised;
// then drain for have_info, zero the timestamp, and invoke on_reset.
func (r *Runner) reset(ctx context.Context) error {
	explicit := !r.haveAssert || !r.Info.AtLeast(preGateMajor, preGateMinor)

	if explicit {
		if err := r.Cmd.Reset(); err != nil {
			return fmt.Errorf("send reset packet: %w", err)
		}
	}
	if r.Sup != nil {
		if err := r.Sup.Reset(ctx); err != nil {
			return fmt.Errorf("host executable reset: %w", err)
		}
	}
	r.haveAssert = false

	deadline := time.Now().Add(ResetDrainTimeout)
	for time.Now().Before(deadline) {
		if r.Info.Snapshot().HaveInfo {
			break
		}
		if _, err := r.Link.Receive(ctx); err != nil {
			// A protocol error mid-reset is still fatal; a detach means the
			// back end went away entirely.
			return err
		}
	}
	if !r.Info.Snapshot().HaveInfo {
		return fmt.Errorf("runner: reset timed out waiting for target info")
	}

	r.Match.ResetTimestamp()
	r.needReset = false

	if r.Hooks.OnReset != nil {
		return r.Hooks.OnReset()
	}
	// Default on_reset expectation: a QF_RUN text record (spec.md §4.7).
	res, err := r.expectOnce(ctx, fmt.Sprintf("*QF_RUN*"))
	if err != nil {
		return err
	}
	_ = res // best-effort when no script-defined on_reset is registered
	return nil
}

// Finish prints the SUMMARY block, records the run in history when a store
// is configured, and returns the process exit code (spec.md §4.7 "Counters
// and reporting", §6 "Exit code is the number of failed tests").
func (r *Runner) Finish() int {
	elapsed := time.Since(r.runStart).Seconds()
	targetID := r.Info.Snapshot().TargetID
	if r.Banner != nil {
		r.Banner.Summary(targetID, r.LogPath, r.numGroups, r.testNum, r.skippedTests, r.failedTests, elapsed)
	}
	if r.Hist != nil {
		run := history.NewRun(targetID, r.LogPath)
		run.StartedAt = r.runStart
		run.FinishedAt = time.Now()
		run.NumGroups = r.numGroups
		run.NumTests = r.testNum
		run.NumFailed = r.numFailed
		run.FailedTests = r.failedTests
		if err := r.Hist.Record(run); err != nil {
			logger.Warn("runner: failed to record history", "error", err)
		}
	}
	return r.numFailed
}

// State exposes the current state, for tests and the interactive loop.
func (r *Runner) State() State { return r.state }

// NumFailed exposes the running failure count.
func (r *Runner) NumFailed() int { return r.numFailed }

// LastRecord exposes the most recently received text record, for the DSL
// layer's ensure() comparisons (spec.md §4.6).
func (r *Runner) LastRecord() string { return string(r.Link.LastRecord) }

// TestNum exposes the current test number.
func (r *Runner) TestNum() int { return r.testNum }
