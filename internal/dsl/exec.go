package dsl

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/qutest-go/qutest/internal/banner"
	"github.com/qutest-go/qutest/internal/qscmd"
	"github.com/qutest-go/qutest/internal/qsfilter"
	"github.com/qutest-go/qutest/internal/qsinfo"
	"github.com/qutest-go/qutest/internal/runner"
)

// Executor elaborates a parsed Script into Command API / Script Runner
// calls (spec.md §4.10).
type Executor struct {
	Runner *runner.Runner
	Cmd    *qscmd.API
	Info   *qsinfo.Info
	Banner *banner.Printer
}

func NewExecutor(r *runner.Runner, cmd *qscmd.API, info *qsinfo.Info, b *banner.Printer) *Executor {
	return &Executor{Runner: r, Cmd: cmd, Info: info, Banner: b}
}

// RunScript executes every test in s in order, honoring exit_on_fail via
// the Flow sentinel (spec.md §4.7 "Failure-policy option").
func (e *Executor) RunScript(ctx context.Context, s *Script) error {
	for _, tc := range s.Tests {
		flow, err := e.runTest(ctx, tc)
		if flow == runner.FlowAbortRun {
			return err
		}
		if flow == runner.FlowAbortGroup {
			return err
		}
	}
	return nil
}

func (e *Executor) runTest(ctx context.Context, tc TestCase) (runner.Flow, error) {
	opt := runner.TestOpt(0)
	if tc.HasOpt("NORESET") {
		opt |= runner.OptNORESET
	}

	flow, err := e.Runner.Test(ctx, tc.Title(), opt)
	if flow != runner.FlowContinue {
		return flow, err
	}

	for _, note := range tc.Notes() {
		if e.Banner != nil {
			e.Banner.Note("  " + note)
		}
	}

	for _, st := range tc.Steps {
		if e.Runner.State() != runner.StateTest {
			break // a prior step already failed or skipped this test
		}
		flow, err = e.runStep(ctx, st)
		if flow == runner.FlowAbortRun || flow == runner.FlowAbortGroup {
			return flow, err
		}
	}

	return e.Runner.EndTest(ctx)
}

// RunLine parses one line of interactive input as a single DSL step (the
// same `{op: args}` YAML shape used inside a script's `steps:` list) and
// executes it immediately against the live link, outside of any test's
// INIT/TEST/FAIL/SKIP bookkeeping (spec.md §4.9: the REPL "compiles and
// evaluates [a line] against the DSL namespace").
func (e *Executor) RunLine(ctx context.Context, line string) error {
	var st Step
	if err := yaml.Unmarshal([]byte(line), &st); err != nil {
		return fmt.Errorf("dsl: %w", err)
	}
	_, err := e.runStep(ctx, st)
	return err
}

func (e *Executor) runStep(ctx context.Context, st Step) (runner.Flow, error) {
	switch st.Kind {
	case KindExpect:
		return e.Runner.Expect(ctx, st.Expect)

	case KindEnsure:
		return e.Runner.Ensure(evalEnsure(st.Ensure, e.Runner.LastRecord()), describeEnsure(st.Ensure))

	case KindGlbFilter:
		mask, err := qsfilter.ComposeGlobal(e.Info, filterArgs(st.Filter)...)
		if err != nil {
			return runner.FlowAbortGroup, err
		}
		return e.sent(e.Cmd.GlbFilter(mask.Bytes16()))

	case KindLocFilter:
		mask, err := qsfilter.ComposeLocal(filterArgs(st.Filter)...)
		if err != nil {
			return runner.FlowAbortGroup, err
		}
		return e.sent(e.Cmd.LocFilter(mask.Bytes16()))

	case KindAOFilter:
		return e.sent(e.Cmd.AOFilterByName(st.AOFilter.Remove, st.AOFilter.Name))

	case KindCurrentObj:
		kind, err := objKind(st.CurrentObj.Kind)
		if err != nil {
			return runner.FlowAbortGroup, err
		}
		return e.sent(e.Cmd.CurrentObjByName(kind, st.CurrentObj.Name))

	case KindTick:
		return e.sent(e.Cmd.Tick(st.Tick.Rate))

	case KindPeek:
		return e.sent(e.Cmd.Peek(st.Peek.Offset, st.Peek.Size, st.Peek.Num))

	case KindPoke:
		data, err := bytesOf(st.Poke.Data, st.Poke.Pack)
		if err != nil {
			return runner.FlowAbortGroup, fmt.Errorf("dsl: poke data: %w", err)
		}
		return e.sent(e.Cmd.Poke(st.Poke.Offset, st.Poke.Size, data))

	case KindFill:
		return e.sent(e.Cmd.Fill(st.Fill.Offset, st.Fill.Size, st.Fill.Num, st.Fill.Item))

	case KindProbe:
		return e.sent(e.Cmd.ProbeByName(st.Probe.Func, st.Probe.Data))

	case KindContinue:
		return e.sent(e.Cmd.Continue())

	case KindQueryCurrent:
		kind, err := objKind(st.QueryCurrent)
		if err != nil {
			return runner.FlowAbortGroup, err
		}
		return e.sent(e.Cmd.QueryCurrent(kind))

	case KindSendEvent:
		prio, err := eventPrio(st.SendEvent)
		if err != nil {
			return runner.FlowAbortGroup, err
		}
		params, err := bytesOf(st.SendEvent.Params, st.SendEvent.Pack)
		if err != nil {
			return runner.FlowAbortGroup, fmt.Errorf("dsl: send_event params: %w", err)
		}
		return e.sent(e.Cmd.SendEventByName(prio, st.SendEvent.Sig, params))

	case KindCommand:
		return e.sent(e.Cmd.CommandByName(st.Command.Name, st.Command.Param1, st.Command.Param2, st.Command.Param3))

	case KindNote:
		if e.Banner != nil {
			e.Banner.Note(st.Note.Msg)
		}
		for _, d := range st.Note.Dest {
			if strings.EqualFold(d, "TRACE") {
				return e.sent(e.Cmd.ShowNote(st.Note.Msg))
			}
		}
		return runner.FlowContinue, nil

	default:
		return runner.FlowAbortGroup, fmt.Errorf("dsl: unhandled step kind %d", st.Kind)
	}
}

// sent turns any Command API error into an abort of the whole run: a
// failed UDP write, and also an argument the encoder rejects (a peek/poke/
// fill size other than 1, 2 or 4, or poke data not a multiple of size).
func (e *Executor) sent(err error) (runner.Flow, error) {
	if err != nil {
		return runner.FlowAbortRun, err
	}
	return runner.FlowContinue, nil
}

// bytesOf resolves a payload field that may be given either as a hex string
// or as a pack(fmt, values) block; pack takes precedence when both somehow
// appear.
func bytesOf(hexData string, pack *PackArgs) ([]byte, error) {
	if pack != nil {
		return packValues(pack.Format, pack.Values)
	}
	return decodeHex(hexData)
}

func filterArgs(tokens []string) []qsfilter.Arg {
	args := make([]qsfilter.Arg, len(tokens))
	for i, t := range tokens {
		args[i] = qsfilter.StrArg(t)
	}
	return args
}

func objKind(name string) (uint8, error) {
	switch strings.ToUpper(name) {
	case "SM":
		return qscmd.KindSM, nil
	case "AO":
		return qscmd.KindAO, nil
	case "MP":
		return qscmd.KindMP, nil
	case "EQ":
		return qscmd.KindEQ, nil
	case "TE":
		return qscmd.KindTE, nil
	case "AP":
		return qscmd.KindAP, nil
	case "SM_AO":
		return qscmd.KindSMAO, nil
	default:
		return 0, fmt.Errorf("dsl: unknown object kind %q", name)
	}
}

func eventPrio(a SendEventArgs) (uint8, error) {
	switch strings.ToLower(a.Kind) {
	case "", "publish":
		return qscmd.EventPublish, nil
	case "post":
		return a.Prio, nil
	case "init":
		return qscmd.EventInit, nil
	case "dispatch":
		return qscmd.EventDispatch, nil
	default:
		return 0, fmt.Errorf("dsl: unknown send_event kind %q", a.Kind)
	}
}

// evalEnsure checks one of the closed set of conditions a YAML script can
// express against the last received record -- a structured substitute for
// an arbitrary boolean expression evaluator, since the DSL has no embedded
// language (spec.md §9 design note; see DESIGN.md Open Question).
func evalEnsure(a EnsureArgs, lastRecord string) bool {
	switch {
	case a.Contains != "":
		return strings.Contains(lastRecord, a.Contains)
	case a.HasPrefix != "":
		return strings.HasPrefix(lastRecord, a.HasPrefix)
	case a.Equals != "":
		return lastRecord == a.Equals
	default:
		return false
	}
}

func describeEnsure(a EnsureArgs) string {
	switch {
	case a.Contains != "":
		return fmt.Sprintf("ensure: expected record to contain %q", a.Contains)
	case a.HasPrefix != "":
		return fmt.Sprintf("ensure: expected record to start with %q", a.HasPrefix)
	case a.Equals != "":
		return fmt.Sprintf("ensure: expected record to equal %q", a.Equals)
	default:
		return "ensure: no condition specified"
	}
}
