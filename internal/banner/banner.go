// Package banner prints the runner's stable, script-parseable banner lines
// (spec.md §7): group markers, per-test PASS/FAIL verdicts, and the final
// SUMMARY block, with adaptive ANSI color that degrades gracefully on a
// non-terminal or dumb-terminal destination.
package banner

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-isatty"
)

// Printer writes banner lines to an underlying writer, downgrading color
// automatically when the destination isn't an interactive terminal (e.g.
// the --log file/pipe).
type Printer struct {
	w     io.Writer
	color bool
}

// New wraps w (typically os.Stdout, or a --log destination) in a
// colorprofile.Writer that degrades any ANSI sequences we emit to the
// destination's actual capability, and decides whether to emit color at
// all: a --log redirect to a plain file disables it, an interactive
// terminal (including a Cygwin pty) keeps it.
func New(w io.Writer) *Printer {
	profile := colorprofile.Detect(w, os.Environ())
	cw := &colorprofile.Writer{Forward: w, Profile: profile}

	color := profile != colorprofile.NoTTY
	if f, isFile := w.(*os.File); isFile {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: cw, color: color}
}

var (
	codeGreen  = ansi.Green
	codeRed    = ansi.Red
	codeYellow = ansi.Yellow
	codeCyan   = ansi.Cyan
)

func wrap(c ansi.BasicColor, s string) string {
	return ansi.Style{}.ForegroundColor(c).Styled(s)
}

// GroupStart prints the "[NN]----…" group marker (spec.md §7).
func (p *Printer) GroupStart(groupNum int, name string) {
	fmt.Fprintf(p.w, "[%02d]---------------------------------------------------"+
		"------------------\n%s\n", groupNum, name)
}

// Pass prints the "[ PASS (s.ss) ]" verdict for a single test.
func (p *Printer) Pass(testNum int, title string, elapsedSeconds float64) {
	verdict := p.colorize(codeGreen, fmt.Sprintf("[ PASS (%0.2f) ]", elapsedSeconds))
	fmt.Fprintf(p.w, "%-60s %s\n", fmt.Sprintf("%2d: %s", testNum, title), verdict)
}

// Fail prints the "[ FAIL (s.ss) ]" verdict, plus the expected/got mismatch
// when supplied (empty strings are omitted).
func (p *Printer) Fail(testNum int, title string, elapsedSeconds float64, want, got string) {
	verdict := p.colorize(codeRed, fmt.Sprintf("[ FAIL (%0.2f) ]", elapsedSeconds))
	fmt.Fprintf(p.w, "%-60s %s\n", fmt.Sprintf("%2d: %s", testNum, title), verdict)
	if want != "" || got != "" {
		fmt.Fprintf(p.w, "    expect: %q\n    got   : %q\n", want, got)
	}
}

// Skip prints a skipped-test line.
func (p *Printer) Skip(testNum int, title string) {
	fmt.Fprintf(p.w, "%-60s %s\n", fmt.Sprintf("%2d: %s", testNum, title), p.colorize(codeYellow, "[ SKIP ]"))
}

// Summary prints the final SUMMARY block (spec.md §4.7, §7).
func (p *Printer) Summary(targetID, logPath string, numGroups, numTests int, skipped, failed []int, elapsed float64) {
	fmt.Fprintf(p.w, "SUMMARY: target=%s log=%s groups=%d tests=%d elapsed=%0.2fs\n",
		targetID, logPath, numGroups, numTests, elapsed)
	if len(skipped) > 0 {
		fmt.Fprintf(p.w, "  skipped: %v\n", skipped)
	}
	if len(failed) > 0 {
		fmt.Fprintf(p.w, "  failed : %v\n", failed)
	}
	verdict := "OK"
	code := codeGreen
	if len(failed) > 0 {
		verdict = "FAIL"
		code = codeRed
	}
	fmt.Fprintf(p.w, "%s\n", p.colorize(code, verdict))
}

// Note prints an informational note line (spec.md §4.10 note(msg, SCREEN)).
func (p *Printer) Note(msg string) {
	fmt.Fprintf(p.w, "%s\n", p.colorize(codeCyan, msg))
}

func (p *Printer) colorize(code ansi.BasicColor, s string) string {
	if !p.color {
		return s
	}
	return wrap(code, s)
}
