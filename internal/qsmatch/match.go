// Package qsmatch implements the Expectation Matcher (spec.md §4.6):
// @timestamp substitution, glob matching with bracket neutralization, and
// the ensure() boolean assertion.
package qsmatch

import (
	"fmt"
	"path/filepath"
	"strings"
)

const timestampToken = "@timestamp"

// Result carries the outcome of a single Expect call, for the runner to
// turn into a PASS/FAIL banner line.
type Result struct {
	Matched bool
	Want    string
	Got     string
	Timeout bool
}

// Matcher holds the monotonic timestamp counter that substitutes into
// "@timestamp"-prefixed patterns (spec.md §4.6).
type Matcher struct {
	timestamp uint64
}

func New() *Matcher { return &Matcher{} }

// Timestamp returns the current counter value (informational, and used by
// the runner to reset it to zero after a successful target reset).
func (m *Matcher) Timestamp() uint64 { return m.timestamp }

// ResetTimestamp zeroes the counter (spec.md §4.7 "After a successful
// reset, timestamp is zeroed").
func (m *Matcher) ResetTimestamp() { m.timestamp = 0 }

// Expect compares pattern against got, a record most recently placed in
// qslink.Link.LastRecord. timedOut is true when the caller never received a
// record at all (spec.md: "On receive timeout it reports got: \"\"
// (timeout)").
func (m *Matcher) Expect(pattern string, got []byte, timedOut bool) Result {
	if timedOut {
		return Result{Matched: false, Want: pattern, Got: "", Timeout: true}
	}

	want := pattern
	switch {
	case strings.HasPrefix(pattern, timestampToken):
		m.timestamp++
		stamp := fmt.Sprintf("%010d", m.timestamp)
		want = stamp + pattern[len(timestampToken):]
	case isDecimalPrefix(pattern):
		// Literal numeric prefix supplied by the script author: the counter
		// still advances, but the pattern text is used verbatim.
		m.timestamp++
	}

	ok, err := globMatch(want, string(got))
	if err != nil {
		ok = false
	}
	return Result{Matched: ok, Want: want, Got: string(got)}
}

func isDecimalPrefix(s string) bool {
	if len(s) < 10 {
		return false
	}
	for i := 0; i < 10; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// globMatch matches pattern against s using filepath.Match semantics
// (*, ?, [...] classes), after neutralizing literal bracket characters that
// are not part of a well-formed character class -- QS trace lines commonly
// contain "[" / "]" around sequence numbers or priorities, and the DSL
// author does not expect those to be parsed as glob classes unless they
// intentionally wrote one (spec.md §4.6 "bracket characters transparently
// neutralized").
func globMatch(pattern, s string) (bool, error) {
	neutralized := neutralizeBrackets(pattern)
	return filepath.Match(neutralized, s)
}

// neutralizeBrackets escapes '[' and ']' wherever they do not form a valid
// glob character class of more than one character, so that e.g.
// "AO_Philo[0]" matches literally instead of being parsed as a
// one-character class, while "philo[0-4]" stays a class.
func neutralizeBrackets(pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '[' {
			if r == ']' {
				b.WriteString(`\]`)
				continue
			}
			b.WriteRune(r)
			continue
		}
		if end, ok := closingBracket(runes, i); ok && end-i > 2 {
			b.WriteString(string(runes[i : end+1]))
			i = end
			continue
		}
		b.WriteString(`\[`)
	}
	return b.String()
}

// closingBracket reports whether runes[start] ('[') opens a syntactically
// valid class that closes before the pattern ends.
func closingBracket(runes []rune, start int) (int, bool) {
	i := start + 1
	if i < len(runes) && (runes[i] == '^' || runes[i] == '!') {
		i++
	}
	if i < len(runes) && runes[i] == ']' {
		i++
	}
	for i < len(runes) {
		if runes[i] == ']' {
			return i, true
		}
		i++
	}
	return 0, false
}

// Ensure is the direct Boolean assertion helper (spec.md §4.6): when expr
// is false it returns a descriptive error the runner turns into an
// immediate test failure.
func Ensure(expr bool, msg string) error {
	if expr {
		return nil
	}
	if msg == "" {
		msg = "ensure() failed"
	}
	return fmt.Errorf("qsmatch: %s", msg)
}
