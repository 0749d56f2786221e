package banner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassLineIsPlainOnNonTTYBuffer(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.Pass(1, "philosopher eats", 0.12)
	out := buf.String()
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "0.12")
	assert.False(t, strings.Contains(out, "\x1b["), "non-tty destination should not carry raw ANSI codes")
}

func TestFailLineIncludesExpectAndGot(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.Fail(2, "philosopher hungry", 0.05, "want this", "got that")
	out := buf.String()
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, `"want this"`)
	assert.Contains(t, out, `"got that"`)
}

func TestGroupStartIncludesNumber(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.GroupStart(3, "dpp.qutest")
	assert.Contains(t, buf.String(), "[03]")
	assert.Contains(t, buf.String(), "dpp.qutest")
}

func TestSummaryReportsOKWhenNoFailures(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.Summary("230615_103000", "/tmp/qutest.log", 2, 5, nil, nil, 1.23)
	assert.Contains(t, buf.String(), "OK")
	assert.NotContains(t, buf.String(), "FAIL")
}

func TestSummaryReportsFailWithIndices(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.Summary("230615_103000", "/tmp/qutest.log", 1, 3, []int{2}, []int{3}, 0.5)
	out := buf.String()
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "failed")
}
