package replio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadLineReturnsTrimmedInput(t *testing.T) {
	in := strings.NewReader("glb_filter(GRP_SM)\n")
	var out bytes.Buffer
	r := NewREPL(in, &out)

	line, ok := r.ReadLine()
	assert.True(t, ok)
	assert.Equal(t, "glb_filter(GRP_SM)", line)
	assert.Contains(t, out.String(), ">>")
}

func TestReadLineEmptyLineExits(t *testing.T) {
	in := strings.NewReader("\n")
	var out bytes.Buffer
	r := NewREPL(in, &out)

	_, ok := r.ReadLine()
	assert.False(t, ok)
}

func TestReadLineEOFExits(t *testing.T) {
	in := strings.NewReader("")
	var out bytes.Buffer
	r := NewREPL(in, &out)

	_, ok := r.ReadLine()
	assert.False(t, ok)
}

func TestReadLineMultipleLines(t *testing.T) {
	in := strings.NewReader("test(\"t1\")\nexpect(\"@timestamp x\")\n\n")
	var out bytes.Buffer
	r := NewREPL(in, &out)

	l1, ok1 := r.ReadLine()
	assert.True(t, ok1)
	assert.Equal(t, `test("t1")`, l1)

	l2, ok2 := r.ReadLine()
	assert.True(t, ok2)
	assert.Equal(t, `expect("@timestamp x")`, l2)

	_, ok3 := r.ReadLine()
	assert.False(t, ok3)
}
