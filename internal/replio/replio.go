// Package replio implements the Interactive Loop I/O primitives (spec.md
// §4.9, §5): reading one REPL line at a time from stdin, and optionally
// racing a pending blocking receive against a keypress so the operator can
// cancel it.
package replio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// REPL reads one line at a time from stdin for the post-script debug loop
// (spec.md §4.9: "reads one line at a time, compiles and evaluates it
// against the DSL namespace ... An empty line exits").
type REPL struct {
	scanner *bufio.Scanner
	prompt  io.Writer
}

// NewREPL wraps r (typically os.Stdin) for line-at-a-time reads, writing
// its ">> " prompt to out.
func NewREPL(r io.Reader, out io.Writer) *REPL {
	return &REPL{scanner: bufio.NewScanner(r), prompt: out}
}

// ReadLine prints the prompt and blocks for one line. ok is false on EOF or
// an empty line, either of which ends the interactive loop.
func (r *REPL) ReadLine() (line string, ok bool) {
	fmt.Fprint(r.prompt, ">> ")
	if !r.scanner.Scan() {
		return "", false
	}
	line = strings.TrimRight(r.scanner.Text(), "\r\n")
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}

// KeyCanceler races a pending blocking receive against a single keypress on
// stdin, letting the operator abort a wait (spec.md §5 "The interactive
// debug mode optionally waits for keyboard input to cancel a pending
// receive").
type KeyCanceler struct {
	cr    cancelreader.CancelReader
	state *term.State
	fd    int
}

// NewKeyCanceler puts fd (typically int(os.Stdin.Fd())) into raw mode so a
// single keystroke is visible to Read without waiting for Enter, and wraps
// it in a CancelReader so a pending Read can be aborted from another
// goroutine.
func NewKeyCanceler(r io.Reader, fd int) (*KeyCanceler, error) {
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("replio: enter raw mode: %w", err)
	}
	cr, err := cancelreader.NewReader(r)
	if err != nil {
		term.Restore(fd, state)
		return nil, fmt.Errorf("replio: wrap stdin: %w", err)
	}
	return &KeyCanceler{cr: cr, state: state, fd: fd}, nil
}

// Close restores the terminal's original mode and releases the reader.
func (k *KeyCanceler) Close() error {
	k.cr.Close()
	return term.Restore(k.fd, k.state)
}

// WaitForKeyOrDone blocks until either a key is pressed (returns true) or
// ctx is canceled first (returns false), in which case the in-flight Read
// is aborted via Cancel so the goroutine backing it can exit.
func (k *KeyCanceler) WaitForKeyOrDone(ctx context.Context) bool {
	keyCh := make(chan bool, 1)
	go func() {
		buf := make([]byte, 1)
		_, err := k.cr.Read(buf)
		keyCh <- err == nil
	}()

	select {
	case pressed := <-keyCh:
		return pressed
	case <-ctx.Done():
		k.cr.Cancel()
		return false
	}
}
