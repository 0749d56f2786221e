// Package supervisor implements the Host-Executable Supervisor (spec.md
// §4.8): spawning, resetting, and tearing down the child process under
// test, when the CLI was given an executable path instead of relying on a
// bare reset packet to a remote target.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/qutest-go/qutest/internal/logger"
)

// Supervisor owns the lifecycle of a host test executable (spec.md §4.8).
// Absent (nil *Supervisor), reset is just a packet send -- callers check
// for nil before using one.
type Supervisor struct {
	exePath  string
	qspyAddr string // "host:tcp_port", passed to the child as argv[1]

	mu      sync.Mutex
	cmd     *exec.Cmd
	backoff *rate.Limiter

	// TerminateGrace bounds how long Reset waits for the child to
	// self-terminate before the supervisor kills its process group.
	TerminateGrace time.Duration
}

// New builds a supervisor for exePath, a host executable that connects back
// to the back end at qspyAddr ("host:tcp_port").
func New(exePath, qspyAddr string) *Supervisor {
	return &Supervisor{
		exePath:         exePath,
		qspyAddr:        qspyAddr,
		backoff:         rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		TerminateGrace:  300 * time.Millisecond,
	}
}

// Spawn starts a fresh child process, passing the back end's TCP endpoint
// as argv[1] (spec.md §4.8). The child runs in its own process group so
// Reset/Teardown can signal the whole tree, not just the direct child.
func (s *Supervisor) Spawn(ctx context.Context) error {
	if err := s.backoff.Wait(ctx); err != nil {
		return fmt.Errorf("supervisor: backoff wait: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := exec.CommandContext(ctx, s.exePath, s.qspyAddr)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: spawn %s: %w", s.exePath, err)
	}
	s.cmd = cmd
	logger.Info("supervisor: spawned host executable", "path", s.exePath, "pid", cmd.Process.Pid)
	return nil
}

// Reset implements the supervisor half of the reset protocol (spec.md
// §4.8 / §4.7): terminate the current child, then spawn a fresh one. The
// caller (internal/runner) is responsible for sending the wire reset
// packet and waiting for have_info; this only manages the process.
func (s *Supervisor) Reset(ctx context.Context) error {
	s.terminateLocked(s.TerminateGrace)
	return s.Spawn(ctx)
}

// Teardown terminates the child if still running (spec.md §4.8 "On group
// teardown, it terminates the child if still running").
func (s *Supervisor) Teardown() {
	s.terminateLocked(s.TerminateGrace)
}

func (s *Supervisor) terminateLocked(grace time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	pid := s.cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		pgid = pid
	}

	done := make(chan struct{})
	go func() {
		s.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("supervisor: child did not self-terminate, killing process group", "pgid", pgid)
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-done
	}
	s.cmd = nil
}

// Running reports whether a child process is currently tracked.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}
