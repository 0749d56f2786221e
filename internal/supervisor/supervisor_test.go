package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops a tiny shell script standing in for a host test
// executable, so Spawn/Reset/Teardown can be exercised without a real
// embedded target.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "host_exe.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestSpawnStartsChildWithArgv1(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "argv1.txt")
	script := writeScript(t, `echo -n "$1" > `+marker+`
sleep 0.2
`)
	s := New(script, "localhost:6601")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Spawn(ctx))
	assert.True(t, s.Running())

	time.Sleep(50 * time.Millisecond)
	got, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6601", string(got))

	s.Teardown()
	assert.False(t, s.Running())
}

func TestResetKillsStubbornChildAfterGrace(t *testing.T) {
	script := writeScript(t, `trap '' TERM
sleep 5
`)
	s := New(script, "localhost:6601")
	s.TerminateGrace = 50 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Spawn(ctx))

	require.NoError(t, s.Reset(ctx))
	assert.True(t, s.Running())
	s.Teardown()
}

func TestTeardownOnNeverSpawnedIsNoop(t *testing.T) {
	s := New("/bin/true", "localhost:6601")
	assert.False(t, s.Running())
	s.Teardown()
}
