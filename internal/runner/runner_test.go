package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSandbox() *ProcessSandbox { return NewProcessSandbox(zap.NewNop()) }

func TestRun_Success(t *testing.T) {
	res, err := newSandbox().Run(context.Background(), Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo out; echo err 1>&2"},
		Dir:  t.TempDir(),
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.False(t, res.TimedOut)
	require.Equal(t, "out\n", res.Stdout)
	require.Equal(t, "err\n", res.Stderr)
}

func TestRun_NonZeroExit(t *testing.T) {
	res, err := newSandbox().Run(context.Background(), Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo boom 1>&2; exit 3"},
		Dir:  t.TempDir(),
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
	require.Contains(t, res.Stderr, "boom")
}

func TestRun_LaunchFailure(t *testing.T) {
	_, err := newSandbox().Run(context.Background(), Spec{
		Path: "/nonexistent/binary",
		Dir:  t.TempDir(),
	})
	require.Error(t, err)
}

func TestRun_TimeoutKillsProcessTree(t *testing.T) {
	start := time.Now()
	res, err := newSandbox().Run(context.Background(), Spec{
		Path:    "/bin/sh",
		Args:    []string{"-c", "sleep 60 & wait"},
		Dir:     t.TempDir(),
		Timeout: 500 * time.Millisecond,
	})
	require.NoError(t, err)
	require.True(t, res.TimedOut)
	require.Equal(t, -1, res.ExitCode)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_TruncatesEachStreamIndependently(t *testing.T) {
	// Print 50000 chars to stdout and a short line to stderr.
	res, err := newSandbox().Run(context.Background(), Spec{
		Path:      "/bin/sh",
		Args:      []string{"-c", `i=0; while [ $i -lt 500 ]; do printf '0123456789012345678901234567890123456789012345678901234567890123456789012345678901234567890123456789'; i=$((i+1)); done; echo short 1>&2`},
		Dir:       t.TempDir(),
		MaxOutput: 10000,
	})
	require.NoError(t, err)
	require.Len(t, res.Stdout, 10000+len(TruncationMarker))
	require.True(t, strings.HasSuffix(res.Stdout, TruncationMarker))
	require.Equal(t, "short\n", res.Stderr)
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := newSandbox().Run(ctx, Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "sleep 60"},
		Dir:  t.TempDir(),
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(5)
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// Crossing the ceiling appends the marker exactly once.
	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	n, err = b.Write([]byte("ignored"))
	require.NoError(t, err)
	require.Equal(t, 7, n)

	require.Equal(t, "abcde"+TruncationMarker, b.String())
}
