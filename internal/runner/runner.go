// Package runner executes untrusted programs as time- and output-bounded
// child processes. The pipeline depends only on the Sandbox interface so the
// compiled language/toolchain can be swapped without touching the state machine.
package runner

import (
	"context"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Defaults applied when a Spec leaves the corresponding field zero.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxOutput = 10000
)

// TruncationMarker is appended whenever a captured stream hits its ceiling.
// The tail is never dropped silently.
const TruncationMarker = "\n... (output truncated)"

// Spec describes one bounded child-process run.
type Spec struct {
	Path      string        // binary or interpreter path
	Args      []string      // arguments
	Dir       string        // working directory (per-request isolated dir)
	Timeout   time.Duration // hard wall-clock limit
	MaxOutput int           // per-stream capture ceiling in bytes
}

// Result captures the outcome of one run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Elapsed  time.Duration
}

// Sandbox runs a program under resource bounds.
type Sandbox interface {
	// Run launches the program and blocks until exit, timeout, or ctx cancel.
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ProcessSandbox implements Sandbox with a direct child-process spawn in its
// own process group, so a timeout kills the whole process tree.
type ProcessSandbox struct {
	logger *zap.Logger
}

// NewProcessSandbox constructs a process-based sandbox.
func NewProcessSandbox(logger *zap.Logger) *ProcessSandbox {
	return &ProcessSandbox{logger: logger}
}

var _ Sandbox = (*ProcessSandbox)(nil)

// Run launches spec.Path and captures stdout/stderr on independent readers so
// a chatty program cannot deadlock the run by filling one unread stream.
func (s *ProcessSandbox) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout <= 0 {
		spec.Timeout = DefaultTimeout
	}
	if spec.MaxOutput <= 0 {
		spec.MaxOutput = DefaultMaxOutput
	}

	start := time.Now()

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := newCappedBuffer(spec.MaxOutput)
	stderr := newCappedBuffer(spec.MaxOutput)
	// os/exec drains each stream on its own goroutine; Wait joins both.
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1, Elapsed: time.Since(start)}, err
	}
	pgid := cmd.Process.Pid

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timedOut bool
	select {
	case <-done:
	case <-time.After(spec.Timeout):
		timedOut = true
		s.kill(pgid)
		<-done
	case <-ctx.Done():
		s.kill(pgid)
		<-done
		return Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			Elapsed:  time.Since(start),
		}, ctx.Err()
	}

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		TimedOut: timedOut,
		Elapsed:  time.Since(start),
	}
	if timedOut {
		res.ExitCode = -1
		s.logger.Warn("execution timed out, process tree killed",
			zap.String("path", spec.Path),
			zap.Duration("timeout", spec.Timeout))
	}
	return res, nil
}

// kill terminates the whole process group.
func (s *ProcessSandbox) kill(pgid int) {
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		s.logger.Warn("failed to kill process group", zap.Int("pgid", pgid), zap.Error(err))
	}
}

// cappedBuffer accepts writes up to a fixed ceiling, appends TruncationMarker
// once, and swallows the rest so the producing pipe never stalls.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	max       int
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{buf: make([]byte, 0, min(max, 4096)), max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.truncated {
		room := b.max - len(b.buf)
		if room >= len(p) {
			b.buf = append(b.buf, p...)
		} else {
			b.buf = append(b.buf, p[:room]...)
			b.buf = append(b.buf, TruncationMarker...)
			b.truncated = true
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
