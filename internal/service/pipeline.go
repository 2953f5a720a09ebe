package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/compiler"
	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/hub"
	"github.com/avdeev7/collabcode/internal/model"
	"github.com/avdeev7/collabcode/internal/runner"
)

// RunResult is the synchronous response of a compile-and-run request. The same
// outcome is also broadcast as staged events on the document's compiler topic.
type RunResult struct {
	Success     bool                `json:"success"`
	Stage       string              `json:"stage"` // "compilation" or "execution"
	Compilation model.CompileResult `json:"compilationResult"`
	Execution   *model.ExecResult   `json:"executionResult,omitempty"`
}

// PipelineService drives the compile-execute state machine:
// STARTED -> COMPILING -> {COMPILE_FAILED | COMPILED} -> EXECUTING ->
// {EXECUTION_FAILED | EXECUTED}. Every started request reaches a terminal
// event on all paths.
type PipelineService interface {
	Run(ctx context.Context, docID int64, source string, ident model.Identity) (RunResult, error)
}

type PipelineServiceImpl struct {
	gate      PermissionService
	compiler  compiler.Compiler
	sandbox   runner.Sandbox
	pub       Publisher
	javaPath  string
	lookupErr error
	timeout   time.Duration
	maxOutput int
	logger    *zap.Logger
}

// NewPipelineService constructs the pipeline. The java launcher is located on
// PATH once; its absence is reported per request as a configuration error.
func NewPipelineService(gate PermissionService, c compiler.Compiler, sb runner.Sandbox, pub Publisher, timeout time.Duration, maxOutput int, logger *zap.Logger) *PipelineServiceImpl {
	path, err := exec.LookPath("java")
	return &PipelineServiceImpl{
		gate:      gate,
		compiler:  c,
		sandbox:   sb,
		pub:       pub,
		javaPath:  path,
		lookupErr: err,
		timeout:   timeout,
		maxOutput: maxOutput,
		logger:    logger,
	}
}

// Run executes one compile-and-run request end to end.
func (s *PipelineServiceImpl) Run(ctx context.Context, docID int64, source string, ident model.Identity) (RunResult, error) {
	if err := s.gate.Authorize(ctx, docID, ident, ActionView); err != nil {
		return RunResult{}, err
	}

	className := compiler.EntryPointName(source)
	s.stage(docID, model.StageEvent{Event: model.StageStarted, ClassName: className})
	s.stage(docID, model.StageEvent{Event: model.StageCompiling, ClassName: className})

	comp, err := s.compiler.Compile(ctx, source)
	if comp.OutputDir != "" {
		// scratch dir reclaimed on every exit path
		defer os.RemoveAll(comp.OutputDir)
	}
	if err != nil {
		s.stage(docID, model.StageEvent{
			Event:     model.StageCompileFailed,
			ClassName: className,
			Elapsed:   comp.Elapsed,
			Message:   err.Error(),
		})
		if comp.ErrorMessage == "" {
			comp.ErrorMessage = err.Error()
		}
		return RunResult{Stage: "compilation", Compilation: comp},
			fmt.Errorf("compile %s: %w", className, err)
	}
	if !comp.Success {
		s.stage(docID, model.StageEvent{
			Event:     model.StageCompileFailed,
			ClassName: className,
			Elapsed:   comp.Elapsed,
			Errors:    comp.Diagnostics,
		})
		return RunResult{Stage: "compilation", Compilation: comp}, nil
	}

	s.stage(docID, model.StageEvent{
		Event:     model.StageCompiled,
		ClassName: comp.ClassName,
		Elapsed:   comp.Elapsed,
	})

	if s.lookupErr != nil {
		err := fmt.Errorf("%w: java not on PATH: %v", errs.ErrToolchainUnavailable, s.lookupErr)
		s.stage(docID, model.StageEvent{
			Event:     model.StageExecutionFailed,
			ClassName: comp.ClassName,
			Message:   err.Error(),
		})
		return RunResult{Stage: "execution", Compilation: comp}, err
	}

	s.stage(docID, model.StageEvent{Event: model.StageExecuting, ClassName: comp.ClassName})

	run, err := s.sandbox.Run(ctx, runner.Spec{
		Path:      s.javaPath,
		Args:      []string{"-cp", comp.OutputDir, comp.ClassName},
		Dir:       comp.OutputDir,
		Timeout:   s.timeout,
		MaxOutput: s.maxOutput,
	})
	exres := model.ExecResult{
		Success:  err == nil && !run.TimedOut && run.ExitCode == 0,
		Stdout:   run.Stdout,
		Stderr:   run.Stderr,
		ExitCode: run.ExitCode,
		TimedOut: run.TimedOut,
		Elapsed:  run.Elapsed.Milliseconds(),
	}
	if err != nil {
		exres.Stderr = firstNonEmpty(exres.Stderr, err.Error())
	}

	if exres.Success {
		s.stage(docID, model.StageEvent{
			Event:     model.StageExecuted,
			ClassName: comp.ClassName,
			Elapsed:   exres.Elapsed,
			Output:    exres.Stdout,
		})
	} else {
		msg := exres.Stderr
		if exres.TimedOut {
			msg = fmt.Sprintf("execution timeout - program killed after %s", s.timeout)
		}
		s.stage(docID, model.StageEvent{
			Event:     model.StageExecutionFailed,
			ClassName: comp.ClassName,
			Elapsed:   exres.Elapsed,
			ExitCode:  exres.ExitCode,
			Message:   msg,
		})
	}

	s.logger.Info("pipeline finished",
		zap.Int64("docID", docID),
		zap.String("class", comp.ClassName),
		zap.Bool("success", exres.Success),
		zap.Bool("timedOut", exres.TimedOut))

	return RunResult{
		Success:     exres.Success,
		Stage:       "execution",
		Compilation: comp,
		Execution:   &exres,
	}, nil
}

func (s *PipelineServiceImpl) stage(docID int64, ev model.StageEvent) {
	ev.DocID = docID
	ev.Timestamp = time.Now().UnixMilli()
	s.pub.Publish(hub.CompilerTopic(docID), ev)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
