// Package compiler turns Java source text into compiled classes in an
// isolated, per-request scratch directory and reports structured diagnostics.
package compiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/errs"
	"github.com/avdeev7/collabcode/internal/model"
)

// Compiler compiles source text for one request.
type Compiler interface {
	// Compile writes the source into a fresh isolated directory and compiles it.
	// The returned result carries the scratch directory on both success and
	// diagnostic failure; the caller owns its removal. A missing toolchain is
	// reported as errs.ErrToolchainUnavailable, not as a diagnostic.
	Compile(ctx context.Context, source string) (model.CompileResult, error)
}

// Javac is the host-toolchain implementation of Compiler.
type Javac struct {
	javacPath string
	lookupErr error
	logger    *zap.Logger
}

// NewJavac locates javac on PATH once at construction.
func NewJavac(logger *zap.Logger) *Javac {
	path, err := exec.LookPath("javac")
	return &Javac{javacPath: path, lookupErr: err, logger: logger}
}

var _ Compiler = (*Javac)(nil)

// Compile compiles source with javac into a per-request temp directory.
func (j *Javac) Compile(ctx context.Context, source string) (model.CompileResult, error) {
	start := time.Now()

	if j.lookupErr != nil {
		return model.CompileResult{}, fmt.Errorf("%w: javac not on PATH (JDK required): %v",
			errs.ErrToolchainUnavailable, j.lookupErr)
	}

	className := EntryPointName(source)

	dir, err := os.MkdirTemp("", "collabcode-compile-")
	if err != nil {
		return model.CompileResult{}, fmt.Errorf("create scratch dir: %w", err)
	}

	srcFile := filepath.Join(dir, className+".java")
	if err := os.WriteFile(srcFile, []byte(source), 0o600); err != nil {
		return model.CompileResult{OutputDir: dir}, fmt.Errorf("write source: %w", err)
	}

	cmd := exec.CommandContext(ctx, j.javacPath, "-d", dir, srcFile)
	out, runErr := cmd.CombinedOutput()
	elapsed := time.Since(start).Milliseconds()

	res := model.CompileResult{
		ClassName:   className,
		OutputDir:   dir,
		Diagnostics: ParseDiagnostics(string(out)),
		Elapsed:     elapsed,
	}

	if runErr == nil {
		res.Success = true
		j.logger.Info("compilation successful",
			zap.String("class", className),
			zap.Int64("elapsedMs", elapsed))
		return res, nil
	}

	if _, isExit := runErr.(*exec.ExitError); !isExit {
		// javac itself could not be launched
		return res, fmt.Errorf("%w: %v", errs.ErrToolchainUnavailable, runErr)
	}

	j.logger.Info("compilation failed",
		zap.String("class", className),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Int64("elapsedMs", elapsed))
	return res, nil
}
