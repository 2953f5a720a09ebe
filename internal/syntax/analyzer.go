// Package syntax provides the black-box parse capability used by the
// diagnostics flow: source text in, structured syntax errors out.
package syntax

import (
	"context"
	"os"

	"github.com/avdeev7/collabcode/internal/compiler"
	"github.com/avdeev7/collabcode/internal/model"
)

// Analyzer checks source text for syntax errors. Implementations are
// interchangeable; the editing flow treats failures as "no diagnostics this
// round", never as fatal.
type Analyzer interface {
	Analyze(ctx context.Context, source string) ([]model.Diagnostic, error)
}

// CompilerChecker implements Analyzer by running the toolchain in a throwaway
// scratch directory and keeping only the diagnostics.
type CompilerChecker struct {
	compiler compiler.Compiler
}

// NewCompilerChecker constructs a toolchain-backed analyzer.
func NewCompilerChecker(c compiler.Compiler) *CompilerChecker {
	return &CompilerChecker{compiler: c}
}

var _ Analyzer = (*CompilerChecker)(nil)

// Analyze compiles the source and returns its diagnostics. The scratch
// directory is removed before returning; nothing is retained.
func (c *CompilerChecker) Analyze(ctx context.Context, source string) ([]model.Diagnostic, error) {
	res, err := c.compiler.Compile(ctx, source)
	if res.OutputDir != "" {
		_ = os.RemoveAll(res.OutputDir)
	}
	if err != nil {
		return nil, err
	}
	return res.Diagnostics, nil
}
