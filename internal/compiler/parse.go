package compiler

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/avdeev7/collabcode/internal/model"
)

// DefaultEntryPoint is used when no type declaration can be found in the source.
const DefaultEntryPoint = "Main"

var (
	publicClassRe = regexp.MustCompile(`public\s+class\s+([A-Za-z_][A-Za-z0-9_]*)`)
	anyClassRe    = regexp.MustCompile(`class\s+([A-Za-z_][A-Za-z0-9_]*)`)

	diagHeadRe = regexp.MustCompile(`^(.*\.java):(\d+):\s*(error|warning):\s*(.*)$`)
	caretRe    = regexp.MustCompile(`^\s*\^\s*$`)
)

// EntryPointName derives the program's entry-point class name from source text:
// first public class, else first class of any visibility, else DefaultEntryPoint.
// The name determines the source file name, which javac requires to match.
func EntryPointName(source string) string {
	if m := publicClassRe.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	if m := anyClassRe.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return DefaultEntryPoint
}

// ParseDiagnostics converts javac's plain-text output into structured
// diagnostics. Column numbers come from the caret line javac prints under the
// offending source line; diagnostics without a caret keep column 0.
func ParseDiagnostics(out string) []model.Diagnostic {
	var diags []model.Diagnostic
	lines := strings.Split(out, "\n")
	for i := 0; i < len(lines); i++ {
		m := diagHeadRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		line, _ := strconv.ParseInt(m[2], 10, 64)
		d := model.Diagnostic{
			Line:     line,
			Message:  m[4],
			Severity: strings.ToUpper(m[3]),
		}
		// javac echoes the source line, then a caret marking the column
		for j := i + 1; j < len(lines) && j <= i+3; j++ {
			if caretRe.MatchString(lines[j]) {
				d.Column = int64(strings.Index(lines[j], "^") + 1)
				break
			}
			if diagHeadRe.MatchString(lines[j]) {
				break
			}
		}
		diags = append(diags, d)
	}
	return diags
}
