// Package lint generates and runs the pre-start check script.
//
// A check script is rendered from an ordered list of steps that depends on
// the LintMode, written next to the sources as an executable file, run
// inside the toolchain container and removed again on every exit path.
// The format check always comes first. In full mode the dependency audit
// and the outdated report are advisory: their failures are swallowed
// inside the script and never reach the caller.
package lint

import (
	"strings"

	"github.com/johnbasrai/cr8s-quickstart/internal/model"
)

// ScriptName is the fixed file name of the generated script.
const ScriptName = "run-checks.sh"

// scriptHeader precedes the steps. The script aborts on the first
// unhandled failure.
var scriptHeader = []string{
	"#!/bin/bash",
	"set -euo pipefail",
	"echo '🧹 Running lint checks...'",
}

// Step is one line of the check script.
type Step struct {
	Command string

	// Advisory steps may fail without failing the script.
	Advisory bool
}

// Line renders the step as it appears in the script.
func (s Step) Line() string {
	if s.Advisory {
		return "(" + s.Command + " || true)"
	}
	return s.Command
}

// Steps returns the ordered checks for mode. LintNone has no steps.
func Steps(mode model.LintMode) []Step {
	format := Step{Command: "cargo fmt --all -- --check"}

	switch mode {
	case model.LintBasic:
		return []Step{
			format,
			{Command: "cargo clippy --all-targets -- -D warnings"},
		}
	case model.LintFull:
		return []Step{
			format,
			{Command: "cargo clippy --all-targets --all-features -- -D warnings"},
			{Command: "cargo audit", Advisory: true},
			{Command: "cargo outdated", Advisory: true},
		}
	default:
		return nil
	}
}

// Render serializes steps into the script body.
func Render(steps []Step) string {
	lines := make([]string, 0, len(scriptHeader)+len(steps))
	lines = append(lines, scriptHeader...)
	for _, s := range steps {
		lines = append(lines, s.Line())
	}
	return strings.Join(lines, "\n") + "\n"
}
