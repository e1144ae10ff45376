// Package runnertest provides a recording runner.Executor for tests of
// code that drives external commands.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"github.com/johnbasrai/cr8s-quickstart/internal/runner"
)

// Recorder records every invocation and fails the ones matching Fail.
// Nothing is ever spawned.
type Recorder struct {
	mu    sync.Mutex
	calls []runner.Invocation

	// Fail maps a substring of the rendered command line to the exit code
	// returned for matching invocations.
	Fail map[string]int

	// OnExecute, when set, runs before the outcome is decided. Tests use
	// it to inspect the filesystem while a command is "running".
	OnExecute func(inv runner.Invocation)
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{Fail: map[string]int{}}
}

// Execute implements runner.Executor.
func (r *Recorder) Execute(_ context.Context, inv runner.Invocation) (runner.Outcome, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()

	if r.OnExecute != nil {
		r.OnExecute(inv)
	}

	line := inv.String()
	for substr, code := range r.Fail {
		if strings.Contains(line, substr) {
			outcome := runner.Outcome{Code: code}
			return outcome, &runner.CommandError{Invocation: inv, Outcome: outcome}
		}
	}
	return runner.Outcome{}, nil
}

// Calls returns the recorded invocations in order.
func (r *Recorder) Calls() []runner.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]runner.Invocation, len(r.calls))
	copy(out, r.calls)
	return out
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}
