// Package runner executes the external commands that drive the stack.
//
// Every invocation goes through Runner.Execute, which logs the command line
// before doing anything else so that dry-run and live logs line up. In
// dry-run mode nothing is spawned and a zero exit is reported. In live mode
// a non-zero exit or a terminating signal becomes a *CommandError that keeps
// the program name and the exit code or signal.
//
// The Runner never retries and never swallows a failure; callers that treat
// a step as best-effort decide that themselves.
package runner
