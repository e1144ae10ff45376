package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/johnbasrai/cr8s-quickstart/internal/model"
)

// DefaultShell interprets shell-string invocations.
const DefaultShell = "/bin/bash"

// Invocation is a single external command: either a program with an
// argument list (never passed through a shell) or one shell string.
type Invocation struct {
	// Program and Args are used when Script is empty.
	Program string
	Args    []string

	// Script is interpreted by a single shell process when non-empty.
	Script string
}

// Command builds a program+args invocation.
func Command(program string, args ...string) Invocation {
	return Invocation{Program: program, Args: args}
}

// Shell builds a shell-string invocation.
func Shell(script string) Invocation {
	return Invocation{Script: script}
}

// IsShell reports whether the invocation is a shell string.
func (i Invocation) IsShell() bool {
	return i.Script != ""
}

// Name returns the program being run. For shell strings this is the first
// word of the script, which is what an operator recognizes in an error.
func (i Invocation) Name() string {
	if i.IsShell() {
		if fields := strings.Fields(i.Script); len(fields) > 0 {
			return fields[0]
		}
		return DefaultShell
	}
	return i.Program
}

// String renders the invocation as it is logged.
func (i Invocation) String() string {
	if i.IsShell() {
		return i.Script
	}
	if len(i.Args) == 0 {
		return i.Program
	}
	return i.Program + " " + strings.Join(i.Args, " ")
}

// Outcome is the result of one invocation.
//
// A signaled process has no exit code; Code is -1 and Signal names the
// signal.
type Outcome struct {
	Code   int
	Signal string
}

// Success reports a zero exit without a signal.
func (o Outcome) Success() bool {
	return o.Code == 0 && o.Signal == ""
}

// Signaled reports whether the process was terminated by a signal.
func (o Outcome) Signaled() bool {
	return o.Signal != ""
}

// CommandError reports a failed invocation.
type CommandError struct {
	Invocation Invocation
	Outcome    Outcome

	// Err is set when the process could not be started at all.
	Err error
}

func (e *CommandError) Error() string {
	name := e.Invocation.Name()
	switch {
	case e.Err != nil:
		return fmt.Sprintf("command `%s` could not be started: %v", name, e.Err)
	case e.Outcome.Signaled():
		return fmt.Sprintf("command `%s` terminated by signal %s (no exit code)", name, e.Outcome.Signal)
	default:
		return fmt.Sprintf("command `%s` failed with exit code %d", name, e.Outcome.Code)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Executor runs invocations. Runner is the production implementation;
// sequencer tests substitute a recorder.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) (Outcome, error)
}

// Runner executes invocations in the configured ExecutionMode.
type Runner struct {
	mode   model.ExecutionMode
	logger *log.Logger

	// Env is appended to the inherited environment of every spawned
	// process. Later entries win, so these override inherited values.
	Env []string

	// Dir is the working directory for spawned processes. Empty means the
	// current directory.
	Dir string

	// ShellPath interprets shell-string invocations.
	ShellPath string

	Stdout io.Writer
	Stderr io.Writer
}

// New creates a Runner for the given mode. env holds KEY=VALUE pairs
// exported to every spawned process.
func New(mode model.ExecutionMode, logger *log.Logger, env []string) *Runner {
	return &Runner{
		mode:      mode,
		logger:    logger,
		Env:       env,
		ShellPath: DefaultShell,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Mode returns the execution mode the Runner was created with.
func (r *Runner) Mode() model.ExecutionMode {
	return r.mode
}

// Execute logs the invocation and, in live mode, runs it to completion.
func (r *Runner) Execute(ctx context.Context, inv Invocation) (Outcome, error) {
	if r.mode.IsDryRun() {
		r.logger.Info("would run", "cmd", inv.String())
		return Outcome{}, nil
	}
	r.logger.Info("running", "cmd", inv.String())

	var cmd *exec.Cmd
	if inv.IsShell() {
		cmd = exec.CommandContext(ctx, r.ShellPath, "-c", inv.Script)
	} else {
		cmd = exec.CommandContext(ctx, inv.Program, inv.Args...)
	}
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	err := cmd.Run()
	if err == nil {
		return Outcome{}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		r.logger.Error("❌ command could not be started", "program", inv.Name(), "err", err)
		return Outcome{Code: -1}, &CommandError{Invocation: inv, Outcome: Outcome{Code: -1}, Err: err}
	}

	outcome := outcomeFromState(exitErr.ProcessState)
	if outcome.Signaled() {
		r.logger.Error("❌ command terminated by signal", "program", inv.Name(), "signal", outcome.Signal)
	} else {
		r.logger.Error("❌ command failed", "program", inv.Name(), "code", outcome.Code)
	}
	return outcome, &CommandError{Invocation: inv, Outcome: outcome}
}

// outcomeFromState maps a finished process onto an Outcome.
func outcomeFromState(ps *os.ProcessState) Outcome {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Outcome{Code: -1, Signal: ws.Signal().String()}
	}
	return Outcome{Code: ps.ExitCode()}
}

// Run executes inv and discards the outcome, returning only the error.
func Run(ctx context.Context, e Executor, inv Invocation) error {
	_, err := e.Execute(ctx, inv)
	return err
}
