package model

import (
	"fmt"
	"strings"
)

// ExecutionMode selects whether commands are actually spawned.
// It is set once per invocation and threaded through every component.
type ExecutionMode int

const (
	// Live spawns real processes and touches the filesystem.
	Live ExecutionMode = iota

	// DryRun only logs what would be executed and always reports success.
	DryRun
)

// ModeFromDryRun converts the --dry-run flag into an ExecutionMode.
func ModeFromDryRun(dryRun bool) ExecutionMode {
	if dryRun {
		return DryRun
	}
	return Live
}

// IsDryRun reports whether side effects must be suppressed.
func (m ExecutionMode) IsDryRun() bool {
	return m == DryRun
}

// String returns "live" or "dry-run".
func (m ExecutionMode) String() string {
	if m == DryRun {
		return "dry-run"
	}
	return "live"
}

// LintMode selects which checks the generated lint script runs.
//
// The zero value is not a valid mode; the start command requires --lint.
type LintMode string

const (
	// LintNone skips all checks. No script is written.
	LintNone LintMode = "none"

	// LintBasic runs the format check and strict static analysis.
	LintBasic LintMode = "basic"

	// LintFull runs the basic checks over an expanded target set plus the
	// advisory dependency audit and outdated-dependency report.
	LintFull LintMode = "full"
)

// String returns the string representation of LintMode.
func (m LintMode) String() string {
	return string(m)
}

// IsValid checks whether the LintMode value is one of the predefined modes.
func (m LintMode) IsValid() bool {
	switch m {
	case LintNone, LintBasic, LintFull:
		return true
	default:
		return false
	}
}

// ParseLintMode converts a string to a LintMode, ignoring case.
func ParseLintMode(s string) (LintMode, error) {
	mode := LintMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid lint mode: %q (valid: none, basic, full)", s)
	}
	return mode, nil
}

// Set implements pflag.Value so LintMode can be bound directly to a flag.
func (m *LintMode) Set(s string) error {
	parsed, err := ParseLintMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements pflag.Value.
func (m *LintMode) Type() string {
	return "none|basic|full"
}

// StartupFlags is the validated set of booleans that alter the start
// sequence. Construct it with NewStartupFlags; the zero value is a plain
// fast startup.
//
// fresh implies noCache, forcePull and forceRebuild, so combining fresh
// with any of them is rejected instead of silently merged.
type StartupFlags struct {
	fresh        bool
	noCache      bool
	forcePull    bool
	forceRebuild bool
}

// NewStartupFlags validates the flag combination and returns the
// immutable StartupFlags value.
//
// Returns a CLIError with ExitConfigError when fresh is combined with
// any of the flags it already implies.
func NewStartupFlags(fresh, noCache, forcePull, forceRebuild bool) (StartupFlags, error) {
	if fresh {
		var conflicts []string
		if forceRebuild {
			conflicts = append(conflicts, "--force-rebuild")
		}
		if forcePull {
			conflicts = append(conflicts, "--force-pull")
		}
		if noCache {
			conflicts = append(conflicts, "--no-cache")
		}
		if len(conflicts) > 0 {
			return StartupFlags{}, NewCLIError(ExitConfigError,
				fmt.Sprintf("--fresh cannot be combined with %s", strings.Join(conflicts, ", ")))
		}
	}
	return StartupFlags{
		fresh:        fresh,
		noCache:      noCache,
		forcePull:    forcePull,
		forceRebuild: forceRebuild,
	}, nil
}

// Fresh reports whether the stack is torn down (with volumes) first.
func (f StartupFlags) Fresh() bool { return f.fresh }

// BypassBuildCache reports whether the image build runs with --no-cache.
func (f StartupFlags) BypassBuildCache() bool { return f.noCache || f.fresh }

// PullImages reports whether service images are pulled before bring-up.
func (f StartupFlags) PullImages() bool { return f.forcePull || f.fresh }

// ForceRebuild reports whether --force-rebuild was given. It does not
// change the start sequence.
func (f StartupFlags) ForceRebuild() bool { return f.forceRebuild }

// String renders the active flags for logging.
func (f StartupFlags) String() string {
	var set []string
	if f.fresh {
		set = append(set, "fresh")
	}
	if f.noCache {
		set = append(set, "no-cache")
	}
	if f.forcePull {
		set = append(set, "force-pull")
	}
	if f.forceRebuild {
		set = append(set, "force-rebuild")
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, ",")
}

// ExitCode defines the process exit codes of the quickstart CLI.
// These codes allow scripts and CI systems to programmatically determine
// the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates a missing required value or an illegal
	// flag combination. No command has been executed.
	ExitConfigError ExitCode = 2

	// ExitCommandFailed indicates a spawned command exited non-zero or
	// was terminated by a signal.
	ExitCommandFailed ExitCode = 3

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 4

	// ExitNotReady indicates the readiness wait timed out.
	ExitNotReady ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
