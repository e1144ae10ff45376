// Package model defines the value types shared by the quickstart CLI.
//
// This package contains pure data structures with no external dependencies.
// ExecutionMode, LintMode and StartupFlags are built once per invocation
// from command-line flags and never mutated afterwards.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
