// Package cli implements the cobra-based CLI commands for quickstart.
//
// Each subcommand (start, shutdown, wait) is defined in its own file within
// this package. This file defines the root command, the global flags shared
// by every subcommand and the mapping from errors to exit codes.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/johnbasrai/cr8s-quickstart/internal/envconfig"
	"github.com/johnbasrai/cr8s-quickstart/internal/logging"
	"github.com/johnbasrai/cr8s-quickstart/internal/model"
	"github.com/johnbasrai/cr8s-quickstart/internal/runner"
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// App carries the global flag values and the state built from them before
// a subcommand runs. Subcommands read from it and never from globals.
type App struct {
	// Dir is the project directory. Compose, the lint script, .env and the
	// manifests are all looked up here.
	Dir string

	LogLevel string
	DryRun   bool
	Dev      bool

	Logger *log.Logger
	Config *envconfig.Config
}

// Mode returns the execution mode selected by --dry-run.
func (a *App) Mode() model.ExecutionMode {
	return model.ModeFromDryRun(a.DryRun)
}

// NewRootCommand creates the root command for the current working directory.
func NewRootCommand() *cobra.Command {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return newRootCommand(&App{Dir: dir})
}

func newRootCommand(a *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quickstart",
		Short: "Bring the cr8s development stack up, down, or wait for it",
		Long: `quickstart drives the cr8s compose stack through an ordered sequence of
docker commands: lint, image build, optional pull, compose up, schema load,
admin seeding and server start.

Every command honours --dry-run, which logs each planned invocation
without running anything.`,

		// Errors are printed by Execute, not cobra.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.LogLevel, "log-level", "",
		fmt.Sprintf("Log level (%s); defaults to $%s or %s",
			strings.Join(logging.ValidLevels, "|"), logging.EnvLevel, logging.DefaultLevel))
	pf.BoolVar(&a.DryRun, "dry-run", false, "Log every command instead of running it")
	pf.BoolVar(&a.Dev, "dev", false, "Use locally built development images")

	rootCmd.AddCommand(newStartCommand(a))
	rootCmd.AddCommand(newShutdownCommand(a))
	rootCmd.AddCommand(newWaitCommand(a))

	return rootCmd
}

// setup builds the logger and resolves the configuration. It runs once
// before any subcommand.
func (a *App) setup(stderr io.Writer) error {
	levelName := a.LogLevel
	source := "flag"
	if levelName == "" {
		levelName, source = os.Getenv(logging.EnvLevel), logging.EnvLevel
	}
	if levelName == "" {
		levelName, source = logging.DefaultLevel, "default"
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid log level", err)
	}
	a.Logger = logging.New(stderr, level)
	a.Logger.Info("log level", "level", levelName, "source", source)
	if a.DryRun {
		a.Logger.Info("dry-run: no commands will be executed")
	}

	resolver, err := envconfig.NewResolver(a.Logger, a.Dir)
	if err != nil {
		return err
	}
	cfg, err := resolver.Resolve(a.Dev)
	if err != nil {
		return err
	}
	a.Config = cfg
	return nil
}

// newRunner returns a Command Executor that spawns processes in the project
// directory with the resolved configuration in their environment.
func (a *App) newRunner() *runner.Runner {
	r := runner.New(a.Mode(), a.Logger, a.Config.Environ())
	r.Dir = a.Dir
	return r
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(int(exitCode(err)))
	}
}

// exitCode maps an error to the process exit code. CLIError carries its
// own code; a bare command failure is ExitCommandFailed; anything else is
// a general error.
func exitCode(err error) model.ExitCode {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) {
		return model.ExitCommandFailed
	}
	return model.ExitGeneralError
}

// printError writes "✖ Error: <message>" to w with the marker in red.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %v\n", red("✖ Error:"), err)
}
