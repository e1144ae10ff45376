// Package stack drives the compose stack through its start and shutdown
// sequences.
//
// Both sequences are linear: each step runs to completion before the next
// starts and the first fatal failure aborts the rest. Which optional steps
// run is decided up front by model.StartupFlags.
package stack

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/johnbasrai/cr8s-quickstart/internal/envconfig"
	"github.com/johnbasrai/cr8s-quickstart/internal/model"
	"github.com/johnbasrai/cr8s-quickstart/internal/runner"
)

// FEServerDockerfile builds the front-end server image.
const FEServerDockerfile = "Dockerfile.fe-server"

// DefaultPullServices are the data-tier and application-tier services
// refreshed by --force-pull and --fresh.
var DefaultPullServices = []string{"postgres", "redis", "server"}

// AdminUser is the principal seeded after the schema is loaded.
type AdminUser struct {
	Username string
	Password string
	Roles    []string
}

// DefaultAdmin is the development administrator account.
var DefaultAdmin = AdminUser{
	Username: "admin@example.com",
	Password: "password123",
	Roles:    []string{"admin", "editor", "viewer"},
}

// LintRunner runs the pre-build checks. *lint.Orchestrator implements it.
type LintRunner interface {
	Run(ctx context.Context, mode model.LintMode) error
}

// Stack sequences the external commands that bring the stack up and down.
type Stack struct {
	exec   runner.Executor
	lint   LintRunner
	cfg    *envconfig.Config
	logger *log.Logger

	// Dir is the project directory holding the compose file.
	Dir string

	// PullServices are pulled when images are refreshed.
	PullServices []string

	// Admin is seeded into the application after schema load.
	Admin AdminUser
}

// New creates a Stack with the default pull list and admin account.
func New(exec runner.Executor, lint LintRunner, cfg *envconfig.Config, logger *log.Logger, dir string) *Stack {
	return &Stack{
		exec:         exec,
		lint:         lint,
		cfg:          cfg,
		logger:       logger,
		Dir:          dir,
		PullServices: DefaultPullServices,
		Admin:        DefaultAdmin,
	}
}

// run executes inv and labels a failure with the step description.
func (s *Stack) run(ctx context.Context, step string, inv runner.Invocation) error {
	if err := runner.Run(ctx, s.exec, inv); err != nil {
		return stepError(step, err)
	}
	return nil
}

// stepError wraps err as a command failure unless it already carries an
// exit code.
func stepError(step string, err error) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	return model.WrapCLIError(model.ExitCommandFailed, step, err)
}

// shellQuote single-quotes s for safe interpolation into a shell string.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// seedInvocation renders the one-shot create-user run. It is passed as
// program and arguments so the credentials never go through a shell.
func (a AdminUser) seedInvocation() runner.Invocation {
	return runner.Command("docker", "compose", "run", "-q", "--rm", "cli", "create-user",
		"--username", a.Username,
		"--password", a.Password,
		"--roles", strings.Join(a.Roles, ","),
	)
}
