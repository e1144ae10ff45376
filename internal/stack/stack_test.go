package stack

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnbasrai/cr8s-quickstart/internal/envconfig"
	"github.com/johnbasrai/cr8s-quickstart/internal/logging"
	"github.com/johnbasrai/cr8s-quickstart/internal/model"
	"github.com/johnbasrai/cr8s-quickstart/internal/runner"
	"github.com/johnbasrai/cr8s-quickstart/internal/runner/runnertest"
)

// fakeLint records lint calls and optionally fails them.
type fakeLint struct {
	modes []model.LintMode
	err   error
}

func (f *fakeLint) Run(_ context.Context, mode model.LintMode) error {
	f.modes = append(f.modes, mode)
	return f.err
}

func testConfig() *envconfig.Config {
	return envconfig.NewConfig(false, map[string]string{
		envconfig.KeyVersion:       "0.5.1",
		envconfig.KeyScratchDir:    "/scratch",
		envconfig.KeyFEBaseImage:   "rust-dev:test",
		envconfig.KeyFEServerImage: "cr8s-fe-server",
	})
}

func newTestStack(t *testing.T) (*Stack, *runnertest.Recorder, *fakeLint) {
	t.Helper()
	t.Setenv("COMPOSE_FILE", "")
	rec := runnertest.NewRecorder()
	lint := &fakeLint{}
	return New(rec, lint, testConfig(), logging.Discard(), t.TempDir()), rec, lint
}

func mustFlags(t *testing.T, fresh, noCache, forcePull, forceRebuild bool) model.StartupFlags {
	t.Helper()
	f, err := model.NewStartupFlags(fresh, noCache, forcePull, forceRebuild)
	require.NoError(t, err)
	return f
}

const (
	buildCached  = "docker build --build-arg FE_BASE_IMAGE=rust-dev:test --build-arg CR8S_VERSION=0.5.1 -f Dockerfile.fe-server -t cr8s-fe-server ."
	buildNoCache = "docker build --no-cache --build-arg FE_BASE_IMAGE=rust-dev:test --build-arg CR8S_VERSION=0.5.1 -f Dockerfile.fe-server -t cr8s-fe-server ."
	composeUp    = "docker compose up -d"
	composeWait  = "docker compose up --wait"
	loadSchema   = "docker compose run -q --rm cli load-schema"
	seedAdmin    = "docker compose run -q --rm cli create-user --username admin@example.com --password password123 --roles admin,editor,viewer"
	serverUp     = "docker compose up -d server"
	teardown     = "docker compose down -v"
	pullAll      = "docker compose pull postgres redis server"
)

func TestStart_Sequences(t *testing.T) {
	tail := []string{composeUp, composeWait, loadSchema, seedAdmin, serverUp}

	tests := []struct {
		name  string
		flags [4]bool // fresh, noCache, forcePull, forceRebuild
		want  []string
	}{
		{
			name: "fast startup",
			want: append([]string{buildCached}, tail...),
		},
		{
			name:  "fresh",
			flags: [4]bool{true, false, false, false},
			want:  append([]string{teardown, buildNoCache, pullAll}, tail...),
		},
		{
			name:  "no-cache",
			flags: [4]bool{false, true, false, false},
			want:  append([]string{buildNoCache}, tail...),
		},
		{
			name:  "force-pull",
			flags: [4]bool{false, false, true, false},
			want:  append([]string{buildCached, pullAll}, tail...),
		},
		{
			name:  "force-rebuild leaves the sequence unchanged",
			flags: [4]bool{false, false, false, true},
			want:  append([]string{buildCached}, tail...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec, lint := newTestStack(t)
			flags := mustFlags(t, tt.flags[0], tt.flags[1], tt.flags[2], tt.flags[3])

			require.NoError(t, s.Start(context.Background(), flags, model.LintBasic))

			assert.Equal(t, tt.want, rec.Lines())
			assert.Equal(t, []model.LintMode{model.LintBasic}, lint.modes)
		})
	}
}

// TestStart_FreshTeardownIsProgramArgs checks the teardown bypasses the
// shell while compose steps use shell strings.
func TestStart_FreshTeardownIsProgramArgs(t *testing.T) {
	s, rec, _ := newTestStack(t)
	require.NoError(t, s.Start(context.Background(), mustFlags(t, true, false, false, false), model.LintNone))

	calls := rec.Calls()
	require.NotEmpty(t, calls)
	assert.False(t, calls[0].IsShell())
	assert.Equal(t, []string{"compose", "down", "-v"}, calls[0].Args)
	assert.True(t, calls[len(calls)-1].IsShell())
}

func TestStart_FailFast(t *testing.T) {
	tests := []struct {
		failOn    string
		wantCalls int
	}{
		{"docker build", 1},
		{composeUp, 2},
		{"up --wait", 3},
		{"load-schema", 4},
		{"create-user", 5},
		{serverUp, 6},
	}

	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			s, rec, _ := newTestStack(t)
			rec.Fail[tt.failOn] = 1

			err := s.Start(context.Background(), model.StartupFlags{}, model.LintNone)
			require.Error(t, err)

			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, model.ExitCommandFailed, cliErr.Code)

			var cmdErr *runner.CommandError
			require.True(t, errors.As(err, &cmdErr))
			assert.Equal(t, "docker", cmdErr.Invocation.Name())
			assert.Equal(t, 1, cmdErr.Outcome.Code)
			assert.Len(t, rec.Calls(), tt.wantCalls)
		})
	}
}

func TestStart_LintFailureAborts(t *testing.T) {
	s, rec, lint := newTestStack(t)
	lint.err = &runner.CommandError{Invocation: runner.Command("docker", "run"), Outcome: runner.Outcome{Code: 101}}

	err := s.Start(context.Background(), mustFlags(t, true, false, false, false), model.LintFull)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitCommandFailed, cliErr.Code)
	assert.Equal(t, []string{teardown}, rec.Lines(), "only the fresh teardown ran")
}

func TestStart_MissingBuildConfig(t *testing.T) {
	rec := runnertest.NewRecorder()
	lint := &fakeLint{}
	cfg := envconfig.NewConfig(false, map[string]string{envconfig.KeyVersion: "0.5.1"})
	s := New(rec, lint, cfg, logging.Discard(), t.TempDir())

	err := s.Start(context.Background(), mustFlags(t, true, false, false, false), model.LintBasic)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
	assert.Empty(t, rec.Calls())
	assert.Empty(t, lint.modes)
}

// TestStart_PullFollowsInclude declares the pulled services only in an
// included file.
func TestStart_PullFollowsInclude(t *testing.T) {
	s, rec, _ := newTestStack(t)
	writeCompose(t, s.Dir, "compose.yaml", `
include:
  - backend.yaml
services:
  fe:
    image: ${FE_SERVER_IMAGE}
`)
	writeCompose(t, s.Dir, "backend.yaml", `
services:
  postgres:
    image: postgres:16
  redis:
    image: redis:7
  server:
    image: ${BE_SERVER_IMAGE}
`)

	require.NoError(t, s.Start(context.Background(), mustFlags(t, false, false, true, false), model.LintNone))
	assert.Contains(t, rec.Lines(), pullAll)
}

func TestStart_PullFollowsLongIncludeAndOverride(t *testing.T) {
	s, rec, _ := newTestStack(t)
	writeCompose(t, s.Dir, "docker-compose.yml", `
include:
  - path:
      - infra/db.yaml
    project_directory: infra
`)
	writeCompose(t, s.Dir, "infra/db.yaml", `
include:
  - ../docker-compose.yml
services:
  postgres:
    image: postgres:16
`)
	writeCompose(t, s.Dir, "docker-compose.override.yml", `
services:
  redis:
    image: redis:7
  server:
    image: ${BE_SERVER_IMAGE}
`)

	require.NoError(t, s.Start(context.Background(), mustFlags(t, true, false, false, false), model.LintNone))
	assert.Contains(t, rec.Lines(), pullAll)
}

func TestStart_PullUndeclaredServiceIsConfigError(t *testing.T) {
	s, rec, lint := newTestStack(t)
	writeCompose(t, s.Dir, "compose.yaml", `
services:
  postgres:
    image: postgres:16
  server:
    image: ${BE_SERVER_IMAGE}
`)

	err := s.Start(context.Background(), mustFlags(t, true, false, false, false), model.LintBasic)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
	assert.Contains(t, cliErr.Message, "redis")
	assert.Empty(t, rec.Calls(), "nothing runs, not even the fresh teardown")
	assert.Empty(t, lint.modes)
}

func TestStart_PullMissingIncludeIsConfigError(t *testing.T) {
	s, rec, _ := newTestStack(t)
	writeCompose(t, s.Dir, "compose.yaml", "include:\n  - missing.yaml\n")

	err := s.Start(context.Background(), mustFlags(t, false, false, true, false), model.LintNone)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
	assert.Empty(t, rec.Calls())
}

// TestStart_PullLeftToCompose covers projects whose files cannot be read
// statically: the full list is pulled and compose has the last word.
func TestStart_PullLeftToCompose(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{
			name: "COMPOSE_FILE in environment",
			setup: func(t *testing.T, dir string) {
				t.Setenv("COMPOSE_FILE", "base.yaml:extra.yaml")
				writeCompose(t, dir, "compose.yaml", "services:\n  web:\n    image: nginx\n")
			},
		},
		{
			name: "COMPOSE_FILE in .env",
			setup: func(t *testing.T, dir string) {
				writeCompose(t, dir, ".env", "COMPOSE_FILE=base.yaml:extra.yaml\n")
				writeCompose(t, dir, "compose.yaml", "services:\n  web:\n    image: nginx\n")
			},
		},
		{
			name: "interpolated include",
			setup: func(t *testing.T, dir string) {
				writeCompose(t, dir, "compose.yaml", "include:\n  - ${STACK_DIR}/backend.yaml\n")
			},
		},
		{
			name:  "no compose file",
			setup: func(t *testing.T, dir string) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec, _ := newTestStack(t)
			tt.setup(t, s.Dir)

			require.NoError(t, s.Start(context.Background(), mustFlags(t, false, false, true, false), model.LintNone))
			assert.Contains(t, rec.Lines(), pullAll)
		})
	}
}

func TestStart_PullFailureIsFatal(t *testing.T) {
	s, rec, _ := newTestStack(t)
	rec.Fail["compose pull"] = 18

	err := s.Start(context.Background(), mustFlags(t, false, false, true, false), model.LintNone)

	var cmdErr *runner.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 18, cmdErr.Outcome.Code)
	assert.Equal(t, pullAll, rec.Lines()[len(rec.Lines())-1])
}

// TestStart_SeedCredentialsBypassShell uses credentials that a shell
// would split or expand.
func TestStart_SeedCredentialsBypassShell(t *testing.T) {
	s, rec, _ := newTestStack(t)
	s.Admin = AdminUser{
		Username: "ops admin@example.com",
		Password: `p'a"ss $HOME;rm`,
		Roles:    []string{"admin"},
	}

	require.NoError(t, s.Start(context.Background(), model.StartupFlags{}, model.LintNone))

	var seed runner.Invocation
	for _, inv := range rec.Calls() {
		if strings.Contains(inv.String(), "create-user") {
			seed = inv
		}
	}
	require.Equal(t, "docker", seed.Program)
	assert.False(t, seed.IsShell())
	assert.Equal(t, []string{
		"compose", "run", "-q", "--rm", "cli", "create-user",
		"--username", "ops admin@example.com",
		"--password", `p'a"ss $HOME;rm`,
		"--roles", "admin",
	}, seed.Args)
}

func TestShutdown(t *testing.T) {
	s, rec, _ := newTestStack(t)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, []string{
		teardown,
		"sudo rm -rf '/scratch/dev-target' '/scratch/dev-cargo'",
	}, rec.Lines())
}

// TestShutdown_CleanupFailureIsBestEffort simulates a permission failure
// on the scratch removal.
func TestShutdown_CleanupFailureIsBestEffort(t *testing.T) {
	s, rec, _ := newTestStack(t)
	var buf bytes.Buffer
	s.logger = log.New(&buf)
	rec.Fail["sudo rm"] = 1

	assert.NoError(t, s.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "Failed to clean up dev volumes")
	assert.Contains(t, buf.String(), "/scratch")
}

func TestShutdown_TeardownFailureIsFatal(t *testing.T) {
	s, rec, _ := newTestStack(t)
	rec.Fail["down -v"] = 2

	err := s.Shutdown(context.Background())

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitCommandFailed, cliErr.Code)
	assert.Len(t, rec.Calls(), 1, "cleanup is not attempted after a failed teardown")
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "'/var/tmp/dev-target'", shellQuote("/var/tmp/dev-target"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func writeCompose(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
