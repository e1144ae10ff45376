package stack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/johnbasrai/cr8s-quickstart/internal/envconfig"
	"github.com/johnbasrai/cr8s-quickstart/internal/model"
	"github.com/johnbasrai/cr8s-quickstart/internal/runner"
)

// Start brings the stack up:
//
//  1. fresh: tear down the stack including volumes
//  2. lint checks
//  3. build the front-end server image (no cache with noCache or fresh)
//  4. fresh or forcePull: pull data-tier and application-tier images
//  5. bring all services up in the background
//  6. block until every service reports healthy
//  7. load the schema
//  8. seed the admin principal
//  9. start the application server
//
// The first failing step aborts the sequence and its error is returned.
func (s *Stack) Start(ctx context.Context, flags model.StartupFlags, lintMode model.LintMode) error {
	s.logger.Debug("start requested", "flags", flags, "lint", lintMode)

	// Step 0: Check every input before running anything. A configuration
	// gap found after the fresh teardown would leave the stack down with
	// its volumes gone and nothing brought back up.
	feBase, err := s.cfg.Require(envconfig.KeyFEBaseImage)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "cannot build front-end image", err)
	}
	feServer, err := s.cfg.Require(envconfig.KeyFEServerImage)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "cannot build front-end image", err)
	}
	if flags.PullImages() {
		if err := s.checkPullServices(); err != nil {
			return err
		}
	}

	// Step 1: Fresh startup removes containers and volumes so the schema
	// load and seeding below run against an empty database.
	if flags.Fresh() {
		s.logger.Info("🧨 Performing fresh startup...")
		if err := s.run(ctx, "tear down stack", runner.Command("docker", "compose", "down", "-v")); err != nil {
			return err
		}
	} else {
		s.logger.Info("💬 Skipping docker compose down...")
	}

	// --force-rebuild is accepted for compatibility with older scripts.
	// `docker compose up -d` below already recreates containers whose
	// image or configuration changed.
	if flags.ForceRebuild() {
		s.logger.Debug("force-rebuild requested, container recreation is left to docker compose")
	}

	// Step 2: Lint runs before the build so a formatting or clippy failure
	// costs seconds rather than a full image build.
	if err := s.lint.Run(ctx, lintMode); err != nil {
		return stepError("lint checks", err)
	}

	// Step 3: The front-end server image is always built. Docker's layer
	// cache keeps this fast unless noCache or fresh bypasses it.
	s.logger.Info("🔨 Building front-end server image...", "base", feBase, "tag", feServer)
	if err := s.run(ctx, "build front-end server image", s.buildInvocation(flags, feBase, feServer)); err != nil {
		return err
	}

	// Step 4: Pull the full service list. Compose resolves the project
	// itself, so an unknown service fails here loudly instead of being
	// dropped.
	if flags.PullImages() {
		s.logger.Info("🐳 Pulling new images...", "services", s.PullServices)
		pull := runner.Shell("docker compose pull " + strings.Join(s.PullServices, " "))
		if err := s.run(ctx, "pull images", pull); err != nil {
			return err
		}
	}

	// Steps 5 through 9: bring-up. `up -d` starts every service, `up --wait`
	// blocks on the healthchecks so the one-shot CLI runs see a ready
	// database, and the server is (re)started last so it comes up against
	// the loaded schema.
	steps := []struct {
		log  string
		name string
		inv  runner.Invocation
	}{
		{"🐳 Start all services...", "start services", runner.Shell("docker compose up -d")},
		{"⏳ Waiting for services to be healthy...", "wait for healthy services", runner.Shell("docker compose up --wait")},
		{"🗄️  Loading database schema...", "load schema", runner.Shell("docker compose run -q --rm cli load-schema")},
		{"👤 Creating default admin user...", "seed admin user", s.Admin.seedInvocation()},
		{"🚀 Starting backend server...", "start backend server", runner.Shell("docker compose up -d server")},
	}
	for _, step := range steps {
		s.logger.Info(step.log)
		if err := s.run(ctx, step.name, step.inv); err != nil {
			return err
		}
	}

	s.logger.Info("✅ Backend services ready")
	s.logger.Info("✅ Frontend compile has started but is not complete, use `quickstart wait` to block on it")
	return nil
}

// buildInvocation renders the docker build for the front-end server.
// The version is passed as a build arg so the image embeds the same
// CR8S_VERSION the compose services are tagged with.
func (s *Stack) buildInvocation(flags model.StartupFlags, feBase, feServer string) runner.Invocation {
	args := []string{"build"}
	if flags.BypassBuildCache() {
		args = append(args, "--no-cache")
	}
	args = append(args,
		"--build-arg", "FE_BASE_IMAGE="+feBase,
		"--build-arg", "CR8S_VERSION="+s.cfg.Version(),
		"-f", FEServerDockerfile,
		"-t", feServer,
		".",
	)
	return runner.Command("docker", args...)
}

// checkPullServices verifies that every service in PullServices is
// declared by the project's compose files, following the override file and
// include entries. An undeclared service is a configuration error.
//
// When the project cannot be reconstructed from files (no compose file in
// Dir, COMPOSE_FILE set, or an interpolated include path) the check is
// skipped and the pull itself reports unknown services.
func (s *Stack) checkPullServices() error {
	if len(s.PullServices) == 0 {
		return model.NewCLIError(model.ExitConfigError, "no services configured to pull")
	}

	declared, files, err := ProjectServices(s.Dir)
	switch {
	case errors.Is(err, errNoComposeFile), errors.Is(err, errProjectUnresolved):
		s.logger.Debug("pull list not checked, compose resolves the project", "reason", err)
		return nil
	case err != nil:
		return model.WrapCLIError(model.ExitConfigError, "cannot read compose project", err)
	}

	if missing := undeclared(s.PullServices, declared); len(missing) > 0 {
		return model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("compose project does not declare %s (read %s)",
				strings.Join(missing, ", "), strings.Join(files, ", ")))
	}
	s.logger.Debug("pull list checked against compose project", "services", s.PullServices, "files", files)
	return nil
}
