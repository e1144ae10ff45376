package stack

import (
	"context"
	"fmt"

	"github.com/johnbasrai/cr8s-quickstart/internal/runner"
)

// Shutdown tears the stack down including volumes, then removes the
// scratch caches. Only the teardown can fail the operation; a failed
// cache removal is logged as a warning.
func (s *Stack) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping services...")
	if err := s.run(ctx, "tear down stack", runner.Shell("docker compose down -v")); err != nil {
		return err
	}

	s.logger.Info("🧹 Cleaning up dev volumes...")
	cleanup := fmt.Sprintf("sudo rm -rf %s %s",
		shellQuote(s.cfg.TargetCacheDir()), shellQuote(s.cfg.RegistryCacheDir()))
	if err := runner.Run(ctx, s.exec, runner.Shell(cleanup)); err != nil {
		s.logger.Warn("Failed to clean up dev volumes", "scratch", s.cfg.ScratchDir(), "err", err)
	}
	return nil
}
