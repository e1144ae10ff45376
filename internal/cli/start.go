package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/johnbasrai/cr8s-quickstart/internal/docker"
	"github.com/johnbasrai/cr8s-quickstart/internal/envconfig"
	"github.com/johnbasrai/cr8s-quickstart/internal/lint"
	"github.com/johnbasrai/cr8s-quickstart/internal/model"
	"github.com/johnbasrai/cr8s-quickstart/internal/stack"
)

// startFlags holds the raw flag values for the start command.
type startFlags struct {
	lint         model.LintMode
	noCache      bool
	forcePull    bool
	forceRebuild bool
	fresh        bool
}

// newStartCommand creates the "start" cobra command.
func newStartCommand(a *App) *cobra.Command {
	flags := &startFlags{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start backend services and initialize the environment",
		Long: `Start backend services and initialize the environment.

If no flags are specified, performs a fast startup using cached Docker
layers and existing containers.

Examples:
  quickstart start --lint basic
  quickstart start --lint none --fresh
  quickstart --dry-run start --lint full --no-cache`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), a, flags)
		},
	}

	cmd.Flags().Var(&flags.lint, "lint", "Lint mode to use (none, basic, full)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Rebuild images without the Docker build cache")
	cmd.Flags().BoolVar(&flags.forcePull, "force-pull", false, "Pull service images before starting")
	cmd.Flags().BoolVar(&flags.forceRebuild, "force-rebuild", false, "Recreate all containers (keep Docker cache)")
	cmd.Flags().BoolVar(&flags.fresh, "fresh", false, "Tear everything down, then no-cache build and pull")
	_ = cmd.MarkFlagRequired("lint")

	return cmd
}

// runStart validates the flag combination, checks the daemon and runs the
// startup sequence.
func runStart(ctx context.Context, a *App, f *startFlags) error {
	startup, err := model.NewStartupFlags(f.fresh, f.noCache, f.forcePull, f.forceRebuild)
	if err != nil {
		return err
	}
	a.Logger.Info("Starting services...", "lint", f.lint, "flags", startup)

	// The daemon check is skipped in dry-run: nothing is spawned, so no
	// daemon is needed. In --dev mode the locally built images must exist
	// before compose is asked to run them.
	if !a.Mode().IsDryRun() {
		if err := docker.Preflight(ctx, a.Logger, a.localImages()); err != nil {
			return err
		}
	}

	r := a.newRunner()
	orchestrator := lint.NewOrchestrator(r, a.Config, a.Mode(), a.Logger, a.Dir)
	return stack.New(r, orchestrator, a.Config, a.Logger, a.Dir).Start(ctx, startup, f.lint)
}

// localImages lists the images that --dev expects to have been built
// locally. Release mode pulls from the registry and expects none.
func (a *App) localImages() []string {
	if !a.Dev {
		return nil
	}
	return []string{
		a.Config.Get(envconfig.KeyBECLIImage),
		a.Config.Get(envconfig.KeyBEServerImage),
		a.Config.Get(envconfig.KeyFEBaseImage),
	}
}
