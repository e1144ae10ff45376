package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/johnbasrai/cr8s-quickstart/internal/docker"
	"github.com/johnbasrai/cr8s-quickstart/internal/stack"
)

// newShutdownCommand creates the "shutdown" cobra command.
func newShutdownCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop all containers and remove volumes",
		Long: `Stop all containers, remove their volumes and clean up the
dev build caches under $CR8S_SCRATCH_DIR.

Cache cleanup is best-effort: a failure is logged and the command still
succeeds.`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runShutdown(cmd.Context(), a)
		},
	}
}

func runShutdown(ctx context.Context, a *App) error {
	if !a.Mode().IsDryRun() {
		if err := docker.Preflight(ctx, a.Logger, nil); err != nil {
			return err
		}
	}

	// Shutdown never lints, so no LintRunner is wired.
	if err := stack.New(a.newRunner(), nil, a.Config, a.Logger, a.Dir).Shutdown(ctx); err != nil {
		return err
	}
	a.Logger.Info("✅ Services stopped")
	return nil
}
