package cli

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnbasrai/cr8s-quickstart/internal/model"
	"github.com/johnbasrai/cr8s-quickstart/internal/readiness"
)

// maxTimeoutSecs is the largest --timeout that still fits a time.Duration.
const maxTimeoutSecs = uint64(math.MaxInt64 / int64(time.Second))

// newWaitCommand creates the "wait" cobra command.
func newWaitCommand(a *App) *cobra.Command {
	var timeoutSecs uint64

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for the frontend to finish compiling",
		Long: `Poll the frontend until it answers with a 2xx status twice, one
settle window apart, or until the timeout elapses (exit code 5).`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, err := waitTimeout(timeoutSecs)
			if err != nil {
				return err
			}
			return readiness.NewWaiter(a.Logger).Wait(cmd.Context(), timeout, a.Mode())
		},
	}

	cmd.Flags().Uint64Var(&timeoutSecs, "timeout", uint64(readiness.DefaultTimeout/time.Second),
		"Timeout in seconds to wait for frontend readiness")

	return cmd
}

// waitTimeout converts --timeout to a Duration, rejecting values that
// would overflow it.
func waitTimeout(secs uint64) (time.Duration, error) {
	if secs > maxTimeoutSecs {
		return 0, model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("--timeout %d is out of range (max %d seconds)", secs, maxTimeoutSecs))
	}
	return time.Duration(secs) * time.Second, nil
}
