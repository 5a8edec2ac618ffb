package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
	"github.com/agentfoundry/agentfactory/internal/infrastructure/di"
)

func newAbortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort <run-id|slug>",
		Short: "Request termination of a run",
		Long: `Request termination of a run. A paused run aborts immediately; a
running run stops at its next stage boundary, never in the middle of a
model call.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				rn, err := c.Orchestrator().Abort(ctx, args[0])
				if err != nil {
					return err
				}
				if rn.Status == run.StatusAborted {
					cmd.Printf("Run %s aborted.\n", rn.ID)
				} else {
					cmd.Printf("Abort requested for run %s; it will stop at the next stage boundary.\n", rn.ID)
				}
				return nil
			})
		},
	}
}
