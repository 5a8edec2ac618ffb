package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentfoundry/agentfactory/internal/infrastructure/di"
)

func newApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <run-id|slug>",
		Short: "Approve a paused run's blueprint and resume the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				rn, err := c.Orchestrator().Approve(ctx, args[0])
				if rn != nil {
					printRunOutcome(cmd, rn)
				}
				return err
			})
		},
	}
}
