package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentfoundry/agentfactory/internal/infrastructure/di"
)

func newRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <run-id|slug>",
		Short: "Reject a paused run's blueprint and send it back to the Architect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reason == "" {
				return fmt.Errorf("a rejection requires --reason so the Architect can revise the design")
			}
			return withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				rn, err := c.Orchestrator().Reject(ctx, args[0], reason)
				if rn != nil {
					printRunOutcome(cmd, rn)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the blueprint was rejected (required)")
	return cmd
}
