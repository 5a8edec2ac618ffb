package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
	"github.com/agentfoundry/agentfactory/internal/infrastructure/di"
)

func newStartCmd() *cobra.Command {
	var (
		mode          string
		force         bool
		model         string
		maxIterations int
	)

	cmd := &cobra.Command{
		Use:   "start <goal>",
		Short: "Start a pipeline run for a goal",
		Long: `Start a pipeline run that designs, implements, reviews, and
validates a multi-agent workflow for the given goal.

In interactive mode (the default) the run pauses after the blueprint is
designed and waits for 'approve' or 'reject'. In autonomous mode it
runs to completion without stopping.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.TrimSpace(strings.Join(args, " "))

			m, err := run.ParseMode(mode)
			if err != nil {
				return err
			}

			cfg := runOverrides{
				Config:              globalConfig,
				modelName:           model,
				maxReviewIterations: maxIterations,
			}
			return withContainerUsing(cmd.Context(), cfg, func(ctx context.Context, c *di.Container) error {
				rn, err := c.Orchestrator().Start(ctx, goal, m, force)
				if rn != nil {
					printRunOutcome(cmd, rn)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(run.ModeInteractive), "pipeline mode: autonomous or interactive")
	cmd.Flags().BoolVar(&force, "force", false, "start even if a workspace already exists for this goal")
	cmd.Flags().StringVar(&model, "model", "", "override the backing model for this run")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override the review loop bound for this run")
	return cmd
}

// printRunOutcome reports where a run ended up after a driving command
func printRunOutcome(cmd *cobra.Command, rn *run.Run) {
	switch {
	case rn.Status.IsPaused():
		cmd.Printf("Run %s paused: blueprint ready for review in workspace %q.\n", rn.ID, rn.Slug)
		cmd.Printf("Approve with 'agentfactory approve %s' or reject with 'agentfactory reject %s --reason ...'\n", rn.Slug, rn.Slug)
	case rn.Status == run.StatusSucceeded:
		cmd.Printf("Run %s succeeded. Artifacts are in workspace %q.\n", rn.ID, rn.Slug)
	case rn.Status == run.StatusFailed && rn.Failure != nil:
		cmd.Printf("Run %s failed (%s): %s\n", rn.ID, rn.Failure.Kind, rn.Failure.Reason)
	case rn.Status == run.StatusAborted:
		cmd.Printf("Run %s aborted.\n", rn.ID)
	default:
		cmd.Printf("Run %s is %s at stage %s.\n", rn.ID, rn.Status, rn.Stage)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}
