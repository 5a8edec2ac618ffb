package cli

import (
	"context"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentfoundry/agentfactory/internal/infrastructure/di"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [run-id|slug]",
		Short: "Show run status; without an argument, list all runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				if len(args) == 0 {
					return listRuns(ctx, cmd, c)
				}
				return showRun(ctx, cmd, c, args[0])
			})
		},
	}
}

func listRuns(ctx context.Context, cmd *cobra.Command, c *di.Container) error {
	runs, err := c.Orchestrator().List(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("No runs yet. Start one with 'agentfactory start <goal>'.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	w.Write([]byte("ID\tSLUG\tMODE\tSTAGE\tSTATUS\tCREATED\n"))
	for _, rn := range runs {
		w.Write([]byte(rn.ID + "\t" + rn.Slug + "\t" + rn.Mode.String() + "\t" +
			rn.Stage.String() + "\t" + rn.Status.String() + "\t" +
			rn.CreatedAt.Local().Format(time.RFC3339) + "\n"))
	}
	w.Flush()

	cap := c.ModelGateway().Capability()
	cmd.Printf("\nModel backend: %s (models: %s)\n", cap.Backend, strings.Join(cap.Models, ", "))
	return nil
}

func showRun(ctx context.Context, cmd *cobra.Command, c *di.Container, ref string) error {
	report, err := c.Orchestrator().GetStatus(ctx, ref)
	if err != nil {
		return err
	}

	rn := report.Run
	cmd.Printf("Run:        %s\n", rn.ID)
	cmd.Printf("Goal:       %s\n", rn.Goal)
	cmd.Printf("Workspace:  %s\n", rn.Slug)
	cmd.Printf("Mode:       %s\n", rn.Mode)
	cmd.Printf("Stage:      %s\n", rn.Stage)
	cmd.Printf("Status:     %s\n", rn.Status)
	cmd.Printf("API calls:  %d\n", rn.APICalls)
	if rn.RearchitectAttempts > 0 {
		cmd.Printf("Rejections: %d\n", rn.RearchitectAttempts)
	}
	if rn.Failure != nil {
		cmd.Printf("Failure:    %s (%s)\n", rn.Failure.Kind, rn.Failure.Reason)
	}
	if rn.CompletedAt != nil {
		cmd.Printf("Completed:  %s\n", rn.CompletedAt.Local().Format(time.RFC3339))
	}

	if report.Blueprint != nil {
		cmd.Printf("\nBlueprint agents (%d):\n", len(report.Blueprint.Agents))
		for _, a := range report.Blueprint.Agents {
			cmd.Printf("  - %s: %s\n", a.Name, a.Goal)
		}
	}
	if report.Iterations > 0 {
		cmd.Printf("\nReview iterations recorded: %d\n", report.Iterations)
	}
	if len(report.Artifacts) > 0 {
		cmd.Printf("\nArtifacts:\n")
		for _, art := range report.Artifacts {
			cmd.Printf("  - %s (%s, %d bytes)\n", art.Name, art.Type, art.Size)
		}
	}
	return nil
}
