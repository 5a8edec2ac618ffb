// Package cli exposes the pipeline over a cobra command tree:
// start, approve, reject, abort, and status.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentfoundry/agentfactory/internal/app"
	"github.com/agentfoundry/agentfactory/internal/app/config"
	"github.com/agentfoundry/agentfactory/internal/buildinfo"
	infraConfig "github.com/agentfoundry/agentfactory/internal/infra/config"
	"github.com/agentfoundry/agentfactory/internal/infrastructure/di"
)

// globalConfig holds the loaded configuration for all commands
var globalConfig config.Config

// NewRoot builds the CLI command tree
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentfactory",
		Short:         "Turn a goal into a validated multi-agent workflow",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Priority: setting.json > ENV > defaults
			baseDir := config.DefaultHome
			if home := os.Getenv("AF_HOME"); home != "" {
				baseDir = home
			}

			cfg, err := infraConfig.LoadSettings(baseDir)
			if err != nil {
				return err
			}
			globalConfig = cfg

			app.SetLogger(NewStderrLogger(cfg.StderrLevel()))
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newApproveCmd())
	cmd.AddCommand(newRejectCmd())
	cmd.AddCommand(newAbortCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}

// withContainer runs fn with a wired dependency container
func withContainer(ctx context.Context, fn func(ctx context.Context, c *di.Container) error) error {
	return withContainerUsing(ctx, globalConfig, fn)
}

// withContainerUsing wires the container from an explicit configuration,
// letting commands overlay per-run settings on the loaded one
func withContainerUsing(ctx context.Context, cfg config.Config, fn func(ctx context.Context, c *di.Container) error) error {
	c, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}
