package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree around cc
func NewRootCommand(cc *CommandContext) *cobra.Command {
	root := &cobra.Command{
		Use:   "fisherman",
		Short: "Fisherman Publications client",
		Long: `fisherman is the terminal client for the Fisherman Publications community
platform. It signs you in, keeps your session between runs, and opens the
screens your role may use.

Run 'fisherman app' for the interactive terminal app, or use the
subcommands below from scripts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoSetup] == "true" {
				return nil
			}
			return cc.Setup(cmd)
		},
	}
	cc.bindFlags(root)

	root.AddCommand(
		newAuthCmd(cc),
		newProfileCmd(cc),
		newPasswordCmd(cc),
		newUsersCmd(cc),
		newRouteCmd(cc),
		newAppCmd(cc),
		newDoctorCmd(cc),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, cancelled on interrupt by main
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand(NewCommandContext()).ExecuteContext(ctx)
}
