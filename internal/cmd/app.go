package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fisherman-publications/fisherman/internal/log"
	"github.com/fisherman-publications/fisherman/internal/navigation"
	"github.com/fisherman-publications/fisherman/internal/tui"
)

func newAppCmd(cc *CommandContext) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "app",
		Short: "Open the terminal app",
		Long: `Open the interactive terminal app. The stored session is restored first;
without one the login screen is shown.

Examples:
  fisherman app
  fisherman app --route /profile`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to the app; diagnostics would corrupt the screen.
			return tui.Run(cmd.Context(), cc.Session, cc.Client,
				tui.WithLogger(log.Discard()),
				tui.WithMetrics(cc.Metrics),
				tui.WithStartRoute(navigation.ParseRoute(start)),
			)
		},
	}

	cmd.Flags().StringVar(&start, "route", navigation.RouteLogin.String(), "screen to open once signed in")
	return cmd
}
