package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fisherman-publications/fisherman/internal/navigation"
)

func newRouteCmd(cc *CommandContext) *cobra.Command {
	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Inspect screen routing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	routeCmd.AddCommand(newRouteCheckCmd(cc))
	return routeCmd
}

func newRouteCheckCmd(cc *CommandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <route>",
		Short: "Show where the app would send you for a route",
		Long: `Restore the stored session, then apply the navigation rules to a route:
signed-out users are sent to the login screen, signed-in users are sent
from the login screens to their home.

Examples:
  fisherman route check /collab/users
  fisherman route check /`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			route := navigation.ParseRoute(args[0])

			cc.Session.ReloadUser(ctx)
			snap := cc.Session.Snapshot()

			decision := "stay"
			if target, ok := navigation.Decide(snap, route); ok {
				decision = "redirect to " + target.String()
			}

			access := "allowed"
			if !navigation.CanAccess(snap.User, route) {
				access = "collaborator role required"
				if snap.User == nil {
					access = "login required"
				}
			}

			known := "yes"
			if !route.Known() {
				known = "no"
			}

			sess := snap.State.String()
			if snap.User != nil {
				sess = fmt.Sprintf("%s as %s (%s)", sess, snap.User.Name, snap.User.Profile.Role)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Route:\t%s\n", route)
			fmt.Fprintf(w, "Group:\t%s\n", route.Group())
			fmt.Fprintf(w, "Known:\t%s\n", known)
			fmt.Fprintf(w, "Session:\t%s\n", sess)
			fmt.Fprintf(w, "Decision:\t%s\n", decision)
			fmt.Fprintf(w, "Access:\t%s\n", access)
			return w.Flush()
		},
	}
}
