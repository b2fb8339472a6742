package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/errors"
	"github.com/fisherman-publications/fisherman/internal/navigation"
)

func newUsersCmd(cc *CommandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Browse platform users (collaborators only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	usersCmd.AddCommand(newUsersListCmd(cc))
	return usersCmd
}

func newUsersListCmd(cc *CommandContext) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users grouped by role",
		Long: `List platform users, collaborators first.

Examples:
  fisherman users list
  fisherman users list --role collaborator`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := api.Role(role)
			if role != "" && !filter.Valid() {
				return errors.NewUsageError(fmt.Sprintf("unknown role %q", role)).
					WithSuggestion("Use --role user or --role collaborator")
			}

			user, err := cc.requireUser(ctx)
			if err != nil {
				return err
			}
			if !navigation.CanAccess(user, navigation.RouteCollabUsers) {
				return errors.NewNotAuthorizedError("users")
			}

			users, err := cc.Client.ListUsers(ctx)
			if err != nil {
				return err
			}
			regular, collaborators := api.SplitByRole(users)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEMAIL\tROLE\tPROGRAM\tSECTION")
			for _, group := range [][]api.User{collaborators, regular} {
				for _, u := range group {
					if filter != "" && u.Profile.Role != filter {
						continue
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.Name, u.Email, u.Profile.Role, u.Profile.Program, u.Profile.Section)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "only show users with this role (user, collaborator)")
	return cmd
}
