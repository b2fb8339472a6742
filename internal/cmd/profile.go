package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/errors"
)

func newProfileCmd(cc *CommandContext) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	profileCmd.AddCommand(newProfileShowCmd(cc), newProfileUpdateCmd(cc))
	return profileCmd
}

func newProfileShowCmd(cc *CommandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := cc.requireUser(ctx); err != nil {
				return err
			}

			user, err := cc.Client.Profile(ctx)
			if err != nil {
				return err
			}
			if err := cc.Session.UpdateUser(ctx, user); err != nil {
				cc.Logger.WithError(err).Debug("failed to refresh stored user")
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(user)
			}
			return printProfile(cmd.OutOrStdout(), user)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output the profile as JSON")
	return cmd
}

func newProfileUpdateCmd(cc *CommandContext) *cobra.Command {
	var update api.ProfileUpdate

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update your profile",
		Long: `Update profile fields. Fields without a flag keep their current value.

Examples:
  fisherman profile update --name "Alice B." --section 3A`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("program") &&
				!flags.Changed("section") && !flags.Changed("description") {
				return errors.NewUsageError("nothing to update").
					WithSuggestion("Pass at least one of --name, --program, --section, --description")
			}

			current, err := cc.requireUser(ctx)
			if err != nil {
				return err
			}
			if !flags.Changed("name") {
				update.Name = current.Name
			}
			if !flags.Changed("program") {
				update.Program = current.Profile.Program
			}
			if !flags.Changed("section") {
				update.Section = current.Profile.Section
			}
			if !flags.Changed("description") {
				update.Description = current.Profile.Description
			}

			user, err := cc.Client.UpdateProfile(ctx, update)
			if err != nil {
				return err
			}
			if err := cc.Session.UpdateUser(ctx, user); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Profile updated.")
			return printProfile(cmd.OutOrStdout(), user)
		},
	}

	cmd.Flags().StringVar(&update.Name, "name", "", "display name")
	cmd.Flags().StringVar(&update.Program, "program", "", "academic program")
	cmd.Flags().StringVar(&update.Section, "section", "", "class section")
	cmd.Flags().StringVar(&update.Description, "description", "", "short bio")
	return cmd
}

func printProfile(out io.Writer, user *api.User) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", user.Name)
	fmt.Fprintf(w, "Email:\t%s\n", user.Email)
	fmt.Fprintf(w, "Role:\t%s\n", user.Profile.Role)
	fmt.Fprintf(w, "Program:\t%s\n", user.Profile.Program)
	fmt.Fprintf(w, "Section:\t%s\n", user.Profile.Section)
	fmt.Fprintf(w, "Description:\t%s\n", user.Profile.Description)
	return w.Flush()
}
