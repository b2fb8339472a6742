package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/tui"
)

func newPasswordCmd(cc *CommandContext) *cobra.Command {
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
		Long: `Recover a forgotten password. 'forgot' emails a reset link; 'reset' sets
the new password with the token from that link.

Examples:
  fisherman password forgot --email user@example.com
  fisherman password reset --token 9f2c... --email user@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	passwordCmd.AddCommand(newPasswordForgotCmd(cc), newPasswordResetCmd(cc))
	return passwordCmd
}

func newPasswordForgotCmd(cc *CommandContext) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot",
		Short: "Email a password reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				if !cc.Interactive() {
					return usageError("--email")
				}
				var err error
				email, err = cc.Prompter.String(tui.Prompt{Message: "Email", Required: true})
				if err != nil {
					return err
				}
			}

			msg, err := cc.Client.ForgotPassword(cmd.Context(), strings.TrimSpace(email))
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Check your email for a reset link."
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newPasswordResetCmd(cc *CommandContext) *cobra.Command {
	var reset api.PasswordReset

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with a reset token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset.Token == "" || reset.Email == "" {
				return usageError("--token", "--email")
			}

			if reset.Password == "" {
				if !cc.Interactive() {
					return usageError("--password")
				}
				var err error
				if reset.Password, err = cc.Prompter.String(tui.Prompt{Message: "New password", Password: true, Required: true}); err != nil {
					return err
				}
				if reset.PasswordConfirmation, err = cc.Prompter.String(tui.Prompt{Message: "Confirm password", Password: true, Required: true}); err != nil {
					return err
				}
			}
			if reset.PasswordConfirmation == "" {
				reset.PasswordConfirmation = reset.Password
			}

			if err := cc.Client.ResetPassword(cmd.Context(), reset); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password reset. Log in with your new password.")
			return nil
		},
	}

	cmd.Flags().StringVar(&reset.Token, "token", "", "reset token from the email link")
	cmd.Flags().StringVar(&reset.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reset.Password, "password", "", "new password")
	cmd.Flags().StringVar(&reset.PasswordConfirmation, "confirm", "", "new password again (defaults to --password)")
	return cmd
}
