package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/credstore"
	"github.com/fisherman-publications/fisherman/internal/session"
	"github.com/fisherman-publications/fisherman/internal/tui"
)

// logoutTimeout bounds the best-effort server logout
const logoutTimeout = 5 * time.Second

func newAuthCmd(cc *CommandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage your session",
		Long: `Manage your Fisherman Publications session.

The session token is kept in an encrypted credential file so later commands
and the terminal app start signed in.

Subcommands:
  login   Sign in with email and password
  google  Sign in with a Google account
  logout  Sign out and remove the stored session
  status  Show the current session

Examples:
  fisherman auth login --email user@example.com
  fisherman auth google --code 4/0Ab...
  fisherman auth status
  fisherman auth logout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	authCmd.AddCommand(
		newAuthLoginCmd(cc),
		newAuthGoogleCmd(cc),
		newAuthLogoutCmd(cc),
		newAuthStatusCmd(cc),
	)
	return authCmd
}

func newAuthLoginCmd(cc *CommandContext) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in with your email and password. Missing values are prompted for
when running in a terminal.

Examples:
  fisherman auth login --email user@example.com --password secret
  fisherman auth login`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				if !cc.Interactive() {
					return usageError("--email", "--password")
				}
				creds, err := cc.Prompter.Credentials(email)
				if err != nil {
					return err
				}
				email, password = creds.Email, creds.Password
			}

			result := cc.Session.Login(cmd.Context(), email, password)
			if !result.Success {
				return cc.loginError(result, false)
			}
			return printSignedIn(cmd, cc.Session.User())
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newAuthGoogleCmd(cc *CommandContext) *cobra.Command {
	var idToken, code string

	cmd := &cobra.Command{
		Use:   "google",
		Short: "Sign in with a Google account",
		Long: `Sign in with a Google account. Pass an ID token directly, or an
authorization code to exchange with Google. In a terminal, without either
flag, the consent URL is printed and the code is prompted for.

Google sign-in needs google.client_id in the config file or
FISHERMAN_GOOGLE_CLIENT_ID when exchanging codes.

Examples:
  fisherman auth google --id-token eyJhbGciOi...
  fisherman auth google --code 4/0Ab...
  fisherman auth google`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if idToken == "" {
				token, err := cc.googleIDToken(cmd, code)
				if err != nil {
					return err
				}
				idToken = token
			}

			result := cc.Session.LoginWithGoogleToken(ctx, idToken)
			if !result.Success {
				return cc.loginError(result, true)
			}
			return printSignedIn(cmd, cc.Session.User())
		},
	}

	cmd.Flags().StringVar(&idToken, "id-token", "", "Google ID token")
	cmd.Flags().StringVar(&code, "code", "", "Google authorization code")
	cmd.MarkFlagsMutuallyExclusive("id-token", "code")
	return cmd
}

// googleIDToken exchanges code, prompting for one first when it is empty
func (cc *CommandContext) googleIDToken(cmd *cobra.Command, code string) (string, error) {
	if code == "" && !cc.Interactive() {
		return "", usageError("--id-token or --code")
	}

	ex, err := cc.NewExchanger(cc.Config.Google)
	if err != nil {
		return "", err
	}

	if code == "" {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Open this URL in your browser and sign in:")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  %s\n\n", ex.AuthCodeURL(uuid.NewString()))

		code, err = cc.Prompter.String(tui.Prompt{
			Message:     "Authorization code",
			Placeholder: "paste the code shown after signing in",
			Required:    true,
		})
		if err != nil {
			return "", err
		}
	}

	return ex.IDToken(cmd.Context(), code)
}

func newAuthLogoutCmd(cc *CommandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored session",
		Long: `Sign out. The server is told first when it can be reached; the stored
session is removed either way.

Examples:
  fisherman auth logout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			token, err := credstore.LoadToken(ctx, cc.Storage)
			if err != nil && !credstore.IsCorrupt(err) {
				return err
			}

			if token != "" {
				notifyCtx, cancel := context.WithTimeout(api.WithToken(ctx, token), logoutTimeout)
				if err := cc.Client.Logout(notifyCtx); err != nil {
					cc.Logger.WithError(err).Debug("server logout failed")
				}
				cancel()
			}

			cc.Session.Logout(ctx)

			if token == "" {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}
			fmt.Fprintln(out, "Logged out.")
			return nil
		},
	}
}

// statusOutput is the --json form of auth status
type statusOutput struct {
	Authenticated  bool       `json:"authenticated"`
	User           *api.User  `json:"user,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

func newAuthStatusCmd(cc *CommandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Long: `Restore the stored session and show who is signed in. Exits with the
authentication exit code when nobody is.

Examples:
  fisherman auth status
  fisherman auth status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			user, err := cc.requireUser(ctx)

			status := statusOutput{Authenticated: user != nil, User: user}
			if exp, ok := session.TokenExpiry(cc.Session.Token(ctx)); ok {
				status.TokenExpiresAt = &exp
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(status); encErr != nil {
					return fmt.Errorf("failed to encode status: %w", encErr)
				}
				return err
			}

			if err != nil {
				fmt.Fprintln(out, "Not logged in.")
				return err
			}

			fmt.Fprintf(out, "Logged in as %s <%s>\n", user.Name, user.Email)
			fmt.Fprintf(out, "Role:    %s\n", user.Profile.Role)
			if status.TokenExpiresAt != nil {
				fmt.Fprintf(out, "Expires: %s\n", status.TokenExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output the session as JSON")
	return cmd
}

func printSignedIn(cmd *cobra.Command, user *api.User) error {
	if user == nil {
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Name, user.Profile.Role)
	return nil
}
