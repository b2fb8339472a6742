package cmd

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/credstore"
	"github.com/fisherman-publications/fisherman/internal/errors"
	"github.com/fisherman-publications/fisherman/internal/session"
)

// loginError turns a failed login Result into a coded error
func (cc *CommandContext) loginError(result session.Result, google bool) error {
	switch {
	case result.Message == session.MsgNetworkFailed:
		return errors.NewNetworkError(cc.Config.APIURL, stderrors.New(result.Message))
	case google:
		return errors.New(errors.ErrCodeInvalidCredentials, result.Message).
			WithSuggestion("Sign in to Google with an account registered on the platform")
	default:
		return errors.NewLoginFailedError(result.Message)
	}
}

// sessionError explains why no user is available after a reload. Reload
// keeps the stored token when the server could not confirm it, so a token
// left in storage means the backend was unreachable.
func (cc *CommandContext) sessionError(ctx context.Context) error {
	token, err := credstore.LoadToken(ctx, cc.Storage)
	if err == nil && token != "" {
		return errors.NewNetworkError(cc.Config.APIURL, stderrors.New("could not verify the stored session")).
			WithSuggestion("Your stored session was kept; try again when the server is reachable")
	}
	return errors.NewNotAuthenticatedError()
}

// usageError reports a missing flag in non-interactive mode
func usageError(flags ...string) error {
	msg := fmt.Sprintf("%s is required", flags[0])
	if len(flags) > 1 {
		msg = fmt.Sprintf("%s are required", joinFlags(flags))
	}
	return errors.NewUsageError(msg).
		WithSuggestion("Pass the flags, or run the command in a terminal to be prompted")
}

func joinFlags(flags []string) string {
	out := flags[0]
	for i, f := range flags[1:] {
		if i == len(flags)-2 {
			out += " and " + f
		} else {
			out += ", " + f
		}
	}
	return out
}

// requireUser restores the stored session and returns its user
func (cc *CommandContext) requireUser(ctx context.Context) (*api.User, error) {
	cc.Session.ReloadUser(ctx)
	if user := cc.Session.User(); user != nil {
		return user, nil
	}
	return nil, cc.sessionError(ctx)
}
