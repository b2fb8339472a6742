package api

import (
	"context"
	"fmt"
	"net/http"
)

var (
	endpointProfile        = endpoint{http.MethodGet, "/profile"}
	endpointUpdateProfile  = endpoint{http.MethodPut, "/profile"}
	endpointForgotPassword = endpoint{http.MethodPost, "/forgot-password"}
	endpointResetPassword  = endpoint{http.MethodPost, "/reset-password"}
	endpointListUsers      = endpoint{http.MethodGet, "/users"}
)

// Profile fetches the current user's profile
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var env userEnvelope
	if err := c.do(ctx, endpointProfile, endpointProfile.route, nil, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, malformed(endpointProfile.route, fmt.Errorf("response has no user"))
	}
	return env.User, nil
}

// UpdateProfile saves profile fields and returns the updated user
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var env userEnvelope
	if err := c.do(ctx, endpointUpdateProfile, endpointUpdateProfile.route, update, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, malformed(endpointUpdateProfile.route, fmt.Errorf("response has no user"))
	}
	return env.User, nil
}

// ForgotPassword requests a reset link and returns the server's message
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var env messageEnvelope
	body := map[string]string{"email": email}
	if err := c.do(WithToken(ctx, ""), endpointForgotPassword, endpointForgotPassword.route, body, &env); err != nil {
		return "", err
	}
	return env.Message, nil
}

// ResetPassword sets a new password using a reset token
func (c *Client) ResetPassword(ctx context.Context, reset PasswordReset) error {
	return c.do(WithToken(ctx, ""), endpointResetPassword, endpointResetPassword.route, reset, nil)
}

// ListUsers returns every user. The backend restricts it to collaborators.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var env usersEnvelope
	if err := c.do(ctx, endpointListUsers, endpointListUsers.route, nil, &env); err != nil {
		return nil, err
	}
	return env.Users, nil
}

// SplitByRole partitions users into ordinary users and collaborators
func SplitByRole(users []User) (regular, collaborators []User) {
	for _, u := range users {
		switch u.Profile.Role {
		case RoleCollaborator:
			collaborators = append(collaborators, u)
		case RoleUser:
			regular = append(regular, u)
		}
	}
	return regular, collaborators
}
