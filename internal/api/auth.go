package api

import (
	"context"
	"fmt"
	"net/http"
)

var (
	endpointLogin       = endpoint{http.MethodPost, "/auth/login"}
	endpointGoogleLogin = endpoint{http.MethodPost, "/auth/google"}
	endpointCurrentUser = endpoint{http.MethodGet, "/users/me"}
	endpointLogout      = endpoint{http.MethodPost, "/logout"}
)

// Login authenticates with email and password.
// The request is always sent without a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := LoginRequest{
		Email:    email,
		Password: password,
	}

	var resp AuthResponse
	if err := c.do(WithToken(ctx, ""), endpointLogin, endpointLogin.route, req, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, malformed(endpointLogin.route, fmt.Errorf("response has no token"))
	}

	return &resp, nil
}

// LoginWithGoogle exchanges a Google ID token for a platform session
func (c *Client) LoginWithGoogle(ctx context.Context, idToken string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(WithToken(ctx, ""), endpointGoogleLogin, endpointGoogleLogin.route, GoogleLoginRequest{Token: idToken}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, malformed(endpointGoogleLogin.route, fmt.Errorf("response has no token"))
	}

	return &resp, nil
}

// CurrentUser retrieves the currently authenticated user
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var env userEnvelope
	if err := c.do(ctx, endpointCurrentUser, endpointCurrentUser.route, nil, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, malformed(endpointCurrentUser.route, fmt.Errorf("response has no user"))
	}

	return env.User, nil
}

// Logout tells the server to invalidate the current token
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, endpointLogout, endpointLogout.route, struct{}{}, nil)
}
