// Package google obtains Google ID tokens through the OAuth2 authorization
// code flow. The ID token is exchanged for a platform session by the session
// store; it is verified by the backend, not here.
package google

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/fisherman-publications/fisherman/internal/errors"
)

// OutOfBandRedirect is used when no redirect URL is configured; the user
// pastes the code shown by Google back into the terminal.
const OutOfBandRedirect = "http://localhost"

// DefaultScopes are requested when none are configured
var DefaultScopes = []string{"openid", "email", "profile"}

// Config holds the OAuth2 client settings
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides Google's endpoint. Zero means Google.
	Endpoint oauth2.Endpoint
}

// Exchanger runs the authorization code flow with PKCE
type Exchanger struct {
	config     *oauth2.Config
	httpClient *http.Client

	mu       sync.Mutex
	verifier string
}

// Option configures an Exchanger
type Option func(*Exchanger)

// WithHTTPClient sets the client used for the token request
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Exchanger) {
		e.httpClient = hc
	}
}

// NewExchanger validates cfg and creates an Exchanger
func NewExchanger(cfg Config, opts ...Option) (*Exchanger, error) {
	if cfg.ClientID == "" {
		return nil, errors.NewConfigInvalidError("google.client_id is required for Google sign-in").
			WithSuggestion("Set FISHERMAN_GOOGLE_CLIENT_ID or google.client_id in the config file")
	}

	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = googleoauth.Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	redirect := cfg.RedirectURL
	if redirect == "" {
		redirect = OutOfBandRedirect
	}

	e := &Exchanger{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirect,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// AuthCodeURL returns the consent page URL. It starts a PKCE exchange that
// the next IDToken call completes.
func (e *Exchanger) AuthCodeURL(state string) string {
	verifier := oauth2.GenerateVerifier()

	e.mu.Lock()
	e.verifier = verifier
	e.mu.Unlock()

	return e.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// IDToken exchanges an authorization code for Google's id_token
func (e *Exchanger) IDToken(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", errors.New(errors.ErrCodeGoogleExchange, "authorization code is required")
	}

	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}

	e.mu.Lock()
	verifier := e.verifier
	e.verifier = ""
	e.mu.Unlock()

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := e.config.Exchange(ctx, code, opts...)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGoogleExchange, "failed to exchange authorization code", err).
			WithSuggestion("Authorization codes are single-use; run 'fisherman auth google' again")
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", errors.New(errors.ErrCodeGoogleExchange, "no id_token in token response").
			WithSuggestion("Make sure the 'openid' scope is requested")
	}

	return idToken, nil
}
