package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/apitest"
)

func TestNewValidator(t *testing.T) {
	v, err := api.NewValidator()
	require.NoError(t, err)

	routes := v.Routes()
	assert.Contains(t, routes, "POST /auth/login")
	assert.Contains(t, routes, "POST /auth/google")
	assert.Contains(t, routes, "GET /users/me")
	assert.Contains(t, routes, "PUT /profile")
	assert.Contains(t, routes, "POST /topics/{id}/comments")
}

func TestValidator_Validate(t *testing.T) {
	v, err := api.NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		route   string
		status  int
		body    string
		wantErr bool
	}{
		{
			name:   "valid user envelope",
			method: http.MethodGet, route: "/users/me", status: http.StatusOK,
			body: `{"user":{"id":1,"name":"Alice","profile":{"role":"user"}}}`,
		},
		{
			name:   "unknown role",
			method: http.MethodGet, route: "/users/me", status: http.StatusOK,
			body:    `{"user":{"id":1,"name":"Alice","profile":{"role":"admin"}}}`,
			wantErr: true,
		},
		{
			name:   "missing user",
			method: http.MethodGet, route: "/users/me", status: http.StatusOK,
			body:    `{"data":{}}`,
			wantErr: true,
		},
		{
			name:   "empty token",
			method: http.MethodPost, route: "/auth/login", status: http.StatusOK,
			body:    `{"token":"","user":{"id":1,"name":"Alice","profile":{"role":"user"}}}`,
			wantErr: true,
		},
		{
			name:   "undocumented route passes",
			method: http.MethodGet, route: "/not-documented", status: http.StatusOK,
			body: `{"anything":true}`,
		},
		{
			name:   "status without schema passes",
			method: http.MethodPost, route: "/logout", status: http.StatusOK,
			body: `{"message":"Logged out"}`,
		},
		{
			name:   "not json",
			method: http.MethodGet, route: "/users/me", status: http.StatusOK,
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.method, tt.route, tt.status, []byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, api.ErrMalformedResponse)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClientWithValidator(t *testing.T) {
	srv := apitest.NewServer(t)
	seed(srv)

	v, err := api.NewValidator()
	require.NoError(t, err)
	c := newClient(srv, api.WithValidator(v))

	_, err = c.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)

	srv.Fail(http.MethodPost, "/auth/login", http.StatusOK, `{"token":"t","user":{"id":1,"name":"Alice","profile":{"role":"superuser"}}}`)
	_, err = c.Login(context.Background(), "alice@example.com", "secret")
	assert.ErrorIs(t, err, api.ErrMalformedResponse)
}
