package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/fisherman-publications/fisherman/internal/errors"
)

func tokenServer(t *testing.T, response map[string]interface{}, seen *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if seen != nil {
			*seen = r.PostForm
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testExchanger(t *testing.T, srv *httptest.Server) *Exchanger {
	t.Helper()
	e, err := NewExchanger(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return e
}

func TestNewExchanger_RequiresClientID(t *testing.T) {
	_, err := NewExchanger(Config{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestNewExchanger_Defaults(t *testing.T) {
	e, err := NewExchanger(Config{ClientID: "id"})
	require.NoError(t, err)

	assert.Equal(t, DefaultScopes, e.config.Scopes)
	assert.Equal(t, OutOfBandRedirect, e.config.RedirectURL)
	assert.Contains(t, e.config.Endpoint.AuthURL, "accounts.google.com")
}

func TestAuthCodeURL(t *testing.T) {
	e, err := NewExchanger(Config{ClientID: "client-id"})
	require.NoError(t, err)

	raw := e.AuthCodeURL("state-123")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Contains(t, q.Get("scope"), "openid")
}

func TestIDToken(t *testing.T) {
	var form url.Values
	srv := tokenServer(t, map[string]interface{}{
		"access_token": "access",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     "google-id-token",
	}, &form)
	e := testExchanger(t, srv)

	e.AuthCodeURL("state")
	idToken, err := e.IDToken(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "google-id-token", idToken)
	assert.Equal(t, "auth-code", form.Get("code"))
	assert.NotEmpty(t, form.Get("code_verifier"))
}

func TestIDToken_WithoutPriorAuthCodeURL(t *testing.T) {
	var form url.Values
	srv := tokenServer(t, map[string]interface{}{
		"access_token": "access",
		"token_type":   "Bearer",
		"id_token":     "google-id-token",
	}, &form)
	e := testExchanger(t, srv)

	idToken, err := e.IDToken(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "google-id-token", idToken)
	assert.Empty(t, form.Get("code_verifier"))
}

func TestIDToken_MissingIDToken(t *testing.T) {
	srv := tokenServer(t, map[string]interface{}{
		"access_token": "access",
		"token_type":   "Bearer",
	}, nil)
	e := testExchanger(t, srv)

	_, err := e.IDToken(context.Background(), "auth-code")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeGoogleExchange))
}

func TestIDToken_EmptyCode(t *testing.T) {
	e, err := NewExchanger(Config{ClientID: "id"})
	require.NoError(t, err)

	_, err = e.IDToken(context.Background(), "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeGoogleExchange))
}

func TestIDToken_ServerRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()
	e := testExchanger(t, srv)

	_, err := e.IDToken(context.Background(), "used-code")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeGoogleExchange))
}
