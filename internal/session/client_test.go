package session

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/apitest"
	"github.com/fisherman-publications/fisherman/internal/credstore"
	"github.com/fisherman-publications/fisherman/internal/log"
)

// wire builds a store and client that reference each other the way cmd does
func wire(t *testing.T, srv *apitest.Server) (*Store, *api.Client, *credstore.MemoryStore) {
	t.Helper()

	client := api.NewClient(srv.URL(), api.WithLogger(log.Discard()))
	storage := credstore.NewMemoryStore()
	store := New(client, storage, WithLogger(log.Discard()))
	client.SetTokenSource(store)
	client.SetUnauthorizedHandler(store.HandleUnauthorized)

	return store, client, storage
}

func TestSessionAgainstBackend(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	srv.AddUser(api.User{ID: 1, Name: "Alice", Email: "alice@example.com"}, "secret")

	store, client, storage := wire(t, srv)
	store.ReloadUser(ctx)
	require.Equal(t, StateUnauthenticated, store.State())

	result := store.Login(ctx, "alice@example.com", "secret")
	require.True(t, result.Success, result.Message)

	token := store.Token(ctx)
	require.NotEmpty(t, token)
	assert.Equal(t, token, storedToken(t, storage))

	// Requests made through the client carry the session token.
	user, err := client.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)

	var me apitest.Request
	for _, r := range srv.Requests() {
		if r.Path == "/users/me" {
			me = r
		}
	}
	assert.Equal(t, "Bearer "+token, me.Authorization)

	// The login request itself is unauthenticated.
	for _, r := range srv.Requests() {
		if r.Path == "/auth/login" {
			assert.Empty(t, r.Authorization)
		}
	}
}

func TestSessionRestoredAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	srv.AddUser(api.User{ID: 1, Name: "Alice", Email: "alice@example.com"}, "secret")

	first, _, storage := wire(t, srv)
	first.ReloadUser(ctx)
	require.True(t, first.Login(ctx, "alice@example.com", "secret").Success)

	client := api.NewClient(srv.URL(), api.WithLogger(log.Discard()))
	second := New(client, storage, WithLogger(log.Discard()))
	client.SetTokenSource(second)
	client.SetUnauthorizedHandler(second.HandleUnauthorized)

	second.ReloadUser(ctx)
	assert.Equal(t, StateAuthenticated, second.State())
	assert.Equal(t, first.Token(ctx), second.Token(ctx))
	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/users/me"))
}

func TestUnauthorizedResponseDropsSession(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	srv.AddUser(api.User{ID: 1, Name: "Alice", Email: "alice@example.com"}, "secret")

	store, client, storage := wire(t, srv)
	store.ReloadUser(ctx)
	require.True(t, store.Login(ctx, "alice@example.com", "secret").Success)

	srv.RevokeToken(store.Token(ctx))

	_, err := client.Profile(ctx)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))

	assert.Equal(t, StateUnauthenticated, store.State())
	assert.Empty(t, store.Token(ctx))
	assert.Equal(t, 0, storage.Len())
}

func TestUnauthorizedForOldTokenIsIgnored(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	srv.AddUser(api.User{ID: 1, Name: "Alice", Email: "alice@example.com"}, "secret")
	stale := srv.IssueToken("alice@example.com")
	srv.RevokeToken(stale)

	store, client, _ := wire(t, srv)
	store.ReloadUser(ctx)
	require.True(t, store.Login(ctx, "alice@example.com", "secret").Success)

	_, err := client.CurrentUser(api.WithToken(ctx, stale))
	require.Error(t, err)

	assert.Equal(t, StateAuthenticated, store.State())
}

func TestReloadAgainstBackend_ServerDown(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	srv.AddUser(api.User{ID: 1, Name: "Alice", Email: "alice@example.com"}, "secret")
	token := srv.IssueToken("alice@example.com")

	store, _, storage := wire(t, srv)
	require.NoError(t, credstore.SaveToken(ctx, storage, token))
	srv.Close()

	store.ReloadUser(ctx)

	assert.Nil(t, store.User())
	assert.Equal(t, token, storedToken(t, storage))
}

func TestGoogleLoginAgainstBackend(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	srv.AddUser(api.User{ID: 7, Name: "Carol", Email: "carol@example.com", Profile: api.Profile{Role: api.RoleCollaborator}}, "x")
	srv.AddGoogleIDToken("google-id", "carol@example.com")

	store, _, _ := wire(t, srv)
	store.ReloadUser(ctx)

	result := store.LoginWithGoogleToken(ctx, "google-id")
	require.True(t, result.Success, result.Message)
	assert.True(t, store.User().IsCollaborator())

	store.Logout(ctx)
	result = store.LoginWithGoogleToken(ctx, "unknown")
	assert.False(t, result.Success)
	assert.True(t, strings.Contains(result.Message, "Invalid Google token"))
}

func TestReloadUser_CorruptCredentialFileIsCleared(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, path string)
	}{
		{
			name: "wrong passphrase",
			setup: func(t *testing.T, path string) {
				other := credstore.NewFileStore(path, "another-passphrase")
				require.NoError(t, credstore.SaveToken(context.Background(), other, "abc"))
				require.NoError(t, credstore.SaveUser(context.Background(), other, &api.User{ID: 1, Name: "Alice"}))
			},
		},
		{
			name: "not json",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
			},
		},
		{
			name: "bad salt",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"salt":"!!","entries":{}}`), 0o600))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			srv := apitest.NewServer(t)
			path := filepath.Join(t.TempDir(), "credentials.json")
			tt.setup(t, path)

			client := api.NewClient(srv.URL(), api.WithLogger(log.Discard()))
			store := New(client, credstore.NewFileStore(path, "passphrase"), WithLogger(log.Discard()))
			client.SetTokenSource(store)

			store.ReloadUser(ctx)

			assert.Nil(t, store.User())
			assert.Equal(t, StateUnauthenticated, store.State())
			assert.Zero(t, srv.Hits(http.MethodGet, "/users/me"))

			_, err := os.Stat(path)
			assert.True(t, os.IsNotExist(err), "corrupt credential file should be removed")
		})
	}
}
