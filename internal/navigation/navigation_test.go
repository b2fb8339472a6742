package navigation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/credstore"
	"github.com/fisherman-publications/fisherman/internal/log"
	"github.com/fisherman-publications/fisherman/internal/session"
)

var (
	regular      = &api.User{ID: 1, Name: "Alice", Profile: api.Profile{Role: api.RoleUser}}
	collaborator = &api.User{ID: 2, Name: "Carol", Profile: api.Profile{Role: api.RoleCollaborator}}
)

// recorder is a Navigator that remembers every replace
type recorder struct {
	mu     sync.Mutex
	routes []Route
}

func (r *recorder) Replace(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *recorder) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.routes...)
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		in   string
		want Route
	}{
		{"", RouteLogin},
		{"/", RouteLogin},
		{"home", RouteHome},
		{"/home/", RouteHome},
		{"collab/home", RouteCollabHome},
		{"/reset-password?token=abc&email=a@b.c", RouteResetPassword},
		{" /forum#latest ", RouteForum},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRoute(tt.in))
		})
	}
}

func TestRouteGroup(t *testing.T) {
	for _, r := range []Route{RouteLogin, RouteForgotPassword, RouteResetPassword} {
		assert.Equal(t, GroupAuth, r.Group(), r)
	}
	for _, r := range []Route{RouteHome, RouteProfile, RouteCollabHome, RouteCollabUsers, Route("/unknown")} {
		assert.Equal(t, GroupApp, r.Group(), r)
	}
	assert.Equal(t, "auth", GroupAuth.String())
	assert.Equal(t, "app", GroupApp.String())
}

func TestRouteKnown(t *testing.T) {
	assert.True(t, RouteCollabReviewContent.Known())
	assert.False(t, Route("/admin").Known())
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		snap    session.Snapshot
		current Route
		want    Route
		ok      bool
	}{
		{
			name:    "loading does nothing",
			snap:    session.Snapshot{Loading: true},
			current: RouteHome,
		},
		{
			name:    "logged out on app route goes to login",
			snap:    session.Snapshot{},
			current: RouteHome,
			want:    RouteLogin,
			ok:      true,
		},
		{
			name:    "logged out on collab route goes to login",
			snap:    session.Snapshot{},
			current: RouteCollabUsers,
			want:    RouteLogin,
			ok:      true,
		},
		{
			name:    "logged out on login stays",
			snap:    session.Snapshot{},
			current: RouteLogin,
		},
		{
			name:    "logged out on forgot password stays",
			snap:    session.Snapshot{},
			current: RouteForgotPassword,
		},
		{
			name:    "user on login goes home",
			snap:    session.Snapshot{User: regular},
			current: RouteLogin,
			want:    RouteHome,
			ok:      true,
		},
		{
			name:    "collaborator on login goes to collab home",
			snap:    session.Snapshot{User: collaborator},
			current: RouteLogin,
			want:    RouteCollabHome,
			ok:      true,
		},
		{
			name:    "collaborator on reset password goes to collab home",
			snap:    session.Snapshot{User: collaborator},
			current: RouteResetPassword,
			want:    RouteCollabHome,
			ok:      true,
		},
		{
			name:    "user on app route stays",
			snap:    session.Snapshot{User: regular},
			current: RouteProfile,
		},
		{
			name:    "loading with user on login waits",
			snap:    session.Snapshot{User: regular, Loading: true},
			current: RouteLogin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decide(tt.snap, tt.current)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGuard_ExactlyOneRedirect(t *testing.T) {
	tests := []struct {
		name    string
		snap    session.Snapshot
		current Route
		want    Route
	}{
		{"logged out", session.Snapshot{}, RouteHome, RouteLogin},
		{"collaborator", session.Snapshot{User: collaborator}, RouteLogin, RouteCollabHome},
		{"user", session.Snapshot{User: regular}, RouteLogin, RouteHome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := &recorder{}
			guard := NewGuard(nav, WithGuardLogger(log.Discard()))

			guard.Reconcile(tt.snap, tt.current)
			guard.Reconcile(tt.snap, tt.current)

			assert.Equal(t, []Route{tt.want}, nav.Routes())
		})
	}
}

func TestGuard_RedirectsAgainAfterStateChanges(t *testing.T) {
	nav := &recorder{}
	guard := NewGuard(nav, WithGuardLogger(log.Discard()))

	guard.Reconcile(session.Snapshot{}, RouteHome)
	// Navigation landed on login and the user logged in.
	guard.Reconcile(session.Snapshot{User: regular}, RouteLogin)
	// Logged out again from home.
	guard.Reconcile(session.Snapshot{}, RouteHome)

	assert.Equal(t, []Route{RouteLogin, RouteHome, RouteLogin}, nav.Routes())
}

func TestGuard_ConsistentStateResetsPending(t *testing.T) {
	nav := &recorder{}
	guard := NewGuard(nav, WithGuardLogger(log.Discard()))

	guard.Reconcile(session.Snapshot{}, RouteHome)
	guard.Reconcile(session.Snapshot{}, RouteLogin)
	guard.Reconcile(session.Snapshot{}, RouteHome)

	assert.Equal(t, []Route{RouteLogin, RouteLogin}, nav.Routes())
}

func TestCanAccess(t *testing.T) {
	assert.True(t, CanAccess(nil, RouteLogin))
	assert.True(t, CanAccess(nil, RouteForgotPassword))
	assert.False(t, CanAccess(nil, RouteHome))

	assert.True(t, CanAccess(regular, RouteProfile))
	assert.False(t, CanAccess(regular, RouteCollabUsers))
	assert.False(t, CanAccess(regular, RouteCollabDashboard))

	assert.True(t, CanAccess(collaborator, RouteCollabUsers))
	assert.True(t, CanAccess(collaborator, RouteHome))
}

func TestHome(t *testing.T) {
	assert.Equal(t, RouteHome, Home(regular))
	assert.Equal(t, RouteCollabHome, Home(collaborator))
}

// fakeAuth logs anyone in and serves the scripted user for /users/me
type fakeAuth struct {
	user api.User
}

func (f *fakeAuth) Login(context.Context, string, string) (*api.AuthResponse, error) {
	return &api.AuthResponse{Token: "abc", User: f.user}, nil
}

func (f *fakeAuth) LoginWithGoogle(context.Context, string) (*api.AuthResponse, error) {
	return &api.AuthResponse{Token: "abc", User: f.user}, nil
}

func (f *fakeAuth) CurrentUser(context.Context) (*api.User, error) {
	u := f.user
	return &u, nil
}

func TestWatch_ExampleScenario(t *testing.T) {
	ctx := context.Background()
	storage := credstore.NewMemoryStore()
	require.NoError(t, storage.Set(ctx, credstore.KeyAuthToken, "abc"))
	require.NoError(t, storage.Set(ctx, credstore.KeyUserData, `{"id":1,"name":"Alice","profile":{"role":"user"}}`))

	store := session.New(&fakeAuth{user: *regular}, storage, session.WithLogger(log.Discard()))

	current := RouteLogin
	var mu sync.Mutex
	nav := &recorder{}
	guard := NewGuard(NavigatorFunc(func(r Route) {
		nav.Replace(r)
		mu.Lock()
		current = r
		mu.Unlock()
	}), WithGuardLogger(log.Discard()))

	stop := guard.Watch(store, func() Route {
		mu.Lock()
		defer mu.Unlock()
		return current
	})
	defer stop()

	// Loading at startup: no redirect yet.
	assert.Empty(t, nav.Routes())

	store.ReloadUser(ctx)

	assert.Equal(t, "Alice", store.User().Name)
	assert.False(t, store.Loading())
	assert.Equal(t, []Route{RouteHome}, nav.Routes())

	store.Logout(ctx)
	assert.Equal(t, []Route{RouteHome, RouteLogin}, nav.Routes())
}

func TestWatch_CollaboratorLogin(t *testing.T) {
	ctx := context.Background()
	store := session.New(&fakeAuth{user: *collaborator}, credstore.NewMemoryStore(), session.WithLogger(log.Discard()))
	store.ReloadUser(ctx)

	current := RouteLogin
	nav := &recorder{}
	guard := NewGuard(NavigatorFunc(func(r Route) {
		nav.Replace(r)
		current = r
	}), WithGuardLogger(log.Discard()))
	stop := guard.Watch(store, func() Route { return current })
	defer stop()

	require.True(t, store.Login(ctx, "carol@example.com", "secret").Success)
	assert.Equal(t, []Route{RouteCollabHome}, nav.Routes())
}
