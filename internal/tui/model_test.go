package tui

import (
	"context"
	"net/http"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/apitest"
	"github.com/fisherman-publications/fisherman/internal/credstore"
	"github.com/fisherman-publications/fisherman/internal/log"
	"github.com/fisherman-publications/fisherman/internal/navigation"
	"github.com/fisherman-publications/fisherman/internal/session"
)

type harness struct {
	srv     *apitest.Server
	store   *session.Store
	client  *api.Client
	storage *credstore.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	srv := apitest.NewServer(t)
	srv.AddUser(api.User{
		Name:    "Alice",
		Email:   "alice@example.com",
		Profile: api.Profile{Role: api.RoleUser, Program: "BSIT"},
	}, "secret")
	srv.AddUser(api.User{
		Name:    "Carol",
		Email:   "carol@example.com",
		Profile: api.Profile{Role: api.RoleCollaborator},
	}, "secret")

	client := api.NewClient(srv.URL(), api.WithLogger(log.Discard()))
	storage := credstore.NewMemoryStore()
	store := session.New(client, storage, session.WithLogger(log.Discard()))
	client.SetTokenSource(store)
	client.SetUnauthorizedHandler(store.HandleUnauthorized)

	return &harness{srv: srv, store: store, client: client, storage: storage}
}

func (h *harness) model() Model {
	return NewModel(context.Background(), h.store, h.client,
		WithLogger(log.Discard()),
		WithStaticCursor(),
	)
}

// drain executes cmd and feeds every resulting message back into m until
// no commands remain.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()

	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}

		switch msg := next().(type) {
		case nil, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			updated, cmd := m.Update(msg)
			m = updated.(Model)
			queue = append(queue, cmd)
		}
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+f":
		return tea.KeyMsg{Type: tea.KeyCtrlF}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		updated, cmd := m.Update(keyMsg(k))
		m = drain(t, updated.(Model), cmd)
	}
	return m
}

// start restores the (empty) session the way Init does
func start(t *testing.T, m Model) Model {
	t.Helper()
	return drain(t, m, m.reloadCmd())
}

func login(t *testing.T, m Model, email, password string) Model {
	t.Helper()
	return press(t, m, email, "tab", password, "enter")
}

func TestNewModel(t *testing.T) {
	h := newHarness(t)
	m := h.model()

	assert.Equal(t, navigation.RouteLogin, m.Route())
	assert.True(t, m.snap.Loading, "session starts out loading")
	assert.Equal(t, 0, m.loginFocus)
	assert.Contains(t, m.View(), "Signing in...")
}

func TestStartWithoutSession(t *testing.T) {
	h := newHarness(t)
	m := start(t, h.model())

	assert.Equal(t, navigation.RouteLogin, m.Route())
	assert.False(t, m.snap.Loading)
	assert.Contains(t, m.View(), "Sign in to continue")
}

func TestStartWithStoredToken(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, credstore.SaveToken(context.Background(), h.storage, h.srv.IssueToken("alice@example.com")))

	m := start(t, h.model())

	assert.Equal(t, navigation.RouteHome, m.Route())
	assert.Contains(t, m.View(), "Welcome back, Alice!")
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "alice@example.com", "secret")

	assert.Equal(t, navigation.RouteHome, m.Route())
	assert.Equal(t, session.StateAuthenticated, h.store.State())
	assert.Empty(t, m.errMsg)
	assert.False(t, m.busy)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "alice@example.com", "wrong")

	assert.Equal(t, navigation.RouteLogin, m.Route())
	assert.Equal(t, "Invalid credentials", m.errMsg)
	assert.Empty(t, m.password.Value())
	assert.Equal(t, "alice@example.com", m.email.Value())
	assert.Contains(t, m.View(), "Invalid credentials")
}

func TestLogin_EnterOnEmailMovesToPassword(t *testing.T) {
	h := newHarness(t)
	m := press(t, start(t, h.model()), "alice@example.com", "enter")

	assert.Equal(t, 1, m.loginFocus)
	assert.Equal(t, navigation.RouteLogin, m.Route())
	assert.Zero(t, h.srv.Hits(http.MethodPost, "/auth/login"))
}

func TestCollaboratorLandsOnCollabHome(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "carol@example.com", "secret")

	assert.Equal(t, navigation.RouteCollabHome, m.Route())
	require.Len(t, m.users, 2)
	assert.Contains(t, m.View(), "Collaborator dashboard")

	m = press(t, m, "u")
	assert.Equal(t, navigation.RouteCollabUsers, m.Route())
	view := m.View()
	assert.Contains(t, view, "Carol")
	assert.Contains(t, view, "alice@example.com")
}

func TestUserCannotOpenCollabScreens(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "alice@example.com", "secret")

	m = press(t, m, "u")
	assert.Equal(t, navigation.RouteHome, m.Route())
	assert.Equal(t, msgCollaboratorOnly, m.errMsg)
	assert.Zero(t, h.srv.Hits(http.MethodGet, "/users"))
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "alice@example.com", "secret")
	token := h.store.Token(context.Background())
	require.NotEmpty(t, token)

	m = press(t, m, "l")

	assert.Equal(t, navigation.RouteLogin, m.Route())
	assert.Equal(t, session.StateUnauthenticated, h.store.State())
	assert.Zero(t, h.storage.Len())

	// The server is told in the background, with the token that was current.
	assert.Eventually(t, func() bool {
		return h.srv.Hits(http.MethodPost, "/logout") == 1
	}, 2*time.Second, 10*time.Millisecond)
	for _, r := range h.srv.Requests() {
		if r.Path == "/logout" {
			assert.Equal(t, "Bearer "+token, r.Authorization)
		}
	}
}

func TestSessionMsgRedirects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := login(t, start(t, h.model()), "alice@example.com", "secret")
	m = press(t, m, "p")
	require.Equal(t, navigation.RouteProfile, m.Route())

	// A request elsewhere was rejected.
	h.store.HandleUnauthorized(ctx, h.store.Token(ctx))

	updated, cmd := m.Update(SessionMsg{Snapshot: h.store.Snapshot()})
	m = drain(t, updated.(Model), cmd)
	assert.Equal(t, navigation.RouteLogin, m.Route())
}

func TestSessionMsgWhileLoadingKeepsRoute(t *testing.T) {
	h := newHarness(t)
	m := start(t, h.model())

	updated, _ := m.Update(SessionMsg{Snapshot: session.Snapshot{Loading: true, State: session.StateAuthenticating}})
	m = updated.(Model)
	assert.Equal(t, navigation.RouteLogin, m.Route())
	assert.Contains(t, m.View(), "Signing in...")
}

func TestProfileAndEdit(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "alice@example.com", "secret")

	m = press(t, m, "p")
	require.Equal(t, navigation.RouteProfile, m.Route())
	assert.Contains(t, m.View(), "BSIT")

	m = press(t, m, "e")
	require.Equal(t, navigation.RouteEditProfile, m.Route())
	assert.Equal(t, "Alice", m.profile[fieldName].Value())
	assert.Equal(t, "BSIT", m.profile[fieldProgram].Value())

	m.profile[fieldName].SetValue("Alice B.")
	m.profile[fieldSection].SetValue("3A")
	m = press(t, m, "enter", "enter", "enter", "enter")

	assert.Equal(t, navigation.RouteProfile, m.Route())
	assert.Equal(t, msgProfileSaved, m.notice)
	assert.Equal(t, "Alice B.", h.store.User().Name)
	assert.Equal(t, "3A", h.store.User().Profile.Section)

	stored, err := credstore.LoadUser(context.Background(), h.storage)
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", stored.Name)
}

func TestEditProfile_RequiresName(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "alice@example.com", "secret")
	m = press(t, m, "p", "e")

	m.profile[fieldName].SetValue("  ")
	m = press(t, m, "enter", "enter", "enter", "enter")

	assert.Equal(t, navigation.RouteEditProfile, m.Route())
	assert.Equal(t, msgNameRequired, m.errMsg)
	assert.Equal(t, fieldName, m.editFocus)
	assert.Zero(t, h.srv.Hits(http.MethodPut, "/profile"))
}

func TestEditProfile_EscGoesBack(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "alice@example.com", "secret")
	m = press(t, m, "p", "e", "esc")

	assert.Equal(t, navigation.RouteProfile, m.Route())
	assert.Equal(t, "Alice", h.store.User().Name)
}

func TestForgotPassword(t *testing.T) {
	h := newHarness(t)
	m := press(t, start(t, h.model()), "alice@example.com", "ctrl+f")

	require.Equal(t, navigation.RouteForgotPassword, m.Route())
	assert.Equal(t, "alice@example.com", m.resetEmail.Value())

	m = press(t, m, "enter")
	assert.Equal(t, "We have emailed your password reset link.", m.notice)
	assert.Equal(t, 1, h.srv.Hits(http.MethodPost, "/forgot-password"))

	m = press(t, m, "esc")
	assert.Equal(t, navigation.RouteLogin, m.Route())
}

func TestForgotPassword_RequiresEmail(t *testing.T) {
	h := newHarness(t)
	m := press(t, start(t, h.model()), "ctrl+f", "enter")

	assert.Equal(t, msgEmailRequired, m.errMsg)
	assert.Zero(t, h.srv.Hits(http.MethodPost, "/forgot-password"))
}

func TestKeysIgnoredWhileLoading(t *testing.T) {
	h := newHarness(t)
	m := h.model()

	m = press(t, m, "alice@example.com")
	assert.Empty(t, m.email.Value())

	m = press(t, m, "ctrl+c")
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
}

func TestQuitFromAppScreen(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "alice@example.com", "secret")

	updated, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, updated.(Model).quitting)
}

func TestUnknownRouteView(t *testing.T) {
	h := newHarness(t)
	m := login(t, start(t, h.model()), "alice@example.com", "secret")

	m.router.Push(navigation.RouteForum)
	assert.Contains(t, m.View(), "/forum is not available in the terminal.")
}
