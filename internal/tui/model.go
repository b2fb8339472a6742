// Package tui is the terminal front end: a Bubble Tea program whose screens
// follow the navigation routes and whose redirects come from the session
// guard.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/log"
	"github.com/fisherman-publications/fisherman/internal/metrics"
	"github.com/fisherman-publications/fisherman/internal/navigation"
	"github.com/fisherman-publications/fisherman/internal/session"
)

// Messages shown on screen
const (
	msgCollaboratorOnly = "That screen is only available to collaborators"
	msgProfileSaved     = "Profile updated"
	msgProfileFailed    = "Could not save profile"
	msgUsersFailed      = "Could not load users"
	msgResetFailed      = "Could not send the reset link"
	msgEmailRequired    = "Email is required"
	msgNameRequired     = "Name is required"
)

// Profile form fields, in focus order
const (
	fieldName = iota
	fieldProgram
	fieldSection
	fieldDescription
	fieldCount
)

// SessionMsg carries a session change into the program
type SessionMsg struct {
	Snapshot session.Snapshot
}

// reloadedMsg is sent when the startup session restore finishes
type reloadedMsg struct{}

// loginDoneMsg carries the outcome of a login attempt
type loginDoneMsg struct {
	result session.Result
}

// loggedOutMsg is sent once the local session is cleared
type loggedOutMsg struct{}

// resetSentMsg is the answer to a forgot-password request
type resetSentMsg struct {
	message string
	err     error
}

// usersLoadedMsg carries the collaborator user listing
type usersLoadedMsg struct {
	users []api.User
	err   error
}

// profileSavedMsg is the answer to a profile update
type profileSavedMsg struct {
	user *api.User
	err  error
}

// Model is the Bubble Tea model for the application
type Model struct {
	ctx    context.Context
	store  *session.Store
	client *api.Client
	router *Router
	guard  *navigation.Guard
	logger *log.Logger

	styles  Styles
	keys    keyMap
	spinner spinner.Model

	snap session.Snapshot

	email      textinput.Model
	password   textinput.Model
	loginFocus int
	resetEmail textinput.Model
	profile    []textinput.Model
	editFocus  int

	users []api.User

	busy     bool
	notice   string
	errMsg   string
	width    int
	quitting bool
}

// ModelOption configures a Model
type ModelOption func(*modelConfig)

type modelConfig struct {
	styles  Styles
	logger  *log.Logger
	metrics *metrics.Metrics
	start   navigation.Route
	static  bool
}

// WithStyles overrides DefaultStyles
func WithStyles(s Styles) ModelOption {
	return func(c *modelConfig) {
		c.styles = s
	}
}

// WithLogger sets the logger used by the model and its guard
func WithLogger(l *log.Logger) ModelOption {
	return func(c *modelConfig) {
		c.logger = l
	}
}

// WithMetrics counts guard redirects
func WithMetrics(m *metrics.Metrics) ModelOption {
	return func(c *modelConfig) {
		c.metrics = m
	}
}

// WithStartRoute opens the program on route instead of the login screen
func WithStartRoute(route navigation.Route) ModelOption {
	return func(c *modelConfig) {
		c.start = route
	}
}

// WithStaticCursor stops the input cursors from blinking
func WithStaticCursor() ModelOption {
	return func(c *modelConfig) {
		c.static = true
	}
}

// NewModel creates the model. client serves the screens that talk to the
// backend directly; store owns the session.
func NewModel(ctx context.Context, store *session.Store, client *api.Client, opts ...ModelOption) Model {
	cfg := modelConfig{
		styles: DefaultStyles(),
		logger: log.DefaultLogger(),
		start:  navigation.RouteLogin,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	router := NewRouter(cfg.start)
	guard := navigation.NewGuard(router,
		navigation.WithGuardLogger(cfg.logger),
		navigation.WithGuardMetrics(cfg.metrics),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = cfg.styles.Status

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = "Email:    "
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	resetEmail := textinput.New()
	resetEmail.Placeholder = "you@example.com"
	resetEmail.Prompt = "Email: "

	profile := make([]textinput.Model, fieldCount)
	for i, prompt := range []string{"Name:        ", "Program:     ", "Section:     ", "Description: "} {
		in := textinput.New()
		in.Prompt = prompt
		profile[i] = in
	}

	if cfg.static {
		for _, in := range append([]*textinput.Model{&email, &password, &resetEmail}, pointers(profile)...) {
			in.Cursor.SetMode(cursor.CursorStatic)
		}
	}

	return Model{
		ctx:        ctx,
		store:      store,
		client:     client,
		router:     router,
		guard:      guard,
		logger:     cfg.logger,
		styles:     cfg.styles,
		keys:       defaultKeyMap(),
		spinner:    s,
		snap:       store.Snapshot(),
		email:      email,
		password:   password,
		resetEmail: resetEmail,
		profile:    profile,
	}
}

func pointers(inputs []textinput.Model) []*textinput.Model {
	out := make([]*textinput.Model, len(inputs))
	for i := range inputs {
		out[i] = &inputs[i]
	}
	return out
}

// Route returns the visible route
func (m Model) Route() navigation.Route {
	return m.router.Current()
}

// Router exposes the router driven by the guard
func (m Model) Router() *Router {
	return m.router
}

// Init restores the persisted session
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.reloadCmd())
}

// Update handles incoming messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SessionMsg:
		m.snap = msg.Snapshot
		return m, m.reconcile()

	case reloadedMsg:
		return m, m.sync()

	case loginDoneMsg:
		m.busy = false
		if msg.result.Success {
			m.errMsg = ""
		} else {
			m.errMsg = msg.result.Message
			m.password.SetValue("")
		}
		return m, m.sync()

	case loggedOutMsg:
		m.busy = false
		m.users = nil
		return m, m.sync()

	case resetSentMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = api.ServerMessage(msg.err, msgResetFailed)
			return m, nil
		}
		m.errMsg = ""
		m.notice = msg.message
		return m, nil

	case usersLoadedMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = api.ServerMessage(msg.err, msgUsersFailed)
			return m, nil
		}
		m.users = msg.users
		return m, nil

	case profileSavedMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = api.ServerMessage(msg.err, msgProfileFailed)
			return m, m.sync()
		}
		m.errMsg = ""
		m.notice = msgProfileSaved
		cmd := m.back()
		return m, tea.Batch(cmd, m.sync())
	}

	return m, m.updateInputs(msg)
}

// sync reads the store and reconciles the route with it
func (m *Model) sync() tea.Cmd {
	m.snap = m.store.Snapshot()
	return m.reconcile()
}

// reconcile lets the guard redirect and prepares the screen it lands on
func (m *Model) reconcile() tea.Cmd {
	before := m.router.Current()
	m.guard.Reconcile(m.snap, before)
	if after := m.router.Current(); after != before {
		return m.enter(after)
	}
	return nil
}

// navigate opens route on behalf of the user
func (m *Model) navigate(route navigation.Route) tea.Cmd {
	if !navigation.CanAccess(m.snap.User, route) {
		m.errMsg = msgCollaboratorOnly
		return nil
	}
	m.router.Push(route)
	return tea.Batch(m.enter(route), m.reconcile())
}

func (m *Model) back() tea.Cmd {
	if !m.router.Back() {
		return nil
	}
	return tea.Batch(m.enter(m.router.Current()), m.reconcile())
}

// enter resets per-screen state for route
func (m *Model) enter(route navigation.Route) tea.Cmd {
	m.errMsg = ""

	switch route {
	case navigation.RouteLogin:
		m.password.SetValue("")
		return m.focusLogin(0)

	case navigation.RouteForgotPassword:
		m.notice = ""
		m.resetEmail.SetValue(m.email.Value())
		return m.resetEmail.Focus()

	case navigation.RouteEditProfile:
		m.notice = ""
		if u := m.snap.User; u != nil {
			m.profile[fieldName].SetValue(u.Name)
			m.profile[fieldProgram].SetValue(u.Profile.Program)
			m.profile[fieldSection].SetValue(u.Profile.Section)
			m.profile[fieldDescription].SetValue(u.Profile.Description)
		}
		return m.focusProfile(0)

	case navigation.RouteCollabHome, navigation.RouteCollabUsers:
		return m.loadUsersCmd()
	}
	return nil
}

func (m *Model) focusLogin(i int) tea.Cmd {
	m.loginFocus = i
	if i == 0 {
		m.password.Blur()
		return m.email.Focus()
	}
	m.email.Blur()
	return m.password.Focus()
}

func (m *Model) focusProfile(i int) tea.Cmd {
	m.editFocus = (i + fieldCount) % fieldCount
	var cmd tea.Cmd
	for j := range m.profile {
		if j == m.editFocus {
			cmd = m.profile[j].Focus()
		} else {
			m.profile[j].Blur()
		}
	}
	return cmd
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	// The session is changing; wait for it to settle.
	if m.snap.Loading || m.busy {
		return m, nil
	}

	switch m.router.Current() {
	case navigation.RouteLogin:
		return m.handleLoginKey(msg)
	case navigation.RouteForgotPassword:
		return m.handleForgotKey(msg)
	case navigation.RouteEditProfile:
		return m.handleEditKey(msg)
	}

	var cmd tea.Cmd
	switch {
	case key.Matches(msg, m.keys.Exit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Logout):
		m.busy = true
		m.notice = ""
		return m, m.logoutCmd()
	case key.Matches(msg, m.keys.Home):
		m.notice = ""
		cmd = m.navigate(navigation.Home(m.snap.User))
	case key.Matches(msg, m.keys.Profile):
		m.notice = ""
		cmd = m.navigate(navigation.RouteProfile)
	case key.Matches(msg, m.keys.Users):
		m.notice = ""
		cmd = m.navigate(navigation.RouteCollabUsers)
	case key.Matches(msg, m.keys.Edit) && m.router.Current() == navigation.RouteProfile:
		cmd = m.navigate(navigation.RouteEditProfile)
	case key.Matches(msg, m.keys.Refresh) && m.router.Current() == navigation.RouteCollabUsers:
		cmd = m.loadUsersCmd()
	case key.Matches(msg, m.keys.Back):
		m.notice = ""
		cmd = m.back()
	}
	return m, cmd
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Forgot):
		return m, m.navigate(navigation.RouteForgotPassword)
	case key.Matches(msg, m.keys.Next), key.Matches(msg, m.keys.Prev):
		return m, m.focusLogin(1 - m.loginFocus)
	case key.Matches(msg, m.keys.Submit):
		if m.loginFocus == 0 {
			return m, m.focusLogin(1)
		}
		m.busy = true
		m.notice = ""
		return m, m.loginCmd(strings.TrimSpace(m.email.Value()), m.password.Value())
	}

	var cmd tea.Cmd
	if m.loginFocus == 0 {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) handleForgotKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		if !m.router.Back() {
			m.router.Replace(navigation.RouteLogin)
		}
		return m, tea.Batch(m.enter(m.router.Current()), m.reconcile())
	case key.Matches(msg, m.keys.Submit):
		email := strings.TrimSpace(m.resetEmail.Value())
		if email == "" {
			m.errMsg = msgEmailRequired
			return m, nil
		}
		m.busy = true
		m.errMsg = ""
		m.notice = ""
		return m, m.forgotCmd(email)
	}

	var cmd tea.Cmd
	m.resetEmail, cmd = m.resetEmail.Update(msg)
	return m, cmd
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, m.back()
	case key.Matches(msg, m.keys.Next):
		return m, m.focusProfile(m.editFocus + 1)
	case key.Matches(msg, m.keys.Prev):
		return m, m.focusProfile(m.editFocus - 1)
	case key.Matches(msg, m.keys.Submit):
		if m.editFocus < fieldCount-1 {
			return m, m.focusProfile(m.editFocus + 1)
		}
		update := api.ProfileUpdate{
			Name:        strings.TrimSpace(m.profile[fieldName].Value()),
			Program:     strings.TrimSpace(m.profile[fieldProgram].Value()),
			Section:     strings.TrimSpace(m.profile[fieldSection].Value()),
			Description: strings.TrimSpace(m.profile[fieldDescription].Value()),
		}
		if update.Name == "" {
			m.errMsg = msgNameRequired
			return m, m.focusProfile(fieldName)
		}
		m.busy = true
		return m, m.saveProfileCmd(update)
	}

	var cmd tea.Cmd
	m.profile[m.editFocus], cmd = m.profile[m.editFocus].Update(msg)
	return m, cmd
}

// updateInputs forwards non-key messages such as cursor blinks
func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.email, cmd = m.email.Update(msg)
	cmds = append(cmds, cmd)
	m.password, cmd = m.password.Update(msg)
	cmds = append(cmds, cmd)
	m.resetEmail, cmd = m.resetEmail.Update(msg)
	cmds = append(cmds, cmd)
	for i := range m.profile {
		m.profile[i], cmd = m.profile[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m Model) reloadCmd() tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		store.ReloadUser(ctx)
		return reloadedMsg{}
	}
}

func (m Model) loginCmd(email, password string) tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		return loginDoneMsg{result: store.Login(ctx, email, password)}
	}
}

// logoutCmd tells the backend without waiting for it, then clears the
// local session. The request carries the token it was started with.
func (m Model) logoutCmd() tea.Cmd {
	ctx, store, client, logger := m.ctx, m.store, m.client, m.logger
	return func() tea.Msg {
		if token := store.Token(ctx); token != "" {
			pinned := api.WithToken(context.WithoutCancel(ctx), token)
			go func() {
				if err := client.Logout(pinned); err != nil {
					logger.Debug("server logout failed", "error", err)
				}
			}()
		}
		store.Logout(ctx)
		return loggedOutMsg{}
	}
}

func (m Model) forgotCmd(email string) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		message, err := client.ForgotPassword(ctx, email)
		return resetSentMsg{message: message, err: err}
	}
}

func (m *Model) loadUsersCmd() tea.Cmd {
	if !m.snap.User.IsCollaborator() {
		return nil
	}
	m.busy = true
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		users, err := client.ListUsers(ctx)
		return usersLoadedMsg{users: users, err: err}
	}
}

func (m Model) saveProfileCmd(update api.ProfileUpdate) tea.Cmd {
	ctx, client, store := m.ctx, m.client, m.store
	return func() tea.Msg {
		user, err := client.UpdateProfile(ctx, update)
		if err != nil {
			return profileSavedMsg{err: err}
		}
		if err := store.UpdateUser(ctx, user); err != nil {
			return profileSavedMsg{err: err}
		}
		return profileSavedMsg{user: user}
	}
}
