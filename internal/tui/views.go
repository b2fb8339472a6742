package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/navigation"
	"github.com/fisherman-publications/fisherman/internal/session"
)

const appTitle = "Fisherman Publications"

// View renders the current screen
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())

	if m.snap.Loading {
		b.WriteString(m.spinner.View() + " " + m.styles.Status.Render(loadingText(m.snap)))
		b.WriteString("\n")
		return b.String()
	}

	switch route := m.router.Current(); route {
	case navigation.RouteLogin:
		b.WriteString(m.renderLogin())
	case navigation.RouteForgotPassword:
		b.WriteString(m.renderForgotPassword())
	case navigation.RouteHome:
		b.WriteString(m.renderHome())
	case navigation.RouteCollabHome:
		b.WriteString(m.renderCollabHome())
	case navigation.RouteCollabUsers:
		b.WriteString(m.renderUsers())
	case navigation.RouteProfile:
		b.WriteString(m.renderProfile())
	case navigation.RouteEditProfile:
		b.WriteString(m.renderEditProfile())
	default:
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("%s is not available in the terminal.", route)))
		b.WriteString("\n")
	}

	if m.busy {
		b.WriteString("\n" + m.spinner.View() + " " + m.styles.Muted.Render("Working..."))
	}
	if m.errMsg != "" {
		b.WriteString("\n" + m.styles.Error.Render(m.errMsg))
	}
	if m.notice != "" {
		b.WriteString("\n" + m.styles.Success.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(m.renderHelpLine())
	return b.String()
}

func loadingText(snap session.Snapshot) string {
	if snap.Authenticated() {
		return "Updating session..."
	}
	return "Signing in..."
}

func (m Model) renderHeader() string {
	title := m.styles.Title.Render(appTitle)
	if u := m.snap.User; u != nil && !m.snap.Loading {
		return title + "\n" + m.styles.Subtitle.Render(fmt.Sprintf("%s (%s)", u.Name, u.Profile.Role)) + "\n"
	}
	return title + "\n"
}

func (m Model) renderLogin() string {
	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render("Sign in to continue"))
	b.WriteString("\n")
	b.WriteString(m.email.View())
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderForgotPassword() string {
	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render("We will email you a link to reset your password"))
	b.WriteString("\n")
	b.WriteString(m.resetEmail.View())
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHome() string {
	u := m.snap.User
	if u == nil {
		return ""
	}
	return m.styles.Status.Render(fmt.Sprintf("Welcome back, %s!", u.Name)) + "\n"
}

func (m Model) renderCollabHome() string {
	var b strings.Builder
	b.WriteString(m.styles.Status.Render("Collaborator dashboard"))
	b.WriteString("\n\n")

	regular, collaborators := api.SplitByRole(m.users)
	b.WriteString(m.styles.Label.Render("Users") + fmt.Sprintf("%d", len(regular)) + "\n")
	b.WriteString(m.styles.Label.Render("Collaborators") + fmt.Sprintf("%d", len(collaborators)) + "\n")
	return b.String()
}

func (m Model) renderUsers() string {
	var b strings.Builder
	regular, collaborators := api.SplitByRole(m.users)

	section := func(title string, users []api.User) {
		b.WriteString(m.styles.Highlighted.Render(title))
		b.WriteString("\n")
		if len(users) == 0 {
			b.WriteString(m.styles.Muted.Render("  none"))
			b.WriteString("\n")
		}
		for _, u := range users {
			b.WriteString(fmt.Sprintf("  %s %s\n", u.Name, m.styles.Muted.Render(u.Email)))
		}
		b.WriteString("\n")
	}
	section("Collaborators", collaborators)
	section("Users", regular)
	return b.String()
}

func (m Model) renderProfile() string {
	u := m.snap.User
	if u == nil {
		return ""
	}

	rows := [][2]string{
		{"Name", u.Name},
		{"Email", u.Email},
		{"Role", string(u.Profile.Role)},
		{"Program", u.Profile.Program},
		{"Section", u.Profile.Section},
		{"Description", u.Profile.Description},
	}

	var b strings.Builder
	for _, row := range rows {
		value := row[1]
		if value == "" {
			value = m.styles.Muted.Render("-")
		}
		b.WriteString(m.styles.Label.Render(row[0]) + value + "\n")
	}
	return m.styles.Border.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (m Model) renderEditProfile() string {
	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render("Edit profile"))
	b.WriteString("\n")
	for _, in := range m.profile {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	return b.String()
}

// renderHelpLine renders the key bindings available on this screen
func (m Model) renderHelpLine() string {
	var bindings []key.Binding

	switch m.router.Current() {
	case navigation.RouteLogin:
		bindings = []key.Binding{m.keys.Next, m.keys.Submit, m.keys.Forgot, m.keys.Quit}
	case navigation.RouteForgotPassword:
		bindings = []key.Binding{m.keys.Submit, m.keys.Back, m.keys.Quit}
	case navigation.RouteEditProfile:
		bindings = []key.Binding{m.keys.Next, m.keys.Submit, m.keys.Back, m.keys.Quit}
	default:
		bindings = []key.Binding{m.keys.Home, m.keys.Profile}
		if m.router.Current() == navigation.RouteProfile {
			bindings = append(bindings, m.keys.Edit)
		}
		if m.snap.User.IsCollaborator() {
			bindings = append(bindings, m.keys.Users)
		}
		if m.router.Current() == navigation.RouteCollabUsers {
			bindings = append(bindings, m.keys.Refresh)
		}
		bindings = append(bindings, m.keys.Logout, m.keys.Exit)
	}

	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, m.styles.Key.Render(h.Key)+" "+m.styles.KeyDesc.Render(h.Desc))
	}
	return m.styles.Help.Render(strings.Join(parts, "  •  "))
}
