// Package navigation keeps the visible route consistent with the session:
// logged-out users are sent to login, logged-in users are sent from the
// login screens to their role's home.
package navigation

import (
	"net/url"
	"strings"

	"github.com/fisherman-publications/fisherman/internal/api"
)

// Route is a screen path such as "/home" or "/collab/users"
type Route string

// Group partitions routes by whether they need a session
type Group int

const (
	// GroupAuth holds the screens reachable without a session
	GroupAuth Group = iota
	// GroupApp holds every screen that needs a session
	GroupApp
)

// String returns the group name
func (g Group) String() string {
	if g == GroupAuth {
		return "auth"
	}
	return "app"
}

// Known routes
const (
	RouteLogin          Route = "/"
	RouteForgotPassword Route = "/forgot-password"
	RouteResetPassword  Route = "/reset-password"

	RouteHome        Route = "/home"
	RouteProfile     Route = "/profile"
	RouteEditProfile Route = "/edit-profile"
	RouteForum       Route = "/forum"
	RouteNews        Route = "/news"
	RouteAbout       Route = "/about"
	RouteTopic       Route = "/topic-details"

	RouteCollabHome          Route = "/collab/home"
	RouteCollabDashboard     Route = "/collab/dashboard"
	RouteCollabUsers         Route = "/collab/users"
	RouteCollabReviewContent Route = "/collab/review-content"
	RouteCollabCreateContent Route = "/collab/create-content"
	RouteCollabCollaborate   Route = "/collab/collaborate"
)

const collabPrefix = "/collab/"

var knownRoutes = map[Route]bool{
	RouteLogin:               true,
	RouteForgotPassword:      true,
	RouteResetPassword:       true,
	RouteHome:                true,
	RouteProfile:             true,
	RouteEditProfile:         true,
	RouteForum:               true,
	RouteNews:                true,
	RouteAbout:               true,
	RouteTopic:               true,
	RouteCollabHome:          true,
	RouteCollabDashboard:     true,
	RouteCollabUsers:         true,
	RouteCollabReviewContent: true,
	RouteCollabCreateContent: true,
	RouteCollabCollaborate:   true,
}

// ParseRoute normalizes s: it strips any query or fragment, ensures a
// leading slash, and drops a trailing slash.
func ParseRoute(s string) Route {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil {
		s = u.Path
	} else if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	s = "/" + strings.Trim(s, "/")
	return Route(s)
}

// Group returns the route's group. Unknown routes belong to GroupApp.
func (r Route) Group() Group {
	switch r {
	case RouteLogin, RouteForgotPassword, RouteResetPassword:
		return GroupAuth
	default:
		return GroupApp
	}
}

// Known reports whether r is one of the application's screens
func (r Route) Known() bool {
	return knownRoutes[r]
}

// CollaboratorOnly reports whether r is in the collab/ section
func (r Route) CollaboratorOnly() bool {
	return strings.HasPrefix(string(r), collabPrefix)
}

// String returns the path
func (r Route) String() string {
	return string(r)
}

// Home returns the landing route for user's role
func Home(user *api.User) Route {
	if user.IsCollaborator() {
		return RouteCollabHome
	}
	return RouteHome
}

// CanAccess reports whether user may open r. Login screens are open to
// everyone; app screens need a user; collab screens need a collaborator.
func CanAccess(user *api.User, r Route) bool {
	if r.Group() == GroupAuth {
		return true
	}
	if user == nil {
		return false
	}
	if r.CollaboratorOnly() {
		return user.IsCollaborator()
	}
	return true
}
