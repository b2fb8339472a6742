package navigation

import (
	"sync"

	"github.com/fisherman-publications/fisherman/internal/log"
	"github.com/fisherman-publications/fisherman/internal/metrics"
	"github.com/fisherman-publications/fisherman/internal/session"
)

// Decide applies the redirect rule to one session snapshot and the current
// route. It returns the route to replace the current one with, if any.
//
// Nothing happens while an operation is in flight. Without a user, routes
// outside GroupAuth go to login. With a user, GroupAuth routes go to the
// role's home.
func Decide(snap session.Snapshot, current Route) (Route, bool) {
	if snap.Loading {
		return "", false
	}

	inAuthGroup := current.Group() == GroupAuth

	switch {
	case snap.User == nil && !inAuthGroup:
		return RouteLogin, true
	case snap.User != nil && inAuthGroup:
		return Home(snap.User), true
	default:
		return "", false
	}
}

// Navigator replaces the visible route
type Navigator interface {
	Replace(route Route)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route Route)

// Replace implements Navigator
func (f NavigatorFunc) Replace(route Route) {
	f(route)
}

// SessionSource is the part of the session store the guard observes
type SessionSource interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

// Guard issues route replacements decided by Decide. It is safe to call
// Reconcile redundantly: a redirect already issued from the same route is
// not issued again.
type Guard struct {
	nav     Navigator
	logger  *log.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending redirect
}

type redirect struct {
	from Route
	to   Route
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithGuardLogger sets the diagnostic logger
func WithGuardLogger(l *log.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = l
	}
}

// WithGuardMetrics counts redirects
func WithGuardMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// NewGuard creates a guard that navigates with nav
func NewGuard(nav Navigator, opts ...GuardOption) *Guard {
	g := &Guard{
		nav:    nav,
		logger: log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Reconcile decides and, when needed, replaces the current route.
// It reports the redirect it issued.
func (g *Guard) Reconcile(snap session.Snapshot, current Route) (Route, bool) {
	target, ok := Decide(snap, current)

	g.mu.Lock()
	if !ok {
		g.pending = redirect{}
		g.mu.Unlock()
		return "", false
	}

	next := redirect{from: current, to: target}
	if g.pending == next {
		g.mu.Unlock()
		return "", false
	}
	g.pending = next
	g.mu.Unlock()

	g.logger.Debug("redirecting", "from", current.String(), "to", target.String())
	g.metrics.IncRedirect(target.String())
	g.nav.Replace(target)
	return target, true
}

// Watch reconciles now and after every session change, reading the current
// route from current. The returned function stops watching.
func (g *Guard) Watch(src SessionSource, current func() Route) (stop func()) {
	unsubscribe := src.Subscribe(func(snap session.Snapshot) {
		g.Reconcile(snap, current())
	})
	g.Reconcile(src.Snapshot(), current())
	return unsubscribe
}
