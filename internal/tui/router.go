package tui

import (
	"sync"

	"github.com/fisherman-publications/fisherman/internal/navigation"
)

// Router owns the visible route. The navigation guard drives it through
// Replace; key presses drive it through Push and Back.
type Router struct {
	mu      sync.Mutex
	current navigation.Route
	history []navigation.Route
}

// NewRouter starts at route
func NewRouter(start navigation.Route) *Router {
	return &Router{current: start}
}

// Current returns the visible route
func (r *Router) Current() navigation.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Replace implements navigation.Navigator. History is dropped because the
// replaced screens belong to a session state that no longer holds.
func (r *Router) Replace(route navigation.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = route
	r.history = nil
}

// Push opens route, remembering the current one for Back
func (r *Router) Push(route navigation.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if route == r.current {
		return
	}
	r.history = append(r.history, r.current)
	r.current = route
}

// Back returns to the previous route. It reports false when there is none.
func (r *Router) Back() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return false
	}
	r.current = r.history[len(r.history)-1]
	r.history = r.history[:len(r.history)-1]
	return true
}
