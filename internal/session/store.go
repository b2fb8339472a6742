// Package session holds the process-wide authentication state: who is logged
// in, whether an authentication operation is in flight, and the bearer token
// the API client attaches to each request.
//
// A single *Store is created at startup and passed to every consumer. It is
// safe for concurrent use. Every mutating operation takes a sequence number;
// when an operation finishes after a newer one has started, its result is
// discarded.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/credstore"
	"github.com/fisherman-publications/fisherman/internal/log"
	"github.com/fisherman-publications/fisherman/internal/metrics"
)

// State is the lifecycle state of a session
type State int

const (
	// StateUnauthenticated means no user is logged in
	StateUnauthenticated State = iota
	// StateAuthenticating means an authentication operation is in flight
	StateAuthenticating
	// StateAuthenticated means a user is logged in
	StateAuthenticated
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session
type Snapshot struct {
	User    *api.User
	Loading bool
	State   State
}

// Authenticated reports whether the snapshot has a user
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// Result is returned by the login operations. They never return errors.
type Result struct {
	Success bool
	Message string
}

// Authenticator is the part of the API client the session needs
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*api.AuthResponse, error)
	CurrentUser(ctx context.Context) (*api.User, error)
}

// Messages returned in Result
const (
	MsgLoginSuccess       = "Login successful"
	MsgLoginFailed        = "Login failed"
	MsgGoogleLoginFailed  = "Google sign-in failed"
	MsgNetworkFailed      = "Unable to reach the server. Please try again."
	MsgMissingCredentials = "Email and password are required"
	MsgMissingIDToken     = "Google ID token is required"
	MsgPersistFailed      = "Could not save your session. Please try again."
)

// Store is the session store
type Store struct {
	client  Authenticator
	storage credstore.Storage
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	user    *api.User
	token   string
	loading bool
	seq     uint64

	// storageMu serializes persisted writes with the freshness check that guards them
	storageMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the diagnostic logger
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMetrics records session operations
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock replaces time.Now for token expiry checks and operation timings
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store in the Authenticating state. Call ReloadUser once at startup.
func New(client Authenticator, storage credstore.Storage, opts ...Option) *Store {
	s := &Store{
		client:      client,
		storage:     storage,
		logger:      log.DefaultLogger(),
		now:         time.Now,
		loading:     true,
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current session state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Loading: s.loading}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	switch {
	case s.loading:
		snap.State = StateAuthenticating
	case s.user != nil:
		snap.State = StateAuthenticated
	default:
		snap.State = StateUnauthenticated
	}
	return snap
}

// User returns a copy of the current user, or nil
func (s *Store) User() *api.User {
	return s.Snapshot().User
}

// Loading reports whether an authentication operation is in flight
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// State returns the lifecycle state
func (s *Store) State() State {
	return s.Snapshot().State
}

// Token implements api.TokenSource. It is empty whenever no user is logged in.
func (s *Store) Token(_ context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subscribe registers fn to be called after every state change.
// fn runs on the goroutine that caused the change, outside the store's locks.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	s.metrics.SetAuthenticated(snap.User != nil)
	for _, fn := range fns {
		fn(snap)
	}
}

// begin starts a new operation, superseding any in flight
func (s *Store) begin() uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.loading = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return seq
}

func (s *Store) isCurrent(seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq == seq
}

// commit applies the outcome of operation seq unless a newer one has started.
// Only the newest operation clears the loading flag.
func (s *Store) commit(seq uint64, op string, user *api.User, token string) bool {
	s.mu.Lock()
	if s.seq != seq {
		s.mu.Unlock()
		s.metrics.IncStaleResult(op)
		s.logger.Debug("discarding stale session result", "operation", op)
		return false
	}
	s.user = user
	s.token = token
	s.loading = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// settle clears the loading flag for seq without touching the user
func (s *Store) settle(seq uint64) {
	s.mu.Lock()
	if s.seq != seq {
		s.mu.Unlock()
		return
	}
	s.loading = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// persist runs write while holding the storage lock, only if seq is still current
func (s *Store) persist(seq uint64, write func() error) (bool, error) {
	s.storageMu.Lock()
	defer s.storageMu.Unlock()

	if !s.isCurrent(seq) {
		return false, nil
	}
	return true, write()
}

func (s *Store) clearStorage(ctx context.Context) error {
	return credstore.Clear(ctx, s.storage)
}

func (s *Store) observe(op, outcome string, start time.Time) {
	s.metrics.ObserveSessionOperation(op, outcome, s.now().Sub(start))
}
