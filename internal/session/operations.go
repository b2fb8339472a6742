package session

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/credstore"
	"github.com/fisherman-publications/fisherman/internal/errors"
	"github.com/fisherman-publications/fisherman/internal/telemetry"
)

const (
	opReload       = "reload"
	opLogin        = "login"
	opGoogleLogin  = "google_login"
	opLogout       = "logout"
	opUnauthorized = "unauthorized"
	opUpdateUser   = "update_user"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeStale   = "stale"
	outcomeCleared = "cleared"
)

// MsgSuperseded is returned when a newer session operation overtook a login
const MsgSuperseded = "Login was interrupted by another session change"

// ReloadUser restores the session from persisted storage. It is called once
// at process start.
//
// Without a persisted token the user is absent and no request is made. An
// unreadable credential record, a corrupt user snapshot or a token whose exp
// has passed clears storage. A 401
// from /users/me clears storage too. Any other failure leaves the user absent
// and the stored token in place.
func (s *Store) ReloadUser(ctx context.Context) {
	ctx, span := telemetry.StartSessionSpan(ctx, opReload)
	defer span.End()

	start := s.now()
	seq := s.begin()

	token, corrupt, err := s.readPersisted(ctx)
	switch {
	case err != nil:
		telemetry.RecordError(span, err)
		s.logger.WithError(err).WarnContext(ctx, "failed to read persisted session")
		s.finishReload(seq, start, outcomeFailure, nil, "")
		return

	case corrupt:
		s.logger.WarnContext(ctx, "persisted session is corrupt, clearing session")
		s.clearIfCurrent(ctx, seq)
		s.finishReload(seq, start, outcomeCleared, nil, "")
		return

	case token == "":
		s.logger.DebugContext(ctx, "no persisted token")
		s.finishReload(seq, start, outcomeSuccess, nil, "")
		return

	case tokenExpired(token, s.now()):
		s.logger.InfoContext(ctx, "persisted token has expired, clearing session")
		s.clearIfCurrent(ctx, seq)
		s.finishReload(seq, start, outcomeCleared, nil, "")
		return
	}

	user, err := s.client.CurrentUser(api.WithToken(ctx, token))
	if err != nil {
		telemetry.RecordError(span, err)
		if api.IsUnauthorized(err) {
			s.logger.InfoContext(ctx, "persisted token was rejected, clearing session")
			s.clearIfCurrent(ctx, seq)
			s.finishReload(seq, start, outcomeCleared, nil, "")
			return
		}
		// The stored token is kept; only a 401 proves it invalid.
		s.logger.WithError(err).WarnContext(ctx, "failed to load current user")
		s.finishReload(seq, start, outcomeFailure, nil, "")
		return
	}

	if _, err := s.persist(seq, func() error {
		return credstore.SaveUser(ctx, s.storage, user)
	}); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "failed to refresh user snapshot")
	}

	telemetry.RecordSuccess(span, attribute.Int64("user.id", user.ID))
	s.finishReload(seq, start, outcomeSuccess, user, token)
}

func (s *Store) finishReload(seq uint64, start time.Time, outcome string, user *api.User, token string) {
	if !s.commit(seq, opReload, user, token) {
		outcome = outcomeStale
	}
	s.observe(opReload, outcome, start)
}

// readPersisted loads the token and checks the user snapshot for corruption
func (s *Store) readPersisted(ctx context.Context) (token string, corrupt bool, err error) {
	s.storageMu.Lock()
	defer s.storageMu.Unlock()

	token, err = credstore.LoadToken(ctx, s.storage)
	if err != nil {
		if credstore.IsCorrupt(err) {
			return "", true, nil
		}
		return "", false, err
	}
	if token == "" {
		return "", false, nil
	}

	if _, err := credstore.LoadUser(ctx, s.storage); err != nil {
		if credstore.IsCorrupt(err) {
			return token, true, nil
		}
		return "", false, err
	}

	return token, false, nil
}

func (s *Store) clearIfCurrent(ctx context.Context, seq uint64) {
	if _, err := s.persist(seq, func() error {
		return s.clearStorage(ctx)
	}); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "failed to clear persisted session")
	}
}

// Login authenticates with email and password. On success the token and
// user snapshot are persisted and the user is set. On failure the session
// is left as it was and the message explains why.
func (s *Store) Login(ctx context.Context, email, password string) Result {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Result{Message: MsgMissingCredentials}
	}

	ctx, span := telemetry.StartSessionSpan(ctx, opLogin)
	defer span.End()

	start := s.now()
	seq := s.begin()

	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.WithError(err).InfoContext(ctx, "login failed")
		s.settle(seq)
		s.observe(opLogin, outcomeFailure, start)
		return Result{Message: failureMessage(err, MsgLoginFailed)}
	}

	result := s.establish(ctx, seq, opLogin, resp, start)
	if result.Success {
		telemetry.RecordSuccess(span, attribute.Int64("user.id", resp.User.ID))
	}
	return result
}

// LoginWithGoogleToken exchanges a Google ID token for a platform session.
// On failure any partial session is cleared.
func (s *Store) LoginWithGoogleToken(ctx context.Context, idToken string) Result {
	if strings.TrimSpace(idToken) == "" {
		return Result{Message: MsgMissingIDToken}
	}

	ctx, span := telemetry.StartSessionSpan(ctx, opGoogleLogin)
	defer span.End()

	start := s.now()
	seq := s.begin()

	resp, err := s.client.LoginWithGoogle(ctx, idToken)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.WithError(err).InfoContext(ctx, "google login failed")
		s.clearIfCurrent(ctx, seq)
		if !s.commit(seq, opGoogleLogin, nil, "") {
			s.observe(opGoogleLogin, outcomeStale, start)
			return Result{Message: MsgSuperseded}
		}
		s.observe(opGoogleLogin, outcomeFailure, start)
		return Result{Message: failureMessage(err, MsgGoogleLoginFailed)}
	}

	result := s.establish(ctx, seq, opGoogleLogin, resp, start)
	if result.Success {
		telemetry.RecordSuccess(span, attribute.Int64("user.id", resp.User.ID))
	}
	return result
}

// establish persists a successful authentication and makes it current
func (s *Store) establish(ctx context.Context, seq uint64, op string, resp *api.AuthResponse, start time.Time) Result {
	user := resp.User

	current, err := s.persist(seq, func() error {
		err := credstore.SaveToken(ctx, s.storage, resp.Token)
		if err == nil {
			err = credstore.SaveUser(ctx, s.storage, &user)
		}
		if err != nil {
			// A half-written record would pair the new token with an old user.
			if clearErr := s.clearStorage(ctx); clearErr != nil {
				s.logger.WithError(clearErr).WarnContext(ctx, "failed to clear partial session")
			}
		}
		return err
	})
	if !current {
		s.metrics.IncStaleResult(op)
		s.observe(op, outcomeStale, start)
		return Result{Message: MsgSuperseded}
	}
	if err != nil {
		s.logger.WithError(err).WarnContext(ctx, "failed to persist session")
		if !s.commit(seq, op, nil, "") {
			s.observe(op, outcomeStale, start)
			return Result{Message: MsgSuperseded}
		}
		s.observe(op, outcomeFailure, start)
		return Result{Message: MsgPersistFailed}
	}

	if !s.commit(seq, op, &user, resp.Token) {
		s.observe(op, outcomeStale, start)
		return Result{Message: MsgSuperseded}
	}

	s.logger.InfoContext(ctx, "logged in", "user_id", user.ID, "role", string(user.Profile.Role))
	s.observe(op, outcomeSuccess, start)
	return Result{Success: true, Message: MsgLoginSuccess}
}

// Logout clears the user and token immediately, then removes the persisted
// record. Storage failures are logged, never returned. Notifying the server
// is the caller's concern.
func (s *Store) Logout(ctx context.Context) {
	ctx, span := telemetry.StartSessionSpan(ctx, opLogout)
	defer span.End()

	start := s.now()
	s.drop(ctx, opLogout, "")
	s.observe(opLogout, outcomeSuccess, start)
	telemetry.RecordSuccess(span)
}

// HandleUnauthorized is the API client's 401 callback. The session is dropped
// only if token is still the active token; 401s for superseded tokens are ignored.
func (s *Store) HandleUnauthorized(ctx context.Context, token string) {
	if token == "" || token != s.Token(ctx) {
		return
	}

	start := s.now()
	s.logger.InfoContext(ctx, "session expired, logging out")
	s.drop(ctx, opUnauthorized, token)
	s.observe(opUnauthorized, outcomeCleared, start)
}

// drop clears the session. With a non-empty expected token the drop only
// happens if that token is still active.
func (s *Store) drop(ctx context.Context, op, expected string) {
	s.mu.Lock()
	if expected != "" && s.token != expected {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	s.user = nil
	s.token = ""
	s.loading = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)

	// Cleared unconditionally: a later login rewrites storage after us.
	s.storageMu.Lock()
	err := s.clearStorage(ctx)
	s.storageMu.Unlock()
	if err != nil {
		s.logger.WithError(err).WarnContext(ctx, "failed to clear persisted session", "operation", op)
	}

	s.settle(seq)
}

// UpdateUser replaces the current user after a profile edit and refreshes
// the persisted snapshot.
func (s *Store) UpdateUser(ctx context.Context, user *api.User) error {
	if user == nil {
		return errors.New(errors.ErrCodeAPIValidation, "user is required")
	}

	start := s.now()
	s.storageMu.Lock()
	defer s.storageMu.Unlock()

	s.mu.RLock()
	authenticated := s.user != nil
	s.mu.RUnlock()
	if !authenticated {
		return errors.NewNotAuthenticatedError()
	}

	if err := credstore.SaveUser(ctx, s.storage, user); err != nil {
		return err
	}

	s.mu.Lock()
	if s.user == nil {
		// Logged out while saving; the snapshot is removed by the logout.
		s.mu.Unlock()
		return errors.NewNotAuthenticatedError()
	}
	u := *user
	s.user = &u
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	s.observe(opUpdateUser, outcomeSuccess, start)
	return nil
}

func failureMessage(err error, fallback string) string {
	if api.IsNetworkError(err) {
		return MsgNetworkFailed
	}
	return api.ServerMessage(err, fallback)
}
