// Package apitest provides an in-process fake of the Fisherman Publications
// backend for tests. It implements the endpoints the client uses with
// in-memory state and records every request it receives.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fisherman-publications/fisherman/internal/api"
)

var signingKey = []byte("apitest-signing-key")

// Request is one recorded request
type Request struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Body          string
}

// Failure makes a route answer with a fixed status and body
type Failure struct {
	Status int
	Body   string
}

type account struct {
	user     api.User
	password string
}

// Server is a fake backend
type Server struct {
	srv *httptest.Server

	// TokenTTL is the lifetime written into issued tokens' exp claim
	TokenTTL time.Duration

	mu          sync.Mutex
	accounts    map[string]*account // by email
	googleIDs   map[string]string   // Google ID token -> email
	tokens      map[string]int64    // bearer token -> user id
	resetTokens map[string]string   // reset token -> email
	topics      []api.Topic
	failures    map[string]Failure // "METHOD /path" -> failure
	requests    []Request
	nextID      int64
	issued      int
}

// NewServer starts a fake backend that is closed when t finishes
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		TokenTTL:    time.Hour,
		accounts:    make(map[string]*account),
		googleIDs:   make(map[string]string),
		tokens:      make(map[string]int64),
		resetTokens: make(map[string]string),
		failures:    make(map[string]Failure),
		nextID:      1,
	}
	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the API base URL, including the /api prefix
func (s *Server) URL() string {
	return s.srv.URL + "/api"
}

// Close stops the server. Requests afterwards fail at the transport level.
func (s *Server) Close() {
	s.srv.Close()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.inject)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/google", s.handleGoogle)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/users/me", s.handleMe)
			r.Get("/profile", s.handleMe)
			r.Put("/profile", s.handleUpdateProfile)
			r.Post("/logout", s.handleLogout)
			r.Get("/users", s.handleListUsers)
			r.Get("/topics", s.handleListTopics)
			r.Post("/topics", s.handleCreateTopic)
			r.Get("/topics/{id}", s.handleTopic)
			r.Post("/topics/{id}/comments", s.handleAddComment)
		})
	})

	return r
}

// AddUser registers an account and returns it with its assigned ID
func (s *Server) AddUser(user api.User, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == 0 {
		user.ID = s.nextID
	}
	if user.ID >= s.nextID {
		s.nextID = user.ID + 1
	}
	if user.Profile.Role == "" {
		user.Profile.Role = api.RoleUser
	}
	s.accounts[user.Email] = &account{user: user, password: password}
	return user
}

// AddGoogleIDToken makes idToken exchangeable for the account with email
func (s *Server) AddGoogleIDToken(idToken, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.googleIDs[idToken] = email
}

// IssueToken creates a valid bearer token for the account with email
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[email]
	if !ok {
		return ""
	}
	return s.issueLocked(acc.user.ID)
}

// RevokeToken invalidates a bearer token
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// AddResetToken registers a password reset token for email
func (s *Server) AddResetToken(token, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTokens[token] = email
}

// Password returns the current password of an account
func (s *Server) Password(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[email]; ok {
		return acc.password
	}
	return ""
}

// Fail makes method+path answer with status and body until Recover is called
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = Failure{Status: status, Body: body}
}

// Recover removes an injected failure
func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

// Requests returns every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Hits counts requests for method and path (path without the /api prefix)
func (s *Server) Hits(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) issueLocked(userID int64) string {
	s.issued++
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.TokenTTL)),
		ID:        strconv.Itoa(s.issued),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	s.tokens[token] = userID
	return token
}

func (s *Server) userByIDLocked(id int64) (*account, bool) {
	for _, acc := range s.accounts {
		if acc.user.ID == id {
			return acc, true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
