package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fisherman-publications/fisherman/internal/api"
)

type userIDKey struct{}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          strings.TrimPrefix(r.URL.Path, "/api"),
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          string(body),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api")]
		s.mu.Unlock()

		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.Status)
			_, _ = w.Write([]byte(f.Body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		id, ok := s.tokens[bearer(r)]
		s.mu.Unlock()

		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, id)))
	})
}

func currentUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey{}).(int64)
	return id
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[req.Email]
	if !ok || acc.password != req.Password {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, api.AuthResponse{Token: s.issueLocked(acc.user.ID), User: acc.user})
}

func (s *Server) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req api.GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.googleIDs[req.Token]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid Google token"})
		return
	}
	acc, ok := s.accounts[email]
	if !ok {
		writeMessage(w, http.StatusNotFound, "No account for this Google user")
		return
	}

	writeJSON(w, http.StatusOK, api.AuthResponse{Token: s.issueLocked(acc.user.ID), User: acc.user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.userByIDLocked(currentUserID(r))
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]api.User{"user": acc.user})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update api.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(update.Name) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "The name field is required."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.userByIDLocked(currentUserID(r))
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	acc.user.Name = update.Name
	acc.user.Profile.Program = update.Program
	acc.user.Profile.Section = update.Section
	acc.user.Profile.Description = update.Description

	writeJSON(w, http.StatusOK, map[string]api.User{"user": acc.user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.tokens, bearer(r))
	s.mu.Unlock()

	writeMessage(w, http.StatusOK, "Logged out")
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "The email field is required.")
		return
	}
	writeMessage(w, http.StatusOK, "We have emailed your password reset link.")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req api.PasswordReset
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Password != req.PasswordConfirmation {
		writeMessage(w, http.StatusUnprocessableEntity, "The password confirmation does not match.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resetTokens[req.Token] != req.Email {
		writeMessage(w, http.StatusUnprocessableEntity, "This password reset token is invalid.")
		return
	}
	if acc, ok := s.accounts[req.Email]; ok {
		acc.password = req.Password
	}
	delete(s.resetTokens, req.Token)

	writeMessage(w, http.StatusOK, "Your password has been reset.")
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.userByIDLocked(currentUserID(r))
	if !ok || acc.user.Profile.Role != api.RoleCollaborator {
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return
	}

	users := make([]api.User, 0, len(s.accounts))
	for id := int64(1); id < s.nextID; id++ {
		if a, ok := s.userByIDLocked(id); ok {
			users = append(users, a.user)
		}
	}
	writeJSON(w, http.StatusOK, map[string][]api.User{"users": users})
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	topics := make([]api.Topic, len(s.topics))
	copy(topics, s.topics)
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req api.NewTopic
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "The title field is required.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, _ := s.userByIDLocked(currentUserID(r))
	topic := api.Topic{
		ID:        int64(len(s.topics) + 1),
		Title:     req.Title,
		Body:      req.Body,
		Category:  req.Category,
		CreatedAt: time.Now().UTC(),
	}
	if acc != nil {
		u := acc.user
		topic.User = &u
	}
	s.topics = append(s.topics, topic)

	writeJSON(w, http.StatusCreated, topic)
}

func (s *Server) topicIndex(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 || id > len(s.topics) {
		return 0, false
	}
	return id - 1, true
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.topicIndex(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Topic not found")
		return
	}
	writeJSON(w, http.StatusOK, s.topics[i])
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "The body field is required.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.topicIndex(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Topic not found")
		return
	}

	comment := api.Comment{
		ID:        int64(len(s.topics[i].Comments) + 1),
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}
	if acc, ok := s.userByIDLocked(currentUserID(r)); ok {
		u := acc.user
		comment.User = &u
	}
	s.topics[i].Comments = append(s.topics[i].Comments, comment)

	writeJSON(w, http.StatusCreated, comment)
}
