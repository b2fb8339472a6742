package api

import "time"

// Role is the platform role stored on a user's profile
type Role string

const (
	// RoleUser is an ordinary community member
	RoleUser Role = "user"
	// RoleCollaborator can open the administrative screens
	RoleCollaborator Role = "collaborator"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleCollaborator
}

// Profile holds the editable profile fields of a user
type Profile struct {
	Role        Role   `json:"role"`
	Avatar      string `json:"avatar,omitempty"`
	Program     string `json:"program,omitempty"`
	Section     string `json:"section,omitempty"`
	Description string `json:"description,omitempty"`
}

// User represents a platform user
type User struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email,omitempty"`
	Profile Profile `json:"profile"`
}

// IsCollaborator reports whether the user holds the collaborator role
func (u *User) IsCollaborator() bool {
	return u != nil && u.Profile.Role == RoleCollaborator
}

// LoginRequest represents an email/password login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLoginRequest carries a Google ID token to exchange for a session
type GoogleLoginRequest struct {
	Token string `json:"token"`
}

// AuthResponse is returned by both login endpoints
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// userEnvelope wraps single-user responses ({"user": {...}})
type userEnvelope struct {
	User *User `json:"user"`
}

// usersEnvelope wraps the admin user listing
type usersEnvelope struct {
	Users []User `json:"users"`
}

// messageEnvelope is the generic {"message": "..."} body
type messageEnvelope struct {
	Message string `json:"message"`
}

// ProfileUpdate holds the fields sent to PUT /profile
type ProfileUpdate struct {
	Name        string `json:"name"`
	Program     string `json:"program"`
	Section     string `json:"section"`
	Description string `json:"description"`
}

// PasswordReset is the body of POST /reset-password
type PasswordReset struct {
	Token                string `json:"token"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Topic is a forum topic
type Topic struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	User      *User     `json:"user,omitempty"`
	Comments  []Comment `json:"comments,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a reply on a forum topic
type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	User      *User     `json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTopic is the body of POST /topics
type NewTopic struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
}
