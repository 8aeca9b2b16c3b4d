package auth

import (
	"time"

	"studysphere/internal/identity"
)

// User represents a registered StudySphere member
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Image     string    `json:"image"`
	XP        int       `json:"xp"`
	Level     int       `json:"level"`
	IsStaff   bool      `json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Name returns the display name shown next to messages, resources and attendees.
func (u *User) Name() string {
	return identity.DisplayName(u.FirstName, u.LastName, u.Username)
}

// Avatar returns the profile image, falling back to a generated one.
func (u *User) Avatar() string {
	return identity.Avatar(u.Image, u.Username)
}

// RegisterRequest is the request payload for creating an account
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=50,alphanum"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
}

// LoginRequest accepts either a username or an email in Login
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned after register and login. Token is the session id, usable
// as a bearer token by non-browser clients.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}
