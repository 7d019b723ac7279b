package model

import (
	"time"
)

// UserRole distinguishes contest hosts from regular participants.
type UserRole string

const (
	RoleHost        UserRole = "host"
	RoleParticipant UserRole = "participant"
)

// User is a platform account. Profile pages, OAuth linkage and the rest
// of account management live outside this service.
type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for credential login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}
