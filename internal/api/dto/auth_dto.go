package dto

import (
	"time"

	"github.com/spec-kit/task-management/internal/domain"
)

// SigninRequest payload for login.
type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest payload for new users.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// JwtResponse is returned on successful signin.
type JwtResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewJwtResponse builds the signin response for user.
func NewJwtResponse(user *domain.User, token string, expiresAt time.Time) JwtResponse {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	return JwtResponse{
		Token:     token,
		Type:      "Bearer",
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Name:      user.Name,
		Roles:     roles,
		ExpiresAt: expiresAt,
	}
}

// MessageResponse carries a single human readable message.
type MessageResponse struct {
	Message string `json:"message"`
}
