package dto

import (
	"time"

	"github.com/spec-kit/task-management/internal/domain"
)

// UsernameRequest is the body of the internal lookup endpoints.
type UsernameRequest struct {
	Username string `json:"username"`
}

// UserResponse is the account view returned by the user API.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	ImageURL  string    `json:"image_url,omitempty"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// ToUserResponse strips credentials from user.
func ToUserResponse(user *domain.User) UserResponse {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Name:      user.Name,
		Provider:  string(user.Provider),
		ImageURL:  user.ImageURL,
		Roles:     roles,
		CreatedAt: user.CreatedAt,
	}
}
