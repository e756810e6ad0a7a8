package domain

import "time"

// Role labels granted to users and principals.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// AuthProvider records how an account was created.
type AuthProvider string

const (
	AuthProviderLocal     AuthProvider = "LOCAL"
	AuthProviderGoogle    AuthProvider = "GOOGLE"
	AuthProviderGitHub    AuthProvider = "GITHUB"
	AuthProviderMicrosoft AuthProvider = "MICROSOFT"
)

// User is the account record owned by user-service.
type User struct {
	ID           int64
	Username     string
	Email        string
	Name         string
	PasswordHash string
	Provider     AuthProvider
	ProviderID   string
	ImageURL     string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserProfile is the public view of a user returned by lookups.
type UserProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// Profile strips credentials from the user.
func (u *User) Profile() UserProfile {
	return UserProfile{ID: u.ID, Username: u.Username, Email: u.Email, Name: u.Name}
}
