package rpc

// ValidateTokenRequest asks user-service to check a bearer token.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse mirrors domain.ValidationResult on the wire.
type ValidateTokenResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}

// GetUserByUsernameRequest looks up one account.
type GetUserByUsernameRequest struct {
	Username string `json:"username"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}
