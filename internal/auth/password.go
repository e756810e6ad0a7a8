package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoPassword is returned for accounts created through an OAuth2 provider.
var ErrNoPassword = errors.New("account has no local password")

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	if hashed == "" {
		return ErrNoPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
