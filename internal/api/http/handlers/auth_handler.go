package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-management/internal/api/dto"
	"github.com/spec-kit/task-management/internal/service"
	apperrors "github.com/spec-kit/task-management/pkg/util/errorutil"
)

// AuthHandler exposes signin and signup.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signin handles POST /api/auth/signin.
func (h *AuthHandler) Signin(c *fiber.Ctx) error {
	var req dto.SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	res, err := h.auth.Signin(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return apperrors.MapError(err)
	}
	return c.JSON(dto.NewJwtResponse(res.User, res.Token, res.ExpiresAt))
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if details := validateSignup(req); len(details) > 0 {
		return apperrors.NewValidationError("invalid signup request", details)
	}

	_, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	switch {
	case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrEmailTaken):
		return apperrors.NewValidationError(err.Error(), nil)
	case err != nil:
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusOK).JSON(dto.MessageResponse{Message: "user registered successfully"})
}

func validateSignup(req dto.SignupRequest) map[string]any {
	details := map[string]any{}
	if n := len(strings.TrimSpace(req.Username)); n < 3 || n > 20 {
		details["username"] = "must be between 3 and 20 characters"
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || len(email) > 50 {
		details["email"] = "must be a valid address of at most 50 characters"
	}
	if n := len(req.Password); n < 6 || n > 40 {
		details["password"] = "must be between 6 and 40 characters"
	}
	return details
}
