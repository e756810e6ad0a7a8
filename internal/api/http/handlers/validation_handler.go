package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/service"
)

// ValidationHandler is the HTTP transport of remote token validation.
type ValidationHandler struct {
	validation *service.TokenValidationService
}

// NewValidationHandler constructs handler.
func NewValidationHandler(validation *service.TokenValidationService) *ValidationHandler {
	return &ValidationHandler{validation: validation}
}

// Validate handles POST /api/users/validate. It needs no session; the bearer
// token in the request is the thing being checked.
func (h *ValidationHandler) Validate(c *fiber.Ctx) error {
	token, _ := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	res := h.validation.Validate(c.UserContext(), token)
	if !res.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(res)
	}
	return c.JSON(res)
}
