package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-management/internal/api/dto"
	"github.com/spec-kit/task-management/internal/service"
	apperrors "github.com/spec-kit/task-management/pkg/util/errorutil"
)

// InternalUsersHandler answers identity lookups from peer services.
type InternalUsersHandler struct {
	users *service.UserService
}

// NewInternalUsersHandler constructs handler.
func NewInternalUsersHandler(users *service.UserService) *InternalUsersHandler {
	return &InternalUsersHandler{users: users}
}

// UserID handles POST /internal/users/user-id and responds with the bare id.
func (h *InternalUsersHandler) UserID(c *fiber.Ctx) error {
	var req dto.UsernameRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.GetByUsername(c.UserContext(), req.Username)
	if err != nil {
		return internalLookupError(err)
	}
	return c.JSON(user.ID)
}

// UserDetails handles POST /internal/users/user-details.
func (h *InternalUsersHandler) UserDetails(c *fiber.Ctx) error {
	var req dto.UsernameRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.GetByUsername(c.UserContext(), req.Username)
	if err != nil {
		return internalLookupError(err)
	}
	return c.JSON(user.Profile())
}

// Ping handles GET /internal/users/ping.
func (h *InternalUsersHandler) Ping(c *fiber.Ctx) error {
	return c.JSON(dto.MessageResponse{Message: "user-service internal API is reachable"})
}

func internalLookupError(err error) error {
	switch {
	case errors.Is(err, service.ErrBlankUsername):
		return apperrors.NewValidationError("username is required", nil)
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NewNotFound("user", nil)
	}
	return apperrors.MapError(err)
}
