package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-management/internal/api/dto"
	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/service"
	apperrors "github.com/spec-kit/task-management/pkg/util/errorutil"
)

// UsersHandler exposes account lookups to authenticated users.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	return c.JSON(dto.ToUserResponse(user))
}

// Get handles GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return apperrors.NewValidationError("invalid user id", nil)
	}
	user, err := h.users.GetByID(c.UserContext(), int64(id))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.MapError(err)
	}
	return c.JSON(dto.ToUserResponse(user))
}

// List handles GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, dto.ToUserResponse(&users[i]))
	}
	return c.JSON(out)
}
