package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-management/internal/api/dto"
	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/repository"
	"github.com/spec-kit/task-management/internal/service"
	"github.com/spec-kit/task-management/internal/userclient"
	apperrors "github.com/spec-kit/task-management/pkg/util/errorutil"
)

// TasksHandler manages task endpoints. Every route runs behind RequireAuthenticated.
type TasksHandler struct {
	service *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{service: taskService}
}

// List GET /api/tasks.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	return h.list(c, repository.TaskFilter{})
}

// ListByStatus GET /api/tasks/status/:status.
func (h *TasksHandler) ListByStatus(c *fiber.Ctx) error {
	status, err := statusParam(c)
	if err != nil {
		return err
	}
	return h.list(c, repository.TaskFilter{Status: &status})
}

// ListByOwner GET /api/tasks/owner/:ownerId.
func (h *TasksHandler) ListByOwner(c *fiber.Ctx) error {
	ownerID, err := ownerParam(c)
	if err != nil {
		return err
	}
	return h.list(c, repository.TaskFilter{OwnerID: &ownerID})
}

// ListByStatusAndOwner GET /api/tasks/status/:status/owner/:ownerId.
func (h *TasksHandler) ListByStatusAndOwner(c *fiber.Ctx) error {
	status, err := statusParam(c)
	if err != nil {
		return err
	}
	ownerID, err := ownerParam(c)
	if err != nil {
		return err
	}
	return h.list(c, repository.TaskFilter{Status: &status, OwnerID: &ownerID})
}

// ListMine GET /api/tasks/my-tasks and /api/tasks/my-tasks/status/:status.
func (h *TasksHandler) ListMine(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var status *domain.TaskStatus
	if c.Params("status") != "" {
		s, err := statusParam(c)
		if err != nil {
			return err
		}
		status = &s
	}
	tasks, err := h.service.ListMine(c.UserContext(), principal.Subject, status)
	if err != nil {
		return mapTaskError(err)
	}
	return c.JSON(dto.ToTaskResponses(tasks))
}

// Get GET /api/tasks/:id.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	task, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return mapTaskError(err)
	}
	return c.JSON(dto.ToTaskResponse(task))
}

// History GET /api/tasks/:id/history.
func (h *TasksHandler) History(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	changes, err := h.service.History(c.UserContext(), id)
	if err != nil {
		return mapTaskError(err)
	}
	return c.JSON(dto.ToStatusChangeResponses(changes))
}

// Create POST /api/tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	input, err := parseTaskRequest(c)
	if err != nil {
		return err
	}
	task, err := h.service.Create(c.UserContext(), principal.Subject, input)
	if err != nil {
		return mapTaskError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToTaskResponse(task))
}

// Update PUT /api/tasks/:id.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	input, err := parseTaskRequest(c)
	if err != nil {
		return err
	}
	task, err := h.service.Update(c.UserContext(), principal.Subject, id, input)
	if err != nil {
		return mapTaskError(err)
	}
	return c.JSON(dto.ToTaskResponse(task))
}

// Delete DELETE /api/tasks/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), principal.Subject, id); err != nil {
		return mapTaskError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TasksHandler) list(c *fiber.Ctx, filter repository.TaskFilter) error {
	tasks, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return mapTaskError(err)
	}
	return c.JSON(dto.ToTaskResponses(tasks))
}

func requirePrincipal(c *fiber.Ctx) (*domain.Principal, error) {
	principal, ok := auth.PrincipalFromUserContext(c.UserContext())
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseTaskRequest(c *fiber.Ctx) (service.TaskInput, error) {
	var req dto.TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return service.TaskInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return service.TaskInput{}, apperrors.NewValidationError("title required", map[string]any{"title": "must not be blank"})
	}
	if req.Status != "" && !req.Status.Valid() {
		return service.TaskInput{}, apperrors.NewValidationError("invalid status", map[string]any{"status": string(req.Status)})
	}
	return service.TaskInput{Title: req.Title, Description: req.Description, Status: req.Status}, nil
}

func statusParam(c *fiber.Ctx) (domain.TaskStatus, error) {
	status := domain.TaskStatus(strings.ToUpper(c.Params("status")))
	if !status.Valid() {
		return "", apperrors.NewValidationError("invalid status", map[string]any{"status": c.Params("status")})
	}
	return status, nil
}

func idParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid task id", nil)
	}
	return int64(id), nil
}

func ownerParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("ownerId")
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid owner id", nil)
	}
	return int64(id), nil
}

// mapTaskError translates service and user-service failures to HTTP errors.
func mapTaskError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("task", nil)
	case errors.Is(err, service.ErrForbidden):
		return apperrors.NewForbidden("you are not the owner of this task")
	case errors.Is(err, userclient.ErrUserNotFound):
		return apperrors.NewUnprocessable("OWNER_NOT_FOUND", "task owner is not known to user-service")
	case errors.Is(err, userclient.ErrServiceUnavailable):
		return apperrors.NewServiceUnavailable("user-service unavailable", err)
	}
	return apperrors.MapError(err)
}
