// Package userclient resolves usernames against user-service's internal endpoints.
package userclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/pkg/util/ctxutil"
)

var (
	// ErrUserNotFound means user-service answered with a 4xx for the username.
	ErrUserNotFound = errors.New("user not found in user-service")
	// ErrServiceUnavailable means user-service could not be reached or failed with a 5xx.
	ErrServiceUnavailable = errors.New("user-service unavailable")
)

// Client is safe for concurrent use; every call builds its own agent.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a client for the user-service base URL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, logger: logger}
}

type usernameRequest struct {
	Username string `json:"username"`
}

// ResolveUserID returns the numeric id of username.
func (c *Client) ResolveUserID(ctx context.Context, username string) (int64, error) {
	var id int64
	if err := c.post(ctx, "/internal/users/user-id", usernameRequest{Username: username}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetUserDetails returns the public profile of username.
func (c *Client) GetUserDetails(ctx context.Context, username string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := c.post(ctx, "/internal/users/user-details", usernameRequest{Username: username}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	timeout, err := ctxutil.Budget(ctx, c.timeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	code, resp, errs := fiber.Post(c.baseURL+path).
		JSON(body).
		Timeout(timeout).
		Bytes()
	if len(errs) > 0 {
		c.logger.Warn("user-service call failed", zap.String("path", path), zap.Errors("errors", errs))
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, errors.Join(errs...))
	}

	switch {
	case code >= 500:
		c.logger.Warn("user-service error", zap.String("path", path), zap.Int("status", code))
		return fmt.Errorf("%w: status %d", ErrServiceUnavailable, code)
	case code >= 400:
		return fmt.Errorf("%w: status %d", ErrUserNotFound, code)
	case code < 200 || code >= 300:
		return fmt.Errorf("%w: unexpected status %d", ErrServiceUnavailable, code)
	}

	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrServiceUnavailable, path, err)
	}
	return nil
}
