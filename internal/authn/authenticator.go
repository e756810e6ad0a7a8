// Package authn establishes the request principal in task-backend by asking
// user-service to validate the caller's bearer token.
package authn

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/observability"
)

// Authenticator never rejects a request. It binds a principal when the token
// validates and otherwise leaves the request anonymous for the guards to decide.
type Authenticator struct {
	validator TokenValidator
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewAuthenticator builds the middleware. metrics may be nil.
func NewAuthenticator(validator TokenValidator, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Authenticator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Authenticator{validator: validator, timeout: timeout, logger: logger, metrics: metrics}
}

// Handle is the fiber middleware.
func (a *Authenticator) Handle(c *fiber.Ctx) error {
	transport := a.validator.Transport()
	token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		a.logger.Debug("no bearer token", zap.String("path", c.Path()))
		a.metrics.RecordValidation(transport, observability.OutcomeAnonymous, 0)
		return c.Next()
	}

	// The header bytes belong to fasthttp and are reused once the handler
	// returns, while a timed-out validator may still be reading the token.
	token = utils.CopyString(token)

	start := time.Now()
	res, err := a.validate(c.UserContext(), token)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		a.logger.Warn("token validation unavailable",
			zap.String("transport", transport),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		a.metrics.RecordValidation(transport, observability.OutcomeError, elapsed)
	case !res.Valid || res.Username == "":
		a.logger.Info("token rejected",
			zap.String("transport", transport),
			zap.String("reason", res.Message))
		a.metrics.RecordValidation(transport, observability.OutcomeRejected, elapsed)
	default:
		auth.BindPrincipal(c, &domain.Principal{Subject: res.Username, Authorities: []string{domain.RoleUser}})
		a.logger.Debug("principal bound", zap.String("username", res.Username), zap.String("transport", transport))
		a.metrics.RecordValidation(transport, observability.OutcomeAuthenticated, elapsed)
	}
	return c.Next()
}

func (a *Authenticator) validate(parent context.Context, token string) (domain.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(parent, a.timeout)
	defer cancel()

	type outcome struct {
		res domain.ValidationResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("validator panic: %v", r)}
			}
		}()
		res, err := a.validator.Validate(ctx, token)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return domain.ValidationResult{}, ctx.Err()
	}
}
