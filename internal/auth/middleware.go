package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/repository"
	apperrors "github.com/spec-kit/task-management/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	userKey      = "auth_user"
)

type principalCtxKey struct{}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// BindPrincipal attaches p to the request locals and to the user context.
func BindPrincipal(c *fiber.Ctx, p *domain.Principal) {
	c.Locals(principalKey, p)
	c.SetUserContext(context.WithValue(c.UserContext(), principalCtxKey{}, p))
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	return principal, ok && principal != nil
}

// PrincipalFromUserContext retrieves the principal from a context derived from the request.
func PrincipalFromUserContext(ctx context.Context) (*domain.Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey{}).(*domain.Principal)
	return principal, ok && principal != nil
}

// UserFromContext returns the user record loaded by AuthMiddleware.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(userKey).(*domain.User)
	return user, ok && user != nil
}

// AuthMiddleware guards user-service's own API. The token is verified locally
// and the subject reloaded, so deleted users lose access immediately.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	token, ok := BearerToken(authHeader)
	if !ok {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		m.logger.Debug("token rejected", zap.Error(err))
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByUsername(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(userKey, user)
	BindPrincipal(c, &domain.Principal{Subject: user.Username, Authorities: user.Roles})
	c.SetUserContext(WithCredential(c.UserContext(), UserCredential{Username: user.Username}))
	return c.Next()
}
