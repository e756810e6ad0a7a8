package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/repository/repotest"
	apperrors "github.com/spec-kit/task-management/pkg/util/errorutil"
)

func newGuardedApp(tokens *TokenManager) *fiber.App {
	users := repotest.NewUsers(
		&domain.User{Username: "alice", Roles: []string{domain.RoleUser}},
		&domain.User{Username: "root", Roles: []string{domain.RoleUser, domain.RoleAdmin}},
	)
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).SendString(de.Message)
	}})
	api := app.Group("/api", NewAuthMiddleware(tokens, users, zap.NewNop()).Handle)
	api.Get("/caller", func(c *fiber.Ctx) error {
		p, _ := PrincipalFromUserContext(c.UserContext())
		return c.SendString(CallerName(c.UserContext()) + " " + p.Subject)
	})
	api.Get("/admin", RequireAnyRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func get(c *qt.C, app *fiber.App, path, token string) (int, string) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	return resp.StatusCode, string(body)
}

func TestAuthMiddlewareBindsUserCredential(t *testing.T) {
	c := qt.New(t)
	tokens := NewTokenManager("secret", 60, nil)
	app := newGuardedApp(tokens)

	alice, _, err := tokens.GenerateToken("alice")
	c.Assert(err, qt.IsNil)
	status, body := get(c, app, "/api/caller", alice)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(body, qt.Equals, "user:alice alice")

	status, _ = get(c, app, "/api/caller", "")
	c.Assert(status, qt.Equals, http.StatusUnauthorized)

	ghost, _, err := tokens.GenerateToken("ghost")
	c.Assert(err, qt.IsNil)
	status, _ = get(c, app, "/api/caller", ghost)
	c.Assert(status, qt.Equals, http.StatusUnauthorized)
}

func TestRequireAnyRole(t *testing.T) {
	c := qt.New(t)
	tokens := NewTokenManager("secret", 60, nil)
	app := newGuardedApp(tokens)

	alice, _, err := tokens.GenerateToken("alice")
	c.Assert(err, qt.IsNil)
	status, _ := get(c, app, "/api/admin", alice)
	c.Assert(status, qt.Equals, http.StatusForbidden)

	root, _, err := tokens.GenerateToken("root")
	c.Assert(err, qt.IsNil)
	status, body := get(c, app, "/api/admin", root)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(body, qt.Equals, "ok")
}
