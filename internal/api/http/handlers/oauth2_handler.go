package handlers

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/service"
	apperrors "github.com/spec-kit/task-management/pkg/util/errorutil"
)

// OAuth2Handler drives the provider login redirects.
type OAuth2Handler struct {
	oauth       *service.OAuthService
	auth        *service.AuthService
	frontendURL string
	logger      *zap.Logger
}

// NewOAuth2Handler constructs handler. frontendURL receives the final token or error.
func NewOAuth2Handler(oauth *service.OAuthService, authService *service.AuthService, frontendURL string, logger *zap.Logger) *OAuth2Handler {
	return &OAuth2Handler{oauth: oauth, auth: authService, frontendURL: frontendURL, logger: logger}
}

// Providers handles GET /api/oauth2/providers.
func (h *OAuth2Handler) Providers(c *fiber.Ctx) error {
	providers := h.oauth.Providers()
	if len(providers) == 0 {
		return c.JSON(fiber.Map{
			"providers":  providers,
			"configured": false,
			"message":    "OAuth2 providers not configured",
		})
	}
	return c.JSON(fiber.Map{
		"providers":  providers,
		"configured": true,
		"message":    "Available OAuth2 providers",
	})
}

// Authorize handles GET /oauth2/authorization/:provider.
func (h *OAuth2Handler) Authorize(c *fiber.Ctx) error {
	target, err := h.oauth.AuthCodeURL(c.UserContext(), c.Params("provider"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownProvider) {
			return apperrors.NewNotFound("oauth2 provider", nil)
		}
		return apperrors.MapError(err)
	}
	return c.Redirect(target, fiber.StatusFound)
}

// Callback handles GET /oauth2/callback/:provider and hands the outcome to the frontend.
func (h *OAuth2Handler) Callback(c *fiber.Ctx) error {
	provider := c.Params("provider")
	if providerErr := c.Query("error"); providerErr != "" {
		return c.Redirect(h.frontendRedirect(url.Values{"error": {providerErr}}), fiber.StatusFound)
	}

	user, err := h.oauth.Complete(c.UserContext(), provider, c.Query("state"), c.Query("code"))
	if err != nil {
		h.logger.Warn("oauth2 login failed", zap.String("provider", provider), zap.Error(err))
		return c.Redirect(h.frontendRedirect(url.Values{"error": {err.Error()}}), fiber.StatusFound)
	}

	token, _, err := h.auth.IssueToken(user)
	if err != nil {
		return apperrors.MapError(err)
	}
	h.logger.Info("oauth2 login", zap.String("provider", provider), zap.String("username", user.Username))
	return c.Redirect(h.frontendRedirect(url.Values{"token": {token}, "username": {user.Username}}), fiber.StatusFound)
}

// Redirect handles GET /api/oauth2/redirect, echoing the outcome for clients without a frontend.
func (h *OAuth2Handler) Redirect(c *fiber.Ctx) error {
	token, username, providerErr := c.Query("token"), c.Query("username"), c.Query("error")
	switch {
	case providerErr != "":
		return c.JSON(fiber.Map{"success": false, "error": providerErr, "message": "OAuth2 authentication failed"})
	case token != "" && username != "":
		return c.JSON(fiber.Map{"success": true, "token": token, "username": username, "message": "OAuth2 authentication successful"})
	}
	return c.JSON(fiber.Map{"success": false, "error": "Missing authentication data", "message": "OAuth2 authentication incomplete"})
}

func (h *OAuth2Handler) frontendRedirect(query url.Values) string {
	return h.frontendURL + "?" + query.Encode()
}
