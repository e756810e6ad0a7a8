package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/repository"
)

// Validation messages returned to callers.
const (
	MsgNoToken      = "no token provided"
	MsgInvalidToken = "invalid token"
	MsgTokenValid   = "token is valid"
)

// TokenParser is the cryptographic half of validation.
type TokenParser interface {
	ParseToken(token string) (*auth.Claims, error)
}

// UserFinder is the storage half of validation.
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// TokenValidationService backs both remote validation transports.
// It never returns an error: every outcome is a ValidationResult.
type TokenValidationService struct {
	tokens TokenParser
	users  UserFinder
	logger *zap.Logger
}

// NewTokenValidationService builds the service.
func NewTokenValidationService(tokens TokenParser, users UserFinder, logger *zap.Logger) *TokenValidationService {
	return &TokenValidationService{tokens: tokens, users: users, logger: logger}
}

// Validate checks signature and expiry first, then that the subject still exists.
func (s *TokenValidationService) Validate(ctx context.Context, token string) (result domain.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("token validation panicked", zap.Any("panic", r))
			result = domain.ValidationResult{Valid: false, Message: fmt.Sprintf("token validation error: %v", r)}
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		s.logger.Debug("token_rejected", zap.String("reason", "empty"))
		return domain.ValidationResult{Valid: false, Message: MsgNoToken}
	}

	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		s.logger.Info("token_rejected", zap.String("reason", "structural"), zap.Error(err))
		return domain.ValidationResult{Valid: false, Message: MsgInvalidToken}
	}

	username := claims.Subject
	if _, err := s.users.GetByUsername(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("subject_not_found", zap.String("username", username))
			return domain.ValidationResult{Valid: false, Message: "user not found: " + username}
		}
		s.logger.Error("token subject lookup failed", zap.String("username", username), zap.Error(err))
		return domain.ValidationResult{Valid: false, Message: "token validation error: " + err.Error()}
	}

	s.logger.Debug("token accepted", zap.String("username", username))
	return domain.ValidationResult{Valid: true, Username: username, Message: MsgTokenValid}
}
