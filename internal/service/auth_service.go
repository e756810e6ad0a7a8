package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/repository"
)

var (
	// ErrInvalidCredentials is the only failure signin reports for bad username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already in use")
)

// SignupInput describes a local account registration.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// SigninResult is returned on successful login.
type SigninResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	TokenManager *auth.TokenManager
	BcryptCost   int
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   deps.TokenManager,
		bcryptCost: deps.BcryptCost,
		logger:     deps.Logger,
	}
}

// Signup creates a new local account with ROLE_USER.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Provider:     domain.AuthProviderLocal,
		Roles:        []string{domain.RoleUser},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent signup.
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Signin matches credentials and issues a bearer token.
func (s *AuthService) Signin(ctx context.Context, username, password string) (*SigninResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("signin rejected", zap.String("username", username), zap.String("reason", "unknown user"))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("signin rejected", zap.String("username", username), zap.String("reason", "password mismatch"))
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.Username)
	if err != nil {
		return nil, err
	}
	return &SigninResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// IssueToken signs a token for an already authenticated user (OAuth2 logins).
func (s *AuthService) IssueToken(user *domain.User) (string, time.Time, error) {
	return s.tokenMgr.GenerateToken(user.Username)
}
