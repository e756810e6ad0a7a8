package service

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/repository/repotest"
)

func newTestAuthService(users *repotest.Users) (*AuthService, *auth.TokenManager) {
	tokens := auth.NewTokenManager("test-secret", 60, nil)
	return NewAuthService(AuthDependencies{
		UserRepo:     users,
		TokenManager: tokens,
		BcryptCost:   4,
		Logger:       zap.NewNop(),
	}), tokens
}

func TestSignupAndSignin(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	svc, tokens := newTestAuthService(repotest.NewUsers())

	user, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret1", Name: "Alice"})
	c.Assert(err, qt.IsNil)
	c.Assert(user.Roles, qt.DeepEquals, []string{domain.RoleUser})
	c.Assert(user.PasswordHash, qt.Not(qt.Equals), "secret1")

	res, err := svc.Signin(ctx, "alice", "secret1")
	c.Assert(err, qt.IsNil)
	c.Assert(res.User.Username, qt.Equals, "alice")

	subject, ok := tokens.Verify(res.Token)
	c.Assert(ok, qt.IsTrue)
	c.Assert(subject, qt.Equals, "alice")
}

func TestSignupRejectsDuplicates(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	svc, _ := newTestAuthService(repotest.NewUsers())

	_, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	c.Assert(err, qt.IsNil)

	_, err = svc.Signup(ctx, SignupInput{Username: "alice", Email: "other@example.com", Password: "secret1"})
	c.Assert(err, qt.ErrorIs, ErrUsernameTaken)

	_, err = svc.Signup(ctx, SignupInput{Username: "bob", Email: "ALICE@example.com", Password: "secret1"})
	c.Assert(err, qt.ErrorIs, ErrEmailTaken)
}

func TestSigninRejectsBadCredentials(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	svc, _ := newTestAuthService(repotest.NewUsers())
	_, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	c.Assert(err, qt.IsNil)

	_, err = svc.Signin(ctx, "alice", "wrong")
	c.Assert(err, qt.ErrorIs, ErrInvalidCredentials)

	_, err = svc.Signin(ctx, "nobody", "secret1")
	c.Assert(err, qt.ErrorIs, ErrInvalidCredentials)
}

func TestSigninRejectsOAuthOnlyAccount(t *testing.T) {
	c := qt.New(t)
	users := repotest.NewUsers(&domain.User{Username: "carol", Email: "carol@example.com", Provider: domain.AuthProviderGitHub})
	svc, _ := newTestAuthService(users)

	_, err := svc.Signin(context.Background(), "carol", "")
	c.Assert(err, qt.ErrorIs, ErrInvalidCredentials)
}
