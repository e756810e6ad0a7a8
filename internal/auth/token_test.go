package auth

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock/testclock"
)

func TestGenerateAndVerify(t *testing.T) {
	c := qt.New(t)
	clk := testclock.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	tm := NewTokenManager("secret", 60, clk)

	token, expiresAt, err := tm.GenerateToken("alice")
	c.Assert(err, qt.IsNil)
	c.Assert(expiresAt, qt.Equals, clk.Now().Add(time.Hour))

	subject, ok := tm.Verify(token)
	c.Assert(ok, qt.IsTrue)
	c.Assert(subject, qt.Equals, "alice")

	claims, err := tm.ParseToken(token)
	c.Assert(err, qt.IsNil)
	c.Assert(claims.Kind, qt.Equals, TokenKindUser)
	c.Assert(claims.ID, qt.Not(qt.Equals), "")
}

func TestParseTokenExpired(t *testing.T) {
	c := qt.New(t)
	clk := testclock.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	tm := NewTokenManager("secret", 1, clk)

	token, _, err := tm.GenerateToken("alice")
	c.Assert(err, qt.IsNil)

	clk.Advance(2 * time.Minute)
	_, err = tm.ParseToken(token)
	c.Assert(err, qt.ErrorIs, ErrTokenExpired)
	_, ok := tm.Verify(token)
	c.Assert(ok, qt.IsFalse)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", 60, nil)
	valid, _, err := tm.GenerateToken("alice")
	qt.Assert(t, err, qt.IsNil)

	otherKey, _, err := NewTokenManager("other", 60, nil).GenerateToken("alice")
	qt.Assert(t, err, qt.IsNil)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Kind:             TokenKindUser,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	qt.Assert(t, err, qt.IsNil)

	wrongKind, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Kind: "service",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	qt.Assert(t, err, qt.IsNil)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Kind: TokenKindUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	qt.Assert(t, err, qt.IsNil)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "appended", token: valid + "x"},
		{name: "other key", token: otherKey},
		{name: "no subject", token: noSubject},
		{name: "wrong kind", token: wrongKind},
		{name: "alg none", token: unsigned},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, ok := tm.Verify(test.token)
			qt.Assert(t, ok, qt.IsFalse)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{header: "Bearer abc", token: "abc", ok: true},
		{header: "bearer  abc ", token: "abc", ok: true},
		{header: "Basic abc"},
		{header: "Bearer "},
		{header: ""},
	}
	for _, test := range tests {
		token, ok := BearerToken(test.header)
		qt.Check(t, ok, qt.Equals, test.ok, qt.Commentf("header %q", test.header))
		qt.Check(t, token, qt.Equals, test.token, qt.Commentf("header %q", test.header))
	}
}

func TestCredentials(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	c.Assert(IsService(ctx), qt.IsFalse)

	c.Assert(IsService(WithCredential(ctx, UserCredential{Username: "alice"})), qt.IsFalse)
	c.Assert(IsService(WithCredential(ctx, ServiceCredential{Service: "task-backend"})), qt.IsTrue)

	c.Assert(CallerName(ctx), qt.Equals, "anonymous")
	c.Assert(CallerName(WithCredential(ctx, UserCredential{Username: "alice"})), qt.Equals, "user:alice")
	c.Assert(CallerName(WithCredential(ctx, ServiceCredential{Service: "task-backend"})), qt.Equals, "service:task-backend")

	c.Assert(ServiceTokenMatches("s3cret", "s3cret"), qt.IsTrue)
	c.Assert(ServiceTokenMatches("s3cret", "nope"), qt.IsFalse)
	c.Assert(ServiceTokenMatches("", ""), qt.IsFalse)
}

func TestPasswordRoundTrip(t *testing.T) {
	c := qt.New(t)
	hashed, err := HashPassword("hunter22", 4)
	c.Assert(err, qt.IsNil)
	c.Assert(ComparePassword(hashed, "hunter22"), qt.IsNil)
	c.Assert(ComparePassword(hashed, "wrong"), qt.IsNotNil)
	c.Assert(ComparePassword("", "hunter22"), qt.ErrorIs, ErrNoPassword)
}
