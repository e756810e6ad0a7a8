package authn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/domain"
)

func TestHTTPValidator(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodPost)
		c.Check(r.URL.Path, qt.Equals, "/api/users/validate")
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_, _ = w.Write([]byte(`{"valid":true,"username":"alice","message":"token is valid"}`))
		case "Bearer boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"valid":false,"message":"invalid token"}`))
		}
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL+"/", time.Second)
	c.Assert(v.Transport(), qt.Equals, TransportHTTP)

	res, err := v.Validate(context.Background(), "good")
	c.Assert(err, qt.IsNil)
	c.Assert(res, qt.DeepEquals, domain.ValidationResult{Valid: true, Username: "alice", Message: "token is valid"})

	res, err = v.Validate(context.Background(), "bad")
	c.Assert(err, qt.IsNil)
	c.Assert(res, qt.DeepEquals, domain.ValidationResult{Valid: false, Message: "invalid token"})

	_, err = v.Validate(context.Background(), "boom")
	c.Assert(err, qt.ErrorMatches, "validate endpoint returned status 502")
}

func TestHTTPValidatorUnreachable(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPValidator(url, time.Second).Validate(context.Background(), "good")
	c.Assert(err, qt.IsNotNil)
}

func TestLocalValidator(t *testing.T) {
	c := qt.New(t)
	tokens := auth.NewTokenManager("local-secret", 60, nil)
	token, _, err := tokens.GenerateToken("alice")
	c.Assert(err, qt.IsNil)

	v := NewLocalValidator(tokens)
	res, err := v.Validate(context.Background(), token)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Valid, qt.IsTrue)
	c.Assert(res.Username, qt.Equals, "alice")

	res, err = v.Validate(context.Background(), token[:len(token)-4])
	c.Assert(err, qt.IsNil)
	c.Assert(res.Valid, qt.IsFalse)

	other := auth.NewTokenManager("other-secret", 60, nil)
	foreign, _, err := other.GenerateToken("alice")
	c.Assert(err, qt.IsNil)
	res, err = v.Validate(context.Background(), foreign)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Valid, qt.IsFalse)
}
