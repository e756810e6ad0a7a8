package authn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/observability"
)

type funcValidator func(ctx context.Context, token string) (domain.ValidationResult, error)

func (f funcValidator) Validate(ctx context.Context, token string) (domain.ValidationResult, error) {
	return f(ctx, token)
}

func (funcValidator) Transport() string { return "test" }

func acceptOnly(good string) funcValidator {
	return func(_ context.Context, token string) (domain.ValidationResult, error) {
		if token == good {
			return domain.ValidationResult{Valid: true, Username: "alice", Message: "token is valid"}, nil
		}
		return domain.ValidationResult{Valid: false, Message: "invalid token"}, nil
	}
}

func newTestApp(v TokenValidator, timeout time.Duration, metrics *observability.Metrics) *fiber.App {
	app := fiber.New()
	app.Use(NewAuthenticator(v, timeout, zap.NewNop(), metrics).Handle)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		p, ok := auth.PrincipalFromContext(c)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(p.Subject + " " + p.Authorities[0])
	})
	app.Get("/api/tasks", auth.RequireAuthenticated(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func call(c *qt.C, app *fiber.App, path, authorization string) (int, string) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req, 2000)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	return resp.StatusCode, string(body)
}

func TestAuthenticatorBindsPrincipal(t *testing.T) {
	c := qt.New(t)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	app := newTestApp(acceptOnly("good"), time.Second, metrics)

	status, body := call(c, app, "/whoami", "Bearer good")
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(body, qt.Equals, "alice ROLE_USER")

	status, _ = call(c, app, "/api/tasks", "Bearer good")
	c.Assert(status, qt.Equals, http.StatusOK)

	c.Assert(validationCount(c, reg, observability.OutcomeAuthenticated), qt.Equals, float64(2))
}

func validationCount(c *qt.C, reg *prometheus.Registry, outcome string) float64 {
	families, err := reg.Gather()
	c.Assert(err, qt.IsNil)
	for _, f := range families {
		if f.GetName() != "test_auth_validation_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestAuthenticatorLeavesRequestAnonymous(t *testing.T) {
	tests := []struct {
		about         string
		authorization string
		validator     funcValidator
	}{{
		about:     "missing header",
		validator: acceptOnly("good"),
	}, {
		about:         "not a bearer scheme",
		authorization: "Basic YWxpY2U6c2VjcmV0",
		validator:     acceptOnly("good"),
	}, {
		about:         "rejected token",
		authorization: "Bearer tampered",
		validator:     acceptOnly("good"),
	}, {
		about:         "valid without username",
		authorization: "Bearer good",
		validator: func(context.Context, string) (domain.ValidationResult, error) {
			return domain.ValidationResult{Valid: true}, nil
		},
	}, {
		about:         "validator error",
		authorization: "Bearer good",
		validator: func(context.Context, string) (domain.ValidationResult, error) {
			return domain.ValidationResult{}, errors.New("connection refused")
		},
	}, {
		about:         "validator panic",
		authorization: "Bearer good",
		validator: func(context.Context, string) (domain.ValidationResult, error) {
			panic("boom")
		},
	}}

	for _, test := range tests {
		t.Run(test.about, func(t *testing.T) {
			c := qt.New(t)
			app := newTestApp(test.validator, time.Second, nil)

			status, body := call(c, app, "/whoami", test.authorization)
			c.Assert(status, qt.Equals, http.StatusOK)
			c.Assert(body, qt.Equals, "anonymous")

			status, _ = call(c, app, "/api/tasks", test.authorization)
			c.Assert(status, qt.Equals, http.StatusUnauthorized)
		})
	}
}

func TestAuthenticatorTimeoutIsAnonymous(t *testing.T) {
	c := qt.New(t)
	slow := funcValidator(func(context.Context, string) (domain.ValidationResult, error) {
		time.Sleep(300 * time.Millisecond)
		return domain.ValidationResult{Valid: true, Username: "alice"}, nil
	})
	app := newTestApp(slow, 20*time.Millisecond, nil)

	start := time.Now()
	status, body := call(c, app, "/whoami", "Bearer good")
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(body, qt.Equals, "anonymous")
	c.Assert(time.Since(start) < 250*time.Millisecond, qt.IsTrue)
}

func TestAuthenticatorPassesDeadlineToValidator(t *testing.T) {
	c := qt.New(t)
	var sawDeadline bool
	v := funcValidator(func(ctx context.Context, _ string) (domain.ValidationResult, error) {
		_, sawDeadline = ctx.Deadline()
		return domain.ValidationResult{}, nil
	})
	call(c, newTestApp(v, time.Second, nil), "/whoami", "Bearer x")
	c.Assert(sawDeadline, qt.IsTrue)
}

func TestAuthenticatorTokenOutlivesTimedOutRequest(t *testing.T) {
	c := qt.New(t)
	const requests = 30

	type sample struct{ before, after string }
	samples := make(chan sample, requests)
	lingering := funcValidator(func(_ context.Context, token string) (domain.ValidationResult, error) {
		before := strings.Clone(token)
		time.Sleep(50 * time.Millisecond)
		samples <- sample{before: before, after: strings.Clone(token)}
		return domain.ValidationResult{Valid: true, Username: "alice"}, nil
	})
	app := newTestApp(lingering, 5*time.Millisecond, nil)

	for i := 0; i < requests; i++ {
		_, body := call(c, app, "/whoami", fmt.Sprintf("Bearer token-%02d-%s", i, strings.Repeat("x", 32)))
		c.Assert(body, qt.Equals, "anonymous")
	}

	for i := 0; i < requests; i++ {
		select {
		case s := <-samples:
			c.Assert(s.after, qt.Equals, s.before)
			c.Assert(strings.HasPrefix(s.before, "token-"), qt.IsTrue)
		case <-time.After(2 * time.Second):
			c.Fatalf("validator %d never finished", i)
		}
	}
}
