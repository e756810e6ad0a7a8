package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-management/internal/api/rpc"
	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/pkg/util/ctxutil"
)

// Transport names, as configured by USER_SERVICE_VALIDATION_TRANSPORT.
const (
	TransportGRPC  = "grpc"
	TransportHTTP  = "http"
	TransportLocal = "local"
)

// TokenValidator answers whether a bearer token identifies a live user.
// An error means the answer could not be obtained.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (domain.ValidationResult, error)
	Transport() string
}

// RPCValidator calls UserService/ValidateToken.
type RPCValidator struct {
	client *rpc.Client
}

// NewRPCValidator wraps a connected client.
func NewRPCValidator(client *rpc.Client) *RPCValidator {
	return &RPCValidator{client: client}
}

func (v *RPCValidator) Validate(ctx context.Context, token string) (domain.ValidationResult, error) {
	res, err := v.client.ValidateToken(ctx, token)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	return domain.ValidationResult{Valid: res.Valid, Username: res.Username, Message: res.Message}, nil
}

func (v *RPCValidator) Transport() string { return TransportGRPC }

// HTTPValidator calls POST /api/users/validate with the token as bearer credential.
type HTTPValidator struct {
	url     string
	timeout time.Duration
}

// NewHTTPValidator builds a validator for the user-service base URL.
func NewHTTPValidator(baseURL string, timeout time.Duration) *HTTPValidator {
	return &HTTPValidator{url: strings.TrimRight(baseURL, "/") + "/api/users/validate", timeout: timeout}
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (domain.ValidationResult, error) {
	timeout, err := ctxutil.Budget(ctx, v.timeout)
	if err != nil {
		return domain.ValidationResult{}, err
	}

	code, body, errs := fiber.Post(v.url).
		Set(fiber.HeaderAuthorization, "Bearer "+token).
		Timeout(timeout).
		Bytes()
	if len(errs) > 0 {
		return domain.ValidationResult{}, errors.Join(errs...)
	}
	if code != fiber.StatusOK && code != fiber.StatusUnauthorized {
		return domain.ValidationResult{}, fmt.Errorf("validate endpoint returned status %d", code)
	}

	var res domain.ValidationResult
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.ValidationResult{}, fmt.Errorf("decode validation result: %w", err)
	}
	if code == fiber.StatusUnauthorized {
		res.Valid = false
	}
	return res, nil
}

func (v *HTTPValidator) Transport() string { return TransportHTTP }

// LocalValidator verifies tokens with the shared signing key. It cannot tell
// whether the subject still exists.
type LocalValidator struct {
	tokens *auth.TokenManager
}

// NewLocalValidator builds a validator around tokens.
func NewLocalValidator(tokens *auth.TokenManager) *LocalValidator {
	return &LocalValidator{tokens: tokens}
}

func (v *LocalValidator) Validate(_ context.Context, token string) (domain.ValidationResult, error) {
	subject, ok := v.tokens.Verify(token)
	if !ok {
		return domain.ValidationResult{Valid: false, Message: "invalid token"}, nil
	}
	return domain.ValidationResult{Valid: true, Username: subject, Message: "token is valid"}, nil
}

func (v *LocalValidator) Transport() string { return TransportLocal }
