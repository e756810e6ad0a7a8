package rpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/observability"
	"github.com/spec-kit/task-management/internal/service"
)

// Metadata keys presented by peer services.
const (
	ServiceTokenKey = "x-service-token"
	ServiceNameKey  = "x-service-name"
)

// Server implements UserServiceServer on top of the user-service services.
type Server struct {
	validation   *service.TokenValidationService
	users        *service.UserService
	serviceToken string
	logger       *zap.Logger
}

// ServerDependencies bundles server requirements.
type ServerDependencies struct {
	Validation   *service.TokenValidationService
	Users        *service.UserService
	ServiceToken string
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// NewServer builds the handler and a grpc.Server with it registered.
func NewServer(deps ServerDependencies) (*Server, *grpc.Server) {
	srv := &Server{
		validation:   deps.Validation,
		users:        deps.Users,
		serviceToken: deps.ServiceToken,
		logger:       deps.Logger,
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		credentialInterceptor(deps.ServiceToken),
		loggingInterceptor(deps.Logger, deps.Metrics),
	))
	RegisterUserServiceServer(gs, srv)
	return srv, gs
}

// ValidateToken always answers with status OK; failures are in the response body.
func (s *Server) ValidateToken(ctx context.Context, req *ValidateTokenRequest) (*ValidateTokenResponse, error) {
	res := s.validation.Validate(ctx, req.Token)
	return &ValidateTokenResponse{Valid: res.Valid, Username: res.Username, Message: res.Message}, nil
}

// GetUserByUsername is reserved for peer services when a service token is configured.
func (s *Server) GetUserByUsername(ctx context.Context, req *GetUserByUsernameRequest) (*UserResponse, error) {
	if s.serviceToken != "" && !auth.IsService(ctx) {
		return nil, status.Error(codes.PermissionDenied, "service credential required")
	}
	user, err := s.users.GetByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, service.ErrBlankUsername):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		return nil, status.Errorf(codes.NotFound, "user not found: %s", req.Username)
	case err != nil:
		s.logger.Error("user lookup failed", zap.String("username", req.Username), zap.Error(err))
		return nil, status.Error(codes.Internal, "user lookup failed")
	}
	return &UserResponse{ID: user.ID, Username: user.Username, Email: user.Email, Name: user.Name}, nil
}

// credentialInterceptor attaches a ServiceCredential when the caller presents the shared token.
func credentialInterceptor(serviceToken string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return handler(ctx, req)
		}
		if presented := first(md, ServiceTokenKey); auth.ServiceTokenMatches(serviceToken, presented) {
			name := first(md, ServiceNameKey)
			if name == "" {
				name = "unknown"
			}
			ctx = auth.WithCredential(ctx, auth.ServiceCredential{Service: name})
		}
		return handler(ctx, req)
	}
}

func loggingInterceptor(logger *zap.Logger, metrics *observability.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		duration := time.Since(start)
		metrics.RecordRequest(info.FullMethod, "GRPC", int(code), duration)
		logger.Info("rpc",
			zap.String("method", info.FullMethod),
			zap.String("caller", auth.CallerName(ctx)),
			zap.String("code", code.String()),
			zap.Duration("duration", duration),
		)
		return resp, err
	}
}

func first(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
