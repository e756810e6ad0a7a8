package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Client calls user-service over gRPC. It is safe for concurrent use.
type Client struct {
	conn         *grpc.ClientConn
	serviceName  string
	serviceToken string
}

// NewClient connects lazily to target. Extra options are applied after the defaults.
func NewClient(target, serviceName, serviceToken string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, serviceName: serviceName, serviceToken: serviceToken}, nil
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.serviceToken == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, ServiceTokenKey, c.serviceToken, ServiceNameKey, c.serviceName)
}

// ValidateToken asks user-service whether token is valid.
func (c *Client) ValidateToken(ctx context.Context, token string) (*ValidateTokenResponse, error) {
	out := new(ValidateTokenResponse)
	if err := c.conn.Invoke(c.outgoing(ctx), methodValidateToken, &ValidateTokenRequest{Token: token}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserByUsername looks up an account; a missing user is codes.NotFound.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*UserResponse, error) {
	out := new(UserResponse)
	if err := c.conn.Invoke(c.outgoing(ctx), methodGetUserByUsername, &GetUserByUsernameRequest{Username: username}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
