package auth

import (
	"context"
	"crypto/subtle"
)

// Credential identifies who is calling user-service. It is a closed set:
// UserCredential for end users holding a bearer token and ServiceCredential for
// peer services holding the shared service token.
type Credential interface {
	credential()
}

// UserCredential is an end user authenticated by bearer token.
type UserCredential struct {
	Username string
}

// ServiceCredential is a peer service authenticated by the shared service token.
type ServiceCredential struct {
	Service string
}

func (UserCredential) credential()    {}
func (ServiceCredential) credential() {}

type credentialKey struct{}

// WithCredential returns ctx carrying cred.
func WithCredential(ctx context.Context, cred Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, cred)
}

// CredentialFromContext returns the caller credential, if one was established.
func CredentialFromContext(ctx context.Context) (Credential, bool) {
	cred, ok := ctx.Value(credentialKey{}).(Credential)
	return cred, ok && cred != nil
}

// IsService reports whether ctx was authenticated as a peer service.
func IsService(ctx context.Context) bool {
	cred, _ := CredentialFromContext(ctx)
	switch cred.(type) {
	case ServiceCredential:
		return true
	default:
		return false
	}
}

// CallerName describes the credential in ctx for logs.
func CallerName(ctx context.Context) string {
	cred, _ := CredentialFromContext(ctx)
	switch cred := cred.(type) {
	case UserCredential:
		return "user:" + cred.Username
	case ServiceCredential:
		return "service:" + cred.Service
	default:
		return "anonymous"
	}
}

// ServiceTokenMatches compares a presented service token in constant time.
func ServiceTokenMatches(expected, presented string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
