// Package identity resolves who is making a call. Bearer tokens are
// issued elsewhere; this package only verifies them and carries the
// verified subject through the request context.
package identity

import (
	"context"

	"github.com/rentwise/rentwise/internal/model"
)

// Resolver looks up the identity of the caller.
type Resolver interface {
	// CurrentIdentity returns the caller's user id, or false when the
	// caller is anonymous.
	CurrentIdentity(ctx context.Context) (string, bool)
}

// Caller is a verified identity.
type Caller struct {
	Subject string
	Role    model.Role
}

type callerKey string

var callerContextKey callerKey = "caller"

// WithCaller attaches a verified caller to the context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFrom returns the caller attached to the context.
func CallerFrom(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(Caller)
	if !ok || caller.Subject == "" {
		return Caller{}, false
	}
	return caller, true
}

// ContextResolver resolves the caller stored by the authentication
// middleware.
type ContextResolver struct{}

// CurrentIdentity implements Resolver.
func (ContextResolver) CurrentIdentity(ctx context.Context) (string, bool) {
	caller, ok := CallerFrom(ctx)
	return caller.Subject, ok
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context) (string, bool)

// CurrentIdentity implements Resolver.
func (f ResolverFunc) CurrentIdentity(ctx context.Context) (string, bool) {
	return f(ctx)
}
