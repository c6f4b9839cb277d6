package middleware

import "context"

type adminKey struct{}

// IsAdmin reports whether AdminAuth accepted the request's bearer token.
func IsAdmin(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	ok, _ := ctx.Value(adminKey{}).(bool)
	return ok
}

// WithAdmin marks ctx as carrying admin rights.
func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey{}, true)
}
