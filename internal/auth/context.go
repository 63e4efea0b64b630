package auth

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when no verified session is in the context
var ErrUnauthenticated = errors.New("unauthenticated")

// contextKey is the key for storing session claims in context
type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext extracts the verified session from the context
func SessionFromContext(ctx context.Context) (*SessionClaims, error) {
	claims, ok := ctx.Value(sessionContextKey).(*SessionClaims)
	if !ok || claims == nil {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// ContextWithSession stores verified session claims in the context
func ContextWithSession(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, sessionContextKey, claims)
}
