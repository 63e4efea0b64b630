package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionContext(t *testing.T) {
	_, err := SessionFromContext(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	claims := &SessionClaims{Email: "a@example.com", RegisteredClaims: jwt.RegisteredClaims{Subject: "a-1"}}
	ctx := ContextWithSession(context.Background(), claims)

	got, err := SessionFromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, claims, got)
	assert.Equal(t, "a-1", got.AccountID())
}
