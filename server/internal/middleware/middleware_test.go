package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/cvbuilder/internal/auth"
	"github.com/devilmonastery/cvbuilder/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubVerifier map[string]error

func (v stubVerifier) Verify(token string) (*auth.SessionClaims, error) {
	if err, ok := v[token]; ok {
		return nil, err
	}
	return &auth.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "acct-" + token}}, nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func TestRequireSession(t *testing.T) {
	verifier := stubVerifier{
		"old":    auth.ErrExpiredToken,
		"forged": fmt.Errorf("%w: signature is invalid", auth.ErrInvalidToken),
	}
	sessions := NewSessionMiddleware(verifier, discardLogger())

	var seen string
	h := sessions.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := auth.SessionFromContext(r.Context())
		require.NoError(t, err)
		seen = claims.AccountID()
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid", "Bearer good", http.StatusOK, ""},
		{"lowercase scheme", "bearer good", http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "InvalidTokenError"},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "InvalidTokenError"},
		{"empty token", "Bearer  ", http.StatusUnauthorized, "InvalidTokenError"},
		{"expired", "Bearer old", http.StatusUnauthorized, "ExpiredTokenError"},
		{"forged", "Bearer forged", http.StatusUnauthorized, "InvalidTokenError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode == "" {
				assert.Equal(t, "acct-good", seen)
				return
			}
			assert.Empty(t, seen)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, discardLogger())
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/providers", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("198.51.100.1:1000").Code)
	// Same client on a different port shares the bucket
	rec := call("198.51.100.1:2000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RateLimitedError", errorCode(t, rec))
	assert.Equal(t, "1000", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call("198.51.100.2:1000").Code)
	assert.Equal(t, 2, rl.Count())
}

func TestRecover(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/providers", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "InternalError", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "nil map write")

	abort := Recover(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientIP(req))
}
