package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devilmonastery/cvbuilder/internal/auth"
)

// SessionVerifier checks a session token; *auth.JWTManager implements it
type SessionVerifier interface {
	Verify(token string) (*auth.SessionClaims, error)
}

// SessionMiddleware authenticates requests carrying a session token
type SessionMiddleware struct {
	verifier SessionVerifier
	log      *slog.Logger
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(verifier SessionVerifier, log *slog.Logger) *SessionMiddleware {
	return &SessionMiddleware{verifier: verifier, log: log}
}

// RequireSession rejects requests without a valid "Authorization: Bearer"
// session token and stores the verified claims in the request context
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "InvalidTokenError", "bearer session token required")
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.log.Debug("session token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			if errors.Is(err, auth.ErrExpiredToken) {
				writeUnauthorized(w, "ExpiredTokenError", "session token has expired")
				return
			}
			writeUnauthorized(w, "InvalidTokenError", "session token is invalid")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithSession(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, code, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="cvbuilder"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
