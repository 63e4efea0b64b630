package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/cvbuilder/internal/auth"
	"github.com/devilmonastery/cvbuilder/internal/auth/oidc"
	"github.com/devilmonastery/cvbuilder/internal/domain/repositories"
	"github.com/devilmonastery/cvbuilder/internal/domain/services"
)

// Stable error codes returned in the "error" field
const (
	CodeInvalidRequest      = "InvalidRequestError"
	CodeUnsupportedProvider = "UnsupportedProviderError"
	CodeProviderUnavailable = "ProviderUnavailableError"
	CodeInvalidCredential   = "InvalidCredentialError"
	CodeProviderExchange    = "ProviderExchangeError"
	CodeEmailNotVerified    = "EmailNotVerifiedError"
	CodeDataIntegrity       = "DataIntegrityError"
	CodeAccountNotFound     = "AccountNotFoundError"
	CodeUnauthenticated     = "InvalidTokenError"
	CodeConflict            = "ConflictError"
	CodeStorage             = "StorageError"
	CodeInternal            = "InternalError"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// requestError is a client mistake detected by the handler itself. Its
// message is written by us and safe to return.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func invalidRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// classify maps an error onto status, code and a message that never echoes
// credentials, secrets or provider payloads
func classify(err error) (int, string, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, CodeInvalidRequest, reqErr.msg
	}

	var exErr *oidc.ExchangeError
	switch {
	case errors.Is(err, oidc.ErrUnsupportedProvider):
		return http.StatusBadRequest, CodeUnsupportedProvider, "unsupported provider"
	case errors.Is(err, oidc.ErrProviderNotConfigured):
		return http.StatusBadRequest, CodeProviderUnavailable, "provider is not configured"
	case errors.Is(err, oidc.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, CodeProviderUnavailable, "provider is unavailable, try again later"
	case errors.Is(err, oidc.ErrInvalidCredential):
		return http.StatusBadRequest, CodeInvalidCredential, "credential was rejected"
	case errors.As(err, &exErr):
		msg := "authorization code exchange failed"
		if exErr.Code != "" {
			msg += ": " + exErr.Code
		}
		return http.StatusBadGateway, CodeProviderExchange, msg
	case errors.Is(err, oidc.ErrProviderExchange):
		return http.StatusBadGateway, CodeProviderExchange, "authorization code exchange failed"
	case errors.Is(err, services.ErrEmailNotVerified):
		return http.StatusForbidden, CodeEmailNotVerified, "provider email must be verified to link an existing account"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated, "bearer session token required"
	case errors.Is(err, services.ErrAccountNotFound):
		return http.StatusNotFound, CodeAccountNotFound, "account not found"
	case errors.Is(err, services.ErrDataIntegrity):
		return http.StatusInternalServerError, CodeDataIntegrity, "account data is inconsistent"
	case errors.Is(err, repositories.ErrConflict):
		return http.StatusInternalServerError, CodeConflict, "concurrent update, retry the request"
	case errors.Is(err, repositories.ErrStorage):
		return http.StatusInternalServerError, CodeStorage, "storage is unavailable"
	}
	return http.StatusInternalServerError, CodeInternal, "internal server error"
}

// writeError logs the full error and returns only the safe classification
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	h.log.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.String("code", code),
		slog.Any("error", err))

	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
