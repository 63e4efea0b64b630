package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/cvbuilder/internal/auth"
	"github.com/devilmonastery/cvbuilder/internal/auth/oidc"
	"github.com/devilmonastery/cvbuilder/internal/domain/entities"
	"github.com/devilmonastery/cvbuilder/internal/domain/services"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// IdentityResolver resolves provider credentials to sessions and reads
// accounts back; *services.IdentityService implements it
type IdentityResolver interface {
	Authenticate(ctx context.Context, providerType oidc.ProviderType, credential string) (*services.AuthResult, error)
	GetAccountSummary(ctx context.Context, accountID string) (*entities.AccountSummary, error)
}

// ProviderLookup is the read side of the provider registry
type ProviderLookup interface {
	Get(providerType oidc.ProviderType) (oidc.Provider, error)
	ListAvailable() []oidc.ProviderType
}

// Pinger reports whether the document store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the authentication API
type Handler struct {
	identity  IdentityResolver
	providers ProviderLookup
	store     Pinger
	log       *slog.Logger
}

// NewHandler creates the API handler
func NewHandler(identity IdentityResolver, providers ProviderLookup, store Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		identity:  identity,
		providers: providers,
		store:     store,
		log:       logger.With(slog.String("component", "api")),
	}
}

type tokenRequest struct {
	Token string `json:"token"`
}

type exchangeRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

// AuthResponse is returned by POST /auth/{provider}
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      any       `json:"user"`
}

// ProviderInfo is one entry of GET /auth/providers
type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// UserInfoResponse is returned by POST /auth/{provider}/validate
type UserInfoResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
	EmailVerified bool   `json:"emailVerified"`
}

// Authenticate handles POST /auth/{provider}
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		h.writeError(w, r, invalidRequest("token is required"))
		return
	}

	result, err := h.identity.Authenticate(r.Context(), providerParam(r), req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.Account,
	})
}

// Me handles GET /auth/me, returning the account behind the session token
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.SessionFromContext(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.identity.GetAccountSummary(r.Context(), claims.AccountID())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListProviders handles GET /auth/providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	available := h.providers.ListAvailable()
	list := make([]ProviderInfo, 0, len(available))
	for _, pt := range available {
		p, err := h.providers.Get(pt)
		if err != nil {
			continue
		}
		list = append(list, ProviderInfo{Name: pt.String(), DisplayName: p.DisplayName()})
	}
	writeJSON(w, http.StatusOK, list)
}

// AuthorizationURL handles GET /auth/{provider}/authorize
func (h *Handler) AuthorizationURL(w http.ResponseWriter, r *http.Request) {
	provider, err := h.providers.Get(providerParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	redirectURI := q.Get("redirectUri")
	if redirectURI == "" {
		h.writeError(w, r, invalidRequest("redirectUri is required"))
		return
	}

	url, err := provider.AuthorizationURL(r.Context(), q.Get("state"), redirectURI, splitScopes(q["scopes"]))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authorizationUrl": url})
}

// ExchangeCode handles POST /auth/{provider}/exchange
func (h *Handler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	provider, err := h.providers.Get(providerParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req exchangeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Code == "" || req.RedirectURI == "" {
		h.writeError(w, r, invalidRequest("code and redirectUri are required"))
		return
	}

	token, err := provider.ExchangeCode(r.Context(), req.Code, req.RedirectURI)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ValidateToken handles POST /auth/{provider}/validate
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	provider, err := h.providers.Get(providerParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req tokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		h.writeError(w, r, invalidRequest("token is required"))
		return
	}

	info, err := provider.ValidateToken(r.Context(), req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserInfoResponse{
		ID:            info.Subject,
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		Locale:        info.Locale,
		EmailVerified: info.EmailVerified,
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Readiness handles GET /readiness by pinging the document store
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("readiness check failed", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func providerParam(r *http.Request) oidc.ProviderType {
	return oidc.ProviderType(strings.ToLower(mux.Vars(r)["provider"]))
}

// decodeBody reads a JSON object of at most maxBodyBytes into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return invalidRequest("request body exceeds %d bytes", maxBodyBytes)
		case errors.Is(err, io.EOF):
			return invalidRequest("request body is required")
		default:
			return invalidRequest("request body is not valid JSON")
		}
	}
	return nil
}

// splitScopes accepts repeated scopes parameters as well as space or comma
// separated lists
func splitScopes(values []string) []string {
	var scopes []string
	for _, v := range values {
		scopes = append(scopes, strings.FieldsFunc(v, func(r rune) bool {
			return r == ' ' || r == ','
		})...)
	}
	return scopes
}
